package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/poscart/fulfillment/internal/errs"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleShopClient Role = "shop_client"
	RoleGuest      Role = "guest"
)

// TokenData is the identity resolved from a bearer credential.
type TokenData struct {
	Identity string
	Role     Role
}

// Service issues and validates HS256 bearer tokens carrying identity and role.
type Service struct {
	secret []byte
	expiry time.Duration
}

func NewService(secret string, expiry time.Duration) *Service {
	return &Service{secret: []byte(secret), expiry: expiry}
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (s *Service) IssueToken(identity string, role Role) (string, error) {
	now := time.Now().UTC()
	c := claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

// Authenticate resolves a bearer token into (identity, role).
func (s *Service) Authenticate(token string) (TokenData, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid || c.Subject == "" {
		return TokenData{}, &errs.Validation{Msg: "could not validate credentials"}
	}
	return TokenData{Identity: c.Subject, Role: Role(c.Role)}, nil
}

// Authorize reports whether role is in the required set.
func Authorize(role Role, required ...Role) bool {
	for _, r := range required {
		if role == r {
			return true
		}
	}
	return false
}
