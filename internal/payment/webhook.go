package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	StateSuccess = "SUCCESS"
	StateFailed  = "FAILED"
)

// WebhookPayload is the provider's transaction notification.
type WebhookPayload struct {
	PaymentRequestID string `json:"paymentRequestId"`
	State            string `json:"state"`
	Amount           int    `json:"amount"`
	Description      string `json:"description"`
	ReferenceID      string `json:"referenceId"` // carries our order_id
	MerchantID       string `json:"merchantId"`
	ExtraData        string `json:"extraData"`
	Signature        string `json:"signature"`
}

func signingBase(p WebhookPayload) string {
	return fmt.Sprintf("%s|%s|%d|%s", p.PaymentRequestID, p.State, p.Amount, p.ReferenceID)
}

// Sign computes the hex HMAC-SHA256 of the payload under the shared secret.
func Sign(secret string, p WebhookPayload) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signingBase(p)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the payload signature in constant time. A forged
// webhook must not be able to mark arbitrary orders paid.
func VerifySignature(secret string, p WebhookPayload) bool {
	want, err := hex.DecodeString(p.Signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signingBase(p)))
	return hmac.Equal(want, mac.Sum(nil))
}
