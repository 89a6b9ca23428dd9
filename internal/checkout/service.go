package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/poscart/fulfillment/internal/auth"
	"github.com/poscart/fulfillment/internal/errs"
	"github.com/poscart/fulfillment/internal/orders"
	"github.com/poscart/fulfillment/internal/payment"
)

// checkoutRoles is the set allowed to place orders.
var checkoutRoles = []auth.Role{auth.RoleShopClient, auth.RoleGuest}

type Request struct {
	Items        []orders.Item `json:"items"`
	ShippingCost float64       `json:"shipping_cost"`
	Subtotal     float64       `json:"subtotal"`
	TotalCost    float64       `json:"total_cost"`
}

type Result struct {
	Message string `json:"message"`
	OrderID string `json:"order_id"`
	QRCode  string `json:"qr_code"`
	QRImage string `json:"qr_image,omitempty"`
}

// QRProvider is the external payment-code generator.
type QRProvider interface {
	GenerateCode(ctx context.Context, amount int, addInfo string) (string, error)
}

// Service validates a declared cart snapshot, persists a pending order and
// requests a payment code for it.
type Service struct {
	Orders orders.Repository
	Cache  *orders.StatusCache
	QR     QRProvider
	Log    *slog.Logger
}

// Checkout creates the order. A provider failure leaves the pending order in
// place: an order that failed to get a QR is not a failed order.
func (s *Service) Checkout(ctx context.Context, caller auth.TokenData, req Request) (Result, error) {
	if !auth.Authorize(caller.Role, checkoutRoles...) {
		return Result{}, &errs.Authorization{
			Role:     string(caller.Role),
			Required: []string{string(auth.RoleShopClient), string(auth.RoleGuest)},
		}
	}
	if len(req.Items) == 0 {
		return Result{}, &errs.Validation{Msg: "Cannot checkout with an empty cart"}
	}

	total, err := validateTotals(req.Items, req.ShippingCost, req.Subtotal, req.TotalCost)
	if err != nil {
		return Result{}, err
	}

	order := &orders.Order{
		OrderID:      uuid.NewString(),
		UserIdentity: caller.Identity,
		Items:        req.Items,
		Subtotal:     req.Subtotal,
		ShippingCost: req.ShippingCost,
		TotalCost:    req.TotalCost,
		// the integer figure the payment code carries; webhook confirmations
		// are checked against this, not the client-declared floats
		Amount:    int(total.IntPart()),
		Status:    orders.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Orders.Create(ctx, order); err != nil {
		return Result{}, err
	}
	if s.Cache != nil {
		s.Cache.Set(ctx, order.OrderID, orders.StatusPending)
	}
	s.Log.Info("initiating payment", "order_id", order.OrderID, "identity", caller.Identity)

	code, err := s.QR.GenerateCode(ctx, order.Amount, fmt.Sprintf("Thanh toan don hang %s", order.OrderID))
	if err != nil {
		// pending order stays for out-of-band reconciliation or retry
		s.Log.Error("payment code generation failed", "order_id", order.OrderID, "error", err)
		return Result{}, err
	}

	image, err := payment.RenderImage(code)
	if err != nil {
		// the raw code is still scannable material for the client
		s.Log.Error("payment code rendering failed", "order_id", order.OrderID, "error", err)
		image = ""
	}

	return Result{
		Message: "Order created. Please scan the QR code to pay.",
		OrderID: order.OrderID,
		QRCode:  code,
		QRImage: image,
	}, nil
}

// OrderStatus serves the public polling endpoint, cache first.
func (s *Service) OrderStatus(ctx context.Context, orderID string) (orders.StatusResponse, error) {
	if s.Cache != nil {
		if status, ok := s.Cache.Get(ctx, orderID); ok {
			return orders.StatusResponse{OrderID: orderID, Status: status}, nil
		}
	}
	status, err := s.Orders.GetStatus(ctx, orderID)
	if err != nil {
		return orders.StatusResponse{}, err
	}
	if s.Cache != nil {
		s.Cache.Set(ctx, orderID, status)
	}
	return orders.StatusResponse{OrderID: orderID, Status: status}, nil
}

// OrderHistory returns the caller's settled orders, newest first.
func (s *Service) OrderHistory(ctx context.Context, caller auth.TokenData) ([]orders.Order, error) {
	if !auth.Authorize(caller.Role, checkoutRoles...) {
		return nil, &errs.Authorization{
			Role:     string(caller.Role),
			Required: []string{string(auth.RoleShopClient), string(auth.RoleGuest)},
		}
	}
	return s.Orders.History(ctx, caller.Identity)
}
