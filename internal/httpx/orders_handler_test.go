package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/poscart/fulfillment/internal/errs"
	"github.com/poscart/fulfillment/internal/orders"
	"github.com/poscart/fulfillment/internal/payment"
)

const webhookSecret = "handler-test-secret"

type stubOrders struct {
	mu   sync.Mutex
	byID map[string]*orders.Order
}

func newStubOrders(os ...orders.Order) *stubOrders {
	s := &stubOrders{byID: make(map[string]*orders.Order)}
	for i := range os {
		o := os[i]
		s.byID[o.OrderID] = &o
	}
	return s
}

func (s *stubOrders) Create(_ context.Context, o *orders.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.byID[o.OrderID] = &cp
	return nil
}

func (s *stubOrders) Get(_ context.Context, orderID string) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[orderID]
	if !ok {
		return nil, &errs.NotFound{Kind: "order", Key: orderID}
	}
	cp := *o
	return &cp, nil
}

func (s *stubOrders) GetStatus(ctx context.Context, orderID string) (orders.Status, error) {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return "", err
	}
	return o.Status, nil
}

func (s *stubOrders) History(_ context.Context, _ string) ([]orders.Order, error) { return nil, nil }

func (s *stubOrders) TransitionStatus(_ context.Context, orderID string, from, to orders.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[orderID]
	if !ok || o.Status != from || !orders.CanTransition(from, to) {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (s *stubOrders) status(id string) orders.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[id].Status
}

func webhookHandler(repo orders.Repository) *OrdersHandler {
	return &OrdersHandler{
		Orders:        repo,
		WebhookSecret: webhookSecret,
		Service:       "api-test",
		Log:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func postWebhook(t *testing.T, h *OrdersHandler, p payment.WebhookPayload) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/orders/webhook/payment", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.paymentWebhook(rec, req)
	return rec
}

func signedWebhook(orderID, state string, amount int) payment.WebhookPayload {
	p := payment.WebhookPayload{
		PaymentRequestID: "pr-1",
		State:            state,
		Amount:           amount,
		ReferenceID:      orderID,
	}
	p.Signature = payment.Sign(webhookSecret, p)
	return p
}

func decodeAck(t *testing.T, rec *httptest.ResponseRecorder) webhookAck {
	t.Helper()
	var ack webhookAck
	if err := json.NewDecoder(rec.Body).Decode(&ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	return ack
}

func pendingOrder(id string, amount int) orders.Order {
	return orders.Order{
		OrderID:      id,
		UserIdentity: "user@example.com",
		TotalCost:    float64(amount),
		Amount:       amount,
		Status:       orders.StatusPending,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestPaymentWebhook(t *testing.T) {
	t.Run("success confirmation marks the order paid", func(t *testing.T) {
		repo := newStubOrders(pendingOrder("o-1", 25))
		rec := postWebhook(t, webhookHandler(repo), signedWebhook("o-1", payment.StateSuccess, 25))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		ack := decodeAck(t, rec)
		if !ack.Received || ack.Ignored != "" {
			t.Errorf("unexpected ack: %+v", ack)
		}
		if got := repo.status("o-1"); got != orders.StatusPaid {
			t.Errorf("expected paid, got %s", got)
		}
	})

	t.Run("failed confirmation marks the order failed", func(t *testing.T) {
		repo := newStubOrders(pendingOrder("o-2", 25))
		rec := postWebhook(t, webhookHandler(repo), signedWebhook("o-2", payment.StateFailed, 25))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got := repo.status("o-2"); got != orders.StatusFailed {
			t.Errorf("expected failed, got %s", got)
		}
	})

	t.Run("bad signature is a hard 401", func(t *testing.T) {
		repo := newStubOrders(pendingOrder("o-3", 25))
		p := signedWebhook("o-3", payment.StateSuccess, 25)
		p.Signature = "deadbeef"
		rec := postWebhook(t, webhookHandler(repo), p)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if got := repo.status("o-3"); got != orders.StatusPending {
			t.Errorf("forged webhook mutated the order: %s", got)
		}
	})

	t.Run("unknown order is acknowledged and ignored", func(t *testing.T) {
		rec := postWebhook(t, webhookHandler(newStubOrders()), signedWebhook("ghost", payment.StateSuccess, 25))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if ack := decodeAck(t, rec); ack.Ignored != "unknown order" {
			t.Errorf("unexpected ack: %+v", ack)
		}
	})

	t.Run("validates against the charged amount, not the declared total", func(t *testing.T) {
		// declared totals inside the checkout tolerance can truncate below
		// the figure the provider was asked to encode; its confirmation of
		// that exact figure must still be applied
		o := pendingOrder("o-8", 100)
		o.TotalCost = 99.996
		repo := newStubOrders(o)
		rec := postWebhook(t, webhookHandler(repo), signedWebhook("o-8", payment.StateSuccess, 100))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if ack := decodeAck(t, rec); ack.Ignored != "" {
			t.Fatalf("legitimate confirmation ignored: %+v", ack)
		}
		if got := repo.status("o-8"); got != orders.StatusPaid {
			t.Errorf("expected paid, got %s", got)
		}
	})

	t.Run("amount mismatch is acknowledged and ignored", func(t *testing.T) {
		repo := newStubOrders(pendingOrder("o-4", 25))
		rec := postWebhook(t, webhookHandler(repo), signedWebhook("o-4", payment.StateSuccess, 26))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if ack := decodeAck(t, rec); ack.Ignored != "amount mismatch" {
			t.Errorf("unexpected ack: %+v", ack)
		}
		if got := repo.status("o-4"); got != orders.StatusPending {
			t.Errorf("mismatched webhook mutated the order: %s", got)
		}
	})

	t.Run("duplicate delivery is acknowledged without a second transition", func(t *testing.T) {
		repo := newStubOrders(pendingOrder("o-5", 25))
		h := webhookHandler(repo)
		p := signedWebhook("o-5", payment.StateSuccess, 25)

		if rec := postWebhook(t, h, p); rec.Code != http.StatusOK {
			t.Fatalf("first delivery: %d", rec.Code)
		}
		rec := postWebhook(t, h, p)
		if rec.Code != http.StatusOK {
			t.Fatalf("second delivery: %d", rec.Code)
		}
		if ack := decodeAck(t, rec); ack.Ignored != "order not pending" {
			t.Errorf("unexpected ack: %+v", ack)
		}
		if got := repo.status("o-5"); got != orders.StatusPaid {
			t.Errorf("expected paid after duplicate, got %s", got)
		}
	})

	t.Run("unknown state is a 400", func(t *testing.T) {
		repo := newStubOrders(pendingOrder("o-6", 25))
		p := payment.WebhookPayload{PaymentRequestID: "pr-1", State: "MAYBE", Amount: 25, ReferenceID: "o-6"}
		p.Signature = payment.Sign(webhookSecret, p)
		rec := postWebhook(t, webhookHandler(repo), p)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("malformed body is a 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/orders/webhook/payment", bytes.NewReader([]byte("{oops")))
		rec := httptest.NewRecorder()
		webhookHandler(newStubOrders()).paymentWebhook(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}
