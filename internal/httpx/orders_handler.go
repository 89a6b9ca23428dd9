package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/poscart/fulfillment/internal/auth"
	"github.com/poscart/fulfillment/internal/checkout"
	"github.com/poscart/fulfillment/internal/errs"
	"github.com/poscart/fulfillment/internal/kafkax"
	"github.com/poscart/fulfillment/internal/orders"
	"github.com/poscart/fulfillment/internal/payment"
)

type OrdersHandler struct {
	Checkout      *checkout.Service
	Orders        orders.Repository
	Cache         *orders.StatusCache
	Producer      *kafkax.Producer // order.paid
	WebhookSecret string
	Service       string
	Log           *slog.Logger
}

func (h *OrdersHandler) Register(r *chi.Mux, authmw func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authmw)
			r.Post("/checkout", h.checkout)
			r.Get("/history", h.history)
		})
		// public endpoints: status polling and the provider webhook
		r.Get("/{order_id}/status", h.status)
		r.Post("/webhook/payment", h.paymentWebhook)
	})
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "could not validate credentials"})
		return
	}
	var req checkout.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	res, err := h.Checkout.Checkout(r.Context(), caller, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OrdersHandler) history(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "could not validate credentials"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	history, err := h.Checkout.OrderHistory(ctx, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *OrdersHandler) status(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing order id"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp, err := h.Checkout.OrderStatus(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type webhookAck struct {
	Received bool   `json:"received"`
	Ignored  string `json:"ignored,omitempty"`
}

// paymentWebhook consumes provider notifications. Only a bad signature is a
// hard rejection; duplicate or stale deliveries are acknowledged as no-ops so
// the provider does not retry forever.
func (h *OrdersHandler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	var p payment.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if !payment.VerifySignature(h.WebhookSecret, p) {
		h.Log.Warn("webhook signature verification failed", "reference_id", p.ReferenceID)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}
	if p.State != payment.StateSuccess && p.State != payment.StateFailed {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown transaction state"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	orderID := p.ReferenceID
	order, err := h.Orders.Get(ctx, orderID)
	if err != nil {
		var nf *errs.NotFound
		if errors.As(err, &nf) {
			h.Log.Warn("webhook for unknown order", "order_id", orderID)
			writeJSON(w, http.StatusOK, webhookAck{Received: true, Ignored: "unknown order"})
			return
		}
		writeError(w, err)
		return
	}
	// compare against the integer the payment code was generated for, never
	// the client-declared floats: inside the checkout tolerance those can
	// truncate to a different figure than the one the provider was asked to encode
	if p.Amount != order.Amount {
		h.Log.Warn("webhook amount mismatch", "order_id", orderID,
			"got", p.Amount, "want", order.Amount)
		writeJSON(w, http.StatusOK, webhookAck{Received: true, Ignored: "amount mismatch"})
		return
	}

	to := orders.StatusPaid
	if p.State == payment.StateFailed {
		to = orders.StatusFailed
	}
	ok, err := h.Orders.TransitionStatus(ctx, orderID, orders.StatusPending, to)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		// duplicate delivery or terminal order: acknowledged, logged, no mutation
		h.Log.Info("webhook transition rejected by state guard",
			"order_id", orderID, "current", string(order.Status), "requested", string(to))
		writeJSON(w, http.StatusOK, webhookAck{Received: true, Ignored: "order not pending"})
		return
	}
	if h.Cache != nil {
		h.Cache.Set(ctx, orderID, to)
	}
	h.Log.Info("payment confirmation applied", "order_id", orderID, "status", string(to))

	if to == orders.StatusPaid && h.Producer != nil {
		ev := orders.Envelope{
			EventID:       uuid.NewString(),
			EventType:     orders.EventOrderPaid,
			EventVersion:  1,
			OccurredAt:    time.Now().UTC(),
			Producer:      h.Service,
			TraceID:       middleware.GetReqID(r.Context()),
			CorrelationID: orderID,
			Payload:       kafkax.MustMarshal(orders.OrderPaidPayload{OrderID: orderID, Amount: p.Amount}),
		}
		h.Producer.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
			kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPaid)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}
	writeJSON(w, http.StatusOK, webhookAck{Received: true})
}
