// Package fulfillment settles stock for paid orders. Reservation pre-checks in
// the cart are advisory; this is where stock is actually committed.
package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/poscart/fulfillment/internal/catalog"
	"github.com/poscart/fulfillment/internal/errs"
	"github.com/poscart/fulfillment/internal/kafkax"
	"github.com/poscart/fulfillment/internal/orders"
	"github.com/poscart/fulfillment/internal/redisx"
)

// StatusCache is the write side of the polling cache.
type StatusCache interface {
	Set(ctx context.Context, orderID string, status orders.Status)
}

type Service struct {
	Orders         orders.Repository
	Catalog        catalog.Repository
	Redis          *redis.Client
	Cache          StatusCache
	ProducerOK     *kafkax.Producer // publishes order.fulfilled
	ProducerReject *kafkax.Producer // publishes order.fulfillment.rejected
	ServiceName    string
	Log            *slog.Logger
}

// HandleOrderPaid is the consumer handler for the order.paid topic.
func (s *Service) HandleOrderPaid(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderPaid {
		return nil // ignore
	}

	// dedup via event_id; the status guard below is the real idempotency wall
	if s.Redis != nil {
		dkey := fmt.Sprintf(redisx.KeyDedup, "fulfillment", env.EventID)
		exists, _ := redisx.Exists(ctx, s.Redis, dkey)
		if exists {
			return nil
		}
		_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}

	p, err := kafkax.UnwrapPayload[orders.OrderPaidPayload](env.Payload)
	if err != nil {
		return err
	}
	return s.Process(ctx, p.OrderID, env.TraceID)
}

// Process commits stock for one paid order. Safe to re-run: an order that is
// missing or no longer paid is a no-op, so redelivered jobs cannot double-
// decrement. A shortfall on any line triggers saga compensation: every already
// applied decrement is reversed and the order is marked failed.
func (s *Service) Process(ctx context.Context, orderID, trace string) error {
	order, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		var nf *errs.NotFound
		if errors.As(err, &nf) {
			s.Log.Warn("order missing, skipping", "order_id", orderID)
			return nil
		}
		return err
	}
	if order.Status != orders.StatusPaid {
		s.Log.Info("order not in paid state, skipping",
			"order_id", orderID, "status", string(order.Status))
		return nil
	}

	// fixed processing order avoids inconsistent lock ordering across
	// concurrent orders touching overlapping products
	items := make([]orders.Item, len(order.Items))
	copy(items, order.Items)
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	var applied []orders.Item
	for _, it := range items {
		ok, err := s.Catalog.DecrementStock(ctx, it.ProductID, it.Quantity)
		if err != nil {
			return err // store fault: leave the job for redelivery
		}
		if !ok {
			s.compensate(ctx, orderID, applied)
			s.fail(ctx, orderID, it, trace)
			return nil
		}
		applied = append(applied, it)
		s.Log.Info("stock committed", "order_id", orderID,
			"product_id", it.ProductID, "qty", it.Quantity)
	}

	ok, err := s.Orders.TransitionStatus(ctx, orderID, orders.StatusPaid, orders.StatusCompleted)
	if err != nil {
		return err
	}
	if !ok {
		// raced with another transition; stock is committed but the order
		// reached a terminal state elsewhere
		s.Log.Warn("completed transition rejected by state guard", "order_id", orderID)
		return nil
	}
	if s.Cache != nil {
		s.Cache.Set(ctx, orderID, orders.StatusCompleted)
	}
	s.publishFulfilled(orderID, trace)
	s.Log.Info("order fulfilled", "order_id", orderID)
	return nil
}

// compensate reverses already-applied decrements. This is a saga-style
// rollback, not a transaction: the store only guarantees per-row atomicity.
func (s *Service) compensate(ctx context.Context, orderID string, applied []orders.Item) {
	for _, it := range applied {
		if err := s.Catalog.IncrementStock(ctx, it.ProductID, it.Quantity); err != nil {
			s.Log.Error("compensation failed", "order_id", orderID,
				"product_id", it.ProductID, "qty", it.Quantity, "error", err)
		}
	}
}

func (s *Service) fail(ctx context.Context, orderID string, short orders.Item, trace string) {
	ok, err := s.Orders.TransitionStatus(ctx, orderID, orders.StatusPaid, orders.StatusFailed)
	if err != nil {
		s.Log.Error("failed transition errored", "order_id", orderID, "error", err)
	} else if !ok {
		s.Log.Warn("failed transition rejected by state guard", "order_id", orderID)
	}
	// a rejected guard means the order went terminal elsewhere; the cache
	// must not shadow that status
	if ok && s.Cache != nil {
		s.Cache.Set(ctx, orderID, orders.StatusFailed)
	}

	detail := &orders.StockShortfall{
		ProductID: short.ProductID,
		Name:      short.Name,
		Required:  short.Quantity,
		Available: -1,
	}
	if p, err := s.Catalog.GetByID(ctx, short.ProductID); err == nil {
		detail.Available = p.Quantity
	}
	s.publishRejected(orderID, detail, trace)
	s.Log.Warn("order fulfillment rejected", "order_id", orderID,
		"product_id", short.ProductID, "required", short.Quantity, "available", detail.Available)
}

func (s *Service) publishFulfilled(orderID, trace string) {
	if s.ProducerOK == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderFulfilled,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(orders.OrderFulfilledPayload{OrderID: orderID}),
	}
	s.ProducerOK.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderFulfilled)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Service) publishRejected(orderID string, detail *orders.StockShortfall, trace string) {
	if s.ProducerReject == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventFulfillmentRejected,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: orderID,
		Payload: kafkax.MustMarshal(orders.FulfillmentRejectedPayload{
			OrderID: orderID, Reason: "OUT_OF_STOCK", Detail: detail,
		}),
	}
	s.ProducerReject.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventFulfillmentRejected)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
