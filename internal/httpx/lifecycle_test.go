package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"testing"

	"github.com/poscart/fulfillment/internal/auth"
	"github.com/poscart/fulfillment/internal/cart"
	"github.com/poscart/fulfillment/internal/catalog"
	"github.com/poscart/fulfillment/internal/checkout"
	"github.com/poscart/fulfillment/internal/errs"
	"github.com/poscart/fulfillment/internal/fulfillment"
	"github.com/poscart/fulfillment/internal/orders"
	"github.com/poscart/fulfillment/internal/payment"
)

type stockCatalog struct {
	mu       sync.Mutex
	products map[int]*catalog.Product
}

func newStockCatalog(ps ...catalog.Product) *stockCatalog {
	c := &stockCatalog{products: make(map[int]*catalog.Product)}
	for i := range ps {
		p := ps[i]
		c.products[p.ID] = &p
	}
	return c
}

func (c *stockCatalog) GetByID(_ context.Context, id int) (*catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, &errs.NotFound{Kind: "product", Key: strconv.Itoa(id)}
	}
	cp := *p
	return &cp, nil
}

func (c *stockCatalog) GetByBarcode(_ context.Context, barcode string) (*catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.products {
		if p.Barcode != nil && *p.Barcode == barcode {
			cp := *p
			return &cp, nil
		}
	}
	return nil, &errs.NotFound{Kind: "product", Key: barcode}
}

func (c *stockCatalog) GetByBarcodes(ctx context.Context, barcodes []string) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, bc := range barcodes {
		if p, err := c.GetByBarcode(ctx, bc); err == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (c *stockCatalog) List(_ context.Context) ([]catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []catalog.Product
	for _, p := range c.products {
		out = append(out, *p)
	}
	return out, nil
}

func (c *stockCatalog) DecrementStock(_ context.Context, id, qty int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok || p.Quantity < qty {
		return false, nil
	}
	p.Quantity -= qty
	return true, nil
}

func (c *stockCatalog) IncrementStock(_ context.Context, id, qty int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return &errs.NotFound{Kind: "product", Key: strconv.Itoa(id)}
	}
	p.Quantity += qty
	return nil
}

func (c *stockCatalog) quantity(id int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.products[id].Quantity
}

type memCarts struct {
	mu    sync.Mutex
	lines map[string]map[string]cart.Line
}

func newMemCarts() *memCarts {
	return &memCarts{lines: make(map[string]map[string]cart.Line)}
}

func (m *memCarts) total(identity string) int {
	n := 0
	for _, l := range m.lines[identity] {
		n += l.Quantity
	}
	return n
}

func (m *memCarts) AddLine(_ context.Context, identity string, line cart.Line) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lines[identity] == nil {
		m.lines[identity] = make(map[string]cart.Line)
	}
	if cur, ok := m.lines[identity][line.Barcode]; ok {
		cur.Quantity += line.Quantity
		m.lines[identity][line.Barcode] = cur
	} else {
		m.lines[identity][line.Barcode] = line
	}
	return m.total(identity), nil
}

func (m *memCarts) RemoveLine(_ context.Context, identity, barcode string, qty int) (bool, int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.lines[identity][barcode]
	if !ok || cur.Quantity < qty {
		return false, cur.Quantity, 0, nil
	}
	if cur.Quantity == qty {
		delete(m.lines[identity], barcode)
	} else {
		cur.Quantity -= qty
		m.lines[identity][barcode] = cur
	}
	return true, cur.Quantity, m.total(identity), nil
}

func (m *memCarts) Lines(_ context.Context, identity string) ([]cart.Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []cart.Line
	for _, l := range m.lines[identity] {
		out = append(out, l)
	}
	return out, nil
}

func (m *memCarts) TotalItems(_ context.Context, identity string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total(identity), nil
}

type staticQR struct{}

func (staticQR) GenerateCode(_ context.Context, _ int, _ string) (string, error) {
	return "QRDATA", nil
}

// TestOrderLifecycle drives one order through every stage over shared stores:
// cart add, checkout, payment confirmation, fulfillment.
func TestOrderLifecycle(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	barcode := "111"
	cat := newStockCatalog(catalog.Product{
		ID: 1, Name: "Milk", Price: 10.00, Quantity: 10, Barcode: &barcode,
	})
	carts := newMemCarts()
	repo := newStubOrders()

	engine := &cart.Engine{Carts: carts, Catalog: cat, Log: log}
	checkoutSvc := &checkout.Service{Orders: repo, QR: staticQR{}, Log: log}
	handler := webhookHandler(repo)
	worker := &fulfillment.Service{
		Orders:      repo,
		Catalog:     cat,
		ServiceName: "fulfillment-test",
		Log:         log,
	}
	caller := auth.TokenData{Identity: "user@example.com", Role: auth.RoleShopClient}

	// cart: 2x Milk
	op, err := engine.ApplyOp(ctx, caller.Identity, barcode, cart.ActionAdd, 2)
	if err != nil {
		t.Fatalf("cart add: %v", err)
	}
	if !op.Success || op.CartTotalItems != 2 {
		t.Fatalf("unexpected cart result: %+v", op)
	}

	// checkout the carted snapshot: 20.00 + 5.00 shipping
	carted, err := engine.GetCart(ctx, caller.Identity)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	items := make([]orders.Item, 0, len(carted))
	for _, p := range carted {
		items = append(items, orders.Item{
			ProductID: p.ID,
			Barcode:   p.Barcode,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  p.Quantity,
		})
	}
	res, err := checkoutSvc.Checkout(ctx, caller, checkout.Request{
		Items:        items,
		ShippingCost: 5.00,
		Subtotal:     20.00,
		TotalCost:    25.00,
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if got, _ := repo.GetStatus(ctx, res.OrderID); got != orders.StatusPending {
		t.Fatalf("expected pending after checkout, got %s", got)
	}

	// provider confirms the charged amount
	order, err := repo.Get(ctx, res.OrderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	rec := postWebhook(t, handler, signedWebhook(res.OrderID, payment.StateSuccess, order.Amount))
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook: %d %s", rec.Code, rec.Body)
	}
	if ack := decodeAck(t, rec); ack.Ignored != "" {
		t.Fatalf("confirmation ignored: %+v", ack)
	}
	if got, _ := repo.GetStatus(ctx, res.OrderID); got != orders.StatusPaid {
		t.Fatalf("expected paid after webhook, got %s", got)
	}

	// worker settles stock and completes the order
	if err := worker.Process(ctx, res.OrderID, "trace-1"); err != nil {
		t.Fatalf("fulfillment: %v", err)
	}
	if got, _ := repo.GetStatus(ctx, res.OrderID); got != orders.StatusCompleted {
		t.Fatalf("expected completed after fulfillment, got %s", got)
	}
	if got := cat.quantity(1); got != 8 {
		t.Fatalf("expected stock 10 -> 8, got %d", got)
	}
}
