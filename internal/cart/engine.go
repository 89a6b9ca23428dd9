package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poscart/fulfillment/internal/catalog"
	"github.com/poscart/fulfillment/internal/errs"
)

const (
	ActionAdd    = "add"
	ActionRemove = "remove"
)

type OpResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	CartTotalItems int    `json:"cart_total_items"`
}

// Engine validates and applies cart mutations against live catalog stock.
// Stock checks here are advisory pre-checks; actual stock commitment happens
// only in the fulfillment worker.
type Engine struct {
	Carts   Repository
	Catalog catalog.Repository
	Log     *slog.Logger
}

// ApplyOp executes one add/remove against the user's cart. Failed validations
// return a structured result with no mutation; only store/catalog faults are
// returned as errors.
func (e *Engine) ApplyOp(ctx context.Context, identity, barcode, action string, qty int) (OpResult, error) {
	if qty <= 0 {
		return OpResult{}, errs.Validationf("quantity must be positive, got %d", qty)
	}
	if action != ActionAdd && action != ActionRemove {
		return OpResult{}, errs.Validationf("unknown action: %s", action)
	}

	product, err := e.Catalog.GetByBarcode(ctx, barcode)
	if err != nil {
		var nf *errs.NotFound
		if errors.As(err, &nf) {
			return OpResult{
				Success: false,
				Message: fmt.Sprintf("Unknown barcode: %s", barcode),
			}, nil
		}
		return OpResult{}, err
	}

	switch action {
	case ActionAdd:
		if product.Quantity < qty {
			total, err := e.Carts.TotalItems(ctx, identity)
			if err != nil {
				return OpResult{}, err
			}
			return OpResult{
				Success:        false,
				Message:        fmt.Sprintf("Insufficient stock. Available: %d, Requested: %d", product.Quantity, qty),
				CartTotalItems: total,
			}, nil
		}
		total, err := e.Carts.AddLine(ctx, identity, Line{
			Barcode:  barcode,
			Name:     product.Name,
			Price:    product.Price,
			Quantity: qty,
		})
		if err != nil {
			return OpResult{}, err
		}
		e.Log.Info("cart updated", "identity", identity, "action", action, "barcode", barcode, "qty", qty)
		return OpResult{
			Success:        true,
			Message:        fmt.Sprintf("Cart updated: add %dx %s", qty, product.Name),
			CartTotalItems: total,
		}, nil

	default: // ActionRemove
		ok, available, total, err := e.Carts.RemoveLine(ctx, identity, barcode, qty)
		if err != nil {
			return OpResult{}, err
		}
		if !ok {
			// the failed script run reports no total; recompute it
			total, err = e.Carts.TotalItems(ctx, identity)
			if err != nil {
				return OpResult{}, err
			}
			return OpResult{
				Success:        false,
				Message:        fmt.Sprintf("Not enough items in cart. Available: %d, Requested: %d", available, qty),
				CartTotalItems: total,
			}, nil
		}
		e.Log.Info("cart updated", "identity", identity, "action", action, "barcode", barcode, "qty", qty)
		return OpResult{
			Success:        true,
			Message:        fmt.Sprintf("Cart updated: remove %dx %s", qty, product.Name),
			CartTotalItems: total,
		}, nil
	}
}

// GetCart joins stored cart lines with live catalog metadata. Lines whose
// barcode no longer resolves are dropped silently: a product deleted after
// being carted is not an error.
func (e *Engine) GetCart(ctx context.Context, identity string) ([]catalog.Product, error) {
	lines, err := e.Carts.Lines(ctx, identity)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return []catalog.Product{}, nil
	}

	barcodes := make([]string, 0, len(lines))
	for _, l := range lines {
		barcodes = append(barcodes, l.Barcode)
	}
	products, err := e.Catalog.GetByBarcodes(ctx, barcodes)
	if err != nil {
		return nil, err
	}
	byBarcode := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		if p.Barcode != nil {
			byBarcode[*p.Barcode] = p
		}
	}

	out := make([]catalog.Product, 0, len(lines))
	for _, l := range lines {
		p, ok := byBarcode[l.Barcode]
		if !ok {
			continue
		}
		p.Quantity = l.Quantity
		out = append(out, p)
	}
	return out, nil
}
