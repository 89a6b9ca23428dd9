package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/poscart/fulfillment/internal/errs"
)

// Repository exposes the atomic order operations the orchestrator, webhook
// handler and worker need. TransitionStatus is a compare-and-set: two racing
// transitions on the same order can never both succeed.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, orderID string) (*Order, error)
	GetStatus(ctx context.Context, orderID string) (Status, error)
	// History returns the user's orders excluding those still pending,
	// newest first.
	History(ctx context.Context, identity string) ([]Order, error)
	TransitionStatus(ctx context.Context, orderID string, from, to Status) (bool, error)
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Create(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(order_id, user_identity, subtotal, shipping_cost, total_cost, amount, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		o.OrderID, o.UserIdentity, o.Subtotal, o.ShippingCost, o.TotalCost, o.Amount, string(o.Status), o.CreatedAt)
	if err != nil {
		return err
	}
	for _, it := range o.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, barcode, name, price, quantity)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			o.OrderID, it.ProductID, it.Barcode, it.Name, it.Price, it.Quantity)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repo) Get(ctx context.Context, orderID string) (*Order, error) {
	var o Order
	var status string
	err := r.DB.QueryRow(ctx, `
		SELECT order_id, user_identity, subtotal, shipping_cost, total_cost, amount, status, created_at
		FROM orders WHERE order_id=$1`, orderID).
		Scan(&o.OrderID, &o.UserIdentity, &o.Subtotal, &o.ShippingCost, &o.TotalCost, &o.Amount, &status, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &errs.NotFound{Kind: "order", Key: orderID}
	}
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)

	rows, err := r.DB.Query(ctx, `
		SELECT product_id, barcode, name, price, quantity
		FROM order_items WHERE order_id=$1 ORDER BY product_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Barcode, &it.Name, &it.Price, &it.Quantity); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) GetStatus(ctx context.Context, orderID string) (Status, error) {
	var s string
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE order_id=$1`, orderID).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", &errs.NotFound{Kind: "order", Key: orderID}
	}
	if err != nil {
		return "", err
	}
	return Status(s), nil
}

func (r *Repo) History(ctx context.Context, identity string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT order_id, user_identity, subtotal, shipping_cost, total_cost, amount, status, created_at
		FROM orders
		WHERE user_identity=$1 AND status <> $2
		ORDER BY created_at DESC`, identity, string(StatusPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]*Order)
	var ids []string
	for rows.Next() {
		var o Order
		var status string
		if err := rows.Scan(&o.OrderID, &o.UserIdentity, &o.Subtotal, &o.ShippingCost, &o.TotalCost, &o.Amount, &status, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.Status = Status(status)
		o.Items = []Item{}
		byID[o.OrderID] = &o
		ids = append(ids, o.OrderID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Order{}, nil
	}

	itemRows, err := r.DB.Query(ctx, `
		SELECT order_id, product_id, barcode, name, price, quantity
		FROM order_items WHERE order_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var orderID string
		var it Item
		if err := itemRows.Scan(&orderID, &it.ProductID, &it.Barcode, &it.Name, &it.Price, &it.Quantity); err != nil {
			return nil, err
		}
		byID[orderID].Items = append(byID[orderID].Items, it)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	out := make([]Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, *byID[id])
	}
	return out, nil
}

func (r *Repo) TransitionStatus(ctx context.Context, orderID string, from, to Status) (bool, error) {
	if !CanTransition(from, to) {
		return false, nil
	}
	ct, err := r.DB.Exec(ctx,
		`UPDATE orders SET status=$3 WHERE order_id=$1 AND status=$2`,
		orderID, string(from), string(to))
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}
