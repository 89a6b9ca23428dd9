package catalog

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/poscart/fulfillment/internal/errs"
)

// Repository exposes the only catalog operations the engine and worker need.
// Stock mutations are conditional atomic updates; quantity can never go negative.
type Repository interface {
	GetByID(ctx context.Context, productID int) (*Product, error)
	GetByBarcode(ctx context.Context, barcode string) (*Product, error)
	GetByBarcodes(ctx context.Context, barcodes []string) ([]Product, error)
	List(ctx context.Context) ([]Product, error)
	// DecrementStock subtracts qty only if current stock >= qty.
	// Returns false (and no error) when the precondition fails.
	DecrementStock(ctx context.Context, productID, qty int) (bool, error)
	IncrementStock(ctx context.Context, productID, qty int) error
}

type Repo struct{ DB *pgxpool.Pool }

const productCols = `id, name, subtitle, price, currency, unit, quantity, product_img_url, barcode`

func (r *Repo) GetByID(ctx context.Context, productID int) (*Product, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1`, productID)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &errs.NotFound{Kind: "product", Key: strconv.Itoa(productID)}
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) GetByBarcode(ctx context.Context, barcode string) (*Product, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE barcode=$1`, barcode)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &errs.NotFound{Kind: "product", Key: barcode}
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) GetByBarcodes(ctx context.Context, barcodes []string) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productCols+` FROM products WHERE barcode = ANY($1)`, barcodes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

func (r *Repo) List(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productCols+` FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

func (r *Repo) DecrementStock(ctx context.Context, productID, qty int) (bool, error) {
	ct, err := r.DB.Exec(ctx,
		`UPDATE products SET quantity = quantity - $2 WHERE id=$1 AND quantity >= $2`,
		productID, qty)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) IncrementStock(ctx context.Context, productID, qty int) error {
	ct, err := r.DB.Exec(ctx,
		`UPDATE products SET quantity = quantity + $2 WHERE id=$1`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return &errs.NotFound{Kind: "product", Key: strconv.Itoa(productID)}
	}
	return nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Subtitle, &p.Price, &p.Currency, &p.Unit,
		&p.Quantity, &p.ProductImgURL, &p.Barcode)
	return p, err
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
