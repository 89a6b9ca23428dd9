package catalog

// Product is a catalog record. Quantity is stock on hand; the cart read path
// reuses the same shape with Quantity carrying the carted amount instead.
type Product struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	Subtitle      string  `json:"subtitle"`
	Price         float64 `json:"price"`
	Currency      string  `json:"currency"`
	Unit          string  `json:"unit"`
	Quantity      int     `json:"quantity"`
	ProductImgURL *string `json:"product_img_url,omitempty"`
	Barcode       *string `json:"barcode,omitempty"`
}
