package domain

import "time"

// CheckoutItem is the line-item snapshot sent to the backend when a checkout
// is created. Amount carries the cart quantity, not the stock ceiling.
type CheckoutItem struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Number      string   `json:"number"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	ColorGroups []string `json:"color_groups"`
	Price       float64  `json:"price"`
	Amount      int      `json:"amount"`
	ImgSrc      string   `json:"img_src"`
	ObjectSrc   string   `json:"object_src"`
}

// Checkout is the server-tracked snapshot of an intended purchase. Number is
// the opaque identifier the backend assigns; it is the durable key used to
// reconcile across reloads. Paid is owned by the server and always submitted
// as false.
type Checkout struct {
	ID     string         `json:"id,omitempty"`
	UserID string         `json:"userid"`
	Items  []CheckoutItem `json:"items"`
	Sum    float64        `json:"sum"`
	Paid   bool           `json:"paid"`
	Date   time.Time      `json:"date"`
	Number string         `json:"number,omitempty"`
}

// OrderTotals breaks the checkout sum down the way the order summary shows
// it: flat shipping on any non-empty cart plus 19% VAT.
type OrderTotals struct {
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}
