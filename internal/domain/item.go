package domain

// Item is the catalog snapshot a cart line is built from. Amount is the
// stock ceiling known at the time the snapshot was taken; it is not
// re-validated against the catalog until the next add/update.
type Item struct {
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

// CartLine is one entry of the visitor's cart: the item snapshot plus the
// chosen quantity and, where the item offers color groups, the chosen color
// per group.
type CartLine struct {
	Item
	Quantity       int               `json:"quantity"`
	SelectedColors map[string]string `json:"selectedColors,omitempty"`
}

// Subtotal is the line's contribution to the cart total.
func (l CartLine) Subtotal() float64 {
	return l.Price * float64(l.Quantity)
}
