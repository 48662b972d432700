package domain

import "strings"

const DefaultCategory = "Slime"

// Product is the descriptor handed to the cart when a customer adds an item.
type Product struct {
	ID        string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Category  string  `json:"category"`
}

// Normalize trims text fields and fills defaults so a CartLine never carries
// empty display data or a negative price.
func (p Product) Normalize() Product {
	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	p.Category = strings.TrimSpace(p.Category)
	if p.Name == "" {
		p.Name = p.ID
	}
	if p.Category == "" {
		p.Category = DefaultCategory
	}
	if p.UnitPrice < 0 {
		p.UnitPrice = 0
	}
	return p
}

type CartLine struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Category  string  `json:"category"`
	Quantity  int     `json:"quantity"`
}

func NewCartLine(p Product, quantity int) CartLine {
	p = p.Normalize()
	return CartLine{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.UnitPrice,
		Category:  p.Category,
		Quantity:  quantity,
	}
}

// LineTotal is unit price times quantity, in floating point.
func (l CartLine) LineTotal() float64 {
	return l.UnitPrice * float64(l.Quantity)
}

// CartState is a read-only snapshot of a cart store.
type CartState struct {
	Lines            []CartLine `json:"lines"`
	ItemCount        int        `json:"item_count"`
	IsPanelOpen      bool       `json:"is_panel_open"`
	IsAnimating      bool       `json:"is_animating"`
	LastAddedProduct *Product   `json:"last_added_product,omitempty"`
}

func (s CartState) IsEmpty() bool {
	return len(s.Lines) == 0
}

// Total sums every line in insertion order.
func Total(lines []CartLine) float64 {
	var total float64
	for _, l := range lines {
		total += l.LineTotal()
	}
	return total
}

func ItemCount(lines []CartLine) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}
