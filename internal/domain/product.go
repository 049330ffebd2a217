package domain

import "time"

// Product is the catalog read model. The workflow engine only mutates
// QuantityOnHand; every other attribute belongs to the catalog collaborator.
type Product struct {
	ID             int64
	Code           string
	Name           string
	Description    string
	UnitPrice      float64
	QuantityOnHand int
	StockMinimum   int
	Location       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BelowMinimum reports whether on-hand stock sits at or under the floor.
func (p Product) BelowMinimum() bool {
	return p.QuantityOnHand <= p.StockMinimum
}
