package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Brand       string          `db:"brand" json:"brand"`
	Category    string          `db:"category" json:"category"`
	Size        string          `db:"size" json:"size"`
	Color       string          `db:"color" json:"color"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Stock       int32           `db:"stock" json:"stock"`
	Description string          `db:"description" json:"description"`
	ImageURL    string          `db:"image_url" json:"image_url"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// HasStock reports whether quantity units can be reserved. Non-positive
// quantities never qualify.
func (p *Product) HasStock(quantity int32) bool {
	return quantity >= 1 && quantity <= p.Stock
}

type UpdateProductInput struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Brand       *string          `json:"brand"`
	Category    *string          `json:"category"`
	Size        *string          `json:"size"`
	Color       *string          `json:"color"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int32           `json:"stock" validate:"omitempty,gte=0"`
	Description *string          `json:"description" validate:"omitempty,max=2000"`
	ImageURL    *string          `json:"image_url" validate:"omitempty,url"`
}
