package products

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Recipe is free-text serving instructions attached to a product.
type Recipe struct {
	Name         string `json:"name"`
	Ingredients  string `json:"ingredients"`
	Instructions string `json:"instructions"`
}

// Dimensions are physical measurements in whatever unit the storefront uses.
type Dimensions struct {
	Length float64 `json:"length" validate:"gte=0"`
	Width  float64 `json:"width" validate:"gte=0"`
	Height float64 `json:"height" validate:"gte=0"`
}

// Ratings are aggregated externally; this service only stores and returns them.
type Ratings struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// CategoryRef is the flattened category shape exposed on product reads.
type CategoryRef struct {
	ID   uuid.UUID `json:"_id"`
	Name string    `json:"name"`
}

type Product struct {
	ID            uuid.UUID   `json:"_id"`
	Name          string      `json:"name"`
	SKU           string      `json:"sku"`
	Barcode       *string     `json:"barcode,omitempty"`
	Description   string      `json:"description"`
	Price         float64     `json:"price"`
	CostPrice     *float64    `json:"costPrice,omitempty"`
	CategoryID    uuid.UUID   `json:"-"`
	CategoryName  string      `json:"-"`
	Stock         int         `json:"stock"`
	Volume        *float64    `json:"volume,omitempty"`
	VolumeUnit    *string     `json:"volumeUnit,omitempty"`
	Weight        *float64    `json:"weight,omitempty"`
	Dimensions    *Dimensions `json:"dimensions,omitempty"`
	Images        []string    `json:"images"`
	IsActive      bool        `json:"isActive"`
	Tags          []string    `json:"tags"`
	Recipes       []Recipe    `json:"recipes"`
	Ratings       Ratings     `json:"ratings"`
	SelectedPages []string    `json:"selectedPages"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// FormattedPrice renders the price the way the storefront displays it.
func (p *Product) FormattedPrice() string {
	return fmt.Sprintf("$%.2f", p.Price)
}

// Category returns the flattened reference used in responses.
func (p *Product) Category() CategoryRef {
	return CategoryRef{ID: p.CategoryID, Name: p.CategoryName}
}
