package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item represents a catalogue item that can be rented out or listed for sale.
type Item struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Status      string              `json:"status"`
	DailyRate   decimal.Decimal     `json:"daily_rate"`
	IsRentable  bool                `json:"is_rentable"`
	IsSaleable  bool                `json:"is_saleable"`
	SaleStatus  string              `json:"sale_status,omitempty"`
	SalePrice   decimal.NullDecimal `json:"sale_price"`
	ListedAt    *time.Time          `json:"listed_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	DeletedAt   *time.Time          `json:"deleted_at,omitempty"`
}

// Item statuses.
const (
	ItemStatusActive  = "active"
	ItemStatusDamaged = "damaged"
	ItemStatusLost    = "lost"
	ItemStatusRetired = "retired"
)

// SaleStatusListed marks an item that is on offer.
const SaleStatusListed = "listed"

// ValidItemStatus reports whether status is a known item status.
func ValidItemStatus(status string) bool {
	switch status {
	case ItemStatusActive, ItemStatusDamaged, ItemStatusLost, ItemStatusRetired:
		return true
	}
	return false
}
