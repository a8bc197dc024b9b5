package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product represents a stock item listed by a seller. Quantity is never
// negative and is mutated only through the inventory repository.
type Product struct {
	ID           uuid.UUID `json:"id" db:"id"`
	OwnerID      uuid.UUID `json:"owner_id" db:"owner_id"`
	Name         string    `json:"name" db:"name"`
	Category     string    `json:"category" db:"category"`
	Price        float64   `json:"price" db:"price"`
	Quantity     int       `json:"quantity" db:"quantity"`
	MinOrder     int       `json:"min_order" db:"min_order"`
	MinThreshold int       `json:"min_threshold" db:"min_threshold"`
	Supplier     string    `json:"supplier" db:"supplier"`
	Location     string    `json:"location" db:"location"`
	Version      int64     `json:"version" db:"version"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// LowStock reports whether the product is currently at or below its
// restock threshold. Evaluated at read time, not stored.
func (p *Product) LowStock() bool {
	return p.Quantity <= p.MinThreshold
}

// MovementType classifies a stock mutation.
type MovementType string

const (
	MovementReserve MovementType = "reserve"
	MovementRelease MovementType = "release"
	MovementRestock MovementType = "restock"
)

// StockMovement is an audit row recorded alongside every stock mutation.
// Reserve movements carry the order ID they were made for, which is what
// orphan-reservation detection joins against.
type StockMovement struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	ProductID uuid.UUID    `json:"product_id" db:"product_id"`
	OrderID   uuid.UUID    `json:"order_id" db:"order_id"`
	Quantity  int          `json:"quantity" db:"quantity"`
	Movement  MovementType `json:"movement" db:"movement"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

// StockStats summarizes a seller's inventory.
type StockStats struct {
	TotalItems    int     `json:"totalItems"`
	TotalValue    float64 `json:"totalValue"`
	LowStockItems int     `json:"lowStockItems"`
}
