package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the canonical order lifecycle vocabulary.
type OrderStatus string

const (
	StatusPlaced     OrderStatus = "placed"
	StatusAccepted   OrderStatus = "accepted"
	StatusRejected   OrderStatus = "rejected"
	StatusDispatched OrderStatus = "dispatched"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// orderTransitions is the full transition table. Any pair not listed is an
// invalid transition. Cancellation is only possible from accepted;
// dispatched orders are committed to delivery.
var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusPlaced:     {StatusAccepted, StatusRejected},
	StatusAccepted:   {StatusDispatched, StatusCancelled},
	StatusDispatched: {StatusDelivered},
	StatusDelivered:  {},
	StatusRejected:   {},
	StatusCancelled:  {},
}

// Valid reports whether s is a known status value.
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// CanTransitionTo reports whether the state machine allows moving from s
// to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

// ReleasesStock reports whether entering s must return the order's
// reserved quantity to the product.
func (s OrderStatus) ReleasesStock() bool {
	return s == StatusCancelled || s == StatusRejected
}

// Order is a buyer's purchase of a product. Quantity and price are frozen
// at placement time; later product edits do not affect them. Exactly one
// stock reservation belongs to each order, reversed at most once when the
// order is cancelled or rejected.
type Order struct {
	ID           uuid.UUID   `json:"id" db:"id"`
	BuyerID      uuid.UUID   `json:"buyer_id" db:"buyer_id"`
	ProductID    uuid.UUID   `json:"product_id" db:"product_id"`
	Quantity     int         `json:"quantity" db:"quantity"`
	UnitPrice    float64     `json:"unit_price" db:"unit_price"`
	TotalPrice   float64     `json:"total_price" db:"total_price"`
	Status       OrderStatus `json:"status" db:"status"`
	EmailSent    bool        `json:"email_sent" db:"email_sent"`
	AddedToStock bool        `json:"added_to_stock" db:"added_to_stock"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

// OrderView is an order joined with display data for listing purchases and
// sales. The counterparty fields are presentation-only and not validated
// by the core.
type OrderView struct {
	Order
	ProductName      string `json:"product_name" db:"product_name"`
	CounterpartyName string `json:"counterparty_name" db:"counterparty_name"`
	CounterpartyShop string `json:"counterparty_shop" db:"counterparty_shop"`
	CounterpartyTel  string `json:"counterparty_phone" db:"counterparty_phone"`
}
