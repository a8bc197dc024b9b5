package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind identifies what a notification is about. Order kinds
// embed the status so each transition appends a new row instead of
// mutating an old one.
type NotificationKind string

const (
	KindStockLow   NotificationKind = "stock-low"
	KindStockAdded NotificationKind = "stock-added"
)

// OrderKind returns the notification kind for an order status, e.g.
// "order-dispatched".
func OrderKind(status OrderStatus) NotificationKind {
	return NotificationKind("order-" + string(status))
}

// Notification is a derived feed entry. At most one row exists per
// (recipient, kind, ref) tuple; re-derivation is an upsert, never an
// insert. Only the Read flag is ever mutated.
type Notification struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	RecipientID uuid.UUID        `json:"recipient_id" db:"recipient_id"`
	Kind        NotificationKind `json:"kind" db:"kind"`
	RefID       uuid.UUID        `json:"ref_id" db:"ref_id"`
	Message     string           `json:"message" db:"message"`
	Read        bool             `json:"read" db:"read"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
}
