package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shopsy/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// OrderRepository is the order ledger: it owns the order rows and the
// transactional coupling between a terminal status write and the stock
// release it implies.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to domain.OrderStatus) error
	SetEmailSent(ctx context.Context, orderID uuid.UUID) error
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.OrderView, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.OrderView, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create inserts a new order into the database
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (id, buyer_id, product_id, quantity, unit_price, total_price, status, email_sent, added_to_stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		order.ID,
		order.BuyerID,
		order.ProductID,
		order.Quantity,
		order.UnitPrice,
		order.TotalPrice,
		order.Status,
		order.EmailSent,
		order.AddedToStock,
		order.CreatedAt,
		order.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

const orderColumns = `id, buyer_id, product_id, quantity, unit_price, total_price, status, email_sent, added_to_stock, created_at, updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (*domain.Order, error) {
	order := &domain.Order{}
	err := row.Scan(
		&order.ID,
		&order.BuyerID,
		&order.ProductID,
		&order.Quantity,
		&order.UnitPrice,
		&order.TotalPrice,
		&order.Status,
		&order.EmailSent,
		&order.AddedToStock,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// FindByID retrieves an order by ID
func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, orderColumns)

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}

	return order, nil
}

// UpdateStatus moves an order from one status to another. The write is
// guarded on the expected current status, so a concurrent transition or a
// retried cancel matches zero rows and reports ErrInvalidTransition
// instead of applying twice. When the new status releases stock
// (cancelled, rejected), the quantity is returned to the product inside
// the same transaction: a reader can never observe released stock next to
// a non-terminal status.
func (r *orderRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to domain.OrderStatus) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin status update: %w", err)
	}
	defer tx.Rollback()

	var (
		productID uuid.UUID
		qty       int
	)
	err = tx.QueryRowContext(ctx, `
		UPDATE orders
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING product_id, quantity
	`, orderID, from, to, time.Now().UTC()).Scan(&productID, &qty)

	if err == sql.ErrNoRows {
		return ErrInvalidTransition
	}
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	if to.ReleasesStock() {
		if err := releaseStockTx(ctx, tx, productID, orderID, qty); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit status update: %w", err)
	}

	return nil
}

// SetEmailSent flags an order's confirmation mail as delivered.
// Best-effort bookkeeping for the delivery sink; the flag never gates
// core behavior.
func (r *orderRepository) SetEmailSent(ctx context.Context, orderID uuid.UUID) error {
	query := `UPDATE orders SET email_sent = TRUE, updated_at = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, orderID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set email sent flag: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// ListByBuyer lists a buyer's purchases joined with product and seller
// display fields. The join is presentation data, not a core invariant.
func (r *orderRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.OrderView, error) {
	query := fmt.Sprintf(`
		SELECT %s, p.name, u.name, u.shop_name, u.phone
		FROM orders o
		JOIN products p ON p.id = o.product_id
		JOIN users u ON u.id = p.owner_id
		WHERE o.buyer_id = $1
		ORDER BY o.created_at DESC
	`, prefixedOrderColumns("o"))

	rows, err := r.db.QueryContext(ctx, query, buyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer rows.Close()

	return collectOrderViews(rows)
}

// ListBySeller lists the orders placed against a seller's products, joined
// with buyer display fields.
func (r *orderRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.OrderView, error) {
	query := fmt.Sprintf(`
		SELECT %s, p.name, u.name, u.shop_name, u.phone
		FROM orders o
		JOIN products p ON p.id = o.product_id
		JOIN users u ON u.id = o.buyer_id
		WHERE p.owner_id = $1
		ORDER BY o.created_at DESC
	`, prefixedOrderColumns("o"))

	rows, err := r.db.QueryContext(ctx, query, sellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	defer rows.Close()

	return collectOrderViews(rows)
}

func prefixedOrderColumns(alias string) string {
	return fmt.Sprintf(
		"%[1]s.id, %[1]s.buyer_id, %[1]s.product_id, %[1]s.quantity, %[1]s.unit_price, %[1]s.total_price, %[1]s.status, %[1]s.email_sent, %[1]s.added_to_stock, %[1]s.created_at, %[1]s.updated_at",
		alias,
	)
}

func collectOrderViews(rows *sql.Rows) ([]*domain.OrderView, error) {
	views := []*domain.OrderView{}
	for rows.Next() {
		v := &domain.OrderView{}
		err := rows.Scan(
			&v.ID,
			&v.BuyerID,
			&v.ProductID,
			&v.Quantity,
			&v.UnitPrice,
			&v.TotalPrice,
			&v.Status,
			&v.EmailSent,
			&v.AddedToStock,
			&v.CreatedAt,
			&v.UpdatedAt,
			&v.ProductName,
			&v.CounterpartyName,
			&v.CounterpartyShop,
			&v.CounterpartyTel,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order view: %w", err)
		}
		views = append(views, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return views, nil
}
