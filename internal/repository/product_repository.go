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
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStockAlreadyAdded = errors.New("order already added to stock")
	ErrOrderNotDelivered = errors.New("order has not been delivered")
)

// ProductRepository is the inventory store: product CRUD plus the atomic
// stock operations every order depends on.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Product, error)
	ListPublic(ctx context.Context) ([]*domain.Product, error)
	Stats(ctx context.Context, ownerID uuid.UUID) (*domain.StockStats, error)

	ReserveStock(ctx context.Context, productID, orderID uuid.UUID, qty int) error
	AddToOwnStock(ctx context.Context, buyerID, orderID uuid.UUID) (*domain.Product, error)
	ListOrphanReservations(ctx context.Context, olderThan time.Duration) ([]*domain.StockMovement, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

// Create inserts a new product into the database
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (id, owner_id, name, category, price, quantity, min_order, min_threshold, supplier, location, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.OwnerID,
		product.Name,
		product.Category,
		product.Price,
		product.Quantity,
		product.MinOrder,
		product.MinThreshold,
		product.Supplier,
		product.Location,
		product.Version,
		product.CreatedAt,
		product.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// Update rewrites a product's attributes, scoped to its owner. The version
// bump is part of the same statement so an edit never lands without
// advancing the version.
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET name = $3, category = $4, price = $5, quantity = $6, min_order = $7,
		    min_threshold = $8, supplier = $9, location = $10,
		    version = version + 1, updated_at = $11
		WHERE id = $1 AND owner_id = $2
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.OwnerID,
		product.Name,
		product.Category,
		product.Price,
		product.Quantity,
		product.MinOrder,
		product.MinThreshold,
		product.Supplier,
		product.Location,
		time.Now().UTC(),
	)

	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// Delete removes a product, scoped to its owner
func (r *productRepository) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	query := `DELETE FROM products WHERE id = $1 AND owner_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

const productColumns = `id, owner_id, name, category, price, quantity, min_order, min_threshold, supplier, location, version, created_at, updated_at`

func scanProduct(row interface{ Scan(...interface{}) error }) (*domain.Product, error) {
	product := &domain.Product{}
	err := row.Scan(
		&product.ID,
		&product.OwnerID,
		&product.Name,
		&product.Category,
		&product.Price,
		&product.Quantity,
		&product.MinOrder,
		&product.MinThreshold,
		&product.Supplier,
		&product.Location,
		&product.Version,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return product, nil
}

// FindByID retrieves a product by ID
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// ListByOwner retrieves all products owned by a seller
func (r *productRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE owner_id = $1 ORDER BY created_at DESC`, productColumns)

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

// ListPublic retrieves every listed product for the discover view
func (r *productRepository) ListPublic(ctx context.Context) ([]*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products ORDER BY created_at DESC`, productColumns)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list public products: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

func collectProducts(rows *sql.Rows) ([]*domain.Product, error) {
	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// Stats summarizes a seller's inventory: item count, total value and how
// many items sit at or below their restock threshold.
func (r *productRepository) Stats(ctx context.Context, ownerID uuid.UUID) (*domain.StockStats, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(price * quantity), 0),
		       COUNT(*) FILTER (WHERE quantity <= min_threshold)
		FROM products
		WHERE owner_id = $1
	`

	stats := &domain.StockStats{}
	err := r.db.QueryRowContext(ctx, query, ownerID).Scan(
		&stats.TotalItems,
		&stats.TotalValue,
		&stats.LowStockItems,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stock stats: %w", err)
	}

	return stats, nil
}

// ReserveStock atomically decrements quantity by qty iff quantity >= qty,
// and records the reserve movement for the order in the same transaction.
// A failed precondition surfaces as ErrInsufficientStock; two concurrent
// reservations against the last units can never both succeed.
func (r *productRepository) ReserveStock(ctx context.Context, productID, orderID uuid.UUID, qty int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reservation: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET quantity = quantity - $2, version = version + 1, updated_at = $3
		WHERE id = $1 AND quantity >= $2
	`, productID, qty, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to reserve stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Either the product vanished or another reservation got there
		// first. Both collapse to insufficient stock for the caller.
		return ErrInsufficientStock
	}

	if err := insertMovementTx(ctx, tx, productID, orderID, qty, domain.MovementReserve); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reservation: %w", err)
	}

	return nil
}

// releaseStockTx returns a reserved quantity to a product inside the
// caller's transaction. Used by the order status update so that the status
// write and the release commit or fail together.
func releaseStockTx(ctx context.Context, tx *sql.Tx, productID, orderID uuid.UUID, qty int) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET quantity = quantity + $2, version = version + 1, updated_at = $3
		WHERE id = $1
	`, productID, qty, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to release stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return insertMovementTx(ctx, tx, productID, orderID, qty, domain.MovementRelease)
}

func insertMovementTx(ctx context.Context, tx *sql.Tx, productID, orderID uuid.UUID, qty int, movement domain.MovementType) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO stock_movements (id, product_id, order_id, quantity, movement, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), productID, orderID, qty, movement, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record stock movement: %w", err)
	}
	return nil
}

// AddToOwnStock merges a delivered order's quantity into the buyer's own
// sellable inventory, matched by product name and category, or creates a
// new buyer-owned product. The order flag guard makes the operation apply
// exactly once.
func (r *productRepository) AddToOwnStock(ctx context.Context, buyerID, orderID uuid.UUID) (*domain.Product, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin add-to-stock: %w", err)
	}
	defer tx.Rollback()

	var (
		productID uuid.UUID
		qty       int
	)
	err = tx.QueryRowContext(ctx, `
		UPDATE orders
		SET added_to_stock = TRUE, updated_at = $3
		WHERE id = $1 AND buyer_id = $2 AND status = 'delivered' AND added_to_stock = FALSE
		RETURNING product_id, quantity
	`, orderID, buyerID, time.Now().UTC()).Scan(&productID, &qty)

	if err == sql.ErrNoRows {
		return nil, r.classifyAddToStockFailure(ctx, buyerID, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to flag order as added to stock: %w", err)
	}

	source := &domain.Product{}
	err = tx.QueryRowContext(ctx, `
		SELECT name, category, price, supplier, location FROM products WHERE id = $1
	`, productID).Scan(&source.Name, &source.Category, &source.Price, &source.Supplier, &source.Location)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to load source product: %w", err)
	}

	// Merge into an existing buyer-owned product with the same name and
	// category, or create a fresh one. The merge key is not unique, so the
	// update pins the oldest matching listing; duplicates must never each
	// absorb the delivered quantity.
	var targetID uuid.UUID
	err = tx.QueryRowContext(ctx, `
		UPDATE products
		SET quantity = quantity + $4, version = version + 1, updated_at = $5
		WHERE id = (
			SELECT id FROM products
			WHERE owner_id = $1 AND name = $2 AND category = $3
			ORDER BY created_at, id
			LIMIT 1
		)
		RETURNING id
	`, buyerID, source.Name, source.Category, qty, time.Now().UTC()).Scan(&targetID)

	if err == sql.ErrNoRows {
		targetID = uuid.New()
		now := time.Now().UTC()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO products (id, owner_id, name, category, price, quantity, min_order, min_threshold, supplier, location, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 1, 0, $7, $8, 1, $9, $9)
		`, targetID, buyerID, source.Name, source.Category, source.Price, qty, source.Supplier, source.Location, now)
		if err != nil {
			return nil, fmt.Errorf("failed to create merged product: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to merge into own stock: %w", err)
	}

	if err := insertMovementTx(ctx, tx, targetID, orderID, qty, domain.MovementRestock); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)
	product, err := scanProduct(tx.QueryRowContext(ctx, query, targetID))
	if err != nil {
		return nil, fmt.Errorf("failed to load merged product: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit add-to-stock: %w", err)
	}

	return product, nil
}

// classifyAddToStockFailure explains why the guarded update matched no row.
func (r *productRepository) classifyAddToStockFailure(ctx context.Context, buyerID, orderID uuid.UUID) error {
	var (
		status string
		added  bool
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT status, added_to_stock FROM orders WHERE id = $1 AND buyer_id = $2
	`, orderID, buyerID).Scan(&status, &added)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrOrderNotFound
		}
		return fmt.Errorf("failed to inspect order: %w", err)
	}

	if added {
		return ErrStockAlreadyAdded
	}
	return ErrOrderNotDelivered
}

// ListOrphanReservations reports reserve movements older than the window
// whose order row never materialized, i.e. the crash window between
// reserving stock and inserting the order. Acting on these belongs to an
// external reconciliation job.
func (r *productRepository) ListOrphanReservations(ctx context.Context, olderThan time.Duration) ([]*domain.StockMovement, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	rows, err := r.db.QueryContext(ctx, `
		SELECT m.id, m.product_id, m.order_id, m.quantity, m.movement, m.created_at
		FROM stock_movements m
		LEFT JOIN orders o ON o.id = m.order_id
		WHERE m.movement = 'reserve' AND o.id IS NULL AND m.created_at < $1
		ORDER BY m.created_at
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphan reservations: %w", err)
	}
	defer rows.Close()

	movements := []*domain.StockMovement{}
	for rows.Next() {
		m := &domain.StockMovement{}
		err := rows.Scan(&m.ID, &m.ProductID, &m.OrderID, &m.Quantity, &m.Movement, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		movements = append(movements, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stock movements: %w", err)
	}

	return movements, nil
}
