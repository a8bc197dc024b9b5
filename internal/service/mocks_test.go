package service

import (
	"context"
	"sync"
	"time"

	"shopsy/internal/domain"
	"shopsy/internal/repository"

	"github.com/google/uuid"
)

// mockProductRepository is a map-backed inventory store. Quantity checks
// run under a mutex so concurrent reservations see the same invariants the
// SQL conditional update enforces.
type mockProductRepository struct {
	mu        sync.Mutex
	products  map[uuid.UUID]*domain.Product
	movements []*domain.StockMovement

	// orders backs AddToOwnStock; set by tests exercising the merge flow.
	orders *mockOrderRepository
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{
		products: make(map[uuid.UUID]*domain.Product),
	}
}

func (m *mockProductRepository) put(p *domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.products[p.ID] = &cp
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.put(product)
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.products[product.ID]
	if !ok || existing.OwnerID != product.OwnerID {
		return repository.ErrProductNotFound
	}
	cp := *product
	cp.Version = existing.Version + 1
	m.products[product.ID] = &cp
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.products[id]
	if !ok || existing.OwnerID != ownerID {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Product
	for _, p := range m.products {
		if p.OwnerID == ownerID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockProductRepository) ListPublic(ctx context.Context) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Product
	for _, p := range m.products {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockProductRepository) Stats(ctx context.Context, ownerID uuid.UUID) (*domain.StockStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &domain.StockStats{}
	for _, p := range m.products {
		if p.OwnerID != ownerID {
			continue
		}
		stats.TotalItems++
		stats.TotalValue += p.Price * float64(p.Quantity)
		if p.LowStock() {
			stats.LowStockItems++
		}
	}
	return stats, nil
}

func (m *mockProductRepository) ReserveStock(ctx context.Context, productID, orderID uuid.UUID, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return repository.ErrProductNotFound
	}
	if p.Quantity < qty {
		return repository.ErrInsufficientStock
	}
	p.Quantity -= qty
	p.Version++
	m.movements = append(m.movements, &domain.StockMovement{
		ID:        uuid.New(),
		ProductID: productID,
		OrderID:   orderID,
		Quantity:  qty,
		Movement:  domain.MovementReserve,
		CreatedAt: time.Now(),
	})
	return nil
}

func (m *mockProductRepository) release(productID, orderID uuid.UUID, qty int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.products[productID]; ok {
		p.Quantity += qty
		p.Version++
	}
	m.movements = append(m.movements, &domain.StockMovement{
		ID:        uuid.New(),
		ProductID: productID,
		OrderID:   orderID,
		Quantity:  qty,
		Movement:  domain.MovementRelease,
		CreatedAt: time.Now(),
	})
}

func (m *mockProductRepository) AddToOwnStock(ctx context.Context, buyerID, orderID uuid.UUID) (*domain.Product, error) {
	if m.orders == nil {
		return nil, repository.ErrOrderNotFound
	}

	m.orders.mu.Lock()
	order, ok := m.orders.orders[orderID]
	if !ok || order.BuyerID != buyerID {
		m.orders.mu.Unlock()
		return nil, repository.ErrOrderNotFound
	}
	if order.AddedToStock {
		m.orders.mu.Unlock()
		return nil, repository.ErrStockAlreadyAdded
	}
	if order.Status != domain.StatusDelivered {
		m.orders.mu.Unlock()
		return nil, repository.ErrOrderNotDelivered
	}
	order.AddedToStock = true
	productID, qty := order.ProductID, order.Quantity
	m.orders.mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	source := m.products[productID]

	// Merge into the oldest existing product of the buyer with the same
	// identity, otherwise list a new one. Duplicate listings absorb the
	// quantity once, never each.
	var target *domain.Product
	for _, p := range m.products {
		if p.OwnerID != buyerID || p.Name != source.Name || p.Category != source.Category {
			continue
		}
		if target == nil || p.CreatedAt.Before(target.CreatedAt) {
			target = p
		}
	}
	if target != nil {
		target.Quantity += qty
		target.Version++
		cp := *target
		return &cp, nil
	}

	merged := *source
	merged.ID = uuid.New()
	merged.OwnerID = buyerID
	merged.Quantity = qty
	merged.Version = 1
	m.products[merged.ID] = &merged
	m.movements = append(m.movements, &domain.StockMovement{
		ID:        uuid.New(),
		ProductID: merged.ID,
		OrderID:   orderID,
		Quantity:  qty,
		Movement:  domain.MovementRestock,
		CreatedAt: time.Now(),
	})
	cp := merged
	return &cp, nil
}

func (m *mockProductRepository) ListOrphanReservations(ctx context.Context, olderThan time.Duration) ([]*domain.StockMovement, error) {
	return nil, nil
}

func (m *mockProductRepository) quantity(productID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.products[productID]; ok {
		return p.Quantity
	}
	return -1
}

// mockOrderRepository is a map-backed order store enforcing the same
// guarded transition semantics as the SQL implementation.
type mockOrderRepository struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]*domain.Order
	products *mockProductRepository
}

func newMockOrderRepository(products *mockProductRepository) *mockOrderRepository {
	return &mockOrderRepository{
		orders:   make(map[uuid.UUID]*domain.Order),
		products: products,
	}
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to domain.OrderStatus) error {
	m.mu.Lock()
	o, ok := m.orders[orderID]
	if !ok {
		m.mu.Unlock()
		return repository.ErrOrderNotFound
	}
	if o.Status != from {
		m.mu.Unlock()
		return repository.ErrInvalidTransition
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	productID, qty := o.ProductID, o.Quantity
	m.mu.Unlock()

	if to.ReleasesStock() {
		m.products.release(productID, orderID, qty)
	}
	return nil
}

func (m *mockOrderRepository) SetEmailSent(ctx context.Context, orderID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.EmailSent = true
	return nil
}

func (m *mockOrderRepository) view(o *domain.Order) *domain.OrderView {
	productName := ""
	if m.products != nil {
		if p, ok := m.products.products[o.ProductID]; ok {
			productName = p.Name
		}
	}
	return &domain.OrderView{Order: *o, ProductName: productName}
}

func (m *mockOrderRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.OrderView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.OrderView
	for _, o := range m.orders {
		if o.BuyerID == buyerID {
			out = append(out, m.view(o))
		}
	}
	return out, nil
}

func (m *mockOrderRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.OrderView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.OrderView
	for _, o := range m.orders {
		if m.products == nil {
			continue
		}
		if p, ok := m.products.products[o.ProductID]; ok && p.OwnerID == sellerID {
			out = append(out, m.view(o))
		}
	}
	return out, nil
}

// mockNotificationRepository deduplicates on (recipient, kind, ref) like
// the unique index does.
type mockNotificationRepository struct {
	mu            sync.Mutex
	notifications map[string]*domain.Notification
}

func newMockNotificationRepository() *mockNotificationRepository {
	return &mockNotificationRepository{
		notifications: make(map[string]*domain.Notification),
	}
}

func dedupKey(n *domain.Notification) string {
	return n.RecipientID.String() + "|" + string(n.Kind) + "|" + n.RefID.String()
}

func (m *mockNotificationRepository) Upsert(ctx context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := dedupKey(n)
	if _, exists := m.notifications[key]; exists {
		return nil
	}
	cp := *n
	m.notifications[key] = &cp
	return nil
}

func (m *mockNotificationRepository) ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Notification
	for _, n := range m.notifications {
		if n.RecipientID == recipientID {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockNotificationRepository) MarkRead(ctx context.Context, recipientID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.ID == id && n.RecipientID == recipientID {
			n.Read = true
			return nil
		}
	}
	return repository.ErrNotificationNotFound
}

func (m *mockNotificationRepository) MarkAllRead(ctx context.Context, recipientID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.RecipientID == recipientID {
			n.Read = true
		}
	}
	return nil
}

func (m *mockNotificationRepository) MarkAllUnread(ctx context.Context, recipientID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.RecipientID == recipientID {
			n.Read = false
		}
	}
	return nil
}

func (m *mockNotificationRepository) count(recipientID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.notifications {
		if n.RecipientID == recipientID {
			total++
		}
	}
	return total
}
