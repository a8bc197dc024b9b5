package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"shopsy/internal/domain"
	"shopsy/internal/mailer"
	"shopsy/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	ErrInvalidPrice    = errors.New("price must be non-negative")
	ErrBelowMinOrder   = errors.New("quantity is below the product's minimum order")
	ErrInvalidStatus   = errors.New("unknown order status")
	ErrNotAllowed      = errors.New("not allowed to update this order")
)

// OrderService owns order placement and the lifecycle state machine.
type OrderService interface {
	PlaceOrder(ctx context.Context, buyerID, productID uuid.UUID, qty int, totalPrice float64) (*domain.Order, error)
	UpdateStatus(ctx context.Context, actorID, orderID uuid.UUID, next domain.OrderStatus) (*domain.Order, error)
	ListPurchases(ctx context.Context, buyerID uuid.UUID) ([]*domain.OrderView, error)
	ListSales(ctx context.Context, sellerID uuid.UUID) ([]*domain.OrderView, error)
}

type orderService struct {
	orderRepo        repository.OrderRepository
	productRepo      repository.ProductRepository
	userRepo         repository.UserRepository
	notificationRepo repository.NotificationRepository
	dispatcher       *mailer.Dispatcher
	logger           *zap.Logger
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	notificationRepo repository.NotificationRepository,
	dispatcher *mailer.Dispatcher,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		orderRepo:        orderRepo,
		productRepo:      productRepo,
		userRepo:         userRepo,
		notificationRepo: notificationRepo,
		dispatcher:       dispatcher,
		logger:           logger,
	}
}

// PlaceOrder validates the request against a fresh product read, reserves
// stock atomically, and inserts the order with its terms frozen. A failed
// reservation aborts the whole operation with no order created. Events and
// email are emitted after the primary effect committed and can never roll
// it back.
func (s *orderService) PlaceOrder(ctx context.Context, buyerID, productID uuid.UUID, qty int, totalPrice float64) (*domain.Order, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	if totalPrice < 0 {
		return nil, ErrInvalidPrice
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	if qty < product.MinOrder {
		return nil, ErrBelowMinOrder
	}
	if qty > product.Quantity {
		return nil, repository.ErrInsufficientStock
	}

	// The order ID is minted first so the reserve movement can reference
	// it; if the process dies before the insert below, the movement shows
	// up as an orphan reservation.
	orderID := uuid.New()

	if err := s.productRepo.ReserveStock(ctx, productID, orderID, qty); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:         orderID,
		BuyerID:    buyerID,
		ProductID:  productID,
		Quantity:   qty,
		UnitPrice:  product.Price,
		TotalPrice: totalPrice,
		Status:     domain.StatusPlaced,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		s.logger.Error("Order insert failed after stock reservation",
			zap.String("order_id", orderID.String()),
			zap.String("product_id", productID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.emitOrderEvents(ctx, order, product)
	s.sendOrderMail(ctx, order, product)

	return order, nil
}

// UpdateStatus advances an order through the state machine. Sellers drive
// accepted/rejected/dispatched/delivered on orders against their products;
// buyers may cancel accepted orders. Terminal cancel/reject releases the
// reservation exactly once, inside the status transaction.
func (s *orderService) UpdateStatus(ctx context.Context, actorID, orderID uuid.UUID, next domain.OrderStatus) (*domain.Order, error) {
	if !next.Valid() || next == domain.StatusPlaced {
		return nil, ErrInvalidStatus
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	product, err := s.productRepo.FindByID(ctx, order.ProductID)
	if err != nil {
		return nil, err
	}

	if next == domain.StatusCancelled {
		if actorID != order.BuyerID {
			return nil, ErrNotAllowed
		}
	} else if actorID != product.OwnerID {
		return nil, ErrNotAllowed
	}

	if !order.Status.CanTransitionTo(next) {
		return nil, repository.ErrInvalidTransition
	}

	if err := s.orderRepo.UpdateStatus(ctx, orderID, order.Status, next); err != nil {
		return nil, err
	}

	order.Status = next
	order.UpdatedAt = time.Now().UTC()

	s.emitOrderEvents(ctx, order, product)

	return order, nil
}

// ListPurchases lists the buyer's orders with seller display data
func (s *orderService) ListPurchases(ctx context.Context, buyerID uuid.UUID) ([]*domain.OrderView, error) {
	return s.orderRepo.ListByBuyer(ctx, buyerID)
}

// ListSales lists the orders placed against the seller's products
func (s *orderService) ListSales(ctx context.Context, sellerID uuid.UUID) ([]*domain.OrderView, error) {
	return s.orderRepo.ListBySeller(ctx, sellerID)
}

// emitOrderEvents upserts the order-<status> notification for buyer and
// seller. Upsert failures are logged and swallowed; the feed deriver will
// reconstruct missing rows on the next read.
func (s *orderService) emitOrderEvents(ctx context.Context, order *domain.Order, product *domain.Product) {
	message := fmt.Sprintf("Order %s for %s, quantity: %d.", order.Status, product.Name, order.Quantity)
	now := time.Now().UTC()

	for _, recipient := range []uuid.UUID{order.BuyerID, product.OwnerID} {
		notification := &domain.Notification{
			ID:          uuid.New(),
			RecipientID: recipient,
			Kind:        domain.OrderKind(order.Status),
			RefID:       order.ID,
			Message:     message,
			CreatedAt:   now,
		}
		if err := s.notificationRepo.Upsert(ctx, notification); err != nil {
			s.logger.Warn("Failed to upsert order notification",
				zap.String("order_id", order.ID.String()),
				zap.String("recipient_id", recipient.String()),
				zap.Error(err),
			)
		}
	}
}

// sendOrderMail queues the buyer's confirmation mail. Fire and forget: a
// full queue or a dead mail provider never surfaces to the caller.
func (s *orderService) sendOrderMail(ctx context.Context, order *domain.Order, product *domain.Product) {
	buyer, err := s.userRepo.FindByID(ctx, order.BuyerID)
	if err != nil {
		s.logger.Warn("Failed to resolve buyer for order mail",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return
	}

	orderID := order.ID
	s.dispatcher.Enqueue(mailer.Email{
		To:         buyer.Email,
		TemplateID: "order-placed",
		Fields: map[string]string{
			"product":  product.Name,
			"quantity": strconv.Itoa(order.Quantity),
			"total":    strconv.FormatFloat(order.TotalPrice, 'f', 2, 64),
		},
		OrderID: &orderID,
	})
}
