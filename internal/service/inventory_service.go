package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopsy/internal/domain"
	"shopsy/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidStockInput = errors.New("invalid stock attributes")
)

// StockInput carries the seller-editable attributes of a product.
// Defaulting happens here, once, at the boundary: a zero MinOrder becomes
// 1, negative thresholds are rejected.
type StockInput struct {
	Name         string
	Category     string
	Price        float64
	Quantity     int
	MinOrder     int
	MinThreshold int
	Supplier     string
	Location     string
}

func (in *StockInput) validate() error {
	if in.Name == "" || in.Price < 0 || in.Quantity < 0 || in.MinThreshold < 0 || in.MinOrder < 0 {
		return ErrInvalidStockInput
	}
	if in.MinOrder == 0 {
		in.MinOrder = 1
	}
	return nil
}

// InventoryService owns seller-facing stock management and the
// add-to-own-stock flow for delivered orders.
type InventoryService interface {
	CreateStock(ctx context.Context, ownerID uuid.UUID, in StockInput) (*domain.Product, error)
	UpdateStock(ctx context.Context, ownerID, productID uuid.UUID, in StockInput) (*domain.Product, error)
	DeleteStock(ctx context.Context, ownerID, productID uuid.UUID) error
	ListStocks(ctx context.Context, ownerID uuid.UUID) ([]*domain.Product, error)
	ListPublicStocks(ctx context.Context) ([]*domain.Product, error)
	Stats(ctx context.Context, ownerID uuid.UUID) (*domain.StockStats, error)
	AddToOwnStock(ctx context.Context, buyerID, orderID uuid.UUID) (*domain.Product, error)
}

type inventoryService struct {
	productRepo      repository.ProductRepository
	notificationRepo repository.NotificationRepository
	logger           *zap.Logger
}

// NewInventoryService creates a new instance of InventoryService
func NewInventoryService(
	productRepo repository.ProductRepository,
	notificationRepo repository.NotificationRepository,
	logger *zap.Logger,
) InventoryService {
	return &inventoryService{
		productRepo:      productRepo,
		notificationRepo: notificationRepo,
		logger:           logger,
	}
}

// CreateStock lists a new product for the seller
func (s *inventoryService) CreateStock(ctx context.Context, ownerID uuid.UUID, in StockInput) (*domain.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		Name:         in.Name,
		Category:     in.Category,
		Price:        in.Price,
		Quantity:     in.Quantity,
		MinOrder:     in.MinOrder,
		MinThreshold: in.MinThreshold,
		Supplier:     in.Supplier,
		Location:     in.Location,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create stock: %w", err)
	}

	return product, nil
}

// UpdateStock rewrites a product the seller owns
func (s *inventoryService) UpdateStock(ctx context.Context, ownerID, productID uuid.UUID, in StockInput) (*domain.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	product := &domain.Product{
		ID:           productID,
		OwnerID:      ownerID,
		Name:         in.Name,
		Category:     in.Category,
		Price:        in.Price,
		Quantity:     in.Quantity,
		MinOrder:     in.MinOrder,
		MinThreshold: in.MinThreshold,
		Supplier:     in.Supplier,
		Location:     in.Location,
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}

	updated, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload updated stock: %w", err)
	}

	return updated, nil
}

// DeleteStock removes a product the seller owns
func (s *inventoryService) DeleteStock(ctx context.Context, ownerID, productID uuid.UUID) error {
	return s.productRepo.Delete(ctx, productID, ownerID)
}

// ListStocks lists the seller's own products
func (s *inventoryService) ListStocks(ctx context.Context, ownerID uuid.UUID) ([]*domain.Product, error) {
	return s.productRepo.ListByOwner(ctx, ownerID)
}

// ListPublicStocks lists every product for the discover view
func (s *inventoryService) ListPublicStocks(ctx context.Context) ([]*domain.Product, error) {
	return s.productRepo.ListPublic(ctx)
}

// Stats summarizes the seller's inventory
func (s *inventoryService) Stats(ctx context.Context, ownerID uuid.UUID) (*domain.StockStats, error) {
	return s.productRepo.Stats(ctx, ownerID)
}

// AddToOwnStock merges a delivered order into the buyer's own inventory.
// Repeating the call fails with repository.ErrStockAlreadyAdded.
func (s *inventoryService) AddToOwnStock(ctx context.Context, buyerID, orderID uuid.UUID) (*domain.Product, error) {
	product, err := s.productRepo.AddToOwnStock(ctx, buyerID, orderID)
	if err != nil {
		return nil, err
	}

	notification := &domain.Notification{
		ID:          uuid.New(),
		RecipientID: buyerID,
		Kind:        domain.KindStockAdded,
		RefID:       orderID,
		Message:     fmt.Sprintf("Added '%s' to your stock.", product.Name),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.notificationRepo.Upsert(ctx, notification); err != nil {
		// Side effect only; the merge already committed.
		s.logger.Warn("Failed to upsert stock-added notification",
			zap.String("order_id", orderID.String()),
			zap.Error(err),
		)
	}

	return product, nil
}
