package service

import (
	"context"
	"fmt"
	"time"

	"shopsy/internal/domain"
	"shopsy/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationService derives and serves a user's feed. Derivation is a
// pull-based reconciliation: every feed read re-computes what should exist
// from current product and order state and upserts it against the dedup
// key, so the feed is correct even if an inline event emission was lost.
type NotificationService interface {
	Feed(ctx context.Context, userID uuid.UUID) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	MarkAllUnread(ctx context.Context, userID uuid.UUID) error
}

type notificationService struct {
	notificationRepo repository.NotificationRepository
	productRepo      repository.ProductRepository
	orderRepo        repository.OrderRepository
	logger           *zap.Logger
}

// NewNotificationService creates a new instance of NotificationService
func NewNotificationService(
	notificationRepo repository.NotificationRepository,
	productRepo repository.ProductRepository,
	orderRepo repository.OrderRepository,
	logger *zap.Logger,
) NotificationService {
	return &notificationService{
		notificationRepo: notificationRepo,
		productRepo:      productRepo,
		orderRepo:        orderRepo,
		logger:           logger,
	}
}

// Feed reconciles the user's notifications and returns them newest first.
func (s *notificationService) Feed(ctx context.Context, userID uuid.UUID) ([]*domain.Notification, error) {
	if err := s.reconcile(ctx, userID); err != nil {
		return nil, err
	}
	return s.notificationRepo.ListByRecipient(ctx, userID)
}

// reconcile computes the notifications that should exist for the user's
// current state and upserts each. Individual upsert failures are logged
// and skipped; the next feed read retries them.
func (s *notificationService) reconcile(ctx context.Context, userID uuid.UUID) error {
	products, err := s.productRepo.ListByOwner(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to scan owned products: %w", err)
	}

	for _, p := range products {
		// Low stock is "currently at or below threshold", not "the moment
		// the threshold was crossed". A quantity that oscillates around
		// the threshold maps onto the same (kind, ref) row.
		if p.LowStock() {
			s.upsert(ctx, &domain.Notification{
				ID:          uuid.New(),
				RecipientID: userID,
				Kind:        domain.KindStockLow,
				RefID:       p.ID,
				Message:     fmt.Sprintf("Stock '%s' is low: %d units left.", p.Name, p.Quantity),
				CreatedAt:   time.Now().UTC(),
			})
		}
	}

	purchases, err := s.orderRepo.ListByBuyer(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to scan purchases: %w", err)
	}
	for _, o := range purchases {
		s.upsertOrderNotification(ctx, userID, o)
		if o.Status == domain.StatusDelivered && o.AddedToStock {
			s.upsert(ctx, &domain.Notification{
				ID:          uuid.New(),
				RecipientID: userID,
				Kind:        domain.KindStockAdded,
				RefID:       o.ID,
				Message:     fmt.Sprintf("Added '%s' to your stock.", o.ProductName),
				CreatedAt:   time.Now().UTC(),
			})
		}
	}

	sales, err := s.orderRepo.ListBySeller(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to scan sales: %w", err)
	}
	for _, o := range sales {
		s.upsertOrderNotification(ctx, userID, o)
	}

	return nil
}

func (s *notificationService) upsertOrderNotification(ctx context.Context, userID uuid.UUID, o *domain.OrderView) {
	s.upsert(ctx, &domain.Notification{
		ID:          uuid.New(),
		RecipientID: userID,
		Kind:        domain.OrderKind(o.Status),
		RefID:       o.ID,
		Message:     fmt.Sprintf("Order %s for %s, quantity: %d.", o.Status, o.ProductName, o.Quantity),
		CreatedAt:   time.Now().UTC(),
	})
}

func (s *notificationService) upsert(ctx context.Context, n *domain.Notification) {
	if err := s.notificationRepo.Upsert(ctx, n); err != nil {
		s.logger.Warn("Failed to upsert derived notification",
			zap.String("recipient_id", n.RecipientID.String()),
			zap.String("kind", string(n.Kind)),
			zap.String("ref_id", n.RefID.String()),
			zap.Error(err),
		)
	}
}

// MarkRead marks one notification as read
func (s *notificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return s.notificationRepo.MarkRead(ctx, userID, notificationID)
}

// MarkAllRead marks the user's whole feed as read
func (s *notificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.notificationRepo.MarkAllRead(ctx, userID)
}

// MarkAllUnread marks the user's whole feed as unread
func (s *notificationService) MarkAllUnread(ctx context.Context, userID uuid.UUID) error {
	return s.notificationRepo.MarkAllUnread(ctx, userID)
}
