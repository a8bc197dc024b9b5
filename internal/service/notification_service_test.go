package service

import (
	"context"
	"testing"

	"shopsy/internal/domain"
	"shopsy/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func newFeedService(f *orderFixture) NotificationService {
	return NewNotificationService(f.notifRepo, f.productRepo, f.orderRepo, zap.NewNop())
}

func TestFeedDerivesLowStock(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t, 3, 1)

	// The fixture product has threshold 5 and quantity 3, so it is already low
	feedSvc := newFeedService(f)

	feed, err := feedSvc.Feed(ctx, f.seller.ID)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}

	var lowStock int
	for _, n := range feed {
		if n.Kind == domain.KindStockLow && n.RefID == f.product.ID {
			lowStock++
		}
	}
	if lowStock != 1 {
		t.Fatalf("low stock notifications = %d, want 1", lowStock)
	}
}

func TestFeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t, 3, 1)
	feedSvc := newFeedService(f)

	first, err := feedSvc.Feed(ctx, f.seller.ID)
	if err != nil {
		t.Fatalf("first feed: %v", err)
	}

	// Re-reading must not multiply derived rows
	for i := 0; i < 5; i++ {
		again, err := feedSvc.Feed(ctx, f.seller.ID)
		if err != nil {
			t.Fatalf("feed read %d: %v", i, err)
		}
		if len(again) != len(first) {
			t.Fatalf("feed grew on re-read: %d -> %d", len(first), len(again))
		}
	}
}

func TestFeedTracksOrderLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t, 20, 1)
	feedSvc := newFeedService(f)

	order, err := f.svc.PlaceOrder(ctx, f.buyer.ID, f.product.ID, 2, 240)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	countOrderKinds := func(userID uuid.UUID) map[domain.NotificationKind]int {
		feed, err := feedSvc.Feed(ctx, userID)
		if err != nil {
			t.Fatalf("feed: %v", err)
		}
		kinds := make(map[domain.NotificationKind]int)
		for _, n := range feed {
			if n.RefID == order.ID {
				kinds[n.Kind]++
			}
		}
		return kinds
	}

	kinds := countOrderKinds(f.buyer.ID)
	if kinds[domain.OrderKind(domain.StatusPlaced)] != 1 {
		t.Fatalf("buyer placed notifications = %v", kinds)
	}

	if _, err := f.svc.UpdateStatus(ctx, f.seller.ID, order.ID, domain.StatusAccepted); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Each status leaves its own row; the placed one is not overwritten
	kinds = countOrderKinds(f.buyer.ID)
	if kinds[domain.OrderKind(domain.StatusPlaced)] != 1 || kinds[domain.OrderKind(domain.StatusAccepted)] != 1 {
		t.Fatalf("buyer notifications after accept = %v", kinds)
	}

	sellerKinds := countOrderKinds(f.seller.ID)
	if sellerKinds[domain.OrderKind(domain.StatusAccepted)] != 1 {
		t.Fatalf("seller notifications after accept = %v", sellerKinds)
	}
}

func TestFeedReconstructsLostEvents(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t, 20, 1)
	feedSvc := newFeedService(f)

	order, err := f.svc.PlaceOrder(ctx, f.buyer.ID, f.product.ID, 2, 240)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	// Simulate a lost inline emission by wiping the stored rows
	f.notifRepo.notifications = make(map[string]*domain.Notification)

	feed, err := feedSvc.Feed(ctx, f.buyer.ID)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}

	found := false
	for _, n := range feed {
		if n.Kind == domain.OrderKind(domain.StatusPlaced) && n.RefID == order.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("placed notification not rebuilt from order state")
	}
}

func TestMarkReadScopedToRecipient(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t, 3, 1)
	feedSvc := newFeedService(f)

	feed, err := feedSvc.Feed(ctx, f.seller.ID)
	if err != nil || len(feed) == 0 {
		t.Fatalf("feed = %v, err %v", feed, err)
	}
	target := feed[0]

	// Someone else cannot mark it
	if err := feedSvc.MarkRead(ctx, f.buyer.ID, target.ID); err != repository.ErrNotificationNotFound {
		t.Fatalf("expected ErrNotificationNotFound for foreign recipient, got %v", err)
	}

	if err := feedSvc.MarkRead(ctx, f.seller.ID, target.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	feed, _ = feedSvc.Feed(ctx, f.seller.ID)
	for _, n := range feed {
		if n.ID == target.ID && !n.Read {
			t.Fatalf("notification not marked read")
		}
	}
}

func TestMarkAllReadAndUnread(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t, 3, 1)
	feedSvc := newFeedService(f)

	if _, err := f.svc.PlaceOrder(ctx, f.buyer.ID, f.product.ID, 1, 120); err != nil {
		t.Fatalf("place order: %v", err)
	}

	// Materialize the derived rows before flipping read state
	if _, err := feedSvc.Feed(ctx, f.seller.ID); err != nil {
		t.Fatalf("feed: %v", err)
	}

	if err := feedSvc.MarkAllRead(ctx, f.seller.ID); err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	feed, _ := feedSvc.Feed(ctx, f.seller.ID)
	for _, n := range feed {
		if !n.Read {
			t.Fatalf("unread notification after mark all read: %s", n.Kind)
		}
	}

	if err := feedSvc.MarkAllUnread(ctx, f.seller.ID); err != nil {
		t.Fatalf("mark all unread: %v", err)
	}
	feed, _ = feedSvc.Feed(ctx, f.seller.ID)
	for _, n := range feed {
		if n.Read {
			t.Fatalf("read notification after mark all unread: %s", n.Kind)
		}
	}
}
