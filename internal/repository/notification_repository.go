package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shopsy/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
)

// NotificationRepository stores derived feed entries. Uniqueness over
// (recipient_id, kind, ref_id) is enforced by the storage layer, so
// re-derivation is race-free: concurrent upserts of the same tuple leave
// exactly one row.
type NotificationRepository interface {
	Upsert(ctx context.Context, notification *domain.Notification) error
	ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, recipientID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) error
	MarkAllUnread(ctx context.Context, recipientID uuid.UUID) error
}

type notificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new instance of NotificationRepository
func NewNotificationRepository(db *sql.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Upsert inserts a notification unless one already exists for the same
// (recipient, kind, ref) tuple; an existing row is left untouched,
// including its read flag.
func (r *notificationRepository) Upsert(ctx context.Context, notification *domain.Notification) error {
	query := `
		INSERT INTO notifications (id, recipient_id, kind, ref_id, message, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (recipient_id, kind, ref_id) DO NOTHING
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		notification.ID,
		notification.RecipientID,
		notification.Kind,
		notification.RefID,
		notification.Message,
		notification.Read,
		notification.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert notification: %w", err)
	}

	return nil
}

// ListByRecipient retrieves a user's notifications, newest first
func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]*domain.Notification, error) {
	query := `
		SELECT id, recipient_id, kind, ref_id, message, read, created_at
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []*domain.Notification{}
	for rows.Next() {
		n := &domain.Notification{}
		err := rows.Scan(
			&n.ID,
			&n.RecipientID,
			&n.Kind,
			&n.RefID,
			&n.Message,
			&n.Read,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return notifications, nil
}

// MarkRead sets a single notification's read flag, scoped to the recipient
func (r *notificationRepository) MarkRead(ctx context.Context, recipientID, id uuid.UUID) error {
	query := `UPDATE notifications SET read = TRUE WHERE id = $1 AND recipient_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, recipientID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotificationNotFound
	}

	return nil
}

// MarkAllRead sets every notification of a recipient to read
func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID uuid.UUID) error {
	query := `UPDATE notifications SET read = TRUE WHERE recipient_id = $1`

	if _, err := r.db.ExecContext(ctx, query, recipientID); err != nil {
		return fmt.Errorf("failed to mark all notifications read: %w", err)
	}

	return nil
}

// MarkAllUnread sets every notification of a recipient back to unread
func (r *notificationRepository) MarkAllUnread(ctx context.Context, recipientID uuid.UUID) error {
	query := `UPDATE notifications SET read = FALSE WHERE recipient_id = $1`

	if _, err := r.db.ExecContext(ctx, query, recipientID); err != nil {
		return fmt.Errorf("failed to mark all notifications unread: %w", err)
	}

	return nil
}
