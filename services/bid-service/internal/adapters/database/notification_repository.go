package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/gembid/services/bid-service/internal/domain/bids"
	"github.com/floroz/gembid/services/bid-service/internal/domain/notifications"
)

// PostgresNotificationRepository implements notifications.Store using pgx
type PostgresNotificationRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresNotificationRepository creates a new PostgreSQL notification repository
func NewPostgresNotificationRepository(pool *pgxpool.Pool) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{pool: pool}
}

// Create inserts the notification; the unique indexes turn redeliveries into no-ops
func (r *PostgresNotificationRepository) Create(ctx context.Context, n *notifications.Notification) (bool, error) {
	query := `
		INSERT INTO notifications (id, event_id, user_id, listing_id, bid_id, type, title, message,
			trigger_user_id, trigger_user_name, bid_amount, currency, gem_name, is_read, created_at, read_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::numeric, $12, $13, FALSE, $14, NULL)
		ON CONFLICT DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		n.ID,
		n.EventID,
		n.UserID,
		n.ListingID,
		n.BidID,
		string(n.Type),
		n.Title,
		n.Message,
		n.TriggerUserID,
		n.TriggerUserName,
		n.BidAmount.String(),
		n.Currency,
		n.GemName,
		n.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert notification: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// MarkRead only touches unread rows so read_at keeps its first value
func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, userID string, notificationID uuid.UUID, at time.Time) error {
	query := `
		UPDATE notifications
		SET is_read = TRUE, read_at = $3
		WHERE id = $1 AND user_id = $2 AND NOT is_read
	`
	result, err := r.pool.Exec(ctx, query, notificationID, userID, at)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if result.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	err = r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM notifications WHERE id = $1 AND user_id = $2)`,
		notificationID, userID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check notification: %w", err)
	}
	if !exists {
		return notifications.ErrNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification of the user
func (r *PostgresNotificationRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error) {
	query := `
		UPDATE notifications
		SET is_read = TRUE, read_at = $2
		WHERE user_id = $1 AND NOT is_read
	`
	result, err := r.pool.Exec(ctx, query, userID, at)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// UnreadCount counts unread rows
func (r *PostgresNotificationRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// List reads one page and the total from the same snapshot
func (r *PostgresNotificationRepository) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*notifications.Notification, int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var total int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND (NOT $2 OR NOT is_read)`,
		userID, unreadOnly,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	query := `
		SELECT id, event_id, user_id, listing_id, bid_id, type, title, message, trigger_user_id,
			trigger_user_name, bid_amount::text, currency, gem_name, is_read, created_at, read_at
		FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR NOT is_read)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := tx.Query(ctx, query, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	result := make([]*notifications.Notification, 0, limit)
	for rows.Next() {
		var n notifications.Notification
		var typ, amount string
		if err := rows.Scan(
			&n.ID,
			&n.EventID,
			&n.UserID,
			&n.ListingID,
			&n.BidID,
			&typ,
			&n.Title,
			&n.Message,
			&n.TriggerUserID,
			&n.TriggerUserName,
			&amount,
			&n.Currency,
			&n.GemName,
			&n.IsRead,
			&n.CreatedAt,
			&n.ReadAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Type = bids.NotificationType(typ)
		if n.BidAmount, err = parseAmount(amount); err != nil {
			return nil, 0, err
		}
		result = append(result, &n)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating notifications: %w", err)
	}

	return result, total, nil
}

// Delete removes one of the user's notifications
func (r *PostgresNotificationRepository) Delete(ctx context.Context, userID string, notificationID uuid.UUID) error {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM notifications WHERE id = $1 AND user_id = $2`,
		notificationID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notifications.ErrNotFound
	}
	return nil
}
