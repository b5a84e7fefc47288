package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rehearsalplanner/internal/domain"
)

type notificationRepository struct {
	DB *sql.DB
}

func NewNotificationRepository(db *sql.DB) domain.NotificationRepository {
	return &notificationRepository{
		DB: db,
	}
}

// CreateWithRecipients persists the thread and one pending recipient row per
// member atomically.
func (r *notificationRepository) CreateWithRecipients(ctx context.Context, n *domain.Notification, memberIDs []string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO notifications (rehearsal_id, type, title, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, n.RehearsalID, n.Type, n.Title, n.Body, n.CreatedAt).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	for _, memberID := range memberIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO notification_recipients (notification_id, member_id)
			VALUES ($1, $2)
			ON CONFLICT (notification_id, member_id) DO NOTHING
		`, n.ID, memberID); err != nil {
			return fmt.Errorf("insert recipient: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *notificationRepository) GetEarliestByRehearsalID(ctx context.Context, rehearsalID string) (*domain.NotificationWithRecipients, error) {
	query := `
		SELECT id, rehearsal_id, type, title, body, created_at
		FROM notifications
		WHERE rehearsal_id = $1
		ORDER BY created_at, id
		LIMIT 1
	`
	n := &domain.Notification{}
	var rehNull sql.NullString
	err := r.DB.QueryRowContext(ctx, query, rehearsalID).Scan(
		&n.ID, &rehNull, &n.Type, &n.Title, &n.Body, &n.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if rehNull.Valid {
		n.RehearsalID = &rehNull.String
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT notification_id, member_id, responded_at
		FROM notification_recipients
		WHERE notification_id = $1
		ORDER BY member_id
	`, n.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipients := make([]*domain.NotificationRecipient, 0)
	for rows.Next() {
		rec := &domain.NotificationRecipient{}
		var respondedNull sql.NullTime
		if err := rows.Scan(&rec.NotificationID, &rec.MemberID, &respondedNull); err != nil {
			return nil, err
		}
		rec.State = domain.RecipientPending
		if respondedNull.Valid {
			rec.State = domain.RecipientResponded
			rec.RespondedAt = &respondedNull.Time
		}
		recipients = append(recipients, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &domain.NotificationWithRecipients{Notification: n, Recipients: recipients}, nil
}

func (r *notificationRepository) AmendContent(ctx context.Context, notificationID, title, body string) error {
	result, err := r.DB.ExecContext(ctx, `
		UPDATE notifications SET title = $2, body = $3 WHERE id = $1
	`, notificationID, title, body)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *notificationRepository) AddRecipients(ctx context.Context, notificationID string, memberIDs []string) error {
	for _, memberID := range memberIDs {
		if _, err := r.DB.ExecContext(ctx, `
			INSERT INTO notification_recipients (notification_id, member_id)
			VALUES ($1, $2)
			ON CONFLICT (notification_id, member_id) DO NOTHING
		`, notificationID, memberID); err != nil {
			return err
		}
	}
	return nil
}

func (r *notificationRepository) ListRecipientIDsByRehearsalID(ctx context.Context, rehearsalID string) ([]string, error) {
	query := `
		SELECT DISTINCT nr.member_id
		FROM notification_recipients nr
		JOIN notifications n ON n.id = nr.notification_id
		WHERE n.rehearsal_id = $1
		ORDER BY nr.member_id
	`
	rows, err := r.DB.QueryContext(ctx, query, rehearsalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *notificationRepository) ListForMember(ctx context.Context, memberID string, p domain.PaginationParams) ([]*domain.InboxItem, int, error) {
	var total int
	err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM notification_recipients
		WHERE member_id = $1
	`, memberID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT n.id, n.rehearsal_id, n.type, n.title, n.body, n.created_at, nr.responded_at
		FROM notification_recipients nr
		JOIN notifications n ON n.id = nr.notification_id
		WHERE nr.member_id = $1
		ORDER BY n.created_at DESC, n.id
		LIMIT $2 OFFSET $3
	`
	rows, err := r.DB.QueryContext(ctx, query, memberID, p.PageSize, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]*domain.InboxItem, 0)
	for rows.Next() {
		n := &domain.Notification{}
		var rehNull sql.NullString
		var respondedNull sql.NullTime
		if err := rows.Scan(&n.ID, &rehNull, &n.Type, &n.Title, &n.Body, &n.CreatedAt, &respondedNull); err != nil {
			return nil, 0, err
		}
		if rehNull.Valid {
			n.RehearsalID = &rehNull.String
		}
		item := &domain.InboxItem{Notification: n, State: domain.RecipientPending}
		if respondedNull.Valid {
			item.State = domain.RecipientResponded
			item.RespondedAt = &respondedNull.Time
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

// MarkResponded flips the recipient row to responded. Idempotent: the first
// timestamp is kept on repeat calls.
func (r *notificationRepository) MarkResponded(ctx context.Context, notificationID, memberID string, at time.Time) error {
	result, err := r.DB.ExecContext(ctx, `
		UPDATE notification_recipients
		SET responded_at = COALESCE(responded_at, $3)
		WHERE notification_id = $1 AND member_id = $2
	`, notificationID, memberID, at)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
