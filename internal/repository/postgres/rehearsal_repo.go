package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"rehearsalplanner/internal/domain"
)

type rehearsalRepository struct {
	DB *sql.DB
}

func NewRehearsalRepository(db *sql.DB) domain.RehearsalRepository {
	return &rehearsalRepository{
		DB: db,
	}
}

func (r *rehearsalRepository) Create(ctx context.Context, reh *domain.Rehearsal) error {
	query := `
		INSERT INTO rehearsals (title, starts_at, ends_at, location, description, status, deadline_option, registration_deadline, required_roles, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query,
		reh.Title, reh.StartsAt, reh.EndsAt, reh.Location, reh.Description,
		string(reh.Status), string(reh.DeadlineOption), reh.RegistrationDeadline,
		pq.Array(reh.RequiredRoles), reh.CreatedBy, reh.CreatedAt, reh.UpdatedAt,
	).Scan(&reh.ID)
}

func (r *rehearsalRepository) GetByID(ctx context.Context, id string) (*domain.Rehearsal, error) {
	query := `
		SELECT id, title, starts_at, ends_at, location, description, status, deadline_option, registration_deadline, required_roles, created_by, created_at, updated_at
		FROM rehearsals
		WHERE id = $1
	`
	reh := &domain.Rehearsal{}
	var descNull sql.NullString
	var deadlineNull sql.NullTime
	var status, option string
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&reh.ID, &reh.Title, &reh.StartsAt, &reh.EndsAt, &reh.Location,
		&descNull, &status, &option, &deadlineNull,
		pq.Array(&reh.RequiredRoles), &reh.CreatedBy, &reh.CreatedAt, &reh.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if descNull.Valid {
		reh.Description = &descNull.String
	}
	if deadlineNull.Valid {
		reh.RegistrationDeadline = &deadlineNull.Time
	}
	reh.Status = domain.RehearsalStatus(status)
	reh.DeadlineOption = domain.RegistrationDeadlineOption(option)
	if reh.RequiredRoles == nil {
		reh.RequiredRoles = []string{}
	}
	return reh, nil
}

// Update persists the full field set. Concurrent writers to the same row are
// serialized by the database; the last committed writer wins.
func (r *rehearsalRepository) Update(ctx context.Context, reh *domain.Rehearsal) error {
	return updateRehearsalRow(ctx, r.DB, reh)
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateRehearsalRow(ctx context.Context, db execer, reh *domain.Rehearsal) error {
	query := `
		UPDATE rehearsals
		SET title = $2, starts_at = $3, ends_at = $4, location = $5, description = $6,
		    status = $7, deadline_option = $8, registration_deadline = $9, required_roles = $10, updated_at = $11
		WHERE id = $1
	`
	result, err := db.ExecContext(ctx, query,
		reh.ID, reh.Title, reh.StartsAt, reh.EndsAt, reh.Location, reh.Description,
		string(reh.Status), string(reh.DeadlineOption), reh.RegistrationDeadline,
		pq.Array(reh.RequiredRoles), reh.UpdatedAt,
	)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateWithInvitees reconciles the invitee rows and persists the field set
// in one transaction. A failure on either side rolls back both, so a failed
// mutation cannot leave the invitee set of the rehearsal half-applied.
func (r *rehearsalRepository) UpdateWithInvitees(ctx context.Context, reh *domain.Rehearsal, memberIDs []string) ([]string, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	final, err := syncInviteeRows(ctx, tx, reh.ID, dedupe(memberIDs))
	if err != nil {
		return nil, err
	}
	if err := updateRehearsalRow(ctx, tx, reh); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return final, nil
}

// Delete removes the rehearsal and cascades its invitee rows, notification
// threads and notification-recipient rows in one transaction.
func (r *rehearsalRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM notification_recipients
		WHERE notification_id IN (SELECT id FROM notifications WHERE rehearsal_id = $1)
	`, id); err != nil {
		return fmt.Errorf("delete notification recipients: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM notifications WHERE rehearsal_id = $1`, id); err != nil {
		return fmt.Errorf("delete notifications: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rehearsal_invitees WHERE rehearsal_id = $1`, id); err != nil {
		return fmt.Errorf("delete invitees: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM rehearsals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete rehearsal: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListForMember returns the caller's own rehearsals (any state) plus the
// planned rehearsals they are invited to.
func (r *rehearsalRepository) ListForMember(ctx context.Context, memberID string) ([]*domain.Rehearsal, error) {
	query := `
		SELECT DISTINCT r.id, r.title, r.starts_at, r.ends_at, r.location, r.description, r.status, r.deadline_option, r.registration_deadline, r.required_roles, r.created_by, r.created_at, r.updated_at
		FROM rehearsals r
		LEFT JOIN rehearsal_invitees i ON i.rehearsal_id = r.id
		WHERE r.created_by = $1
		   OR (r.status = 'planned' AND i.member_id = $1)
		ORDER BY r.starts_at
	`
	rows, err := r.DB.QueryContext(ctx, query, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rehearsals := make([]*domain.Rehearsal, 0)
	for rows.Next() {
		reh := &domain.Rehearsal{}
		var descNull sql.NullString
		var deadlineNull sql.NullTime
		var status, option string
		if err := rows.Scan(
			&reh.ID, &reh.Title, &reh.StartsAt, &reh.EndsAt, &reh.Location,
			&descNull, &status, &option, &deadlineNull,
			pq.Array(&reh.RequiredRoles), &reh.CreatedBy, &reh.CreatedAt, &reh.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if descNull.Valid {
			reh.Description = &descNull.String
		}
		if deadlineNull.Valid {
			reh.RegistrationDeadline = &deadlineNull.Time
		}
		reh.Status = domain.RehearsalStatus(status)
		reh.DeadlineOption = domain.RegistrationDeadlineOption(option)
		if reh.RequiredRoles == nil {
			reh.RequiredRoles = []string{}
		}
		rehearsals = append(rehearsals, reh)
	}
	return rehearsals, rows.Err()
}
