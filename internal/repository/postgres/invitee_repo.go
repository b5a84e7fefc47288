package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/lib/pq"

	"rehearsalplanner/internal/domain"
)

type inviteeRepository struct {
	DB *sql.DB
}

func NewInviteeRepository(db *sql.DB) domain.InviteeRepository {
	return &inviteeRepository{
		DB: db,
	}
}

// Sync reconciles the stored invitee set against the requested one inside a
// single transaction: the current rows are locked, rows outside the request
// are deleted, missing rows are inserted with ON CONFLICT DO NOTHING so a
// concurrent duplicate insert cannot fail the transaction. The resulting set
// is returned sorted.
func (r *inviteeRepository) Sync(ctx context.Context, rehearsalID string, memberIDs []string) ([]string, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	final, err := syncInviteeRows(ctx, tx, rehearsalID, dedupe(memberIDs))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return final, nil
}

// syncInviteeRows performs the diff-sync inside the caller's transaction.
// requested must already be deduplicated; the caller owns commit and
// rollback.
func syncInviteeRows(ctx context.Context, tx *sql.Tx, rehearsalID string, requested []string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT member_id FROM rehearsal_invitees
		WHERE rehearsal_id = $1
		FOR UPDATE
	`, rehearsalID)
	if err != nil {
		return nil, fmt.Errorf("lock invitees: %w", err)
	}
	current := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		current[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(requested) == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM rehearsal_invitees WHERE rehearsal_id = $1`, rehearsalID); err != nil {
			return nil, fmt.Errorf("clear invitees: %w", err)
		}
		return []string{}, nil
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM rehearsal_invitees
		WHERE rehearsal_id = $1 AND NOT (member_id = ANY($2))
	`, rehearsalID, pq.Array(requested)); err != nil {
		return nil, fmt.Errorf("delete removed invitees: %w", err)
	}
	for _, memberID := range requested {
		if _, ok := current[memberID]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rehearsal_invitees (rehearsal_id, member_id)
			VALUES ($1, $2)
			ON CONFLICT (rehearsal_id, member_id) DO NOTHING
		`, rehearsalID, memberID); err != nil {
			return nil, fmt.Errorf("insert invitee: %w", err)
		}
	}
	return requested, nil
}

func (r *inviteeRepository) ListByRehearsalID(ctx context.Context, rehearsalID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT member_id FROM rehearsal_invitees
		WHERE rehearsal_id = $1
		ORDER BY member_id
	`, rehearsalID)
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

// dedupe returns the unique, sorted member IDs. Membership is set-valued;
// callers must not rely on request order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
