package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"rehearsalplanner/internal/domain"
)

type memberRepository struct {
	DB *sql.DB
}

func NewMemberRepository(db *sql.DB) domain.MemberRepository {
	return &memberRepository{
		DB: db,
	}
}

func (r *memberRepository) Create(ctx context.Context, m *domain.Member, passwordHash, passwordSalt string) error {
	query := `
		INSERT INTO members (email, name, primary_role, extra_roles, password_hash, password_salt, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query,
		m.Email, m.Name, m.PrimaryRole, pq.Array(m.ExtraRoles),
		passwordHash, passwordSalt, m.CreatedAt, m.UpdatedAt,
	).Scan(&m.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return domain.ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (r *memberRepository) GetByID(ctx context.Context, id string) (*domain.Member, error) {
	query := `
		SELECT id, email, name, primary_role, extra_roles, created_at, updated_at
		FROM members
		WHERE id = $1
	`
	m := &domain.Member{}
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.Email, &m.Name, &m.PrimaryRole, pq.Array(&m.ExtraRoles), &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *memberRepository) GetByEmail(ctx context.Context, email string) (*domain.Member, error) {
	query := `
		SELECT id, email, name, primary_role, extra_roles, created_at, updated_at
		FROM members
		WHERE email = $1
	`
	m := &domain.Member{}
	err := r.DB.QueryRowContext(ctx, query, email).Scan(
		&m.ID, &m.Email, &m.Name, &m.PrimaryRole, pq.Array(&m.ExtraRoles), &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *memberRepository) GetCredentials(ctx context.Context, email string) (string, string, string, error) {
	query := `SELECT id, password_hash, password_salt FROM members WHERE email = $1`
	var id, hash, salt string
	err := r.DB.QueryRowContext(ctx, query, email).Scan(&id, &hash, &salt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", "", domain.ErrMemberNotFound
		}
		return "", "", "", err
	}
	return id, hash, salt, nil
}

func (r *memberRepository) ListByIDs(ctx context.Context, ids []string) ([]*domain.Member, error) {
	if len(ids) == 0 {
		return []*domain.Member{}, nil
	}
	query := `
		SELECT id, email, name, primary_role, extra_roles, created_at, updated_at
		FROM members
		WHERE id = ANY($1)
		ORDER BY id
	`
	rows, err := r.DB.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]*domain.Member, 0, len(ids))
	for rows.Next() {
		m := &domain.Member{}
		if err := rows.Scan(&m.ID, &m.Email, &m.Name, &m.PrimaryRole, pq.Array(&m.ExtraRoles), &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *memberRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM members ORDER BY id`)
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

func (r *memberRepository) ListBlockedOn(ctx context.Context, day time.Time) ([]string, error) {
	query := `
		SELECT member_id FROM blocked_days
		WHERE day = $1
		ORDER BY member_id
	`
	rows, err := r.DB.QueryContext(ctx, query, day.Format("2006-01-02"))
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
