package domain

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for member operations.
var (
	ErrMemberNotFound = errors.New("member not found")
	ErrDuplicateEmail = errors.New("email already in use")
)

// Capability tags carried in auth tokens.
const (
	CapabilityScheduleManage = "schedule.manage"
)

// Member represents an ensemble member. PrimaryRole is the member's main
// organizational role (e.g. "actor"); ExtraRoles holds any secondary ones.
// swagger:model Member
type Member struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	PrimaryRole string    `json:"primary_role"`
	ExtraRoles  []string  `json:"extra_roles"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewMember returns a new Member with the given fields. ID is typically set
// by the repository on create.
func NewMember(email, name, primaryRole string, extraRoles []string, createdAt, updatedAt time.Time) *Member {
	return &Member{
		Email:       email,
		Name:        name,
		PrimaryRole: primaryRole,
		ExtraRoles:  extraRoles,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
}

// MemberRepository defines storage operations for members.
type MemberRepository interface {
	Create(ctx context.Context, m *Member, passwordHash, passwordSalt string) error
	GetByID(ctx context.Context, id string) (*Member, error)
	GetByEmail(ctx context.Context, email string) (*Member, error)
	GetCredentials(ctx context.Context, email string) (memberID, hash, salt string, err error)
	// ListByIDs returns the members for the given IDs, skipping unknown ones.
	ListByIDs(ctx context.Context, ids []string) ([]*Member, error)
	// ListIDs returns the full roster, used when a direct-create supplies no
	// invitees.
	ListIDs(ctx context.Context) ([]string, error)
	// ListBlockedOn reports which members have blocked the given day. This is
	// a read-only availability signal consumed by the editor UI; the
	// lifecycle engine itself never consults it.
	ListBlockedOn(ctx context.Context, day time.Time) ([]string, error)
}

// PasswordHasher handles salt generation, hashing, and verification.
// Implementations may use bcrypt, argon2, etc.
type PasswordHasher interface {
	GenerateSalt() (string, error)
	Hash(salt, password string) (hash string, err error)
	Compare(hash, salt, password string) error
}

// TokenIssuer issues tokens (e.g. JWT) for an authenticated member.
type TokenIssuer interface {
	Issue(memberID, email string, capabilities []string, expiry time.Duration) (string, error)
}

// TokenVerifier validates a token and returns the member ID and the
// capability tags it carries.
type TokenVerifier interface {
	Verify(token string) (memberID string, capabilities []string, err error)
}

// MemberService defines signup/login and roster queries.
type MemberService interface {
	SignUp(ctx context.Context, email, name, password, primaryRole string, extraRoles []string) (*Member, error)
	Login(ctx context.Context, email, password string) (token string, err error)
	GetByID(ctx context.Context, id string) (*Member, error)
	ListBlockedOn(ctx context.Context, day time.Time) ([]string, error)
}
