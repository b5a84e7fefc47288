package domain

import (
	"context"
	"time"
)

// RehearsalInvitee is the join row between a rehearsal and a member. At most
// one row exists per (rehearsal, member) pair; rows are created and destroyed
// exclusively by Sync.
// swagger:model RehearsalInvitee
type RehearsalInvitee struct {
	RehearsalID string    `json:"rehearsal_id"`
	MemberID    string    `json:"member_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// InviteeRepository reconciles the persisted invitee set for a rehearsal.
type InviteeRepository interface {
	// Sync reconciles the requested member set against the stored rows in a
	// single transaction: requested IDs are deduplicated, rows not in the
	// request are deleted, missing rows are inserted (idempotently; a
	// concurrent duplicate insert does not fail the transaction). An empty
	// request clears the set. Returns the resulting set so callers can chain
	// role aggregation without a second read.
	Sync(ctx context.Context, rehearsalID string, memberIDs []string) ([]string, error)
	ListByRehearsalID(ctx context.Context, rehearsalID string) ([]string, error)
}
