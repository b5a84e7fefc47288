package domain

import (
	"context"
	"time"
)

// RehearsalStatus is the lifecycle state of a rehearsal.
type RehearsalStatus string

const (
	// StatusDraft marks a rehearsal visible only to its planner.
	StatusDraft RehearsalStatus = "draft"
	// StatusPlanned marks a published rehearsal visible to its invitees.
	StatusPlanned RehearsalStatus = "planned"
)

// Defaults applied when a draft is created with partial fields.
const (
	DefaultTitle    = "New rehearsal"
	DefaultLocation = "location TBD"
	DefaultDuration = 2 * time.Hour
)

// Rehearsal represents a scheduled group rehearsal.
// RequiredRoles is a denormalized projection of the invitees' roles; it is
// recomputed from the full invitee set on every sync, never patched.
// swagger:model Rehearsal
type Rehearsal struct {
	ID                   string                     `json:"id"`
	Title                string                     `json:"title"`
	StartsAt             time.Time                  `json:"starts_at"`
	EndsAt               time.Time                  `json:"ends_at"`
	Location             string                     `json:"location"`
	Description          *string                    `json:"description"`
	Status               RehearsalStatus            `json:"status"`
	DeadlineOption       RegistrationDeadlineOption `json:"deadline_option"`
	RegistrationDeadline *time.Time                 `json:"registration_deadline"`
	RequiredRoles        []string                   `json:"required_roles"`
	CreatedBy            string                     `json:"created_by"`
	CreatedAt            time.Time                  `json:"created_at"`
	UpdatedAt            time.Time                  `json:"updated_at"`
}

// Duration returns the rehearsal length, or 0 when start/end are inconsistent.
func (r *Rehearsal) Duration() time.Duration {
	d := r.EndsAt.Sub(r.StartsAt)
	if d <= 0 {
		return 0
	}
	return d
}

// RehearsalInput carries the optional fields a caller may set on create,
// update or publish. Nil means "not supplied"; for InviteeIDs, nil means the
// invitee set is left untouched while an empty slice clears it.
type RehearsalInput struct {
	Title          *string  `json:"title"`
	Date           *string  `json:"date"`     // "2006-01-02"
	Time           *string  `json:"time"`     // "15:04"
	EndTime        *string  `json:"end_time"` // "15:04", overrides the derived end
	Location       *string  `json:"location"`
	Description    *string  `json:"description"`
	DeadlineOption *string  `json:"deadline_option"`
	InviteeIDs     []string `json:"invitee_ids"`
}

// RehearsalRepository defines storage operations for rehearsals.
// Concurrent updates to the same rehearsal are resolved last-committed-writer
// wins; there is no optimistic version column.
type RehearsalRepository interface {
	Create(ctx context.Context, r *Rehearsal) error
	GetByID(ctx context.Context, id string) (*Rehearsal, error)
	Update(ctx context.Context, r *Rehearsal) error
	// UpdateWithInvitees persists the field set and reconciles the invitee
	// rows in one transaction, so a failed field update never leaves a
	// half-applied invitee set behind. Returns the resulting invitee set.
	UpdateWithInvitees(ctx context.Context, r *Rehearsal, memberIDs []string) ([]string, error)
	// Delete removes the rehearsal and cascades invitee and
	// notification-recipient rows in one transaction.
	Delete(ctx context.Context, id string) error
	ListForMember(ctx context.Context, memberID string) ([]*Rehearsal, error)
}

// RehearsalService governs the draft/publish lifecycle. All methods check
// the schedule.manage capability upstream; plannerID is the authenticated
// caller.
type RehearsalService interface {
	// CreateDraft creates a draft from partial fields, applying defaults for
	// anything missing. No invitees are synced and nothing is notified.
	CreateDraft(ctx context.Context, plannerID string, in RehearsalInput) (*Rehearsal, error)
	// UpdateDraft edits a draft in place. Returns ErrNotDraft if the
	// rehearsal has since been published.
	UpdateDraft(ctx context.Context, plannerID, rehearsalID string, in RehearsalInput) (*Rehearsal, error)
	// Update edits a rehearsal in either state. Draft edits are silent;
	// planned edits trigger the notification reconciler and a realtime
	// broadcast of the changed fields.
	Update(ctx context.Context, plannerID, rehearsalID string, in RehearsalInput) (*Rehearsal, error)
	// Publish transitions Draft to Planned (one-way) and notifies the
	// synchronized invitee set.
	Publish(ctx context.Context, plannerID, rehearsalID string, in RehearsalInput) (*Rehearsal, error)
	// CreatePlanned creates a published rehearsal directly, defaulting the
	// invitee set to the full roster. Returns ErrNoRecipients when the
	// roster is empty.
	CreatePlanned(ctx context.Context, plannerID string, in RehearsalInput) (*Rehearsal, error)
	// Delete removes a rehearsal in either state and broadcasts the deletion
	// to everyone who had visibility.
	Delete(ctx context.Context, plannerID, rehearsalID string) error
	// GetByID returns the rehearsal and its invitee set. Drafts are visible
	// only to their planner; planned rehearsals to planner and invitees.
	GetByID(ctx context.Context, callerID, rehearsalID string) (*Rehearsal, []string, error)
	ListForMember(ctx context.Context, callerID string) ([]*Rehearsal, error)
}
