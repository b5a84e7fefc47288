package domain

import (
	"context"
	"time"
)

// Notification types.
const (
	NotificationTypeRehearsal       = "rehearsal"
	NotificationTypeRehearsalUpdate = "rehearsal-update"
)

// RecipientState is the explicit responded tag on a recipient row. The
// reconciler branches on this tag: Pending recipients see amended threads in
// place, Responded recipients get a forked thread.
type RecipientState string

const (
	RecipientPending   RecipientState = "pending"
	RecipientResponded RecipientState = "responded"
)

// Notification is a message thread, optionally tied to a rehearsal.
// swagger:model Notification
type Notification struct {
	ID          string    `json:"id"`
	RehearsalID *string   `json:"rehearsal_id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}

// NotificationRecipient joins a notification to a member. RespondedAt is set
// exactly once, when the member acts on the item; the row itself is only ever
// removed by cascading rehearsal deletion.
// swagger:model NotificationRecipient
type NotificationRecipient struct {
	NotificationID string         `json:"notification_id"`
	MemberID       string         `json:"member_id"`
	State          RecipientState `json:"state"`
	RespondedAt    *time.Time     `json:"responded_at"`
}

// NotificationWithRecipients bundles a thread with its recipient rows.
type NotificationWithRecipients struct {
	Notification *Notification            `json:"notification"`
	Recipients   []*NotificationRecipient `json:"recipients"`
}

// InboxItem is a notification as seen by one recipient.
type InboxItem struct {
	Notification *Notification  `json:"notification"`
	State        RecipientState `json:"state"`
	RespondedAt  *time.Time     `json:"responded_at"`
}

// NotificationRepository defines storage operations for notification threads
// and their recipient rows.
type NotificationRepository interface {
	// CreateWithRecipients persists the notification and one pending
	// recipient row per member in a single transaction.
	CreateWithRecipients(ctx context.Context, n *Notification, memberIDs []string) error
	// GetEarliestByRehearsalID returns the oldest thread for the rehearsal
	// with its recipients, or ErrNotFound.
	GetEarliestByRehearsalID(ctx context.Context, rehearsalID string) (*NotificationWithRecipients, error)
	// AmendContent rewrites title and body of an existing thread in place.
	AmendContent(ctx context.Context, notificationID, title, body string) error
	// AddRecipients inserts pending recipient rows for members not yet on the
	// thread. Idempotent.
	AddRecipients(ctx context.Context, notificationID string, memberIDs []string) error
	// ListRecipientIDsByRehearsalID returns the distinct member IDs across
	// all threads ever sent for the rehearsal.
	ListRecipientIDsByRehearsalID(ctx context.Context, rehearsalID string) ([]string, error)
	ListForMember(ctx context.Context, memberID string, p PaginationParams) ([]*InboxItem, int, error)
	// MarkResponded flips the member's recipient row to Responded. Idempotent;
	// the original timestamp is kept on repeat calls.
	MarkResponded(ctx context.Context, notificationID, memberID string, at time.Time) error
}

// BroadcastEvent is a realtime payload fanned out to a recipient set after
// the authoritative mutation commits.
type BroadcastEvent struct {
	Kind        string    `json:"kind"` // rehearsal.created | rehearsal.updated | rehearsal.deleted
	RehearsalID string    `json:"rehearsal_id"`
	Title       string    `json:"title"`
	Changed     []string  `json:"changed,omitempty"`
	SentAt      time.Time `json:"sent_at"`
}

// Broadcaster delivers realtime events to connected members. Delivery is
// best-effort and fire-and-forget; implementations must not block the caller.
type Broadcaster interface {
	Broadcast(memberIDs []string, ev BroadcastEvent)
}

// PushSender delivers an out-of-band per-recipient push. Failures are
// reported per recipient and never retried.
type PushSender interface {
	Send(ctx context.Context, memberID, title, body string) error
}

// NotificationService is the reconciler: it decides, per lifecycle
// transition, who is notified and whether an existing thread is amended in
// place or forked.
type NotificationService interface {
	RehearsalCreated(ctx context.Context, r *Rehearsal, inviteeIDs []string) error
	RehearsalUpdated(ctx context.Context, r *Rehearsal, inviteeIDs []string, changed []string) error
	// RecipientsForRehearsal returns every member notified about the
	// rehearsal across all threads. Callers capture this before a delete so
	// the deletion broadcast can still reach everyone who had visibility.
	RecipientsForRehearsal(ctx context.Context, rehearsalID string) ([]string, error)
	// RehearsalDeleted broadcasts to the captured recipient union after the
	// rows are gone; it creates no notification.
	RehearsalDeleted(ctx context.Context, rehearsalID, title string, recipientIDs []string)
	ListForMember(ctx context.Context, memberID string, p PaginationParams) ([]*InboxItem, int, error)
	MarkResponded(ctx context.Context, memberID, notificationID string) error
}
