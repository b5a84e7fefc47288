package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rehearsalplanner/internal/domain"
)

type notificationService struct {
	repo           domain.NotificationRepository
	broadcaster    domain.Broadcaster
	push           domain.PushSender
	clock          domain.Clock
	logger         *slog.Logger
	contextTimeout time.Duration
}

// NewNotificationService creates the notification reconciler.
func NewNotificationService(
	repo domain.NotificationRepository,
	broadcaster domain.Broadcaster,
	push domain.PushSender,
	clock domain.Clock,
	logger *slog.Logger,
	timeout time.Duration,
) domain.NotificationService {
	return &notificationService{
		repo:           repo,
		broadcaster:    broadcaster,
		push:           push,
		clock:          clock,
		logger:         logger,
		contextTimeout: timeout,
	}
}

// composeBody renders the notification body from the rehearsal's current
// details so a pending item always reflects them.
func composeBody(r *domain.Rehearsal) string {
	body := fmt.Sprintf("%s on %s, %s until %s at %s.",
		r.Title,
		r.StartsAt.Format("Monday 2 January 2006"),
		r.StartsAt.Format("15:04"),
		r.EndsAt.Format("15:04"),
		r.Location,
	)
	if r.RegistrationDeadline != nil {
		body += fmt.Sprintf(" Please respond by %s.", r.RegistrationDeadline.Format("Monday 2 January 2006 15:04"))
	}
	return body
}

// dispatch fans out the realtime broadcast and one best-effort push per
// recipient. It runs after the authoritative rows are committed; failures are
// logged and never propagated. Pushes are detached from the request context
// so an early caller return does not cut them off.
func (s *notificationService) dispatch(ctx context.Context, memberIDs []string, ev domain.BroadcastEvent, pushTitle, pushBody string) {
	s.broadcaster.Broadcast(memberIDs, ev)
	pushCtx := context.WithoutCancel(ctx)
	for _, memberID := range memberIDs {
		go func(id string) {
			if err := s.push.Send(pushCtx, id, pushTitle, pushBody); err != nil {
				s.logger.Warn("push dispatch failed", "member_id", id, "rehearsal_id", ev.RehearsalID, "err", err)
			}
		}(memberID)
	}
}

func (s *notificationService) RehearsalCreated(ctx context.Context, r *domain.Rehearsal, inviteeIDs []string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	n := &domain.Notification{
		RehearsalID: &r.ID,
		Type:        domain.NotificationTypeRehearsal,
		Title:       r.Title,
		Body:        composeBody(r),
		CreatedAt:   s.clock.Now(),
	}
	if err := s.repo.CreateWithRecipients(ctx, n, inviteeIDs); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	s.dispatch(ctx, inviteeIDs, domain.BroadcastEvent{
		Kind:        "rehearsal.created",
		RehearsalID: r.ID,
		Title:       r.Title,
		SentAt:      s.clock.Now(),
	}, n.Title, n.Body)
	return nil
}

func (s *notificationService) RehearsalUpdated(ctx context.Context, r *domain.Rehearsal, inviteeIDs []string, changed []string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	body := composeBody(r)
	updateTitle := r.Title + " (updated)"

	earliest, err := s.repo.GetEarliestByRehearsalID(ctx, r.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// Nothing was ever sent for this rehearsal; a single fresh
		// rehearsal-update thread addresses the full current set.
		n := &domain.Notification{
			RehearsalID: &r.ID,
			Type:        domain.NotificationTypeRehearsalUpdate,
			Title:       updateTitle,
			Body:        body,
			CreatedAt:   s.clock.Now(),
		}
		if err := s.repo.CreateWithRecipients(ctx, n, inviteeIDs); err != nil {
			return fmt.Errorf("create update notification: %w", err)
		}
	case err != nil:
		return fmt.Errorf("get earliest notification: %w", err)
	default:
		// Pending recipients keep their original item, rewritten in place so
		// it reflects the new details. Recipients who already acted get a
		// forked thread instead: silently rewriting an item they dismissed
		// would hide that something changed after their decision.
		var responded []string
		onThread := make(map[string]struct{}, len(earliest.Recipients))
		for _, rec := range earliest.Recipients {
			onThread[rec.MemberID] = struct{}{}
			if rec.State == domain.RecipientResponded {
				responded = append(responded, rec.MemberID)
			}
		}
		if err := s.repo.AmendContent(ctx, earliest.Notification.ID, r.Title, body); err != nil {
			return fmt.Errorf("amend notification: %w", err)
		}
		var added []string
		for _, id := range inviteeIDs {
			if _, ok := onThread[id]; !ok {
				added = append(added, id)
			}
		}
		if len(added) > 0 {
			if err := s.repo.AddRecipients(ctx, earliest.Notification.ID, added); err != nil {
				return fmt.Errorf("add recipients: %w", err)
			}
		}
		if len(responded) > 0 {
			fork := &domain.Notification{
				RehearsalID: &r.ID,
				Type:        domain.NotificationTypeRehearsalUpdate,
				Title:       updateTitle,
				Body:        body,
				CreatedAt:   s.clock.Now(),
			}
			if err := s.repo.CreateWithRecipients(ctx, fork, responded); err != nil {
				return fmt.Errorf("create fork notification: %w", err)
			}
		}
	}

	s.dispatch(ctx, inviteeIDs, domain.BroadcastEvent{
		Kind:        "rehearsal.updated",
		RehearsalID: r.ID,
		Title:       r.Title,
		Changed:     changed,
		SentAt:      s.clock.Now(),
	}, updateTitle, body)
	return nil
}

func (s *notificationService) RecipientsForRehearsal(ctx context.Context, rehearsalID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	ids, err := s.repo.ListRecipientIDsByRehearsalID(ctx, rehearsalID)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	return ids, nil
}

func (s *notificationService) RehearsalDeleted(ctx context.Context, rehearsalID, title string, recipientIDs []string) {
	// The rows are already gone; this is broadcast-only and cannot fail the
	// caller.
	s.broadcaster.Broadcast(recipientIDs, domain.BroadcastEvent{
		Kind:        "rehearsal.deleted",
		RehearsalID: rehearsalID,
		Title:       title,
		SentAt:      s.clock.Now(),
	})
}

func (s *notificationService) ListForMember(ctx context.Context, memberID string, p domain.PaginationParams) ([]*domain.InboxItem, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	items, total, err := s.repo.ListForMember(ctx, memberID, p.Normalize())
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	if items == nil {
		items = []*domain.InboxItem{}
	}
	return items, total, nil
}

func (s *notificationService) MarkResponded(ctx context.Context, memberID, notificationID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := s.repo.MarkResponded(ctx, notificationID, memberID, s.clock.Now()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("mark responded: %w", err)
	}
	return nil
}
