package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rehearsalplanner/internal/domain"
)

const maxTitleLen = 200

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

type rehearsalService struct {
	rehearsalRepo  domain.RehearsalRepository
	inviteeRepo    domain.InviteeRepository
	memberRepo     domain.MemberRepository
	notifications  domain.NotificationService
	sanitizer      domain.DescriptionSanitizer
	clock          domain.Clock
	logger         *slog.Logger
	contextTimeout time.Duration
}

// NewRehearsalService creates a RehearsalService with the given collaborators.
func NewRehearsalService(
	rehearsalRepo domain.RehearsalRepository,
	inviteeRepo domain.InviteeRepository,
	memberRepo domain.MemberRepository,
	notifications domain.NotificationService,
	sanitizer domain.DescriptionSanitizer,
	clock domain.Clock,
	logger *slog.Logger,
	timeout time.Duration,
) domain.RehearsalService {
	return &rehearsalService{
		rehearsalRepo:  rehearsalRepo,
		inviteeRepo:    inviteeRepo,
		memberRepo:     memberRepo,
		notifications:  notifications,
		sanitizer:      sanitizer,
		clock:          clock,
		logger:         logger,
		contextTimeout: timeout,
	}
}

// nextFullHour returns the first full hour strictly after now.
func nextFullHour(now time.Time) time.Time {
	return now.Truncate(time.Hour).Add(time.Hour)
}

// resolveStart combines the prior start with optional date/time overrides.
// The second return reports whether either override was supplied.
func resolveStart(prior time.Time, date, clockStr *string) (time.Time, bool, error) {
	if date == nil && clockStr == nil {
		return prior, false, nil
	}
	loc := prior.Location()
	y, mo, d := prior.Date()
	h, mi := prior.Hour(), prior.Minute()
	if date != nil {
		parsed, err := time.ParseInLocation(dateLayout, *date, loc)
		if err != nil {
			return time.Time{}, false, domain.ErrValidation
		}
		y, mo, d = parsed.Date()
	}
	if clockStr != nil {
		parsed, err := time.Parse(timeLayout, *clockStr)
		if err != nil {
			return time.Time{}, false, domain.ErrValidation
		}
		h, mi = parsed.Hour(), parsed.Minute()
	}
	return time.Date(y, mo, d, h, mi, 0, 0, loc), true, nil
}

// deriveEnd applies the end-time rule: an explicit end clock wins; otherwise
// a positive prior duration is preserved across the reschedule; otherwise the
// default rehearsal length applies.
func deriveEnd(start time.Time, priorDuration time.Duration, endClock *string) (time.Time, error) {
	if endClock != nil {
		parsed, err := time.Parse(timeLayout, *endClock)
		if err != nil {
			return time.Time{}, domain.ErrValidation
		}
		y, mo, d := start.Date()
		return time.Date(y, mo, d, parsed.Hour(), parsed.Minute(), 0, 0, start.Location()), nil
	}
	if priorDuration > 0 {
		return start.Add(priorDuration), nil
	}
	return start.Add(domain.DefaultDuration), nil
}

// applyInput mutates r with the supplied fields and returns the names of the
// fields that changed, for the realtime broadcast. The registration deadline
// is recomputed whenever the start or the deadline option changes, so it
// tracks reschedules instead of going stale.
func (s *rehearsalService) applyInput(r *domain.Rehearsal, in domain.RehearsalInput) ([]string, error) {
	var changed []string

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" || len(title) > maxTitleLen {
			return nil, domain.ErrValidation
		}
		if title != r.Title {
			changed = append(changed, "title")
		}
		r.Title = title
	}
	if in.Location != nil {
		location := strings.TrimSpace(*in.Location)
		if location == "" {
			location = domain.DefaultLocation
		}
		if location != r.Location {
			changed = append(changed, "location")
		}
		r.Location = location
	}
	if in.Description != nil {
		clean := s.sanitizer.Sanitize(*in.Description)
		if r.Description == nil || *r.Description != clean {
			changed = append(changed, "description")
		}
		r.Description = &clean
	}

	recomputeDeadline := false
	if in.DeadlineOption != nil {
		opt, err := domain.ParseDeadlineOption(*in.DeadlineOption)
		if err != nil {
			return nil, domain.ErrValidation
		}
		if opt != r.DeadlineOption {
			changed = append(changed, "deadline")
		}
		r.DeadlineOption = opt
		recomputeDeadline = true
	}

	start, timeChanged, err := resolveStart(r.StartsAt, in.Date, in.Time)
	if err != nil {
		return nil, err
	}
	if timeChanged || in.EndTime != nil {
		end, err := deriveEnd(start, r.Duration(), in.EndTime)
		if err != nil {
			return nil, err
		}
		r.StartsAt = start
		r.EndsAt = end
		changed = append(changed, "time")
		recomputeDeadline = true
	}
	if recomputeDeadline {
		r.RegistrationDeadline = domain.ComputeDeadline(r.StartsAt, r.DeadlineOption)
	}
	return changed, nil
}

// getOwned loads the rehearsal and verifies the caller is its planner.
func (s *rehearsalService) getOwned(ctx context.Context, plannerID, rehearsalID string) (*domain.Rehearsal, error) {
	r, err := s.rehearsalRepo.GetByID(ctx, rehearsalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get rehearsal: %w", err)
	}
	if r.CreatedBy != plannerID {
		return nil, domain.ErrForbidden
	}
	return r, nil
}

// persistWithInvitees recomputes the denormalized required-roles projection
// from the requested member set and then persists the rehearsal fields plus
// the reconciled invitee rows as one atomic unit. The roles are derived
// before the write; duplicates in the request cannot change the union.
func (s *rehearsalService) persistWithInvitees(ctx context.Context, r *domain.Rehearsal, memberIDs []string) ([]string, error) {
	members, err := s.memberRepo.ListByIDs(ctx, memberIDs)
	if err != nil {
		return nil, fmt.Errorf("list invitee members: %w", err)
	}
	r.RequiredRoles = AggregateRoles(members)
	final, err := s.rehearsalRepo.UpdateWithInvitees(ctx, r, memberIDs)
	if err != nil {
		return nil, fmt.Errorf("update rehearsal: %w", err)
	}
	return final, nil
}

func (s *rehearsalService) CreateDraft(ctx context.Context, plannerID string, in domain.RehearsalInput) (*domain.Rehearsal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	now := s.clock.Now()
	start := nextFullHour(now)
	// A caller-supplied slot is used when parseable; otherwise the default
	// next-full-hour slot stands.
	if parsed, supplied, err := resolveStart(start, in.Date, in.Time); err == nil && supplied {
		start = parsed
	}
	// An explicitly supplied end time must parse; unlike an unparseable
	// date, it is rejected rather than defaulted.
	end, err := deriveEnd(start, 0, in.EndTime)
	if err != nil {
		return nil, err
	}

	title := domain.DefaultTitle
	if in.Title != nil && strings.TrimSpace(*in.Title) != "" {
		title = strings.TrimSpace(*in.Title)
		if len(title) > maxTitleLen {
			return nil, domain.ErrValidation
		}
	}
	location := domain.DefaultLocation
	if in.Location != nil && strings.TrimSpace(*in.Location) != "" {
		location = strings.TrimSpace(*in.Location)
	}
	opt := domain.DefaultDeadlineOption
	if in.DeadlineOption != nil {
		opt, err = domain.ParseDeadlineOption(*in.DeadlineOption)
		if err != nil {
			return nil, domain.ErrValidation
		}
	}
	var description *string
	if in.Description != nil {
		clean := s.sanitizer.Sanitize(*in.Description)
		description = &clean
	}

	r := &domain.Rehearsal{
		Title:                title,
		StartsAt:             start,
		EndsAt:               end,
		Location:             location,
		Description:          description,
		Status:               domain.StatusDraft,
		DeadlineOption:       opt,
		RegistrationDeadline: domain.ComputeDeadline(start, opt),
		RequiredRoles:        []string{},
		CreatedBy:            plannerID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.rehearsalRepo.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create rehearsal: %w", err)
	}
	return r, nil
}

func (s *rehearsalService) UpdateDraft(ctx context.Context, plannerID, rehearsalID string, in domain.RehearsalInput) (*domain.Rehearsal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	r, err := s.getOwned(ctx, plannerID, rehearsalID)
	if err != nil {
		return nil, err
	}
	if r.Status != domain.StatusDraft {
		return nil, domain.ErrNotDraft
	}
	return s.updateDraft(ctx, r, in)
}

// updateDraft applies a silent draft edit: no notifications, no broadcast.
func (s *rehearsalService) updateDraft(ctx context.Context, r *domain.Rehearsal, in domain.RehearsalInput) (*domain.Rehearsal, error) {
	if _, err := s.applyInput(r, in); err != nil {
		return nil, err
	}
	r.UpdatedAt = s.clock.Now()
	if in.InviteeIDs != nil {
		if _, err := s.persistWithInvitees(ctx, r, in.InviteeIDs); err != nil {
			return nil, err
		}
		return r, nil
	}
	if err := s.rehearsalRepo.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("update rehearsal: %w", err)
	}
	return r, nil
}

func (s *rehearsalService) Update(ctx context.Context, plannerID, rehearsalID string, in domain.RehearsalInput) (*domain.Rehearsal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	r, err := s.getOwned(ctx, plannerID, rehearsalID)
	if err != nil {
		return nil, err
	}
	if r.Status == domain.StatusDraft {
		return s.updateDraft(ctx, r, in)
	}

	changed, err := s.applyInput(r, in)
	if err != nil {
		return nil, err
	}
	r.UpdatedAt = s.clock.Now()
	var invitees []string
	if in.InviteeIDs != nil {
		invitees, err = s.persistWithInvitees(ctx, r, in.InviteeIDs)
		if err != nil {
			return nil, err
		}
		changed = append(changed, "invitees")
	} else {
		invitees, err = s.inviteeRepo.ListByRehearsalID(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("list invitees: %w", err)
		}
		if err := s.rehearsalRepo.Update(ctx, r); err != nil {
			return nil, fmt.Errorf("update rehearsal: %w", err)
		}
	}
	// The mutation is durable; notification reconciliation is best-effort
	// from here on.
	if err := s.notifications.RehearsalUpdated(ctx, r, invitees, changed); err != nil {
		s.logger.Warn("notification reconcile failed after update", "rehearsal_id", r.ID, "err", err)
	}
	return r, nil
}

func (s *rehearsalService) Publish(ctx context.Context, plannerID, rehearsalID string, in domain.RehearsalInput) (*domain.Rehearsal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	r, err := s.getOwned(ctx, plannerID, rehearsalID)
	if err != nil {
		return nil, err
	}
	if r.Status != domain.StatusDraft {
		return nil, domain.ErrNotDraft
	}
	if _, err := s.applyInput(r, in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(r.Title) == "" || r.StartsAt.IsZero() {
		return nil, domain.ErrValidation
	}

	// The explicit payload wins; absent one, the draft's current set is
	// published as-is.
	invitees := in.InviteeIDs
	if invitees == nil {
		invitees, err = s.inviteeRepo.ListByRehearsalID(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("list invitees: %w", err)
		}
	}
	r.RegistrationDeadline = domain.ComputeDeadline(r.StartsAt, r.DeadlineOption)
	r.Status = domain.StatusPlanned
	r.UpdatedAt = s.clock.Now()
	final, err := s.persistWithInvitees(ctx, r, invitees)
	if err != nil {
		return nil, err
	}
	if err := s.notifications.RehearsalCreated(ctx, r, final); err != nil {
		s.logger.Warn("notification reconcile failed after publish", "rehearsal_id", r.ID, "err", err)
	}
	return r, nil
}

func (s *rehearsalService) CreatePlanned(ctx context.Context, plannerID string, in domain.RehearsalInput) (*domain.Rehearsal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	invitees := in.InviteeIDs
	if len(invitees) == 0 {
		roster, err := s.memberRepo.ListIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list roster: %w", err)
		}
		if len(roster) == 0 {
			return nil, domain.ErrNoRecipients
		}
		invitees = roster
	}

	in.InviteeIDs = nil // synced below, after the row exists
	r, err := s.CreateDraft(ctx, plannerID, in)
	if err != nil {
		return nil, err
	}
	r.Status = domain.StatusPlanned
	r.UpdatedAt = s.clock.Now()
	final, err := s.persistWithInvitees(ctx, r, invitees)
	if err != nil {
		return nil, err
	}
	if err := s.notifications.RehearsalCreated(ctx, r, final); err != nil {
		s.logger.Warn("notification reconcile failed after create", "rehearsal_id", r.ID, "err", err)
	}
	return r, nil
}

func (s *rehearsalService) Delete(ctx context.Context, plannerID, rehearsalID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	r, err := s.getOwned(ctx, plannerID, rehearsalID)
	if err != nil {
		return err
	}

	// Capture everyone with visibility before the cascade removes the rows:
	// current invitees plus every recipient of every thread ever sent.
	invitees, err := s.inviteeRepo.ListByRehearsalID(ctx, rehearsalID)
	if err != nil {
		return fmt.Errorf("list invitees: %w", err)
	}
	notified, err := s.notifications.RecipientsForRehearsal(ctx, rehearsalID)
	if err != nil {
		return fmt.Errorf("list notified members: %w", err)
	}
	recipients := unionIDs(invitees, notified)

	if err := s.rehearsalRepo.Delete(ctx, rehearsalID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete rehearsal: %w", err)
	}
	s.notifications.RehearsalDeleted(ctx, rehearsalID, r.Title, recipients)
	return nil
}

func (s *rehearsalService) GetByID(ctx context.Context, callerID, rehearsalID string) (*domain.Rehearsal, []string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	r, err := s.rehearsalRepo.GetByID(ctx, rehearsalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, fmt.Errorf("get rehearsal: %w", err)
	}
	// Drafts do not exist for anyone but their planner.
	if r.Status == domain.StatusDraft && r.CreatedBy != callerID {
		return nil, nil, domain.ErrNotFound
	}
	invitees, err := s.inviteeRepo.ListByRehearsalID(ctx, rehearsalID)
	if err != nil {
		return nil, nil, fmt.Errorf("list invitees: %w", err)
	}
	if r.Status == domain.StatusPlanned && r.CreatedBy != callerID && !containsID(invitees, callerID) {
		return nil, nil, domain.ErrForbidden
	}
	return r, invitees, nil
}

func (s *rehearsalService) ListForMember(ctx context.Context, callerID string) ([]*domain.Rehearsal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	rehearsals, err := s.rehearsalRepo.ListForMember(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("list rehearsals: %w", err)
	}
	if rehearsals == nil {
		rehearsals = []*domain.Rehearsal{}
	}
	return rehearsals, nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func unionIDs(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, ids := range [][]string{a, b} {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
