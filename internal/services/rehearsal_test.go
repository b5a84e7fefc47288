package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rehearsalplanner/internal/domain"
)

// ---- fakes ----

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

type passthroughSanitizer struct{}

func (passthroughSanitizer) Sanitize(html string) string { return html }

type fakeRehearsalRepo struct {
	rehearsals map[string]*domain.Rehearsal
	invitees   *fakeInviteeRepo
	nextID     int
	updates    int
	deleted    []string
	updateErr  error
}

func newFakeRehearsalRepo() *fakeRehearsalRepo {
	return &fakeRehearsalRepo{rehearsals: make(map[string]*domain.Rehearsal)}
}

func (f *fakeRehearsalRepo) Create(_ context.Context, r *domain.Rehearsal) error {
	f.nextID++
	r.ID = fmt.Sprintf("reh-%d", f.nextID)
	cp := *r
	f.rehearsals[r.ID] = &cp
	return nil
}

func (f *fakeRehearsalRepo) GetByID(_ context.Context, id string) (*domain.Rehearsal, error) {
	r, ok := f.rehearsals[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRehearsalRepo) Update(_ context.Context, r *domain.Rehearsal) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.rehearsals[r.ID]; !ok {
		return domain.ErrNotFound
	}
	f.updates++
	cp := *r
	f.rehearsals[r.ID] = &cp
	return nil
}

// UpdateWithInvitees mirrors the transactional contract: when the field
// update fails, the invitee set is left exactly as it was.
func (f *fakeRehearsalRepo) UpdateWithInvitees(ctx context.Context, r *domain.Rehearsal, memberIDs []string) ([]string, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if _, ok := f.rehearsals[r.ID]; !ok {
		return nil, domain.ErrNotFound
	}
	final, err := f.invitees.Sync(ctx, r.ID, memberIDs)
	if err != nil {
		return nil, err
	}
	f.updates++
	cp := *r
	f.rehearsals[r.ID] = &cp
	return final, nil
}

func (f *fakeRehearsalRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.rehearsals[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.rehearsals, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRehearsalRepo) ListForMember(_ context.Context, _ string) ([]*domain.Rehearsal, error) {
	var out []*domain.Rehearsal
	for _, r := range f.rehearsals {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

type fakeInviteeRepo struct {
	sets  map[string][]string
	syncs int
}

func newFakeInviteeRepo() *fakeInviteeRepo {
	return &fakeInviteeRepo{sets: make(map[string][]string)}
}

func (f *fakeInviteeRepo) Sync(_ context.Context, rehearsalID string, memberIDs []string) ([]string, error) {
	seen := make(map[string]struct{})
	out := []string{}
	for _, id := range memberIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	f.sets[rehearsalID] = out
	f.syncs++
	return out, nil
}

func (f *fakeInviteeRepo) ListByRehearsalID(_ context.Context, rehearsalID string) ([]string, error) {
	return f.sets[rehearsalID], nil
}

type fakeMemberRepo struct {
	members map[string]*domain.Member
	roster  []string
}

func newFakeMemberRepo(members ...*domain.Member) *fakeMemberRepo {
	f := &fakeMemberRepo{members: make(map[string]*domain.Member)}
	for _, m := range members {
		f.members[m.ID] = m
		f.roster = append(f.roster, m.ID)
	}
	return f
}

func (f *fakeMemberRepo) Create(_ context.Context, m *domain.Member, _, _ string) error {
	f.members[m.ID] = m
	f.roster = append(f.roster, m.ID)
	return nil
}

func (f *fakeMemberRepo) GetByID(_ context.Context, id string) (*domain.Member, error) {
	m, ok := f.members[id]
	if !ok {
		return nil, domain.ErrMemberNotFound
	}
	return m, nil
}

func (f *fakeMemberRepo) GetByEmail(_ context.Context, email string) (*domain.Member, error) {
	for _, m := range f.members {
		if m.Email == email {
			return m, nil
		}
	}
	return nil, domain.ErrMemberNotFound
}

func (f *fakeMemberRepo) GetCredentials(_ context.Context, _ string) (string, string, string, error) {
	return "", "", "", domain.ErrMemberNotFound
}

func (f *fakeMemberRepo) ListByIDs(_ context.Context, ids []string) ([]*domain.Member, error) {
	var out []*domain.Member
	for _, id := range ids {
		if m, ok := f.members[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMemberRepo) ListIDs(_ context.Context) ([]string, error) {
	return f.roster, nil
}

func (f *fakeMemberRepo) ListBlockedOn(_ context.Context, _ time.Time) ([]string, error) {
	return nil, nil
}

// fakeNotifier records reconciler calls made by the lifecycle service.
type fakeNotifier struct {
	created     [][]string
	updated     [][]string
	updatedDiff [][]string
	deletedTo   []string
	recipients  []string
}

func (f *fakeNotifier) RehearsalCreated(_ context.Context, _ *domain.Rehearsal, inviteeIDs []string) error {
	f.created = append(f.created, inviteeIDs)
	return nil
}

func (f *fakeNotifier) RehearsalUpdated(_ context.Context, _ *domain.Rehearsal, inviteeIDs []string, changed []string) error {
	f.updated = append(f.updated, inviteeIDs)
	f.updatedDiff = append(f.updatedDiff, changed)
	return nil
}

func (f *fakeNotifier) RecipientsForRehearsal(_ context.Context, _ string) ([]string, error) {
	return f.recipients, nil
}

func (f *fakeNotifier) RehearsalDeleted(_ context.Context, _, _ string, recipientIDs []string) {
	f.deletedTo = recipientIDs
}

func (f *fakeNotifier) ListForMember(_ context.Context, _ string, _ domain.PaginationParams) ([]*domain.InboxItem, int, error) {
	return nil, 0, nil
}

func (f *fakeNotifier) MarkResponded(_ context.Context, _, _ string) error {
	return nil
}

type rehearsalFixture struct {
	svc      domain.RehearsalService
	repo     *fakeRehearsalRepo
	invitees *fakeInviteeRepo
	members  *fakeMemberRepo
	notifier *fakeNotifier
	now      time.Time
}

func newRehearsalFixture(t *testing.T, members ...*domain.Member) *rehearsalFixture {
	t.Helper()
	now := time.Date(2026, 3, 10, 14, 25, 0, 0, time.UTC)
	repo := newFakeRehearsalRepo()
	invitees := newFakeInviteeRepo()
	repo.invitees = invitees
	memberRepo := newFakeMemberRepo(members...)
	notifier := &fakeNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewRehearsalService(repo, invitees, memberRepo, notifier, passthroughSanitizer{}, fixedClock{t: now}, logger, time.Second)
	return &rehearsalFixture{
		svc:      svc,
		repo:     repo,
		invitees: invitees,
		members:  memberRepo,
		notifier: notifier,
		now:      now,
	}
}

func strPtr(s string) *string { return &s }

// ---- tests ----

func TestCreateDraftDefaults(t *testing.T) {
	f := newRehearsalFixture(t)

	r, err := f.svc.CreateDraft(context.Background(), "planner-1", domain.RehearsalInput{})
	require.NoError(t, err)

	wantStart := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, domain.DefaultTitle, r.Title)
	assert.Equal(t, wantStart, r.StartsAt)
	assert.Equal(t, wantStart.Add(domain.DefaultDuration), r.EndsAt)
	assert.Equal(t, domain.DefaultLocation, r.Location)
	assert.Equal(t, domain.StatusDraft, r.Status)
	assert.Equal(t, domain.DeadlineOneWeek, r.DeadlineOption)
	require.NotNil(t, r.RegistrationDeadline)
	assert.Equal(t, wantStart.Add(-7*24*time.Hour), *r.RegistrationDeadline)
	assert.Empty(t, r.RequiredRoles)
	assert.Equal(t, "planner-1", r.CreatedBy)
	assert.Empty(t, f.notifier.created, "drafts must not notify")
}

func TestCreateDraftUnparseableDateFallsBackToDefault(t *testing.T) {
	f := newRehearsalFixture(t)

	r, err := f.svc.CreateDraft(context.Background(), "planner-1", domain.RehearsalInput{
		Date: strPtr("next tuesday"),
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC), r.StartsAt)
}

func TestCreateDraftExplicitSlot(t *testing.T) {
	f := newRehearsalFixture(t)

	r, err := f.svc.CreateDraft(context.Background(), "planner-1", domain.RehearsalInput{
		Date:    strPtr("2026-04-01"),
		Time:    strPtr("19:30"),
		EndTime: strPtr("22:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 4, 1, 19, 30, 0, 0, time.UTC), r.StartsAt)
	assert.Equal(t, time.Date(2026, 4, 1, 22, 0, 0, 0, time.UTC), r.EndsAt)
}

func TestCreateDraftInvalidDeadlineOption(t *testing.T) {
	f := newRehearsalFixture(t)

	_, err := f.svc.CreateDraft(context.Background(), "planner-1", domain.RehearsalInput{
		DeadlineOption: strPtr("3d"),
	})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateDraftNoDeadline(t *testing.T) {
	f := newRehearsalFixture(t)

	r, err := f.svc.CreateDraft(context.Background(), "planner-1", domain.RehearsalInput{
		DeadlineOption: strPtr("none"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DeadlineNone, r.DeadlineOption)
	assert.Nil(t, r.RegistrationDeadline)
}

func TestUpdateDraftPreservesDurationOnReschedule(t *testing.T) {
	f := newRehearsalFixture(t)

	draft, err := f.svc.CreateDraft(context.Background(), "planner-1", domain.RehearsalInput{
		Time:    strPtr("18:00"),
		EndTime: strPtr("21:00"), // three hours
	})
	require.NoError(t, err)

	updated, err := f.svc.UpdateDraft(context.Background(), "planner-1", draft.ID, domain.RehearsalInput{
		Date: strPtr("2026-05-02"),
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 2, 18, 0, 0, 0, time.UTC), updated.StartsAt)
	assert.Equal(t, 3*time.Hour, updated.Duration(), "prior duration carries across the reschedule")
}

func TestUpdateDraftRecomputesDeadlineOnReschedule(t *testing.T) {
	f := newRehearsalFixture(t)

	draft, err := f.svc.CreateDraft(context.Background(), "planner-1", domain.RehearsalInput{
		DeadlineOption: strPtr("48h"),
	})
	require.NoError(t, err)

	updated, err := f.svc.UpdateDraft(context.Background(), "planner-1", draft.ID, domain.RehearsalInput{
		Date: strPtr("2026-06-20"),
	})
	require.NoError(t, err)
	require.NotNil(t, updated.RegistrationDeadline)
	assert.Equal(t, updated.StartsAt.Add(-48*time.Hour), *updated.RegistrationDeadline)
}

func TestUpdateDraftRejectsPublished(t *testing.T) {
	f := newRehearsalFixture(t, &domain.Member{ID: "m1", PrimaryRole: "actor"})

	draft, err := f.svc.CreateDraft(context.Background(), "planner-1", domain.RehearsalInput{})
	require.NoError(t, err)
	_, err = f.svc.Publish(context.Background(), "planner-1", draft.ID, domain.RehearsalInput{
		InviteeIDs: []string{"m1"},
	})
	require.NoError(t, err)

	_, err = f.svc.UpdateDraft(context.Background(), "planner-1", draft.ID, domain.RehearsalInput{
		Title: strPtr("changed"),
	})
	require.ErrorIs(t, err, domain.ErrNotDraft)
}

func TestUpdateDraftForbiddenForOtherMember(t *testing.T) {
	f := newRehearsalFixture(t)

	draft, err := f.svc.CreateDraft(context.Background(), "planner-1", domain.RehearsalInput{})
	require.NoError(t, err)

	_, err = f.svc.UpdateDraft(context.Background(), "planner-2", draft.ID, domain.RehearsalInput{
		Title: strPtr("hijack"),
	})
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestPublishNotifiesSyncedInvitees(t *testing.T) {
	f := newRehearsalFixture(t,
		&domain.Member{ID: "m1", PrimaryRole: "actor"},
		&domain.Member{ID: "m2", PrimaryRole: "director", ExtraRoles: []string{"actor"}},
	)

	draft, err := f.svc.CreateDraft(context.Background(), "planner-1", domain.RehearsalInput{})
	require.NoError(t, err)

	published, err := f.svc.Publish(context.Background(), "planner-1", draft.ID, domain.RehearsalInput{
		InviteeIDs: []string{"m1", "m2"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPlanned, published.Status)
	assert.Equal(t, []string{"actor", "director"}, published.RequiredRoles)
	require.Len(t, f.notifier.created, 1)
	assert.ElementsMatch(t, []string{"m1", "m2"}, f.notifier.created[0])
}

func TestPublishKeepsDraftInviteesWhenPayloadOmitsThem(t *testing.T) {
	f := newRehearsalFixture(t, &domain.Member{ID: "m1", PrimaryRole: "actor"})

	draft, err := f.svc.CreateDraft(context.Background(), "planner-1", domain.RehearsalInput{})
	require.NoError(t, err)
	_, err = f.svc.UpdateDraft(context.Background(), "planner-1", draft.ID, domain.RehearsalInput{
		InviteeIDs: []string{"m1"},
	})
	require.NoError(t, err)

	_, err = f.svc.Publish(context.Background(), "planner-1", draft.ID, domain.RehearsalInput{})
	require.NoError(t, err)
	require.Len(t, f.notifier.created, 1)
	assert.Equal(t, []string{"m1"}, f.notifier.created[0])
}

func TestPublishTwiceFails(t *testing.T) {
	f := newRehearsalFixture(t, &domain.Member{ID: "m1", PrimaryRole: "actor"})

	draft, err := f.svc.CreateDraft(context.Background(), "planner-1", domain.RehearsalInput{})
	require.NoError(t, err)
	_, err = f.svc.Publish(context.Background(), "planner-1", draft.ID, domain.RehearsalInput{
		InviteeIDs: []string{"m1"},
	})
	require.NoError(t, err)

	_, err = f.svc.Publish(context.Background(), "planner-1", draft.ID, domain.RehearsalInput{})
	require.ErrorIs(t, err, domain.ErrNotDraft)
	require.Len(t, f.notifier.created, 1, "second publish must not notify again")
}

func TestUpdatePlannedTriggersReconcilerWithChangedFields(t *testing.T) {
	f := newRehearsalFixture(t, &domain.Member{ID: "m1", PrimaryRole: "actor"})

	draft, err := f.svc.CreateDraft(context.Background(), "planner-1", domain.RehearsalInput{})
	require.NoError(t, err)
	_, err = f.svc.Publish(context.Background(), "planner-1", draft.ID, domain.RehearsalInput{
		InviteeIDs: []string{"m1"},
	})
	require.NoError(t, err)

	_, err = f.svc.Update(context.Background(), "planner-1", draft.ID, domain.RehearsalInput{
		Title: strPtr("Dress rehearsal"),
		Time:  strPtr("20:00"),
	})
	require.NoError(t, err)

	require.Len(t, f.notifier.updated, 1)
	assert.Equal(t, []string{"m1"}, f.notifier.updated[0])
	assert.ElementsMatch(t, []string{"title", "time"}, f.notifier.updatedDiff[0])
}

func TestUpdateDraftStateIsSilent(t *testing.T) {
	f := newRehearsalFixture(t)

	draft, err := f.svc.CreateDraft(context.Background(), "planner-1", domain.RehearsalInput{})
	require.NoError(t, err)

	_, err = f.svc.Update(context.Background(), "planner-1", draft.ID, domain.RehearsalInput{
		Title: strPtr("Still secret"),
	})
	require.NoError(t, err)
	assert.Empty(t, f.notifier.updated)
	assert.Empty(t, f.notifier.created)
}

func TestCreatePlannedDefaultsToFullRoster(t *testing.T) {
	f := newRehearsalFixture(t,
		&domain.Member{ID: "m1", PrimaryRole: "actor"},
		&domain.Member{ID: "m2", PrimaryRole: "tech"},
	)

	r, err := f.svc.CreatePlanned(context.Background(), "planner-1", domain.RehearsalInput{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPlanned, r.Status)
	require.Len(t, f.notifier.created, 1)
	assert.ElementsMatch(t, []string{"m1", "m2"}, f.notifier.created[0])
}

func TestCreatePlannedEmptyRoster(t *testing.T) {
	f := newRehearsalFixture(t)

	_, err := f.svc.CreatePlanned(context.Background(), "planner-1", domain.RehearsalInput{})
	require.ErrorIs(t, err, domain.ErrNoRecipients)
	assert.Empty(t, f.repo.rehearsals, "nothing is persisted when there is no one to invite")
}

func TestDeleteBroadcastsToInviteesAndPastRecipients(t *testing.T) {
	f := newRehearsalFixture(t,
		&domain.Member{ID: "a", PrimaryRole: "actor"},
		&domain.Member{ID: "b", PrimaryRole: "actor"},
	)

	draft, err := f.svc.CreateDraft(context.Background(), "planner-1", domain.RehearsalInput{})
	require.NoError(t, err)
	_, err = f.svc.Publish(context.Background(), "planner-1", draft.ID, domain.RehearsalInput{
		InviteeIDs: []string{"a", "b"},
	})
	require.NoError(t, err)

	// "c" was removed from the invitee set at some point but was notified once.
	f.notifier.recipients = []string{"b", "c"}

	require.NoError(t, f.svc.Delete(context.Background(), "planner-1", draft.ID))
	assert.Equal(t, []string{draft.ID}, f.repo.deleted)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, f.notifier.deletedTo)
}

func TestGetByIDVisibility(t *testing.T) {
	f := newRehearsalFixture(t, &domain.Member{ID: "m1", PrimaryRole: "actor"})

	draft, err := f.svc.CreateDraft(context.Background(), "planner-1", domain.RehearsalInput{})
	require.NoError(t, err)

	// Drafts do not exist for anyone but the planner.
	_, _, err = f.svc.GetByID(context.Background(), "m1", draft.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Publish(context.Background(), "planner-1", draft.ID, domain.RehearsalInput{
		InviteeIDs: []string{"m1"},
	})
	require.NoError(t, err)

	r, invitees, err := f.svc.GetByID(context.Background(), "m1", draft.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPlanned, r.Status)
	assert.Equal(t, []string{"m1"}, invitees)

	_, _, err = f.svc.GetByID(context.Background(), "stranger", draft.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestUpdateRejectsBlankTitle(t *testing.T) {
	f := newRehearsalFixture(t)

	draft, err := f.svc.CreateDraft(context.Background(), "planner-1", domain.RehearsalInput{})
	require.NoError(t, err)

	_, err = f.svc.UpdateDraft(context.Background(), "planner-1", draft.ID, domain.RehearsalInput{
		Title: strPtr("   "),
	})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateDraftRejectsUnparseableEndTime(t *testing.T) {
	f := newRehearsalFixture(t)

	_, err := f.svc.CreateDraft(context.Background(), "planner-1", domain.RehearsalInput{
		EndTime: strPtr("late"),
	})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, f.repo.rehearsals)
}

func TestPublishFailedPersistLeavesInviteeSetUnchanged(t *testing.T) {
	f := newRehearsalFixture(t, &domain.Member{ID: "a", PrimaryRole: "actor"})

	draft, err := f.svc.CreateDraft(context.Background(), "planner-1", domain.RehearsalInput{})
	require.NoError(t, err)

	f.repo.updateErr = errors.New("connection reset")
	_, err = f.svc.Publish(context.Background(), "planner-1", draft.ID, domain.RehearsalInput{
		InviteeIDs: []string{"a"},
	})
	require.Error(t, err)

	assert.Empty(t, f.invitees.sets[draft.ID], "a failed publish must not mutate the invitee set")
	assert.Empty(t, f.notifier.created, "nothing durable, nothing notified")
}

func TestUpdatePlannedFailedPersistKeepsPriorInviteeSet(t *testing.T) {
	f := newRehearsalFixture(t,
		&domain.Member{ID: "a", PrimaryRole: "actor"},
		&domain.Member{ID: "b", PrimaryRole: "tech"},
	)

	draft, err := f.svc.CreateDraft(context.Background(), "planner-1", domain.RehearsalInput{})
	require.NoError(t, err)
	_, err = f.svc.Publish(context.Background(), "planner-1", draft.ID, domain.RehearsalInput{
		InviteeIDs: []string{"a"},
	})
	require.NoError(t, err)

	f.repo.updateErr = errors.New("connection reset")
	_, err = f.svc.Update(context.Background(), "planner-1", draft.ID, domain.RehearsalInput{
		InviteeIDs: []string{"a", "b"},
	})
	require.Error(t, err)

	assert.Equal(t, []string{"a"}, f.invitees.sets[draft.ID], "the previously published set survives the failed update")
	assert.Empty(t, f.notifier.updated)
}

func TestUpdatePlannedUnchangedDescriptionNotInDiff(t *testing.T) {
	f := newRehearsalFixture(t, &domain.Member{ID: "m1", PrimaryRole: "actor"})

	draft, err := f.svc.CreateDraft(context.Background(), "planner-1", domain.RehearsalInput{
		Description: strPtr("bring sheet music"),
	})
	require.NoError(t, err)
	_, err = f.svc.Publish(context.Background(), "planner-1", draft.ID, domain.RehearsalInput{
		InviteeIDs: []string{"m1"},
	})
	require.NoError(t, err)

	_, err = f.svc.Update(context.Background(), "planner-1", draft.ID, domain.RehearsalInput{
		Title:       strPtr("Dress rehearsal"),
		Description: strPtr("bring sheet music"),
	})
	require.NoError(t, err)
	require.Len(t, f.notifier.updatedDiff, 1)
	assert.Equal(t, []string{"title"}, f.notifier.updatedDiff[0], "a no-op description rewrite is not a change")

	_, err = f.svc.Update(context.Background(), "planner-1", draft.ID, domain.RehearsalInput{
		Description: strPtr("bring props instead"),
	})
	require.NoError(t, err)
	require.Len(t, f.notifier.updatedDiff, 2)
	assert.Equal(t, []string{"description"}, f.notifier.updatedDiff[1])
}
