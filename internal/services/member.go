package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"rehearsalplanner/internal/domain"
)

const minPasswordLen = 8

var emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type memberService struct {
	memberRepo     domain.MemberRepository
	hasher         domain.PasswordHasher
	tokens         domain.TokenIssuer
	tokenExpiry    time.Duration
	contextTimeout time.Duration
}

// NewMemberService creates a MemberService with the given repository and
// auth adapters.
func NewMemberService(
	memberRepo domain.MemberRepository,
	hasher domain.PasswordHasher,
	tokens domain.TokenIssuer,
	tokenExpiry time.Duration,
	timeout time.Duration,
) domain.MemberService {
	return &memberService{
		memberRepo:     memberRepo,
		hasher:         hasher,
		tokens:         tokens,
		tokenExpiry:    tokenExpiry,
		contextTimeout: timeout,
	}
}

func (s *memberService) SignUp(ctx context.Context, email, name, password, primaryRole string, extraRoles []string) (*domain.Member, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	email = strings.TrimSpace(strings.ToLower(email))
	if !emailRegexp.MatchString(email) {
		return nil, domain.ErrValidation
	}
	if len(password) < minPasswordLen {
		return nil, domain.ErrValidation
	}

	salt, err := s.hasher.GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	hash, err := s.hasher.Hash(salt, password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now()
	member := domain.NewMember(email, strings.TrimSpace(name), strings.TrimSpace(primaryRole), extraRoles, now, now)
	if err := s.memberRepo.Create(ctx, member, hash, salt); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, domain.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create member: %w", err)
	}
	return member, nil
}

func (s *memberService) Login(ctx context.Context, email, password string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	email = strings.TrimSpace(strings.ToLower(email))
	memberID, hash, salt, err := s.memberRepo.GetCredentials(ctx, email)
	if err != nil {
		return "", domain.ErrUnauthorized
	}
	if err := s.hasher.Compare(hash, salt, password); err != nil {
		return "", domain.ErrUnauthorized
	}
	// Every member may manage the schedule for now; finer-grained capability
	// assignment would move into the members table.
	token, err := s.tokens.Issue(memberID, email, []string{domain.CapabilityScheduleManage}, s.tokenExpiry)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

func (s *memberService) GetByID(ctx context.Context, id string) (*domain.Member, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	member, err := s.memberRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrMemberNotFound) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, fmt.Errorf("get member: %w", err)
	}
	return member, nil
}

func (s *memberService) ListBlockedOn(ctx context.Context, day time.Time) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	ids, err := s.memberRepo.ListBlockedOn(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("list blocked members: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
