package domain

import "time"

// RegistrationDeadlineOption is a closed enumeration of response-deadline
// offsets relative to the rehearsal start.
type RegistrationDeadlineOption string

const (
	DeadlineNone     RegistrationDeadlineOption = "none"
	Deadline12Hours  RegistrationDeadlineOption = "12h"
	Deadline24Hours  RegistrationDeadlineOption = "24h"
	Deadline48Hours  RegistrationDeadlineOption = "48h"
	Deadline72Hours  RegistrationDeadlineOption = "72h"
	DeadlineOneWeek  RegistrationDeadlineOption = "1w"
	DeadlineTwoWeeks RegistrationDeadlineOption = "2w"
)

// DefaultDeadlineOption is applied to new drafts.
const DefaultDeadlineOption = DeadlineOneWeek

var deadlineOffsets = map[RegistrationDeadlineOption]time.Duration{
	Deadline12Hours:  12 * time.Hour,
	Deadline24Hours:  24 * time.Hour,
	Deadline48Hours:  48 * time.Hour,
	Deadline72Hours:  72 * time.Hour,
	DeadlineOneWeek:  7 * 24 * time.Hour,
	DeadlineTwoWeeks: 14 * 24 * time.Hour,
}

// ParseDeadlineOption validates a raw option tag. Returns ErrValidation for
// anything outside the closed enumeration.
func ParseDeadlineOption(s string) (RegistrationDeadlineOption, error) {
	opt := RegistrationDeadlineOption(s)
	if opt == DeadlineNone {
		return opt, nil
	}
	if _, ok := deadlineOffsets[opt]; !ok {
		return "", ErrValidation
	}
	return opt, nil
}

// ComputeDeadline maps a rehearsal start and a deadline option to an absolute
// deadline. Returns nil for DeadlineNone. Pure; option validity is the
// caller's responsibility (unknown options behave like none).
func ComputeDeadline(start time.Time, opt RegistrationDeadlineOption) *time.Time {
	offset, ok := deadlineOffsets[opt]
	if !ok {
		return nil
	}
	d := start.Add(-offset)
	return &d
}
