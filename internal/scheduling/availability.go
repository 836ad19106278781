package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AvailabilityResolver computes the live set of bookable slots for a
// doctor and date: declared-open minus actively-claimed minus elapsed.
// It is a pure query; results must never be cached across requests and
// reused for a booking decision.
type AvailabilityResolver struct {
	repo Repository
	loc  *time.Location
	now  func() time.Time
}

func NewAvailabilityResolver(repo Repository, loc *time.Location) *AvailabilityResolver {
	return &AvailabilityResolver{
		repo: repo,
		loc:  loc,
		now:  time.Now,
	}
}

// WithClock overrides the wall clock, for tests.
func (r *AvailabilityResolver) WithClock(now func() time.Time) *AvailabilityResolver {
	r.now = now
	return r
}

// Resolve returns the bookable slots for a doctor/date, chronologically
// ordered. Idempotent between mutations.
func (r *AvailabilityResolver) Resolve(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	day, err := ParseDate(date, r.loc)
	if err != nil {
		return nil, &ValidationError{Field: "date", Reason: err.Error()}
	}

	if _, err := r.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, &NotFoundError{Resource: "doctor", ID: doctorID.String()}
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	return r.resolveDay(ctx, doctorID, day)
}

// resolveDay is the commit-time re-check used by the booking path; it
// skips the doctor existence check the caller has already done.
func (r *AvailabilityResolver) resolveDay(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]string, error) {
	open, err := r.listOpen(ctx, doctorID, day)
	if err != nil {
		return nil, err
	}

	claimed, err := r.listClaims(ctx, doctorID, day)
	if err != nil {
		return nil, err
	}

	taken := make(map[string]bool, len(claimed))
	for _, ts := range claimed {
		taken[ts] = true
	}

	now := r.now()
	today := FormatDate(day) == FormatDate(DateOf(now, r.loc))

	available := make([]string, 0, len(open))
	for _, raw := range open {
		if taken[raw] {
			continue
		}
		if today {
			ts, err := ParseTimeSlot(raw)
			if err != nil {
				continue
			}
			// A slot starting exactly now is already gone.
			if !ts.StartOn(day).After(now) {
				continue
			}
		}
		available = append(available, raw)
	}

	SortSlots(available)
	return available, nil
}

// Reads retry once on a transient store failure; this never applies to
// the booking commit itself.
func (r *AvailabilityResolver) listOpen(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]string, error) {
	open, err := r.repo.ListOpenSlots(ctx, doctorID, day)
	if isTransient(err) {
		open, err = r.repo.ListOpenSlots(ctx, doctorID, day)
	}
	if err != nil {
		return nil, fmt.Errorf("list open slots: %w", err)
	}
	return open, nil
}

func (r *AvailabilityResolver) listClaims(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]string, error) {
	claimed, err := r.repo.ListActiveClaims(ctx, doctorID, day)
	if isTransient(err) {
		claimed, err = r.repo.ListActiveClaims(ctx, doctorID, day)
	}
	if err != nil {
		return nil, fmt.Errorf("list active claims: %w", err)
	}
	return claimed, nil
}

func isTransient(err error) bool {
	var transient *TransientStoreError
	return errors.As(err, &transient)
}
