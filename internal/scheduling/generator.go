package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GenerateRequest describes a batch of schedule slot declarations:
// either explicit dates, or a weekday pattern expanded over the
// recurrence horizon. Empty TimeSlots means the doctor's full working
// hours sliced at their granularity.
type GenerateRequest struct {
	DoctorID  uuid.UUID
	Dates     []string
	Weekdays  []time.Weekday
	TimeSlots []string
	Notes     string
}

// ScheduleService owns schedule slot declarations: bulk generation,
// block/unblock toggling, and deletion.
type ScheduleService struct {
	repo   Repository
	loc    *time.Location
	weeks  int
	now    func() time.Time
	logger *zap.Logger
}

func NewScheduleService(repo Repository, loc *time.Location, recurrenceWeeks int, logger *zap.Logger) *ScheduleService {
	return &ScheduleService{
		repo:   repo,
		loc:    loc,
		weeks:  recurrenceWeeks,
		now:    time.Now,
		logger: logger,
	}
}

// WithClock overrides the wall clock, for tests.
func (s *ScheduleService) WithClock(now func() time.Time) *ScheduleService {
	s.now = now
	return s
}

// Generate expands dates x time slots into declared-open slot records
// and inserts them all-or-nothing. Past dates, out-of-hours slots and
// already-declared slots are rejected rather than silently skipped.
func (s *ScheduleService) Generate(ctx context.Context, req GenerateRequest) ([]ScheduleSlot, error) {
	doctor, err := s.repo.GetDoctorByID(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, &NotFoundError{Resource: "doctor", ID: req.DoctorID.String()}
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	slots, err := s.resolveSlots(doctor, req.TimeSlots)
	if err != nil {
		return nil, err
	}

	dates, err := s.resolveDates(req)
	if err != nil {
		return nil, err
	}

	var records []ScheduleSlot
	for _, date := range dates {
		for _, ts := range slots {
			records = append(records, ScheduleSlot{
				ID:          uuid.New(),
				DoctorID:    req.DoctorID,
				Date:        date,
				TimeSlot:    ts,
				IsAvailable: true,
				DayOfWeek:   date.Weekday().String(),
				Notes:       req.Notes,
			})
		}
	}

	if err := s.repo.CreateScheduleSlots(ctx, records); err != nil {
		if errors.Is(err, ErrSlotExists) {
			return nil, &ConflictError{
				Code:   "schedule_exists",
				Reason: "a schedule slot in this batch is already declared",
			}
		}
		return nil, fmt.Errorf("create schedule slots: %w", err)
	}

	recordEvent(ctx, s.repo, s.logger, nil, EventScheduleGenerated, map[string]any{
		"doctor_id": req.DoctorID.String(),
		"created":   len(records),
	})

	s.logger.Info("schedule generated",
		zap.String("doctor_id", req.DoctorID.String()),
		zap.Int("slots", len(records)),
	)

	sort.Slice(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.Before(records[j].Date)
		}
		return records[i].TimeSlot < records[j].TimeSlot
	})

	return records, nil
}

func (s *ScheduleService) resolveSlots(doctor *Doctor, requested []string) ([]string, error) {
	workStart, err := parseClock(doctor.WorkingStart)
	if err != nil {
		return nil, fmt.Errorf("doctor working hours: %w", err)
	}
	workEnd, err := parseClock(doctor.WorkingEnd)
	if err != nil {
		return nil, fmt.Errorf("doctor working hours: %w", err)
	}

	if len(requested) == 0 {
		slots, err := SliceRange(doctor.WorkingStart, doctor.WorkingEnd, doctor.SlotMinutes)
		if err != nil {
			return nil, fmt.Errorf("slice working hours: %w", err)
		}
		return slots, nil
	}

	seen := make(map[string]bool, len(requested))
	var slots []string
	for _, raw := range requested {
		ts, err := ParseTimeSlot(raw)
		if err != nil {
			return nil, &ValidationError{Field: "time_slots", Reason: err.Error()}
		}
		if !ts.Within(workStart, workEnd) {
			return nil, &ValidationError{
				Field:  "time_slots",
				Reason: fmt.Sprintf("%s is outside working hours %s-%s", raw, doctor.WorkingStart, doctor.WorkingEnd),
			}
		}
		if ts.Minutes() != doctor.SlotMinutes || (ts.start-workStart)%doctor.SlotMinutes != 0 {
			return nil, &ValidationError{
				Field:  "time_slots",
				Reason: fmt.Sprintf("%s is not aligned to the %d-minute slot granularity", raw, doctor.SlotMinutes),
			}
		}
		canonical := ts.String()
		if !seen[canonical] {
			seen[canonical] = true
			slots = append(slots, canonical)
		}
	}

	SortSlots(slots)
	return slots, nil
}

func (s *ScheduleService) resolveDates(req GenerateRequest) ([]time.Time, error) {
	today := DateOf(s.now(), s.loc)

	seen := make(map[string]bool)
	var dates []time.Time

	add := func(d time.Time) {
		key := FormatDate(d)
		if !seen[key] {
			seen[key] = true
			dates = append(dates, d)
		}
	}

	for _, raw := range req.Dates {
		d, err := ParseDate(raw, s.loc)
		if err != nil {
			return nil, &ValidationError{Field: "dates", Reason: err.Error()}
		}
		if d.Before(today) {
			return nil, &ValidationError{Field: "dates", Reason: fmt.Sprintf("%s is in the past", raw)}
		}
		add(d)
	}

	if len(req.Weekdays) > 0 {
		wanted := make(map[time.Weekday]bool, len(req.Weekdays))
		for _, wd := range req.Weekdays {
			wanted[wd] = true
		}
		horizon := s.weeks * 7
		for i := 0; i < horizon; i++ {
			d := today.AddDate(0, 0, i)
			if wanted[d.Weekday()] {
				add(d)
			}
		}
	}

	if len(dates) == 0 {
		return nil, &ValidationError{Field: "dates", Reason: "at least one date or weekday is required"}
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

// SetAvailability toggles a declared slot between open and blocked.
// Blocking never touches existing appointments on the slot.
func (s *ScheduleService) SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*ScheduleSlot, error) {
	slot, err := s.repo.SetSlotAvailability(ctx, id, available)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, &NotFoundError{Resource: "schedule slot", ID: id.String()}
		}
		return nil, fmt.Errorf("set slot availability: %w", err)
	}
	return slot, nil
}

func (s *ScheduleService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteScheduleSlot(ctx, id); err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return &NotFoundError{Resource: "schedule slot", ID: id.String()}
		}
		return fmt.Errorf("delete schedule slot: %w", err)
	}
	return nil
}

// ListForDoctor returns a doctor's declared slots over a date range.
func (s *ScheduleService) ListForDoctor(ctx context.Context, doctorID uuid.UUID, from, to string) ([]ScheduleSlot, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, &NotFoundError{Resource: "doctor", ID: doctorID.String()}
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	fromDate, err := ParseDate(from, s.loc)
	if err != nil {
		return nil, &ValidationError{Field: "from", Reason: err.Error()}
	}
	toDate, err := ParseDate(to, s.loc)
	if err != nil {
		return nil, &ValidationError{Field: "to", Reason: err.Error()}
	}

	slots, err := s.repo.ListScheduleSlots(ctx, doctorID, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("list schedule slots: %w", err)
	}
	return slots, nil
}
