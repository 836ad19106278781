package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/careconnect/scheduling-service/internal/notify"
	redisclient "github.com/careconnect/scheduling-service/internal/redis"
)

// BookRequest is the validated booking command.
type BookRequest struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Date      string // YYYY-MM-DD
	TimeSlot  string // HH:MM-HH:MM
	Notes     string
}

// BookingCoordinator validates and atomically commits booking requests.
// Availability is re-checked at commit time under a per-slot lock as a
// fast-fail optimization; the uniqueness constraint over active
// appointments is the actual no-double-booking guarantee, so a lost
// race always surfaces as a conflict rather than a duplicate row.
type BookingCoordinator struct {
	repo     Repository
	locker   redisclient.Locker
	resolver *AvailabilityResolver
	notifier notify.Publisher
	loc      *time.Location
	timeout  time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func NewBookingCoordinator(
	repo Repository,
	locker redisclient.Locker,
	resolver *AvailabilityResolver,
	notifier notify.Publisher,
	loc *time.Location,
	timeout time.Duration,
	logger *zap.Logger,
) *BookingCoordinator {
	return &BookingCoordinator{
		repo:     repo,
		locker:   locker,
		resolver: resolver,
		notifier: notifier,
		loc:      loc,
		timeout:  timeout,
		now:      time.Now,
		logger:   logger,
	}
}

// WithClock overrides the wall clock, for tests.
func (c *BookingCoordinator) WithClock(now func() time.Time) *BookingCoordinator {
	c.now = now
	c.resolver.now = now
	return c
}

// Book claims a slot for a patient. Exactly one of N racing calls for
// the same (doctor, date, slot) succeeds; the rest get a ConflictError.
// A failed commit is never retried here: the caller re-fetches
// availability and decides.
func (c *BookingCoordinator) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ts, err := ParseTimeSlot(req.TimeSlot)
	if err != nil {
		return nil, &ValidationError{Field: "time_slot", Reason: err.Error()}
	}

	day, err := ParseDate(req.Date, c.loc)
	if err != nil {
		return nil, &ValidationError{Field: "date", Reason: err.Error()}
	}
	if day.Before(DateOf(c.now(), c.loc)) {
		return nil, &ValidationError{Field: "date", Reason: fmt.Sprintf("%s is in the past", req.Date)}
	}

	if _, err := c.repo.GetDoctorByID(ctx, req.DoctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, &NotFoundError{Resource: "doctor", ID: req.DoctorID.String()}
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if _, err := c.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, &NotFoundError{Resource: "patient", ID: req.PatientID.String()}
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	slot := ts.String()
	var created *Appointment

	commit := func(commitCtx context.Context) error {
		// Commit-time re-check against live state, never a client snapshot.
		available, err := c.resolver.resolveDay(commitCtx, req.DoctorID, day)
		if err != nil {
			return err
		}
		if !contains(available, slot) {
			return &ConflictError{Code: "slot_conflict", Reason: "slot is not available"}
		}

		appt, err := c.repo.CreatePendingAppointment(commitCtx, &Appointment{
			ID:        uuid.New(),
			DoctorID:  req.DoctorID,
			PatientID: req.PatientID,
			Date:      day,
			TimeSlot:  slot,
			Notes:     req.Notes,
		})
		if err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return &ConflictError{Code: "slot_conflict", Reason: "slot just became unavailable"}
			}
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt
		return nil
	}

	lockKey := fmt.Sprintf("%s:%s:%s", req.DoctorID, req.Date, slot)
	err = c.locker.WithSlotLock(ctx, lockKey, commit)
	switch {
	case err == nil:
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		return nil, &ConflictError{Code: "slot_being_booked", Reason: "slot is currently being booked, please retry"}
	case errors.Is(err, redisclient.ErrLockUnavailable):
		// Lock layer down: the insert is still guarded by the uniqueness
		// constraint, so commit without the fast-fail path.
		c.logger.Warn("slot lock unavailable, committing unguarded", zap.Error(err))
		if err := commit(ctx); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	recordEvent(ctx, c.repo, c.logger, &created.ID, EventAppointmentCreated, map[string]any{
		"doctor_id":  req.DoctorID.String(),
		"patient_id": req.PatientID.String(),
		"date":       req.Date,
		"time_slot":  slot,
	})
	publish(ctx, c.notifier, c.logger, notify.EventAppointmentCreated, "", created)

	c.logger.Info("appointment booked",
		zap.String("appointment_id", created.ID.String()),
		zap.String("doctor_id", req.DoctorID.String()),
		zap.String("date", req.Date),
		zap.String("time_slot", slot),
	)

	return created, nil
}

// GetAppointment retrieves an appointment by id.
func (c *BookingCoordinator) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := c.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, &NotFoundError{Resource: "appointment", ID: id.String()}
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ListByPatient retrieves a patient's appointments, newest first.
func (c *BookingCoordinator) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	appts, err := c.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appts, nil
}

func contains(slots []string, want string) bool {
	for _, s := range slots {
		if s == want {
			return true
		}
	}
	return false
}
