package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/careconnect/scheduling-service/internal/notify"
)

// LifecycleService drives appointment status transitions after booking:
// confirmation, cancellation policy, and completion. Cancellation is
// soft-only; the freed slot becomes visible to availability immediately
// because claims are derived from active statuses.
type LifecycleService struct {
	repo     Repository
	notifier notify.Publisher
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

func NewLifecycleService(repo Repository, notifier notify.Publisher, loc *time.Location, logger *zap.Logger) *LifecycleService {
	return &LifecycleService{
		repo:     repo,
		notifier: notifier,
		loc:      loc,
		now:      time.Now,
		logger:   logger,
	}
}

// WithClock overrides the wall clock, for tests.
func (s *LifecycleService) WithClock(now func() time.Time) *LifecycleService {
	s.now = now
	return s
}

// Cancel transitions an active appointment to cancelled. Allowed only
// while the slot's start still lies in the future; past and terminal
// appointments are rejected with no state change.
func (s *LifecycleService) Cancel(ctx context.Context, id uuid.UUID, actor string) (*Appointment, error) {
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if appt.Status.Terminal() {
		return nil, &PolicyError{Reason: fmt.Sprintf("appointment is already %s", appt.Status)}
	}

	start, _, err := s.slotBounds(appt)
	if err != nil {
		return nil, err
	}
	if !start.After(s.now()) {
		return nil, &PolicyError{Reason: "appointment time has already passed"}
	}

	updated, err := s.transition(ctx, appt.ID, []AppointmentStatus{StatusPending, StatusConfirmed}, StatusCancelled)
	if err != nil {
		return nil, err
	}

	recordEvent(ctx, s.repo, s.logger, &updated.ID, EventAppointmentCancelled, map[string]any{
		"actor": actor,
	})
	publish(ctx, s.notifier, s.logger, notify.EventAppointmentCancelled, actor, updated)

	s.logger.Info("appointment cancelled",
		zap.String("appointment_id", updated.ID.String()),
		zap.String("actor", actor),
	)

	return updated, nil
}

// Confirm moves a pending appointment to confirmed.
func (s *LifecycleService) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if !CanTransition(appt.Status, StatusConfirmed) {
		return nil, &PolicyError{Reason: fmt.Sprintf("cannot confirm a %s appointment", appt.Status)}
	}

	updated, err := s.transition(ctx, appt.ID, []AppointmentStatus{StatusPending}, StatusConfirmed)
	if err != nil {
		return nil, err
	}

	recordEvent(ctx, s.repo, s.logger, &updated.ID, EventAppointmentConfirmed, nil)
	publish(ctx, s.notifier, s.logger, notify.EventAppointmentConfirmed, "", updated)

	return updated, nil
}

// Complete moves a confirmed appointment to completed once its slot end
// has elapsed.
func (s *LifecycleService) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if !CanTransition(appt.Status, StatusCompleted) {
		return nil, &PolicyError{Reason: fmt.Sprintf("cannot complete a %s appointment", appt.Status)}
	}

	_, end, err := s.slotBounds(appt)
	if err != nil {
		return nil, err
	}
	if end.After(s.now()) {
		return nil, &PolicyError{Reason: "appointment slot has not ended yet"}
	}

	updated, err := s.transition(ctx, appt.ID, []AppointmentStatus{StatusConfirmed}, StatusCompleted)
	if err != nil {
		return nil, err
	}

	recordEvent(ctx, s.repo, s.logger, &updated.ID, EventAppointmentCompleted, nil)
	publish(ctx, s.notifier, s.logger, notify.EventAppointmentCompleted, "", updated)

	return updated, nil
}

// SweepCompletable is run periodically by the worker: every confirmed
// appointment whose slot end has elapsed becomes completed.
func (s *LifecycleService) SweepCompletable(ctx context.Context) (int, error) {
	candidates, err := s.repo.FindCompletable(ctx, s.now().In(s.loc))
	if err != nil {
		return 0, fmt.Errorf("find completable appointments: %w", err)
	}

	completed := 0
	for _, appt := range candidates {
		updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, []AppointmentStatus{StatusConfirmed}, StatusCompleted)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				// Lost a race with cancel or another sweep instance.
				continue
			}
			s.logger.Warn("complete appointment", zap.String("appointment_id", appt.ID.String()), zap.Error(err))
			continue
		}
		recordEvent(ctx, s.repo, s.logger, &updated.ID, EventAppointmentCompleted, map[string]any{
			"reason": "sweep",
		})
		publish(ctx, s.notifier, s.logger, notify.EventAppointmentCompleted, "", updated)
		completed++
	}

	return completed, nil
}

func (s *LifecycleService) load(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, &NotFoundError{Resource: "appointment", ID: id.String()}
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return appt, nil
}

func (s *LifecycleService) transition(ctx context.Context, id uuid.UUID, from []AppointmentStatus, to AppointmentStatus) (*Appointment, error) {
	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, from, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// The row existed a moment ago, so the status changed under us.
			return nil, &PolicyError{Reason: "appointment status changed, please retry"}
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	return updated, nil
}

// slotBounds anchors the appointment's slot on its date in the clinic
// location. The stored date may carry a different zone after scanning,
// so it is rebuilt from its calendar components.
func (s *LifecycleService) slotBounds(appt *Appointment) (start, end time.Time, err error) {
	ts, err := ParseTimeSlot(appt.TimeSlot)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("stored time slot: %w", err)
	}

	y, m, d := appt.Date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	return ts.StartOn(day), ts.EndOn(day), nil
}
