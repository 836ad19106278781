package scheduling

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/careconnect/scheduling-service/internal/notify"
	redisclient "github.com/careconnect/scheduling-service/internal/redis"
)

// Test fixture: one doctor with 09:00-17:00 hours and two patients,
// over the in-memory store, with a controllable wall clock frozen at
// midday the day before the scenario date.
type fixture struct {
	repo      *MemoryRepository
	doctor    Doctor
	patientA  Patient
	patientB  Patient
	clock     *fakeClock
	resolver  *AvailabilityResolver
	schedules *ScheduleService
	bookings  *BookingCoordinator
	lifecycle *LifecycleService
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time  { return c.now }
func (c *fakeClock) Set(t time.Time) { c.now = t }

func newFixture() *fixture {
	repo := NewMemoryRepository()
	loc := time.UTC
	clock := &fakeClock{now: time.Date(2025, 11, 30, 12, 0, 0, 0, loc)}
	logger := zap.NewNop()

	f := &fixture{
		repo:  repo,
		clock: clock,
		doctor: Doctor{
			ID:           uuid.New(),
			Name:         "Dr. Reyes",
			WorkingStart: "09:00",
			WorkingEnd:   "17:00",
			SlotMinutes:  60,
		},
		patientA: Patient{ID: uuid.New(), Name: "Ada"},
		patientB: Patient{ID: uuid.New(), Name: "Ben"},
	}
	repo.PutDoctor(f.doctor)
	repo.PutPatient(f.patientA)
	repo.PutPatient(f.patientB)

	f.resolver = NewAvailabilityResolver(repo, loc).WithClock(clock.Now)
	f.schedules = NewScheduleService(repo, loc, 12, logger).WithClock(clock.Now)
	f.bookings = NewBookingCoordinator(
		repo, redisclient.NopLocker{}, f.resolver, notify.Noop{}, loc, 0, logger,
	).WithClock(clock.Now)
	f.lifecycle = NewLifecycleService(repo, notify.Noop{}, loc, logger).WithClock(clock.Now)

	return f
}
