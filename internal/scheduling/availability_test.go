package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSchedule(t *testing.T, f *fixture, date string, slots ...string) []ScheduleSlot {
	t.Helper()
	created, err := f.schedules.Generate(context.Background(), GenerateRequest{
		DoctorID:  f.doctor.ID,
		Dates:     []string{date},
		TimeSlots: slots,
	})
	require.NoError(t, err)
	return created
}

func TestResolveReturnsDeclaredOpenSlots(t *testing.T) {
	f := newFixture()
	seedSchedule(t, f, "2025-12-01", "10:00-11:00", "09:00-10:00")

	got, err := f.resolver.Resolve(context.Background(), f.doctor.ID, "2025-12-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00-10:00", "10:00-11:00"}, got, "chronological order")
}

func TestResolveIsIdempotent(t *testing.T) {
	f := newFixture()
	seedSchedule(t, f, "2025-12-01", "09:00-10:00", "10:00-11:00", "11:00-12:00")
	ctx := context.Background()

	first, err := f.resolver.Resolve(ctx, f.doctor.ID, "2025-12-01")
	require.NoError(t, err)
	second, err := f.resolver.Resolve(ctx, f.doctor.ID, "2025-12-01")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveExcludesBlockedSlots(t *testing.T) {
	f := newFixture()
	created := seedSchedule(t, f, "2025-12-01", "09:00-10:00", "10:00-11:00")
	ctx := context.Background()

	_, err := f.schedules.SetAvailability(ctx, created[0].ID, false)
	require.NoError(t, err)

	got, err := f.resolver.Resolve(ctx, f.doctor.ID, "2025-12-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00-11:00"}, got)
}

func TestResolveExcludesActiveClaims(t *testing.T) {
	f := newFixture()
	seedSchedule(t, f, "2025-12-01", "09:00-10:00", "10:00-11:00")
	ctx := context.Background()

	_, err := f.bookings.Book(ctx, BookRequest{
		DoctorID:  f.doctor.ID,
		PatientID: f.patientA.ID,
		Date:      "2025-12-01",
		TimeSlot:  "09:00-10:00",
	})
	require.NoError(t, err)

	got, err := f.resolver.Resolve(ctx, f.doctor.ID, "2025-12-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00-11:00"}, got)
}

func TestResolveExcludesElapsedSlotsToday(t *testing.T) {
	f := newFixture()
	seedSchedule(t, f, "2025-12-01", "09:00-10:00", "10:00-11:00", "11:00-12:00")

	// Move the clock onto the scenario date, exactly at the first
	// slot's start. A slot starting now is already gone; 10:00 onward
	// remains.
	f.clock.Set(time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC))

	got, err := f.resolver.Resolve(context.Background(), f.doctor.ID, "2025-12-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00-11:00", "11:00-12:00"}, got)
}

func TestResolveFutureDateIgnoresClock(t *testing.T) {
	f := newFixture()
	seedSchedule(t, f, "2025-12-02", "09:00-10:00")

	// Late on Dec 1, Dec 2 morning slots are all still bookable.
	f.clock.Set(time.Date(2025, 12, 1, 23, 0, 0, 0, time.UTC))

	got, err := f.resolver.Resolve(context.Background(), f.doctor.ID, "2025-12-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00-10:00"}, got)
}

func TestResolveUnknownDoctor(t *testing.T) {
	f := newFixture()

	_, err := f.resolver.Resolve(context.Background(), uuid.New(), "2025-12-01")
	var notFoundErr *NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
}

func TestResolveBadDate(t *testing.T) {
	f := newFixture()

	_, err := f.resolver.Resolve(context.Background(), f.doctor.ID, "01-12-2025")
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestResolveEmptyWhenNothingDeclared(t *testing.T) {
	f := newFixture()

	got, err := f.resolver.Resolve(context.Background(), f.doctor.ID, "2025-12-01")
	require.NoError(t, err)
	assert.Empty(t, got)
}
