package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookClaimsSlot(t *testing.T) {
	f := newFixture()
	seedSchedule(t, f, "2025-12-01", "09:00-10:00", "10:00-11:00")
	ctx := context.Background()

	appt, err := f.bookings.Book(ctx, BookRequest{
		DoctorID:  f.doctor.ID,
		PatientID: f.patientA.ID,
		Date:      "2025-12-01",
		TimeSlot:  "09:00-10:00",
		Notes:     "first visit",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, appt.Status)
	assert.Equal(t, "2025-12-01", FormatDate(appt.Date))
	assert.Equal(t, "09:00-10:00", appt.TimeSlot)
	assert.Equal(t, "first visit", appt.Notes)

	got, err := f.resolver.Resolve(ctx, f.doctor.ID, "2025-12-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00-11:00"}, got)
}

func TestBookSameSlotTwiceConflicts(t *testing.T) {
	f := newFixture()
	seedSchedule(t, f, "2025-12-01", "09:00-10:00")
	ctx := context.Background()

	_, err := f.bookings.Book(ctx, BookRequest{
		DoctorID:  f.doctor.ID,
		PatientID: f.patientA.ID,
		Date:      "2025-12-01",
		TimeSlot:  "09:00-10:00",
	})
	require.NoError(t, err)

	_, err = f.bookings.Book(ctx, BookRequest{
		DoctorID:  f.doctor.ID,
		PatientID: f.patientB.ID,
		Date:      "2025-12-01",
		TimeSlot:  "09:00-10:00",
	})
	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, "slot_conflict", conflictErr.Code)
}

func TestBookValidation(t *testing.T) {
	f := newFixture()
	seedSchedule(t, f, "2025-12-01", "09:00-10:00")
	ctx := context.Background()

	tests := []struct {
		name  string
		req   BookRequest
		field string
	}{
		{
			name: "malformed slot",
			req: BookRequest{
				DoctorID: f.doctor.ID, PatientID: f.patientA.ID,
				Date: "2025-12-01", TimeSlot: "9am-10am",
			},
			field: "time_slot",
		},
		{
			name: "malformed date",
			req: BookRequest{
				DoctorID: f.doctor.ID, PatientID: f.patientA.ID,
				Date: "01.12.2025", TimeSlot: "09:00-10:00",
			},
			field: "date",
		},
		{
			name: "past date",
			req: BookRequest{
				DoctorID: f.doctor.ID, PatientID: f.patientA.ID,
				Date: "2025-11-29", TimeSlot: "09:00-10:00",
			},
			field: "date",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.bookings.Book(ctx, tc.req)
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tc.field, validationErr.Field)
		})
	}
}

func TestBookUnknownParties(t *testing.T) {
	f := newFixture()
	seedSchedule(t, f, "2025-12-01", "09:00-10:00")
	ctx := context.Background()

	_, err := f.bookings.Book(ctx, BookRequest{
		DoctorID: uuid.New(), PatientID: f.patientA.ID,
		Date: "2025-12-01", TimeSlot: "09:00-10:00",
	})
	var notFoundErr *NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
	assert.Equal(t, "doctor", notFoundErr.Resource)

	_, err = f.bookings.Book(ctx, BookRequest{
		DoctorID: f.doctor.ID, PatientID: uuid.New(),
		Date: "2025-12-01", TimeSlot: "09:00-10:00",
	})
	require.ErrorAs(t, err, &notFoundErr)
	assert.Equal(t, "patient", notFoundErr.Resource)
}

func TestBookUndeclaredSlotConflicts(t *testing.T) {
	f := newFixture()
	seedSchedule(t, f, "2025-12-01", "09:00-10:00")

	_, err := f.bookings.Book(context.Background(), BookRequest{
		DoctorID: f.doctor.ID, PatientID: f.patientA.ID,
		Date: "2025-12-01", TimeSlot: "11:00-12:00",
	})
	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
}

func TestBookBlockedSlotConflicts(t *testing.T) {
	f := newFixture()
	created := seedSchedule(t, f, "2025-12-01", "09:00-10:00")
	ctx := context.Background()

	_, err := f.schedules.SetAvailability(ctx, created[0].ID, false)
	require.NoError(t, err)

	_, err = f.bookings.Book(ctx, BookRequest{
		DoctorID: f.doctor.ID, PatientID: f.patientA.ID,
		Date: "2025-12-01", TimeSlot: "09:00-10:00",
	})
	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
}

// N concurrent bookings for one slot: exactly one wins, the rest get a
// conflict, never a duplicate active appointment.
func TestBookConcurrentSingleWinner(t *testing.T) {
	f := newFixture()
	seedSchedule(t, f, "2025-12-01", "09:00-10:00")
	ctx := context.Background()

	const n = 32
	patients := make([]Patient, n)
	for i := range patients {
		patients[i] = Patient{ID: uuid.New(), Name: "p"}
		f.repo.PutPatient(patients[i])
	}

	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.bookings.Book(ctx, BookRequest{
				DoctorID:  f.doctor.ID,
				PatientID: patients[i].ID,
				Date:      "2025-12-01",
				TimeSlot:  "09:00-10:00",
			})
			results[i] = err
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range results {
		var conflictErr *ConflictError
		switch {
		case err == nil:
			wins++
		case errors.As(err, &conflictErr):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, conflicts)

	claims, err := f.repo.ListActiveClaims(ctx, f.doctor.ID, mustDate(t, "2025-12-01"))
	require.NoError(t, err)
	assert.Len(t, claims, 1)
}

func TestBookAfterCancelSucceeds(t *testing.T) {
	f := newFixture()
	seedSchedule(t, f, "2025-12-01", "09:00-10:00")
	ctx := context.Background()

	first, err := f.bookings.Book(ctx, BookRequest{
		DoctorID: f.doctor.ID, PatientID: f.patientA.ID,
		Date: "2025-12-01", TimeSlot: "09:00-10:00",
	})
	require.NoError(t, err)

	_, err = f.lifecycle.Cancel(ctx, first.ID, "patient")
	require.NoError(t, err)

	second, err := f.bookings.Book(ctx, BookRequest{
		DoctorID: f.doctor.ID, PatientID: f.patientB.ID,
		Date: "2025-12-01", TimeSlot: "09:00-10:00",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, second.Status)
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s, time.UTC)
	require.NoError(t, err)
	return d
}
