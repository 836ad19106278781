package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/careconnect/scheduling-service/internal/notify"
	redisclient "github.com/careconnect/scheduling-service/internal/redis"
	"github.com/careconnect/scheduling-service/internal/scheduling"
)

type testServer struct {
	srv     *httptest.Server
	repo    *scheduling.MemoryRepository
	doctor  scheduling.Doctor
	patient scheduling.Patient
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo := scheduling.NewMemoryRepository()
	loc := time.UTC
	now := func() time.Time { return time.Date(2025, 11, 30, 12, 0, 0, 0, loc) }
	logger := zap.NewNop()

	doctor := scheduling.Doctor{
		ID:           uuid.New(),
		Name:         "Dr. Osei",
		WorkingStart: "09:00",
		WorkingEnd:   "17:00",
		SlotMinutes:  60,
	}
	patient := scheduling.Patient{ID: uuid.New(), Name: "Pia"}
	repo.PutDoctor(doctor)
	repo.PutPatient(patient)

	resolver := scheduling.NewAvailabilityResolver(repo, loc).WithClock(now)
	schedules := scheduling.NewScheduleService(repo, loc, 12, logger).WithClock(now)
	bookings := scheduling.NewBookingCoordinator(
		repo, redisclient.NopLocker{}, resolver, notify.Noop{}, loc, 0, logger,
	).WithClock(now)
	lifecycle := scheduling.NewLifecycleService(repo, notify.Noop{}, loc, logger).WithClock(now)

	router := NewRouter(RouterConfig{
		Schedules:    schedules,
		Availability: resolver,
		Bookings:     bookings,
		Lifecycle:    lifecycle,
		Logger:       logger,
		Env:          "test",
		Version:      "test",
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, repo: repo, doctor: doctor, patient: patient}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)

	return resp, out.Bytes()
}

func (ts *testServer) createSchedule(t *testing.T, slots ...string) {
	t.Helper()
	resp, body := ts.do(t, http.MethodPost, "/schedules", CreateScheduleRequest{
		DoctorID:  ts.doctor.ID.String(),
		Dates:     []string{"2025-12-01"},
		TimeSlots: slots,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(body, &er))
	return er.Error
}

func TestCreateScheduleEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/schedules", CreateScheduleRequest{
		DoctorID:  ts.doctor.ID.String(),
		Dates:     []string{"2025-12-01"},
		TimeSlots: []string{"09:00-10:00", "10:00-11:00"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created ScheduleCreatedResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, 2, created.Created)
	require.Len(t, created.Slots, 2)
	assert.True(t, created.Slots[0].IsAvailable)

	// Duplicate declaration conflicts.
	resp, body = ts.do(t, http.MethodPost, "/schedules", CreateScheduleRequest{
		DoctorID:  ts.doctor.ID.String(),
		Dates:     []string{"2025-12-01"},
		TimeSlots: []string{"09:00-10:00"},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "schedule_exists", errorCode(t, body))
}

func TestCreateScheduleValidation(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/schedules", CreateScheduleRequest{
		DoctorID:  "not-a-uuid",
		Dates:     []string{"2025-12-01"},
		TimeSlots: []string{"09:00-10:00"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_failed", errorCode(t, body))

	resp, body = ts.do(t, http.MethodPost, "/schedules", CreateScheduleRequest{
		DoctorID:  ts.doctor.ID.String(),
		Dates:     []string{"2025-12-01"},
		TimeSlots: []string{"nine-ten"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_failed", errorCode(t, body))
}

func TestAvailableSlotsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.createSchedule(t, "09:00-10:00", "10:00-11:00")

	path := fmt.Sprintf("/schedules/available-slots?doctor_id=%s&date=2025-12-01", ts.doctor.ID)
	resp, body := ts.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var slots AvailableSlotsResponse
	require.NoError(t, json.Unmarshal(body, &slots))
	assert.Equal(t, []string{"09:00-10:00", "10:00-11:00"}, slots.AvailableSlots)
}

func TestBookingRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	ts.createSchedule(t, "09:00-10:00", "10:00-11:00")

	book := BookAppointmentRequest{
		PatientID: ts.patient.ID.String(),
		DoctorID:  ts.doctor.ID.String(),
		Date:      "2025-12-01",
		TimeSlot:  "09:00-10:00",
	}

	resp, body := ts.do(t, http.MethodPost, "/appointments/book", book)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var appt AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &appt))
	assert.Equal(t, "pending", appt.Status)

	// The claimed slot disappears from availability.
	path := fmt.Sprintf("/schedules/available-slots?doctor_id=%s&date=2025-12-01", ts.doctor.ID)
	resp, body = ts.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var slots AvailableSlotsResponse
	require.NoError(t, json.Unmarshal(body, &slots))
	assert.Equal(t, []string{"10:00-11:00"}, slots.AvailableSlots)

	// A second booker loses with a conflict.
	resp, body = ts.do(t, http.MethodPost, "/appointments/book", book)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "slot_conflict", errorCode(t, body))

	// Cancelling restores the slot.
	resp, _ = ts.do(t, http.MethodPatch, "/appointments/"+appt.ID.String()+"/cancel", CancelAppointmentRequest{Actor: "patient"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = ts.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &slots))
	assert.Equal(t, []string{"09:00-10:00", "10:00-11:00"}, slots.AvailableSlots)
}

func TestBookValidationAndNotFound(t *testing.T) {
	ts := newTestServer(t)
	ts.createSchedule(t, "09:00-10:00")

	resp, body := ts.do(t, http.MethodPost, "/appointments/book", BookAppointmentRequest{
		PatientID: ts.patient.ID.String(),
		DoctorID:  ts.doctor.ID.String(),
		Date:      "not-a-date",
		TimeSlot:  "09:00-10:00",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_failed", errorCode(t, body))

	resp, body = ts.do(t, http.MethodPost, "/appointments/book", BookAppointmentRequest{
		PatientID: ts.patient.ID.String(),
		DoctorID:  uuid.NewString(),
		Date:      "2025-12-01",
		TimeSlot:  "09:00-10:00",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "doctor_not_found", errorCode(t, body))
}

func TestCancelPolicyViolation(t *testing.T) {
	ts := newTestServer(t)

	// Seed a past appointment directly; the API never creates one.
	past, err := ts.repo.CreatePendingAppointment(context.Background(), &scheduling.Appointment{
		ID:        uuid.New(),
		DoctorID:  ts.doctor.ID,
		PatientID: ts.patient.ID,
		Date:      time.Date(2025, 11, 29, 0, 0, 0, 0, time.UTC),
		TimeSlot:  "09:00-10:00",
	})
	require.NoError(t, err)

	resp, body := ts.do(t, http.MethodPatch, "/appointments/"+past.ID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "policy_violation", errorCode(t, body))
}

func TestConfirmAndCompleteEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.createSchedule(t, "09:00-10:00")

	resp, body := ts.do(t, http.MethodPost, "/appointments/book", BookAppointmentRequest{
		PatientID: ts.patient.ID.String(),
		DoctorID:  ts.doctor.ID.String(),
		Date:      "2025-12-01",
		TimeSlot:  "09:00-10:00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var appt AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &appt))

	resp, body = ts.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/confirm", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &appt))
	assert.Equal(t, "confirmed", appt.Status)

	// Slot end has not elapsed under the frozen clock.
	resp, body = ts.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/complete", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "policy_violation", errorCode(t, body))
}

func TestGetAndListAppointments(t *testing.T) {
	ts := newTestServer(t)
	ts.createSchedule(t, "09:00-10:00")

	resp, body := ts.do(t, http.MethodPost, "/appointments/book", BookAppointmentRequest{
		PatientID: ts.patient.ID.String(),
		DoctorID:  ts.doctor.ID.String(),
		Date:      "2025-12-01",
		TimeSlot:  "09:00-10:00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var appt AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &appt))

	resp, body = ts.do(t, http.MethodGet, "/appointments/"+appt.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, appt.ID, got.ID)

	resp, body = ts.do(t, http.MethodGet, "/appointments/?patient_id="+ts.patient.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 1)

	resp, body = ts.do(t, http.MethodGet, "/appointments/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "appointment_not_found", errorCode(t, body))
}

func TestScheduleToggleAndDelete(t *testing.T) {
	ts := newTestServer(t)
	ts.createSchedule(t, "09:00-10:00")

	path := fmt.Sprintf("/schedules/?doctor_id=%s&from=2025-12-01&to=2025-12-01", ts.doctor.ID)
	resp, body := ts.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var slots []ScheduleSlotResponse
	require.NoError(t, json.Unmarshal(body, &slots))
	require.Len(t, slots, 1)

	blocked := false
	resp, body = ts.do(t, http.MethodPatch, "/schedules/"+slots[0].ID.String(), UpdateScheduleRequest{IsAvailable: &blocked})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated ScheduleSlotResponse
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.False(t, updated.IsAvailable)

	resp, _ = ts.do(t, http.MethodDelete, "/schedules/"+slots[0].ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = ts.do(t, http.MethodDelete, "/schedules/"+slots[0].ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "schedule_slot_not_found", errorCode(t, body))
}
