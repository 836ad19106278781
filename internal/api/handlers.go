package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careconnect/scheduling-service/internal/scheduling"
)

func bookAppointmentHandler(svc *scheduling.BookingCoordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", firstValidationError(err))
			return
		}

		doctorID, _ := uuid.Parse(req.DoctorID)
		patientID, _ := uuid.Parse(req.PatientID)

		appt, err := svc.Book(r.Context(), scheduling.BookRequest{
			DoctorID:  doctorID,
			PatientID: patientID,
			Date:      req.Date,
			TimeSlot:  req.TimeSlot,
			Notes:     req.Notes,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *scheduling.LifecycleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req CancelAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", firstValidationError(err))
			return
		}
		actor := req.Actor
		if actor == "" {
			actor = "patient"
		}

		appt, err := svc.Cancel(r.Context(), id, actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func confirmAppointmentHandler(svc *scheduling.LifecycleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		appt, err := svc.Confirm(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func completeAppointmentHandler(svc *scheduling.LifecycleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		appt, err := svc.Complete(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *scheduling.BookingCoordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *scheduling.BookingCoordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := uuid.Parse(r.URL.Query().Get("patient_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "patient_id must be a valid UUID")
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		appts, err := svc.ListByPatient(r.Context(), patientID, limit, offset)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func availableSlotsHandler(svc *scheduling.AvailabilityResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(r.URL.Query().Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "doctor_id must be a valid UUID")
			return
		}

		slots, err := svc.Resolve(r.Context(), doctorID, r.URL.Query().Get("date"))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailableSlotsResponse{AvailableSlots: slots})
	}
}

func createScheduleHandler(svc *scheduling.ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateScheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", firstValidationError(err))
			return
		}

		doctorID, _ := uuid.Parse(req.DoctorID)

		slots, err := svc.Generate(r.Context(), scheduling.GenerateRequest{
			DoctorID:  doctorID,
			Dates:     req.Dates,
			Weekdays:  parseWeekdays(req.Weekdays),
			TimeSlots: req.TimeSlots,
			Notes:     req.Notes,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := ScheduleCreatedResponse{Created: len(slots)}
		for i := range slots {
			resp.Slots = append(resp.Slots, toScheduleSlotResponse(&slots[i]))
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func listSchedulesHandler(svc *scheduling.ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(r.URL.Query().Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "doctor_id must be a valid UUID")
			return
		}

		slots, err := svc.ListForDoctor(r.Context(), doctorID, r.URL.Query().Get("from"), r.URL.Query().Get("to"))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]ScheduleSlotResponse, 0, len(slots))
		for i := range slots {
			resp = append(resp, toScheduleSlotResponse(&slots[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func updateScheduleHandler(svc *scheduling.ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req UpdateScheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", firstValidationError(err))
			return
		}

		slot, err := svc.SetAvailability(r.Context(), id, *req.IsAvailable)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toScheduleSlotResponse(slot))
	}
}

func deleteScheduleHandler(svc *scheduling.ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// writeDomainError maps the domain error taxonomy to stable
// machine-readable response codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		validationErr *scheduling.ValidationError
		notFoundErr   *scheduling.NotFoundError
		conflictErr   *scheduling.ConflictError
		policyErr     *scheduling.PolicyError
		transientErr  *scheduling.TransientStoreError
	)

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, "validation_failed", validationErr.Error())
	case errors.As(err, &notFoundErr):
		code := strings.ReplaceAll(notFoundErr.Resource, " ", "_") + "_not_found"
		writeError(w, http.StatusNotFound, code, notFoundErr.Error())
	case errors.As(err, &conflictErr):
		writeError(w, http.StatusConflict, conflictErr.Code, conflictErr.Error())
	case errors.As(err, &policyErr):
		writeError(w, http.StatusBadRequest, "policy_violation", policyErr.Error())
	case errors.As(err, &transientErr):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "storage is temporarily unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseWeekdays(names []string) []time.Weekday {
	byName := map[string]time.Weekday{
		"Sunday": time.Sunday, "Monday": time.Monday, "Tuesday": time.Tuesday,
		"Wednesday": time.Wednesday, "Thursday": time.Thursday,
		"Friday": time.Friday, "Saturday": time.Saturday,
	}

	var days []time.Weekday
	for _, n := range names {
		if wd, ok := byName[n]; ok {
			days = append(days, wd)
		}
	}
	return days
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		DoctorID:  a.DoctorID,
		PatientID: a.PatientID,
		Date:      scheduling.FormatDate(a.Date),
		TimeSlot:  a.TimeSlot,
		Status:    string(a.Status),
		Notes:     a.Notes,
		CreatedAt: a.CreatedAt,
	}
}

func toScheduleSlotResponse(s *scheduling.ScheduleSlot) ScheduleSlotResponse {
	return ScheduleSlotResponse{
		ID:          s.ID,
		DoctorID:    s.DoctorID,
		Date:        scheduling.FormatDate(s.Date),
		TimeSlot:    s.TimeSlot,
		IsAvailable: s.IsAvailable,
		DayOfWeek:   s.DayOfWeek,
		Notes:       s.Notes,
	}
}
