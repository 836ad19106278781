package api

import (
	"time"

	"github.com/google/uuid"
)

type BookAppointmentRequest struct {
	PatientID string `json:"patient_id" validate:"required,uuid"`
	DoctorID  string `json:"doctor_id" validate:"required,uuid"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	TimeSlot  string `json:"time_slot" validate:"required,time_slot"`
	Notes     string `json:"notes" validate:"max=500"`
}

type CancelAppointmentRequest struct {
	Actor string `json:"actor" validate:"omitempty,oneof=patient doctor"`
}

type CreateScheduleRequest struct {
	DoctorID  string   `json:"doctor_id" validate:"required,uuid"`
	Dates     []string `json:"dates" validate:"omitempty,dive,datetime=2006-01-02"`
	Weekdays  []string `json:"weekdays" validate:"omitempty,dive,oneof=Sunday Monday Tuesday Wednesday Thursday Friday Saturday"`
	TimeSlots []string `json:"time_slots" validate:"omitempty,dive,time_slot"`
	Notes     string   `json:"notes" validate:"max=500"`
}

type UpdateScheduleRequest struct {
	IsAvailable *bool `json:"is_available" validate:"required"`
}

type AppointmentResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	PatientID uuid.UUID `json:"patient_id"`
	Date      string    `json:"date"`
	TimeSlot  string    `json:"time_slot"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ScheduleSlotResponse struct {
	ID          uuid.UUID `json:"id"`
	DoctorID    uuid.UUID `json:"doctor_id"`
	Date        string    `json:"date"`
	TimeSlot    string    `json:"time_slot"`
	IsAvailable bool      `json:"is_available"`
	DayOfWeek   string    `json:"day_of_week"`
	Notes       string    `json:"notes,omitempty"`
}

type AvailableSlotsResponse struct {
	AvailableSlots []string `json:"availableSlots"`
}

type ScheduleCreatedResponse struct {
	Created int                    `json:"created"`
	Slots   []ScheduleSlotResponse `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
