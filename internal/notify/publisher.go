package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventAppointmentCreated   = "appointment.created"
	EventAppointmentConfirmed = "appointment.confirmed"
	EventAppointmentCancelled = "appointment.cancelled"
	EventAppointmentCompleted = "appointment.completed"
)

// Event is the fire-and-forget payload handed to the notification layer
// on appointment state changes.
type Event struct {
	Type          string    `json:"type"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	Date          string    `json:"date"`
	TimeSlot      string    `json:"time_slot"`
	Status        string    `json:"status"`
	Actor         string    `json:"actor,omitempty"`
	At            time.Time `json:"at"`
}

// Publisher delivers events best-effort. Failures are logged by callers
// and never fail the originating operation.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Noop is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
