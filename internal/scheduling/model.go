package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Active reports whether the appointment holds a claim on its slot.
func (s AppointmentStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// CanTransition encodes the appointment state machine:
// pending -> confirmed, confirmed -> completed, {pending, confirmed} -> cancelled.
func CanTransition(from, to AppointmentStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCompleted || to == StatusCancelled
	default:
		return false
	}
}

type Doctor struct {
	ID           uuid.UUID
	Name         string
	Specialty    *string
	WorkingStart string // "HH:MM", clinic-local
	WorkingEnd   string
	SlotMinutes  int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScheduleSlot is a doctor's declaration that a date+slot is open or
// blocked. It says nothing about occupancy: claims are derived from
// active appointments, never from this flag.
type ScheduleSlot struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	Date        time.Time // midnight, clinic location
	TimeSlot    string    // "HH:MM-HH:MM"
	IsAvailable bool
	DayOfWeek   string
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Appointment references its slot by (date, time_slot) value rather than
// by schedule slot id: a doctor blocking an already-booked slot must not
// retroactively invalidate the appointment.
type Appointment struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Date      time.Time
	TimeSlot  string
	Status    AppointmentStatus
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
