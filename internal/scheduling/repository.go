package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrSlotNotFound        = errors.New("schedule slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotTaken is the storage-level conflict signal: the active-slot
	// uniqueness constraint rejected a second claim on (doctor, date, slot).
	ErrSlotTaken = errors.New("slot already claimed by an active appointment")

	// ErrSlotExists signals a duplicate schedule slot declaration.
	ErrSlotExists = errors.New("schedule slot already declared")
)

// Repository contains all store interactions needed by the services.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// Schedule declarations. CreateScheduleSlots is all-or-nothing: a
	// duplicate anywhere in the batch fails the whole batch.
	CreateScheduleSlots(ctx context.Context, slots []ScheduleSlot) error
	GetScheduleSlot(ctx context.Context, id uuid.UUID) (*ScheduleSlot, error)
	ListScheduleSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]ScheduleSlot, error)
	ListOpenSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error)
	SetSlotAvailability(ctx context.Context, id uuid.UUID, available bool) (*ScheduleSlot, error)
	DeleteScheduleSlot(ctx context.Context, id uuid.UUID) error

	// Claims derived from active appointments.
	ListActiveClaims(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error)

	// CreatePendingAppointment is the single atomic commit point of the
	// booking path; it fails with ErrSlotTaken when it loses the race.
	CreatePendingAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// UpdateAppointmentStatus is a compare-and-swap: the update applies
	// only while the current status is one of from.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from []AppointmentStatus, to AppointmentStatus) (*Appointment, error)

	// FindCompletable returns confirmed appointments whose slot end has
	// elapsed relative to nowLocal (clinic-local, zone-free comparison).
	FindCompletable(ctx context.Context, nowLocal time.Time) ([]Appointment, error)

	// PurgeAppointment hard-deletes a row. Retention/test tooling only;
	// the user-facing flow is soft-cancel.
	PurgeAppointment(ctx context.Context, id uuid.UUID) error

	InsertEvent(ctx context.Context, ev EventLog) error
}
