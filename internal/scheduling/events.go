package scheduling

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/careconnect/scheduling-service/internal/notify"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventScheduleGenerated    = "SCHEDULE_GENERATED"
)

// recordEvent appends to the audit log. Best effort: the originating
// operation has already committed and must not fail here.
func recordEvent(ctx context.Context, repo Repository, logger *zap.Logger, appointmentID *uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Warn("marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: appointmentID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := repo.InsertEvent(ctx, ev); err != nil {
		logger.Warn("insert event log", zap.String("event", eventType), zap.Error(err))
	}
}

// publish hands an appointment state change to the notification layer,
// fire-and-forget.
func publish(ctx context.Context, pub notify.Publisher, logger *zap.Logger, eventType, actor string, appt *Appointment) {
	ev := notify.Event{
		Type:          eventType,
		AppointmentID: appt.ID,
		DoctorID:      appt.DoctorID,
		PatientID:     appt.PatientID,
		Date:          FormatDate(appt.Date),
		TimeSlot:      appt.TimeSlot,
		Status:        string(appt.Status),
		Actor:         actor,
		At:            time.Now(),
	}

	if err := pub.Publish(ctx, ev); err != nil {
		logger.Warn("publish appointment event",
			zap.String("event", eventType),
			zap.String("appointment_id", appt.ID.String()),
			zap.Error(err),
		)
	}
}
