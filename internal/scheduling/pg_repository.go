package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	activeSlotConstraint   = "appointments_active_slot_uniq"
	scheduleSlotConstraint = "schedule_slots_doctor_date_slot_uniq"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

// storeErr classifies timeouts and cancelled contexts so read paths can
// retry them; everything else passes through untouched.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return &TransientStoreError{Err: err}
	}
	return err
}

func constraintErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case activeSlotConstraint:
			return ErrSlotTaken
		case scheduleSlotConstraint:
			return ErrSlotExists
		}
	}
	return storeErr(err)
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Specialty,
		&d.WorkingStart,
		&d.WorkingEnd,
		&d.SlotMinutes,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, storeErr(err)
	}

	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, storeErr(err)
	}

	return &p, nil
}

func scanScheduleSlot(row pgx.Row) (*ScheduleSlot, error) {
	var s ScheduleSlot

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.Date,
		&s.TimeSlot,
		&s.IsAvailable,
		&s.DayOfWeek,
		&s.Notes,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, storeErr(err)
	}

	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.Date,
		&a.TimeSlot,
		&a.Status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, storeErr(err)
	}

	return &a, nil
}

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, working_start, working_end, slot_minutes, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) CreateScheduleSlots(ctx context.Context, slots []ScheduleSlot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return storeErr(fmt.Errorf("begin schedule batch: %w", err))
	}
	defer tx.Rollback(ctx)

	for i := range slots {
		s := &slots[i]
		_, err := tx.Exec(ctx, `
			INSERT INTO schedule_slots (id, doctor_id, date, time_slot, is_available, day_of_week, notes, created_at, updated_at)
			VALUES ($1, $2, $3::date, $4, $5, $6, $7, now(), now())
		`, s.ID, s.DoctorID, FormatDate(s.Date), s.TimeSlot, s.IsAvailable, s.DayOfWeek, s.Notes)
		if err != nil {
			return constraintErr(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr(fmt.Errorf("commit schedule batch: %w", err))
	}
	return nil
}

func (r *PgRepository) GetScheduleSlot(ctx context.Context, id uuid.UUID) (*ScheduleSlot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, date, time_slot, is_available, day_of_week, notes, created_at, updated_at
		FROM schedule_slots
		WHERE id = $1
	`, id)
	return scanScheduleSlot(row)
}

func (r *PgRepository) ListScheduleSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]ScheduleSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, date, time_slot, is_available, day_of_week, notes, created_at, updated_at
		FROM schedule_slots
		WHERE doctor_id = $1
		  AND date >= $2::date
		  AND date <= $3::date
		ORDER BY date, time_slot
	`, doctorID, FormatDate(from), FormatDate(to))
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var result []ScheduleSlot
	for rows.Next() {
		s, err := scanScheduleSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	return result, storeErr(rows.Err())
}

func (r *PgRepository) ListOpenSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT time_slot
		FROM schedule_slots
		WHERE doctor_id = $1
		  AND date = $2::date
		  AND is_available = true
	`, doctorID, FormatDate(date))
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var slots []string
	for rows.Next() {
		var ts string
		if err := rows.Scan(&ts); err != nil {
			return nil, storeErr(err)
		}
		slots = append(slots, ts)
	}

	return slots, storeErr(rows.Err())
}

func (r *PgRepository) SetSlotAvailability(ctx context.Context, id uuid.UUID, available bool) (*ScheduleSlot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE schedule_slots
		SET is_available = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, doctor_id, date, time_slot, is_available, day_of_week, notes, created_at, updated_at
	`, id, available)
	return scanScheduleSlot(row)
}

func (r *PgRepository) DeleteScheduleSlot(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM schedule_slots WHERE id = $1`, id)
	if err != nil {
		return storeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *PgRepository) ListActiveClaims(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT time_slot
		FROM appointments
		WHERE doctor_id = $1
		  AND date = $2::date
		  AND status IN ('pending', 'confirmed')
	`, doctorID, FormatDate(date))
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var slots []string
	for rows.Next() {
		var ts string
		if err := rows.Scan(&ts); err != nil {
			return nil, storeErr(err)
		}
		slots = append(slots, ts)
	}

	return slots, storeErr(rows.Err())
}

func (r *PgRepository) CreatePendingAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, date, time_slot, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4::date, $5, 'pending', $6, now(), now())
		RETURNING id, doctor_id, patient_id, date, time_slot, status, notes, created_at, updated_at
	`, appt.ID, appt.DoctorID, appt.PatientID, FormatDate(appt.Date), appt.TimeSlot, appt.Notes)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, constraintErr(err)
	}
	return created, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, patient_id, date, time_slot, status, notes, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, patient_id, date, time_slot, status, notes, created_at, updated_at
		FROM appointments
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	return result, storeErr(rows.Err())
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from []AppointmentStatus, to AppointmentStatus) (*Appointment, error) {
	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($3)
		RETURNING id, doctor_id, patient_id, date, time_slot, status, notes, created_at, updated_at
	`, id, to, fromStrs)

	return scanAppointment(row)
}

func (r *PgRepository) FindCompletable(ctx context.Context, nowLocal time.Time) ([]Appointment, error) {
	// date + slot end is a zone-free clinic-local timestamp; nowLocal is
	// passed the same way so the comparison never crosses timezones.
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, patient_id, date, time_slot, status, notes, created_at, updated_at
		FROM appointments
		WHERE status = 'confirmed'
		  AND date + split_part(time_slot, '-', 2)::time < $1::timestamp
	`, nowLocal.Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	return result, storeErr(rows.Err())
}

func (r *PgRepository) PurgeAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return storeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", storeErr(err))
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
