package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a mutex-guarded in-memory Repository with the same
// uniqueness semantics as the Postgres schema. It backs the test suite
// and the booking race simulator.
type MemoryRepository struct {
	mu           sync.Mutex
	doctors      map[uuid.UUID]Doctor
	patients     map[uuid.UUID]Patient
	slots        map[uuid.UUID]ScheduleSlot
	appointments map[uuid.UUID]Appointment
	events       []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		doctors:      make(map[uuid.UUID]Doctor),
		patients:     make(map[uuid.UUID]Patient),
		slots:        make(map[uuid.UUID]ScheduleSlot),
		appointments: make(map[uuid.UUID]Appointment),
	}
}

func (r *MemoryRepository) PutDoctor(d Doctor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doctors[d.ID] = d
}

func (r *MemoryRepository) PutPatient(p Patient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[p.ID] = p
}

func (r *MemoryRepository) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (r *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) CreateScheduleSlots(_ context.Context, slots []ScheduleSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// All-or-nothing: check the whole batch before inserting anything.
	for _, s := range slots {
		for _, existing := range r.slots {
			if existing.DoctorID == s.DoctorID &&
				FormatDate(existing.Date) == FormatDate(s.Date) &&
				existing.TimeSlot == s.TimeSlot {
				return ErrSlotExists
			}
		}
	}

	now := time.Now()
	for _, s := range slots {
		s.CreatedAt = now
		s.UpdatedAt = now
		r.slots[s.ID] = s
	}
	return nil
}

func (r *MemoryRepository) GetScheduleSlot(_ context.Context, id uuid.UUID) (*ScheduleSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &s, nil
}

func (r *MemoryRepository) ListScheduleSlots(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]ScheduleSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []ScheduleSlot
	for _, s := range r.slots {
		if s.DoctorID != doctorID {
			continue
		}
		if s.Date.Before(from) || s.Date.After(to) {
			continue
		}
		result = append(result, s)
	}
	return result, nil
}

func (r *MemoryRepository) ListOpenSlots(_ context.Context, doctorID uuid.UUID, date time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	day := FormatDate(date)
	var slots []string
	for _, s := range r.slots {
		if s.DoctorID == doctorID && FormatDate(s.Date) == day && s.IsAvailable {
			slots = append(slots, s.TimeSlot)
		}
	}
	return slots, nil
}

func (r *MemoryRepository) SetSlotAvailability(_ context.Context, id uuid.UUID, available bool) (*ScheduleSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	s.IsAvailable = available
	s.UpdatedAt = time.Now()
	r.slots[id] = s
	return &s, nil
}

func (r *MemoryRepository) DeleteScheduleSlot(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.slots[id]; !ok {
		return ErrSlotNotFound
	}
	delete(r.slots, id)
	return nil
}

func (r *MemoryRepository) ListActiveClaims(_ context.Context, doctorID uuid.UUID, date time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	day := FormatDate(date)
	var slots []string
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && FormatDate(a.Date) == day && a.Status.Active() {
			slots = append(slots, a.TimeSlot)
		}
	}
	return slots, nil
}

func (r *MemoryRepository) CreatePendingAppointment(_ context.Context, appt *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	day := FormatDate(appt.Date)
	for _, a := range r.appointments {
		if a.DoctorID == appt.DoctorID && FormatDate(a.Date) == day &&
			a.TimeSlot == appt.TimeSlot && a.Status.Active() {
			return nil, ErrSlotTaken
		}
	}

	now := time.Now()
	created := *appt
	created.Status = StatusPending
	created.CreatedAt = now
	created.UpdatedAt = now
	r.appointments[created.ID] = created
	return &created, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.PatientID == patientID {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from []AppointmentStatus, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}

	matched := false
	for _, f := range from {
		if a.Status == f {
			matched = true
			break
		}
	}
	if !matched {
		return nil, ErrAppointmentNotFound
	}

	a.Status = to
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

func (r *MemoryRepository) FindCompletable(_ context.Context, nowLocal time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.Status != StatusConfirmed {
			continue
		}
		ts, err := ParseTimeSlot(a.TimeSlot)
		if err != nil {
			continue
		}
		end := ts.EndOn(time.Date(a.Date.Year(), a.Date.Month(), a.Date.Day(), 0, 0, 0, 0, nowLocal.Location()))
		if end.Before(nowLocal) {
			result = append(result, a)
		}
	}
	return result, nil
}

func (r *MemoryRepository) PurgeAppointment(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.appointments[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(r.appointments, id)
	return nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}
