package scheduling

import "fmt"

// ValidationError marks malformed or missing input fields.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError marks an unknown doctor, patient, appointment or schedule slot.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ConflictError marks a claim on a slot that is no longer available at
// commit time. Code is the stable machine-readable discriminator.
type ConflictError struct {
	Code   string // slot_conflict, slot_being_booked, schedule_exists
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// PolicyError marks an illegal state transition, such as cancelling a
// past or terminal appointment.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return e.Reason
}

// TransientStoreError marks a storage timeout or outage. Reads may retry
// on it; booking commits must not, to avoid duplicate bookings.
type TransientStoreError struct {
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("store unavailable: %v", e.Err)
}

func (e *TransientStoreError) Unwrap() error {
	return e.Err
}
