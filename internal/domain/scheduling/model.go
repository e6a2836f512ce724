package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Appointment statuses.
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

// Appointment is a booked slot with a dentist.
type Appointment struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	DentistID       uuid.UUID  `db:"dentist_id" json:"dentist_id"`
	TreatmentTypeID *uuid.UUID `db:"treatment_type_id" json:"treatment_type_id,omitempty"`
	StartsAt        time.Time  `db:"starts_at" json:"starts_at"`
	DurationMinutes int        `db:"duration_minutes" json:"duration_minutes"`
	Status          string     `db:"status" json:"status"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	ReminderSentAt  *time.Time `db:"reminder_sent_at" json:"reminder_sent_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// EndsAt returns the appointment end time.
func (a *Appointment) EndsAt() time.Time {
	return a.StartsAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}
