package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListRange returns appointments starting within [from, to), optionally
	// filtered by dentist.
	ListRange(ctx context.Context, from, to time.Time, dentistID *uuid.UUID) ([]*Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	// ListDueForReminder returns scheduled appointments starting within
	// [now, now+lead) whose reminder has not been sent yet.
	ListDueForReminder(ctx context.Context, now time.Time, lead time.Duration) ([]*Appointment, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error
}
