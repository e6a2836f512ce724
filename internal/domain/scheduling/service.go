package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var validStatuses = map[string]bool{
	StatusScheduled: true, StatusCompleted: true, StatusCancelled: true, StatusNoShow: true,
}

// Allowed status transitions. Scheduled is the only non-terminal state.
var statusTransitions = map[string][]string{
	StatusScheduled: {StatusCompleted, StatusCancelled, StatusNoShow},
}

type Service struct {
	appointments Repository
}

func NewService(repo Repository) *Service {
	return &Service{appointments: repo}
}

func (s *Service) Create(ctx context.Context, a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if a.DentistID == uuid.Nil {
		return fmt.Errorf("dentist_id is required")
	}
	if a.StartsAt.IsZero() {
		return fmt.Errorf("starts_at is required")
	}
	if a.DurationMinutes <= 0 {
		return fmt.Errorf("duration_minutes must be positive")
	}
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	if a.Status != StatusScheduled {
		return fmt.Errorf("new appointments must be scheduled")
	}
	return s.appointments.Create(ctx, a)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, a *Appointment) error {
	if a.DurationMinutes <= 0 {
		return fmt.Errorf("duration_minutes must be positive")
	}
	if !validStatuses[a.Status] {
		return fmt.Errorf("invalid appointment status: %s", a.Status)
	}
	return s.appointments.Update(ctx, a)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.appointments.Delete(ctx, id)
}

func (s *Service) ListRange(ctx context.Context, from, to time.Time, dentistID *uuid.UUID) ([]*Appointment, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("to must be after from")
	}
	return s.appointments.ListRange(ctx, from, to, dentistID)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByPatient(ctx, patientID, limit, offset)
}

// ChangeStatus applies a status transition. Completed, cancelled and
// no_show are terminal.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !validStatuses[status] {
		return fmt.Errorf("invalid appointment status: %s", status)
	}
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if a.Status == status {
		return nil
	}
	for _, allowed := range statusTransitions[a.Status] {
		if allowed == status {
			return s.appointments.UpdateStatus(ctx, id, status)
		}
	}
	return fmt.Errorf("cannot change appointment status from %s to %s", a.Status, status)
}

// ListDueForReminder exposes the reminder scan for the background worker.
func (s *Service) ListDueForReminder(ctx context.Context, now time.Time, lead time.Duration) ([]*Appointment, error) {
	return s.appointments.ListDueForReminder(ctx, now, lead)
}

func (s *Service) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.appointments.MarkReminderSent(ctx, id, at)
}
