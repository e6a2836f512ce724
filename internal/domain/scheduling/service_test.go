package scheduling

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockRepo struct {
	items map[uuid.UUID]*Appointment
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Appointment)}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = time.Now()
	m.items[a.ID] = a
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return a, nil
}

func (m *mockRepo) Update(_ context.Context, a *Appointment) error {
	m.items[a.ID] = a
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *mockRepo) ListRange(_ context.Context, from, to time.Time, dentistID *uuid.UUID) ([]*Appointment, error) {
	var result []*Appointment
	for _, a := range m.items {
		if a.StartsAt.Before(from) || !a.StartsAt.Before(to) {
			continue
		}
		if dentistID != nil && a.DentistID != *dentistID {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var result []*Appointment
	for _, a := range m.items {
		if a.PatientID == patientID {
			result = append(result, a)
		}
	}
	return result, len(result), nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	a, ok := m.items[id]
	if !ok {
		return fmt.Errorf("not found")
	}
	a.Status = status
	return nil
}

func (m *mockRepo) ListDueForReminder(_ context.Context, now time.Time, lead time.Duration) ([]*Appointment, error) {
	var result []*Appointment
	for _, a := range m.items {
		if a.Status != StatusScheduled || a.ReminderSentAt != nil {
			continue
		}
		if a.StartsAt.Before(now) || !a.StartsAt.Before(now.Add(lead)) {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

func (m *mockRepo) MarkReminderSent(_ context.Context, id uuid.UUID, at time.Time) error {
	a, ok := m.items[id]
	if !ok {
		return fmt.Errorf("not found")
	}
	a.ReminderSentAt = &at
	return nil
}

func newAppointment(startOffset time.Duration) *Appointment {
	return &Appointment{
		PatientID:       uuid.New(),
		DentistID:       uuid.New(),
		StartsAt:        time.Now().Add(startOffset),
		DurationMinutes: 30,
	}
}

func TestCreateDefaultsToScheduled(t *testing.T) {
	svc := NewService(newMockRepo())
	a := newAppointment(24 * time.Hour)
	if err := svc.Create(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	if a.Status != StatusScheduled {
		t.Errorf("status = %s, want scheduled", a.Status)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	a := newAppointment(time.Hour)
	a.PatientID = uuid.Nil
	if err := svc.Create(ctx, a); err == nil {
		t.Error("expected error for missing patient")
	}

	a = newAppointment(time.Hour)
	a.DurationMinutes = 0
	if err := svc.Create(ctx, a); err == nil {
		t.Error("expected error for zero duration")
	}

	a = newAppointment(time.Hour)
	a.Status = StatusCompleted
	if err := svc.Create(ctx, a); err == nil {
		t.Error("expected error for non-scheduled initial status")
	}
}

func TestChangeStatusTransitions(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()
	a := newAppointment(time.Hour)
	if err := svc.Create(ctx, a); err != nil {
		t.Fatal(err)
	}

	if err := svc.ChangeStatus(ctx, a.ID, StatusNoShow); err != nil {
		t.Fatalf("scheduled -> no_show: %v", err)
	}
	if err := svc.ChangeStatus(ctx, a.ID, StatusScheduled); err == nil {
		t.Error("no_show is terminal, expected error")
	}
}

func TestListRangeValidation(t *testing.T) {
	svc := NewService(newMockRepo())
	now := time.Now()
	if _, err := svc.ListRange(context.Background(), now, now, nil); err == nil {
		t.Error("expected error for empty range")
	}
}

func TestReminderScan(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	soon := newAppointment(2 * time.Hour)
	later := newAppointment(72 * time.Hour)
	if err := svc.Create(ctx, soon); err != nil {
		t.Fatal(err)
	}
	if err := svc.Create(ctx, later); err != nil {
		t.Fatal(err)
	}

	due, err := svc.ListDueForReminder(ctx, time.Now(), 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 || due[0].ID != soon.ID {
		t.Fatalf("due = %d appointments, want only the one starting soon", len(due))
	}

	if err := svc.MarkReminderSent(ctx, soon.ID, time.Now()); err != nil {
		t.Fatal(err)
	}
	due, err = svc.ListDueForReminder(ctx, time.Now(), 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 0 {
		t.Errorf("due = %d after reminder sent, want 0", len(due))
	}
}
