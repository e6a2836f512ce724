package reminders

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/domain/admin"
	"github.com/clinicore/clinicore/internal/domain/messaging"
	"github.com/clinicore/clinicore/internal/domain/scheduling"
)

type mockAppointments struct {
	due    []*scheduling.Appointment
	marked map[uuid.UUID]time.Time
}

func (m *mockAppointments) ListDueForReminder(_ context.Context, now time.Time, lead time.Duration) ([]*scheduling.Appointment, error) {
	return m.due, nil
}

func (m *mockAppointments) MarkReminderSent(_ context.Context, id uuid.UUID, at time.Time) error {
	m.marked[id] = at
	return nil
}

type mockMessages struct {
	inputs []messaging.SendInput
	status string

	// failed maps appointment IDs to pre-existing failed reminder rows.
	failed map[string]*messaging.Message
	resent []uuid.UUID
}

func (m *mockMessages) Send(_ context.Context, in messaging.SendInput) (*messaging.Message, error) {
	m.inputs = append(m.inputs, in)
	return &messaging.Message{ID: uuid.New(), PatientID: in.PatientID, Kind: in.Kind, Status: m.status}, nil
}

func (m *mockMessages) Resend(_ context.Context, id uuid.UUID) (*messaging.Message, error) {
	m.resent = append(m.resent, id)
	return &messaging.Message{ID: id, Kind: messaging.KindAppointmentReminder, Status: m.status}, nil
}

func (m *mockMessages) LatestFailed(_ context.Context, kind, key, value string) (*messaging.Message, error) {
	if kind != messaging.KindAppointmentReminder || key != "appointment_id" {
		return nil, nil
	}
	return m.failed[value], nil
}

type mockUsers struct {
	users map[uuid.UUID]*admin.User
}

func (m *mockUsers) GetByID(_ context.Context, id uuid.UUID) (*admin.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return u, nil
}

func newTestWorker(appts *mockAppointments, messages *mockMessages, users *mockUsers) *Worker {
	return NewWorker(nil, nil, appts, users, messages, Config{}, zerolog.New(io.Discard))
}

func TestRemindSendsAndMarks(t *testing.T) {
	dentistID := uuid.New()
	appt := &scheduling.Appointment{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		DentistID: dentistID,
		StartsAt:  time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC),
		Status:    scheduling.StatusScheduled,
	}
	appts := &mockAppointments{due: []*scheduling.Appointment{appt}, marked: map[uuid.UUID]time.Time{}}
	messages := &mockMessages{status: messaging.StatusSent}
	users := &mockUsers{users: map[uuid.UUID]*admin.User{
		dentistID: {ID: dentistID, FullName: "Dr. Elira Hoxha"},
	}}
	w := newTestWorker(appts, messages, users)

	now := time.Now()
	if err := w.remind(context.Background(), appt, now); err != nil {
		t.Fatalf("remind: %v", err)
	}
	if len(messages.inputs) != 1 {
		t.Fatalf("messages sent = %d, want 1", len(messages.inputs))
	}
	in := messages.inputs[0]
	if in.Kind != messaging.KindAppointmentReminder {
		t.Errorf("kind = %s", in.Kind)
	}
	if in.Data["date"] != "01/09/2026" || in.Data["time"] != "10:30" {
		t.Errorf("data = %v", in.Data)
	}
	if in.Data["dentist_name"] != "Dr. Elira Hoxha" {
		t.Errorf("dentist_name = %s", in.Data["dentist_name"])
	}
	if _, ok := appts.marked[appt.ID]; !ok {
		t.Error("appointment not marked as reminded")
	}
}

func TestRemindLeavesUnmarkedOnFailedSend(t *testing.T) {
	dentistID := uuid.New()
	appt := &scheduling.Appointment{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		DentistID: dentistID,
		StartsAt:  time.Now().Add(2 * time.Hour),
		Status:    scheduling.StatusScheduled,
	}
	appts := &mockAppointments{due: []*scheduling.Appointment{appt}, marked: map[uuid.UUID]time.Time{}}
	messages := &mockMessages{status: messaging.StatusFailed}
	users := &mockUsers{users: map[uuid.UUID]*admin.User{
		dentistID: {ID: dentistID, FullName: "Dr. Kodra"},
	}}
	w := newTestWorker(appts, messages, users)

	if err := w.remind(context.Background(), appt, time.Now()); err != nil {
		t.Fatalf("remind: %v", err)
	}
	if len(appts.marked) != 0 {
		t.Error("failed reminder must stay unmarked for retry")
	}
}

func TestRemindResendsExistingFailedRow(t *testing.T) {
	dentistID := uuid.New()
	appt := &scheduling.Appointment{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		DentistID: dentistID,
		StartsAt:  time.Now().Add(2 * time.Hour),
		Status:    scheduling.StatusScheduled,
	}
	prev := &messaging.Message{
		ID:     uuid.New(),
		Kind:   messaging.KindAppointmentReminder,
		Status: messaging.StatusFailed,
	}
	appts := &mockAppointments{due: []*scheduling.Appointment{appt}, marked: map[uuid.UUID]time.Time{}}
	messages := &mockMessages{
		status: messaging.StatusSent,
		failed: map[string]*messaging.Message{appt.ID.String(): prev},
	}
	users := &mockUsers{users: map[uuid.UUID]*admin.User{
		dentistID: {ID: dentistID, FullName: "Dr. Kodra"},
	}}
	w := newTestWorker(appts, messages, users)

	now := time.Now()
	if err := w.remind(context.Background(), appt, now); err != nil {
		t.Fatalf("remind: %v", err)
	}
	if len(messages.inputs) != 0 {
		t.Errorf("retry must not create a new message, got %d sends", len(messages.inputs))
	}
	if len(messages.resent) != 1 || messages.resent[0] != prev.ID {
		t.Errorf("resent = %v, want [%s]", messages.resent, prev.ID)
	}
	if _, ok := appts.marked[appt.ID]; !ok {
		t.Error("appointment not marked after successful resend")
	}
}

func TestRemindFailsWithoutDentist(t *testing.T) {
	appt := &scheduling.Appointment{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		DentistID: uuid.New(),
		StartsAt:  time.Now().Add(2 * time.Hour),
		Status:    scheduling.StatusScheduled,
	}
	appts := &mockAppointments{due: []*scheduling.Appointment{appt}, marked: map[uuid.UUID]time.Time{}}
	messages := &mockMessages{status: messaging.StatusSent}
	users := &mockUsers{users: map[uuid.UUID]*admin.User{}}
	w := newTestWorker(appts, messages, users)

	if err := w.remind(context.Background(), appt, time.Now()); err == nil {
		t.Fatal("expected error when the dentist cannot be resolved")
	}
	if len(messages.inputs) != 0 {
		t.Error("no message should be sent without a dentist name")
	}
	if len(appts.marked) != 0 {
		t.Error("appointment must stay unmarked")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.Interval != 15*time.Minute {
		t.Errorf("interval = %s", cfg.Interval)
	}
	if cfg.Lead != 24*time.Hour {
		t.Errorf("lead = %s", cfg.Lead)
	}
}
