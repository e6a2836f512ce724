package messaging

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/domain/patient"
	transport "github.com/clinicore/clinicore/internal/platform/messaging"
)

type mockRepo struct {
	messages map[uuid.UUID]*Message
}

func newMockRepo() *mockRepo {
	return &mockRepo{messages: map[uuid.UUID]*Message{}}
}

func (r *mockRepo) Create(_ context.Context, m *Message) error {
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	cp := *m
	r.messages[m.ID] = &cp
	return nil
}

func (r *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Message, error) {
	m, ok := r.messages[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *mockRepo) List(_ context.Context, patientID *uuid.UUID, status string, limit, offset int) ([]*Message, int, error) {
	out := []*Message{}
	for _, m := range r.messages {
		if patientID != nil && m.PatientID != *patientID {
			continue
		}
		if status != "" && m.Status != status {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (r *mockRepo) LatestFailedByMetadata(_ context.Context, kind, key, value string) (*Message, error) {
	var latest *Message
	for _, m := range r.messages {
		if m.Kind != kind || m.Status != StatusFailed || m.Metadata[key] != value {
			continue
		}
		if latest == nil || m.CreatedAt.After(latest.CreatedAt) {
			latest = m
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *mockRepo) MarkSent(_ context.Context, id uuid.UUID, fromStatus string) (bool, error) {
	m, ok := r.messages[id]
	if !ok {
		return false, errNotFound
	}
	if m.Status != fromStatus {
		return false, nil
	}
	now := time.Now()
	m.Status = StatusSent
	m.SentAt = &now
	m.Error = nil
	return true, nil
}

func (r *mockRepo) MarkFailed(_ context.Context, id uuid.UUID, sendErr string, fromStatus string) (bool, error) {
	m, ok := r.messages[id]
	if !ok {
		return false, errNotFound
	}
	if m.Status != fromStatus {
		return false, nil
	}
	m.Status = StatusFailed
	m.Error = &sendErr
	return true, nil
}

var errNotFound = errors.New("not found")

type mockPatients struct {
	patients map[uuid.UUID]*patient.Patient
}

func (m *mockPatients) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, errNotFound
	}
	return p, nil
}

type mockClinic struct {
	name string
}

func (m *mockClinic) ClinicName(_ context.Context) (string, error) {
	return m.name, nil
}

func newTestService(sender transport.Sender) (*Service, *mockRepo, uuid.UUID) {
	repo := newMockRepo()
	phone := "+355691234567"
	p := &patient.Patient{ID: uuid.New(), FirstName: "Elira", LastName: "Hoxha", Phone: &phone}
	patients := &mockPatients{patients: map[uuid.UUID]*patient.Patient{p.ID: p}}
	svc := NewService(repo, patients, &mockClinic{name: "Smile Clinic"}, sender, transport.NewTemplateEngine())
	return svc, repo, p.ID
}

func TestSendMarksSent(t *testing.T) {
	sender := &transport.MockSender{}
	svc, _, patientID := newTestService(sender)

	m, err := svc.Send(context.Background(), SendInput{
		PatientID: patientID,
		Kind:      KindFollowUp,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if m.Status != StatusSent {
		t.Errorf("status = %s, want %s", m.Status, StatusSent)
	}
	if m.SentAt == nil {
		t.Error("sent_at not set")
	}
	if m.Recipient != "+355691234567" {
		t.Errorf("recipient = %s", m.Recipient)
	}
	if !strings.Contains(m.Content, "Elira Hoxha") {
		t.Errorf("content missing patient name: %q", m.Content)
	}
	calls := sender.Calls()
	if len(calls) != 1 || calls[0].To != "+355691234567" {
		t.Errorf("sender calls = %+v", calls)
	}
}

func TestSendFailureRecordedOnMessage(t *testing.T) {
	sender := &transport.MockSender{ShouldFail: true, FailError: "gateway timeout"}
	svc, _, patientID := newTestService(sender)

	m, err := svc.Send(context.Background(), SendInput{
		PatientID: patientID,
		Kind:      KindAppointmentReminder,
		Data:      map[string]string{"date": "2026-09-01", "time": "10:00", "dentist_name": "Dr. Kodra"},
	})
	if err != nil {
		t.Fatalf("Send should not fail on delivery errors: %v", err)
	}
	if m.Status != StatusFailed {
		t.Errorf("status = %s, want %s", m.Status, StatusFailed)
	}
	if m.Error == nil || *m.Error != "gateway timeout" {
		t.Errorf("error = %v", m.Error)
	}
	if m.SentAt != nil {
		t.Error("sent_at should be unset on failure")
	}
}

func TestResendFailedMessage(t *testing.T) {
	sender := &transport.MockSender{ShouldFail: true, FailError: "gateway down"}
	svc, _, patientID := newTestService(sender)

	m, err := svc.Send(context.Background(), SendInput{PatientID: patientID, Kind: KindFollowUp})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if m.Status != StatusFailed {
		t.Fatalf("status = %s, want %s", m.Status, StatusFailed)
	}

	sender.ShouldFail = false
	resent, err := svc.Resend(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("Resend: %v", err)
	}
	if resent.ID != m.ID {
		t.Error("resend must reuse the same message row")
	}
	if resent.Status != StatusSent {
		t.Errorf("status = %s, want %s", resent.Status, StatusSent)
	}
	if resent.Error != nil {
		t.Errorf("error should be cleared, got %v", *resent.Error)
	}
}

func TestResendRejectsNonFailed(t *testing.T) {
	sender := &transport.MockSender{}
	svc, _, patientID := newTestService(sender)

	m, err := svc.Send(context.Background(), SendInput{PatientID: patientID, Kind: KindFollowUp})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if m.Status != StatusSent {
		t.Fatalf("status = %s, want %s", m.Status, StatusSent)
	}
	if _, err := svc.Resend(context.Background(), m.ID); err == nil {
		t.Error("expected error resending a sent message")
	}
}

func TestSendValidation(t *testing.T) {
	sender := &transport.MockSender{}
	svc, _, patientID := newTestService(sender)

	if _, err := svc.Send(context.Background(), SendInput{PatientID: patientID, Kind: "postcard"}); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := svc.Send(context.Background(), SendInput{Kind: KindFollowUp}); err == nil {
		t.Error("expected error for missing patient_id")
	}
	if _, err := svc.Send(context.Background(), SendInput{PatientID: uuid.New(), Kind: KindFollowUp}); err == nil {
		t.Error("expected error for unknown patient")
	}
	if len(sender.Calls()) != 0 {
		t.Error("no messages should be sent when validation fails")
	}
}

func TestSendExplicitRecipient(t *testing.T) {
	sender := &transport.MockSender{}
	svc, _, patientID := newTestService(sender)

	m, err := svc.Send(context.Background(), SendInput{
		PatientID: patientID,
		Kind:      KindPaymentReceipt,
		Recipient: "+355699999999",
		Data:      map[string]string{"amount": "150.00", "date": "2026-08-30"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if m.Recipient != "+355699999999" {
		t.Errorf("recipient = %s", m.Recipient)
	}
}

func TestSendFillsClinicName(t *testing.T) {
	sender := &transport.MockSender{}
	svc, _, patientID := newTestService(sender)

	m, err := svc.Send(context.Background(), SendInput{
		PatientID: patientID,
		Kind:      KindPaymentReceipt,
		Data:      map[string]string{"amount": "150.00", "date": "30/08/2026"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(m.Content, "Smile Clinic") {
		t.Errorf("content missing clinic name: %q", m.Content)
	}
	if strings.Contains(m.Content, "{{") {
		t.Errorf("content has unresolved placeholder: %q", m.Content)
	}
}

func TestSendRejectsIncompleteData(t *testing.T) {
	sender := &transport.MockSender{}
	svc, _, patientID := newTestService(sender)

	// medical_history needs form_link, which only the caller can supply.
	if _, err := svc.Send(context.Background(), SendInput{
		PatientID: patientID,
		Kind:      KindMedicalHistory,
	}); err == nil {
		t.Error("expected error for missing form_link")
	}
	if len(sender.Calls()) != 0 {
		t.Error("nothing should be sent when rendering fails")
	}
}

func TestLatestFailedFindsRetryRow(t *testing.T) {
	sender := &transport.MockSender{ShouldFail: true, FailError: "gateway down"}
	svc, _, patientID := newTestService(sender)

	apptID := uuid.New().String()
	m, err := svc.Send(context.Background(), SendInput{
		PatientID: patientID,
		Kind:      KindAppointmentReminder,
		Data:      map[string]string{"date": "01/09/2026", "time": "10:30", "dentist_name": "Dr. Kodra"},
		Metadata:  map[string]string{"appointment_id": apptID},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	got, err := svc.LatestFailed(context.Background(), KindAppointmentReminder, "appointment_id", apptID)
	if err != nil {
		t.Fatalf("LatestFailed: %v", err)
	}
	if got == nil || got.ID != m.ID {
		t.Fatalf("LatestFailed = %+v, want message %s", got, m.ID)
	}

	sender.ShouldFail = false
	if _, err := svc.Resend(context.Background(), m.ID); err != nil {
		t.Fatalf("Resend: %v", err)
	}
	got, err = svc.LatestFailed(context.Background(), KindAppointmentReminder, "appointment_id", apptID)
	if err != nil {
		t.Fatalf("LatestFailed: %v", err)
	}
	if got != nil {
		t.Errorf("no failed row should remain after a successful resend, got %+v", got)
	}
}

func TestSendRequiresPhoneWhenNoRecipient(t *testing.T) {
	repo := newMockRepo()
	p := &patient.Patient{ID: uuid.New(), FirstName: "Arben", LastName: "Kola"}
	patients := &mockPatients{patients: map[uuid.UUID]*patient.Patient{p.ID: p}}
	svc := NewService(repo, patients, &mockClinic{name: "Smile Clinic"}, &transport.MockSender{}, transport.NewTemplateEngine())

	if _, err := svc.Send(context.Background(), SendInput{PatientID: p.ID, Kind: KindFollowUp}); err == nil {
		t.Error("expected error when patient has no phone")
	}
}

func TestResendRaceSettlesOnce(t *testing.T) {
	sender := &transport.MockSender{ShouldFail: true, FailError: "gateway down"}
	svc, repo, patientID := newTestService(sender)

	m, err := svc.Send(context.Background(), SendInput{PatientID: patientID, Kind: KindFollowUp})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	// First resend wins and flips the row to sent. A second attempt that
	// raced past the status check must not overwrite the outcome.
	sender.ShouldFail = false
	if _, err := svc.Resend(context.Background(), m.ID); err != nil {
		t.Fatalf("Resend: %v", err)
	}
	applied, err := repo.MarkFailed(context.Background(), m.ID, "late failure", StatusFailed)
	if err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if applied {
		t.Error("conditional update should not apply after the row left failed")
	}
	got, err := svc.Get(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusSent {
		t.Errorf("status = %s, want %s", got.Status, StatusSent)
	}
}
