package messaging

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/domain/patient"
	transport "github.com/clinicore/clinicore/internal/platform/messaging"
)

// patientDirectory is the slice of the patient repository the service needs
// to resolve recipients.
type patientDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// clinicDirectory resolves the display name of the organization the request
// is scoped to, for templates that sign off with the clinic name.
type clinicDirectory interface {
	ClinicName(ctx context.Context) (string, error)
}

type Service struct {
	repo      Repository
	patients  patientDirectory
	clinic    clinicDirectory
	sender    transport.Sender
	templates *transport.TemplateEngine
}

func NewService(repo Repository, patients patientDirectory, clinic clinicDirectory,
	sender transport.Sender, templates *transport.TemplateEngine) *Service {
	return &Service{repo: repo, patients: patients, clinic: clinic, sender: sender, templates: templates}
}

// SendInput describes an outbound message to render and dispatch.
type SendInput struct {
	PatientID uuid.UUID         `json:"patient_id"`
	Kind      string            `json:"kind"`
	Recipient string            `json:"recipient,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Send renders the template for the given kind, records the message as
// pending and attempts delivery. The returned message carries the outcome
// status. A delivery failure is not an error here, it is recorded on the
// message itself.
func (s *Service) Send(ctx context.Context, in SendInput) (*Message, error) {
	if !ValidKind(in.Kind) {
		return nil, fmt.Errorf("invalid message kind: %s", in.Kind)
	}
	if in.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}

	p, err := s.patients.GetByID(ctx, in.PatientID)
	if err != nil {
		return nil, fmt.Errorf("patient lookup: %w", err)
	}

	recipient := in.Recipient
	if recipient == "" {
		if p.Phone == nil || *p.Phone == "" {
			return nil, fmt.Errorf("patient has no phone number and no recipient was given")
		}
		recipient = *p.Phone
	}

	data := in.Data
	if data == nil {
		data = map[string]string{}
	}
	if _, ok := data["patient_name"]; !ok {
		data["patient_name"] = p.FirstName + " " + p.LastName
	}
	if _, ok := data["clinic_name"]; !ok {
		name, err := s.clinic.ClinicName(ctx)
		if err != nil {
			return nil, fmt.Errorf("clinic lookup: %w", err)
		}
		data["clinic_name"] = name
	}

	content, err := s.templates.Render(in.Kind, data)
	if err != nil {
		return nil, err
	}

	m := &Message{
		PatientID: in.PatientID,
		Kind:      in.Kind,
		Recipient: recipient,
		Content:   content,
		Status:    StatusPending,
		Metadata:  in.Metadata,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	return s.dispatch(ctx, m, StatusPending)
}

// Resend retries delivery of a failed message on the same row. Messages in
// any other status are rejected.
func (s *Service) Resend(ctx context.Context, id uuid.UUID) (*Message, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status != StatusFailed {
		return nil, fmt.Errorf("only failed messages can be resent, message is %s", m.Status)
	}
	return s.dispatch(ctx, m, StatusFailed)
}

// LatestFailed returns the most recent failed message of the given kind
// whose metadata at key equals value, or nil when there is none. Retry
// loops use it to resend an existing row instead of minting a new message
// on every attempt.
func (s *Service) LatestFailed(ctx context.Context, kind, key, value string) (*Message, error) {
	return s.repo.LatestFailedByMetadata(ctx, kind, key, value)
}

// dispatch attempts delivery and records the outcome. The status update is
// conditional on fromStatus so concurrent resends of the same message settle
// on a single winner.
func (s *Service) dispatch(ctx context.Context, m *Message, fromStatus string) (*Message, error) {
	if sendErr := s.sender.Send(ctx, m.Recipient, m.Content); sendErr != nil {
		if _, err := s.repo.MarkFailed(ctx, m.ID, sendErr.Error(), fromStatus); err != nil {
			return nil, err
		}
	} else {
		if _, err := s.repo.MarkSent(ctx, m.ID, fromStatus); err != nil {
			return nil, err
		}
	}
	// When a concurrent resend already settled the row the conditional
	// update is a no-op and the reload returns the winner's state.
	return s.repo.GetByID(ctx, m.ID)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Message, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, patientID *uuid.UUID, status string, limit, offset int) ([]*Message, int, error) {
	if status != "" && status != StatusPending && status != StatusSent && status != StatusFailed {
		return nil, 0, fmt.Errorf("invalid message status: %s", status)
	}
	return s.repo.List(ctx, patientID, status, limit, offset)
}
