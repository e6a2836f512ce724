package patient

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

var validQuestionKinds = map[string]bool{
	QuestionBoolean: true, QuestionText: true,
}

type Service struct {
	patients    Repository
	history     HistoryRepository
	attachments AttachmentRepository
}

func NewService(p Repository, h HistoryRepository, a AttachmentRepository) *Service {
	return &Service{patients: p, history: h, attachments: a}
}

// -- Patients --

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	p.Active = true
	return s.patients.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	return s.patients.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.patients.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, search, limit, offset)
}

// -- Medical history --

func (s *Service) ListQuestions(ctx context.Context) ([]*MedicalHistoryQuestion, error) {
	return s.history.ListQuestions(ctx)
}

func (s *Service) CreateQuestion(ctx context.Context, q *MedicalHistoryQuestion) error {
	if q.Text == "" {
		return fmt.Errorf("text is required")
	}
	if q.Kind == "" {
		q.Kind = QuestionBoolean
	}
	if !validQuestionKinds[q.Kind] {
		return fmt.Errorf("invalid question kind: %s", q.Kind)
	}
	return s.history.CreateQuestion(ctx, q)
}

func (s *Service) UpdateQuestion(ctx context.Context, q *MedicalHistoryQuestion) error {
	if q.Text == "" {
		return fmt.Errorf("text is required")
	}
	if !validQuestionKinds[q.Kind] {
		return fmt.Errorf("invalid question kind: %s", q.Kind)
	}
	return s.history.UpdateQuestion(ctx, q)
}

func (s *Service) DeleteQuestion(ctx context.Context, id uuid.UUID) error {
	return s.history.DeleteQuestion(ctx, id)
}

func (s *Service) GetAnswers(ctx context.Context, patientID uuid.UUID) ([]*MedicalHistoryAnswer, error) {
	return s.history.GetAnswers(ctx, patientID)
}

// SaveAnswers upserts the patient's answers and writes an audit row
// naming the acting user.
func (s *Service) SaveAnswers(ctx context.Context, patientID uuid.UUID, answers []MedicalHistoryAnswer, changedBy string) error {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return fmt.Errorf("patient not found")
	}
	for _, a := range answers {
		if a.QuestionID == uuid.Nil {
			return fmt.Errorf("question_id is required on every answer")
		}
	}
	if err := s.history.UpsertAnswers(ctx, patientID, answers); err != nil {
		return err
	}
	return s.history.AddAudit(ctx, &MedicalHistoryAudit{
		PatientID: patientID,
		ChangedBy: changedBy,
		Summary:   strconv.Itoa(len(answers)) + " answer(s) updated",
	})
}

func (s *Service) ListAudits(ctx context.Context, patientID uuid.UUID) ([]*MedicalHistoryAudit, error) {
	return s.history.ListAudits(ctx, patientID)
}

// -- Attachments --

func (s *Service) AddAttachment(ctx context.Context, a *Attachment) error {
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if a.FileName == "" || a.StorageKey == "" {
		return fmt.Errorf("file_name and storage_key are required")
	}
	return s.attachments.Create(ctx, a)
}

func (s *Service) GetAttachment(ctx context.Context, id uuid.UUID) (*Attachment, error) {
	return s.attachments.GetByID(ctx, id)
}

func (s *Service) DeleteAttachment(ctx context.Context, id uuid.UUID) error {
	return s.attachments.Delete(ctx, id)
}

func (s *Service) ListAttachments(ctx context.Context, patientID uuid.UUID) ([]*Attachment, error) {
	return s.attachments.ListByPatient(ctx, patientID)
}
