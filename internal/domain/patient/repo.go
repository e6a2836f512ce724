package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error)
}

type HistoryRepository interface {
	ListQuestions(ctx context.Context) ([]*MedicalHistoryQuestion, error)
	CreateQuestion(ctx context.Context, q *MedicalHistoryQuestion) error
	UpdateQuestion(ctx context.Context, q *MedicalHistoryQuestion) error
	DeleteQuestion(ctx context.Context, id uuid.UUID) error

	GetAnswers(ctx context.Context, patientID uuid.UUID) ([]*MedicalHistoryAnswer, error)
	// UpsertAnswers replaces the patient's answers for the given questions.
	UpsertAnswers(ctx context.Context, patientID uuid.UUID, answers []MedicalHistoryAnswer) error

	AddAudit(ctx context.Context, a *MedicalHistoryAudit) error
	ListAudits(ctx context.Context, patientID uuid.UUID) ([]*MedicalHistoryAudit, error)
}

type AttachmentRepository interface {
	Create(ctx context.Context, a *Attachment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Attachment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Attachment, error)
}
