package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient is a clinic patient record.
type Patient struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	FirstName string     `db:"first_name" json:"first_name"`
	LastName  string     `db:"last_name" json:"last_name"`
	Phone     *string    `db:"phone" json:"phone,omitempty"`
	Email     *string    `db:"email" json:"email,omitempty"`
	BirthDate *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Gender    *string    `db:"gender" json:"gender,omitempty"`
	Address   *string    `db:"address" json:"address,omitempty"`
	Notes     *string    `db:"notes" json:"notes,omitempty"`
	Active    bool       `db:"active" json:"active"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Medical history question kinds.
const (
	QuestionBoolean = "boolean"
	QuestionText    = "text"
)

// MedicalHistoryQuestion is an org-wide intake question.
type MedicalHistoryQuestion struct {
	ID       uuid.UUID `db:"id" json:"id"`
	Text     string    `db:"text" json:"text"`
	Kind     string    `db:"kind" json:"kind"`
	Position int       `db:"position" json:"position"`
}

// MedicalHistoryAnswer is one patient's answer to a question.
type MedicalHistoryAnswer struct {
	PatientID  uuid.UUID `db:"patient_id" json:"patient_id"`
	QuestionID uuid.UUID `db:"question_id" json:"question_id"`
	Answer     string    `db:"answer" json:"answer"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// MedicalHistoryAudit records who changed a patient's history and when.
type MedicalHistoryAudit struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	ChangedBy string    `db:"changed_by" json:"changed_by"`
	Summary   string    `db:"summary" json:"summary"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Attachment is file metadata attached to a patient; the blob itself
// lives in external storage under StorageKey.
type Attachment struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	FileName    string    `db:"file_name" json:"file_name"`
	ContentType string    `db:"content_type" json:"content_type"`
	SizeBytes   int64     `db:"size_bytes" json:"size_bytes"`
	StorageKey  string    `db:"storage_key" json:"storage_key"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
