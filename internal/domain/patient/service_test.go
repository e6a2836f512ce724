package patient

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repositories --

type mockPatientRepo struct {
	items map[uuid.UUID]*Patient
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{items: make(map[uuid.UUID]*Patient)}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	m.items[p.ID] = p
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return p, nil
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	m.items[p.ID] = p
	return nil
}

func (m *mockPatientRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *mockPatientRepo) List(_ context.Context, search string, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.items {
		if search == "" || strings.Contains(strings.ToLower(p.FirstName+" "+p.LastName), strings.ToLower(search)) {
			result = append(result, p)
		}
	}
	return result, len(result), nil
}

type mockHistoryRepo struct {
	questions map[uuid.UUID]*MedicalHistoryQuestion
	answers   map[uuid.UUID]map[uuid.UUID]string
	audits    []*MedicalHistoryAudit
}

func newMockHistoryRepo() *mockHistoryRepo {
	return &mockHistoryRepo{
		questions: make(map[uuid.UUID]*MedicalHistoryQuestion),
		answers:   make(map[uuid.UUID]map[uuid.UUID]string),
	}
}

func (m *mockHistoryRepo) ListQuestions(_ context.Context) ([]*MedicalHistoryQuestion, error) {
	var result []*MedicalHistoryQuestion
	for _, q := range m.questions {
		result = append(result, q)
	}
	return result, nil
}

func (m *mockHistoryRepo) CreateQuestion(_ context.Context, q *MedicalHistoryQuestion) error {
	q.ID = uuid.New()
	m.questions[q.ID] = q
	return nil
}

func (m *mockHistoryRepo) UpdateQuestion(_ context.Context, q *MedicalHistoryQuestion) error {
	m.questions[q.ID] = q
	return nil
}

func (m *mockHistoryRepo) DeleteQuestion(_ context.Context, id uuid.UUID) error {
	delete(m.questions, id)
	return nil
}

func (m *mockHistoryRepo) GetAnswers(_ context.Context, patientID uuid.UUID) ([]*MedicalHistoryAnswer, error) {
	var result []*MedicalHistoryAnswer
	for qid, answer := range m.answers[patientID] {
		result = append(result, &MedicalHistoryAnswer{PatientID: patientID, QuestionID: qid, Answer: answer})
	}
	return result, nil
}

func (m *mockHistoryRepo) UpsertAnswers(_ context.Context, patientID uuid.UUID, answers []MedicalHistoryAnswer) error {
	if m.answers[patientID] == nil {
		m.answers[patientID] = make(map[uuid.UUID]string)
	}
	for _, a := range answers {
		m.answers[patientID][a.QuestionID] = a.Answer
	}
	return nil
}

func (m *mockHistoryRepo) AddAudit(_ context.Context, a *MedicalHistoryAudit) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	m.audits = append(m.audits, a)
	return nil
}

func (m *mockHistoryRepo) ListAudits(_ context.Context, patientID uuid.UUID) ([]*MedicalHistoryAudit, error) {
	var result []*MedicalHistoryAudit
	for _, a := range m.audits {
		if a.PatientID == patientID {
			result = append(result, a)
		}
	}
	return result, nil
}

type mockAttachmentRepo struct {
	items map[uuid.UUID]*Attachment
}

func newMockAttachmentRepo() *mockAttachmentRepo {
	return &mockAttachmentRepo{items: make(map[uuid.UUID]*Attachment)}
}

func (m *mockAttachmentRepo) Create(_ context.Context, a *Attachment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	m.items[a.ID] = a
	return nil
}

func (m *mockAttachmentRepo) GetByID(_ context.Context, id uuid.UUID) (*Attachment, error) {
	a, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return a, nil
}

func (m *mockAttachmentRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *mockAttachmentRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Attachment, error) {
	var result []*Attachment
	for _, a := range m.items {
		if a.PatientID == patientID {
			result = append(result, a)
		}
	}
	return result, nil
}

func newTestService() (*Service, *mockHistoryRepo) {
	history := newMockHistoryRepo()
	return NewService(newMockPatientRepo(), history, newMockAttachmentRepo()), history
}

// -- Tests --

func TestCreateRequiresName(t *testing.T) {
	svc, _ := newTestService()
	if err := svc.Create(context.Background(), &Patient{FirstName: "Sara"}); err == nil {
		t.Error("expected error for missing last name")
	}
}

func TestCreateActivates(t *testing.T) {
	svc, _ := newTestService()
	p := &Patient{FirstName: "Sara", LastName: "Haddad"}
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if !p.Active {
		t.Error("new patient should be active")
	}
}

func TestCreateQuestionDefaultsKind(t *testing.T) {
	svc, _ := newTestService()
	q := &MedicalHistoryQuestion{Text: "Any allergies?"}
	if err := svc.CreateQuestion(context.Background(), q); err != nil {
		t.Fatal(err)
	}
	if q.Kind != QuestionBoolean {
		t.Errorf("kind = %s, want boolean", q.Kind)
	}
}

func TestCreateQuestionInvalidKind(t *testing.T) {
	svc, _ := newTestService()
	err := svc.CreateQuestion(context.Background(), &MedicalHistoryQuestion{Text: "x", Kind: "number"})
	if err == nil {
		t.Error("expected error for invalid kind")
	}
}

func TestSaveAnswersWritesAudit(t *testing.T) {
	svc, history := newTestService()
	ctx := context.Background()

	p := &Patient{FirstName: "Sara", LastName: "Haddad"}
	if err := svc.Create(ctx, p); err != nil {
		t.Fatal(err)
	}
	q := &MedicalHistoryQuestion{Text: "Any allergies?"}
	if err := svc.CreateQuestion(ctx, q); err != nil {
		t.Fatal(err)
	}

	answers := []MedicalHistoryAnswer{{QuestionID: q.ID, Answer: "yes"}}
	if err := svc.SaveAnswers(ctx, p.ID, answers, "user-1"); err != nil {
		t.Fatal(err)
	}

	got, err := svc.GetAnswers(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Answer != "yes" {
		t.Errorf("answers = %+v", got)
	}
	if len(history.audits) != 1 {
		t.Fatalf("audit rows = %d, want 1", len(history.audits))
	}
	if history.audits[0].ChangedBy != "user-1" {
		t.Errorf("changed_by = %s", history.audits[0].ChangedBy)
	}
}

func TestSaveAnswersUnknownPatient(t *testing.T) {
	svc, _ := newTestService()
	err := svc.SaveAnswers(context.Background(), uuid.New(), nil, "user-1")
	if err == nil {
		t.Error("expected error for unknown patient")
	}
}

func TestAddAttachmentValidation(t *testing.T) {
	svc, _ := newTestService()
	err := svc.AddAttachment(context.Background(), &Attachment{PatientID: uuid.New(), FileName: "xray.png"})
	if err == nil {
		t.Error("expected error for missing storage key")
	}
}
