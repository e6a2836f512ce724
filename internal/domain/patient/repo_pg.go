package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Patient Repository ===========

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const patientCols = `id, first_name, last_name, phone, email, birth_date, gender,
	address, notes, active, created_at, updated_at`

func (r *repoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Phone, &p.Email, &p.BirthDate, &p.Gender,
		&p.Address, &p.Notes, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (id, first_name, last_name, phone, email, birth_date, gender,
			address, notes, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.FirstName, p.LastName, p.Phone, p.Email, p.BirthDate, p.Gender,
		p.Address, p.Notes, p.Active)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET first_name=$2, last_name=$3, phone=$4, email=$5, birth_date=$6,
			gender=$7, address=$8, notes=$9, active=$10, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.Phone, p.Email, p.BirthDate,
		p.Gender, p.Address, p.Notes, p.Active)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error) {
	where := ``
	args := []interface{}{}
	if search != "" {
		where = ` WHERE first_name ILIKE $1 OR last_name ILIKE $1 OR phone LIKE $1`
		args = append(args, "%"+search+"%")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT `+patientCols+` FROM patients`+where+
		` ORDER BY last_name, first_name LIMIT $%d OFFSET $%d`, n+1, n+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, nil
}

// =========== History Repository ===========

type historyRepoPG struct{ pool *pgxpool.Pool }

func NewHistoryRepoPG(pool *pgxpool.Pool) HistoryRepository { return &historyRepoPG{pool: pool} }

func (r *historyRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *historyRepoPG) ListQuestions(ctx context.Context) ([]*MedicalHistoryQuestion, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, text, kind, position FROM medical_history_questions ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*MedicalHistoryQuestion
	for rows.Next() {
		var q MedicalHistoryQuestion
		if err := rows.Scan(&q.ID, &q.Text, &q.Kind, &q.Position); err != nil {
			return nil, err
		}
		items = append(items, &q)
	}
	return items, nil
}

func (r *historyRepoPG) CreateQuestion(ctx context.Context, q *MedicalHistoryQuestion) error {
	q.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medical_history_questions (id, text, kind, position)
		VALUES ($1,$2,$3,$4)`,
		q.ID, q.Text, q.Kind, q.Position)
	return err
}

func (r *historyRepoPG) UpdateQuestion(ctx context.Context, q *MedicalHistoryQuestion) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_history_questions SET text=$2, kind=$3, position=$4 WHERE id = $1`,
		q.ID, q.Text, q.Kind, q.Position)
	return err
}

func (r *historyRepoPG) DeleteQuestion(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM medical_history_questions WHERE id = $1`, id)
	return err
}

func (r *historyRepoPG) GetAnswers(ctx context.Context, patientID uuid.UUID) ([]*MedicalHistoryAnswer, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT patient_id, question_id, answer, updated_at
		FROM medical_history_answers WHERE patient_id = $1`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*MedicalHistoryAnswer
	for rows.Next() {
		var a MedicalHistoryAnswer
		if err := rows.Scan(&a.PatientID, &a.QuestionID, &a.Answer, &a.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &a)
	}
	return items, nil
}

func (r *historyRepoPG) UpsertAnswers(ctx context.Context, patientID uuid.UUID, answers []MedicalHistoryAnswer) error {
	conn := r.conn(ctx)
	for _, a := range answers {
		if _, err := conn.Exec(ctx, `
			INSERT INTO medical_history_answers (patient_id, question_id, answer)
			VALUES ($1,$2,$3)
			ON CONFLICT (patient_id, question_id) DO UPDATE SET answer = EXCLUDED.answer, updated_at = NOW()`,
			patientID, a.QuestionID, a.Answer); err != nil {
			return err
		}
	}
	return nil
}

func (r *historyRepoPG) AddAudit(ctx context.Context, a *MedicalHistoryAudit) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medical_history_audits (id, patient_id, changed_by, summary)
		VALUES ($1,$2,$3,$4)`,
		a.ID, a.PatientID, a.ChangedBy, a.Summary)
	return err
}

func (r *historyRepoPG) ListAudits(ctx context.Context, patientID uuid.UUID) ([]*MedicalHistoryAudit, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, changed_by, summary, created_at
		FROM medical_history_audits WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*MedicalHistoryAudit
	for rows.Next() {
		var a MedicalHistoryAudit
		if err := rows.Scan(&a.ID, &a.PatientID, &a.ChangedBy, &a.Summary, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &a)
	}
	return items, nil
}

// =========== Attachment Repository ===========

type attachmentRepoPG struct{ pool *pgxpool.Pool }

func NewAttachmentRepoPG(pool *pgxpool.Pool) AttachmentRepository {
	return &attachmentRepoPG{pool: pool}
}

func (r *attachmentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const attachmentCols = `id, patient_id, file_name, content_type, size_bytes, storage_key, created_at`

func (r *attachmentRepoPG) Create(ctx context.Context, a *Attachment) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO attachments (id, patient_id, file_name, content_type, size_bytes, storage_key)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		a.ID, a.PatientID, a.FileName, a.ContentType, a.SizeBytes, a.StorageKey)
	return err
}

func (r *attachmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Attachment, error) {
	var a Attachment
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+attachmentCols+` FROM attachments WHERE id = $1`, id).
		Scan(&a.ID, &a.PatientID, &a.FileName, &a.ContentType, &a.SizeBytes, &a.StorageKey, &a.CreatedAt)
	return &a, err
}

func (r *attachmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM attachments WHERE id = $1`, id)
	return err
}

func (r *attachmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Attachment, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+attachmentCols+` FROM attachments WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Attachment
	for rows.Next() {
		var a Attachment
		if err := rows.Scan(&a.ID, &a.PatientID, &a.FileName, &a.ContentType, &a.SizeBytes, &a.StorageKey, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &a)
	}
	return items, nil
}
