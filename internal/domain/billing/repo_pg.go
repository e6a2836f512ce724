package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/clinicore/clinicore/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Payment Repository ===========

type paymentRepoPG struct{ pool *pgxpool.Pool }

func NewPaymentRepoPG(pool *pgxpool.Pool) PaymentRepository { return &paymentRepoPG{pool: pool} }

func (r *paymentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const paymentCols = `id, patient_id, treatment_id, amount, method, note, paid_at,
	receipt_message_id, created_at, updated_at`

func (r *paymentRepoPG) scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.PatientID, &p.TreatmentID, &p.Amount, &p.Method, &p.Note, &p.PaidAt,
		&p.ReceiptMessageID, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *paymentRepoPG) Create(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO payments (id, patient_id, treatment_id, amount, method, note, paid_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.PatientID, p.TreatmentID, p.Amount, p.Method, p.Note, p.PaidAt)
	return err
}

func (r *paymentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return r.scanPayment(r.conn(ctx).QueryRow(ctx, `SELECT `+paymentCols+` FROM payments WHERE id = $1`, id))
}

func (r *paymentRepoPG) Update(ctx context.Context, p *Payment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE payments SET patient_id=$2, treatment_id=$3, amount=$4, method=$5, note=$6,
			paid_at=$7, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.PatientID, p.TreatmentID, p.Amount, p.Method, p.Note, p.PaidAt)
	return err
}

func (r *paymentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM payments WHERE id = $1`, id)
	return err
}

func (r *paymentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Payment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM payments WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+paymentCols+` FROM payments WHERE patient_id = $1
		ORDER BY paid_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return r.collect(rows, total)
}

func (r *paymentRepoPG) ListRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*Payment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM payments WHERE paid_at >= $1 AND paid_at < $2`, from, to).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+paymentCols+` FROM payments WHERE paid_at >= $1 AND paid_at < $2
		ORDER BY paid_at DESC LIMIT $3 OFFSET $4`, from, to, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return r.collect(rows, total)
}

func (r *paymentRepoPG) collect(rows pgx.Rows, total int) ([]*Payment, int, error) {
	payments := []*Payment{}
	for rows.Next() {
		p, err := r.scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		payments = append(payments, p)
	}
	return payments, total, rows.Err()
}

func (r *paymentRepoPG) SetReceiptMessage(ctx context.Context, id, messageID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE payments SET receipt_message_id=$2, updated_at=NOW() WHERE id = $1`, id, messageID)
	return err
}

func (r *paymentRepoPG) SumByPatient(ctx context.Context, patientID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payments WHERE patient_id = $1`, patientID).Scan(&sum)
	return sum, err
}

// =========== Expense Repository ===========

type expenseRepoPG struct{ pool *pgxpool.Pool }

func NewExpenseRepoPG(pool *pgxpool.Pool) ExpenseRepository { return &expenseRepoPG{pool: pool} }

func (r *expenseRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const expenseCols = `id, category, description, amount, incurred_at, created_at, updated_at`

func (r *expenseRepoPG) scanExpense(row pgx.Row) (*Expense, error) {
	var e Expense
	err := row.Scan(&e.ID, &e.Category, &e.Description, &e.Amount, &e.IncurredAt, &e.CreatedAt, &e.UpdatedAt)
	return &e, err
}

func (r *expenseRepoPG) Create(ctx context.Context, e *Expense) error {
	e.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO expenses (id, category, description, amount, incurred_at)
		VALUES ($1,$2,$3,$4,$5)`,
		e.ID, e.Category, e.Description, e.Amount, e.IncurredAt)
	return err
}

func (r *expenseRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Expense, error) {
	return r.scanExpense(r.conn(ctx).QueryRow(ctx, `SELECT `+expenseCols+` FROM expenses WHERE id = $1`, id))
}

func (r *expenseRepoPG) Update(ctx context.Context, e *Expense) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE expenses SET category=$2, description=$3, amount=$4, incurred_at=$5, updated_at=NOW()
		WHERE id = $1`,
		e.ID, e.Category, e.Description, e.Amount, e.IncurredAt)
	return err
}

func (r *expenseRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	return err
}

func (r *expenseRepoPG) ListRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*Expense, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM expenses WHERE incurred_at >= $1 AND incurred_at < $2`, from, to).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+expenseCols+` FROM expenses WHERE incurred_at >= $1 AND incurred_at < $2
		ORDER BY incurred_at DESC LIMIT $3 OFFSET $4`, from, to, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	expenses := []*Expense{}
	for rows.Next() {
		e, err := r.scanExpense(rows)
		if err != nil {
			return nil, 0, err
		}
		expenses = append(expenses, e)
	}
	return expenses, total, rows.Err()
}
