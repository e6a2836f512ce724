package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	Update(ctx context.Context, p *Payment) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Payment, int, error)
	ListRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*Payment, int, error)
	SetReceiptMessage(ctx context.Context, id, messageID uuid.UUID) error
	SumByPatient(ctx context.Context, patientID uuid.UUID) (decimal.Decimal, error)
}

type ExpenseRepository interface {
	Create(ctx context.Context, e *Expense) error
	GetByID(ctx context.Context, id uuid.UUID) (*Expense, error)
	Update(ctx context.Context, e *Expense) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*Expense, int, error)
}
