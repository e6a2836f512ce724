package treatment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CategoryRepository interface {
	Create(ctx context.Context, c *TreatmentCategory) error
	GetByID(ctx context.Context, id uuid.UUID) (*TreatmentCategory, error)
	Update(ctx context.Context, c *TreatmentCategory) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*TreatmentCategory, error)
}

type TypeRepository interface {
	Create(ctx context.Context, t *TreatmentType) error
	GetByID(ctx context.Context, id uuid.UUID) (*TreatmentType, error)
	Update(ctx context.Context, t *TreatmentType) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, categoryID *uuid.UUID) ([]*TreatmentType, error)
	// ReplaceVariants swaps the full variant set of a type.
	ReplaceVariants(ctx context.Context, typeID uuid.UUID, variants []PriceVariant) error
	GetVariants(ctx context.Context, typeID uuid.UUID) ([]PriceVariant, error)
}

type TreatmentRepository interface {
	Create(ctx context.Context, t *Treatment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Treatment, error)
	Update(ctx context.Context, t *Treatment) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Treatment, int, error)
	List(ctx context.Context, status string, limit, offset int) ([]*Treatment, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	// AddAmountPaid increments a treatment's running paid total.
	AddAmountPaid(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error
	// SumCharges totals price minus discount across a patient's
	// non-cancelled treatments.
	SumCharges(ctx context.Context, patientID uuid.UUID) (decimal.Decimal, error)
}
