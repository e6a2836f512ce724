package treatment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TreatmentCategory groups treatment types for catalog display.
type TreatmentCategory struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Position  int       `db:"position" json:"position"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TreatmentType is a catalog entry with per-tooth price variants.
type TreatmentType struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	CategoryID      uuid.UUID      `db:"category_id" json:"category_id"`
	Name            string         `db:"name" json:"name"`
	DurationMinutes int            `db:"duration_minutes" json:"duration_minutes"`
	ColorTag        *string        `db:"color_tag" json:"color_tag,omitempty"`
	PriceVariants   []PriceVariant `db:"-" json:"price_variants"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// PriceVariant prices a treatment type for a set of teeth. A variant is
// either scoped to a non-empty tooth set or flagged default with an empty
// set. At most one variant per type may be default.
type PriceVariant struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	TreatmentTypeID uuid.UUID       `db:"treatment_type_id" json:"treatment_type_id"`
	ToothNumbers    []int           `db:"tooth_numbers" json:"tooth_numbers"`
	Price           decimal.Decimal `db:"price" json:"price"`
	IsDefault       bool            `db:"is_default" json:"is_default"`
	Position        int             `db:"position" json:"position"`
}

// Treatment statuses.
const (
	StatusPlanned    = "planned"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Treatment is a billable procedure applied to one or more teeth. Its
// pricing lifecycle is independent of the appointment that prompted it.
type Treatment struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	PatientID       uuid.UUID       `db:"patient_id" json:"patient_id"`
	TreatmentTypeID uuid.UUID       `db:"treatment_type_id" json:"treatment_type_id"`
	AppointmentID   *uuid.UUID      `db:"appointment_id" json:"appointment_id,omitempty"`
	ToothNumbers    []int           `db:"tooth_numbers" json:"tooth_numbers"`
	TotalPrice      decimal.Decimal `db:"total_price" json:"total_price"`
	Discount        decimal.Decimal `db:"discount" json:"discount"`
	AmountPaid      decimal.Decimal `db:"amount_paid" json:"amount_paid"`
	Status          string          `db:"status" json:"status"`
	PerformedAt     *time.Time      `db:"performed_at" json:"performed_at,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`

	// ToothDisplay is the compact human rendering of ToothNumbers.
	ToothDisplay string `db:"-" json:"tooth_display"`
}

// Balance returns total_price - discount - amount_paid.
func (t *Treatment) Balance() decimal.Decimal {
	return t.TotalPrice.Sub(t.Discount).Sub(t.AmountPaid)
}
