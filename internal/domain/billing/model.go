package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment methods.
const (
	MethodCash         = "cash"
	MethodCard         = "card"
	MethodBankTransfer = "bank_transfer"
	MethodOther        = "other"
)

// Payment records money received from a patient, optionally against a
// specific treatment.
type Payment struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	PatientID        uuid.UUID       `db:"patient_id" json:"patient_id"`
	TreatmentID      *uuid.UUID      `db:"treatment_id" json:"treatment_id,omitempty"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	Method           string          `db:"method" json:"method"`
	Note             *string         `db:"note" json:"note,omitempty"`
	PaidAt           time.Time       `db:"paid_at" json:"paid_at"`
	ReceiptMessageID *uuid.UUID      `db:"receipt_message_id" json:"receipt_message_id,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// Expense is an operational cost of the clinic.
type Expense struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Category    string          `db:"category" json:"category"`
	Description *string         `db:"description" json:"description,omitempty"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	IncurredAt  time.Time       `db:"incurred_at" json:"incurred_at"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// PatientBalance summarizes what a patient owes.
type PatientBalance struct {
	PatientID    uuid.UUID       `json:"patient_id"`
	TotalCharged decimal.Decimal `json:"total_charged"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	Balance      decimal.Decimal `json:"balance"`
}
