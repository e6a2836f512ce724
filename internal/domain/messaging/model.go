package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Message kinds.
const (
	KindMedicalHistory      = "medical_history"
	KindPaymentReceipt      = "payment_receipt"
	KindAppointmentReminder = "appointment_reminder"
	KindFollowUp            = "follow_up"
	KindPaymentOverdue      = "payment_overdue"
)

// Message statuses. A message is created pending, transitions to sent or
// failed on a send attempt, and never returns to pending. Failed is
// resendable indefinitely on the same row.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Message is an outbound patient notification.
type Message struct {
	ID        uuid.UUID         `db:"id" json:"id"`
	PatientID uuid.UUID         `db:"patient_id" json:"patient_id"`
	Kind      string            `db:"kind" json:"kind"`
	Recipient string            `db:"recipient" json:"recipient"`
	Content   string            `db:"content" json:"content"`
	Status    string            `db:"status" json:"status"`
	SentAt    *time.Time        `db:"sent_at" json:"sent_at,omitempty"`
	Error     *string           `db:"error" json:"error,omitempty"`
	Metadata  map[string]string `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt time.Time         `db:"updated_at" json:"updated_at"`
}

// ValidKind reports whether k is a known message kind.
func ValidKind(k string) bool {
	switch k {
	case KindMedicalHistory, KindPaymentReceipt, KindAppointmentReminder, KindFollowUp, KindPaymentOverdue:
		return true
	}
	return false
}
