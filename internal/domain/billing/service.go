package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinicore/clinicore/internal/domain/messaging"
)

var validMethods = map[string]bool{
	MethodCash:         true,
	MethodCard:         true,
	MethodBankTransfer: true,
	MethodOther:        true,
}

// receiptSender dispatches receipt messages, implemented by the messaging
// service.
type receiptSender interface {
	Send(ctx context.Context, in messaging.SendInput) (*messaging.Message, error)
}

// treatmentLedger keeps treatment paid totals in step with payments,
// implemented by the treatment repository.
type treatmentLedger interface {
	AddAmountPaid(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error
	SumCharges(ctx context.Context, patientID uuid.UUID) (decimal.Decimal, error)
}

type Service struct {
	payments   PaymentRepository
	expenses   ExpenseRepository
	treatments treatmentLedger
	messages   receiptSender
}

func NewService(payments PaymentRepository, expenses ExpenseRepository, treatments treatmentLedger, messages receiptSender) *Service {
	return &Service{payments: payments, expenses: expenses, treatments: treatments, messages: messages}
}

// -- Payments --

func (s *Service) CreatePayment(ctx context.Context, p *Payment) error {
	if err := validatePayment(p); err != nil {
		return err
	}
	if p.PaidAt.IsZero() {
		p.PaidAt = time.Now()
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return err
	}
	if p.TreatmentID != nil {
		return s.treatments.AddAmountPaid(ctx, *p.TreatmentID, p.Amount)
	}
	return nil
}

func (s *Service) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return s.payments.GetByID(ctx, id)
}

func (s *Service) UpdatePayment(ctx context.Context, p *Payment) error {
	if err := validatePayment(p); err != nil {
		return err
	}
	old, err := s.payments.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if p.PaidAt.IsZero() {
		p.PaidAt = old.PaidAt
	}
	if err := s.payments.Update(ctx, p); err != nil {
		return err
	}
	// Rebalance treatment paid totals when the amount or target moved.
	if old.TreatmentID != nil {
		if err := s.treatments.AddAmountPaid(ctx, *old.TreatmentID, old.Amount.Neg()); err != nil {
			return err
		}
	}
	if p.TreatmentID != nil {
		return s.treatments.AddAmountPaid(ctx, *p.TreatmentID, p.Amount)
	}
	return nil
}

func (s *Service) DeletePayment(ctx context.Context, id uuid.UUID) error {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.payments.Delete(ctx, id); err != nil {
		return err
	}
	if p.TreatmentID != nil {
		return s.treatments.AddAmountPaid(ctx, *p.TreatmentID, p.Amount.Neg())
	}
	return nil
}

func (s *Service) ListPaymentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Payment, int, error) {
	return s.payments.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListPaymentsRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*Payment, int, error) {
	if !to.After(from) {
		return nil, 0, fmt.Errorf("to must be after from")
	}
	return s.payments.ListRange(ctx, from, to, limit, offset)
}

// SendReceipt renders and dispatches a payment receipt message and links it
// to the payment.
func (s *Service) SendReceipt(ctx context.Context, paymentID uuid.UUID) (*messaging.Message, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	m, err := s.messages.Send(ctx, messaging.SendInput{
		PatientID: p.PatientID,
		Kind:      messaging.KindPaymentReceipt,
		Data: map[string]string{
			"amount": p.Amount.StringFixed(2),
			"date":   p.PaidAt.Format("02/01/2006"),
		},
		Metadata: map[string]string{"payment_id": p.ID.String()},
	})
	if err != nil {
		return nil, err
	}
	if err := s.payments.SetReceiptMessage(ctx, p.ID, m.ID); err != nil {
		return nil, err
	}
	return m, nil
}

// Balance totals a patient's charges against their payments.
func (s *Service) Balance(ctx context.Context, patientID uuid.UUID) (*PatientBalance, error) {
	charged, err := s.treatments.SumCharges(ctx, patientID)
	if err != nil {
		return nil, err
	}
	paid, err := s.payments.SumByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return &PatientBalance{
		PatientID:    patientID,
		TotalCharged: charged,
		TotalPaid:    paid,
		Balance:      charged.Sub(paid),
	}, nil
}

func validatePayment(p *Payment) error {
	if p.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if !p.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	if !validMethods[p.Method] {
		return fmt.Errorf("invalid payment method: %s", p.Method)
	}
	return nil
}

// -- Expenses --

func (s *Service) CreateExpense(ctx context.Context, e *Expense) error {
	if err := validateExpense(e); err != nil {
		return err
	}
	if e.IncurredAt.IsZero() {
		e.IncurredAt = time.Now()
	}
	return s.expenses.Create(ctx, e)
}

func (s *Service) GetExpense(ctx context.Context, id uuid.UUID) (*Expense, error) {
	return s.expenses.GetByID(ctx, id)
}

func (s *Service) UpdateExpense(ctx context.Context, e *Expense) error {
	if err := validateExpense(e); err != nil {
		return err
	}
	old, err := s.expenses.GetByID(ctx, e.ID)
	if err != nil {
		return err
	}
	if e.IncurredAt.IsZero() {
		e.IncurredAt = old.IncurredAt
	}
	return s.expenses.Update(ctx, e)
}

func (s *Service) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	return s.expenses.Delete(ctx, id)
}

func (s *Service) ListExpenses(ctx context.Context, from, to time.Time, limit, offset int) ([]*Expense, int, error) {
	if !to.After(from) {
		return nil, 0, fmt.Errorf("to must be after from")
	}
	return s.expenses.ListRange(ctx, from, to, limit, offset)
}

func validateExpense(e *Expense) error {
	if e.Category == "" {
		return fmt.Errorf("category is required")
	}
	if !e.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	return nil
}
