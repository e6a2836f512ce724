package treatment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinicore/clinicore/internal/platform/cache"
	"github.com/clinicore/clinicore/internal/platform/db"
)

var validStatuses = map[string]bool{
	StatusPlanned: true, StatusInProgress: true, StatusCompleted: true, StatusCancelled: true,
}

// Allowed status transitions. Completed and cancelled are terminal.
var statusTransitions = map[string][]string{
	StatusPlanned:    {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

const typesCacheTTL = 5 * time.Minute

type Service struct {
	categories CategoryRepository
	types      TypeRepository
	treatments TreatmentRepository
	cache      cache.Cache
}

// NewService constructs a Service. The cache is optional; pass nil to
// read the catalog straight from the database.
func NewService(cat CategoryRepository, typ TypeRepository, tr TreatmentRepository, c cache.Cache) *Service {
	return &Service{categories: cat, types: typ, treatments: tr, cache: c}
}

// -- Categories --

func (s *Service) CreateCategory(ctx context.Context, c *TreatmentCategory) error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.categories.Create(ctx, c)
}

func (s *Service) GetCategory(ctx context.Context, id uuid.UUID) (*TreatmentCategory, error) {
	return s.categories.GetByID(ctx, id)
}

func (s *Service) UpdateCategory(ctx context.Context, c *TreatmentCategory) error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.categories.Update(ctx, c)
}

func (s *Service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return s.categories.Delete(ctx, id)
}

func (s *Service) ListCategories(ctx context.Context) ([]*TreatmentCategory, error) {
	return s.categories.List(ctx)
}

// -- Types and variants --

func validateVariants(variants []PriceVariant) error {
	defaults := 0
	for i := range variants {
		v := &variants[i]
		if v.Price.IsNegative() {
			return fmt.Errorf("variant price may not be negative")
		}
		if v.IsDefault {
			defaults++
			if len(v.ToothNumbers) != 0 {
				return fmt.Errorf("default variant must have an empty tooth set")
			}
			continue
		}
		if len(v.ToothNumbers) == 0 {
			return fmt.Errorf("non-default variant must list at least one tooth")
		}
		for _, t := range v.ToothNumbers {
			if !ValidFDINumber(t) {
				return fmt.Errorf("invalid FDI tooth number: %d", t)
			}
		}
	}
	if defaults > 1 {
		return fmt.Errorf("at most one variant may be default")
	}
	return nil
}

func (s *Service) CreateType(ctx context.Context, t *TreatmentType) error {
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	if t.CategoryID == uuid.Nil {
		return fmt.Errorf("category_id is required")
	}
	if err := validateVariants(t.PriceVariants); err != nil {
		return err
	}
	if err := s.types.Create(ctx, t); err != nil {
		return err
	}
	if err := s.types.ReplaceVariants(ctx, t.ID, t.PriceVariants); err != nil {
		return err
	}
	s.invalidateTypesCache(ctx)
	return nil
}

func (s *Service) GetType(ctx context.Context, id uuid.UUID) (*TreatmentType, error) {
	return s.types.GetByID(ctx, id)
}

func (s *Service) UpdateType(ctx context.Context, t *TreatmentType) error {
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	if err := validateVariants(t.PriceVariants); err != nil {
		return err
	}
	if err := s.types.Update(ctx, t); err != nil {
		return err
	}
	if err := s.types.ReplaceVariants(ctx, t.ID, t.PriceVariants); err != nil {
		return err
	}
	s.invalidateTypesCache(ctx)
	return nil
}

func (s *Service) DeleteType(ctx context.Context, id uuid.UUID) error {
	if err := s.types.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateTypesCache(ctx)
	return nil
}

// ListTypes returns the full catalog, served from the cache when one is
// configured and no category filter is applied.
func (s *Service) ListTypes(ctx context.Context, categoryID *uuid.UUID) ([]*TreatmentType, error) {
	if s.cache == nil || categoryID != nil {
		return s.types.List(ctx, categoryID)
	}

	key := s.typesCacheKey(ctx)
	if data, err := s.cache.Get(ctx, key); err == nil {
		var items []*TreatmentType
		if err := json.Unmarshal(data, &items); err == nil {
			return items, nil
		}
	}

	items, err := s.types.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(items); err == nil {
		_ = s.cache.Set(ctx, key, data, typesCacheTTL)
	}
	return items, nil
}

func (s *Service) typesCacheKey(ctx context.Context) string {
	return cache.OrgKey(db.OrgFromContext(ctx), "treatment_types")
}

func (s *Service) invalidateTypesCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, s.typesCacheKey(ctx))
}

// ResolvePrice resolves the price of one tooth for a treatment type.
func (s *Service) ResolvePrice(ctx context.Context, typeID uuid.UUID, tooth int) (decimal.Decimal, error) {
	if !ValidFDINumber(tooth) {
		return decimal.Zero, fmt.Errorf("invalid FDI tooth number: %d", tooth)
	}
	variants, err := s.types.GetVariants(ctx, typeID)
	if err != nil {
		return decimal.Zero, err
	}
	return PriceForTooth(variants, tooth)
}

// QuoteType computes a quote for a tooth selection against a type's
// variants without persisting anything.
func (s *Service) QuoteType(ctx context.Context, typeID uuid.UUID, teeth []int, discount DiscountInput) (*Quote, error) {
	for _, t := range teeth {
		if !ValidFDINumber(t) {
			return nil, fmt.Errorf("invalid FDI tooth number: %d", t)
		}
	}
	variants, err := s.types.GetVariants(ctx, typeID)
	if err != nil {
		return nil, err
	}
	return QuoteFor(variants, teeth, discount)
}

// -- Treatments --

// CreateTreatment prices the tooth selection against the type's variants
// and stores the result. The stored total is always the computed one.
func (s *Service) CreateTreatment(ctx context.Context, t *Treatment, discount DiscountInput) error {
	if t.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if t.TreatmentTypeID == uuid.Nil {
		return fmt.Errorf("treatment_type_id is required")
	}
	if t.Status == "" {
		t.Status = StatusPlanned
	}
	if !validStatuses[t.Status] {
		return fmt.Errorf("invalid treatment status: %s", t.Status)
	}

	q, err := s.QuoteType(ctx, t.TreatmentTypeID, t.ToothNumbers, discount)
	if err != nil {
		return err
	}
	t.ToothNumbers = q.ToothNumbers
	t.TotalPrice = q.TotalPrice
	t.Discount = q.Discount

	if err := s.treatments.Create(ctx, t); err != nil {
		return err
	}
	t.ToothDisplay = q.ToothDisplay
	return nil
}

func (s *Service) GetTreatment(ctx context.Context, id uuid.UUID) (*Treatment, error) {
	t, err := s.treatments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t.ToothDisplay = FormatToothNumbers(t.ToothNumbers)
	return t, nil
}

// UpdateTreatment reprices when the tooth selection changed.
func (s *Service) UpdateTreatment(ctx context.Context, t *Treatment, discount DiscountInput) error {
	if !validStatuses[t.Status] {
		return fmt.Errorf("invalid treatment status: %s", t.Status)
	}
	q, err := s.QuoteType(ctx, t.TreatmentTypeID, t.ToothNumbers, discount)
	if err != nil {
		return err
	}
	t.ToothNumbers = q.ToothNumbers
	t.TotalPrice = q.TotalPrice
	t.Discount = q.Discount

	if err := s.treatments.Update(ctx, t); err != nil {
		return err
	}
	t.ToothDisplay = q.ToothDisplay
	return nil
}

func (s *Service) DeleteTreatment(ctx context.Context, id uuid.UUID) error {
	return s.treatments.Delete(ctx, id)
}

func (s *Service) ListTreatmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Treatment, int, error) {
	items, total, err := s.treatments.ListByPatient(ctx, patientID, limit, offset)
	for _, t := range items {
		t.ToothDisplay = FormatToothNumbers(t.ToothNumbers)
	}
	return items, total, err
}

func (s *Service) ListTreatments(ctx context.Context, status string, limit, offset int) ([]*Treatment, int, error) {
	if status != "" && !validStatuses[status] {
		return nil, 0, fmt.Errorf("invalid treatment status: %s", status)
	}
	items, total, err := s.treatments.List(ctx, status, limit, offset)
	for _, t := range items {
		t.ToothDisplay = FormatToothNumbers(t.ToothNumbers)
	}
	return items, total, err
}

// ChangeStatus applies a status transition, rejecting moves out of the
// terminal states.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !validStatuses[status] {
		return fmt.Errorf("invalid treatment status: %s", status)
	}
	t, err := s.treatments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if t.Status == status {
		return nil
	}
	for _, allowed := range statusTransitions[t.Status] {
		if allowed == status {
			return s.treatments.UpdateStatus(ctx, id, status)
		}
	}
	return fmt.Errorf("cannot change treatment status from %s to %s", t.Status, status)
}
