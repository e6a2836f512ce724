package treatment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinicore/clinicore/internal/platform/cache"
)

// -- Mock Repositories --

type mockCategoryRepo struct {
	items map[uuid.UUID]*TreatmentCategory
}

func newMockCategoryRepo() *mockCategoryRepo {
	return &mockCategoryRepo{items: make(map[uuid.UUID]*TreatmentCategory)}
}

func (m *mockCategoryRepo) Create(_ context.Context, c *TreatmentCategory) error {
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	c.UpdatedAt = time.Now()
	m.items[c.ID] = c
	return nil
}

func (m *mockCategoryRepo) GetByID(_ context.Context, id uuid.UUID) (*TreatmentCategory, error) {
	c, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return c, nil
}

func (m *mockCategoryRepo) Update(_ context.Context, c *TreatmentCategory) error {
	m.items[c.ID] = c
	return nil
}

func (m *mockCategoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *mockCategoryRepo) List(_ context.Context) ([]*TreatmentCategory, error) {
	var result []*TreatmentCategory
	for _, c := range m.items {
		result = append(result, c)
	}
	return result, nil
}

type mockTypeRepo struct {
	items    map[uuid.UUID]*TreatmentType
	variants map[uuid.UUID][]PriceVariant
	listed   int
}

func newMockTypeRepo() *mockTypeRepo {
	return &mockTypeRepo{
		items:    make(map[uuid.UUID]*TreatmentType),
		variants: make(map[uuid.UUID][]PriceVariant),
	}
}

func (m *mockTypeRepo) Create(_ context.Context, t *TreatmentType) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	t.UpdatedAt = time.Now()
	m.items[t.ID] = t
	return nil
}

func (m *mockTypeRepo) GetByID(_ context.Context, id uuid.UUID) (*TreatmentType, error) {
	t, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	t.PriceVariants = m.variants[id]
	return t, nil
}

func (m *mockTypeRepo) Update(_ context.Context, t *TreatmentType) error {
	m.items[t.ID] = t
	return nil
}

func (m *mockTypeRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	delete(m.variants, id)
	return nil
}

func (m *mockTypeRepo) List(_ context.Context, categoryID *uuid.UUID) ([]*TreatmentType, error) {
	m.listed++
	var result []*TreatmentType
	for _, t := range m.items {
		if categoryID != nil && t.CategoryID != *categoryID {
			continue
		}
		t.PriceVariants = m.variants[t.ID]
		result = append(result, t)
	}
	return result, nil
}

func (m *mockTypeRepo) ReplaceVariants(_ context.Context, typeID uuid.UUID, variants []PriceVariant) error {
	m.variants[typeID] = variants
	return nil
}

func (m *mockTypeRepo) GetVariants(_ context.Context, typeID uuid.UUID) ([]PriceVariant, error) {
	return m.variants[typeID], nil
}

type mockTreatmentRepo struct {
	items map[uuid.UUID]*Treatment
}

func newMockTreatmentRepo() *mockTreatmentRepo {
	return &mockTreatmentRepo{items: make(map[uuid.UUID]*Treatment)}
}

func (m *mockTreatmentRepo) Create(_ context.Context, t *Treatment) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	t.UpdatedAt = time.Now()
	m.items[t.ID] = t
	return nil
}

func (m *mockTreatmentRepo) GetByID(_ context.Context, id uuid.UUID) (*Treatment, error) {
	t, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return t, nil
}

func (m *mockTreatmentRepo) Update(_ context.Context, t *Treatment) error {
	m.items[t.ID] = t
	return nil
}

func (m *mockTreatmentRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *mockTreatmentRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Treatment, int, error) {
	var result []*Treatment
	for _, t := range m.items {
		if t.PatientID == patientID {
			result = append(result, t)
		}
	}
	return result, len(result), nil
}

func (m *mockTreatmentRepo) List(_ context.Context, status string, limit, offset int) ([]*Treatment, int, error) {
	var result []*Treatment
	for _, t := range m.items {
		if status == "" || t.Status == status {
			result = append(result, t)
		}
	}
	return result, len(result), nil
}

func (m *mockTreatmentRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	t, ok := m.items[id]
	if !ok {
		return fmt.Errorf("not found")
	}
	t.Status = status
	return nil
}

func (m *mockTreatmentRepo) AddAmountPaid(_ context.Context, id uuid.UUID, delta decimal.Decimal) error {
	t, ok := m.items[id]
	if !ok {
		return fmt.Errorf("not found")
	}
	t.AmountPaid = t.AmountPaid.Add(delta)
	return nil
}

func (m *mockTreatmentRepo) SumCharges(_ context.Context, patientID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, t := range m.items {
		if t.PatientID == patientID && t.Status != StatusCancelled {
			sum = sum.Add(t.TotalPrice.Sub(t.Discount))
		}
	}
	return sum, nil
}

func newTestService() (*Service, *mockTypeRepo, *mockTreatmentRepo) {
	types := newMockTypeRepo()
	treatments := newMockTreatmentRepo()
	svc := NewService(newMockCategoryRepo(), types, treatments, nil)
	return svc, types, treatments
}

func seedType(t *testing.T, svc *Service) *TreatmentType {
	t.Helper()
	ctx := context.Background()
	cat := &TreatmentCategory{Name: "Restorative"}
	if err := svc.CreateCategory(ctx, cat); err != nil {
		t.Fatal(err)
	}
	tt := &TreatmentType{
		CategoryID:      cat.ID,
		Name:            "Filling",
		DurationMinutes: 30,
		PriceVariants: []PriceVariant{
			{ToothNumbers: []int{11, 12, 13}, Price: dec("100")},
			{ToothNumbers: []int{21, 22, 23}, Price: dec("120")},
			{IsDefault: true, Price: dec("80")},
		},
	}
	if err := svc.CreateType(ctx, tt); err != nil {
		t.Fatal(err)
	}
	return tt
}

// -- Catalog validation --

func TestCreateTypeRejectsTwoDefaults(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	cat := &TreatmentCategory{Name: "Restorative"}
	if err := svc.CreateCategory(ctx, cat); err != nil {
		t.Fatal(err)
	}
	err := svc.CreateType(ctx, &TreatmentType{
		CategoryID: cat.ID,
		Name:       "Filling",
		PriceVariants: []PriceVariant{
			{IsDefault: true, Price: dec("80")},
			{IsDefault: true, Price: dec("90")},
		},
	})
	if err == nil {
		t.Error("expected error for two default variants")
	}
}

func TestCreateTypeRejectsDefaultWithTeeth(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	cat := &TreatmentCategory{Name: "Restorative"}
	if err := svc.CreateCategory(ctx, cat); err != nil {
		t.Fatal(err)
	}
	err := svc.CreateType(ctx, &TreatmentType{
		CategoryID: cat.ID,
		Name:       "Filling",
		PriceVariants: []PriceVariant{
			{IsDefault: true, ToothNumbers: []int{11}, Price: dec("80")},
		},
	})
	if err == nil {
		t.Error("expected error for default variant with a tooth set")
	}
}

func TestCreateTypeRejectsEmptyNonDefault(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	cat := &TreatmentCategory{Name: "Restorative"}
	if err := svc.CreateCategory(ctx, cat); err != nil {
		t.Fatal(err)
	}
	err := svc.CreateType(ctx, &TreatmentType{
		CategoryID: cat.ID,
		Name:       "Filling",
		PriceVariants: []PriceVariant{
			{ToothNumbers: nil, Price: dec("80")},
		},
	})
	if err == nil {
		t.Error("expected error for non-default variant without teeth")
	}
}

func TestCreateTypeRejectsInvalidTooth(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	cat := &TreatmentCategory{Name: "Restorative"}
	if err := svc.CreateCategory(ctx, cat); err != nil {
		t.Fatal(err)
	}
	err := svc.CreateType(ctx, &TreatmentType{
		CategoryID: cat.ID,
		Name:       "Filling",
		PriceVariants: []PriceVariant{
			{ToothNumbers: []int{99}, Price: dec("80")},
		},
	})
	if err == nil {
		t.Error("expected error for invalid FDI number")
	}
}

// -- Treatments --

func TestCreateTreatmentComputesTotal(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	tt := seedType(t, svc)

	tr := &Treatment{
		PatientID:       uuid.New(),
		TreatmentTypeID: tt.ID,
		ToothNumbers:    []int{11, 21, 31},
	}
	if err := svc.CreateTreatment(ctx, tr, DiscountInput{}); err != nil {
		t.Fatal(err)
	}
	if !tr.TotalPrice.Equal(dec("300")) {
		t.Errorf("total = %s, want 100+120+80 = 300", tr.TotalPrice)
	}
	if tr.Status != StatusPlanned {
		t.Errorf("status = %s, want planned", tr.Status)
	}
	if tr.ToothDisplay != "11, 21, 31" {
		t.Errorf("tooth display = %q", tr.ToothDisplay)
	}
}

func TestCreateTreatmentEmptyTeeth(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	tt := seedType(t, svc)

	err := svc.CreateTreatment(ctx, &Treatment{
		PatientID:       uuid.New(),
		TreatmentTypeID: tt.ID,
	}, DiscountInput{})
	if err != ErrNoTeethSelected {
		t.Errorf("err = %v, want ErrNoTeethSelected", err)
	}
}

func TestCreateTreatmentAppliesDiscount(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	tt := seedType(t, svc)

	pct := dec("10")
	tr := &Treatment{
		PatientID:       uuid.New(),
		TreatmentTypeID: tt.ID,
		ToothNumbers:    []int{11, 21, 31},
	}
	if err := svc.CreateTreatment(ctx, tr, DiscountInput{Percent: &pct}); err != nil {
		t.Fatal(err)
	}
	if !tr.Discount.Equal(dec("30.00")) {
		t.Errorf("discount = %s, want 30.00", tr.Discount)
	}
	if !tr.Balance().Equal(dec("270.00")) {
		t.Errorf("balance = %s, want 270.00", tr.Balance())
	}
}

func TestChangeStatusTransitions(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	tt := seedType(t, svc)

	tr := &Treatment{
		PatientID:       uuid.New(),
		TreatmentTypeID: tt.ID,
		ToothNumbers:    []int{11},
	}
	if err := svc.CreateTreatment(ctx, tr, DiscountInput{}); err != nil {
		t.Fatal(err)
	}

	if err := svc.ChangeStatus(ctx, tr.ID, StatusInProgress); err != nil {
		t.Fatalf("planned -> in_progress: %v", err)
	}
	if err := svc.ChangeStatus(ctx, tr.ID, StatusCompleted); err != nil {
		t.Fatalf("in_progress -> completed: %v", err)
	}
	if err := svc.ChangeStatus(ctx, tr.ID, StatusPlanned); err == nil {
		t.Error("completed is terminal, expected error")
	}
}

func TestChangeStatusInvalid(t *testing.T) {
	svc, _, _ := newTestService()
	if err := svc.ChangeStatus(context.Background(), uuid.New(), "done"); err == nil {
		t.Error("expected error for unknown status")
	}
}

// -- Catalog cache --

func TestListTypesUsesCache(t *testing.T) {
	types := newMockTypeRepo()
	svc := NewService(newMockCategoryRepo(), types, newMockTreatmentRepo(), cache.NewMemory())
	ctx := context.Background()

	seedType(t, svc)

	if _, err := svc.ListTypes(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ListTypes(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if types.listed != 1 {
		t.Errorf("repo List called %d times, want 1 (second read from cache)", types.listed)
	}
}

func TestCatalogWriteInvalidatesCache(t *testing.T) {
	types := newMockTypeRepo()
	svc := NewService(newMockCategoryRepo(), types, newMockTreatmentRepo(), cache.NewMemory())
	ctx := context.Background()

	tt := seedType(t, svc)
	if _, err := svc.ListTypes(ctx, nil); err != nil {
		t.Fatal(err)
	}

	tt.Name = "Composite Filling"
	if err := svc.UpdateType(ctx, tt); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ListTypes(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if types.listed != 2 {
		t.Errorf("repo List called %d times, want 2 (cache invalidated on write)", types.listed)
	}
}
