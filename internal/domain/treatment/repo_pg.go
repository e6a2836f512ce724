package treatment

import (
	"context"
	"fmt"

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

// =========== Category Repository ===========

type categoryRepoPG struct{ pool *pgxpool.Pool }

func NewCategoryRepoPG(pool *pgxpool.Pool) CategoryRepository { return &categoryRepoPG{pool: pool} }

func (r *categoryRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const categoryCols = `id, name, position, created_at, updated_at`

func (r *categoryRepoPG) scanCategory(row pgx.Row) (*TreatmentCategory, error) {
	var c TreatmentCategory
	err := row.Scan(&c.ID, &c.Name, &c.Position, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *categoryRepoPG) Create(ctx context.Context, c *TreatmentCategory) error {
	c.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO treatment_categories (id, name, position)
		VALUES ($1,$2,$3)`,
		c.ID, c.Name, c.Position)
	return err
}

func (r *categoryRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*TreatmentCategory, error) {
	return r.scanCategory(r.conn(ctx).QueryRow(ctx, `SELECT `+categoryCols+` FROM treatment_categories WHERE id = $1`, id))
}

func (r *categoryRepoPG) Update(ctx context.Context, c *TreatmentCategory) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE treatment_categories SET name=$2, position=$3, updated_at=NOW()
		WHERE id = $1`,
		c.ID, c.Name, c.Position)
	return err
}

func (r *categoryRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM treatment_categories WHERE id = $1`, id)
	return err
}

func (r *categoryRepoPG) List(ctx context.Context) ([]*TreatmentCategory, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+categoryCols+` FROM treatment_categories ORDER BY position, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*TreatmentCategory
	for rows.Next() {
		c, err := r.scanCategory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, nil
}

// =========== Type Repository ===========

type typeRepoPG struct{ pool *pgxpool.Pool }

func NewTypeRepoPG(pool *pgxpool.Pool) TypeRepository { return &typeRepoPG{pool: pool} }

func (r *typeRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const typeCols = `id, category_id, name, duration_minutes, color_tag, created_at, updated_at`

func (r *typeRepoPG) scanType(row pgx.Row) (*TreatmentType, error) {
	var t TreatmentType
	err := row.Scan(&t.ID, &t.CategoryID, &t.Name, &t.DurationMinutes, &t.ColorTag, &t.CreatedAt, &t.UpdatedAt)
	return &t, err
}

func (r *typeRepoPG) Create(ctx context.Context, t *TreatmentType) error {
	t.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO treatment_types (id, category_id, name, duration_minutes, color_tag)
		VALUES ($1,$2,$3,$4,$5)`,
		t.ID, t.CategoryID, t.Name, t.DurationMinutes, t.ColorTag)
	return err
}

func (r *typeRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*TreatmentType, error) {
	t, err := r.scanType(r.conn(ctx).QueryRow(ctx, `SELECT `+typeCols+` FROM treatment_types WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	t.PriceVariants, err = r.GetVariants(ctx, t.ID)
	return t, err
}

func (r *typeRepoPG) Update(ctx context.Context, t *TreatmentType) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE treatment_types SET category_id=$2, name=$3, duration_minutes=$4, color_tag=$5, updated_at=NOW()
		WHERE id = $1`,
		t.ID, t.CategoryID, t.Name, t.DurationMinutes, t.ColorTag)
	return err
}

func (r *typeRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM treatment_types WHERE id = $1`, id)
	return err
}

func (r *typeRepoPG) List(ctx context.Context, categoryID *uuid.UUID) ([]*TreatmentType, error) {
	query := `SELECT ` + typeCols + ` FROM treatment_types`
	args := []interface{}{}
	if categoryID != nil {
		query += ` WHERE category_id = $1`
		args = append(args, *categoryID)
	}
	query += ` ORDER BY name`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*TreatmentType
	for rows.Next() {
		t, err := r.scanType(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	for _, t := range items {
		if t.PriceVariants, err = r.GetVariants(ctx, t.ID); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (r *typeRepoPG) ReplaceVariants(ctx context.Context, typeID uuid.UUID, variants []PriceVariant) error {
	conn := r.conn(ctx)
	if _, err := conn.Exec(ctx, `DELETE FROM price_variants WHERE treatment_type_id = $1`, typeID); err != nil {
		return err
	}
	for i := range variants {
		v := &variants[i]
		v.ID = uuid.New()
		v.TreatmentTypeID = typeID
		v.Position = i
		if _, err := conn.Exec(ctx, `
			INSERT INTO price_variants (id, treatment_type_id, tooth_numbers, price, is_default, position)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			v.ID, v.TreatmentTypeID, v.ToothNumbers, v.Price, v.IsDefault, v.Position); err != nil {
			return err
		}
	}
	return nil
}

func (r *typeRepoPG) GetVariants(ctx context.Context, typeID uuid.UUID) ([]PriceVariant, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, treatment_type_id, tooth_numbers, price, is_default, position
		FROM price_variants WHERE treatment_type_id = $1 ORDER BY position`, typeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PriceVariant
	for rows.Next() {
		var v PriceVariant
		if err := rows.Scan(&v.ID, &v.TreatmentTypeID, &v.ToothNumbers, &v.Price, &v.IsDefault, &v.Position); err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}

// =========== Treatment Repository ===========

type treatmentRepoPG struct{ pool *pgxpool.Pool }

func NewTreatmentRepoPG(pool *pgxpool.Pool) TreatmentRepository { return &treatmentRepoPG{pool: pool} }

func (r *treatmentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const treatmentCols = `id, patient_id, treatment_type_id, appointment_id, tooth_numbers,
	total_price, discount, amount_paid, status, performed_at, created_at, updated_at`

func (r *treatmentRepoPG) scanTreatment(row pgx.Row) (*Treatment, error) {
	var t Treatment
	err := row.Scan(&t.ID, &t.PatientID, &t.TreatmentTypeID, &t.AppointmentID, &t.ToothNumbers,
		&t.TotalPrice, &t.Discount, &t.AmountPaid, &t.Status, &t.PerformedAt, &t.CreatedAt, &t.UpdatedAt)
	return &t, err
}

func (r *treatmentRepoPG) Create(ctx context.Context, t *Treatment) error {
	t.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO treatments (id, patient_id, treatment_type_id, appointment_id, tooth_numbers,
			total_price, discount, amount_paid, status, performed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		t.ID, t.PatientID, t.TreatmentTypeID, t.AppointmentID, t.ToothNumbers,
		t.TotalPrice, t.Discount, t.AmountPaid, t.Status, t.PerformedAt)
	return err
}

func (r *treatmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Treatment, error) {
	return r.scanTreatment(r.conn(ctx).QueryRow(ctx, `SELECT `+treatmentCols+` FROM treatments WHERE id = $1`, id))
}

func (r *treatmentRepoPG) Update(ctx context.Context, t *Treatment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE treatments SET treatment_type_id=$2, appointment_id=$3, tooth_numbers=$4,
			total_price=$5, discount=$6, amount_paid=$7, status=$8, performed_at=$9, updated_at=NOW()
		WHERE id = $1`,
		t.ID, t.TreatmentTypeID, t.AppointmentID, t.ToothNumbers,
		t.TotalPrice, t.Discount, t.AmountPaid, t.Status, t.PerformedAt)
	return err
}

func (r *treatmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM treatments WHERE id = $1`, id)
	return err
}

func (r *treatmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Treatment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM treatments WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+treatmentCols+` FROM treatments WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Treatment
	for rows.Next() {
		t, err := r.scanTreatment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, nil
}

func (r *treatmentRepoPG) List(ctx context.Context, status string, limit, offset int) ([]*Treatment, int, error) {
	where := ``
	args := []interface{}{}
	if status != "" {
		where = ` WHERE status = $1`
		args = append(args, status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM treatments`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT `+treatmentCols+` FROM treatments`+where+
		` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, n+1, n+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Treatment
	for rows.Next() {
		t, err := r.scanTreatment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, nil
}

func (r *treatmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE treatments SET status=$2, updated_at=NOW() WHERE id = $1`, id, status)
	return err
}

func (r *treatmentRepoPG) AddAmountPaid(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE treatments SET amount_paid = amount_paid + $2, updated_at=NOW() WHERE id = $1`, id, delta)
	return err
}

func (r *treatmentRepoPG) SumCharges(ctx context.Context, patientID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(total_price - discount), 0) FROM treatments
		WHERE patient_id = $1 AND status <> $2`, patientID, StatusCancelled).Scan(&sum)
	return sum, err
}
