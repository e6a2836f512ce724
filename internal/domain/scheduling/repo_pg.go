package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const apptCols = `id, patient_id, dentist_id, treatment_type_id, starts_at, duration_minutes,
	status, notes, reminder_sent_at, created_at, updated_at`

func (r *repoPG) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DentistID, &a.TreatmentTypeID, &a.StartsAt, &a.DurationMinutes,
		&a.Status, &a.Notes, &a.ReminderSentAt, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointments (id, patient_id, dentist_id, treatment_type_id, starts_at,
			duration_minutes, status, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.PatientID, a.DentistID, a.TreatmentTypeID, a.StartsAt,
		a.DurationMinutes, a.Status, a.Notes)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET patient_id=$2, dentist_id=$3, treatment_type_id=$4, starts_at=$5,
			duration_minutes=$6, status=$7, notes=$8, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.PatientID, a.DentistID, a.TreatmentTypeID, a.StartsAt,
		a.DurationMinutes, a.Status, a.Notes)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	return err
}

func (r *repoPG) ListRange(ctx context.Context, from, to time.Time, dentistID *uuid.UUID) ([]*Appointment, error) {
	query := `SELECT ` + apptCols + ` FROM appointments WHERE starts_at >= $1 AND starts_at < $2`
	args := []interface{}{from, to}
	if dentistID != nil {
		query += ` AND dentist_id = $3`
		args = append(args, *dentistID)
	}
	query += ` ORDER BY starts_at`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+apptCols+` FROM appointments WHERE patient_id = $1 ORDER BY starts_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE appointments SET status=$2, updated_at=NOW() WHERE id = $1`, id, status)
	return err
}

func (r *repoPG) ListDueForReminder(ctx context.Context, now time.Time, lead time.Duration) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointments
		WHERE status = $1 AND reminder_sent_at IS NULL AND starts_at >= $2 AND starts_at < $3
		ORDER BY starts_at`, StatusScheduled, now, now.Add(lead))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, nil
}

func (r *repoPG) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE appointments SET reminder_sent_at=$2, updated_at=NOW() WHERE id = $1`, id, at)
	return err
}
