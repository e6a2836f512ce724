package messaging

import (
	"context"
	"errors"
	"fmt"

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

const messageCols = `id, patient_id, kind, recipient, content, status, sent_at, error, metadata,
	created_at, updated_at`

func (r *repoPG) scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.PatientID, &m.Kind, &m.Recipient, &m.Content, &m.Status, &m.SentAt,
		&m.Error, &m.Metadata, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *repoPG) Create(ctx context.Context, m *Message) error {
	m.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO messages (id, patient_id, kind, recipient, content, status, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		m.ID, m.PatientID, m.Kind, m.Recipient, m.Content, m.Status, m.Metadata)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	return r.scanMessage(r.conn(ctx).QueryRow(ctx, `SELECT `+messageCols+` FROM messages WHERE id = $1`, id))
}

func (r *repoPG) List(ctx context.Context, patientID *uuid.UUID, status string, limit, offset int) ([]*Message, int, error) {
	query := `SELECT ` + messageCols + ` FROM messages WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM messages WHERE 1=1`
	args := []interface{}{}
	if patientID != nil {
		args = append(args, *patientID)
		cond := fmt.Sprintf(` AND patient_id = $%d`, len(args))
		query += cond
		countQuery += cond
	}
	if status != "" {
		args = append(args, status)
		cond := fmt.Sprintf(` AND status = $%d`, len(args))
		query += cond
		countQuery += cond
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	messages := []*Message{}
	for rows.Next() {
		m, err := r.scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		messages = append(messages, m)
	}
	return messages, total, rows.Err()
}

func (r *repoPG) LatestFailedByMetadata(ctx context.Context, kind, key, value string) (*Message, error) {
	m, err := r.scanMessage(r.conn(ctx).QueryRow(ctx, `
		SELECT `+messageCols+` FROM messages
		WHERE kind = $1 AND status = $2 AND metadata->>$3 = $4
		ORDER BY created_at DESC LIMIT 1`,
		kind, StatusFailed, key, value))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *repoPG) MarkSent(ctx context.Context, id uuid.UUID, fromStatus string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE messages SET status=$2, sent_at=NOW(), error=NULL, updated_at=NOW()
		WHERE id = $1 AND status = $3`,
		id, StatusSent, fromStatus)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) MarkFailed(ctx context.Context, id uuid.UUID, sendErr string, fromStatus string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE messages SET status=$2, error=$3, updated_at=NOW()
		WHERE id = $1 AND status = $4`,
		id, StatusFailed, sendErr, fromStatus)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
