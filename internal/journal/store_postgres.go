package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"eet/pkg/platform/sentinel"
	"eet/pkg/platform/tx"
)

const schema = `
CREATE TABLE IF NOT EXISTS eet_submissions (
	id             BIGSERIAL PRIMARY KEY,
	message_uuid   TEXT        NOT NULL,
	receipt_serial TEXT        NOT NULL,
	tax_id         TEXT        NOT NULL,
	bkp            TEXT        NOT NULL,
	pkp            TEXT        NOT NULL,
	fik            TEXT        NOT NULL DEFAULT '',
	status         TEXT        NOT NULL,
	error_number   INTEGER     NOT NULL DEFAULT 0,
	message        TEXT        NOT NULL DEFAULT '',
	verification   BOOLEAN     NOT NULL DEFAULT FALSE,
	attempted_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS eet_submissions_uuid_idx ON eet_submissions (message_uuid, attempted_at);
`

// PostgresStore persists entries in PostgreSQL. Operations join a
// transaction carried in the context by tx.WithTx.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the journal table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create journal schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Record(ctx context.Context, e Entry) error {
	_, err := tx.Use(ctx, s.db).ExecContext(ctx, `
		INSERT INTO eet_submissions (
			message_uuid, receipt_serial, tax_id, bkp, pkp, fik,
			status, error_number, message, verification, attempted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.MessageUUID, e.ReceiptSerial, e.TaxID, e.BKP, e.PKP, e.FiscalCode,
		string(e.Status), e.ErrorNumber, e.Message, e.Verification, e.AttemptedAt,
	)
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, messageUUID string) ([]Entry, error) {
	rows, err := tx.Use(ctx, s.db).QueryContext(ctx, `
		SELECT message_uuid, receipt_serial, tax_id, bkp, pkp, fik,
		       status, error_number, message, verification, attempted_at
		FROM eet_submissions
		WHERE message_uuid = $1
		ORDER BY attempted_at, id`, messageUUID)
	if err != nil {
		return nil, fmt.Errorf("find submissions: %w", err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("find submissions: %w", err)
	}
	if len(entries) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return entries, nil
}

// ListByStatus returns the latest attempt of every receipt whose latest
// attempt has one of the statuses.
func (s *PostgresStore) ListByStatus(ctx context.Context, statuses ...Status) ([]Entry, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	rows, err := tx.Use(ctx, s.db).QueryContext(ctx, `
		SELECT message_uuid, receipt_serial, tax_id, bkp, pkp, fik,
		       status, error_number, message, verification, attempted_at
		FROM (
			SELECT DISTINCT ON (message_uuid) *
			FROM eet_submissions
			ORDER BY message_uuid, attempted_at DESC, id DESC
		) latest
		WHERE status = ANY($1)
		ORDER BY attempted_at`, pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return entries, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var status string
		if err := rows.Scan(
			&e.MessageUUID, &e.ReceiptSerial, &e.TaxID, &e.BKP, &e.PKP, &e.FiscalCode,
			&status, &e.ErrorNumber, &e.Message, &e.Verification, &e.AttemptedAt,
		); err != nil {
			return nil, err
		}
		e.Status = Status(status)
		out = append(out, e)
	}
	return out, rows.Err()
}
