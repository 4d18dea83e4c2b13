package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"screener/internal/screening/models"
	"screener/pkg/requestcontext"
)

// PostgresSchema is the table PostgresStore expects. The unique constraint on
// the identity triple is what the upsert conflicts on.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS person (
	name          TEXT        NOT NULL,
	dob           DATE        NOT NULL,
	country       TEXT        NOT NULL,
	name_match    BOOLEAN     NOT NULL DEFAULT FALSE,
	dob_match     BOOLEAN     NOT NULL DEFAULT FALSE,
	country_match BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (name, dob, country)
)`

const upsertPersonSQL = `
INSERT INTO person (name, dob, country, name_match, dob_match, country_match, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
ON CONFLICT (name, dob, country) DO UPDATE SET
	name_match    = EXCLUDED.name_match,
	dob_match     = EXCLUDED.dob_match,
	country_match = EXCLUDED.country_match,
	updated_at    = EXCLUDED.updated_at`

const findPersonSQL = `
SELECT name, dob, country, name_match, dob_match, country_match, created_at, updated_at
FROM person
WHERE name = $1 AND dob = $2 AND country = $3`

// PostgresStore persists person records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// BulkUpsert runs one prepared upsert per record. Records are independent: a
// failing record is reported and the rest still run.
func (s *PostgresStore) BulkUpsert(ctx context.Context, records []models.ScreenedPerson) error {
	if len(records) == 0 {
		return nil
	}
	now := requestcontext.Now(ctx).UTC()

	stmt, err := s.db.PrepareContext(ctx, upsertPersonSQL)
	if err != nil {
		return &PersistenceError{Attempted: len(records), Err: fmt.Errorf("prepare person upsert: %w", err)}
	}
	defer stmt.Close()

	pe := &PersistenceError{Attempted: len(records)}
	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			r.Identity.Name,
			r.Identity.DOB.Time(),
			r.Identity.Country,
			r.Verdict.NameMatch,
			r.Verdict.DOBMatch,
			r.Verdict.CountryMatch,
			now,
		)
		if err != nil {
			pe.Failures = append(pe.Failures, RecordFailure{Key: r.Key, Err: err})
		}
	}
	if len(pe.Failures) > 0 {
		return pe
	}
	return nil
}

// Find returns the stored record for an identity.
func (s *PostgresStore) Find(ctx context.Context, id models.Identity) (*models.StoredPersonRecord, error) {
	var (
		record models.StoredPersonRecord
		dob    sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, findPersonSQL, id.Name, id.DOB.Time(), id.Country).Scan(
		&record.Name,
		&dob,
		&record.Country,
		&record.NameMatch,
		&record.DOBMatch,
		&record.CountryMatch,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find person record: %w", err)
	}
	if dob.Valid {
		record.DOB = models.NewDate(dob.Time.Year(), dob.Time.Month(), dob.Time.Day())
	}
	return &record, nil
}

// Health pings the database.
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
