// Package postgres implements store.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrSnakeDoc/jobhub/internal/domain"
	"github.com/MrSnakeDoc/jobhub/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS job_listings (
	id               UUID PRIMARY KEY,
	source           TEXT NOT NULL,
	external_id      TEXT NOT NULL,
	title            TEXT NOT NULL DEFAULT '',
	company          TEXT NOT NULL DEFAULT '',
	location         TEXT NOT NULL DEFAULT '',
	remote_type      TEXT NOT NULL DEFAULT 'onsite',
	description      TEXT NOT NULL DEFAULT '',
	salary_min       DOUBLE PRECISION,
	salary_max       DOUBLE PRECISION,
	salary_currency  TEXT NOT NULL DEFAULT '',
	salary_period    TEXT NOT NULL DEFAULT '',
	employment_type  TEXT NOT NULL DEFAULT '',
	experience_level TEXT NOT NULL DEFAULT '',
	skills           TEXT[] NOT NULL DEFAULT '{}',
	requirements     TEXT[] NOT NULL DEFAULT '{}',
	benefits         TEXT[] NOT NULL DEFAULT '{}',
	posted_at        TIMESTAMPTZ,
	expires_at       TIMESTAMPTZ,
	application_url  TEXT NOT NULL DEFAULT '',
	metadata         JSONB,
	is_active        BOOLEAN NOT NULL DEFAULT TRUE,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT job_listings_natural_key UNIQUE (source, external_id)
);
CREATE INDEX IF NOT EXISTS job_listings_active_idx ON job_listings (is_active);
CREATE INDEX IF NOT EXISTS job_listings_posted_at_idx ON job_listings (posted_at DESC);
CREATE INDEX IF NOT EXISTS job_listings_expires_at_idx ON job_listings (expires_at) WHERE is_active;
`

const upsertSQL = `
INSERT INTO job_listings (
	id, source, external_id, title, company, location, remote_type, description,
	salary_min, salary_max, salary_currency, salary_period, employment_type, experience_level,
	skills, requirements, benefits, posted_at, expires_at, application_url, metadata,
	is_active, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21,
	TRUE, now(), now()
)
ON CONFLICT (source, external_id) DO UPDATE SET
	title            = EXCLUDED.title,
	company          = EXCLUDED.company,
	location         = EXCLUDED.location,
	remote_type      = EXCLUDED.remote_type,
	description      = EXCLUDED.description,
	salary_min       = EXCLUDED.salary_min,
	salary_max       = EXCLUDED.salary_max,
	salary_currency  = EXCLUDED.salary_currency,
	salary_period    = EXCLUDED.salary_period,
	employment_type  = EXCLUDED.employment_type,
	experience_level = EXCLUDED.experience_level,
	skills           = EXCLUDED.skills,
	requirements     = EXCLUDED.requirements,
	benefits         = EXCLUDED.benefits,
	posted_at        = EXCLUDED.posted_at,
	expires_at       = EXCLUDED.expires_at,
	application_url  = EXCLUDED.application_url,
	metadata         = EXCLUDED.metadata,
	is_active        = TRUE,
	updated_at       = now()
RETURNING id, created_at, updated_at, (xmax = 0) AS inserted
`

const selectColumns = `
	id, source, external_id, title, company, location, remote_type, description,
	salary_min, salary_max, salary_currency, salary_period, employment_type, experience_level,
	skills, requirements, benefits, posted_at, expires_at, application_url, metadata,
	is_active, created_at, updated_at`

type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// Open creates and verifies a pgx pool.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return &Store{pool: pool}, nil
}

// EnsureSchema creates the listings table and its indexes if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) FindByNaturalKey(ctx context.Context, source, externalID string) (*domain.NormalizedRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM job_listings WHERE source = $1 AND external_id = $2`,
		source, externalID,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %s:%s: %w", source, externalID, err)
	}
	return rec, nil
}

// Upsert is a single INSERT .. ON CONFLICT statement; the unique constraint
// on (source, external_id) serialises concurrent writers for one key.
func (s *Store) Upsert(ctx context.Context, rec *domain.NormalizedRecord) (store.UpsertOutcome, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	var metadata []byte
	if len(rec.Metadata) > 0 {
		b, err := json.Marshal(rec.Metadata)
		if err != nil {
			return 0, fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = b
	}

	var inserted bool
	err := s.pool.QueryRow(ctx, upsertSQL,
		rec.ID, rec.Source, rec.ExternalID, rec.Title, rec.Company, rec.Location,
		string(rec.RemoteType), rec.Description,
		rec.SalaryMin, rec.SalaryMax, rec.SalaryCurrency, rec.SalaryPeriod,
		rec.EmploymentType, rec.ExperienceLevel,
		nonNil(rec.Skills), nonNil(rec.Requirements), nonNil(rec.Benefits),
		rec.PostedAt, rec.ExpiresAt, rec.ApplicationURL, metadata,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt, &inserted)
	if err != nil {
		return 0, fmt.Errorf("upsert %s: %w", rec.Key(), err)
	}
	rec.IsActive = true

	if inserted {
		return store.Inserted, nil
	}
	return store.Updated, nil
}

func (s *Store) Count(ctx context.Context, f store.Filter) (int64, error) {
	where, args := filterSQL(f)
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM job_listings`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (s *Store) GroupByCount(ctx context.Context, field store.GroupField) (map[string]int64, error) {
	if !field.Valid() {
		return nil, fmt.Errorf("%w: %q", store.ErrInvalidGroupField, field)
	}

	// field is one of a closed set of column names.
	rows, err := s.pool.Query(ctx,
		`SELECT `+string(field)+`, count(*) FROM job_listings GROUP BY `+string(field))
	if err != nil {
		return nil, fmt.Errorf("group by %s: %w", field, err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			key string
			n   int64
		)
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out[key] = n
	}
	return out, rows.Err()
}

func (s *Store) BulkDeactivate(ctx context.Context, p store.Predicate) (int64, error) {
	where, args := predicateSQL(p)
	if where == "" {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE job_listings SET is_active = FALSE, updated_at = now() WHERE is_active AND (`+where+`)`,
		args...)
	if err != nil {
		return 0, fmt.Errorf("bulk deactivate: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() { s.pool.Close() }

func filterSQL(f store.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Source != "" {
		args = append(args, f.Source)
		conds = append(conds, fmt.Sprintf("source = $%d", len(args)))
	}
	if f.ActiveOnly {
		conds = append(conds, "is_active")
	}
	if !f.PostedSince.IsZero() {
		args = append(args, f.PostedSince)
		conds = append(conds, fmt.Sprintf("posted_at >= $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func predicateSQL(p store.Predicate) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if !p.ExpiresBefore.IsZero() {
		args = append(args, p.ExpiresBefore)
		conds = append(conds, fmt.Sprintf("expires_at < $%d", len(args)))
	}
	if !p.StaleBefore.IsZero() {
		args = append(args, p.StaleBefore)
		conds = append(conds, fmt.Sprintf("(expires_at IS NULL AND COALESCE(posted_at, created_at) < $%d)", len(args)))
	}
	return strings.Join(conds, " OR "), args
}

func scanRecord(row pgx.Row) (*domain.NormalizedRecord, error) {
	var (
		rec        domain.NormalizedRecord
		remoteType string
		metadata   []byte
		postedAt   *time.Time
		expiresAt  *time.Time
	)
	err := row.Scan(
		&rec.ID, &rec.Source, &rec.ExternalID, &rec.Title, &rec.Company, &rec.Location,
		&remoteType, &rec.Description,
		&rec.SalaryMin, &rec.SalaryMax, &rec.SalaryCurrency, &rec.SalaryPeriod,
		&rec.EmploymentType, &rec.ExperienceLevel,
		&rec.Skills, &rec.Requirements, &rec.Benefits,
		&postedAt, &expiresAt, &rec.ApplicationURL, &metadata,
		&rec.IsActive, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.RemoteType = domain.RemoteType(remoteType)
	rec.PostedAt = postedAt
	rec.ExpiresAt = expiresAt
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
