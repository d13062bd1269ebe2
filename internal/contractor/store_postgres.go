package contractor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/contractor-cli/internal/db"
	"github.com/sells-group/contractor-cli/internal/normalize"
)

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// ConnectPostgres opens a pool and verifies it.
func ConnectPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "contractor: parse postgres config")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "contractor: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "contractor: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS contractor_accounts (
	id           TEXT PRIMARY KEY,
	email        TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	placeholder  BOOLEAN NOT NULL DEFAULT false,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS contractors (
	id                   TEXT PRIMARY KEY,
	account_id           TEXT REFERENCES contractor_accounts(id),
	business_name        TEXT NOT NULL,
	name_exact           TEXT NOT NULL,
	name_key             TEXT NOT NULL,
	display_name         TEXT NOT NULL DEFAULT '',
	contact_name         TEXT NOT NULL DEFAULT '',
	phone                TEXT NOT NULL DEFAULT '',
	email                TEXT NOT NULL DEFAULT '',
	website              TEXT NOT NULL DEFAULT '',
	street               TEXT NOT NULL DEFAULT '',
	city                 TEXT NOT NULL DEFAULT '',
	state                TEXT NOT NULL DEFAULT '',
	zip                  TEXT NOT NULL DEFAULT '',
	latitude             DOUBLE PRECISION,
	longitude            DOUBLE PRECISION,
	specialties          TEXT[] NOT NULL DEFAULT '{}',
	categories           TEXT[] NOT NULL DEFAULT '{}',
	certifications       TEXT[] NOT NULL DEFAULT '{}',
	manufacturers        TEXT[] NOT NULL DEFAULT '{}',
	description          TEXT NOT NULL DEFAULT '',
	years_in_business    INTEGER,
	license_number       TEXT NOT NULL DEFAULT '',
	license_class        TEXT NOT NULL DEFAULT '',
	license_class_detail TEXT NOT NULL DEFAULT '',
	license_class_type   TEXT NOT NULL DEFAULT '',
	license_status       TEXT NOT NULL DEFAULT '',
	license_issued       TIMESTAMPTZ,
	license_expires      TIMESTAMPTZ,
	license_verified     BOOLEAN NOT NULL DEFAULT false,
	is_verified          BOOLEAN NOT NULL DEFAULT false,
	sources              TEXT[] NOT NULL DEFAULT '{}',
	last_source          TEXT NOT NULL DEFAULT '',
	last_imported_at     TIMESTAMPTZ,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_contractors_license ON contractors(license_number) WHERE license_number <> '';
CREATE INDEX IF NOT EXISTS idx_contractors_name_exact ON contractors(name_exact);
CREATE INDEX IF NOT EXISTS idx_contractors_name_key_city ON contractors(name_key, lower(city));

CREATE TABLE IF NOT EXISTS import_runs (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	status      TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	processed   INTEGER NOT NULL DEFAULT 0,
	new_count   INTEGER NOT NULL DEFAULT 0,
	updated     INTEGER NOT NULL DEFAULT 0,
	errors      INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT ''
);
`

// Migrate creates the tables the pipeline writes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "contractor: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const contractorColumns = `id, COALESCE(account_id, ''), business_name, display_name, contact_name, name_key,
	phone, email, website, street, city, state, zip, latitude, longitude,
	specialties, categories, certifications, manufacturers, description, years_in_business,
	license_number, license_class, license_class_detail, license_class_type, license_status,
	license_issued, license_expires, license_verified, is_verified,
	sources, last_source, last_imported_at, created_at, updated_at`

// contractorDests returns scan destinations matching contractorColumns.
func contractorDests(c *Contractor) []any {
	return []any{
		&c.ID, &c.AccountID, &c.BusinessName, &c.DisplayName, &c.ContactName, &c.NameKey,
		&c.Phone, &c.Email, &c.Website, &c.Street, &c.City, &c.State, &c.Zip, &c.Latitude, &c.Longitude,
		&c.Specialties, &c.Categories, &c.Certifications, &c.Manufacturers, &c.Description, &c.YearsInBusiness,
		&c.LicenseNumber, &c.LicenseClass, &c.LicenseClassDetail, &c.LicenseClassType, &c.LicenseStatus,
		&c.LicenseIssued, &c.LicenseExpires, &c.LicenseVerified, &c.IsVerified,
		&c.Sources, &c.LastSource, &c.LastImportedAt, &c.CreatedAt, &c.UpdatedAt,
	}
}

func scanContractors(rows pgx.Rows) ([]Contractor, error) {
	var out []Contractor
	for rows.Next() {
		var c Contractor
		if err := rows.Scan(contractorDests(&c)...); err != nil {
			return nil, eris.Wrap(err, "contractor: scan")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FindByLicense implements Store.
func (s *PostgresStore) FindByLicense(ctx context.Context, number string) (*Contractor, error) {
	c := &Contractor{}
	err := s.pool.QueryRow(ctx, `SELECT `+contractorColumns+` FROM contractors WHERE license_number = $1`,
		strings.ToUpper(number)).Scan(contractorDests(c)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "contractor: find by license %s", number)
	}
	return c, nil
}

// FindByName implements Store.
func (s *PostgresStore) FindByName(ctx context.Context, businessName string) ([]Contractor, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+contractorColumns+` FROM contractors WHERE name_exact = $1 ORDER BY created_at, id`,
		normalize.ExactName(businessName))
	if err != nil {
		return nil, eris.Wrap(err, "contractor: find by name")
	}
	defer rows.Close()
	return scanContractors(rows)
}

// FindByNameKey implements Store.
func (s *PostgresStore) FindByNameKey(ctx context.Context, nameKey, city string) ([]Contractor, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+contractorColumns+` FROM contractors WHERE name_key = $1 AND lower(city) = lower($2) ORDER BY created_at, id`,
		nameKey, city)
	if err != nil {
		return nil, eris.Wrap(err, "contractor: find by name key")
	}
	defer rows.Close()
	return scanContractors(rows)
}

// Create implements Store. It assigns the id and timestamps.
func (s *PostgresStore) Create(ctx context.Context, c *Contractor) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	c.NameKey = normalize.NameKey(c.BusinessName)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO contractors (
			id, account_id, business_name, name_exact, name_key, display_name, contact_name,
			phone, email, website, street, city, state, zip, latitude, longitude,
			specialties, categories, certifications, manufacturers, description, years_in_business,
			license_number, license_class, license_class_detail, license_class_type, license_status,
			license_issued, license_expires, license_verified, is_verified,
			sources, last_source, last_imported_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22,
			$23, $24, $25, $26, $27,
			$28, $29, $30, $31,
			$32, $33, $34, $35, $36
		)`,
		c.ID, nilIfEmpty(c.AccountID), c.BusinessName, normalize.ExactName(c.BusinessName), c.NameKey, c.DisplayName, c.ContactName,
		c.Phone, c.Email, c.Website, c.Street, c.City, c.State, c.Zip, c.Latitude, c.Longitude,
		orEmpty(c.Specialties), orEmpty(c.Categories), orEmpty(c.Certifications), orEmpty(c.Manufacturers), c.Description, c.YearsInBusiness,
		c.LicenseNumber, c.LicenseClass, c.LicenseClassDetail, c.LicenseClassType, c.LicenseStatus,
		c.LicenseIssued, c.LicenseExpires, c.LicenseVerified, c.IsVerified,
		orEmpty(c.Sources), c.LastSource, c.LastImportedAt, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "contractor: create %s", c.BusinessName)
	}
	return nil
}

// Update implements Store.
func (s *PostgresStore) Update(ctx context.Context, c *Contractor) error {
	c.UpdatedAt = time.Now().UTC()
	c.NameKey = normalize.NameKey(c.BusinessName)

	tag, err := s.pool.Exec(ctx, `
		UPDATE contractors SET
			account_id=$2, business_name=$3, name_exact=$4, name_key=$5, display_name=$6, contact_name=$7,
			phone=$8, email=$9, website=$10, street=$11, city=$12, state=$13, zip=$14, latitude=$15, longitude=$16,
			specialties=$17, categories=$18, certifications=$19, manufacturers=$20, description=$21, years_in_business=$22,
			license_number=$23, license_class=$24, license_class_detail=$25, license_class_type=$26, license_status=$27,
			license_issued=$28, license_expires=$29, license_verified=$30, is_verified=$31,
			sources=$32, last_source=$33, last_imported_at=$34, updated_at=$35
		WHERE id=$1`,
		c.ID, nilIfEmpty(c.AccountID), c.BusinessName, normalize.ExactName(c.BusinessName), c.NameKey, c.DisplayName, c.ContactName,
		c.Phone, c.Email, c.Website, c.Street, c.City, c.State, c.Zip, c.Latitude, c.Longitude,
		orEmpty(c.Specialties), orEmpty(c.Categories), orEmpty(c.Certifications), orEmpty(c.Manufacturers), c.Description, c.YearsInBusiness,
		c.LicenseNumber, c.LicenseClass, c.LicenseClassDetail, c.LicenseClassType, c.LicenseStatus,
		c.LicenseIssued, c.LicenseExpires, c.LicenseVerified, c.IsVerified,
		orEmpty(c.Sources), c.LastSource, c.LastImportedAt, c.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "contractor: update %s", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("contractor: not found: %s", c.ID)
	}
	return nil
}

// EnsureAccount implements Store.
func (s *PostgresStore) EnsureAccount(ctx context.Context, email, displayName string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO contractor_accounts (id, email, display_name, placeholder)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id`,
		uuid.New().String(), email, displayName, IsPlaceholderEmail(email),
	).Scan(&id)
	if err != nil {
		return "", eris.Wrapf(err, "contractor: ensure account %s", email)
	}
	return id, nil
}

// ListMissingContact implements Store.
func (s *PostgresStore) ListMissingContact(ctx context.Context, afterID string, limit int) ([]Contractor, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+contractorColumns+`
		FROM contractors
		WHERE license_verified AND (phone = '' OR email = '' OR website = '') AND id > $1
		ORDER BY id
		LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "contractor: list missing contact")
	}
	defer rows.Close()
	return scanContractors(rows)
}

// Count implements Store.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM contractors`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "contractor: count")
	}
	return n, nil
}

// CreateImportRun implements Store.
func (s *PostgresStore) CreateImportRun(ctx context.Context, run *ImportRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO import_runs (id, source, status, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, run.Source, string(run.Status), run.StartedAt,
	)
	return eris.Wrap(err, "contractor: create import run")
}

// FinishImportRun implements Store.
func (s *PostgresStore) FinishImportRun(ctx context.Context, run *ImportRun) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE import_runs SET
			status=$2, finished_at=$3, processed=$4, new_count=$5, updated=$6, errors=$7, skipped=$8, error=$9
		WHERE id=$1`,
		run.ID, string(run.Status), run.FinishedAt, run.Processed, run.New, run.Updated, run.Errors, run.Skipped, run.Error,
	)
	if err != nil {
		return eris.Wrapf(err, "contractor: finish import run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("contractor: import run not found: %s", run.ID)
	}
	return nil
}

func orEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
