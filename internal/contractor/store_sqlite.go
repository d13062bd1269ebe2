package contractor

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/contractor-cli/internal/normalize"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs local
// runs and tests; list columns are stored as JSON text.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database. ":memory:" gives a private in-memory
// database pinned to a single connection.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	pragmas := []string{"PRAGMA busy_timeout=5000", "PRAGMA foreign_keys=ON"}
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS contractor_accounts (
	id           TEXT PRIMARY KEY,
	email        TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	placeholder  INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
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
	latitude             REAL,
	longitude            REAL,
	specialties          TEXT NOT NULL DEFAULT '[]',
	categories           TEXT NOT NULL DEFAULT '[]',
	certifications       TEXT NOT NULL DEFAULT '[]',
	manufacturers        TEXT NOT NULL DEFAULT '[]',
	description          TEXT NOT NULL DEFAULT '',
	years_in_business    INTEGER,
	license_number       TEXT NOT NULL DEFAULT '',
	license_class        TEXT NOT NULL DEFAULT '',
	license_class_detail TEXT NOT NULL DEFAULT '',
	license_class_type   TEXT NOT NULL DEFAULT '',
	license_status       TEXT NOT NULL DEFAULT '',
	license_issued       DATETIME,
	license_expires      DATETIME,
	license_verified     INTEGER NOT NULL DEFAULT 0,
	is_verified          INTEGER NOT NULL DEFAULT 0,
	sources              TEXT NOT NULL DEFAULT '[]',
	last_source          TEXT NOT NULL DEFAULT '',
	last_imported_at     DATETIME,
	created_at           DATETIME NOT NULL,
	updated_at           DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_contractors_license ON contractors(license_number) WHERE license_number <> '';
CREATE INDEX IF NOT EXISTS idx_contractors_name_exact ON contractors(name_exact);
CREATE INDEX IF NOT EXISTS idx_contractors_name_key ON contractors(name_key);

CREATE TABLE IF NOT EXISTS import_runs (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	status      TEXT NOT NULL,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME,
	processed   INTEGER NOT NULL DEFAULT 0,
	new_count   INTEGER NOT NULL DEFAULT 0,
	updated     INTEGER NOT NULL DEFAULT 0,
	errors      INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT ''
);
`

// Migrate implements Store.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteColumns = `id, COALESCE(account_id, ''), business_name, display_name, contact_name, name_key,
	phone, email, website, street, city, state, zip, latitude, longitude,
	specialties, categories, certifications, manufacturers, description, years_in_business,
	license_number, license_class, license_class_detail, license_class_type, license_status,
	license_issued, license_expires, license_verified, is_verified,
	sources, last_source, last_imported_at, created_at, updated_at`

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLite(row scannable) (*Contractor, error) {
	var (
		c                                    Contractor
		lat, lng                             sql.NullFloat64
		years                                sql.NullInt64
		specialties, categories, certs, mfrs string
		sources                              string
		issued, expires, imported            sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.AccountID, &c.BusinessName, &c.DisplayName, &c.ContactName, &c.NameKey,
		&c.Phone, &c.Email, &c.Website, &c.Street, &c.City, &c.State, &c.Zip, &lat, &lng,
		&specialties, &categories, &certs, &mfrs, &c.Description, &years,
		&c.LicenseNumber, &c.LicenseClass, &c.LicenseClassDetail, &c.LicenseClassType, &c.LicenseStatus,
		&issued, &expires, &c.LicenseVerified, &c.IsVerified,
		&sources, &c.LastSource, &imported, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lat.Valid && lng.Valid {
		c.Latitude, c.Longitude = &lat.Float64, &lng.Float64
	}
	if years.Valid {
		y := int(years.Int64)
		c.YearsInBusiness = &y
	}
	c.LicenseIssued = timePtr(issued)
	c.LicenseExpires = timePtr(expires)
	c.LastImportedAt = timePtr(imported)

	for _, f := range []struct {
		raw string
		dst *[]string
	}{
		{specialties, &c.Specialties},
		{categories, &c.Categories},
		{certs, &c.Certifications},
		{mfrs, &c.Manufacturers},
		{sources, &c.Sources},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, eris.Wrap(err, "sqlite: decode list column")
		}
	}
	return &c, nil
}

func (s *SQLiteStore) queryContractors(ctx context.Context, query string, args ...any) ([]Contractor, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contractor
	for rows.Next() {
		c, err := scanSQLite(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contractor")
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// FindByLicense implements Store.
func (s *SQLiteStore) FindByLicense(ctx context.Context, number string) (*Contractor, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteColumns+` FROM contractors WHERE license_number = ?`,
		strings.ToUpper(number))
	c, err := scanSQLite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find by license %s", number)
	}
	return c, nil
}

// FindByName implements Store.
func (s *SQLiteStore) FindByName(ctx context.Context, businessName string) ([]Contractor, error) {
	out, err := s.queryContractors(ctx,
		`SELECT `+sqliteColumns+` FROM contractors WHERE name_exact = ? ORDER BY created_at, id`,
		normalize.ExactName(businessName))
	return out, eris.Wrap(err, "sqlite: find by name")
}

// FindByNameKey implements Store.
func (s *SQLiteStore) FindByNameKey(ctx context.Context, nameKey, city string) ([]Contractor, error) {
	out, err := s.queryContractors(ctx,
		`SELECT `+sqliteColumns+` FROM contractors WHERE name_key = ? AND lower(city) = lower(?) ORDER BY created_at, id`,
		nameKey, city)
	return out, eris.Wrap(err, "sqlite: find by name key")
}

// Create implements Store.
func (s *SQLiteStore) Create(ctx context.Context, c *Contractor) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	c.NameKey = normalize.NameKey(c.BusinessName)

	args, err := sqliteArgs(c)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO contractors (
			id, account_id, business_name, name_exact, name_key, display_name, contact_name,
			phone, email, website, street, city, state, zip, latitude, longitude,
			specialties, categories, certifications, manufacturers, description, years_in_business,
			license_number, license_class, license_class_detail, license_class_type, license_status,
			license_issued, license_expires, license_verified, is_verified,
			sources, last_source, last_imported_at, updated_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		append(args, c.CreatedAt)...,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: create %s", c.BusinessName)
	}
	return nil
}

// Update implements Store.
func (s *SQLiteStore) Update(ctx context.Context, c *Contractor) error {
	c.UpdatedAt = time.Now().UTC()
	c.NameKey = normalize.NameKey(c.BusinessName)

	args, err := sqliteArgs(c)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE contractors SET
			id=?, account_id=?, business_name=?, name_exact=?, name_key=?, display_name=?, contact_name=?,
			phone=?, email=?, website=?, street=?, city=?, state=?, zip=?, latitude=?, longitude=?,
			specialties=?, categories=?, certifications=?, manufacturers=?, description=?, years_in_business=?,
			license_number=?, license_class=?, license_class_detail=?, license_class_type=?, license_status=?,
			license_issued=?, license_expires=?, license_verified=?, is_verified=?,
			sources=?, last_source=?, last_imported_at=?, updated_at=?
		WHERE id=?`,
		append(args, c.ID)...,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update %s", c.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: contractor not found: %s", c.ID)
	}
	return nil
}

// sqliteArgs lists column values in insert order, ending with updated_at.
func sqliteArgs(c *Contractor) ([]any, error) {
	lists := make([]string, 0, 5)
	for _, l := range [][]string{c.Specialties, c.Categories, c.Certifications, c.Manufacturers, c.Sources} {
		b, err := json.Marshal(orEmpty(l))
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: encode list column")
		}
		lists = append(lists, string(b))
	}
	return []any{
		c.ID, nilIfEmpty(c.AccountID), c.BusinessName, normalize.ExactName(c.BusinessName), c.NameKey, c.DisplayName, c.ContactName,
		c.Phone, c.Email, c.Website, c.Street, c.City, c.State, c.Zip, c.Latitude, c.Longitude,
		lists[0], lists[1], lists[2], lists[3], c.Description, c.YearsInBusiness,
		c.LicenseNumber, c.LicenseClass, c.LicenseClassDetail, c.LicenseClassType, c.LicenseStatus,
		c.LicenseIssued, c.LicenseExpires, c.LicenseVerified, c.IsVerified,
		lists[4], c.LastSource, c.LastImportedAt, c.UpdatedAt,
	}, nil
}

// EnsureAccount implements Store.
func (s *SQLiteStore) EnsureAccount(ctx context.Context, email, displayName string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO contractor_accounts (id, email, display_name, placeholder)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET email = excluded.email
		RETURNING id`,
		uuid.New().String(), email, displayName, IsPlaceholderEmail(email),
	).Scan(&id)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: ensure account %s", email)
	}
	return id, nil
}

// ListMissingContact implements Store.
func (s *SQLiteStore) ListMissingContact(ctx context.Context, afterID string, limit int) ([]Contractor, error) {
	out, err := s.queryContractors(ctx, `
		SELECT `+sqliteColumns+`
		FROM contractors
		WHERE license_verified = 1 AND (phone = '' OR email = '' OR website = '') AND id > ?
		ORDER BY id
		LIMIT ?`, afterID, limit)
	return out, eris.Wrap(err, "sqlite: list missing contact")
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM contractors`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count")
	}
	return n, nil
}

// CreateImportRun implements Store.
func (s *SQLiteStore) CreateImportRun(ctx context.Context, run *ImportRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO import_runs (id, source, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Source, string(run.Status), run.StartedAt,
	)
	return eris.Wrap(err, "sqlite: create import run")
}

// FinishImportRun implements Store.
func (s *SQLiteStore) FinishImportRun(ctx context.Context, run *ImportRun) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE import_runs SET
			status=?, finished_at=?, processed=?, new_count=?, updated=?, errors=?, skipped=?, error=?
		WHERE id=?`,
		string(run.Status), *run.FinishedAt, run.Processed, run.New, run.Updated, run.Errors, run.Skipped, run.Error, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish import run %s", run.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("sqlite: import run not found: %s", run.ID)
	}
	return nil
}

// GetImportRun loads a run by id, or nil when it does not exist.
func (s *SQLiteStore) GetImportRun(ctx context.Context, id string) (*ImportRun, error) {
	var (
		r        ImportRun
		status   string
		finished sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, source, status, started_at, finished_at, processed, new_count, updated, errors, skipped, error
		FROM import_runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.Source, &status, &r.StartedAt, &finished, &r.Processed, &r.New, &r.Updated, &r.Errors, &r.Skipped, &r.Error)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get import run %s", id)
	}
	r.Status = RunStatus(status)
	r.FinishedAt = timePtr(finished)
	return &r, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
