package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/appdrawer/pkg/model"
)

const registrySchema = `
CREATE TABLE IF NOT EXISTS packages (
	package_id TEXT PRIMARY KEY,
	label      TEXT,
	updated_at INTEGER NOT NULL DEFAULT 0,
	disabled   INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS activities (
	package_id TEXT NOT NULL,
	activity   TEXT NOT NULL,
	PRIMARY KEY (package_id, activity)
);
`

func openSQLite(path string, readOnly bool) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	if readOnly {
		dsn = fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	if !readOnly {
		// One writer connection avoids SQLITE_BUSY between our own goroutines.
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// SQLiteRegistry reads packages and launchable activities from a SQLite
// registry database.
type SQLiteRegistry struct {
	db   *sql.DB
	path string
}

// OpenSQLiteRegistry opens an existing registry database read-only.
func OpenSQLiteRegistry(path string) (*SQLiteRegistry, error) {
	db, err := openSQLite(path, true)
	if err != nil {
		return nil, err
	}
	return &SQLiteRegistry{db: db, path: path}, nil
}

// CreateSQLiteRegistry opens path for writing, creating the schema if
// needed.
func CreateSQLiteRegistry(ctx context.Context, path string) (*SQLiteRegistry, error) {
	db, err := openSQLite(path, false)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, registrySchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating registry schema: %w", err)
	}
	return &SQLiteRegistry{db: db, path: path}, nil
}

// Path returns the database path.
func (r *SQLiteRegistry) Path() string { return r.path }

// Close closes the database connection.
func (r *SQLiteRegistry) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Launchable returns one entry per activity of every enabled package.
func (r *SQLiteRegistry) Launchable(ctx context.Context) ([]model.AppEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.package_id, a.activity
		FROM activities a
		JOIN packages p ON p.package_id = a.package_id
		WHERE p.disabled = 0
		ORDER BY a.package_id, a.activity
	`)
	if err != nil {
		return nil, fmt.Errorf("querying activities: %w", err)
	}
	defer rows.Close()

	var entries []model.AppEntry
	for rows.Next() {
		var e model.AppEntry
		if err := rows.Scan(&e.PackageID, &e.ActivityName); err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activities: %w", err)
	}
	return entries, nil
}

// ResolveLabel returns the package label. ErrNoLabel is returned when the
// package is unknown or has no label.
func (r *SQLiteRegistry) ResolveLabel(ctx context.Context, entry model.AppEntry) (string, error) {
	var label sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT label FROM packages WHERE package_id = ?`, entry.PackageID).Scan(&label)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", entry.PackageID, ErrNoLabel)
	}
	if err != nil {
		return "", fmt.Errorf("querying label: %w", err)
	}
	if !label.Valid || label.String == "" {
		return "", fmt.Errorf("%s: %w", entry.PackageID, ErrNoLabel)
	}
	return label.String, nil
}

// PackageStamps returns the update timestamp of every installed package,
// enabled or not.
func (r *SQLiteRegistry) PackageStamps(ctx context.Context) ([]model.PackageStamp, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT package_id, updated_at FROM packages ORDER BY package_id`)
	if err != nil {
		return nil, fmt.Errorf("querying packages: %w", err)
	}
	defer rows.Close()

	var stamps []model.PackageStamp
	for rows.Next() {
		var s model.PackageStamp
		if err := rows.Scan(&s.PackageID, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning package: %w", err)
		}
		stamps = append(stamps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating packages: %w", err)
	}
	return stamps, nil
}

// Install inserts or replaces a package and its activities.
func (r *SQLiteRegistry) Install(ctx context.Context, p Package) error {
	if p.PackageID == "" {
		return errors.New("datasource: empty package id")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	disabled := 0
	if p.Disabled {
		disabled = 1
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO packages (package_id, label, updated_at, disabled) VALUES (?, ?, ?, ?)
		ON CONFLICT(package_id) DO UPDATE SET label = excluded.label, updated_at = excluded.updated_at, disabled = excluded.disabled
	`, p.PackageID, p.Label, p.UpdatedAt, disabled); err != nil {
		return fmt.Errorf("upserting package: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM activities WHERE package_id = ?`, p.PackageID); err != nil {
		return fmt.Errorf("clearing activities: %w", err)
	}
	for _, a := range p.Activities {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO activities (package_id, activity) VALUES (?, ?)`, p.PackageID, a); err != nil {
			return fmt.Errorf("inserting activity: %w", err)
		}
	}
	return tx.Commit()
}

// Uninstall removes a package and its activities.
func (r *SQLiteRegistry) Uninstall(ctx context.Context, packageID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM activities WHERE package_id = ?`, packageID); err != nil {
		return fmt.Errorf("deleting activities: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM packages WHERE package_id = ?`, packageID); err != nil {
		return fmt.Errorf("deleting package: %w", err)
	}
	return tx.Commit()
}
