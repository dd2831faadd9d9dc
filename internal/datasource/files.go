package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/vanderheijden86/appdrawer/pkg/model"
)

const fileIndexSchema = `
CREATE TABLE IF NOT EXISTS files (
	path       TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	name_lower TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS files_name_lower ON files(name_lower);
`

// SQLiteFileIndex is a file-name index the search engine queries before
// falling back to walking the disk.
type SQLiteFileIndex struct {
	db *sql.DB
}

// OpenSQLiteFileIndex opens or creates the index database at path.
func OpenSQLiteFileIndex(path string) (*SQLiteFileIndex, error) {
	db, err := openSQLite(path, false)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(fileIndexSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating file index schema: %w", err)
	}
	return &SQLiteFileIndex{db: db}, nil
}

// Close closes the database.
func (x *SQLiteFileIndex) Close() error {
	return x.db.Close()
}

// SearchFiles returns up to limit files whose name contains query,
// case-insensitively.
func (x *SQLiteFileIndex) SearchFiles(ctx context.Context, query string, limit int) ([]model.FileHit, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return nil, nil
	}
	rows, err := x.db.QueryContext(ctx,
		`SELECT name, path FROM files WHERE instr(name_lower, ?) > 0 ORDER BY name_lower, path LIMIT ?`,
		q, limit)
	if err != nil {
		return nil, fmt.Errorf("querying files: %w", err)
	}
	defer rows.Close()

	var hits []model.FileHit
	for rows.Next() {
		var h model.FileHit
		if err := rows.Scan(&h.Name, &h.Path); err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating files: %w", err)
	}
	return hits, nil
}

// Add indexes a single file.
func (x *SQLiteFileIndex) Add(ctx context.Context, path string) error {
	name := filepath.Base(path)
	_, err := x.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO files (path, name, name_lower) VALUES (?, ?, ?)`,
		path, name, strings.ToLower(name))
	if err != nil {
		return fmt.Errorf("indexing %s: %w", path, err)
	}
	return nil
}

// Count returns the number of indexed files.
func (x *SQLiteFileIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Rebuild replaces the index with every regular file under roots.
// maxDepth bounds the directory depth below each root; zero or less means
// unbounded.
func (x *SQLiteFileIndex) Rebuild(ctx context.Context, roots []string, maxDepth int) (int, error) {
	var (
		mu    sync.Mutex
		paths []string
	)
	for _, root := range roots {
		conf := fastwalk.Config{Follow: false}
		err := fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if maxDepth > 0 && p != root && depth(root, p) >= maxDepth {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			mu.Lock()
			paths = append(paths, p)
			mu.Unlock()
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("walking %s: %w", root, err)
		}
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM files`); err != nil {
		return 0, fmt.Errorf("clearing index: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO files (path, name, name_lower) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()
	for _, p := range paths {
		name := filepath.Base(p)
		if _, err := stmt.ExecContext(ctx, p, name, strings.ToLower(name)); err != nil {
			return 0, fmt.Errorf("indexing %s: %w", p, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(paths), nil
}

// depth returns how many directories p is below root.
func depth(root, p string) int {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
