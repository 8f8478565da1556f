package ledger

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"imscp/internal/config"
)

// Entry is one recorded bundle.
type Entry struct {
	ID            int64     `json:"id"`
	PackageDigest string    `json:"package_digest"`
	PackageID     string    `json:"package_id,omitempty"`
	ItemKey       string    `json:"item_key"`
	ItemID        string    `json:"item_id,omitempty"`
	SourceID      string    `json:"source_id,omitempty"`
	Title         string    `json:"title,omitempty"`
	Mode          string    `json:"mode"`
	ZipPath       string    `json:"zip_path"`
	DependencyZip string    `json:"dependency_zip,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store persists bundle entries in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to the ledger configured in cfg, creating it when absent.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.Paths.LedgerPath)
}

// OpenPath connects to the ledger database at dbPath.
func OpenPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file backing the store.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts or refreshes the entry keyed by package digest, item key and
// mode. CreatedAt is preserved across refreshes.
func (s *Store) Record(ctx context.Context, entry Entry) (*Entry, error) {
	if entry.PackageDigest == "" || entry.ItemKey == "" || entry.ZipPath == "" {
		return nil, errors.New("ledger entry requires package digest, item key and zip path")
	}
	if entry.Mode == "" {
		return nil, errors.New("ledger entry requires a mode")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO bundles (
            package_digest, package_id, item_key, item_id, source_id, title,
            mode, zip_path, dependency_zip, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (package_digest, item_key, mode) DO UPDATE SET
            package_id = excluded.package_id, item_id = excluded.item_id,
            source_id = excluded.source_id, title = excluded.title,
            zip_path = excluded.zip_path, dependency_zip = excluded.dependency_zip,
            updated_at = excluded.updated_at`,
		entry.PackageDigest,
		nullableString(entry.PackageID),
		entry.ItemKey,
		nullableString(entry.ItemID),
		nullableString(entry.SourceID),
		nullableString(entry.Title),
		entry.Mode,
		entry.ZipPath,
		nullableString(entry.DependencyZip),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("record bundle: %w", err)
	}
	return s.Lookup(ctx, entry.PackageDigest, entry.ItemKey, entry.Mode)
}

// Lookup returns the entry for a leaf, or nil when none is recorded.
func (s *Store) Lookup(ctx context.Context, digest, itemKey, mode string) (*Entry, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+entryColumns+` FROM bundles WHERE package_digest = ? AND item_key = ? AND mode = ?`,
		digest, itemKey, mode,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup bundle: %w", err)
	}
	return entry, nil
}

// List returns entries ordered by creation, filtered to digest when non-empty.
func (s *Store) List(ctx context.Context, digest string) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM bundles`
	var args []any
	if digest != "" {
		query += ` WHERE package_digest = ?`
		args = append(args, digest)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// PruneMissing deletes entries whose zip no longer exists on disk.
func (s *Store) PruneMissing(ctx context.Context) (int64, error) {
	entries, err := s.List(ctx, "")
	if err != nil {
		return 0, err
	}
	var removed int64
	for _, entry := range entries {
		if _, statErr := os.Stat(entry.ZipPath); !errors.Is(statErr, os.ErrNotExist) {
			continue
		}
		res, err := s.db.ExecContext(ctx, `DELETE FROM bundles WHERE id = ?`, entry.ID)
		if err != nil {
			return removed, fmt.Errorf("prune bundle %d: %w", entry.ID, err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}
	return removed, nil
}

// Clear removes every entry.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bundles`)
	if err != nil {
		return 0, fmt.Errorf("clear ledger: %w", err)
	}
	return res.RowsAffected()
}

// DigestFile returns the hex SHA-256 of the file at path.
func DigestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open package: %w", err)
	}
	defer f.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", fmt.Errorf("hash package: %w", err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
