package ledger

import (
	"database/sql"
	"errors"
	"time"
)

const entryColumns = "id, package_digest, package_id, item_key, item_id, source_id, title, mode, zip_path, dependency_zip, created_at, updated_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id            int64
		digest        string
		packageID     sql.NullString
		itemKey       string
		itemID        sql.NullString
		sourceID      sql.NullString
		title         sql.NullString
		mode          string
		zipPath       string
		dependencyZip sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&digest,
		&packageID,
		&itemKey,
		&itemID,
		&sourceID,
		&title,
		&mode,
		&zipPath,
		&dependencyZip,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:            id,
		PackageDigest: digest,
		PackageID:     packageID.String,
		ItemKey:       itemKey,
		ItemID:        itemID.String,
		SourceID:      sourceID.String,
		Title:         title.String,
		Mode:          mode,
		ZipPath:       zipPath,
		DependencyZip: dependencyZip.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		entry.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		entry.UpdatedAt = updated
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
