package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-jet/jet/v2/sqlite"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/storage"
	"github.com/arcstream/arcstream/internal/storage/sqlite/schema"
)

type scanCursorRow struct {
	LibraryID    int64
	FolderPath   string
	ListingHash  string
	EntryCount   int32
	LastScanAt   time.Time
	LastModified *time.Time
	DeviceID     int64
}

func (r scanCursorRow) toDomain() domain.ScanCursor {
	var lastModified time.Time
	if r.LastModified != nil {
		lastModified = *r.LastModified
	}
	return domain.ScanCursor{
		LibraryID:    r.LibraryID,
		FolderPath:   r.FolderPath,
		ListingHash:  r.ListingHash,
		EntryCount:   int(r.EntryCount),
		LastScanAt:   r.LastScanAt,
		LastModified: lastModified,
		DeviceID:     uint64(r.DeviceID),
	}
}

func (s *SQLite) GetCursor(ctx context.Context, libraryID int64, folderPath string) (domain.ScanCursor, error) {
	stmt := sqlite.SELECT(schema.ScanCursorAllColumns).
		FROM(schema.ScanCursorTable).
		WHERE(schema.ScanCursorLibraryIDCol.EQ(sqlite.Int64(libraryID)).
			AND(schema.ScanCursorFolderPathCol.EQ(sqlite.String(folderPath))))

	var row scanCursorRow
	err := stmt.QueryContext(ctx, s.db, &row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ScanCursor{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.ScanCursor{}, err
	}
	return row.toDomain(), nil
}

func (s *SQLite) PutCursor(ctx context.Context, cursor domain.ScanCursor) error {
	var lastModified *time.Time
	if !cursor.LastModified.IsZero() {
		lastModified = &cursor.LastModified
	}

	row := scanCursorRow{
		LibraryID:    cursor.LibraryID,
		FolderPath:   cursor.FolderPath,
		ListingHash:  cursor.ListingHash,
		EntryCount:   int32(cursor.EntryCount),
		LastScanAt:   cursor.LastScanAt,
		LastModified: lastModified,
		DeviceID:     int64(cursor.DeviceID),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing scanCursorRow
	err := sqlite.SELECT(schema.ScanCursorLibraryIDCol).
		FROM(schema.ScanCursorTable).
		WHERE(schema.ScanCursorLibraryIDCol.EQ(sqlite.Int64(cursor.LibraryID)).
			AND(schema.ScanCursorFolderPathCol.EQ(sqlite.String(cursor.FolderPath)))).
		QueryContext(ctx, s.db, &existing)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if err == nil {
		stmt := schema.ScanCursorTable.
			UPDATE(schema.ScanCursorListingHashCol, schema.ScanCursorEntryCountCol, schema.ScanCursorLastScanCol, schema.ScanCursorLastModifiedCol, schema.ScanCursorDeviceIDCol).
			SET(row.ListingHash, row.EntryCount, row.LastScanAt, row.LastModified, row.DeviceID).
			WHERE(schema.ScanCursorLibraryIDCol.EQ(sqlite.Int64(cursor.LibraryID)).
				AND(schema.ScanCursorFolderPathCol.EQ(sqlite.String(cursor.FolderPath))))
		if _, err := stmt.ExecContext(ctx, s.db); err != nil {
			return fmt.Errorf("update scan_cursor: %w", err)
		}
		return nil
	}

	stmt := schema.ScanCursorTable.
		INSERT(schema.ScanCursorAllColumns).
		MODEL(row)
	if _, err := stmt.ExecContext(ctx, s.db); err != nil {
		return fmt.Errorf("insert scan_cursor: %w", err)
	}
	return nil
}

// TouchCursor bumps last_scan_at without disturbing listing_hash, used when
// a folder scan ran but found the listing unchanged.
func (s *SQLite) TouchCursor(ctx context.Context, libraryID int64, folderPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmt := schema.ScanCursorTable.
		UPDATE(schema.ScanCursorLastScanCol).
		SET(sqlite.CURRENT_TIMESTAMP()).
		WHERE(schema.ScanCursorLibraryIDCol.EQ(sqlite.Int64(libraryID)).
			AND(schema.ScanCursorFolderPathCol.EQ(sqlite.String(folderPath))))

	_, err := stmt.ExecContext(ctx, s.db)
	return err
}
