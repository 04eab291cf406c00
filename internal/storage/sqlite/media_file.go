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

type mediaFileRow struct {
	ID                int64
	LibraryID         int64
	Path              string
	Filename          string
	Size              int64
	DiscoveredAt      time.Time
	CreatedAt         time.Time
	TechnicalMetadata *string
	ParsedInfo        *string
	DeviceID          int64
	Inode             int64
	ModTime           int64
	WeakHash          int64
}

func (r mediaFileRow) toDomain() (domain.MediaFile, error) {
	tm, err := unmarshalJSON[domain.TechnicalMetadata](r.TechnicalMetadata)
	if err != nil {
		return domain.MediaFile{}, fmt.Errorf("decode technical_metadata: %w", err)
	}
	pi, err := unmarshalJSON[domain.ParsedInfo](r.ParsedInfo)
	if err != nil {
		return domain.MediaFile{}, fmt.Errorf("decode parsed_info: %w", err)
	}

	return domain.MediaFile{
		ID:                r.ID,
		LibraryID:         r.LibraryID,
		Path:              r.Path,
		Filename:          r.Filename,
		Size:              r.Size,
		DiscoveredAt:      r.DiscoveredAt,
		CreatedAt:         r.CreatedAt,
		TechnicalMetadata: tm,
		ParsedInfo:        pi,
		Fingerprint: domain.Fingerprint{
			DeviceID: uint64(r.DeviceID),
			Inode:    uint64(r.Inode),
			Size:     r.Size,
			ModTime:  r.ModTime,
			WeakHash: uint64(r.WeakHash),
		},
	}, nil
}

// UpsertMediaFile inserts f, or updates the existing row for the same path
// while keeping its id, per the MediaFileStore contract: a rescan must never
// fork a second row for a file already tracked under the same path.
func (s *SQLite) UpsertMediaFile(ctx context.Context, f domain.MediaFile) (int64, error) {
	techMeta, err := marshalJSON(f.TechnicalMetadata)
	if err != nil {
		return 0, err
	}
	parsedInfo, err := marshalJSON(f.ParsedInfo)
	if err != nil {
		return 0, err
	}

	row := mediaFileRow{
		LibraryID:         f.LibraryID,
		Path:              f.Path,
		Filename:          f.Filename,
		Size:              f.Size,
		DiscoveredAt:      f.DiscoveredAt,
		TechnicalMetadata: techMeta,
		ParsedInfo:        parsedInfo,
		DeviceID:          int64(f.Fingerprint.DeviceID),
		Inode:             int64(f.Fingerprint.Inode),
		ModTime:           f.Fingerprint.ModTime,
		WeakHash:          int64(f.Fingerprint.WeakHash),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing mediaFileRow
	err = sqlite.SELECT(schema.MediaFileIDCol).
		FROM(schema.MediaFileTable).
		WHERE(schema.MediaFilePathCol.EQ(sqlite.String(f.Path))).
		QueryContext(ctx, s.db, &existing)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	if err == nil {
		stmt := schema.MediaFileTable.
			UPDATE(schema.MediaFileLibraryIDCol, schema.MediaFileFilenameCol, schema.MediaFileSizeCol, schema.MediaFileDiscoveredCol, schema.MediaFileTechMetaCol, schema.MediaFileParsedInfoCol, schema.MediaFileDeviceIDCol, schema.MediaFileInodeCol, schema.MediaFileModTimeCol, schema.MediaFileWeakHashCol).
			SET(row.LibraryID, row.Filename, row.Size, row.DiscoveredAt, row.TechnicalMetadata, row.ParsedInfo, row.DeviceID, row.Inode, row.ModTime, row.WeakHash).
			WHERE(schema.MediaFileIDCol.EQ(sqlite.Int64(existing.ID)))
		if _, err := stmt.ExecContext(ctx, s.db); err != nil {
			return 0, fmt.Errorf("update media_file: %w", err)
		}
		return existing.ID, nil
	}

	stmt := schema.MediaFileTable.
		INSERT(schema.MediaFileAllColumns.Except(schema.MediaFileIDCol, schema.MediaFileCreatedCol)).
		MODEL(row).
		RETURNING(schema.MediaFileIDCol)

	result, err := stmt.ExecContext(ctx, s.db)
	if err != nil {
		return 0, fmt.Errorf("insert media_file: %w", err)
	}
	return result.LastInsertId()
}

func (s *SQLite) GetMediaFileByPath(ctx context.Context, libraryID int64, path string) (domain.MediaFile, error) {
	stmt := sqlite.SELECT(schema.MediaFileAllColumns).
		FROM(schema.MediaFileTable).
		WHERE(schema.MediaFileLibraryIDCol.EQ(sqlite.Int64(libraryID)).
			AND(schema.MediaFilePathCol.EQ(sqlite.String(path))))

	var row mediaFileRow
	err := stmt.QueryContext(ctx, s.db, &row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MediaFile{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.MediaFile{}, err
	}
	return row.toDomain()
}

func (s *SQLite) GetMediaFile(ctx context.Context, id int64) (domain.MediaFile, error) {
	stmt := sqlite.SELECT(schema.MediaFileAllColumns).
		FROM(schema.MediaFileTable).
		WHERE(schema.MediaFileIDCol.EQ(sqlite.Int64(id)))

	var row mediaFileRow
	err := stmt.QueryContext(ctx, s.db, &row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MediaFile{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.MediaFile{}, err
	}
	return row.toDomain()
}
