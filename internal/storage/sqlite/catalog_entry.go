package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-jet/jet/v2/sqlite"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/storage"
	"github.com/arcstream/arcstream/internal/storage/sqlite/schema"
)

type catalogEntryRow struct {
	ID             int64
	LibraryID      int64
	MediaType      string
	Title          string
	ShowTitle      string
	Season         int32
	Episode        int32
	PosterIID      *string
	BackdropIID    *string
	Path           string
	Fingerprint    string
	IdempotencyKey string
}

func (r catalogEntryRow) toDomain() storage.CatalogEntry {
	entry := storage.CatalogEntry{
		ID:          r.ID,
		LibraryID:   r.LibraryID,
		MediaType:   domain.MediaType(r.MediaType),
		Title:       r.Title,
		ShowTitle:   r.ShowTitle,
		Season:      int(r.Season),
		Episode:     int(r.Episode),
		Path:        r.Path,
		Fingerprint: r.Fingerprint,
	}
	if r.PosterIID != nil {
		entry.PosterIID = *r.PosterIID
	}
	if r.BackdropIID != nil {
		entry.BackdropIID = *r.BackdropIID
	}
	return entry
}

// UpsertCatalogEntry writes the serving-side projection row and reports
// whether anything changed, keyed by the caller's idempotency key.
func (s *SQLite) UpsertCatalogEntry(ctx context.Context, idempotencyKey string, entry storage.CatalogEntry) (storage.CatalogEntryChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existingStmt := sqlite.SELECT(schema.CatalogEntryAllColumns).
		FROM(schema.CatalogEntryTable).
		WHERE(schema.CatalogEntryIdempotencyKeyCol.EQ(sqlite.String(idempotencyKey)))

	var existing catalogEntryRow
	err := existingStmt.QueryContext(ctx, s.db, &existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// fresh row
	case err != nil:
		return "", err
	case existing.Fingerprint == entry.Fingerprint:
		return storage.CatalogEntryUnchanged, nil
	}

	row := catalogEntryRow{
		LibraryID:      entry.LibraryID,
		MediaType:      string(entry.MediaType),
		Title:          entry.Title,
		ShowTitle:      entry.ShowTitle,
		Season:         int32(entry.Season),
		Episode:        int32(entry.Episode),
		PosterIID:      nullableString(entry.PosterIID),
		BackdropIID:    nullableString(entry.BackdropIID),
		Path:           entry.Path,
		Fingerprint:    entry.Fingerprint,
		IdempotencyKey: idempotencyKey,
	}

	if errors.Is(err, sql.ErrNoRows) {
		stmt := schema.CatalogEntryTable.
			INSERT(schema.CatalogEntryAllColumns.Except(schema.CatalogEntryIDCol)).
			MODEL(row)
		if _, err := stmt.ExecContext(ctx, s.db); err != nil {
			return "", fmt.Errorf("insert catalog_entry: %w", err)
		}
		return storage.CatalogEntryCreated, nil
	}

	stmt := schema.CatalogEntryTable.
		UPDATE(schema.CatalogEntryLibraryIDCol, schema.CatalogEntryMediaTypeCol, schema.CatalogEntryTitleCol, schema.CatalogEntryShowTitleCol, schema.CatalogEntrySeasonCol, schema.CatalogEntryEpisodeCol, schema.CatalogEntryPosterIIDCol, schema.CatalogEntryBackdropIIDCol, schema.CatalogEntryPathCol, schema.CatalogEntryFingerprintCol).
		SET(row.LibraryID, row.MediaType, row.Title, row.ShowTitle, row.Season, row.Episode, row.PosterIID, row.BackdropIID, row.Path, row.Fingerprint).
		WHERE(schema.CatalogEntryIdempotencyKeyCol.EQ(sqlite.String(idempotencyKey)))
	if _, err := stmt.ExecContext(ctx, s.db); err != nil {
		return "", fmt.Errorf("update catalog_entry: %w", err)
	}
	return storage.CatalogEntryUpdated, nil
}

// QueryCatalog is the read side of GET /library.
func (s *SQLite) QueryCatalog(ctx context.Context, q storage.CatalogQuery) ([]storage.CatalogEntry, error) {
	cond := sqlite.Bool(true)
	if q.LibraryID != 0 {
		cond = cond.AND(schema.CatalogEntryLibraryIDCol.EQ(sqlite.Int64(q.LibraryID)))
	}
	if q.MediaType != "" {
		cond = cond.AND(schema.CatalogEntryMediaTypeCol.EQ(sqlite.String(q.MediaType)))
	}
	if q.ShowName != "" {
		cond = cond.AND(schema.CatalogEntryShowTitleCol.EQ(sqlite.String(q.ShowName)))
	}
	if q.Season != nil {
		cond = cond.AND(schema.CatalogEntrySeasonCol.EQ(sqlite.Int32(int32(*q.Season))))
	}

	order := []sqlite.OrderByClause{schema.CatalogEntryTitleCol.ASC()}
	switch q.OrderBy {
	case "show":
		order = []sqlite.OrderByClause{
			schema.CatalogEntryShowTitleCol.ASC(),
			schema.CatalogEntrySeasonCol.ASC(),
			schema.CatalogEntryEpisodeCol.ASC(),
		}
	case "recent":
		order = []sqlite.OrderByClause{schema.CatalogEntryIDCol.DESC()}
	}

	limit := int64(q.Limit)
	if limit <= 0 {
		limit = 200
	}

	stmt := sqlite.SELECT(schema.CatalogEntryAllColumns).
		FROM(schema.CatalogEntryTable).
		WHERE(cond).
		ORDER_BY(order...).
		LIMIT(limit)

	var rows []catalogEntryRow
	if err := stmt.QueryContext(ctx, s.db, &rows); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	entries := make([]storage.CatalogEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toDomain())
	}
	return entries, nil
}
