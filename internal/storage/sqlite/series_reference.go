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

type seriesReferenceRow struct {
	ID           int64
	LibraryID    int64
	TMDBID       *int64
	Title        string
	ThemeColor   *string
	Details      *string
	DetailState  string
	DiscoveredAt time.Time
	CreatedAt    time.Time
}

func (r seriesReferenceRow) toDomain() (domain.SeriesReference, error) {
	details, err := unmarshalJSON[domain.SeriesDetails](r.Details)
	if err != nil {
		return domain.SeriesReference{}, fmt.Errorf("decode series details: %w", err)
	}
	themeColor := ""
	if r.ThemeColor != nil {
		themeColor = *r.ThemeColor
	}
	return domain.SeriesReference{
		ID:           r.ID,
		LibraryID:    r.LibraryID,
		TMDBID:       r.TMDBID,
		Title:        r.Title,
		ThemeColor:   themeColor,
		Details:      details,
		DetailState:  domain.DetailsState(r.DetailState),
		DiscoveredAt: r.DiscoveredAt,
		CreatedAt:    r.CreatedAt,
	}, nil
}

func (s *SQLite) UpsertSeriesReference(ctx context.Context, ref domain.SeriesReference) (int64, error) {
	details, err := marshalJSON(ref.Details)
	if err != nil {
		return 0, err
	}

	row := seriesReferenceRow{
		LibraryID:   ref.LibraryID,
		TMDBID:      ref.TMDBID,
		Title:       ref.Title,
		ThemeColor:  nullableString(ref.ThemeColor),
		Details:     details,
		DetailState: string(ref.DetailState),
	}
	if row.DetailState == "" {
		row.DetailState = string(domain.DetailsStatePending)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ref.ID != 0 {
		stmt := schema.SeriesReferenceTable.
			UPDATE(schema.SeriesRefTitleCol, schema.SeriesRefThemeColorCol, schema.SeriesRefDetailsCol, schema.SeriesRefDetailStateCol, schema.SeriesRefTMDBIDCol).
			SET(row.Title, row.ThemeColor, row.Details, row.DetailState, row.TMDBID).
			WHERE(schema.SeriesRefIDCol.EQ(sqlite.Int64(ref.ID)))
		if _, err := stmt.ExecContext(ctx, s.db); err != nil {
			return 0, fmt.Errorf("update series_reference: %w", err)
		}
		return ref.ID, nil
	}

	// a TMDB-bound series is unique per (library_id, tmdb_id); an existing
	// row is refreshed in place so the id every season and episode points
	// at survives re-enrichment
	if ref.TMDBID != nil {
		var existing seriesReferenceRow
		err = sqlite.SELECT(schema.SeriesRefIDCol).
			FROM(schema.SeriesReferenceTable).
			WHERE(schema.SeriesRefLibraryIDCol.EQ(sqlite.Int64(ref.LibraryID)).
				AND(schema.SeriesRefTMDBIDCol.EQ(sqlite.Int64(*ref.TMDBID)))).
			QueryContext(ctx, s.db, &existing)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return 0, err
		}
		if err == nil {
			stmt := schema.SeriesReferenceTable.
				UPDATE(schema.SeriesRefTitleCol, schema.SeriesRefThemeColorCol, schema.SeriesRefDetailsCol, schema.SeriesRefDetailStateCol).
				SET(row.Title, row.ThemeColor, row.Details, row.DetailState).
				WHERE(schema.SeriesRefIDCol.EQ(sqlite.Int64(existing.ID)))
			if _, err := stmt.ExecContext(ctx, s.db); err != nil {
				return 0, fmt.Errorf("update series_reference: %w", err)
			}
			return existing.ID, nil
		}
	}

	stmt := schema.SeriesReferenceTable.
		INSERT(schema.SeriesReferenceAllColumns.Except(schema.SeriesRefIDCol, schema.SeriesRefCreatedCol, schema.SeriesRefDiscoveredCol)).
		MODEL(row).
		RETURNING(schema.SeriesRefIDCol)

	result, err := stmt.ExecContext(ctx, s.db)
	if err != nil {
		return 0, fmt.Errorf("insert series_reference: %w", err)
	}
	return result.LastInsertId()
}

func (s *SQLite) GetSeriesReferenceByTMDB(ctx context.Context, libraryID, tmdbID int64) (domain.SeriesReference, error) {
	stmt := sqlite.SELECT(schema.SeriesReferenceAllColumns).
		FROM(schema.SeriesReferenceTable).
		WHERE(schema.SeriesRefLibraryIDCol.EQ(sqlite.Int64(libraryID)).
			AND(schema.SeriesRefTMDBIDCol.EQ(sqlite.Int64(tmdbID))))

	var row seriesReferenceRow
	err := stmt.QueryContext(ctx, s.db, &row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SeriesReference{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.SeriesReference{}, err
	}
	return row.toDomain()
}

// FindSeriesReference locates a series by title before any TMDB lookup,
// the cheap path episode reconciliation takes on every rescan of an
// already-identified show.
func (s *SQLite) FindSeriesReference(ctx context.Context, libraryID int64, clues storage.SeriesClues) (domain.SeriesReference, error) {
	stmt := sqlite.SELECT(schema.SeriesReferenceAllColumns).
		FROM(schema.SeriesReferenceTable).
		WHERE(schema.SeriesRefLibraryIDCol.EQ(sqlite.Int64(libraryID)).
			AND(schema.SeriesRefTitleCol.EQ(sqlite.String(clues.Title)))).
		LIMIT(1)

	var row seriesReferenceRow
	err := stmt.QueryContext(ctx, s.db, &row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SeriesReference{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.SeriesReference{}, err
	}
	return row.toDomain()
}
