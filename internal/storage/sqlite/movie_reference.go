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

type movieReferenceRow struct {
	ID          int64
	LibraryID   int64
	TMDBID      int64
	Title       string
	ThemeColor  *string
	FileID      *int64
	Details     *string
	DetailState string
	CreatedAt   time.Time
}

func (r movieReferenceRow) toDomain() (domain.MovieReference, error) {
	details, err := unmarshalJSON[domain.MovieDetails](r.Details)
	if err != nil {
		return domain.MovieReference{}, fmt.Errorf("decode movie details: %w", err)
	}
	themeColor := ""
	if r.ThemeColor != nil {
		themeColor = *r.ThemeColor
	}
	return domain.MovieReference{
		ID:          r.ID,
		LibraryID:   r.LibraryID,
		TMDBID:      r.TMDBID,
		Title:       r.Title,
		ThemeColor:  themeColor,
		FileID:      r.FileID,
		Details:     details,
		DetailState: domain.DetailsState(r.DetailState),
		CreatedAt:   r.CreatedAt,
	}, nil
}

// UpsertMovieReference inserts ref, or updates it in place when a row
// already exists for the same (library, tmdb_id), matching the unique
// partial index that guards a movie from being identified twice.
func (s *SQLite) UpsertMovieReference(ctx context.Context, ref domain.MovieReference) (int64, error) {
	details, err := marshalJSON(ref.Details)
	if err != nil {
		return 0, err
	}

	row := movieReferenceRow{
		LibraryID:   ref.LibraryID,
		TMDBID:      ref.TMDBID,
		Title:       ref.Title,
		ThemeColor:  nullableString(ref.ThemeColor),
		FileID:      ref.FileID,
		Details:     details,
		DetailState: string(ref.DetailState),
	}
	if ref.DetailState == "" {
		row.DetailState = string(domain.DetailsStatePending)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ref.ID != 0 {
		stmt := schema.MovieReferenceTable.
			UPDATE(schema.MovieRefTitleCol, schema.MovieRefThemeColorCol, schema.MovieRefFileIDCol, schema.MovieRefDetailsCol, schema.MovieRefDetailStateCol, schema.MovieRefTMDBIDCol).
			SET(row.Title, row.ThemeColor, row.FileID, row.Details, row.DetailState, row.TMDBID).
			WHERE(schema.MovieRefIDCol.EQ(sqlite.Int64(ref.ID)))
		if _, err := stmt.ExecContext(ctx, s.db); err != nil {
			return 0, fmt.Errorf("update movie_reference: %w", err)
		}
		return ref.ID, nil
	}

	// uniqueness is (tmdb_id, library_id) for identified movies and
	// (file_id) for the placeholder rows with tmdb_id = 0; an existing row
	// is updated in place so its id survives re-identification
	existingCond := schema.MovieRefLibraryIDCol.EQ(sqlite.Int64(ref.LibraryID)).
		AND(schema.MovieRefTMDBIDCol.EQ(sqlite.Int64(ref.TMDBID)))
	if ref.TMDBID == 0 && ref.FileID != nil {
		existingCond = schema.MovieRefTMDBIDCol.EQ(sqlite.Int64(0)).
			AND(schema.MovieRefFileIDCol.EQ(sqlite.Int64(*ref.FileID)))
	}

	var existing movieReferenceRow
	err = sqlite.SELECT(schema.MovieRefIDCol).
		FROM(schema.MovieReferenceTable).
		WHERE(existingCond).
		QueryContext(ctx, s.db, &existing)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	if err == nil {
		stmt := schema.MovieReferenceTable.
			UPDATE(schema.MovieRefTitleCol, schema.MovieRefThemeColorCol, schema.MovieRefFileIDCol, schema.MovieRefDetailsCol, schema.MovieRefDetailStateCol, schema.MovieRefTMDBIDCol).
			SET(row.Title, row.ThemeColor, row.FileID, row.Details, row.DetailState, row.TMDBID).
			WHERE(schema.MovieRefIDCol.EQ(sqlite.Int64(existing.ID)))
		if _, err := stmt.ExecContext(ctx, s.db); err != nil {
			return 0, fmt.Errorf("update movie_reference: %w", err)
		}
		return existing.ID, nil
	}

	stmt := schema.MovieReferenceTable.
		INSERT(schema.MovieReferenceAllColumns.Except(schema.MovieRefIDCol, schema.MovieRefCreatedCol)).
		MODEL(row).
		RETURNING(schema.MovieRefIDCol)

	result, err := stmt.ExecContext(ctx, s.db)
	if err != nil {
		return 0, fmt.Errorf("insert movie_reference: %w", err)
	}
	return result.LastInsertId()
}

func (s *SQLite) GetMovieReferenceByTMDB(ctx context.Context, libraryID, tmdbID int64) (domain.MovieReference, error) {
	stmt := sqlite.SELECT(schema.MovieReferenceAllColumns).
		FROM(schema.MovieReferenceTable).
		WHERE(schema.MovieRefLibraryIDCol.EQ(sqlite.Int64(libraryID)).
			AND(schema.MovieRefTMDBIDCol.EQ(sqlite.Int64(tmdbID))))

	var row movieReferenceRow
	err := stmt.QueryContext(ctx, s.db, &row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MovieReference{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.MovieReference{}, err
	}
	return row.toDomain()
}

func (s *SQLite) GetMovieReferenceByFile(ctx context.Context, fileID int64) (domain.MovieReference, error) {
	stmt := sqlite.SELECT(schema.MovieReferenceAllColumns).
		FROM(schema.MovieReferenceTable).
		WHERE(schema.MovieRefFileIDCol.EQ(sqlite.Int64(fileID)))

	var row movieReferenceRow
	err := stmt.QueryContext(ctx, s.db, &row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MovieReference{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.MovieReference{}, err
	}
	return row.toDomain()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
