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

type seasonReferenceRow struct {
	ID           int64
	LibraryID    int64
	SeriesID     int64
	SeasonNumber int32
	TMDBSeriesID int64
	Details      *string
	DetailState  string
}

func (r seasonReferenceRow) toDomain() (domain.SeasonReference, error) {
	details, err := unmarshalJSON[domain.SeasonDetails](r.Details)
	if err != nil {
		return domain.SeasonReference{}, fmt.Errorf("decode season details: %w", err)
	}
	return domain.SeasonReference{
		ID:           r.ID,
		LibraryID:    r.LibraryID,
		SeriesID:     r.SeriesID,
		SeasonNumber: int(r.SeasonNumber),
		TMDBSeriesID: r.TMDBSeriesID,
		Details:      details,
		DetailState:  domain.DetailsState(r.DetailState),
	}, nil
}

func (s *SQLite) UpsertSeasonReference(ctx context.Context, ref domain.SeasonReference) (int64, error) {
	details, err := marshalJSON(ref.Details)
	if err != nil {
		return 0, err
	}

	row := seasonReferenceRow{
		LibraryID:    ref.LibraryID,
		SeriesID:     ref.SeriesID,
		SeasonNumber: int32(ref.SeasonNumber),
		TMDBSeriesID: ref.TMDBSeriesID,
		Details:      details,
		DetailState:  string(ref.DetailState),
	}
	if row.DetailState == "" {
		row.DetailState = string(domain.DetailsStatePending)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing seasonReferenceRow
	err = sqlite.SELECT(schema.SeasonRefIDCol).
		FROM(schema.SeasonReferenceTable).
		WHERE(schema.SeasonRefSeriesIDCol.EQ(sqlite.Int64(ref.SeriesID)).
			AND(schema.SeasonRefNumberCol.EQ(sqlite.Int32(int32(ref.SeasonNumber))))).
		QueryContext(ctx, s.db, &existing)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	if err == nil {
		stmt := schema.SeasonReferenceTable.
			UPDATE(schema.SeasonRefTMDBSeriesIDCol, schema.SeasonRefDetailsCol, schema.SeasonRefDetailStateCol).
			SET(row.TMDBSeriesID, row.Details, row.DetailState).
			WHERE(schema.SeasonRefIDCol.EQ(sqlite.Int64(existing.ID)))
		if _, err := stmt.ExecContext(ctx, s.db); err != nil {
			return 0, fmt.Errorf("update season_reference: %w", err)
		}
		return existing.ID, nil
	}

	stmt := schema.SeasonReferenceTable.
		INSERT(schema.SeasonReferenceAllColumns.Except(schema.SeasonRefIDCol)).
		MODEL(row).
		RETURNING(schema.SeasonRefIDCol)

	result, err := stmt.ExecContext(ctx, s.db)
	if err != nil {
		return 0, fmt.Errorf("insert season_reference: %w", err)
	}
	return result.LastInsertId()
}

func (s *SQLite) GetSeasonReference(ctx context.Context, seriesID int64, seasonNumber int) (domain.SeasonReference, error) {
	stmt := sqlite.SELECT(schema.SeasonReferenceAllColumns).
		FROM(schema.SeasonReferenceTable).
		WHERE(schema.SeasonRefSeriesIDCol.EQ(sqlite.Int64(seriesID)).
			AND(schema.SeasonRefNumberCol.EQ(sqlite.Int32(int32(seasonNumber)))))

	var row seasonReferenceRow
	err := stmt.QueryContext(ctx, s.db, &row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SeasonReference{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.SeasonReference{}, err
	}
	return row.toDomain()
}
