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

type episodeReferenceRow struct {
	ID            int64
	LibraryID     int64
	SeriesID      int64
	SeasonID      int64
	TMDBSeriesID  int64
	SeasonNumber  int32
	EpisodeNumber int32
	FileID        *int64
	Details       *string
	DetailState   string
}

func (r episodeReferenceRow) toDomain() (domain.EpisodeReference, error) {
	details, err := unmarshalJSON[domain.EpisodeDetails](r.Details)
	if err != nil {
		return domain.EpisodeReference{}, fmt.Errorf("decode episode details: %w", err)
	}
	return domain.EpisodeReference{
		ID:            r.ID,
		LibraryID:     r.LibraryID,
		SeriesID:      r.SeriesID,
		SeasonID:      r.SeasonID,
		TMDBSeriesID:  r.TMDBSeriesID,
		SeasonNumber:  int(r.SeasonNumber),
		EpisodeNumber: int(r.EpisodeNumber),
		FileID:        r.FileID,
		Details:       details,
		DetailState:   domain.DetailsState(r.DetailState),
	}, nil
}

func (s *SQLite) UpsertEpisodeReference(ctx context.Context, ref domain.EpisodeReference) (int64, error) {
	details, err := marshalJSON(ref.Details)
	if err != nil {
		return 0, err
	}

	row := episodeReferenceRow{
		LibraryID:     ref.LibraryID,
		SeriesID:      ref.SeriesID,
		SeasonID:      ref.SeasonID,
		TMDBSeriesID:  ref.TMDBSeriesID,
		SeasonNumber:  int32(ref.SeasonNumber),
		EpisodeNumber: int32(ref.EpisodeNumber),
		FileID:        ref.FileID,
		Details:       details,
		DetailState:   string(ref.DetailState),
	}
	if row.DetailState == "" {
		row.DetailState = string(domain.DetailsStatePending)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing episodeReferenceRow
	err = sqlite.SELECT(schema.EpisodeRefIDCol).
		FROM(schema.EpisodeReferenceTable).
		WHERE(schema.EpisodeRefSeriesIDCol.EQ(sqlite.Int64(ref.SeriesID)).
			AND(schema.EpisodeRefSeasonNumCol.EQ(sqlite.Int32(int32(ref.SeasonNumber)))).
			AND(schema.EpisodeRefEpisodeNumCol.EQ(sqlite.Int32(int32(ref.EpisodeNumber))))).
		QueryContext(ctx, s.db, &existing)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	if err == nil {
		stmt := schema.EpisodeReferenceTable.
			UPDATE(schema.EpisodeRefSeasonIDCol, schema.EpisodeRefTMDBSeriesIDCol, schema.EpisodeRefFileIDCol, schema.EpisodeRefDetailsCol, schema.EpisodeRefDetailStateCol).
			SET(row.SeasonID, row.TMDBSeriesID, row.FileID, row.Details, row.DetailState).
			WHERE(schema.EpisodeRefIDCol.EQ(sqlite.Int64(existing.ID)))
		if _, err := stmt.ExecContext(ctx, s.db); err != nil {
			return 0, fmt.Errorf("update episode_reference: %w", err)
		}
		return existing.ID, nil
	}

	stmt := schema.EpisodeReferenceTable.
		INSERT(schema.EpisodeReferenceAllColumns.Except(schema.EpisodeRefIDCol)).
		MODEL(row).
		RETURNING(schema.EpisodeRefIDCol)

	result, err := stmt.ExecContext(ctx, s.db)
	if err != nil {
		return 0, fmt.Errorf("insert episode_reference: %w", err)
	}
	return result.LastInsertId()
}

func (s *SQLite) GetEpisodeReference(ctx context.Context, seriesID int64, seasonNumber, episodeNumber int) (domain.EpisodeReference, error) {
	stmt := sqlite.SELECT(schema.EpisodeReferenceAllColumns).
		FROM(schema.EpisodeReferenceTable).
		WHERE(schema.EpisodeRefSeriesIDCol.EQ(sqlite.Int64(seriesID)).
			AND(schema.EpisodeRefSeasonNumCol.EQ(sqlite.Int32(int32(seasonNumber)))).
			AND(schema.EpisodeRefEpisodeNumCol.EQ(sqlite.Int32(int32(episodeNumber)))))

	var row episodeReferenceRow
	err := stmt.QueryContext(ctx, s.db, &row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EpisodeReference{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.EpisodeReference{}, err
	}
	return row.toDomain()
}
