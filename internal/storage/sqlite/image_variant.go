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

type imageVariantRow struct {
	IID         string
	MediaID     int64
	MediaType   string
	TMDBPath    string
	Width       int32
	Height      int32
	Language    *string
	VoteAverage float64
	VoteCount   int32
	SizeClass   string
	IsPrimary   bool
}

func (r imageVariantRow) toDomain() domain.ImageVariant {
	lang := ""
	if r.Language != nil {
		lang = *r.Language
	}
	return domain.ImageVariant{
		IID:         r.IID,
		MediaID:     r.MediaID,
		MediaType:   domain.MediaType(r.MediaType),
		TMDBPath:    r.TMDBPath,
		Width:       int(r.Width),
		Height:      int(r.Height),
		Language:    lang,
		VoteAverage: r.VoteAverage,
		VoteCount:   int(r.VoteCount),
		SizeClass:   domain.ImageSizeClass(r.SizeClass),
		IsPrimary:   r.IsPrimary,
	}
}

func fromDomainImageVariant(v domain.ImageVariant) imageVariantRow {
	return imageVariantRow{
		IID:         v.IID,
		MediaID:     v.MediaID,
		MediaType:   string(v.MediaType),
		TMDBPath:    v.TMDBPath,
		Width:       int32(v.Width),
		Height:      int32(v.Height),
		Language:    nullableString(v.Language),
		VoteAverage: v.VoteAverage,
		VoteCount:   int32(v.VoteCount),
		SizeClass:   string(v.SizeClass),
		IsPrimary:   v.IsPrimary,
	}
}

// ReplaceImageVariants deletes the existing variant set for (mediaID,
// mediaType) and re-inserts the supplied set in a single transaction. Full
// replacement, rather than incremental diffing, is what keeps the primary
// selection idempotent across re-enrichment: the set TMDB returns today is
// the truth, and anything from a prior run that isn't in it anymore is
// stale.
func (s *SQLite) ReplaceImageVariants(ctx context.Context, mediaID int64, mediaType domain.MediaType, variants []domain.ImageVariant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	delStmt := schema.ImageVariantTable.DELETE().
		WHERE(schema.ImageVariantMediaIDCol.EQ(sqlite.Int64(mediaID)).
			AND(schema.ImageVariantMediaTypeCol.EQ(sqlite.String(string(mediaType)))))
	if _, err := delStmt.ExecContext(ctx, tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("delete image_variant: %w", err)
	}

	for _, v := range variants {
		row := fromDomainImageVariant(v)
		insStmt := schema.ImageVariantTable.
			INSERT(schema.ImageVariantAllColumns).
			MODEL(row)
		if _, err := insStmt.ExecContext(ctx, tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert image_variant: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLite) ListImageVariants(ctx context.Context, mediaID int64, mediaType domain.MediaType) ([]domain.ImageVariant, error) {
	stmt := sqlite.SELECT(schema.ImageVariantAllColumns).
		FROM(schema.ImageVariantTable).
		WHERE(schema.ImageVariantMediaIDCol.EQ(sqlite.Int64(mediaID)).
			AND(schema.ImageVariantMediaTypeCol.EQ(sqlite.String(string(mediaType))))).
		ORDER_BY(schema.ImageVariantSizeClassCol.ASC(), schema.ImageVariantIsPrimaryCol.DESC())

	var rows []imageVariantRow
	if err := stmt.QueryContext(ctx, s.db, &rows); err != nil {
		return nil, err
	}

	out := make([]domain.ImageVariant, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *SQLite) GetImageVariant(ctx context.Context, iid string) (domain.ImageVariant, error) {
	stmt := sqlite.SELECT(schema.ImageVariantAllColumns).
		FROM(schema.ImageVariantTable).
		WHERE(schema.ImageVariantIIDCol.EQ(sqlite.String(iid)))

	var row imageVariantRow
	err := stmt.QueryContext(ctx, s.db, &row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ImageVariant{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.ImageVariant{}, err
	}
	return row.toDomain(), nil
}
