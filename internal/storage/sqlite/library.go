package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-jet/jet/v2/sqlite"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/storage"
	"github.com/arcstream/arcstream/internal/storage/sqlite/schema"
)

// libraryRow is the flat scan target jet populates by column-name matching;
// paths is stored as one string joined on the \x1f unit separator since a
// library root list is small and never queried on.
type libraryRow struct {
	ID                  int64
	Name                string
	Kind                string
	Paths               string
	ScanIntervalMinutes int32
	Enabled             bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (r libraryRow) toDomain() domain.Library {
	var paths []string
	if r.Paths != "" {
		paths = strings.Split(r.Paths, "\x1f")
	}
	return domain.Library{
		ID:                  r.ID,
		Name:                r.Name,
		Kind:                domain.LibraryKind(r.Kind),
		Paths:               paths,
		ScanIntervalMinutes: int(r.ScanIntervalMinutes),
		Enabled:             r.Enabled,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func (s *SQLite) CreateLibrary(ctx context.Context, lib domain.Library) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := libraryRow{
		Name:                lib.Name,
		Kind:                string(lib.Kind),
		Paths:               strings.Join(lib.Paths, "\x1f"),
		ScanIntervalMinutes: int32(lib.ScanIntervalMinutes),
		Enabled:             lib.Enabled,
	}

	stmt := schema.LibraryTable.
		INSERT(schema.LibraryAllColumns.Except(schema.LibraryIDCol, schema.LibraryCreatedCol, schema.LibraryUpdatedCol)).
		MODEL(row).
		RETURNING(schema.LibraryIDCol)

	result, err := stmt.ExecContext(ctx, s.db)
	if err != nil {
		return 0, fmt.Errorf("create library: %w", err)
	}
	return result.LastInsertId()
}

func (s *SQLite) UpdateLibrary(ctx context.Context, lib domain.Library) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmt := schema.LibraryTable.
		UPDATE(schema.LibraryNameCol, schema.LibraryKindCol, schema.LibraryPathsCol, schema.LibraryIntervalCol, schema.LibraryEnabledCol, schema.LibraryUpdatedCol).
		SET(
			sqlite.String(lib.Name),
			sqlite.String(string(lib.Kind)),
			sqlite.String(strings.Join(lib.Paths, "\x1f")),
			sqlite.Int32(int32(lib.ScanIntervalMinutes)),
			sqlite.Bool(lib.Enabled),
			sqlite.CURRENT_TIMESTAMP(),
		).
		WHERE(schema.LibraryIDCol.EQ(sqlite.Int64(lib.ID)))

	_, err := stmt.ExecContext(ctx, s.db)
	return err
}

func (s *SQLite) DeleteLibrary(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmt := schema.LibraryTable.DELETE().WHERE(schema.LibraryIDCol.EQ(sqlite.Int64(id)))
	_, err := stmt.ExecContext(ctx, s.db)
	return err
}

func (s *SQLite) GetLibrary(ctx context.Context, id int64) (domain.Library, error) {
	stmt := sqlite.SELECT(schema.LibraryAllColumns).
		FROM(schema.LibraryTable).
		WHERE(schema.LibraryIDCol.EQ(sqlite.Int64(id)))

	var row libraryRow
	err := stmt.QueryContext(ctx, s.db, &row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Library{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Library{}, err
	}
	return row.toDomain(), nil
}

func (s *SQLite) ListLibraries(ctx context.Context) ([]domain.Library, error) {
	stmt := sqlite.SELECT(schema.LibraryAllColumns).
		FROM(schema.LibraryTable).
		ORDER_BY(schema.LibraryIDCol.ASC())

	var rows []libraryRow
	if err := stmt.QueryContext(ctx, s.db, &rows); err != nil {
		return nil, err
	}

	out := make([]domain.Library, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
