package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-jet/jet/v2/sqlite"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/storage/sqlite/schema"
)

type personRow struct {
	TMDBID             int64
	Name               string
	Aliases            *string
	KnownForDepartment *string
	ProfilePath        *string
	ExternalIDs        *string
}

// UpsertPerson writes or refreshes a cast/crew member, keyed by TMDB id so
// the same actor appearing on multiple titles resolves to one row.
func (s *SQLite) UpsertPerson(ctx context.Context, p domain.Person) error {
	aliases, err := json.Marshal(p.Aliases)
	if err != nil {
		return err
	}
	external, err := json.Marshal(p.External)
	if err != nil {
		return err
	}
	aliasesStr := string(aliases)
	externalStr := string(external)

	row := personRow{
		TMDBID:             p.TMDBID,
		Name:                p.Name,
		Aliases:             &aliasesStr,
		KnownForDepartment:  nullableString(p.KnownForDepartment),
		ProfilePath:         nullableString(p.ProfilePath),
		ExternalIDs:         &externalStr,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing personRow
	err = sqlite.SELECT(schema.PersonTMDBIDCol).
		FROM(schema.PersonTable).
		WHERE(schema.PersonTMDBIDCol.EQ(sqlite.Int64(p.TMDBID))).
		QueryContext(ctx, s.db, &existing)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if err == nil {
		stmt := schema.PersonTable.
			UPDATE(schema.PersonNameCol, schema.PersonAliasesCol, schema.PersonDeptCol, schema.PersonProfileCol, schema.PersonExternalCol).
			SET(row.Name, row.Aliases, row.KnownForDepartment, row.ProfilePath, row.ExternalIDs).
			WHERE(schema.PersonTMDBIDCol.EQ(sqlite.Int64(p.TMDBID)))
		if _, err := stmt.ExecContext(ctx, s.db); err != nil {
			return fmt.Errorf("update person: %w", err)
		}
		return nil
	}

	stmt := schema.PersonTable.
		INSERT(schema.PersonAllColumns).
		MODEL(row)
	if _, err := stmt.ExecContext(ctx, s.db); err != nil {
		return fmt.Errorf("insert person: %w", err)
	}
	return nil
}
