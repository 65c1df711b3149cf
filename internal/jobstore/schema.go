package jobstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/cuongbtq/jobstore/internal/domain"
	"github.com/cuongbtq/jobstore/shared/database"
)

// DefaultTableName is used when Options.TableName is empty
const DefaultTableName = "scheduler_jobs"

// columns in insert/select order, id excluded
var columns = []string{
	"trigger",
	"func_ref",
	"args",
	"kwargs",
	"name",
	"misfire_grace_time",
	"max_runs",
	"max_concurrency",
	"next_run_time",
	"runs",
}

type dialect struct {
	name string
	// createTable is formatted with the qualified table name
	createTable string
	// isUniqueViolation reports whether err is the engine's unique constraint error
	isUniqueViolation func(err error) bool
}

var postgresDialect = dialect{
	name: database.DriverPostgres,
	createTable: fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %%s (
			"id" BIGSERIAL PRIMARY KEY,
			"trigger" BYTEA NOT NULL,
			"func_ref" VARCHAR(%d) NOT NULL,
			"args" BYTEA NOT NULL,
			"kwargs" BYTEA NOT NULL,
			"name" VARCHAR(%d) UNIQUE,
			"misfire_grace_time" INTEGER NOT NULL,
			"max_runs" INTEGER,
			"max_concurrency" INTEGER,
			"next_run_time" TIMESTAMPTZ NOT NULL,
			"runs" BIGINT DEFAULT 0
		)
	`, domain.MaxFuncRefLength, domain.MaxNameLength),
	isUniqueViolation: func(err error) bool {
		var pqErr *pq.Error
		return errors.As(err, &pqErr) && pqErr.Code == "23505"
	},
}

var sqliteDialect = dialect{
	name: database.DriverSQLite,
	createTable: fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %%s (
			"id" INTEGER PRIMARY KEY AUTOINCREMENT,
			"trigger" BLOB NOT NULL,
			"func_ref" VARCHAR(%d) NOT NULL,
			"args" BLOB NOT NULL,
			"kwargs" BLOB NOT NULL,
			"name" VARCHAR(%d) UNIQUE,
			"misfire_grace_time" INTEGER NOT NULL,
			"max_runs" INTEGER,
			"max_concurrency" INTEGER,
			"next_run_time" TIMESTAMP NOT NULL,
			"runs" BIGINT DEFAULT 0
		)
	`, domain.MaxFuncRefLength, domain.MaxNameLength),
	isUniqueViolation: func(err error) bool {
		var sqliteErr sqlite3.Error
		return errors.As(err, &sqliteErr) &&
			sqliteErr.Code == sqlite3.ErrConstraint &&
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	},
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case database.DriverPostgres, "pgx":
		return postgresDialect, nil
	case database.DriverSQLite, "sqlite":
		return sqliteDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func qualifiedTable(schema, table string) string {
	if schema == "" {
		return quoteIdent(table)
	}
	return quoteIdent(schema) + "." + quoteIdent(table)
}

func quotedColumns() string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

// provision creates the job table when it does not exist yet. An existing
// table is left untouched.
func (s *Store) provision(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(s.dialect.createTable, s.table)); err != nil {
		return err
	}
	return nil
}
