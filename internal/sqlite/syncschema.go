package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/myrjola/noirline/internal/errors"
	"github.com/myrjola/noirline/internal/random"
)

// migrateTo makes the database schema match schemaDefinition declaratively:
//
//  1. indexes, triggers and views that are gone or changed are dropped,
//  2. tables that are gone are dropped and new tables are created,
//  3. changed tables are rebuilt keeping the data of their common columns,
//  4. missing indexes, triggers and views are created.
//
// Table rebuilds follow https://www.sqlite.org/lang_altertable.html#otheralter. The approach is described in
// https://david.rothlis.net/declarative-schema-migration-for-sqlite/.
func (db *Database) migrateTo(ctx context.Context, schemaDefinition string) (err error) {
	// The target schema is created in a scratch in-memory database and attached for comparison.
	const nameLength = 20
	targetName, err := random.Letters(nameLength)
	if err != nil {
		return errors.Wrap(err, "generate target database name")
	}
	targetDSN := fmt.Sprintf("file:%s?mode=memory&cache=shared", targetName)
	target, err := sql.Open("sqlite3", targetDSN)
	if err != nil {
		return errors.Wrap(err, "open target database")
	}
	defer func() {
		err = errors.Join(err, target.Close())
	}()
	target.SetMaxOpenConns(1)
	if _, err = target.ExecContext(ctx, schemaDefinition); err != nil {
		return errors.Wrap(err, "create target schema")
	}

	// PRAGMA and ATTACH are connection state, so everything runs on one connection outside of the transaction.
	conn, err := db.ReadWrite.Conn(ctx)
	if err != nil {
		return errors.Wrap(err, "acquire connection")
	}
	defer func() {
		err = errors.Join(err, conn.Close())
	}()

	if _, err = conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return errors.Wrap(err, "disable foreign keys")
	}
	defer func() {
		_, fkErr := conn.ExecContext(context.WithoutCancel(ctx), "PRAGMA foreign_keys = ON")
		err = errors.Join(err, errors.Wrap(fkErr, "re-enable foreign keys"))
	}()

	if _, err = conn.ExecContext(ctx, "ATTACH DATABASE ? AS target", targetDSN); err != nil {
		return errors.Wrap(err, "attach target database")
	}
	defer func() {
		_, detachErr := conn.ExecContext(context.WithoutCancel(ctx), "DETACH DATABASE target")
		err = errors.Join(err, errors.Wrap(detachErr, "detach target database"))
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, ignoreDone(tx.Rollback()))
		}
	}()

	m := migration{tx: tx, logger: db.logger}
	if err = m.run(ctx); err != nil {
		return err
	}

	var violations []string
	if violations, err = m.strings(ctx, "SELECT \"table\" FROM pragma_foreign_key_check"); err != nil {
		return errors.Wrap(err, "check foreign keys")
	}
	if len(violations) > 0 {
		return errors.New("foreign key violations after migration",
			slog.String("tables", strings.Join(violations, ",")))
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

func ignoreDone(err error) error {
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

type migration struct {
	tx     *sql.Tx
	logger *slog.Logger
}

// Queries comparing the main schema with the attached target schema.
const (
	removedObjects = `SELECT current.name
FROM main.sqlite_schema AS current
LEFT JOIN target.sqlite_schema AS wanted ON wanted.name = current.name AND wanted.type = current.type
WHERE current.type = ? AND current.name NOT LIKE 'sqlite_%' AND current.sql IS NOT NULL
  AND (wanted.name IS NULL OR wanted.sql <> current.sql)`
	addedObjects = `SELECT wanted.sql
FROM target.sqlite_schema AS wanted
LEFT JOIN main.sqlite_schema AS current ON current.name = wanted.name AND current.type = wanted.type
WHERE wanted.type = ? AND wanted.name NOT LIKE 'sqlite_%' AND wanted.sql IS NOT NULL AND current.name IS NULL`
	removedTables = `SELECT current.name
FROM main.sqlite_schema AS current
LEFT JOIN target.sqlite_schema AS wanted ON wanted.name = current.name AND wanted.type = current.type
WHERE current.type = 'table' AND current.name NOT LIKE 'sqlite_%' AND wanted.name IS NULL`
	changedTables = `SELECT current.name, wanted.sql
FROM main.sqlite_schema AS current
JOIN target.sqlite_schema AS wanted ON wanted.name = current.name AND wanted.type = current.type
WHERE current.type = 'table' AND current.name NOT LIKE 'sqlite_%' AND wanted.sql <> current.sql`
	commonColumns = `SELECT '"' || wanted.name || '"'
FROM pragma_table_info(:table_name, 'main') AS current
JOIN pragma_table_info(:table_name, 'target') AS wanted ON wanted.name = current.name`
)

var dependentTypes = []string{"view", "trigger", "index"}

func (m migration) run(ctx context.Context) error {
	for _, typ := range dependentTypes {
		names, err := m.strings(ctx, removedObjects, typ)
		if err != nil {
			return errors.Wrap(err, "query removed objects", slog.String("type", typ))
		}
		for _, name := range names {
			if err = m.exec(ctx, fmt.Sprintf("DROP %s IF EXISTS %s", strings.ToUpper(typ), quote(name))); err != nil {
				return err
			}
		}
	}

	names, err := m.strings(ctx, removedTables)
	if err != nil {
		return errors.Wrap(err, "query removed tables")
	}
	for _, name := range names {
		if err = m.exec(ctx, "DROP TABLE "+quote(name)); err != nil {
			return err
		}
	}

	created, err := m.strings(ctx, addedObjects, "table")
	if err != nil {
		return errors.Wrap(err, "query new tables")
	}
	for _, stmt := range created {
		if err = m.exec(ctx, stmt); err != nil {
			return err
		}
	}

	if err = m.rebuildChangedTables(ctx); err != nil {
		return err
	}

	// Rebuilt tables lost their indexes and triggers, so this also restores those.
	for i := len(dependentTypes) - 1; i >= 0; i-- {
		typ := dependentTypes[i]
		var stmts []string
		if stmts, err = m.strings(ctx, addedObjects, typ); err != nil {
			return errors.Wrap(err, "query new objects", slog.String("type", typ))
		}
		for _, stmt := range stmts {
			if err = m.exec(ctx, stmt); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m migration) rebuildChangedTables(ctx context.Context) error {
	rows, err := m.tx.QueryContext(ctx, changedTables)
	if err != nil {
		return errors.Wrap(err, "query changed tables")
	}
	type changed struct{ name, sql string }
	var tables []changed
	for rows.Next() {
		var c changed
		if err = rows.Scan(&c.name, &c.sql); err != nil {
			return errors.Join(errors.Wrap(err, "scan changed table"), rows.Close())
		}
		tables = append(tables, c)
	}
	if err = errors.Join(rows.Err(), rows.Close()); err != nil {
		return errors.Wrap(err, "read changed tables")
	}

	for _, table := range tables {
		tempName := table.name + "_migration_temp"
		if err = m.exec(ctx, strings.Replace(table.sql, table.name, tempName, 1)); err != nil {
			return err
		}
		var columns []string
		if columns, err = m.strings(ctx, commonColumns, sql.Named("table_name", table.name)); err != nil {
			return errors.Wrap(err, "query common columns", slog.String("table", table.name))
		}
		if len(columns) > 0 {
			common := strings.Join(columns, ", ")
			if err = m.exec(ctx, fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", //nolint:gosec // schema names
				quote(tempName), common, common, quote(table.name))); err != nil {
				return err
			}
		}
		if err = m.exec(ctx, "DROP TABLE "+quote(table.name)); err != nil {
			return err
		}
		if err = m.exec(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quote(tempName), quote(table.name))); err != nil {
			return err
		}
	}
	return nil
}

func (m migration) exec(ctx context.Context, stmt string) error {
	m.logger.LogAttrs(ctx, slog.LevelInfo, "migrating schema", slog.String("query", stmt))
	if _, err := m.tx.ExecContext(ctx, stmt); err != nil {
		return errors.Wrap(err, "execute migration", slog.String("query", stmt))
	}
	return nil
}

// strings returns the single string column of query.
func (m migration) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := m.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query")
	}
	var results []string
	for rows.Next() {
		var result string
		if err = rows.Scan(&result); err != nil {
			return nil, errors.Join(errors.Wrap(err, "scan"), rows.Close())
		}
		results = append(results, result)
	}
	if err = errors.Join(rows.Err(), rows.Close()); err != nil {
		return nil, errors.Wrap(err, "read rows")
	}
	return results, nil
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
