package database

import (
	"context"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know by name.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS electricity (
		timestamp      INTEGER PRIMARY KEY,
		used_t1        INTEGER NOT NULL,
		used_t2        INTEGER NOT NULL,
		active_tariff  INTEGER NOT NULL,
		current_usage  INTEGER
	) STRICT`,
	`CREATE TABLE IF NOT EXISTS heat (
		timestamp      INTEGER PRIMARY KEY,
		energy         INTEGER NOT NULL,
		volume         INTEGER NOT NULL,
		hourcounter    INTEGER NOT NULL
	) STRICT`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS electricity (
		timestamp      BIGINT PRIMARY KEY,
		used_t1        BIGINT NOT NULL,
		used_t2        BIGINT NOT NULL,
		active_tariff  SMALLINT NOT NULL,
		current_usage  BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS heat (
		timestamp      BIGINT PRIMARY KEY,
		energy         BIGINT NOT NULL,
		volume         BIGINT NOT NULL,
		hourcounter    BIGINT NOT NULL
	)`,
}

// Connect opens the store and creates the electricity and heat tables if
// they do not exist yet. The caller owns the returned handle.
func Connect(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	var schema []string
	switch driver {
	case DriverSQLite:
		schema = sqliteSchema
	case DriverPostgres:
		schema = postgresSchema
	default:
		return nil, errors.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", driver)
	}
	if driver == DriverSQLite {
		// One writer owns the file; this also keeps ":memory:" a single database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "ping %s", driver)
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "create tables")
		}
	}
	return db, nil
}
