package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/ANIKETSHETTY47/energyhub/internal/domain"
)

var (
	// ErrStorage matches every failure reported by the storage engine.
	ErrStorage = errors.New("storage error")
	// ErrNotFound is returned by the Latest queries on an empty table.
	ErrNotFound = errors.New("no rows")
)

type storageError struct {
	op  string
	err error
}

func (e *storageError) Error() string        { return e.op + ": " + e.err.Error() }
func (e *storageError) Unwrap() error        { return e.err }
func (e *storageError) Is(target error) bool { return target == ErrStorage }

func storageErr(op string, err error) error { return &storageError{op: op, err: err} }

// Both statements keep the first row stored for a timestamp. Batch readings
// leave current_usage NULL.
const (
	insertElectricity = `INSERT INTO electricity (timestamp, used_t1, used_t2, active_tariff, current_usage)
		VALUES (:timestamp, :used_t1, :used_t2, :active_tariff, :current_usage)
		ON CONFLICT (timestamp) DO NOTHING`
	insertHeat = `INSERT INTO heat (timestamp, energy, volume, hourcounter)
		VALUES (:timestamp, :energy, :volume, :hourcounter)
		ON CONFLICT (timestamp) DO NOTHING`

	latestElectricity = `SELECT timestamp, used_t1, used_t2, active_tariff, current_usage
		FROM electricity ORDER BY timestamp DESC LIMIT 1`
	latestHeat = `SELECT timestamp, energy, volume, hourcounter
		FROM heat ORDER BY timestamp DESC LIMIT 1`
)

type Repos struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Repos { return &Repos{db: db} }

// DB exposes the handle for callers that manage their own transactions.
func (r *Repos) DB() *sqlx.DB { return r.db }

// Insert writes rd as a single auto-committed statement.
func (r *Repos) Insert(ctx context.Context, rd domain.Reading) (bool, error) {
	return Insert(ctx, r.db, rd)
}

// Insert writes rd through ext, which may be the handle or an open
// transaction. It reports false when a row with the same timestamp already
// exists; that row is left untouched.
func Insert(ctx context.Context, ext sqlx.ExtContext, rd domain.Reading) (bool, error) {
	var query string
	switch rd.(type) {
	case domain.Electricity:
		query = insertElectricity
	case domain.Heat:
		query = insertHeat
	default:
		return false, errors.Errorf("unsupported reading %T", rd)
	}

	res, err := sqlx.NamedExecContext(ctx, ext, query, rd)
	if err != nil {
		return false, storageErr("insert "+string(rd.Table()), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("insert "+string(rd.Table()), err)
	}
	return n > 0, nil
}

const savepoint = "ingest_line"

// InsertIsolated runs Insert inside a savepoint of tx, so a failing
// statement is undone alone and tx stays usable.
func InsertIsolated(ctx context.Context, tx *sqlx.Tx, rd domain.Reading) (bool, error) {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
		return false, storageErr("savepoint", err)
	}
	inserted, err := Insert(ctx, tx, rd)
	if err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
			return false, storageErr("rollback to savepoint", rbErr)
		}
		if _, relErr := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepoint); relErr != nil {
			return false, storageErr("release savepoint", relErr)
		}
		return false, err
	}
	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
		return false, storageErr("release savepoint", err)
	}
	return inserted, nil
}

func (r *Repos) LatestElectricity(ctx context.Context) (domain.Electricity, error) {
	var out domain.Electricity
	err := r.db.GetContext(ctx, &out, latestElectricity)
	if errors.Is(err, sql.ErrNoRows) {
		return out, ErrNotFound
	}
	if err != nil {
		return out, storageErr("latest electricity", err)
	}
	return out, nil
}

func (r *Repos) LatestHeat(ctx context.Context) (domain.Heat, error) {
	var out domain.Heat
	err := r.db.GetContext(ctx, &out, latestHeat)
	if errors.Is(err, sql.ErrNoRows) {
		return out, ErrNotFound
	}
	if err != nil {
		return out, storageErr("latest heat", err)
	}
	return out, nil
}

// Count returns the number of rows in table.
func (r *Repos) Count(ctx context.Context, table domain.Table) (int, error) {
	var query string
	switch table {
	case domain.TableElectricity:
		query = `SELECT count(*) FROM electricity`
	case domain.TableHeat:
		query = `SELECT count(*) FROM heat`
	default:
		return 0, errors.Errorf("unknown table %q", table)
	}
	var n int
	if err := r.db.GetContext(ctx, &n, query); err != nil {
		return 0, storageErr("count "+string(table), err)
	}
	return n, nil
}
