package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// bindNamed turns a :named query into a positional one for the postgres driver,
// expanding slice arguments used with IN (:param)
func (db *DB) bindNamed(query string, arg interface{}) (string, []interface{}, error) {
	q, args, err := sqlx.Named(query, arg)
	if err != nil {
		return "", nil, err
	}
	q, args, err = sqlx.In(q, args...)
	if err != nil {
		return "", nil, err
	}
	return db.Rebind(q), args, nil
}

// NamedGetContext scans a single row of a named query into dest
func (db *DB) NamedGetContext(ctx context.Context, dest interface{}, query string, arg interface{}) error {
	q, args, err := db.bindNamed(query, arg)
	if err != nil {
		return err
	}
	return db.GetQuerier(ctx).GetContext(ctx, dest, q, args...)
}

// NamedSelectContext scans all rows of a named query into dest
func (db *DB) NamedSelectContext(ctx context.Context, dest interface{}, query string, arg interface{}) error {
	q, args, err := db.bindNamed(query, arg)
	if err != nil {
		return err
	}
	return db.GetQuerier(ctx).SelectContext(ctx, dest, q, args...)
}

// NamedExecContext executes a named statement in the transaction carried by ctx, if any
func (db *DB) NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error) {
	return db.GetQuerier(ctx).NamedExecContext(ctx, query, arg)
}
