package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/catechism/core"
)

type repository struct {
	db *sqlx.DB
}

// getExec returns the executor provided by the service, if any, or the repository's DB.
func (repo repository) getExec(svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 && svcExec[0] != nil {
		switch exe := svcExec[0].(type) {
		case sqlx.ExtContext:
			return exe
		case *sql.Tx:
			return &sqlx.Tx{Tx: exe, Mapper: repo.db.Mapper}
		}
	}
	return repo.db
}

// inTx runs fn in the service's transaction if one is provided, or in a new one.
func (repo repository) inTx(ctx context.Context, svcExec []core.DBExecutor, fn func(exe sqlx.ExtContext) error) error {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return fn(repo.getExec(svcExec))
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}
