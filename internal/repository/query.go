package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// where collects filter conditions written with ? placeholders.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// selectWhere runs "SELECT columns FROM <from><where> <suffix>" with the
// placeholders rebound for postgres.
func selectWhere(ctx context.Context, db sqlx.QueryerContext, dest interface{}, columns, from string, w *where, suffix string) error {
	query := fmt.Sprintf("SELECT %s FROM %s%s", columns, from, w.String())
	if suffix != "" {
		query += " " + suffix
	}
	return sqlx.SelectContext(ctx, db, dest, sqlx.Rebind(sqlx.DOLLAR, query), w.args...)
}

// expectAffected turns a zero-row write into sql.ErrNoRows.
func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
