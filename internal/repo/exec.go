package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/samber/lo"
)

func (c config) builder() *entsql.DialectBuilder {
	return entsql.Dialect(c.dialect)
}

func (c config) table(name string) *entsql.SelectTable {
	return c.builder().Table(name)
}

func (c config) exec(ctx context.Context, op string, q entsql.Querier) (int64, error) {
	query, args := q.Query()
	var res sql.Result
	if err := c.driver.Exec(ctx, query, args, &res); err != nil {
		return 0, queryErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, queryErr(op, err)
	}
	return n, nil
}

// insert runs the insert and returns the new row id.
func (c config) insert(ctx context.Context, op string, ib *entsql.InsertBuilder) (int64, error) {
	if c.dialect == dialect.Postgres {
		var id int64
		err := c.query(ctx, op, ib.Returning("id"), func(rows *entsql.Rows) error {
			return rows.Scan(&id)
		})
		if err != nil {
			return 0, err
		}
		if id == 0 {
			return 0, queryErr(op, errors.New("no id returned"))
		}
		return id, nil
	}

	query, args := ib.Query()
	var res sql.Result
	if err := c.driver.Exec(ctx, query, args, &res); err != nil {
		return 0, queryErr(op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, queryErr(op, err)
	}
	return id, nil
}

// query runs q and calls scan for every row.
func (c config) query(ctx context.Context, op string, q entsql.Querier, scan func(*entsql.Rows) error) error {
	query, args := q.Query()
	rows := &entsql.Rows{}
	if err := c.driver.Query(ctx, query, args, rows); err != nil {
		return queryErr(op, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return queryErr(op, err)
		}
	}
	if err := rows.Err(); err != nil {
		return queryErr(op, err)
	}
	return nil
}

func (c config) count(ctx context.Context, op string, table string, preds ...*entsql.Predicate) (int, error) {
	sel := c.builder().Select(entsql.Count("*")).From(c.table(table))
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	var n int
	err := c.query(ctx, op, sel, func(rows *entsql.Rows) error { return rows.Scan(&n) })
	return n, err
}

func (c config) deleteWhere(ctx context.Context, op, table string, pred *entsql.Predicate) error {
	_, err := c.exec(ctx, op, c.builder().Delete(table).Where(pred))
	return err
}

func ids[T ~int64](in []T) []any {
	return lo.Map(lo.Uniq(in), func(v T, _ int) any { return int64(v) })
}

func nullInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}

func nullBool(p *bool) any {
	if p == nil {
		return nil
	}
	return *p
}

func intPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return lo.ToPtr(n.Int64)
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return lo.ToPtr(n.Time.UTC())
}

func boolPtr(n sql.NullBool) *bool {
	if !n.Valid {
		return nil
	}
	return lo.ToPtr(n.Bool)
}

func jsonText(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return string(b)
}
