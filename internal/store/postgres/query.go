package postgres

import (
	"fmt"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

// query accumulates a SELECT with positional arguments.
type query struct {
	sql  string
	args []any
}

func newQuery(base string) *query {
	return &query{sql: base}
}

// arg appends v and returns its placeholder.
func (q *query) arg(v any) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

// where appends " AND " + cond, with %s replaced by v's placeholder.
func (q *query) where(cond string, v any) {
	q.sql += " AND " + fmt.Sprintf(cond, q.arg(v))
}

// window restricts col to opts.Since and opts.Until when set.
func (q *query) window(col string, opts domain.ListOpts) {
	if opts.Since != nil {
		q.where(col+" >= %s", *opts.Since)
	}
	if opts.Until != nil {
		q.where(col+" <= %s", *opts.Until)
	}
}

func (q *query) order(by string) {
	q.sql += " ORDER BY " + by
}

func (q *query) page(opts domain.ListOpts) {
	if opts.Limit > 0 {
		q.sql += " LIMIT " + q.arg(opts.Limit)
	}
	if opts.Offset > 0 {
		q.sql += " OFFSET " + q.arg(opts.Offset)
	}
}
