package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// listWindow normalises paging input into LIMIT/OFFSET values.
func listWindow(page, size int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return size, (page - 1) * size
}

// orderClause resolves a whitelisted sort column and direction.
func orderClause(allowed map[string]string, sortBy, sortOrder, fallback string) string {
	column, ok := allowed[sortBy]
	if !ok {
		column = fallback
	}
	order := strings.ToUpper(sortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	return fmt.Sprintf("%s %s", column, order)
}

// affectedOrNotFound turns a zero-row write into sql.ErrNoRows.
func affectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// validID reports whether id fits a UUID column. Anything else can never
// match a row, so lookups answer sql.ErrNoRows without asking the database.
func validID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// anyMalformed reports whether a non-empty filter id is not a UUID.
func anyMalformed(ids ...string) bool {
	for _, id := range ids {
		if id != "" && !validID(id) {
			return true
		}
	}
	return false
}

type execFallback struct {
	db *sqlx.DB
}

func (f execFallback) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return f.db
}
