package pgadapter

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/kalita-labs/truss/internal/errs"
)

// execer is satisfied by both *sql.DB and *sql.Tx so query helpers work
// identically inside and outside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func whereClause(criteria map[string]any) (string, []any) {
	if len(criteria) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	var args []any
	for i, k := range keys {
		parts = append(parts, fmt.Sprintf("%s = $%d", quoteIdent(k), i+1))
		args = append(args, criteria[k])
	}
	return " where " + strings.Join(parts, " and "), args
}

func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func findRows(ctx context.Context, ex execer, table string, criteria map[string]any) ([]map[string]any, error) {
	where, args := whereClause(criteria)
	q := fmt.Sprintf("select * from %s%s", quoteIdent(table), where)
	rows, err := ex.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errs.Wrap(errs.Storage, err, "querying %s", table)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (a *Adapter) FindOne(ctx context.Context, table string, criteria map[string]any) (map[string]any, error) {
	return findOne(ctx, a.db, table, criteria)
}

func findOne(ctx context.Context, ex execer, table string, criteria map[string]any) (map[string]any, error) {
	rows, err := findRows(ctx, ex, table, criteria)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (a *Adapter) Find(ctx context.Context, table string, criteria map[string]any) ([]map[string]any, error) {
	return findRows(ctx, a.db, table, criteria)
}

func insert(ctx context.Context, ex execer, table string, row map[string]any) error {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var cols, placeholders []string
	var args []any
	for i, k := range keys {
		cols = append(cols, quoteIdent(k))
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, row[k])
	}
	q := fmt.Sprintf("insert into %s (%s) values (%s)", quoteIdent(table), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := ex.ExecContext(ctx, q, args...); err != nil {
		return errs.Wrap(errs.Storage, err, "inserting into %s", table)
	}
	return nil
}

func (a *Adapter) Insert(ctx context.Context, table string, row map[string]any) error {
	return insert(ctx, a.db, table, row)
}

func update(ctx context.Context, ex execer, table string, pkCriteria, updates map[string]any) error {
	setKeys := make([]string, 0, len(updates))
	for k := range updates {
		setKeys = append(setKeys, k)
	}
	sort.Strings(setKeys)

	var sets []string
	var args []any
	n := 0
	for _, k := range setKeys {
		n++
		sets = append(sets, fmt.Sprintf("%s = $%d", quoteIdent(k), n))
		args = append(args, updates[k])
	}

	whereKeys := make([]string, 0, len(pkCriteria))
	for k := range pkCriteria {
		whereKeys = append(whereKeys, k)
	}
	sort.Strings(whereKeys)
	var wheres []string
	for _, k := range whereKeys {
		n++
		wheres = append(wheres, fmt.Sprintf("%s = $%d", quoteIdent(k), n))
		args = append(args, pkCriteria[k])
	}

	q := fmt.Sprintf("update %s set %s where %s", quoteIdent(table), strings.Join(sets, ", "), strings.Join(wheres, " and "))
	if _, err := ex.ExecContext(ctx, q, args...); err != nil {
		return errs.Wrap(errs.Storage, err, "updating %s", table)
	}
	return nil
}

func (a *Adapter) Update(ctx context.Context, table string, pkCriteria, updates map[string]any) error {
	return update(ctx, a.db, table, pkCriteria, updates)
}

func deleteRows(ctx context.Context, ex execer, table string, criteria map[string]any) error {
	where, args := whereClause(criteria)
	q := fmt.Sprintf("delete from %s%s", quoteIdent(table), where)
	if _, err := ex.ExecContext(ctx, q, args...); err != nil {
		return errs.Wrap(errs.Storage, err, "deleting from %s", table)
	}
	return nil
}

func (a *Adapter) Delete(ctx context.Context, table string, pkCriteria map[string]any) error {
	return deleteRows(ctx, a.db, table, pkCriteria)
}

func (a *Adapter) LinkRelation(ctx context.Context, table, col1 string, val1 any, col2 string, val2 any) error {
	return insert(ctx, a.db, table, map[string]any{col1: val1, col2: val2})
}

func (a *Adapter) UnlinkRelation(ctx context.Context, table, col1 string, val1 any, col2 string, val2 any) error {
	return deleteRows(ctx, a.db, table, map[string]any{col1: val1, col2: val2})
}

func (a *Adapter) RelatedRows(ctx context.Context, table, matchCol string, matchVal any, otherCol string) ([]any, error) {
	return relatedRows(ctx, a.db, table, matchCol, matchVal, otherCol)
}

func relatedRows(ctx context.Context, ex execer, table, matchCol string, matchVal any, otherCol string) ([]any, error) {
	q := fmt.Sprintf("select %s from %s where %s = $1", quoteIdent(otherCol), quoteIdent(table), quoteIdent(matchCol))
	rows, err := ex.QueryContext(ctx, q, matchVal)
	if err != nil {
		return nil, errs.Wrap(errs.Storage, err, "querying relation table %s", table)
	}
	defer rows.Close()
	var out []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
