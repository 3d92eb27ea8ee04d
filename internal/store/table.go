// Package store implements the backend contract on SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/erazemk/evidenca/internal/backend"
	"github.com/erazemk/evidenca/internal/model"
)

// Table is a backend.Collection over one SQLite table. Rows are listed in
// insertion order unless a sort field is given.
type Table[T any] struct {
	db   *sqlx.DB
	meta *backend.Meta[T]

	columns []string
}

// NewTable returns the table described by meta.
func NewTable[T any](db *sqlx.DB, meta *backend.Meta[T]) *Table[T] {
	return &Table[T]{db: db, meta: meta, columns: meta.Columns()}
}

// List returns one page of rows matching params.
func (t *Table[T]) List(ctx context.Context, params model.ListParams) (model.Page[T], error) {
	params = params.Normalize()
	where, args := t.where(params.Search)

	var total int
	if err := t.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM `+t.meta.Entity+where, args...); err != nil {
		return model.Page[T]{}, fmt.Errorf("counting %s: %w", t.meta.Entity, err)
	}

	order := ` ORDER BY rowid`
	if params.Sort != "" && t.meta.Sortable(params.Sort) {
		order = fmt.Sprintf(` ORDER BY %s %s, rowid`, t.meta.Column(params.Sort), strings.ToUpper(params.Order))
	}

	query := fmt.Sprintf(`SELECT %s FROM %s%s%s LIMIT ? OFFSET ?`,
		strings.Join(t.columns, ", "), t.meta.Entity, where, order)
	data := []T{}
	if err := t.db.SelectContext(ctx, &data, query, append(args, params.PageSize, params.Offset())...); err != nil {
		return model.Page[T]{}, fmt.Errorf("listing %s: %w", t.meta.Entity, err)
	}
	return model.Page[T]{Data: data, TotalCount: total}, nil
}

// where builds the search clause. SQLite's LIKE is case-insensitive for
// ASCII.
func (t *Table[T]) where(search string) (string, []any) {
	if search == "" || len(t.meta.Search) == 0 {
		return "", nil
	}
	pattern := "%" + escapeLike(search) + "%"
	conds := make([]string, 0, len(t.meta.Search))
	args := make([]any, 0, len(t.meta.Search))
	for _, key := range t.meta.Search {
		conds = append(conds, t.meta.Column(key)+` LIKE ? ESCAPE '\'`)
		args = append(args, pattern)
	}
	return ` WHERE (` + strings.Join(conds, " OR ") + `)`, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Get returns the row with the given ID or backend.ErrNotFound.
func (t *Table[T]) Get(ctx context.Context, id string) (*T, error) {
	return t.get(ctx, t.db, id)
}

func (t *Table[T]) get(ctx context.Context, q sqlx.QueryerContext, id string) (*T, error) {
	rec := new(T)
	err := sqlx.GetContext(ctx, q, rec,
		fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, strings.Join(t.columns, ", "), t.meta.Entity), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", t.meta.Entity, err)
	}
	return rec, nil
}

// Create inserts record under a new ID.
func (t *Table[T]) Create(ctx context.Context, record *T) (*T, error) {
	rec := *record
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating id: %w", err)
	}
	*t.meta.ID(&rec) = id.String()

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (:%s)`,
		t.meta.Entity, strings.Join(t.columns, ", "), strings.Join(t.columns, ", :"))
	if _, err := t.db.NamedExecContext(ctx, query, &rec); err != nil {
		return nil, t.wrap("creating", err)
	}
	return t.Get(ctx, id.String())
}

// Update shallow-merges patch onto the stored row.
func (t *Table[T]) Update(ctx context.Context, id string, patch backend.Patch) (*T, error) {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := t.get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if t.meta.Guard != nil {
		if err := t.meta.Guard(current); err != nil {
			return nil, err
		}
	}
	merged, err := backend.Merge(current, patch)
	if err != nil {
		return nil, err
	}
	*t.meta.ID(merged) = id

	sets := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		if c != "id" {
			sets = append(sets, c+" = :"+c)
		}
	}
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = :id`, t.meta.Entity, strings.Join(sets, ", "))
	if _, err := tx.NamedExecContext(ctx, query, merged); err != nil {
		return nil, t.wrap("updating", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing %s update: %w", t.meta.Entity, err)
	}
	return merged, nil
}

// Delete removes the row with the given ID.
func (t *Table[T]) Delete(ctx context.Context, id string) error {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := t.get(ctx, tx, id)
	if err != nil {
		return err
	}
	if t.meta.Guard != nil {
		if err := t.meta.Guard(current); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+t.meta.Entity+` WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting %s: %w", t.meta.Entity, err)
	}
	return tx.Commit()
}

// wrap maps unique constraint failures to backend.ErrConflict.
func (t *Table[T]) wrap(verb string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s %s: %w", verb, t.meta.Entity, backend.ErrConflict)
	}
	return fmt.Errorf("%s %s: %w", verb, t.meta.Entity, err)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
