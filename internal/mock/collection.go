// Package mock is an in-memory stand-in for the REST backend. Records live
// in process-local slices seeded with fixtures and are lost on restart.
package mock

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/erazemk/evidenca/internal/backend"
	"github.com/erazemk/evidenca/internal/model"
)

// Collection is a slice-backed backend.Collection. It keeps insertion order.
type Collection[T any] struct {
	meta *backend.Meta[T]

	mu      sync.RWMutex
	records []T
}

// NewCollection returns an empty collection described by meta.
func NewCollection[T any](meta *backend.Meta[T]) *Collection[T] {
	return &Collection[T]{meta: meta}
}

// All returns a copy of every record in insertion order.
func (c *Collection[T]) All() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.records)
}

// List filters, sorts and slices the records.
func (c *Collection[T]) List(_ context.Context, params model.ListParams) (model.Page[T], error) {
	params = params.Normalize()

	c.mu.RLock()
	matched := c.filter(params.Search)
	c.mu.RUnlock()

	if params.Sort != "" && c.meta.Sortable(params.Sort) {
		slices.SortStableFunc(matched, func(a, b T) int {
			r := cmp.Compare(c.meta.Value(&a, params.Sort), c.meta.Value(&b, params.Sort))
			if params.Order == model.OrderDesc {
				return -r
			}
			return r
		})
	}

	page := model.Page[T]{Data: []T{}, TotalCount: len(matched)}
	start := params.Offset()
	if start >= len(matched) {
		return page, nil
	}
	end := min(start+params.PageSize, len(matched))
	page.Data = matched[start:end]
	return page, nil
}

// filter returns copies of the records matching search. Callers hold mu.
func (c *Collection[T]) filter(search string) []T {
	if search == "" {
		return slices.Clone(c.records)
	}
	fold := cases.Fold()
	needle := fold.String(search)
	var out []T
	for i := range c.records {
		for _, key := range c.meta.Search {
			if strings.Contains(fold.String(c.meta.Value(&c.records[i], key)), needle) {
				out = append(out, c.records[i])
				break
			}
		}
	}
	return out
}

// Get returns a copy of the record with the given ID.
func (c *Collection[T]) Get(_ context.Context, id string) (*T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i := c.index(id)
	if i < 0 {
		return nil, backend.ErrNotFound
	}
	rec := c.records[i]
	return &rec, nil
}

// Create assigns an ID and appends the record.
func (c *Collection[T]) Create(_ context.Context, record *T) (*T, error) {
	rec := *record
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating id: %w", err)
	}
	*c.meta.ID(&rec) = id.String()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkUnique(&rec, ""); err != nil {
		return nil, err
	}
	c.records = append(c.records, rec)
	return &rec, nil
}

// Update shallow-merges patch onto the stored record.
func (c *Collection[T]) Update(_ context.Context, id string, patch backend.Patch) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(id)
	if i < 0 {
		return nil, backend.ErrNotFound
	}
	if c.meta.Guard != nil {
		if err := c.meta.Guard(&c.records[i]); err != nil {
			return nil, err
		}
	}
	merged, err := backend.Merge(&c.records[i], patch)
	if err != nil {
		return nil, err
	}
	*c.meta.ID(merged) = id
	if err := c.checkUnique(merged, id); err != nil {
		return nil, err
	}
	c.records[i] = *merged
	rec := *merged
	return &rec, nil
}

// Delete removes the record with the given ID.
func (c *Collection[T]) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(id)
	if i < 0 {
		return backend.ErrNotFound
	}
	if c.meta.Guard != nil {
		if err := c.meta.Guard(&c.records[i]); err != nil {
			return err
		}
	}
	c.records = slices.Delete(c.records, i, i+1)
	return nil
}

// Put stores a record as-is, replacing one with the same ID. Used for
// seeding and for state changes that bypass the guard.
func (c *Collection[T]) Put(record T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.index(*c.meta.ID(&record)); i >= 0 {
		c.records[i] = record
		return
	}
	c.records = append(c.records, record)
}

func (c *Collection[T]) index(id string) int {
	for i := range c.records {
		if *c.meta.ID(&c.records[i]) == id {
			return i
		}
	}
	return -1
}

// checkUnique rejects rec if a unique field collides with another record.
// Callers hold mu.
func (c *Collection[T]) checkUnique(rec *T, self string) error {
	for _, key := range c.meta.Unique {
		v := strings.ToLower(c.meta.Value(rec, key))
		if v == "" {
			continue
		}
		for i := range c.records {
			if *c.meta.ID(&c.records[i]) == self {
				continue
			}
			if strings.ToLower(c.meta.Value(&c.records[i], key)) == v {
				return fmt.Errorf("%s %q already exists: %w", key, v, backend.ErrConflict)
			}
		}
	}
	return nil
}
