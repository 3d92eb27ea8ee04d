// Package backend defines the storage contract shared by the SQLite store
// and the in-memory mock: one Collection per entity plus account state.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/erazemk/evidenca/internal/model"
)

// Errors returned by every Collection implementation.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// RuleError is a business-rule violation. The record is left unchanged.
type RuleError struct {
	Message string
}

func (e *RuleError) Error() string { return e.Message }

// Patch is a partial record: JSON keys mapped to their new raw values.
type Patch map[string]json.RawMessage

// Collection is the CRUD contract for one entity.
type Collection[T any] interface {
	List(ctx context.Context, params model.ListParams) (model.Page[T], error)
	Get(ctx context.Context, id string) (*T, error)
	Create(ctx context.Context, record *T) (*T, error)
	Update(ctx context.Context, id string, patch Patch) (*T, error)
	Delete(ctx context.Context, id string) error
}

// Backend bundles the collections of every entity with account state.
type Backend struct {
	Users         Collection[model.User]
	Organizations Collection[model.Organization]
	Companies     Collection[model.Company]
	Warehouses    Collection[model.Warehouse]
	Products      Collection[model.Product]
	Lots          Collection[model.Lot]
	UOMs          Collection[model.UOM]
	Invitations   Collection[model.Invitation]

	Accounts Accounts
	Images   Images
}

// Images stores one picture per product.
type Images interface {
	SetProductImage(ctx context.Context, productID string, data []byte, mime string) error
	GetProductImage(ctx context.Context, productID string) ([]byte, string, error)
}

// Merge shallow-merges patch onto record and returns the result. Keys not
// present in the record's JSON form are rejected; "id" is ignored.
func Merge[T any](record *T, patch Patch) (*T, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	var zero T
	known, err := jsonKeys(&zero)
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		if k == "id" {
			continue
		}
		if !known[k] {
			return nil, &RuleError{Message: fmt.Sprintf("unknown field %q", k)}
		}
		fields[k] = v
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding merged record: %w", err)
	}
	out := new(T)
	if err := json.Unmarshal(merged, out); err != nil {
		return nil, &RuleError{Message: fmt.Sprintf("invalid patch: %v", err)}
	}
	return out, nil
}

// jsonKeys lists the JSON keys a record type can carry, including omitempty
// ones that are absent from a zero value.
func jsonKeys[T any](zero *T) (map[string]bool, error) {
	keys := map[string]bool{}
	for _, f := range fieldsOf(zero) {
		keys[f] = true
	}
	return keys, nil
}
