package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/evidenca/internal/backend"
)

// Images keeps product pictures as blobs on the products table.
type Images struct {
	db *sqlx.DB
}

// SetProductImage stores the image and marks the product as having one.
func (i *Images) SetProductImage(ctx context.Context, productID string, data []byte, mime string) error {
	res, err := i.db.ExecContext(ctx,
		`UPDATE products SET image = ?, image_mime = ?, has_image = 1 WHERE id = ?`,
		data, mime, productID,
	)
	if err != nil {
		return fmt.Errorf("setting product image: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return backend.ErrNotFound
	}
	return nil
}

// GetProductImage returns the image data and MIME type.
// Returns nil data if the product has no image.
func (i *Images) GetProductImage(ctx context.Context, productID string) ([]byte, string, error) {
	var row struct {
		Image []byte         `db:"image"`
		Mime  sql.NullString `db:"image_mime"`
	}
	err := i.db.GetContext(ctx, &row, `SELECT image, image_mime FROM products WHERE id = ?`, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", backend.ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting product image: %w", err)
	}
	return row.Image, row.Mime.String, nil
}
