package mock

import (
	"context"
	"sync"

	"github.com/erazemk/evidenca/internal/model"
)

type image struct {
	data []byte
	mime string
}

// Images keeps product pictures in memory.
type Images struct {
	products *Collection[model.Product]

	mu     sync.Mutex
	images map[string]image
}

// NewImages returns an image store for products.
func NewImages(products *Collection[model.Product]) *Images {
	return &Images{products: products, images: map[string]image{}}
}

func (s *Images) SetProductImage(ctx context.Context, productID string, data []byte, mime string) error {
	p, err := s.products.Get(ctx, productID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.images[productID] = image{data: data, mime: mime}
	s.mu.Unlock()

	p.HasImage = true
	s.products.Put(*p)
	return nil
}

func (s *Images) GetProductImage(_ context.Context, productID string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[productID]
	if !ok {
		return nil, "", nil
	}
	return img.data, img.mime, nil
}
