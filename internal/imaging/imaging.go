// Package imaging normalizes product pictures before they are stored.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// MaxDimension is the maximum width or height of a stored product image.
const MaxDimension = 1024

// MaxUploadBytes bounds the size of an accepted upload.
const MaxUploadBytes = 8 << 20

// JPEGQuality is the compression quality for JPEG output.
const JPEGQuality = 85

// ErrTooLarge is returned for uploads over MaxUploadBytes.
var ErrTooLarge = errors.New("image exceeds upload limit")

// AllowedMIME lists the accepted input MIME types.
var AllowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Image is a processed product picture.
type Image struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Process sniffs the upload, downscales it to MaxDimension and re-encodes
// it as JPEG. Transparent areas become white.
func Process(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, ErrTooLarge
	}

	// Client headers are not trusted.
	detected := http.DetectContentType(data)
	if !AllowedMIME[detected] {
		return nil, fmt.Errorf("unsupported image format: %s (JPEG, PNG and WebP accepted)", detected)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	dst := fit(src, MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	b := dst.Bounds()
	return &Image{Data: buf.Bytes(), MIME: "image/jpeg", Width: b.Dx(), Height: b.Dy()}, nil
}

// fit draws img onto a white canvas no larger than maxDim on either side,
// keeping the aspect ratio.
func fit(img image.Image, maxDim int) *image.RGBA {
	bounds := img.Bounds()
	w, h := scaled(bounds.Dx(), bounds.Dy(), maxDim)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if w == bounds.Dx() && h == bounds.Dy() {
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func scaled(w, h, maxDim int) (int, int) {
	if w <= maxDim && h <= maxDim {
		return w, h
	}
	if w > h {
		h = int(float64(h) * float64(maxDim) / float64(w))
		w = maxDim
	} else {
		w = int(float64(w) * float64(maxDim) / float64(h))
		h = maxDim
	}
	return max(w, 1), max(h, 1)
}
