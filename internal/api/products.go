package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/evidenca/internal/backend"
	"github.com/erazemk/evidenca/internal/imaging"
)

// ProductsHandler handles product pictures.
type ProductsHandler struct {
	Backend *backend.Backend
}

// UploadImage handles PUT /api/products/{id}/image.
// Accepts raw image body (Content-Type: image/jpeg, image/png or image/webp).
func (h *ProductsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.Backend.Products.Get(r.Context(), id); err != nil {
		writeError(w, r, "product", err)
		return
	}

	defer r.Body.Close()
	img, err := imaging.Process(r.Body)
	if errors.Is(err, imaging.ErrTooLarge) {
		jsonError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Backend.Images.SetProductImage(r.Context(), id, img.Data, img.MIME); err != nil {
		writeError(w, r, "product", err)
		return
	}
	slog.Info("product image stored", "id", id, "bytes", len(img.Data), "user", userOf(r))
	jsonResponse(w, http.StatusOK, map[string]int{"width": img.Width, "height": img.Height})
}

// GetImage handles GET /api/products/{id}/image.
func (h *ProductsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	data, mime, err := h.Backend.Images.GetProductImage(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, "product", err)
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "product has no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Write(data)
}
