package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/erazemk/vitrina/internal/blob"
	"github.com/erazemk/vitrina/internal/imaging"
)

// UploadImage handles POST /api/images.
func (s *Server) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxInputBytes+1<<20)

	if err := r.ParseMultipartForm(imaging.MaxInputBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	// The client's Content-Type is ignored; Process sniffs the bytes.
	result, err := s.images.Process(file)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupportedFormat) {
			jsonError(w, http.StatusBadRequest, "image must be JPEG or PNG")
			return
		}
		jsonError(w, http.StatusBadRequest, "invalid image")
		return
	}

	ref, err := s.blobs.Put(r.Context(), result.Data, result.MIME)
	if err != nil {
		s.log.Error("failed to store image", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "failed to save image")
		return
	}

	jsonResponse(w, http.StatusCreated, map[string]any{
		"ref":    ref,
		"width":  result.Width,
		"height": result.Height,
	})
}

// GetImage handles GET /api/images/{ref}.
func (s *Server) GetImage(w http.ResponseWriter, r *http.Request) {
	data, mime, err := s.blobs.Get(r.Context(), chi.URLParam(r, "ref"))
	switch {
	case errors.Is(err, blob.ErrInvalidRef):
		jsonError(w, http.StatusBadRequest, "invalid image reference")
		return
	case errors.Is(err, blob.ErrNotFound):
		jsonError(w, http.StatusNotFound, "no image")
		return
	case err != nil:
		s.log.Error("failed to read image", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "failed to get image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	// Refs are never reused, so the bytes behind one never change.
	w.Header().Set("Cache-Control", "private, max-age=86400, immutable")
	w.Write(data)
}
