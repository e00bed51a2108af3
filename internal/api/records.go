package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/erazemk/vitrina/internal/imaging"
	"github.com/erazemk/vitrina/internal/model"
	"github.com/erazemk/vitrina/internal/store"
)

// listRecord is what every record list holds.
type listRecord interface {
	model.Searchable
	BlobRefs() []string
}

// inlineImage names a body field that may carry a data URL and the field its
// blob reference is stored under.
type inlineImage struct {
	inline string
	ref    string
}

// resource serves CRUD for one record list.
type resource[R listRecord, P any] struct {
	srv           *Server
	what          string
	coll          *store.Collection[R, P]
	prepare       func(*R) error
	validatePatch func(*P) error
	images        []inlineImage
}

func (h *resource[R, P]) routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Put("/{id}", h.Replace)
	r.Delete("/{id}", h.Delete)
}

// List handles GET with an optional ?q= search term.
func (h *resource[R, P]) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.coll.List(r.Context())
	if err != nil {
		h.srv.storeError(w, r, err, h.what)
		return
	}
	jsonResponse(w, http.StatusOK, model.Filter(records, r.URL.Query().Get("q")))
}

// Create handles POST.
func (h *resource[R, P]) Create(w http.ResponseWriter, r *http.Request) {
	var rec R
	created, ok := h.decode(w, r, &rec)
	if !ok {
		return
	}
	if err := h.prepare(&rec); err != nil {
		h.discard(r.Context(), created)
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.coll.Create(r.Context(), rec)
	if err != nil {
		h.discard(r.Context(), created)
		h.srv.storeError(w, r, err, h.what)
		return
	}
	h.respondWith(w, r, http.StatusCreated, id)
}

// Get handles GET /{id}.
func (h *resource[R, P]) Get(w http.ResponseWriter, r *http.Request) {
	h.respondWith(w, r, http.StatusOK, chi.URLParam(r, "id"))
}

// Update handles PATCH /{id}: only the fields present are changed.
func (h *resource[R, P]) Update(w http.ResponseWriter, r *http.Request) {
	var patch P
	h.change(w, r, &patch, func() error { return h.validatePatch(&patch) },
		func(ctx context.Context, id string) error { return h.coll.Update(ctx, id, patch) })
}

// Replace handles PUT /{id}: the record is rewritten as a whole form
// submission. An omitted image reference keeps the stored one.
func (h *resource[R, P]) Replace(w http.ResponseWriter, r *http.Request) {
	var rec R
	h.change(w, r, &rec, func() error { return h.prepare(&rec) },
		func(ctx context.Context, id string) error { return h.coll.Overwrite(ctx, id, rec) })
}

// change decodes the body into target, validates it, applies write and then
// removes images the record no longer references.
func (h *resource[R, P]) change(w http.ResponseWriter, r *http.Request, target any,
	validate func() error, write func(context.Context, string) error) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	before, err := h.coll.Get(ctx, id)
	if err != nil {
		h.srv.storeError(w, r, err, h.what)
		return
	}
	if before == nil {
		jsonError(w, http.StatusNotFound, h.what+" not found")
		return
	}

	created, ok := h.decode(w, r, target)
	if !ok {
		return
	}
	if err := validate(); err != nil {
		h.discard(ctx, created)
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := write(ctx, id); err != nil {
		h.discard(ctx, created)
		h.srv.storeError(w, r, err, h.what)
		return
	}

	after, err := h.coll.Get(ctx, id)
	if err != nil {
		h.srv.storeError(w, r, err, h.what)
		return
	}
	if after == nil {
		jsonError(w, http.StatusNotFound, h.what+" not found")
		return
	}

	var stale []string
	for _, ref := range (*before).BlobRefs() {
		if !slices.Contains((*after).BlobRefs(), ref) {
			stale = append(stale, ref)
		}
	}
	h.discard(ctx, stale)
	jsonResponse(w, http.StatusOK, after)
}

// Delete handles DELETE /{id}. Deleting a missing record succeeds.
func (h *resource[R, P]) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	rec, err := h.coll.Get(ctx, id)
	if err != nil {
		h.srv.storeError(w, r, err, h.what)
		return
	}
	if err := h.coll.Delete(ctx, id); err != nil {
		h.srv.storeError(w, r, err, h.what)
		return
	}
	if rec != nil {
		h.discard(ctx, (*rec).BlobRefs())
		h.srv.log.Info("record deleted", zap.String("collection", h.coll.Name()), zap.String("id", id))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *resource[R, P]) respondWith(w http.ResponseWriter, r *http.Request, status int, id string) {
	rec, err := h.coll.Get(r.Context(), id)
	if err != nil {
		h.srv.storeError(w, r, err, h.what)
		return
	}
	if rec == nil {
		jsonError(w, http.StatusNotFound, h.what+" not found")
		return
	}
	jsonResponse(w, status, rec)
}

// decode reads the body into target after moving inline images to blobs. It
// returns the refs it created; on failure the response is already written.
func (h *resource[R, P]) decode(w http.ResponseWriter, r *http.Request, target any) ([]string, bool) {
	var fields map[string]any
	if err := decodeJSON(w, r, &fields); err != nil || fields == nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}

	created, err := h.extractImages(r.Context(), fields)
	if err != nil {
		h.discard(r.Context(), created)
		if errors.Is(err, imaging.ErrUnsupportedFormat) || errors.Is(err, errBadImage) {
			jsonError(w, http.StatusBadRequest, err.Error())
		} else {
			h.srv.log.Error("failed to store inline image", zap.Error(err))
			jsonError(w, http.StatusInternalServerError, "failed to save image")
		}
		return nil, false
	}

	data, err := json.Marshal(fields)
	if err == nil {
		err = json.Unmarshal(data, target)
	}
	if err != nil {
		h.discard(r.Context(), created)
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return created, true
}

var errBadImage = errors.New("invalid inline image")

// extractImages replaces each inline data URL with the ref of a stored blob.
func (h *resource[R, P]) extractImages(ctx context.Context, fields map[string]any) ([]string, error) {
	var created []string
	for _, img := range h.images {
		raw, present := fields[img.inline]
		if !present {
			continue
		}
		delete(fields, img.inline)

		dataURL, _ := raw.(string)
		if dataURL == "" {
			continue
		}
		if !imaging.IsDataURL(dataURL) {
			return created, fmt.Errorf("%w: %s must be a data URL", errBadImage, img.inline)
		}

		result, err := h.srv.images.ProcessDataURL(dataURL)
		if err != nil {
			if errors.Is(err, imaging.ErrUnsupportedFormat) {
				return created, err
			}
			return created, fmt.Errorf("%w: %s: %v", errBadImage, img.inline, err)
		}
		ref, err := h.srv.blobs.Put(ctx, result.Data, result.MIME)
		if err != nil {
			return created, err
		}
		created = append(created, ref)
		fields[img.ref] = ref
	}
	return created, nil
}

// discard deletes blobs best effort.
func (h *resource[R, P]) discard(ctx context.Context, refs []string) {
	for _, ref := range refs {
		if err := h.srv.blobs.Delete(ctx, ref); err != nil {
			h.srv.log.Warn("failed to delete image", zap.String("ref", ref), zap.Error(err))
		}
	}
}
