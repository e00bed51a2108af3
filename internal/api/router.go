package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/erazemk/vitrina/internal/auth"
	"github.com/erazemk/vitrina/internal/blob"
	"github.com/erazemk/vitrina/internal/imaging"
	"github.com/erazemk/vitrina/internal/model"
	"github.com/erazemk/vitrina/internal/store"
)

// CredentialChecker verifies a sign-in attempt.
type CredentialChecker interface {
	Check(username, password string) error
}

// Deps are the services the API is built on.
type Deps struct {
	Store       *store.Store
	Blobs       *blob.Dir
	Images      imaging.Processor
	Credentials CredentialChecker
	// Revocations defaults to the revocation list kept on the store backend.
	Revocations *auth.Revocations
	JWTSecret   string
	Logger      *zap.Logger
	// Registry receives the HTTP metrics and is served on /metrics.
	// A fresh registry is used when nil.
	Registry *prometheus.Registry
}

// Server holds the handler dependencies.
type Server struct {
	store       *store.Store
	blobs       *blob.Dir
	images      imaging.Processor
	credentials CredentialChecker
	revocations *auth.Revocations
	jwtSecret   string
	log         *zap.Logger
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	s := &Server{
		store:       d.Store,
		blobs:       d.Blobs,
		images:      d.Images,
		credentials: d.Credentials,
		revocations: d.Revocations,
		jwtSecret:   d.JWTSecret,
		log:         d.Logger,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.revocations == nil {
		s.revocations = auth.NewRevocations(store.NewTokenRevocations(d.Store.Backend))
	}
	reg := d.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	metrics := newHTTPMetrics(reg)

	wishlist := &resource[model.WishlistItem, model.WishlistPatch]{
		srv:           s,
		what:          "wishlist item",
		coll:          d.Store.Wishlist,
		prepare:       func(w *model.WishlistItem) error { return w.Validate() },
		validatePatch: func(p *model.WishlistPatch) error { return p.Validate() },
		images:        []inlineImage{{inline: "imageData", ref: "imageRef"}},
	}
	warranty := &resource[model.WarrantyItem, model.WarrantyPatch]{
		srv:  s,
		what: "warranty",
		coll: d.Store.Warranties,
		prepare: func(w *model.WarrantyItem) error {
			w.ApplyDefaults()
			return w.Validate()
		},
		validatePatch: func(p *model.WarrantyPatch) error { return p.Validate() },
		images:        []inlineImage{{inline: "piecesImage", ref: "piecesImageRef"}},
	}
	requests := &resource[model.MaterialRequest, model.MaterialRequestPatch]{
		srv:  s,
		what: "material request",
		coll: d.Store.MaterialRequests,
		prepare: func(m *model.MaterialRequest) error {
			m.ApplyDefaults()
			return m.Validate()
		},
		validatePatch: func(p *model.MaterialRequestPatch) error { return p.Validate() },
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(metrics.middleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		// Public: login.
		r.Post("/auth/login", s.Login)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Post("/auth/logout", s.Logout)
			r.Get("/auth/me", s.Me)
			r.Get("/dashboard", s.Dashboard)

			r.Route("/wishlist", wishlist.routes)
			r.Route("/warranty", warranty.routes)
			r.Route("/material-requests", requests.routes)

			r.Post("/images", s.UploadImage)
			r.Get("/images/{ref}", s.GetImage)
		})
	})

	return r
}
