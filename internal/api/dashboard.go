package api

import (
	"net/http"

	"github.com/erazemk/vitrina/internal/store"
)

type dashboardResponse struct {
	Username string       `json:"username"`
	Counts   store.Counts `json:"counts"`
}

// Dashboard handles GET /api/dashboard.
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Counts(r.Context())
	if err != nil {
		s.storeError(w, r, err, "counts")
		return
	}

	var username string
	if claims := GetClaims(r.Context()); claims != nil {
		username = claims.Username
	}
	jsonResponse(w, http.StatusOK, dashboardResponse{Username: username, Counts: counts})
}
