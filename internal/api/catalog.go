package api

import (
	"net/http"

	"rental-process/internal/catalog"
)

func (s *Server) listProfiles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"profiles": catalog.Profiles()})
}

func (s *Server) listSecurities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"securities": catalog.Securities()})
}
