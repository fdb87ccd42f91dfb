package api

import (
	"errors"
	"net/http"

	apperrors "rental-process/internal/common/errors"
	"rental-process/internal/models"
	"rental-process/internal/search"
)

var errSearchDisabled = errors.New("search is not configured")

type ticketResponse struct {
	Ticket   uint64 `json:"ticket"`
	Deferred bool   `json:"deferred"`
}

type viewResponse[T any] struct {
	Ticket  uint64                   `json:"ticket"`
	Latest  uint64                   `json:"latest"`
	Results T                        `json:"results"`
	Error   *apperrors.StandardError `json:"error,omitempty"`
}

func (s *Server) views(w http.ResponseWriter, r *http.Request) *search.Views {
	v := s.session(r).Views()
	if v == nil {
		s.errors.HandleHTTPError(w, r, apperrors.NewElasticsearchConnectionFailedError(errSearchDisabled))
	}
	return v
}

func (s *Server) updateTenants(w http.ResponseWriter, r *http.Request) {
	views := s.views(w, r)
	if views == nil {
		return
	}
	var filter models.TenantFilter
	if err := s.decodeValidated(w, r, s.tenantSchema, &filter, apperrors.NewInvalidFilterError); err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	ticket, deferred := views.Tenants.Update(filter)
	writeJSON(w, http.StatusAccepted, ticketResponse{Ticket: ticket, Deferred: deferred})
}

func (s *Server) getTenants(w http.ResponseWriter, r *http.Request) {
	views := s.views(w, r)
	if views == nil {
		return
	}
	writeJSON(w, http.StatusOK, toViewResponse(search.ViewTenants, views.Tenants.Current(), views.Tenants.Latest()))
}

func (s *Server) updateUnits(w http.ResponseWriter, r *http.Request) {
	views := s.views(w, r)
	if views == nil {
		return
	}
	var filter models.UnitFilter
	if err := s.decodeValidated(w, r, s.unitSchema, &filter, apperrors.NewInvalidFilterError); err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	ticket, deferred := views.Units.Update(filter)
	writeJSON(w, http.StatusAccepted, ticketResponse{Ticket: ticket, Deferred: deferred})
}

func (s *Server) getUnits(w http.ResponseWriter, r *http.Request) {
	views := s.views(w, r)
	if views == nil {
		return
	}
	writeJSON(w, http.StatusOK, toViewResponse(search.ViewUnits, views.Units.Current(), views.Units.Latest()))
}

// toViewResponse reports the last applied results. A failed latest query
// keeps the previous results and carries the error alongside them.
func toViewResponse[T any](view string, res search.Result[T], latest uint64) viewResponse[T] {
	out := viewResponse[T]{Ticket: res.Ticket, Latest: latest, Results: res.Value}
	switch {
	case res.Err == nil:
	case errors.Is(res.Err, search.ErrSearchTimeout):
		out.Error = apperrors.NewSearchTimeoutError(view)
	default:
		out.Error = apperrors.NewSearchQueryFailedError(view, res.Err)
	}
	return out
}
