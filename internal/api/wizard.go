package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"rental-process/internal/catalog"
	apperrors "rental-process/internal/common/errors"
	"rental-process/internal/models"
	"rental-process/internal/wizard"
)

type patchRequest struct {
	Step      int          `json:"step,omitempty"`
	Patch     models.Patch `json:"patch"`
	Immediate bool         `json:"immediate,omitempty"`
}

type refsRequest struct {
	TenantID *string `json:"tenantId"`
	UnitID   *string `json:"unitId"`
}

type autofillRequest struct {
	Profile  catalog.ProfileType  `json:"profile,omitempty"`
	Security catalog.SecurityType `json:"security,omitempty"`
}

type hydrateResponse struct {
	Source    string      `json:"source"`
	Outcome   string      `json:"outcome"`
	ProcessID string      `json:"processId,omitempty"`
	View      wizard.View `json:"view"`
}

type continueResponse struct {
	View       wizard.View          `json:"view"`
	Submission *wizard.SubmitResult `json:"submission,omitempty"`
}

func (s *Server) session(r *http.Request) *wizard.Session {
	return s.registry.Open(chi.URLParam(r, "session"))
}

func (s *Server) getWizard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session(r).View())
}

func (s *Server) hydrate(w http.ResponseWriter, r *http.Request) {
	res, view := s.session(r).Hydrate(r.Context(), r.URL.Query().Get("processId"))
	writeJSON(w, http.StatusOK, hydrateResponse{
		Source:    res.Source,
		Outcome:   res.Outcome,
		ProcessID: res.ProcessID,
		View:      view,
	})
}

func (s *Server) patchWizard(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if err := s.decodeValidated(w, r, s.patchSchema, &req, apperrors.NewInvalidPatchError); err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	view, err := s.session(r).Patch(req.Patch, models.Step(req.Step), req.Immediate)
	if err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) continueStep(w http.ResponseWriter, r *http.Request) {
	view, res, err := s.session(r).Continue(r.Context())
	if err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, continueResponse{View: view, Submission: res})
}

func (s *Server) back(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session(r).Back())
}

func (s *Server) gotoStep(w http.ResponseWriter, r *http.Request) {
	step, err := strconv.Atoi(chi.URLParam(r, "step"))
	if err != nil {
		s.errors.HandleHTTPError(w, r, apperrors.NewInvalidStepError("step must be a number"))
		return
	}
	view, err := s.session(r).Goto(models.Step(step))
	if err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) setRefs(w http.ResponseWriter, r *http.Request) {
	var req refsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.errors.HandleHTTPError(w, r, apperrors.NewInvalidPatchError(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, s.session(r).SetRefs(r.Context(), req.TenantID, req.UnitID))
}

func (s *Server) autofill(w http.ResponseWriter, r *http.Request) {
	if !s.registry.AutofillAllowed() {
		s.errors.HandleHTTPError(w, r, apperrors.NewAutofillDisabledError())
		return
	}
	var req autofillRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.errors.HandleHTTPError(w, r, apperrors.NewInvalidPatchError(err.Error()))
		return
	}
	view, err := s.session(r).Autofill(req.Profile, req.Security)
	if err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) closeWizard(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Close(chi.URLParam(r, "session")); err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
