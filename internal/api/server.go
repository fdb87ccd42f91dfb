// Package api exposes the wizard, the catalog and the admin search views over HTTP.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "rental-process/internal/common/errors"
	"rental-process/internal/common/logger"
	"rental-process/internal/common/validation"
	"rental-process/internal/wizard"
)

const maxBodyBytes = 1 << 20

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

// Server holds the handlers' collaborators.
type Server struct {
	registry *wizard.Registry
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
	checks   map[string]Check

	patchSchema  *validation.Validator
	tenantSchema *validation.Validator
	unitSchema   *validation.Validator
}

// New builds a server. checks are run by /ready.
func New(registry *wizard.Registry, log logger.Logger, checks map[string]Check) *Server {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = logger.ForComponent(log, "api")
	return &Server{
		registry:     registry,
		errors:       apperrors.NewErrorHandler(log),
		logger:       log,
		checks:       checks,
		patchSchema:  validation.MustValidator(validation.PatchRequestSchema()),
		tenantSchema: validation.MustValidator(validation.TenantFilterSchema()),
		unitSchema:   validation.MustValidator(validation.UnitFilterSchema()),
	}
}

// Routes mounts every endpoint on a fresh chi router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/catalog", func(r chi.Router) {
		r.Get("/profiles", s.listProfiles)
		r.Get("/securities", s.listSecurities)
	})

	r.Route("/wizard/{session}", func(r chi.Router) {
		r.Get("/", s.getWizard)
		r.Patch("/", s.patchWizard)
		r.Delete("/", s.closeWizard)
		r.Post("/hydrate", s.hydrate)
		r.Post("/continue", s.continueStep)
		r.Post("/back", s.back)
		r.Post("/goto/{step}", s.gotoStep)
		r.Put("/refs", s.setRefs)
		r.Post("/autofill", s.autofill)
	})

	r.Route("/views/{session}", func(r chi.Router) {
		r.Put("/tenants", s.updateTenants)
		r.Get("/tenants", s.getTenants)
		r.Put("/units", s.updateUnits)
		r.Get("/units", s.getUnits)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"sessions":  s.registry.Len(),
	})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}
	writeJSON(w, status, map[string]interface{}{"ready": status == http.StatusOK, "checks": results})
}

// decodeValidated reads the body, checks it against v and decodes it into dst.
func (s *Server) decodeValidated(w http.ResponseWriter, r *http.Request, v *validation.Validator, dst interface{}, invalid func(string) *apperrors.StandardError) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return invalid("unreadable body: " + err.Error())
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte("{}")
	}
	if v != nil {
		res, err := v.ValidateBytes(body)
		if err != nil {
			return invalid(err.Error())
		}
		if !res.Valid {
			return invalid(strings.Join(res.GetErrorMessages(), "; ")).WithMetadata("errors", res.Errors)
		}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return invalid(err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
