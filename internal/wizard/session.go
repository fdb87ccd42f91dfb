package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"rental-process/internal/catalog"
	apperrors "rental-process/internal/common/errors"
	"rental-process/internal/common/idcache"
	"rental-process/internal/common/logger"
	"rental-process/internal/common/metrics"
	"rental-process/internal/models"
	"rental-process/internal/notify"
	"rental-process/internal/search"
	"rental-process/internal/store/processstore"
	"rental-process/internal/wizard/hydration"
	"rental-process/internal/wizard/requirements"
	"rental-process/internal/wizard/state"
	"rental-process/internal/wizard/synchronizer"
)

// View is what the UI renders for the current step.
type View struct {
	state.Snapshot
	Required   []catalog.FieldSpec `json:"required"`
	CanAdvance bool                `json:"canAdvance"`
	Missing    []string            `json:"missing"`
}

// SubmitResult is returned when Continue completes the guarantee step.
type SubmitResult struct {
	Notifications []models.Notification `json:"notifications"`
	ReviewKey     int64                 `json:"reviewKey,omitempty"`
}

// Session owns the state of one wizard run.
type Session struct {
	ID string

	deps      Deps
	opts      Options
	logger    logger.Logger
	container *state.Container
	cache     idcache.KV
	sync      *synchronizer.Synchronizer
	loader    *hydration.Loader
	views     *search.Views

	// nav serialises step transitions and submission.
	nav sync.Mutex
}

func newSession(id string, deps Deps, opts Options) *Session {
	container := state.New()
	cache := deps.Cache(id)
	log := deps.Logger.WithFields(map[string]interface{}{"session": id})

	s := &Session{
		ID:        id,
		deps:      deps,
		opts:      opts,
		logger:    logger.ForComponent(log, "wizard"),
		container: container,
		cache:     cache,
		sync: synchronizer.New(deps.Store, container, cache, synchronizer.Options{
			Window:        opts.Debounce,
			WriteTimeout:  opts.WriteTimeout,
			Clock:         deps.Clock,
			Logger:        log,
			Observability: deps.Observability,
		}),
		loader: hydration.New(deps.Store, container, cache, log),
	}
	if deps.Tenants != nil && deps.Units != nil {
		s.views = search.NewViews(deps.Tenants, deps.Units, opts.SearchDebounce, opts.SearchTimeout, deps.Clock, log)
	}
	return s
}

// Hydrate resumes a persisted process once per session. Writes are parked
// while the fetch runs so edits made meanwhile land on the adopted record.
func (s *Session) Hydrate(ctx context.Context, routeID string) (hydration.Result, View) {
	if s.loader.Hydrated() {
		return s.loader.Hydrate(ctx, routeID), s.View()
	}

	s.sync.Hold()
	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	res := s.loader.Hydrate(fetchCtx, routeID)
	cancel()
	if err := s.sync.Release(); err != nil {
		s.logger.WithError(err).Warn("parked write failed after hydration", map[string]interface{}{"processId": res.ProcessID})
	}
	return res, s.View()
}

// View evaluates the requirement engine against the current state.
func (s *Session) View() View {
	snap := s.container.Snapshot()
	missing := requirements.Missing(snap.Step, snap)
	if missing == nil {
		missing = []string{}
	}
	return View{
		Snapshot:   snap,
		Required:   requirements.RequiredFields(snap.Payload.SelectedProfile, snap.Payload.SelectedSecurity),
		CanAdvance: len(missing) == 0,
		Missing:    missing,
	}
}

// Patch applies an edit locally and schedules its persistence. A zero step
// leaves the stored step alone; a first create uses the local step.
func (s *Session) Patch(p models.Patch, step models.Step, immediate bool) (View, error) {
	if err := s.checkEditable(); err != nil {
		return View{}, err
	}
	if err := validatePatch(p); err != nil {
		return View{}, err
	}
	if step != 0 && !step.Valid() {
		return View{}, apperrors.NewInvalidStepError(fmt.Sprintf("step %d out of range", step))
	}

	s.container.Patch(p)
	s.sync.Schedule(p, step, immediate)
	return s.View(), nil
}

// Continue advances one step when the current one is complete. On the
// guarantee step it submits the application.
func (s *Session) Continue(ctx context.Context) (View, *SubmitResult, error) {
	s.nav.Lock()
	defer s.nav.Unlock()

	if err := s.checkEditable(); err != nil {
		return View{}, nil, err
	}

	snap := s.container.Snapshot()
	missing := requirements.Missing(snap.Step, snap)
	if len(missing) > 0 {
		metrics.StepTransitions.WithLabelValues("continue", "blocked").Inc()
		if len(missing) == 1 && missing[0] == requirements.MissingProcessID {
			return s.View(), nil, apperrors.NewProcessNotPersistedError()
		}
		return s.View(), nil, apperrors.NewStepIncompleteError(int(snap.Step), missing)
	}

	if snap.Step == models.StepGuarantee {
		res, err := s.submit(ctx)
		outcome := "submitted"
		if err != nil {
			outcome = "failed"
		}
		metrics.StepTransitions.WithLabelValues("continue", outcome).Inc()
		return s.View(), res, err
	}

	next := snap.Step + 1
	s.container.SetStep(next)
	s.sync.Schedule(models.Patch{}, next, true)
	metrics.StepTransitions.WithLabelValues("continue", "ok").Inc()
	return s.View(), nil, nil
}

// Back is always allowed and keeps later steps' data.
func (s *Session) Back() View {
	s.nav.Lock()
	defer s.nav.Unlock()

	step := s.container.Step()
	if step > models.StepProfileSelect && s.container.Snapshot().Status != models.StatusSubmitted {
		s.container.SetStep(step - 1)
		s.sync.Schedule(models.Patch{}, step-1, false)
	}
	metrics.StepTransitions.WithLabelValues("back", "ok").Inc()
	return s.View()
}

// Goto jumps to any step already reached.
func (s *Session) Goto(step models.Step) (View, error) {
	s.nav.Lock()
	defer s.nav.Unlock()

	if err := s.checkEditable(); err != nil {
		return View{}, err
	}
	snap := s.container.Snapshot()
	if !step.Valid() || step > snap.FurthestStep {
		metrics.StepTransitions.WithLabelValues("goto", "blocked").Inc()
		return s.View(), apperrors.NewInvalidStepError(
			fmt.Sprintf("step %d not reachable, furthest is %d", step, snap.FurthestStep))
	}
	s.container.SetStep(step)
	s.sync.Schedule(models.Patch{}, step, false)
	metrics.StepTransitions.WithLabelValues("goto", "ok").Inc()
	return s.View(), nil
}

// SetRefs records the chosen tenant and unit. Nil leaves a reference as is,
// an empty string clears the cached selection.
func (s *Session) SetRefs(ctx context.Context, tenantID, unitID *string) View {
	s.container.SetRefs(tenantID, unitID)
	s.cacheRef(ctx, idcache.KeySelectedTenantID, tenantID)
	s.cacheRef(ctx, idcache.KeySelectedUnitID, unitID)
	if tenantID != nil || unitID != nil {
		s.sync.Schedule(models.Patch{}, 0, false)
	}
	return s.View()
}

func (s *Session) cacheRef(ctx context.Context, key string, v *string) {
	switch {
	case v == nil:
	case *v == "":
		s.cache.Remove(ctx, key)
	default:
		s.cache.Set(ctx, key, *v)
	}
}

// Autofill fills placeholders for a profile and/or guarantee. Disabled unless
// the deployment allows it.
func (s *Session) Autofill(profile catalog.ProfileType, security catalog.SecurityType) (View, error) {
	if !s.opts.AllowAutofill {
		return View{}, apperrors.NewAutofillDisabledError()
	}
	if profile == "" && security == "" {
		return View{}, apperrors.NewInvalidPatchError("profile or security is required")
	}

	var patch models.Patch
	if profile != "" {
		p, err := requirements.AutofillProfile(profile)
		if err != nil {
			return View{}, apperrors.NewInvalidPatchError(err.Error())
		}
		patch = patch.Merge(p)
	}
	if security != "" {
		p, err := requirements.AutofillSecurity(security)
		if err != nil {
			return View{}, apperrors.NewInvalidPatchError(err.Error())
		}
		patch = patch.Merge(p)
	}

	s.logger.Warn("autofill applied", map[string]interface{}{
		"profile":  string(profile),
		"security": string(security),
	})
	return s.Patch(patch, 0, false)
}

// Views returns the session's search views, or nil when search is not configured.
func (s *Session) Views() *search.Views { return s.views }

// Pending reports whether an edit is waiting to be written.
func (s *Session) Pending() bool { return s.sync.Pending() }

// Close clears timers. Pending edits are not written.
func (s *Session) Close() {
	s.sync.Close()
	if s.views != nil {
		s.views.Close()
	}
}

func (s *Session) checkEditable() error {
	if snap := s.container.Snapshot(); snap.Status == models.StatusSubmitted {
		return apperrors.NewProcessAlreadySubmittedError(snap.ID)
	}
	return nil
}

// submit runs with nav held and the guarantee step complete.
func (s *Session) submit(ctx context.Context) (*SubmitResult, error) {
	if err := s.sync.Flush(ctx); err != nil {
		return nil, apperrors.NewProcessWriteFailedError("submission flush", err)
	}

	snap := s.container.Snapshot()
	if snap.ID == "" {
		return nil, apperrors.NewProcessNotPersistedError()
	}
	if err := s.verifyPersisted(ctx, snap); err != nil {
		return nil, err
	}

	var notes []models.Notification
	if snap.Payload.SelectedSecurity.NeedsConsent() {
		if s.deps.Notifier == nil {
			return nil, apperrors.NewNotificationSendFailedError("cosigner", errors.New("no notifier configured"))
		}
		var err error
		notes, err = s.deps.Notifier.NotifyCosigners(ctx, snap.ID,
			notify.CosignersFor(snap.Payload), notify.TemplateData(snap.Payload))
		if err != nil {
			return nil, apperrors.NewNotificationSendFailedError("cosigner", err)
		}
	}

	if err := s.deps.Store.SetStatus(ctx, snap.ID, models.StatusSubmitted); err != nil {
		return nil, apperrors.NewProcessWriteFailedError("status update", err)
	}
	s.container.MarkSubmitted()
	s.cache.Remove(ctx, idcache.KeyProcessID)

	res := &SubmitResult{Notifications: notes}
	key, err := s.deps.Review.StartReview(ctx, snap.ID, map[string]interface{}{
		"tenantId":         snap.TenantID,
		"unitId":           snap.UnitID,
		"selectedProfile":  string(snap.Payload.SelectedProfile),
		"selectedSecurity": string(snap.Payload.SelectedSecurity),
	})
	if err != nil {
		s.logger.WithError(err).Error("review hand-off failed", map[string]interface{}{"processId": snap.ID})
	} else {
		res.ReviewKey = key
	}

	s.logger.Info("application submitted", map[string]interface{}{
		"processId":     snap.ID,
		"notifications": len(notes),
	})
	return res, nil
}

// verifyPersisted re-reads the record and checks the stored copy is complete.
// An incomplete copy gets one full rewrite before submission is refused.
func (s *Session) verifyPersisted(ctx context.Context, snap state.Snapshot) error {
	missing, err := s.remoteMissing(ctx, snap)
	if err != nil || len(missing) == 0 {
		return err
	}

	s.logger.Warn("persisted record incomplete, rewriting", map[string]interface{}{
		"processId": snap.ID,
		"missing":   missing,
	})
	if err := s.deps.Store.Update(ctx, snap.ID, snap.Payload.AsPatch(), snap.Step, snap.TenantID, snap.UnitID); err != nil {
		return apperrors.NewProcessWriteFailedError("submission rewrite", err)
	}

	missing, err = s.remoteMissing(ctx, snap)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return apperrors.NewProcessWriteFailedError("submission verify",
			fmt.Errorf("stored record missing %v", missing)).WithMetadata("missing", missing)
	}
	return nil
}

func (s *Session) remoteMissing(ctx context.Context, snap state.Snapshot) ([]string, error) {
	remote, err := s.deps.Store.Get(ctx, snap.ID)
	if err != nil {
		if errors.Is(err, processstore.ErrProcessNotFound) {
			return nil, apperrors.NewProcessNotFoundError(snap.ID)
		}
		return nil, apperrors.NewProcessWriteFailedError("submission verify", err)
	}
	return requirements.Missing(models.StepGuarantee, state.Snapshot{
		ID:      remote.ID,
		Step:    models.StepGuarantee,
		Payload: remote.Payload,
	}), nil
}

func validatePatch(p models.Patch) error {
	if p.SelectedProfile != nil && *p.SelectedProfile != "" && !p.SelectedProfile.Valid() {
		return apperrors.NewInvalidPatchError(fmt.Sprintf("unknown profile %q", *p.SelectedProfile))
	}
	if p.SelectedSecurity != nil && *p.SelectedSecurity != "" && !p.SelectedSecurity.Valid() {
		return apperrors.NewInvalidPatchError(fmt.Sprintf("unknown security %q", *p.SelectedSecurity))
	}
	return nil
}
