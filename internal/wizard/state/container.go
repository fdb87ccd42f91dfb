// Package state holds the in-progress wizard payload for one session.
package state

import (
	"sync"

	"rental-process/internal/models"
)

// Field keys recorded in the touched set.
const (
	KeyStep             = "step"
	KeyTenantID         = "tenantId"
	KeyUnitID           = "unitId"
	KeySelectedProfile  = "selectedProfile"
	KeySelectedSecurity = "selectedSecurity"
	KeyAcceptedDeposit  = "acceptedDeposit"
)

func ApplicantKey(field string) string { return "applicantInfo." + field }
func SecurityKey(field string) string  { return "securityFields." + field }
func DocumentKey(field string) string  { return "uploadedDocs." + field }

// Snapshot is a deep copy of the container at one instant.
type Snapshot struct {
	ID           string               `json:"processId,omitempty"`
	Step         models.Step          `json:"currentStep"`
	FurthestStep models.Step          `json:"furthestStep"`
	Payload      models.Payload       `json:"payload"`
	TenantID     string               `json:"tenantId,omitempty"`
	UnitID       string               `json:"unitId,omitempty"`
	Status       models.ProcessStatus `json:"status"`
}

// Container is safe for concurrent use. It cannot fail.
type Container struct {
	mu       sync.RWMutex
	id       string
	step     models.Step
	furthest models.Step
	payload  models.Payload
	tenantID string
	unitID   string
	status   models.ProcessStatus
	touched  map[string]struct{}
}

func New() *Container {
	return &Container{
		step:     models.StepProfileSelect,
		furthest: models.StepProfileSelect,
		status:   models.StatusDraft,
		touched:  make(map[string]struct{}),
	}
}

// Patch merges p synchronously and records every key it wrote.
func (c *Container) Patch(p models.Patch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p.ApplyTo(&c.payload)
	for _, k := range patchKeys(p) {
		c.touched[k] = struct{}{}
	}
}

// Replace installs a whole snapshot without marking anything as touched.
func (c *Container) Replace(step models.Step, payload models.Payload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.payload = payload.Clone()
	if step.Valid() {
		c.step = step
		if step > c.furthest {
			c.furthest = step
		}
	}
}

func (c *Container) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		ID:           c.id,
		Step:         c.step,
		FurthestStep: c.furthest,
		Payload:      c.payload.Clone(),
		TenantID:     c.tenantID,
		UnitID:       c.unitID,
		Status:       c.status,
	}
}

func (c *Container) Payload() models.Payload {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.payload.Clone()
}

func (c *Container) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

func (c *Container) SetID(id string) {
	c.mu.Lock()
	c.id = id
	c.mu.Unlock()
}

func (c *Container) Step() models.Step {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.step
}

// SetStep moves the cursor and extends the furthest step reached.
func (c *Container) SetStep(step models.Step) {
	if !step.Valid() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = step
	if step > c.furthest {
		c.furthest = step
	}
	c.touched[KeyStep] = struct{}{}
}

// Refs returns the tenant and unit references.
func (c *Container) Refs() (tenantID, unitID string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tenantID, c.unitID
}

// SetRefs updates the non-nil references.
func (c *Container) SetRefs(tenantID, unitID *string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tenantID != nil {
		c.tenantID = *tenantID
		c.touched[KeyTenantID] = struct{}{}
	}
	if unitID != nil {
		c.unitID = *unitID
		c.touched[KeyUnitID] = struct{}{}
	}
}

// AdoptRefs fills references that are still empty and untouched.
func (c *Container) AdoptRefs(tenantID, unitID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tenantID == "" && !c.isTouched(KeyTenantID) {
		c.tenantID = tenantID
	}
	if c.unitID == "" && !c.isTouched(KeyUnitID) {
		c.unitID = unitID
	}
}

func (c *Container) MarkSubmitted() {
	c.mu.Lock()
	c.status = models.StatusSubmitted
	c.mu.Unlock()
}

// Touched reports whether key was written locally in this session.
func (c *Container) Touched(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.touched[key]
	return ok
}

// MergeRemote adopts server values only where the local value is empty and untouched.
// The remote id is always adopted.
func (c *Container) MergeRemote(remote *models.Process) {
	if remote == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.id = remote.ID
	if remote.Status != "" {
		c.status = remote.Status
	}

	if !c.isTouched(KeyStep) && c.step == models.StepProfileSelect && remote.CurrentStep.Valid() {
		c.step = remote.CurrentStep
	}
	if remote.CurrentStep > c.furthest && remote.CurrentStep.Valid() {
		c.furthest = remote.CurrentStep
	}
	if c.tenantID == "" && !c.isTouched(KeyTenantID) {
		c.tenantID = remote.TenantID
	}
	if c.unitID == "" && !c.isTouched(KeyUnitID) {
		c.unitID = remote.UnitID
	}

	rp := remote.Payload
	if c.payload.SelectedProfile == "" && !c.isTouched(KeySelectedProfile) {
		c.payload.SelectedProfile = rp.SelectedProfile
	}
	if c.payload.SelectedSecurity == "" && !c.isTouched(KeySelectedSecurity) {
		c.payload.SelectedSecurity = rp.SelectedSecurity
	}
	if !c.payload.AcceptedDeposit && !c.isTouched(KeyAcceptedDeposit) {
		c.payload.AcceptedDeposit = rp.AcceptedDeposit
	}
	c.payload.ApplicantInfo = mergeStrings(c.payload.ApplicantInfo, rp.ApplicantInfo, func(k string) bool {
		return c.isTouched(ApplicantKey(k))
	})
	c.payload.SecurityFields = mergeStrings(c.payload.SecurityFields, rp.SecurityFields, func(k string) bool {
		return c.isTouched(SecurityKey(k))
	})
	for k, refs := range rp.UploadedDocs {
		if len(c.payload.UploadedDocs[k]) > 0 || c.isTouched(DocumentKey(k)) {
			continue
		}
		if c.payload.UploadedDocs == nil {
			c.payload.UploadedDocs = make(map[string][]models.DocumentRef)
		}
		c.payload.UploadedDocs[k] = append([]models.DocumentRef(nil), refs...)
	}
}

func (c *Container) isTouched(key string) bool {
	_, ok := c.touched[key]
	return ok
}

func mergeStrings(local, remote map[string]string, touched func(string) bool) map[string]string {
	for k, v := range remote {
		if local[k] != "" || touched(k) {
			continue
		}
		if local == nil {
			local = make(map[string]string, len(remote))
		}
		local[k] = v
	}
	return local
}

func patchKeys(p models.Patch) []string {
	keys := make([]string, 0, len(p.ApplicantInfo)+len(p.SecurityFields)+len(p.UploadedDocs)+3)
	for k := range p.ApplicantInfo {
		keys = append(keys, ApplicantKey(k))
	}
	for k := range p.SecurityFields {
		keys = append(keys, SecurityKey(k))
	}
	for k := range p.UploadedDocs {
		keys = append(keys, DocumentKey(k))
	}
	if p.SelectedProfile != nil {
		keys = append(keys, KeySelectedProfile)
	}
	if p.SelectedSecurity != nil {
		keys = append(keys, KeySelectedSecurity)
	}
	if p.AcceptedDeposit != nil {
		keys = append(keys, KeyAcceptedDeposit)
	}
	return keys
}

// HasProfile is a convenience used by the step machine.
func (s Snapshot) HasProfile() bool { return s.Payload.SelectedProfile.Valid() }

// HasSecurity reports whether a valid guarantee was chosen.
func (s Snapshot) HasSecurity() bool { return s.Payload.SelectedSecurity.Valid() }
