// internal/store/processstore/memory.go
package processstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"rental-process/internal/models"
)

// MemoryStore is a process store held in memory. Used with wizard.store=memory and in tests.
type MemoryStore struct {
	mu        sync.RWMutex
	processes map[string]*models.Process
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		processes: make(map[string]*models.Process),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) Create(_ context.Context, payload models.Payload, step models.Step, tenantID, unitID string) (string, error) {
	if !step.Valid() {
		step = models.StepProfileSelect
	}
	now := m.now()
	p := &models.Process{
		ID:          uuid.New().String(),
		CurrentStep: step,
		Payload:     payload.Clone(),
		TenantID:    tenantID,
		UnitID:      unitID,
		Status:      models.StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	m.mu.Lock()
	m.processes[p.ID] = p
	m.mu.Unlock()
	return p.ID, nil
}

func (m *MemoryStore) Update(_ context.Context, id string, patch models.Patch, step models.Step, tenantID, unitID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.processes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProcessNotFound, id)
	}
	patch.ApplyTo(&p.Payload)
	if step.Valid() {
		p.CurrentStep = step
	}
	if tenantID != "" {
		p.TenantID = tenantID
	}
	if unitID != "" {
		p.UnitID = unitID
	}
	p.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*models.Process, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.processes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProcessNotFound, id)
	}
	cp := *p
	cp.Payload = p.Payload.Clone()
	return &cp, nil
}

func (m *MemoryStore) SetStatus(_ context.Context, id string, status models.ProcessStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.processes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProcessNotFound, id)
	}
	p.Status = status
	p.UpdatedAt = m.now()
	return nil
}

// Len reports how many processes are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.processes)
}
