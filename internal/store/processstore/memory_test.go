package processstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-process/internal/catalog"
	"rental-process/internal/models"
)

func TestMemoryStore_CreateUpdateGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id, err := s.Create(ctx, models.Payload{ApplicantInfo: map[string]string{"name": "Ana"}}, models.StepBasicInfo, "", "")
	require.NoError(t, err)

	security := catalog.SecurityInsurance
	require.NoError(t, s.Update(ctx, id, models.Patch{
		ApplicantInfo:    map[string]string{"lastName": "Diaz"},
		SelectedSecurity: &security,
	}, models.StepGuarantee, "t-1", ""))

	p, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.Payload.ApplicantInfo["name"])
	assert.Equal(t, "Diaz", p.Payload.ApplicantInfo["lastName"])
	assert.Equal(t, catalog.SecurityInsurance, p.Payload.SelectedSecurity)
	assert.Equal(t, models.StepGuarantee, p.CurrentStep)
	assert.Equal(t, "t-1", p.TenantID)
	assert.Equal(t, models.StatusDraft, p.Status)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id, _ := s.Create(ctx, models.Payload{ApplicantInfo: map[string]string{"name": "Ana"}}, models.StepBasicInfo, "", "")

	p, _ := s.Get(ctx, id)
	p.Payload.ApplicantInfo["name"] = "mutated"

	again, _ := s.Get(ctx, id)
	assert.Equal(t, "Ana", again.Payload.ApplicantInfo["name"])
}

func TestMemoryStore_NotFound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrProcessNotFound)
	assert.ErrorIs(t, s.Update(ctx, "missing", models.Patch{}, models.StepBasicInfo, "", ""), ErrProcessNotFound)
	assert.ErrorIs(t, s.SetStatus(ctx, "missing", models.StatusSubmitted), ErrProcessNotFound)
}

func TestMemoryStore_SetStatus(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id, _ := s.Create(ctx, models.Payload{}, models.Step(0), "", "")

	require.NoError(t, s.SetStatus(ctx, id, models.StatusSubmitted))
	p, _ := s.Get(ctx, id)
	assert.Equal(t, models.StatusSubmitted, p.Status)
	assert.Equal(t, models.StepProfileSelect, p.CurrentStep)
}
