package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rental-process/internal/catalog"
)

func TestPatch_ApplyTo_MergesPerKey(t *testing.T) {
	p := Payload{ApplicantInfo: map[string]string{"name": "Ana"}}

	Patch{ApplicantInfo: map[string]string{"city": "Lima"}}.ApplyTo(&p)

	assert.Equal(t, map[string]string{"name": "Ana", "city": "Lima"}, p.ApplicantInfo)
}

func TestPatch_ApplyTo_ScalarsOnlyWhenSet(t *testing.T) {
	profile := catalog.ProfileStudent
	p := Payload{AcceptedDeposit: true, SelectedSecurity: catalog.SecurityInsurance}

	Patch{SelectedProfile: &profile}.ApplyTo(&p)

	assert.Equal(t, catalog.ProfileStudent, p.SelectedProfile)
	assert.Equal(t, catalog.SecurityInsurance, p.SelectedSecurity)
	assert.True(t, p.AcceptedDeposit)

	no := false
	Patch{AcceptedDeposit: &no}.ApplyTo(&p)
	assert.False(t, p.AcceptedDeposit)
}

func TestPatch_Merge_LaterWins(t *testing.T) {
	first := Patch{ApplicantInfo: map[string]string{"name": "An", "lastName": "Diaz"}}
	second := Patch{ApplicantInfo: map[string]string{"name": "Ana"}, UploadedDocs: map[string][]DocumentRef{"idDocument": {{Ref: "r1"}}}}

	merged := first.Merge(second)

	assert.Equal(t, "Ana", merged.ApplicantInfo["name"])
	assert.Equal(t, "Diaz", merged.ApplicantInfo["lastName"])
	assert.Len(t, merged.UploadedDocs["idDocument"], 1)
	assert.Equal(t, "An", first.ApplicantInfo["name"], "merge must not mutate the receiver")
}

func TestPayload_CloneIsDeep(t *testing.T) {
	p := Payload{
		ApplicantInfo: map[string]string{"name": "Ana"},
		UploadedDocs:  map[string][]DocumentRef{"payslips": {{Ref: "a"}}},
	}
	c := p.Clone()
	c.ApplicantInfo["name"] = "Eva"
	c.UploadedDocs["payslips"][0].Ref = "b"

	assert.Equal(t, "Ana", p.ApplicantInfo["name"])
	assert.Equal(t, "a", p.UploadedDocs["payslips"][0].Ref)
}

func TestPayload_AsPatch(t *testing.T) {
	p := Payload{SelectedProfile: catalog.ProfileFormal, AcceptedDeposit: true}
	patch := p.AsPatch()

	assert.NotNil(t, patch.SelectedProfile)
	assert.Nil(t, patch.SelectedSecurity)
	assert.True(t, *patch.AcceptedDeposit)
	assert.False(t, patch.IsEmpty())
	assert.True(t, Payload{}.AsPatch().IsEmpty())
}

func TestStep_Valid(t *testing.T) {
	assert.False(t, Step(0).Valid())
	assert.True(t, StepGuarantee.Valid())
	assert.False(t, Step(5).Valid())
	assert.Equal(t, "documents", StepDocuments.String())
}
