// Package requirements derives the active field set from the chosen profile and
// guarantee, and gates wizard transitions on it.
package requirements

import (
	"strings"

	"rental-process/internal/catalog"
	"rental-process/internal/models"
	"rental-process/internal/wizard/state"
)

// Applicant fields required on the basic info step.
const (
	FieldName          = "name"
	FieldLastName      = "lastName"
	FieldMonthlyIncome = "monthlyIncome"
)

// Ids reported by Missing for non-field requirements.
const (
	MissingProfile   = "selectedProfile"
	MissingSecurity  = "selectedSecurity"
	MissingDeposit   = "acceptedDeposit"
	MissingProcessID = "processId"
)

var basicInfoFields = []string{FieldName, FieldLastName, FieldMonthlyIncome}

// RequiredFields returns the profile documents, then the guarantee fields, then
// the consent checkbox when the guarantee notifies co-signers. Unknown or empty
// types contribute nothing.
func RequiredFields(profile catalog.ProfileType, security catalog.SecurityType) []catalog.FieldSpec {
	var fields []catalog.FieldSpec
	if p, ok := catalog.LookupProfile(string(profile)); ok {
		fields = append(fields, p.Documents...)
	}
	if s, ok := catalog.LookupSecurity(string(security)); ok {
		fields = append(fields, s.Fields...)
		if s.RequiresCosignerConsent {
			fields = append(fields, catalog.ConsentField)
		}
	}
	return fields
}

// CanAdvance reports whether the snapshot satisfies everything step requires.
func CanAdvance(step models.Step, snap state.Snapshot) bool {
	return step.Valid() && len(Missing(step, snap)) == 0
}

// Missing lists the ids of unmet requirements for step, in display order.
// Each step includes the requirements of the steps before it.
func Missing(step models.Step, snap state.Snapshot) []string {
	var missing []string
	p := snap.Payload

	if step >= models.StepProfileSelect && !snap.HasProfile() {
		missing = append(missing, MissingProfile)
	}

	if step >= models.StepBasicInfo {
		for _, f := range basicInfoFields {
			if strings.TrimSpace(p.ApplicantInfo[f]) == "" {
				missing = append(missing, f)
			}
		}
		if !p.AcceptedDeposit {
			missing = append(missing, MissingDeposit)
		}
	}

	if step >= models.StepDocuments && snap.HasProfile() {
		for _, f := range catalog.Profile(p.SelectedProfile).Documents {
			if !f.Optional && !filled(f, p) {
				missing = append(missing, f.ID)
			}
		}
	}

	if step >= models.StepGuarantee {
		if !snap.HasSecurity() {
			missing = append(missing, MissingSecurity)
		} else {
			for _, f := range RequiredFields("", p.SelectedSecurity) {
				if !f.Optional && !filled(f, p) {
					missing = append(missing, f.ID)
				}
			}
		}
		if snap.ID == "" {
			missing = append(missing, MissingProcessID)
		}
	}

	return missing
}

// filled checks a field against the payload section its kind is stored in.
// Documents live in uploadedDocs, everything else in securityFields.
func filled(f catalog.FieldSpec, p models.Payload) bool {
	switch f.Kind {
	case catalog.KindDocument:
		for _, ref := range p.UploadedDocs[f.ID] {
			if ref.Ref != "" {
				return true
			}
		}
		return false
	case catalog.KindCheckbox:
		return p.SecurityFields[f.ID] == "true"
	default:
		return strings.TrimSpace(p.SecurityFields[f.ID]) != ""
	}
}
