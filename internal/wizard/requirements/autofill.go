package requirements

import (
	"fmt"
	"strings"

	"rental-process/internal/catalog"
	"rental-process/internal/models"
)

// AutofillRefPrefix marks stand-in document references produced by autofill.
const AutofillRefPrefix = "autofill:"

// AutofillProfile builds a patch that satisfies every requirement up to the
// documents step for profile t. Manual testing aid only.
func AutofillProfile(t catalog.ProfileType) (models.Patch, error) {
	entry, ok := catalog.LookupProfile(string(t))
	if !ok {
		return models.Patch{}, fmt.Errorf("unknown profile %q", t)
	}

	accepted := true
	profile := entry.Type
	patch := models.Patch{
		SelectedProfile: &profile,
		AcceptedDeposit: &accepted,
		ApplicantInfo: map[string]string{
			FieldName:          "Test",
			FieldLastName:      "Applicant",
			FieldMonthlyIncome: "3500",
		},
		UploadedDocs: make(map[string][]models.DocumentRef, len(entry.Documents)),
	}
	for _, f := range entry.Documents {
		patch.UploadedDocs[f.ID] = []models.DocumentRef{standIn(f)}
	}
	return patch, nil
}

// AutofillSecurity builds a patch that fills every field of guarantee t,
// including consent when the guarantee requires it.
func AutofillSecurity(t catalog.SecurityType) (models.Patch, error) {
	entry, ok := catalog.LookupSecurity(string(t))
	if !ok {
		return models.Patch{}, fmt.Errorf("unknown security %q", t)
	}

	security := entry.Type
	patch := models.Patch{
		SelectedSecurity: &security,
		SecurityFields:   make(map[string]string, len(entry.Fields)+1),
	}
	for i, f := range entry.Fields {
		if f.Kind == catalog.KindDocument {
			if patch.UploadedDocs == nil {
				patch.UploadedDocs = make(map[string][]models.DocumentRef)
			}
			patch.UploadedDocs[f.ID] = []models.DocumentRef{standIn(f)}
			continue
		}
		patch.SecurityFields[f.ID] = placeholder(f, i)
	}
	if entry.RequiresCosignerConsent {
		patch.SecurityFields[catalog.ConsentFieldID] = "true"
	}
	return patch, nil
}

func standIn(f catalog.FieldSpec) models.DocumentRef {
	ext := "pdf"
	if f.FormatHint != "" {
		ext = strings.SplitN(f.FormatHint, ",", 2)[0]
	}
	return models.DocumentRef{Ref: AutofillRefPrefix + f.ID, FileName: f.ID + "." + ext}
}

func placeholder(f catalog.FieldSpec, i int) string {
	switch f.Kind {
	case catalog.KindCheckbox:
		return "true"
	case catalog.KindDate:
		return "2026-01-01"
	case catalog.KindEmail:
		return fmt.Sprintf("%s@example.com", strings.ToLower(f.ID))
	case catalog.KindPhone:
		return fmt.Sprintf("+1 555 010 %04d", i)
	default:
		return "Test " + f.Label
	}
}
