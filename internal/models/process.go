// internal/models/process.go
package models

import (
	"time"

	"rental-process/internal/catalog"
)

// Step is a wizard page, 1..4.
type Step int

const (
	StepProfileSelect Step = 1
	StepBasicInfo     Step = 2
	StepDocuments     Step = 3
	StepGuarantee     Step = 4
)

func (s Step) Valid() bool { return s >= StepProfileSelect && s <= StepGuarantee }

func (s Step) String() string {
	switch s {
	case StepProfileSelect:
		return "profile_select"
	case StepBasicInfo:
		return "basic_info"
	case StepDocuments:
		return "documents"
	case StepGuarantee:
		return "guarantee"
	default:
		return "unknown"
	}
}

type ProcessStatus string

const (
	StatusDraft     ProcessStatus = "draft"
	StatusSubmitted ProcessStatus = "submitted"
)

// Process is the persisted record behind one wizard run.
type Process struct {
	ID          string        `json:"id"`
	CurrentStep Step          `json:"currentStep"`
	Payload     Payload       `json:"payload"`
	TenantID    string        `json:"tenantId,omitempty"`
	UnitID      string        `json:"unitId,omitempty"`
	Status      ProcessStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// DocumentRef is an opaque reference returned by the document upload sink.
type DocumentRef struct {
	Ref      string `json:"ref"`
	FileName string `json:"fileName,omitempty"`
}

// Payload is always a valid partial object; every field is optional.
type Payload struct {
	ApplicantInfo    map[string]string        `json:"applicantInfo,omitempty"`
	SelectedProfile  catalog.ProfileType      `json:"selectedProfile,omitempty"`
	SelectedSecurity catalog.SecurityType     `json:"selectedSecurity,omitempty"`
	SecurityFields   map[string]string        `json:"securityFields,omitempty"`
	AcceptedDeposit  bool                     `json:"acceptedDeposit"`
	UploadedDocs     map[string][]DocumentRef `json:"uploadedDocs,omitempty"`
}

// Clone returns a deep copy.
func (p Payload) Clone() Payload {
	out := p
	out.ApplicantInfo = cloneStrings(p.ApplicantInfo)
	out.SecurityFields = cloneStrings(p.SecurityFields)
	out.UploadedDocs = cloneDocs(p.UploadedDocs)
	return out
}

// AsPatch expresses the whole payload as a patch.
func (p Payload) AsPatch() Patch {
	patch := Patch{
		ApplicantInfo:  cloneStrings(p.ApplicantInfo),
		SecurityFields: cloneStrings(p.SecurityFields),
		UploadedDocs:   cloneDocs(p.UploadedDocs),
	}
	if p.SelectedProfile != "" {
		v := p.SelectedProfile
		patch.SelectedProfile = &v
	}
	if p.SelectedSecurity != "" {
		v := p.SelectedSecurity
		patch.SelectedSecurity = &v
	}
	if p.AcceptedDeposit {
		v := true
		patch.AcceptedDeposit = &v
	}
	return patch
}

// Patch is the only mutation shape. Maps merge per key; pointers apply only when set.
type Patch struct {
	ApplicantInfo    map[string]string        `json:"applicantInfo,omitempty"`
	SelectedProfile  *catalog.ProfileType     `json:"selectedProfile,omitempty"`
	SelectedSecurity *catalog.SecurityType    `json:"selectedSecurity,omitempty"`
	SecurityFields   map[string]string        `json:"securityFields,omitempty"`
	AcceptedDeposit  *bool                    `json:"acceptedDeposit,omitempty"`
	UploadedDocs     map[string][]DocumentRef `json:"uploadedDocs,omitempty"`
}

func (p Patch) IsEmpty() bool {
	return len(p.ApplicantInfo) == 0 && p.SelectedProfile == nil && p.SelectedSecurity == nil &&
		len(p.SecurityFields) == 0 && p.AcceptedDeposit == nil && len(p.UploadedDocs) == 0
}

// ApplyTo merges the patch into dst.
func (p Patch) ApplyTo(dst *Payload) {
	if len(p.ApplicantInfo) > 0 {
		if dst.ApplicantInfo == nil {
			dst.ApplicantInfo = make(map[string]string, len(p.ApplicantInfo))
		}
		for k, v := range p.ApplicantInfo {
			dst.ApplicantInfo[k] = v
		}
	}
	if p.SelectedProfile != nil {
		dst.SelectedProfile = *p.SelectedProfile
	}
	if p.SelectedSecurity != nil {
		dst.SelectedSecurity = *p.SelectedSecurity
	}
	if len(p.SecurityFields) > 0 {
		if dst.SecurityFields == nil {
			dst.SecurityFields = make(map[string]string, len(p.SecurityFields))
		}
		for k, v := range p.SecurityFields {
			dst.SecurityFields[k] = v
		}
	}
	if p.AcceptedDeposit != nil {
		dst.AcceptedDeposit = *p.AcceptedDeposit
	}
	if len(p.UploadedDocs) > 0 {
		if dst.UploadedDocs == nil {
			dst.UploadedDocs = make(map[string][]DocumentRef, len(p.UploadedDocs))
		}
		for k, v := range p.UploadedDocs {
			dst.UploadedDocs[k] = append([]DocumentRef(nil), v...)
		}
	}
}

// Merge folds next into p; later values win per key.
func (p Patch) Merge(next Patch) Patch {
	out := p.Clone()
	for k, v := range next.ApplicantInfo {
		if out.ApplicantInfo == nil {
			out.ApplicantInfo = map[string]string{}
		}
		out.ApplicantInfo[k] = v
	}
	if next.SelectedProfile != nil {
		v := *next.SelectedProfile
		out.SelectedProfile = &v
	}
	if next.SelectedSecurity != nil {
		v := *next.SelectedSecurity
		out.SelectedSecurity = &v
	}
	for k, v := range next.SecurityFields {
		if out.SecurityFields == nil {
			out.SecurityFields = map[string]string{}
		}
		out.SecurityFields[k] = v
	}
	if next.AcceptedDeposit != nil {
		v := *next.AcceptedDeposit
		out.AcceptedDeposit = &v
	}
	for k, v := range next.UploadedDocs {
		if out.UploadedDocs == nil {
			out.UploadedDocs = map[string][]DocumentRef{}
		}
		out.UploadedDocs[k] = append([]DocumentRef(nil), v...)
	}
	return out
}

func (p Patch) Clone() Patch {
	out := Patch{
		ApplicantInfo:  cloneStrings(p.ApplicantInfo),
		SecurityFields: cloneStrings(p.SecurityFields),
		UploadedDocs:   cloneDocs(p.UploadedDocs),
	}
	if p.SelectedProfile != nil {
		v := *p.SelectedProfile
		out.SelectedProfile = &v
	}
	if p.SelectedSecurity != nil {
		v := *p.SelectedSecurity
		out.SelectedSecurity = &v
	}
	if p.AcceptedDeposit != nil {
		v := *p.AcceptedDeposit
		out.AcceptedDeposit = &v
	}
	return out
}

func cloneStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneDocs(m map[string][]DocumentRef) map[string][]DocumentRef {
	if m == nil {
		return nil
	}
	out := make(map[string][]DocumentRef, len(m))
	for k, v := range m {
		out[k] = append([]DocumentRef(nil), v...)
	}
	return out
}
