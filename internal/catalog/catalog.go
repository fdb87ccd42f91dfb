// internal/catalog/catalog.go
package catalog

import "fmt"

// ProfileType identifies an applicant profile. The empty value means none chosen.
type ProfileType string

const (
	ProfileFormal       ProfileType = "formal"
	ProfileIndependent  ProfileType = "independent"
	ProfileRetired      ProfileType = "retired"
	ProfileEntrepreneur ProfileType = "entrepreneur"
	ProfileInvestor     ProfileType = "investor"
	ProfileStudent      ProfileType = "student"
	ProfileForeign      ProfileType = "foreign"
	ProfileNomad        ProfileType = "nomad"
)

// SecurityType identifies a guarantee mechanism. The empty value means none chosen.
type SecurityType string

const (
	SecurityDouble     SecurityType = "double"
	SecurityReinforced SecurityType = "reinforced"
	SecurityInsurance  SecurityType = "insurance"
	SecurityMixed      SecurityType = "mixed"
)

// FieldKind is the input shape of a required field.
type FieldKind string

const (
	KindDocument FieldKind = "document"
	KindText     FieldKind = "text"
	KindCheckbox FieldKind = "checkbox"
	KindDate     FieldKind = "date"
	KindEmail    FieldKind = "email"
	KindPhone    FieldKind = "phone"
)

// FieldSource tells which catalog table contributed a field.
type FieldSource string

const (
	SourceProfile  FieldSource = "profile"
	SourceSecurity FieldSource = "security"
	SourceConsent  FieldSource = "consent"
)

// ConsentFieldID is the checkbox injected for guarantees that notify co-signers.
const ConsentFieldID = "cosignerConsent"

type FieldSpec struct {
	ID         string      `json:"id"`
	Label      string      `json:"label"`
	Kind       FieldKind   `json:"kind"`
	FormatHint string      `json:"formatHint,omitempty"`
	Multiple   bool        `json:"multiple,omitempty"`
	Optional   bool        `json:"optional,omitempty"`
	Source     FieldSource `json:"source"`
}

// CosignerSlot names the security fields that describe one co-signer.
type CosignerSlot struct {
	NameField  string `json:"nameField"`
	EmailField string `json:"emailField"`
	PhoneField string `json:"phoneField"`
}

type ProfileEntry struct {
	Type                ProfileType `json:"type"`
	Label               string      `json:"label"`
	Documents           []FieldSpec `json:"documents"`
	MinDepositTermMonth int         `json:"minDepositTermMonths"`
}

type SecurityEntry struct {
	Type                    SecurityType   `json:"type"`
	Label                   string         `json:"label"`
	Description             string         `json:"description"`
	Fields                  []FieldSpec    `json:"fields"`
	RequiresCosignerConsent bool           `json:"requiresCosignerConsent"`
	Cosigners               []CosignerSlot `json:"cosigners,omitempty"`
}

// ConsentField is the mandatory co-signer consent checkbox.
var ConsentField = FieldSpec{
	ID:     ConsentFieldID,
	Label:  "I confirm my co-signers agreed to be contacted",
	Kind:   KindCheckbox,
	Source: SourceConsent,
}

var (
	profileOrder = []ProfileType{
		ProfileFormal, ProfileIndependent, ProfileRetired, ProfileEntrepreneur,
		ProfileInvestor, ProfileStudent, ProfileForeign, ProfileNomad,
	}
	securityOrder = []SecurityType{
		SecurityDouble, SecurityReinforced, SecurityInsurance, SecurityMixed,
	}
)

// Profile returns the entry for a valid profile type and panics for values outside the enumeration.
func Profile(t ProfileType) ProfileEntry {
	e, ok := profiles[t]
	if !ok {
		panic(fmt.Sprintf("catalog: unknown profile type %q", t))
	}
	return e.clone()
}

// LookupProfile resolves untrusted input.
func LookupProfile(s string) (ProfileEntry, bool) {
	e, ok := profiles[ProfileType(s)]
	if !ok {
		return ProfileEntry{}, false
	}
	return e.clone(), true
}

// Security returns the entry for a valid security type and panics for values outside the enumeration.
func Security(t SecurityType) SecurityEntry {
	e, ok := securities[t]
	if !ok {
		panic(fmt.Sprintf("catalog: unknown security type %q", t))
	}
	return e.clone()
}

func LookupSecurity(s string) (SecurityEntry, bool) {
	e, ok := securities[SecurityType(s)]
	if !ok {
		return SecurityEntry{}, false
	}
	return e.clone(), true
}

// Profiles lists every profile in display order.
func Profiles() []ProfileEntry {
	out := make([]ProfileEntry, 0, len(profileOrder))
	for _, t := range profileOrder {
		out = append(out, profiles[t].clone())
	}
	return out
}

// Securities lists every guarantee type in display order.
func Securities() []SecurityEntry {
	out := make([]SecurityEntry, 0, len(securityOrder))
	for _, t := range securityOrder {
		out = append(out, securities[t].clone())
	}
	return out
}

func (t ProfileType) Valid() bool {
	_, ok := profiles[t]
	return ok
}

func (t SecurityType) Valid() bool {
	_, ok := securities[t]
	return ok
}

// NeedsConsent reports whether the guarantee notifies co-signers.
func (t SecurityType) NeedsConsent() bool {
	e, ok := securities[t]
	return ok && e.RequiresCosignerConsent
}

func (e ProfileEntry) clone() ProfileEntry {
	e.Documents = append([]FieldSpec(nil), e.Documents...)
	return e
}

func (e SecurityEntry) clone() SecurityEntry {
	e.Fields = append([]FieldSpec(nil), e.Fields...)
	e.Cosigners = append([]CosignerSlot(nil), e.Cosigners...)
	return e
}
