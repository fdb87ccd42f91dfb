// internal/catalog/tables.go
package catalog

func doc(id, label, hint string, multiple bool) FieldSpec {
	return FieldSpec{ID: id, Label: label, Kind: KindDocument, FormatHint: hint, Multiple: multiple, Source: SourceProfile}
}

func optionalDoc(id, label, hint string, multiple bool) FieldSpec {
	f := doc(id, label, hint, multiple)
	f.Optional = true
	return f
}

func secField(id, label string, kind FieldKind) FieldSpec {
	f := FieldSpec{ID: id, Label: label, Kind: kind, Source: SourceSecurity}
	if kind == KindDocument {
		f.FormatHint = "pdf,jpg,png"
	}
	return f
}

func cosignerFields(prefix, label string) ([]FieldSpec, CosignerSlot) {
	slot := CosignerSlot{
		NameField:  prefix + "Name",
		EmailField: prefix + "Email",
		PhoneField: prefix + "Phone",
	}
	return []FieldSpec{
		secField(slot.NameField, label+" full name", KindText),
		secField(slot.EmailField, label+" email", KindEmail),
		secField(slot.PhoneField, label+" phone", KindPhone),
		secField(prefix+"IncomeProof", label+" proof of income", KindDocument),
	}, slot
}

var idDocument = doc("idDocument", "Identity document", "pdf,jpg,png", false)
var passport = doc("passport", "Passport", "pdf,jpg,png", false)
var bankStatements = doc("bankStatements", "Bank statements (last 3 months)", "pdf", true)

var profiles = map[ProfileType]ProfileEntry{
	ProfileFormal: {
		Type:  ProfileFormal,
		Label: "Formally employed",
		Documents: []FieldSpec{
			idDocument,
			doc("payslips", "Payslips (last 3 months)", "pdf", true),
			doc("employmentLetter", "Employment letter", "pdf", false),
			bankStatements,
		},
		MinDepositTermMonth: 1,
	},
	ProfileIndependent: {
		Type:  ProfileIndependent,
		Label: "Independent professional",
		Documents: []FieldSpec{
			idDocument,
			doc("taxReturns", "Tax returns (last 2 years)", "pdf", true),
			doc("invoices", "Recent invoices", "pdf", true),
			bankStatements,
		},
		MinDepositTermMonth: 2,
	},
	ProfileRetired: {
		Type:  ProfileRetired,
		Label: "Retired",
		Documents: []FieldSpec{
			idDocument,
			doc("pensionStatement", "Pension statement", "pdf", false),
			bankStatements,
		},
		MinDepositTermMonth: 1,
	},
	ProfileEntrepreneur: {
		Type:  ProfileEntrepreneur,
		Label: "Entrepreneur",
		Documents: []FieldSpec{
			idDocument,
			doc("companyRegistration", "Company registration", "pdf", false),
			doc("taxReturns", "Tax returns (last 2 years)", "pdf", true),
			bankStatements,
			optionalDoc("financialStatements", "Company financial statements", "pdf,xlsx", true),
		},
		MinDepositTermMonth: 2,
	},
	ProfileInvestor: {
		Type:  ProfileInvestor,
		Label: "Investor",
		Documents: []FieldSpec{
			idDocument,
			doc("assetStatement", "Investment or asset statement", "pdf", true),
			bankStatements,
		},
		MinDepositTermMonth: 1,
	},
	ProfileStudent: {
		Type:  ProfileStudent,
		Label: "Student",
		Documents: []FieldSpec{
			idDocument,
			doc("enrollmentCertificate", "Enrollment certificate", "pdf", false),
			doc("supportLetter", "Family support or scholarship letter", "pdf", false),
		},
		MinDepositTermMonth: 3,
	},
	ProfileForeign: {
		Type:  ProfileForeign,
		Label: "Foreign resident",
		Documents: []FieldSpec{
			passport,
			doc("residencePermit", "Visa or residence permit", "pdf,jpg,png", false),
			doc("foreignIncomeProof", "Proof of income abroad", "pdf", true),
		},
		MinDepositTermMonth: 6,
	},
	ProfileNomad: {
		Type:  ProfileNomad,
		Label: "Digital nomad",
		Documents: []FieldSpec{
			passport,
			doc("remoteWorkContract", "Remote work contract", "pdf", false),
			bankStatements,
		},
		MinDepositTermMonth: 6,
	},
}

var securities = buildSecurities()

func buildSecurities() map[SecurityType]SecurityEntry {
	first, firstSlot := cosignerFields("cosigner1", "First co-signer")
	second, secondSlot := cosignerFields("cosigner2", "Second co-signer")
	single, singleSlot := cosignerFields("cosigner", "Co-signer")

	policy := []FieldSpec{
		secField("insurerName", "Insurance company", KindText),
		secField("policyNumber", "Policy number", KindText),
		secField("policyDocument", "Policy document", KindDocument),
		secField("policyStartDate", "Policy start date", KindDate),
	}

	double := append(append([]FieldSpec{}, first...), second...)

	reinforced := append([]FieldSpec{}, single...)
	reinforced = append(reinforced,
		secField("cosignerPropertyDeed", "Co-signer property deed", KindDocument),
		secField("additionalDepositAck", "I accept one additional month of deposit", KindCheckbox),
	)

	mixed := append([]FieldSpec{}, single[:3]...)
	mixed = append(mixed, policy[1], policy[2])

	return map[SecurityType]SecurityEntry{
		SecurityDouble: {
			Type:                    SecurityDouble,
			Label:                   "Dual co-signer",
			Description:             "Two co-signers with verifiable income guarantee the lease.",
			Fields:                  double,
			RequiresCosignerConsent: true,
			Cosigners:               []CosignerSlot{firstSlot, secondSlot},
		},
		SecurityReinforced: {
			Type:                    SecurityReinforced,
			Label:                   "Reinforced single co-signer",
			Description:             "One co-signer who owns property plus an extra deposit month.",
			Fields:                  reinforced,
			RequiresCosignerConsent: true,
			Cosigners:               []CosignerSlot{singleSlot},
		},
		SecurityInsurance: {
			Type:        SecurityInsurance,
			Label:       "Rent guarantee insurance",
			Description: "An active rent guarantee insurance policy covers the lease.",
			Fields:      policy,
		},
		SecurityMixed: {
			Type:                    SecurityMixed,
			Label:                   "Mixed guarantee",
			Description:             "A co-signer combined with a rent guarantee policy.",
			Fields:                  mixed,
			RequiresCosignerConsent: true,
			Cosigners:               []CosignerSlot{singleSlot},
		},
	}
}
