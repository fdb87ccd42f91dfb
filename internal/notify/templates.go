package notify

import (
	"strings"

	"rental-process/internal/catalog"
	"rental-process/internal/models"
)

func defaultTemplates() map[string]models.NotificationTemplate {
	return map[string]models.NotificationTemplate{
		TypeCosignerConsent: {
			ID:      TypeCosignerConsent,
			Subject: "You were named as co-signer for {{applicantName}}",
			Body: "Hello {{cosignerName}},\n\n{{applicantName}} named you as co-signer " +
				"({{securityLabel}}) on rental application {{processId}}. " +
				"Our team will contact you to confirm.",
			HTMLBody: "<p>Hello {{cosignerName}},</p><p>{{applicantName}} named you as co-signer " +
				"(<strong>{{securityLabel}}</strong>) on rental application <code>{{processId}}</code>. " +
				"Our team will contact you to confirm.</p>",
			SMSBody: "{{applicantName}} named you co-signer on rental application {{processId}}. We will contact you to confirm.",
		},
	}
}

// renderTemplate replaces {{key}} placeholders and drops unknown ones.
func renderTemplate(tmpl string, data map[string]string) string {
	result := tmpl
	for k, v := range data {
		result = strings.ReplaceAll(result, "{{"+k+"}}", v)
	}
	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		result = result[:start] + result[start+end+2:]
	}
	return result
}

// CosignersFor reads the co-signer contacts the chosen guarantee collects.
// Slots without a name or email are skipped.
func CosignersFor(p models.Payload) []models.Cosigner {
	entry, ok := catalog.LookupSecurity(string(p.SelectedSecurity))
	if !ok {
		return nil
	}
	var out []models.Cosigner
	for _, slot := range entry.Cosigners {
		c := models.Cosigner{
			Name:  strings.TrimSpace(p.SecurityFields[slot.NameField]),
			Email: strings.TrimSpace(p.SecurityFields[slot.EmailField]),
			Phone: strings.TrimSpace(p.SecurityFields[slot.PhoneField]),
		}
		if c.Name == "" && c.Email == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// TemplateData builds the placeholder values shared by every co-signer message.
func TemplateData(p models.Payload) map[string]string {
	name := strings.TrimSpace(p.ApplicantInfo["name"] + " " + p.ApplicantInfo["lastName"])
	data := map[string]string{"applicantName": name}
	if entry, ok := catalog.LookupSecurity(string(p.SelectedSecurity)); ok {
		data["securityLabel"] = entry.Label
	}
	return data
}
