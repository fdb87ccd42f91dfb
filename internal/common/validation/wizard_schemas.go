package validation

import "rental-process/internal/catalog"

func stringMap() map[string]interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"additionalProperties": map[string]interface{}{"type": "string"},
	}
}

func enumOf(values ...string) map[string]interface{} {
	vals := make([]interface{}, 0, len(values)+1)
	for _, v := range values {
		vals = append(vals, v)
	}
	// empty clears the selection
	vals = append(vals, "")
	return map[string]interface{}{"type": "string", "enum": vals}
}

func profileValues() []string {
	out := []string{}
	for _, p := range catalog.Profiles() {
		out = append(out, string(p.Type))
	}
	return out
}

func securityValues() []string {
	out := []string{}
	for _, s := range catalog.Securities() {
		out = append(out, string(s.Type))
	}
	return out
}

// PatchSchema describes a payload patch. Every field is optional.
func PatchSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"applicantInfo":    stringMap(),
			"selectedProfile":  enumOf(profileValues()...),
			"selectedSecurity": enumOf(securityValues()...),
			"securityFields":   stringMap(),
			"acceptedDeposit":  map[string]interface{}{"type": "boolean"},
			"uploadedDocs": map[string]interface{}{
				"type": "object",
				"additionalProperties": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type":     "object",
						"required": []interface{}{"ref"},
						"properties": map[string]interface{}{
							"ref":      map[string]interface{}{"type": "string", "minLength": 1},
							"fileName": map[string]interface{}{"type": "string"},
						},
					},
				},
			},
		},
		"additionalProperties": false,
	}
}

// PatchRequestSchema wraps PatchSchema with the step and flush flag.
func PatchRequestSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"patch"},
		"properties": map[string]interface{}{
			"step":      map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 4},
			"patch":     PatchSchema(),
			"immediate": map[string]interface{}{"type": "boolean"},
		},
		"additionalProperties": false,
	}
}

// UnitFilterSchema bounds the numeric ranges of the unit view.
func UnitFilterSchema() map[string]interface{} {
	nonNegative := map[string]interface{}{"type": "number", "minimum": 0}
	count := map[string]interface{}{"type": "integer", "minimum": 0}
	flag := map[string]interface{}{"type": "boolean"}
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"city":        map[string]interface{}{"type": "string"},
			"minRent":     nonNegative,
			"maxRent":     nonNegative,
			"minBedrooms": count,
			"maxBedrooms": count,
			"minArea":     nonNegative,
			"maxArea":     nonNegative,
			"furnished":   flag,
			"petsAllowed": flag,
			"parking":     flag,
			"page":        count,
			"size":        map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 100},
		},
		"additionalProperties": false,
	}
}

// TenantFilterSchema constrains the tenant view filter.
func TenantFilterSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"text":   map[string]interface{}{"type": "string", "maxLength": 200},
			"status": map[string]interface{}{"type": "string"},
			"page":   map[string]interface{}{"type": "integer", "minimum": 0},
			"size":   map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 100},
		},
		"additionalProperties": false,
	}
}
