package search

import (
	"strings"

	"rental-process/internal/models"
)

const maxPageSize = 100

func page(p, size, def int) (from, n int) {
	n = size
	if n < 1 {
		n = def
	}
	if n > maxPageSize {
		n = maxPageSize
	}
	if p < 1 {
		p = 1
	}
	return (p - 1) * n, n
}

// TenantQuery matches free text as-you-type over name and contact fields.
func TenantQuery(f models.TenantFilter) map[string]interface{} {
	must := []interface{}{}
	filter := []interface{}{}

	if text := strings.TrimSpace(f.Text); text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  text,
				"fields": []string{"name^3", "email", "phone"},
				"type":   "phrase_prefix",
			},
		})
	}
	if f.Status != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"status": f.Status},
		})
	}
	if len(must) == 0 {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	boolQuery := map[string]interface{}{"must": must}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}
	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"sort": []interface{}{
			map[string]interface{}{"_score": "desc"},
			map[string]interface{}{"name.keyword": "asc"},
		},
	}
}

// UnitQuery returns available units inside the numeric ranges and boolean facets set.
func UnitQuery(f models.UnitFilter) map[string]interface{} {
	filter := []interface{}{
		map[string]interface{}{"term": map[string]interface{}{"available": true}},
	}

	if f.City != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"city": f.City},
		})
	}
	if r := rangeClause(f.MinRent, f.MaxRent); r != nil {
		filter = append(filter, map[string]interface{}{"range": map[string]interface{}{"rent": r}})
	}
	if r := rangeClause(toFloat(f.MinBedrooms), toFloat(f.MaxBedrooms)); r != nil {
		filter = append(filter, map[string]interface{}{"range": map[string]interface{}{"bedrooms": r}})
	}
	if r := rangeClause(f.MinArea, f.MaxArea); r != nil {
		filter = append(filter, map[string]interface{}{"range": map[string]interface{}{"area": r}})
	}
	facets := []struct {
		field string
		value *bool
	}{
		{"furnished", f.Furnished},
		{"petsAllowed", f.PetsAllowed},
		{"parking", f.Parking},
	}
	for _, facet := range facets {
		if facet.value != nil {
			filter = append(filter, map[string]interface{}{
				"term": map[string]interface{}{facet.field: *facet.value},
			})
		}
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"filter": filter},
		},
		"sort": []interface{}{
			map[string]interface{}{"rent": "asc"},
		},
	}
}

func rangeClause(min, max *float64) map[string]interface{} {
	if min == nil && max == nil {
		return nil
	}
	r := map[string]interface{}{}
	if min != nil {
		r["gte"] = *min
	}
	if max != nil {
		r["lte"] = *max
	}
	return r
}

func toFloat(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}
