// internal/models/search.go
package models

// TenantFilter drives the tenant search view.
type TenantFilter struct {
	Text   string `json:"text,omitempty"`
	Status string `json:"status,omitempty"`
	Page   int    `json:"page,omitempty"`
	Size   int    `json:"size,omitempty"`
}

type TenantSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Status string `json:"status,omitempty"`
}

// UnitFilter drives the available-unit view. Nil bounds and facets are ignored.
type UnitFilter struct {
	City        string   `json:"city,omitempty"`
	MinRent     *float64 `json:"minRent,omitempty"`
	MaxRent     *float64 `json:"maxRent,omitempty"`
	MinBedrooms *int     `json:"minBedrooms,omitempty"`
	MaxBedrooms *int     `json:"maxBedrooms,omitempty"`
	MinArea     *float64 `json:"minArea,omitempty"`
	MaxArea     *float64 `json:"maxArea,omitempty"`
	Furnished   *bool    `json:"furnished,omitempty"`
	PetsAllowed *bool    `json:"petsAllowed,omitempty"`
	Parking     *bool    `json:"parking,omitempty"`
	Page        int      `json:"page,omitempty"`
	Size        int      `json:"size,omitempty"`
}

type UnitSummary struct {
	ID          string  `json:"id"`
	PropertyID  string  `json:"propertyId,omitempty"`
	Title       string  `json:"title"`
	City        string  `json:"city,omitempty"`
	Rent        float64 `json:"rent"`
	Bedrooms    int     `json:"bedrooms"`
	Area        float64 `json:"area,omitempty"`
	Furnished   bool    `json:"furnished"`
	PetsAllowed bool    `json:"petsAllowed"`
	Parking     bool    `json:"parking"`
}
