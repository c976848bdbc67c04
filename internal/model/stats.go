package model

// Stats holds the aggregate counts shown on the landing page.
type Stats struct {
	LocationsTotal    int `json:"locations_total" yaml:"locations_total"`
	LocationsVerified int `json:"locations_verified" yaml:"locations_verified"`
	TypesTotal        int `json:"types_total" yaml:"types_total"`
}
