package model

// Location is a foraging point as stored. Hidden rows are soft-deleted.
type Location struct {
	ID          int64   `json:"id"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Description *string `json:"description"`
	Access      *string `json:"access"`
	SeasonStart *string `json:"season_start"`
	SeasonStop  *string `json:"season_stop"`
	NoSeason    bool    `json:"no_season"`
	Author      *string `json:"author"`
	Address     *string `json:"address"`
	ImportLink  *string `json:"import_link"`
	OriginalIDs *string `json:"original_ids"`
	Unverified  bool    `json:"unverified"`
	Hidden      bool    `json:"-"`
	CreatedAt   *string `json:"created_at"`
	UpdatedAt   *string `json:"updated_at"`
}

// LocationSummary is one row of a bounding box search.
type LocationSummary struct {
	ID          int64    `json:"id"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Description *string  `json:"description"`
	Access      *string  `json:"access"`
	SeasonStart *string  `json:"season_start"`
	SeasonStop  *string  `json:"season_stop"`
	TypeIDs     []int64  `json:"type_ids"`
	Unverified  bool     `json:"unverified"`
	DistanceM   *float64 `json:"distance_m,omitempty"`
}

// LocationDetail is a single location with its types resolved.
type LocationDetail struct {
	Location
	TypeIDs []int64       `json:"type_ids"`
	Types   []TypeSummary `json:"types"`
}
