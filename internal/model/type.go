package model

// Type is a taxonomic entry. ParentID forms a tree that is not checked for cycles.
type Type struct {
	ID                 int64          `json:"id"`
	ParentID           *int64         `json:"parent_id"`
	ParentName         *string        `json:"parent_name"`
	ScientificName     *string        `json:"scientific_name"`
	ScientificSynonyms *string        `json:"scientific_synonyms,omitempty"`
	TaxonomicRank      *string        `json:"taxonomic_rank"`
	EnName             *string        `json:"en_name"`
	EnSynonyms         *string        `json:"en_synonyms,omitempty"`
	WikipediaURL       *string        `json:"wikipedia_url"`
	CategoryMask       *string        `json:"category_mask"`
	Pending            bool           `json:"-"`
	LocalizedNames     LocalizedNames `json:"localized_names"`
}

// TypeSummary is the minimal view of a type attached to a location.
type TypeSummary struct {
	ID             int64   `json:"id"`
	EnName         *string `json:"en_name"`
	ScientificName *string `json:"scientific_name"`
	CategoryMask   *string `json:"category_mask"`
}

// TypeChild is an immediate child listed on a type detail.
type TypeChild struct {
	ID             int64   `json:"id"`
	EnName         *string `json:"en_name"`
	ScientificName *string `json:"scientific_name"`
}

// TypeDetail is a type with its children and usage count.
type TypeDetail struct {
	Type
	Children      []TypeChild `json:"children"`
	LocationCount int         `json:"location_count"`
}
