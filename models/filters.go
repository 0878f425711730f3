package models

// LocationAny is the sentinel the filter UI sends for "anywhere".
const LocationAny = "any"

// FilterState holds the active suggestion-feed predicates. Every field is
// independently optional; the zero value means unconstrained. Range fields
// use zero as "unset" (scores and audience sizes are always positive).
type FilterState struct {
	Niches       []string `json:"niches,omitempty"`
	Platforms    []string `json:"platforms,omitempty"`
	Statuses     []string `json:"statuses,omitempty"`
	AudienceMin  int      `json:"audienceMin,omitempty"`
	AudienceMax  int      `json:"audienceMax,omitempty"`
	RizzMin      float64  `json:"rizzMin,omitempty"`
	RizzMax      float64  `json:"rizzMax,omitempty"`
	Location     string   `json:"location,omitempty"`
	RadiusKm     int      `json:"radiusKm,omitempty"`
	VerifiedOnly bool     `json:"verifiedOnly,omitempty"`
	Search       string   `json:"search,omitempty"`
}

// FilterUpdate is a partial FilterState. Nil fields are left unchanged;
// pointing at a zero value clears the corresponding filter.
type FilterUpdate struct {
	Niches       *[]string `json:"niches,omitempty"`
	Platforms    *[]string `json:"platforms,omitempty"`
	Statuses     *[]string `json:"statuses,omitempty"`
	AudienceMin  *int      `json:"audienceMin,omitempty"`
	AudienceMax  *int      `json:"audienceMax,omitempty"`
	RizzMin      *float64  `json:"rizzMin,omitempty"`
	RizzMax      *float64  `json:"rizzMax,omitempty"`
	Location     *string   `json:"location,omitempty"`
	RadiusKm     *int      `json:"radiusKm,omitempty"`
	VerifiedOnly *bool     `json:"verifiedOnly,omitempty"`
	Search       *string   `json:"search,omitempty"`
}
