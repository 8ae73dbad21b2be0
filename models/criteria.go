package models

// Criteria is a set of optional search filters. Zero values mean "not set".
type Criteria struct {
	ListingType  ListingType  `json:"listingType,omitempty"`
	Location     string       `json:"location,omitempty"`
	MinPrice     float64      `json:"minPrice,omitempty"`
	MaxPrice     float64      `json:"maxPrice,omitempty"`
	PropertyType PropertyType `json:"propertyType,omitempty"`
	Zone         string       `json:"zone,omitempty"`
	Zones        []string     `json:"zones,omitempty"`
	Beds         int          `json:"beds,omitempty"`
	Baths        int          `json:"baths,omitempty"`
	MinArea      float64      `json:"minArea,omitempty"`
	MaxArea      float64      `json:"maxArea,omitempty"`
}
