package models

import "strings"

type PropertyType string

const (
	PropertyTypeApartment  PropertyType = "apartment"
	PropertyTypeHouse      PropertyType = "house"
	PropertyTypeVilla      PropertyType = "villa"
	PropertyTypePlot       PropertyType = "plot"
	PropertyTypeCommercial PropertyType = "commercial"
)

// Residential reports whether beds and baths carry meaning for this type.
func (t PropertyType) Residential() bool {
	switch t {
	case PropertyTypeApartment, PropertyTypeHouse, PropertyTypeVilla:
		return true
	}
	return false
}

type ListingType string

const (
	ListingTypeRent ListingType = "rent"
	ListingTypeSale ListingType = "sale"
)

// Listing status
const (
	StatusAvailable = "available"
	StatusSold      = "sold"
	StatusRented    = "rented"
)

// Approval states
const (
	ApprovalApproved = "approved"
	ApprovalPending  = "pending"
)

// Zones are the coarse geographic partitions a listing can belong to.
var Zones = []string{"North", "South", "East", "West", "Central"}

// Property is a single listing as stored under the properties node.
// ID is the store key and is never written inside the node itself.
type Property struct {
	ID           string       `json:"id,omitempty"`
	Title        string       `json:"title"`
	Description  string       `json:"description,omitempty"`
	PropertyType PropertyType `json:"propertyType"`
	ListingType  ListingType  `json:"listingType"`
	Zone         string       `json:"zone"`
	Location     string       `json:"location"`
	Price        Amount       `json:"price"`
	Area         Amount       `json:"area"`
	AreaUnit     string       `json:"areaUnit,omitempty"`
	Beds         *int         `json:"beds,omitempty"`
	Baths        *int         `json:"baths,omitempty"`
	Amenities    []string     `json:"amenities,omitempty"`
	Images       []string     `json:"images,omitempty"`
	Contact      Contact      `json:"contact"`
	Address      Address      `json:"address"`
	Details      Details      `json:"details"`
	Popular      bool         `json:"popular"`
	Featured     bool         `json:"featured"`
	Status       string       `json:"status,omitempty"`
	Approval     string       `json:"approval,omitempty"`
	CreatedAt    int64        `json:"createdAt,omitempty"`
	UpdatedAt    int64        `json:"updatedAt,omitempty"`
}

type Contact struct {
	Name             string `json:"name,omitempty"`
	Phone            string `json:"phone,omitempty"`
	Email            string `json:"email,omitempty"`
	PreferredContact string `json:"preferredContact,omitempty"`
}

type Address struct {
	Full     string `json:"full,omitempty"`
	Landmark string `json:"landmark,omitempty"`
}

type Details struct {
	Facing           string `json:"facing,omitempty"`
	Ownership        string `json:"ownership,omitempty"`
	TransactionType  string `json:"transactionType,omitempty"`
	PossessionStatus string `json:"possessionStatus,omitempty"`
	Dimensions       string `json:"dimensions,omitempty"`
}

// Pending reports whether the listing still awaits admin approval.
// Records written before approval existed have no value and count as approved.
func (p *Property) Pending() bool {
	return p.Approval == ApprovalPending
}

// Normalize fills defaults and drops fields the property type ignores.
func (p *Property) Normalize() {
	p.Title = strings.TrimSpace(p.Title)
	p.Location = strings.TrimSpace(p.Location)
	if p.Status == "" {
		p.Status = StatusAvailable
	}
	if p.AreaUnit == "" {
		p.AreaUnit = "sqft"
	}
	if !p.PropertyType.Residential() {
		p.Beds = nil
		p.Baths = nil
	}
}

func IntPtr(v int) *int {
	return &v
}

func knownZone(zone string) bool {
	for _, z := range Zones {
		if z == zone {
			return true
		}
	}
	return false
}
