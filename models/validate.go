package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ValidationError is a field-level rejection of admin input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type fieldRule func(p *Property) error

// fieldRules lists every field an admin may write. A nil rule accepts any value.
var fieldRules = map[string]fieldRule{
	"title": func(p *Property) error {
		if strings.TrimSpace(p.Title) == "" {
			return invalid("title", "is required")
		}
		return nil
	},
	"location": func(p *Property) error {
		if strings.TrimSpace(p.Location) == "" {
			return invalid("location", "is required")
		}
		return nil
	},
	"propertyType": func(p *Property) error {
		switch p.PropertyType {
		case PropertyTypeApartment, PropertyTypeHouse, PropertyTypeVilla, PropertyTypePlot, PropertyTypeCommercial:
			return nil
		}
		return invalid("propertyType", "unknown property type %q", p.PropertyType)
	},
	"listingType": func(p *Property) error {
		if p.ListingType != ListingTypeRent && p.ListingType != ListingTypeSale {
			return invalid("listingType", "must be rent or sale")
		}
		return nil
	},
	"zone": func(p *Property) error {
		if !knownZone(p.Zone) {
			return invalid("zone", "must be one of %s", strings.Join(Zones, ", "))
		}
		return nil
	},
	"price": func(p *Property) error {
		if _, err := ParseAmount(p.Price); err != nil {
			return invalid("price", "must be a non-negative number")
		}
		return nil
	},
	"area": func(p *Property) error {
		if _, err := ParseAmount(p.Area); err != nil {
			return invalid("area", "must be a non-negative number")
		}
		return nil
	},
	"beds": func(p *Property) error {
		if p.Beds != nil && *p.Beds < 0 {
			return invalid("beds", "cannot be negative")
		}
		return nil
	},
	"baths": func(p *Property) error {
		if p.Baths != nil && *p.Baths < 0 {
			return invalid("baths", "cannot be negative")
		}
		return nil
	},
	"status": func(p *Property) error {
		switch p.Status {
		case "", StatusAvailable, StatusSold, StatusRented:
			return nil
		}
		return invalid("status", "must be available, sold or rented")
	},
	"approval": func(p *Property) error {
		switch p.Approval {
		case "", ApprovalApproved, ApprovalPending:
			return nil
		}
		return invalid("approval", "must be approved or pending")
	},
	"contact": func(p *Property) error {
		if p.Contact.Email != "" && !strings.Contains(p.Contact.Email, "@") {
			return invalid("contact.email", "is not an email address")
		}
		return nil
	},
	"description": nil,
	"areaUnit":    nil,
	"amenities":   nil,
	"images":      nil,
	"address":     nil,
	"details":     nil,
	"popular":     nil,
	"featured":    nil,
}

// Validate checks a complete record before it is created.
func (p *Property) Validate() error {
	for _, field := range sortedFields() {
		if rule := fieldRules[field]; rule != nil {
			if err := rule(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidatePatch checks a partial update. Only the fields present are checked;
// store-managed fields and unknown fields are rejected.
func ValidatePatch(fields map[string]interface{}) (*Property, error) {
	if len(fields) == 0 {
		return nil, invalid("body", "no fields to update")
	}
	for key := range fields {
		if _, ok := fieldRules[key]; !ok {
			return nil, invalid(key, "cannot be updated")
		}
	}

	var p Property
	if err := decodeFields(fields, &p); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if rule := fieldRules[key]; rule != nil {
			if err := rule(&p); err != nil {
				return nil, err
			}
		}
	}
	return &p, nil
}

// PatchValues re-encodes the fields named in a validated patch so only known
// keys reach the store. Text is trimmed as on create and a nil value stays nil.
func PatchValues(fields map[string]interface{}, p *Property) (map[string]interface{}, error) {
	p.Title = strings.TrimSpace(p.Title)
	p.Location = strings.TrimSpace(p.Location)

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}
	var encoded map[string]interface{}
	if err := json.Unmarshal(data, &encoded); err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}

	out := make(map[string]interface{}, len(fields))
	for key, v := range fields {
		if v == nil {
			out[key] = nil
			continue
		}
		out[key] = encoded[key]
	}
	return out, nil
}

func decodeFields(fields map[string]interface{}, p *Property) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return invalid("body", "unreadable: %v", err)
	}
	if err := json.Unmarshal(data, p); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return invalid(typeErr.Field, "has the wrong type")
		}
		return invalid("body", "unreadable: %v", err)
	}
	return nil
}

func sortedFields() []string {
	fields := make([]string, 0, len(fieldRules))
	for f := range fieldRules {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}
