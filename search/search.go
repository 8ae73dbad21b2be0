// Package search selects the properties matching a set of browse filters.
// It works on an in-memory slice and has no side effects.
package search

import (
	"math"
	"strings"

	"realtors/models"
)

type predicate func(p *models.Property) bool

// Filter returns the records matching every criterion that is set, in input
// order. Unset criteria never exclude anything. Records whose price or area
// cannot be read are left out of results bounded on that dimension.
func Filter(records []models.Property, c models.Criteria) []models.Property {
	preds := predicates(c)

	out := make([]models.Property, 0, len(records))
	for i := range records {
		if matchAll(&records[i], preds) {
			out = append(out, records[i])
		}
	}
	return out
}

// Active reports whether any criterion would narrow the result.
func Active(c models.Criteria) bool {
	return len(predicates(c)) > 0
}

func matchAll(p *models.Property, preds []predicate) bool {
	for _, pred := range preds {
		if !pred(p) {
			return false
		}
	}
	return true
}

func predicates(c models.Criteria) []predicate {
	var preds []predicate

	if lt := models.ListingType(strings.ToLower(strings.TrimSpace(string(c.ListingType)))); isSet(string(lt)) {
		preds = append(preds, func(p *models.Property) bool {
			return p.ListingType == lt
		})
	}

	if loc := strings.ToLower(strings.TrimSpace(c.Location)); loc != "" {
		preds = append(preds, func(p *models.Property) bool {
			return strings.Contains(strings.ToLower(p.Location), loc)
		})
	}

	if pt := strings.ToLower(strings.TrimSpace(string(c.PropertyType))); isSet(pt) {
		preds = append(preds, func(p *models.Property) bool {
			return string(p.PropertyType) == pt
		})
	}

	if zones := zoneSet(c); len(zones) > 0 {
		preds = append(preds, func(p *models.Property) bool {
			return zones[p.Zone]
		})
	}

	if lo, hi, ok := bounds(c.MinPrice, c.MaxPrice); ok {
		preds = append(preds, func(p *models.Property) bool {
			return within(p.Price, lo, hi)
		})
	}

	if lo, hi, ok := bounds(c.MinArea, c.MaxArea); ok {
		preds = append(preds, func(p *models.Property) bool {
			return within(p.Area, lo, hi)
		})
	}

	if c.Beds > 0 {
		want := c.Beds
		preds = append(preds, func(p *models.Property) bool {
			return p.Beds != nil && *p.Beds >= want
		})
	}

	if c.Baths > 0 {
		want := c.Baths
		preds = append(preds, func(p *models.Property) bool {
			return p.Baths != nil && *p.Baths >= want
		})
	}

	return preds
}

// isSet treats the select-box sentinels "all" and "any" like an empty value.
func isSet(v string) bool {
	switch v {
	case "", "all", "any":
		return false
	}
	return true
}

func zoneSet(c models.Criteria) map[string]bool {
	set := make(map[string]bool)
	for _, z := range append([]string{c.Zone}, c.Zones...) {
		z = strings.TrimSpace(z)
		if isSet(strings.ToLower(z)) {
			set[z] = true
		}
	}
	return set
}

// bounds turns min/max criteria into an inclusive range. A max of zero or
// less, or +Inf, leaves the range open above.
func bounds(lower, upper float64) (float64, float64, bool) {
	lo, hi := lower, upper
	if math.IsNaN(lo) || lo < 0 {
		lo = 0
	}
	if math.IsNaN(hi) || hi <= 0 {
		hi = math.Inf(1)
	}
	return lo, hi, lo > 0 || !math.IsInf(hi, 1)
}

func within(a models.Amount, lo, hi float64) bool {
	v, err := models.ParseAmount(a)
	if err != nil {
		return false
	}
	return v >= lo && v <= hi
}
