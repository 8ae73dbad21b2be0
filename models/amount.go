package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrMissingAmount   = errors.New("amount missing")
	ErrMalformedAmount = errors.New("amount malformed")
)

// Amount is a price or an area exactly as it was stored: either a JSON number
// or free text such as "₹50,000". The stored form is kept so records round-trip.
type Amount struct {
	Number float64
	Text   string
	IsText bool
	Valid  bool
}

func NumberAmount(v float64) Amount {
	return Amount{Number: v, Valid: true}
}

func TextAmount(s string) Amount {
	return Amount{Text: s, IsText: true, Valid: true}
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	if a.IsText {
		return json.Marshal(a.Text)
	}
	return json.Marshal(a.Number)
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*a = Amount{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = TextAmount(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("amount must be a number or a string: %w", err)
	}
	*a = NumberAmount(f)
	return nil
}

func (a Amount) String() string {
	switch {
	case !a.Valid:
		return ""
	case a.IsText:
		return a.Text
	default:
		return strconv.FormatFloat(a.Number, 'f', -1, 64)
	}
}

// ParseAmount is the one numeric reading of a price or area. Text keeps its
// digits only, so currency symbols and separators are dropped.
func ParseAmount(a Amount) (float64, error) {
	if !a.Valid {
		return 0, ErrMissingAmount
	}
	if !a.IsText {
		if math.IsNaN(a.Number) || math.IsInf(a.Number, 0) || a.Number < 0 {
			return 0, fmt.Errorf("%w: %v", ErrMalformedAmount, a.Number)
		}
		return a.Number, nil
	}

	var b strings.Builder
	for _, r := range a.Text {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedAmount, a.Text)
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedAmount, a.Text)
	}
	return v, nil
}
