package normalize

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// FromMinorUnits converts an integer amount in cents to major units.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// FromMajorUnits parses a decimal amount that is already in major units.
// Unparseable input degrades to zero.
func FromMajorUnits(n json.Number) decimal.Decimal {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// OptionalMajorUnits converts a nullable major-unit amount.
func OptionalMajorUnits(n *json.Number) decimal.NullDecimal {
	if n == nil || strings.TrimSpace(n.String()) == "" {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(FromMajorUnits(*n))
}

// OptionalMinorRaw converts a cents amount that arrives as a JSON number or
// a numeric string. Null, blank, non-numeric strings and any other JSON
// value degrade to null.
func OptionalMinorRaw(raw json.RawMessage) decimal.NullDecimal {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return decimal.NullDecimal{}
	}

	var s string
	switch t := v.(type) {
	case float64:
		s = strings.TrimSpace(string(raw))
	case string:
		s = strings.TrimSpace(t)
	default:
		return decimal.NullDecimal{}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d.Shift(-2))
}
