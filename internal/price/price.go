package price

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var currencyRunes = regexp.MustCompile(`[€$£¥\s]`)

// Normalize converts a scraped price string to a float. Currency symbols,
// whitespace and thousands-separator commas are stripped before parsing.
// Unparseable input normalizes to "missing" (nil), never to zero.
func Normalize(raw string) *float64 {
	cleaned := currencyRunes.ReplaceAllString(raw, "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return nil
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// Value is a price field that may arrive as a JSON number or as a
// currency-formatted string ("€1024", "1,234.56"). The zero Value is unset.
type Value struct {
	raw string
	num *float64
}

// FromFloat wraps a plain number.
func FromFloat(v float64) Value {
	return Value{num: &v}
}

// FromString wraps a raw price string; normalization happens on access.
func FromString(s string) Value {
	return Value{raw: s}
}

// Float returns the normalized numeric value. ok is false when the field is
// unset or fails to normalize to a finite non-negative number.
func (v Value) Float() (float64, bool) {
	if v.num != nil {
		if math.IsNaN(*v.num) || math.IsInf(*v.num, 0) || *v.num < 0 {
			return 0, false
		}
		return *v.num, true
	}
	if v.raw == "" {
		return 0, false
	}
	n := Normalize(v.raw)
	if n == nil || *n < 0 {
		return 0, false
	}
	return *n, true
}

// IsSet reports whether any value (parseable or not) was provided.
func (v Value) IsSet() bool {
	return v.num != nil || v.raw != ""
}

func (v *Value) UnmarshalJSON(data []byte) error {
	// json.Unmarshal treats null as a no-op on *float64, which would read
	// back as a set zero price. Unset is the only correct reading of null.
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*v = Value{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		v.num = &f
		v.raw = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v.raw = s
		v.num = nil
		return nil
	}
	// null or unexpected shape: leave unset rather than failing the document
	v.raw = ""
	v.num = nil
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	if f, ok := v.Float(); ok {
		return json.Marshal(f)
	}
	if v.raw != "" {
		return json.Marshal(v.raw)
	}
	return []byte("null"), nil
}

// Cheapest returns the minimum normalized price among raw fare strings.
// Fares that fail to normalize are excluded; ok is false when none parse.
func Cheapest(fares []string) (float64, bool) {
	best := math.Inf(1)
	found := false
	for _, f := range fares {
		if p := Normalize(f); p != nil && *p < best {
			best = *p
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return best, true
}
