package credit

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// QuantityScale is the number of fractional digits kept in a canonical quantity.
const QuantityScale = 4

// maxQuantityDigits matches the NUMERIC(18,4) storage column.
const maxQuantityDigits = 18

// quantityContext truncates toward zero. Truncation must never increase the
// represented quantity, so round-half-even or half-up are not acceptable here.
var quantityContext = apd.Context{
	Precision:   34,
	MaxExponent: apd.MaxExponent,
	MinExponent: apd.MinExponent,
	Traps:       apd.DefaultTraps,
	Rounding:    apd.RoundDown,
}

// Canonicalize validates raw input and produces its canonical form.
// Returns an INVALID_INPUT *Error naming the first offending field.
//
// String fields are NFKC-normalized, lowercased, normalized again and
// trimmed. The second NFKC pass keeps the function idempotent for characters
// whose compatibility mapping is uppercase (U+210C maps to "H").
func Canonicalize(raw RawRecord) (Canonical, error) {
	var c Canonical
	var err error

	if c.ProjectName, err = canonicalText(raw, FieldProjectName); err != nil {
		return Canonical{}, err
	}
	if c.Registry, err = canonicalText(raw, FieldRegistry); err != nil {
		return Canonical{}, err
	}
	if c.Vintage, err = canonicalVintage(raw); err != nil {
		return Canonical{}, err
	}
	if c.Quantity, err = canonicalQuantity(raw); err != nil {
		return Canonical{}, err
	}
	if c.SerialNumber, err = canonicalText(raw, FieldSerialNumber); err != nil {
		return Canonical{}, err
	}
	return c, nil
}

// Raw returns the canonical record as raw input. Canonicalize(c.Raw()) == c.
func (c Canonical) Raw() RawRecord {
	return RawRecord{
		FieldProjectName:  c.ProjectName,
		FieldRegistry:     c.Registry,
		FieldVintage:      c.Vintage,
		FieldQuantity:     c.Quantity,
		FieldSerialNumber: c.SerialNumber,
	}
}

// Diff returns the names of fields that differ between c and other.
// Quantities are compared numerically so "500.0" and "500.0000" are equal.
func (c Canonical) Diff(other Canonical) []string {
	var fields []string
	if c.ProjectName != other.ProjectName {
		fields = append(fields, FieldProjectName)
	}
	if c.Registry != other.Registry {
		fields = append(fields, FieldRegistry)
	}
	if c.Vintage != other.Vintage {
		fields = append(fields, FieldVintage)
	}
	if !quantityEqual(c.Quantity, other.Quantity) {
		fields = append(fields, FieldQuantity)
	}
	if c.SerialNumber != other.SerialNumber {
		fields = append(fields, FieldSerialNumber)
	}
	return fields
}

// NormalizeText applies the canonical string normalization.
func NormalizeText(s string) string {
	s = norm.NFKC.String(s)
	// cases.Caser is stateful; never share one across goroutines.
	s = cases.Lower(language.Und).String(s)
	s = norm.NFKC.String(s)
	return strings.TrimSpace(s)
}

func canonicalText(raw RawRecord, field string) (string, error) {
	v, ok := raw[field]
	if !ok || v == nil {
		return "", NewInvalidInputError(field, "field is required")
	}
	s, ok := v.(string)
	if !ok {
		return "", NewInvalidInputError(field, "must be a string, got %T", v)
	}
	out := NormalizeText(s)
	if out == "" {
		return "", NewInvalidInputError(field, "must not be blank")
	}
	return out, nil
}

func canonicalVintage(raw RawRecord) (int64, error) {
	v, ok := raw[FieldVintage]
	if !ok || v == nil {
		return 0, NewInvalidInputError(FieldVintage, "field is required")
	}

	if text, ok := integerText(v); ok {
		return integralDecimal(text)
	}
	switch val := v.(type) {
	case json.Number:
		return integralDecimal(string(val))
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, NewInvalidInputError(FieldVintage, "must be an integer, got %q", val)
		}
		return n, nil
	case float32, float64:
		return 0, NewInvalidInputError(FieldVintage, "binary floating point is not accepted, got %v", val)
	default:
		return 0, NewInvalidInputError(FieldVintage, "must be an integer, got %T", v)
	}
}

// integerText renders the Go integer kinds accepted for numeric fields.
func integerText(v any) (string, bool) {
	switch val := v.(type) {
	case int:
		return strconv.Itoa(val), true
	case int32:
		return strconv.FormatInt(int64(val), 10), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case uint32:
		return strconv.FormatUint(uint64(val), 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	}
	return "", false
}

// integralDecimal accepts JSON numbers such as 2024 or 2024.0.
func integralDecimal(s string) (int64, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil || d.Form != apd.Finite {
		return 0, NewInvalidInputError(FieldVintage, "must be an integer, got %q", s)
	}
	var reduced apd.Decimal
	reduced.Reduce(d)
	if reduced.Exponent < 0 {
		return 0, NewInvalidInputError(FieldVintage, "must be an integer, got %q", s)
	}
	n, err := reduced.Int64()
	if err != nil {
		return 0, NewInvalidInputError(FieldVintage, "out of range: %q", s)
	}
	return n, nil
}

func canonicalQuantity(raw RawRecord) (string, error) {
	v, ok := raw[FieldQuantity]
	if !ok || v == nil {
		return "", NewInvalidInputError(FieldQuantity, "field is required")
	}
	text, err := quantityText(v)
	if err != nil {
		return "", err
	}
	d, err := parseQuantity(text)
	if err != nil {
		return "", err
	}
	return d.Text('f'), nil
}

// quantityText renders supported input types as decimal text. Binary
// floats are rejected: decoders must hand over the literal digits
// (json.Number, string) so apd sees exactly what was written.
func quantityText(v any) (string, error) {
	if text, ok := integerText(v); ok {
		return text, nil
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case json.Number:
		return string(val), nil
	case *apd.Decimal:
		return val.Text('f'), nil
	case apd.Decimal:
		return val.Text('f'), nil
	case float32, float64:
		return "", NewInvalidInputError(FieldQuantity, "binary floating point is not accepted, got %v", val)
	default:
		return "", NewInvalidInputError(FieldQuantity, "must be a decimal number, got %T", v)
	}
}

// parseQuantity parses and truncates a quantity to QuantityScale digits.
func parseQuantity(text string) (*apd.Decimal, error) {
	d, _, err := apd.NewFromString(text)
	if err != nil {
		return nil, NewInvalidInputError(FieldQuantity, "must be a decimal number, got %q", text)
	}
	if d.Form != apd.Finite {
		return nil, NewInvalidInputError(FieldQuantity, "must be finite, got %q", text)
	}
	if d.Negative && !d.IsZero() {
		return nil, NewInvalidInputError(FieldQuantity, "must not be negative, got %q", text)
	}

	var out apd.Decimal
	if _, err := quantityContext.Quantize(&out, d, -QuantityScale); err != nil {
		return nil, NewInvalidInputError(FieldQuantity, "cannot be represented: %v", err)
	}
	if out.NumDigits() > maxQuantityDigits {
		return nil, NewInvalidInputError(FieldQuantity,
			"exceeds %d integer digits: %q", maxQuantityDigits-QuantityScale, text)
	}
	out.Negative = false // -0 and 0 are the same quantity
	return &out, nil
}

// quantityEqual compares two quantities numerically.
func quantityEqual(a, b string) bool {
	da, _, errA := apd.NewFromString(a)
	db, _, errB := apd.NewFromString(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return da.Cmp(db) == 0
}

// FormatQuantity re-renders a stored quantity in canonical form. Storage
// backends that keep NUMERIC columns may return a different scale.
func FormatQuantity(stored string) (string, error) {
	d, err := parseQuantity(strings.TrimSpace(stored))
	if err != nil {
		return "", fmt.Errorf("format quantity: %w", err)
	}
	return d.Text('f'), nil
}
