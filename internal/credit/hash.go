package credit

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// FieldSeparator joins canonical fields before hashing. It is not expected
// in normalized values; if it does occur, two different tuples can share an
// identifier and reconciliation reports DATA_CONFLICT instead of merging them.
const FieldSeparator = "|"

// RecordID computes the content-addressed identifier of a canonical record.
// The ID is stable across restarts and instances given the same tuple.
//
// Format: hex(SHA256(project_name|registry|vintage|quantity|serial_number))
// Field order is fixed and part of the identity; never reorder.
//
// IDs equal those of a strip, lower, NFKC canonicalization except for text
// holding compatibility characters whose NFKC form is uppercase (U+210C
// becomes "h" here, "H" there).
func RecordID(c Canonical) string {
	s := strings.Join([]string{
		c.ProjectName,
		c.Registry,
		strconv.FormatInt(c.Vintage, 10),
		c.Quantity,
		c.SerialNumber,
	}, FieldSeparator)
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// IdentifyRaw canonicalizes raw input and derives its identifier.
func IdentifyRaw(raw RawRecord) (Canonical, string, error) {
	c, err := Canonicalize(raw)
	if err != nil {
		return Canonical{}, "", err
	}
	return c, RecordID(c), nil
}

// MustRecordID is like IdentifyRaw but panics on invalid input.
// Use only in tests or when inputs are known to be valid.
func MustRecordID(raw RawRecord) string {
	_, id, err := IdentifyRaw(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// IsRecordID reports whether s has the shape of a record identifier.
func IsRecordID(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
