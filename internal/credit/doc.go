// Package credit defines carbon-credit record types, the canonical form of
// raw record input and the content-addressed record identifier.
//
// This package imports nothing internal. Storage backends, the engine and
// transports all share these types.
//
// Key design constraints:
//   - Quantities are exact decimals (apd), truncated toward zero, never float64
//   - RecordID hashes canonical fields in a fixed order; changing the order or
//     the separator changes every identifier
//   - Status is derived from events, never stored
package credit
