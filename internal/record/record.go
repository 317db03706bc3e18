// Package record defines the store-agnostic records the sync engine moves
// between the municipal website and the downstream stores.
//
// A Raw row is what a source adapter extracts from the site: an untyped
// field map with no guarantees beyond being non-empty. A Record is the
// validated canonical form: a stable id, a content hash, and a flat field
// map. Two records with equal ids describe the same logical entity; equal
// hashes mean no update is needed.
package record

import (
	"fmt"
	"sort"
	"strings"
)

// Raw is an unvalidated source row.
type Raw map[string]string

// Record is the canonical, store-agnostic representation of one
// synchronized entity.
type Record struct {
	ID     string
	Hash   string
	Fields map[string]string
}

// Field returns the named field or "" when absent.
func (r Record) Field(name string) string {
	return r.Fields[name]
}

// NewRecord builds a Record, computing the content hash over the fields.
// The hash is deterministic: the same fields always produce the same hash.
func NewRecord(id string, fields map[string]string) Record {
	return Record{
		ID:     id,
		Hash:   HashFields(fields),
		Fields: fields,
	}
}

// HashFields returns the canonical content hash of a field map as a hex
// string. Keys are sorted so iteration order cannot influence the digest.
func HashFields(fields map[string]string) string {
	b := NewHashBuilder()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.Int(len(keys))
	for _, k := range keys {
		b.String(k)
		b.String(fields[k])
	}
	return fmt.Sprintf("%016x", b.Build())
}

// Slug folds a display name into a stable identifier segment: lowercase,
// alphanumeric runs kept, everything else collapsed to single dashes.
// Bytes outside ASCII are dropped rather than transliterated; Czech
// diacritics collapse into the surrounding dash, which stays deterministic.
func Slug(s string) string {
	var sb strings.Builder
	dash := true // suppress leading dash
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			dash = false
		default:
			if !dash {
				sb.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}
