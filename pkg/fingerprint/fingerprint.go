// Package fingerprint produces deterministic content hashes for canonical
// rows. The merge engine compares fingerprints before and after a patch to
// skip writes that would change nothing.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/Ramsey-B/willow/pkg/models"
)

// auditFields change on every write and never affect merge decisions.
var auditFields = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"id":         true,
}

// Person hashes a person's content fields. Two rows with the same fingerprint
// are interchangeable as far as the merge engine is concerned.
func Person(p *models.Person) string {
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return ""
	}
	for field := range auditFields {
		delete(m, field)
	}
	hash := sha256.Sum256([]byte(canonicalize(m)))
	return hex.EncodeToString(hash[:])
}

// canonicalize renders a value deterministically: map keys sorted, arrays in
// order, primitives as JSON.
func canonicalize(data any) string {
	switch v := data.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var sb strings.Builder
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			sb.Write(kb)
			sb.WriteByte(':')
			sb.WriteString(canonicalize(v[k]))
		}
		sb.WriteByte('}')
		return sb.String()
	case []any:
		var sb strings.Builder
		sb.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(canonicalize(item))
		}
		sb.WriteByte(']')
		return sb.String()
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}
