package cube

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// tableName builds a deterministic engine table name: the sanitized label
// plus a short hash of the owning ID, so renaming a dataset or column never
// orphans its tables.
func tableName(label, id string) string {
	return sanitize(label) + "_" + shortHash(id)
}

// sanitize lowercases a label and collapses anything outside [a-z0-9] to
// underscores. A leading digit gets a prefix so the name needs no quoting.
func sanitize(label string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	s := strings.TrimSuffix(b.String(), "_")
	if s == "" {
		s = "t"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "t_" + s
	}
	return s
}

func shortHash(id string) string {
	sum := sha1.Sum([]byte(id))
	return hex.EncodeToString(sum[:4])
}
