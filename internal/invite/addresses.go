package invite

import (
	"regexp"
	"strings"
)

var (
	separators   = regexp.MustCompile(`[,;\r\n]+`)
	addressShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// ParseAddresses splits raw operator input on commas, semicolons and newlines.
// See Normalize for what is kept.
func ParseAddresses(raw string) (valid, invalid []string) {
	return Normalize(separators.Split(raw, -1))
}

// Normalize trims, validates and deduplicates addresses. Duplicates are folded
// case-insensitively and the first spelling wins. Order is preserved.
func Normalize(addrs []string) (valid, invalid []string) {
	valid = []string{}
	seen := make(map[string]struct{}, len(addrs))
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if !addressShape.MatchString(a) {
			invalid = append(invalid, a)
			continue
		}
		key := strings.ToLower(a)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		valid = append(valid, a)
	}
	return valid, invalid
}
