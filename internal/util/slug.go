package util

import "strings"

// Slugify lowercases s and keeps ASCII letters and digits, joining the
// remaining runs with single dashes. Non-ASCII text yields "".
func Slugify(s string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			dash = false
		case r == ' ' || r == '-' || r == '_' || r == '.':
			if sb.Len() > 0 && !dash {
				sb.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimRight(sb.String(), "-")
}

func ValidSlug(s string) bool {
	return s != "" && len(s) <= 255 && Slugify(s) == s
}
