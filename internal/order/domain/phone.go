package domain

import "strings"

// FormatUgandanPhone normalizes a locally formatted phone number to
// +256 E.164 form: digits only, leading zero dropped, country code
// prefixed when missing. Returns "" when nothing usable remains.
func FormatUgandanPhone(phone string) string {
	if phone == "" {
		return ""
	}

	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	clean := digits.String()
	clean = strings.TrimPrefix(clean, "0")

	switch {
	case len(clean) == 9 && !strings.HasPrefix(clean, "256"):
		return "+256" + clean
	case len(clean) == 12 && strings.HasPrefix(clean, "256"):
		return "+" + clean
	case len(clean) >= 9:
		return "+" + clean
	default:
		return ""
	}
}
