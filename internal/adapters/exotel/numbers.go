package exotel

import "strings"

// NormalizePhoneNumber canonicalizes an Indian phone number to +91 E.164 form.
// The vendor reports the same exophone in several shapes depending on the
// endpoint: "+91XXXXXXXXXX", "91XXXXXXXXXX", "0XXXXXXXXXX" and the bare
// ten-digit subscriber number all refer to the same line.
func NormalizePhoneNumber(number string) string {
	n := strings.TrimSpace(number)
	n = strings.ReplaceAll(n, " ", "")
	n = strings.ReplaceAll(n, "-", "")
	if n == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(n, "+"):
		return n
	case strings.HasPrefix(n, "91") && len(n) == 12:
		return "+" + n
	case strings.HasPrefix(n, "0") && len(n) == 11:
		return "+91" + n[1:]
	case len(n) == 10:
		return "+91" + n
	default:
		return "+" + n
	}
}

// SameNumber reports whether two phone numbers refer to the same line after
// normalization.
func SameNumber(a, b string) bool {
	return NormalizePhoneNumber(a) == NormalizePhoneNumber(b)
}
