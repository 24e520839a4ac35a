package catalog

import "strings"

// ValidISBN accepts digits and hyphens with exactly 10 or 13 digits.
// The check digit is not verified.
func ValidISBN(isbn string) bool {
	digits := 0
	for _, r := range isbn {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '-':
		default:
			return false
		}
	}
	return digits == 10 || digits == 13
}

// NormalizeISBN trims surrounding whitespace.
func NormalizeISBN(isbn string) string {
	return strings.TrimSpace(isbn)
}
