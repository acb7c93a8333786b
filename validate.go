package topup

import (
	"regexp"
	"strings"
)

var destinationPattern = regexp.MustCompile(`^\d{6,15}$`)

// ValidateDestination normalizes a phone or account number supplied by a
// customer: spaces and dashes are dropped, the rest must be 6 to 15 digits.
func ValidateDestination(destination string) (string, error) {
	dest := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(destination))
	if !destinationPattern.MatchString(dest) {
		return "", ValidationError{Field: "destination", Message: "must be 6 to 15 digits"}
	}
	return dest, nil
}
