package util

import (
	"regexp"
)

// Signer phones are stored and compared in the canonical 010-XXXX-XXXX
// format. No normalization happens beyond trimming: the signer must
// enter the number exactly as recorded.
var phoneRegex = regexp.MustCompile(`^010-\d{4}-\d{4}$`)

func IsValidPhone(phone string) bool {
	return phoneRegex.MatchString(phone)
}

func IsValidEnum(value string, validValues []string) bool {
	for _, v := range validValues {
		if value == v {
			return true
		}
	}
	return false
}
