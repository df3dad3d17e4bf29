package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// NormalizePhone strips whitespace and the characters - + ( ).
// It does not check that the result looks like a phone number.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		switch r {
		case '-', '+', '(', ')':
			return -1
		}
		return r
	}, phone)
}

// PhoneHash is the lead identity key: sha256 over the lower-cased normalized
// phone, hex encoded.
func PhoneHash(phone string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(NormalizePhone(phone))))
	return hex.EncodeToString(sum[:])
}
