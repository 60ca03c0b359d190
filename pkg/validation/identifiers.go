package validation

import (
	"fmt"
	"unicode/utf8"
)

// MaxIdentifierLength bounds identifiers used as file and key names.
const MaxIdentifierLength = 128

// IsValidIdentifierChar checks if a character is valid for identifiers
// (alphanumeric, hyphen, or underscore).
func IsValidIdentifierChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '_'
}

// Identifier returns an error naming kind when id is empty, too long or
// contains a character other than letters, digits, hyphen and underscore.
//
//	if err := validation.Identifier("workflow id", id); err != nil {
//	    return err
//	}
func Identifier(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s cannot be empty", kind)
	}
	if utf8.RuneCountInString(id) > MaxIdentifierLength {
		return fmt.Errorf("%s exceeds %d characters", kind, MaxIdentifierLength)
	}
	for _, ch := range id {
		if !IsValidIdentifierChar(ch) {
			return fmt.Errorf("invalid %s %q: only letters, digits, '-' and '_' are allowed", kind, id)
		}
	}
	return nil
}
