package validate

import (
	"strings"
	"unicode/utf8"
)

func Required(value string) bool {
	return strings.TrimSpace(value) != ""
}

// MaxLength reports whether value has at most limit characters.
func MaxLength(value string, limit int) bool {
	return utf8.RuneCountInString(value) <= limit
}
