package validation

import (
	"regexp"
	"strings"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Basic validators. Values are translation codes resolved by the view layer.

func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func Length(field, value string, minLen, maxLen int, v Violations) {
	n := len([]rune(strings.TrimSpace(value)))
	if n < minLen || n > maxLen {
		v[field] = "length_invalid"
	}
}

func IntRange(field string, val, minVal, maxVal int, v Violations) {
	if val < minVal || val > maxVal {
		v[field] = "out_of_range"
	}
}

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Email flags malformed addresses; empty values pass (use Required separately).
func Email(field, value string, v Violations) {
	if value != "" && !emailRe.MatchString(value) {
		v[field] = "email_invalid"
	}
}

var phoneRe = regexp.MustCompile(`^\+?\d{7,15}$`)

// Phone flags malformed phone numbers; empty values pass.
func Phone(field, value string, v Violations) {
	if value != "" && !phoneRe.MatchString(value) {
		v[field] = "phone_invalid"
	}
}

// OneOf flags values outside an allowed set.
func OneOf(field, value string, allowed []string, v Violations) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v[field] = "invalid_choice"
}
