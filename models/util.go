package models

import "strings"

// containsToken matches s against a CSV or JSON-array encoded special list
// such as "cast-json,o2m" or {"o2m"}.
func containsToken(list, token string) bool {
	f := func(r rune) bool {
		return r == ',' || r == '{' || r == '}' || r == '"' || r == '[' || r == ']' || r == ' '
	}
	for _, p := range strings.FieldsFunc(list, f) {
		if p == token {
			return true
		}
	}
	return false
}
