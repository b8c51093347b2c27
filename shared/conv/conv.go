package conv

import "strings"

// ErrorToString renders err for display to a model or a user. Nil errors
// render as the empty string.
func ErrorToString(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimSpace(err.Error())
}

// NonEmpty trims every entry and drops the blank ones.
func NonEmpty(values []string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			result = append(result, v)
		}
	}
	return result
}
