package utils

import "strings"

// CleanStringSlice trims whitespace from each item and drops empties, used
// for comma-separated category lists from the admin API.
func CleanStringSlice(parts []string) []string {
	result := make([]string, 0, len(parts))
	for _, item := range parts {
		if cleaned := strings.TrimSpace(item); cleaned != "" {
			result = append(result, cleaned)
		}
	}
	return result
}
