// Package herd derives herd statistics, sales figures and the farm report
// from the raw record collections.
package herd

import (
	"fmt"
	"strings"

	"goatfarm-breeding-forecast/internal/records"
)

var genderAliases = []string{"Gender", "gender", "sex"}

// GoatCounts is the herd size split by sex.
type GoatCounts struct {
	Total   int `json:"total"`
	Males   int `json:"males"`
	Females int `json:"females"`
}

// CountGoats tallies goats by the first non-empty gender alias. Values
// starting with "m" count as male and "f" as female, case-insensitively;
// anything else only counts toward the total.
func CountGoats(goats map[string]records.Record) GoatCounts {
	counts := GoatCounts{Total: len(goats)}
	for _, goat := range goats {
		switch {
		case strings.HasPrefix(gender(goat), "m"):
			counts.Males++
		case strings.HasPrefix(gender(goat), "f"):
			counts.Females++
		}
	}
	return counts
}

func gender(goat records.Record) string {
	for _, alias := range genderAliases {
		if value := text(goat[alias]); value != "" {
			return strings.ToLower(value)
		}
	}
	return ""
}

func text(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
