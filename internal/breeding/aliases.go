package breeding

import (
	"sort"
	"strings"
)

// Field names one logical breeding attribute and the record keys it has been
// stored under over time, highest priority first.
type Field struct {
	Name    string
	Aliases []string
}

var (
	FemaleIDField = Field{
		Name:    "female_id",
		Aliases: []string{"female_id", "Female ID", "female", "doe", "mother"},
	}
	MaleIDField = Field{
		Name:    "male_id",
		Aliases: []string{"male_id", "Male ID", "male", "sire", "father"},
	}
	MatingDateField = Field{
		Name:    "mating_date",
		Aliases: []string{"breeding_date", "Breeding Date", "mating_date", "matingDate"},
	}
	DueDateField = Field{
		Name: "due_date",
		Aliases: []string{
			"expected_due_date", "Expected Due Date", "expectedBirthDate",
			"expected_birth_date", "ExpectedBirthDate", "expected date",
			"due_date", "dueDate", "Expected Due", "ExpectedDueDate",
			"expected_birth",
		},
	}
)

// fieldIndex resolves aliases against one raw record. Exact key matches win;
// otherwise keys are compared after normalizeKey, and when several raw keys
// collapse to the same form the lexically smallest one is used.
type fieldIndex struct {
	record     map[string]any
	normalized map[string][]string
}

func newFieldIndex(record map[string]any) fieldIndex {
	normalized := make(map[string][]string, len(record))
	for key := range record {
		nk := normalizeKey(key)
		normalized[nk] = append(normalized[nk], key)
	}
	for _, keys := range normalized {
		sort.Strings(keys)
	}
	return fieldIndex{record: record, normalized: normalized}
}

// lookup returns the first alias of f holding a non-empty value, in declared order.
func (idx fieldIndex) lookup(f Field) (value any, key string, ok bool) {
	for _, alias := range f.Aliases {
		if v, exists := idx.record[alias]; exists {
			if _, present := textValue(v); present {
				return v, alias, true
			}
		}
		for _, candidate := range idx.normalized[normalizeKey(alias)] {
			if candidate == alias {
				continue
			}
			if _, present := textValue(idx.record[candidate]); present {
				return idx.record[candidate], candidate, true
			}
		}
	}
	return nil, "", false
}

func (idx fieldIndex) text(f Field) (string, bool) {
	value, _, ok := idx.lookup(f)
	if !ok {
		return "", false
	}
	return textValue(value)
}

func normalizeKey(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, " ", "")
	value = strings.ReplaceAll(value, "_", "")
	value = strings.ReplaceAll(value, "-", "")
	return value
}
