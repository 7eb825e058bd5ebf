// Package breeding turns loosely structured breeding records into due dates
// and a short-horizon birth forecast. Everything here is pure: callers supply
// the raw snapshot and the reference date.
package breeding

import (
	"sort"
	"strconv"
	"time"
)

const (
	// GestationDays is the offset added to a mating date to estimate the due date.
	GestationDays = 150
	// DueSoonDays is the inclusive upper bound of the due-soon window.
	DueSoonDays = 7
	// HorizonDays is the inclusive cap on days left for a listed forecast entry.
	HorizonDays = 30
)

// UnknownID stands in for a parent identifier that no alias resolved.
const UnknownID = "Unknown"

// DueSource records where a normalized due date came from.
type DueSource int

const (
	DueNone DueSource = iota
	DueExplicit
	DueComputed
)

func (s DueSource) String() string {
	switch s {
	case DueExplicit:
		return "explicit"
	case DueComputed:
		return "computed"
	default:
		return "none"
	}
}

// Item is one raw entry of a breeding collection paired with its storage key.
type Item struct {
	Key   string
	Value any
}

// Record is the normalized view of one raw breeding entry.
type Record struct {
	Key       string
	FemaleID  string
	MaleID    string
	DueDate   time.Time
	DueSource DueSource
	RawDue    string
}

// HasDueDate reports whether a due date was resolved for the record.
func (r Record) HasDueDate() bool {
	return !r.DueDate.IsZero()
}

// Policy holds the day counts used by normalization and forecasting. Zero
// fields fall back to the package constants.
type Policy struct {
	GestationDays int `yaml:"gestation_days" mapstructure:"gestation_days"`
	DueSoonDays   int `yaml:"due_soon_days" mapstructure:"due_soon_days"`
	HorizonDays   int `yaml:"horizon_days" mapstructure:"horizon_days"`
}

// DefaultPolicy returns the standard 150/7/30 day policy.
func DefaultPolicy() Policy {
	return Policy{GestationDays: GestationDays, DueSoonDays: DueSoonDays, HorizonDays: HorizonDays}
}

func (p Policy) withDefaults() Policy {
	if p.GestationDays <= 0 {
		p.GestationDays = GestationDays
	}
	if p.DueSoonDays <= 0 {
		p.DueSoonDays = DueSoonDays
	}
	if p.HorizonDays <= 0 {
		p.HorizonDays = HorizonDays
	}
	return p
}

// Items converts a raw collection into ordered (key, value) pairs. Mappings
// are ordered by key; sequences are keyed by position. Any other shape,
// including nil, yields no items.
func Items(raw any) []Item {
	switch v := raw.(type) {
	case nil:
		return nil
	case []Item:
		return v
	case map[string]any:
		items := make([]Item, 0, len(v))
		for _, key := range sortedKeys(v) {
			items = append(items, Item{Key: key, Value: v[key]})
		}
		return items
	case map[string]map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		items := make([]Item, 0, len(v))
		for _, key := range keys {
			items = append(items, Item{Key: key, Value: v[key]})
		}
		return items
	case []any:
		items := make([]Item, 0, len(v))
		for i, rec := range v {
			items = append(items, Item{Key: strconv.Itoa(i), Value: rec})
		}
		return items
	case []map[string]any:
		items := make([]Item, 0, len(v))
		for i, rec := range v {
			items = append(items, Item{Key: strconv.Itoa(i), Value: rec})
		}
		return items
	default:
		return nil
	}
}

// Normalize applies DefaultPolicy().Normalize.
func Normalize(raw any) []Record {
	return DefaultPolicy().Normalize(raw)
}

// Normalize resolves identifiers and a due date for every mapping-shaped
// entry of raw. Entries that are nil or not mappings are skipped; records
// without any usable date are kept with a zero DueDate.
func (p Policy) Normalize(raw any) []Record {
	p = p.withDefaults()
	items := Items(raw)
	out := make([]Record, 0, len(items))
	for _, item := range items {
		rec, ok := asRecord(item.Value)
		if !ok {
			continue
		}
		out = append(out, p.normalizeOne(item.Key, rec))
	}
	return out
}

func (p Policy) normalizeOne(key string, rec map[string]any) Record {
	idx := newFieldIndex(rec)
	out := Record{Key: key, FemaleID: UnknownID, MaleID: UnknownID}

	if id, ok := idx.text(FemaleIDField); ok {
		out.FemaleID = id
	}
	if id, ok := idx.text(MaleIDField); ok {
		out.MaleID = id
	}

	if raw, ok := idx.text(DueDateField); ok {
		if due, parsed := ParseDate(raw); parsed {
			out.DueDate = due
			out.DueSource = DueExplicit
			out.RawDue = raw
			return out
		}
	}
	if raw, ok := idx.text(MatingDateField); ok {
		if mated, parsed := ParseDate(raw); parsed {
			out.DueDate = mated.AddDate(0, 0, p.GestationDays)
			out.DueSource = DueComputed
			out.RawDue = FormatDate(out.DueDate)
		}
	}
	return out
}

func asRecord(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, v != nil
	case map[string]string:
		if v == nil {
			return nil, false
		}
		rec := make(map[string]any, len(v))
		for key, val := range v {
			rec[key] = val
		}
		return rec, true
	default:
		return nil, false
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
