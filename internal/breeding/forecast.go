package breeding

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Status classifies a due date relative to the reference day.
type Status int

const (
	StatusScheduled Status = iota
	StatusDueSoon
	StatusOverdue
)

// String returns the machine form used in CSV filters and storage.
func (s Status) String() string {
	switch s {
	case StatusOverdue:
		return "overdue"
	case StatusDueSoon:
		return "due_soon"
	default:
		return "scheduled"
	}
}

// Label returns the display text shown to farm staff.
func (s Status) Label() string {
	switch s {
	case StatusOverdue:
		return "Overdue"
	case StatusDueSoon:
		return "Due Soon"
	default:
		return "Scheduled"
	}
}

// ParseStatus accepts either the machine form or the display label.
func ParseStatus(value string) (Status, bool) {
	switch normalizeKey(value) {
	case "scheduled", "future":
		return StatusScheduled, true
	case "duesoon":
		return StatusDueSoon, true
	case "overdue":
		return StatusOverdue, true
	default:
		return StatusScheduled, false
	}
}

// Entry is one listed birth in a forecast.
type Entry struct {
	RecordKey string
	FemaleID  string
	MaleID    string
	DueDate   time.Time
	DaysLeft  int
	Status    Status
}

// Forecast aggregates the normalized breeding records as of one day.
type Forecast struct {
	AsOf         time.Time
	DueSoonDays  int
	HorizonDays  int
	TotalCount   int
	DueSoonCount int
	OverdueCount int
	Entries      []Entry
}

// Summarize applies DefaultPolicy().Summarize.
func Summarize(records []Record, today time.Time) Forecast {
	return DefaultPolicy().Summarize(records, today)
}

// Classify maps signed days left to a status.
func (p Policy) Classify(daysLeft int) Status {
	p = p.withDefaults()
	switch {
	case daysLeft < 0:
		return StatusOverdue
	case daysLeft <= p.DueSoonDays:
		return StatusDueSoon
	default:
		return StatusScheduled
	}
}

// Summarize counts every record with a due date and lists those due within
// the horizon, soonest first. Equal days left are ordered by female id.
func (p Policy) Summarize(records []Record, today time.Time) Forecast {
	p = p.withDefaults()
	today = DateOnly(today)
	fc := Forecast{AsOf: today, DueSoonDays: p.DueSoonDays, HorizonDays: p.HorizonDays, Entries: []Entry{}}

	for _, rec := range records {
		if !rec.HasDueDate() {
			continue
		}
		fc.TotalCount++
		daysLeft := DaysBetween(today, rec.DueDate)
		status := p.Classify(daysLeft)
		switch status {
		case StatusOverdue:
			fc.OverdueCount++
		case StatusDueSoon:
			fc.DueSoonCount++
		}
		if daysLeft > p.HorizonDays {
			continue
		}
		fc.Entries = append(fc.Entries, Entry{
			RecordKey: rec.Key,
			FemaleID:  rec.FemaleID,
			MaleID:    rec.MaleID,
			DueDate:   rec.DueDate,
			DaysLeft:  daysLeft,
			Status:    status,
		})
	}

	sort.SliceStable(fc.Entries, func(i, j int) bool {
		a, b := fc.Entries[i], fc.Entries[j]
		if a.DaysLeft != b.DaysLeft {
			return a.DaysLeft < b.DaysLeft
		}
		if a.FemaleID != b.FemaleID {
			return a.FemaleID < b.FemaleID
		}
		if a.MaleID != b.MaleID {
			return a.MaleID < b.MaleID
		}
		return a.RecordKey < b.RecordKey
	})
	return fc
}

// StatusCounts tallies the listed entries by status.
func (f Forecast) StatusCounts() map[Status]int {
	counts := make(map[Status]int, 3)
	for _, entry := range f.Entries {
		counts[entry.Status]++
	}
	return counts
}

// Filter returns the listed entries whose status is at least minStatus.
func (f Forecast) Filter(minStatus Status) []Entry {
	out := make([]Entry, 0, len(f.Entries))
	for _, entry := range f.Entries {
		if entry.Status >= minStatus {
			out = append(out, entry)
		}
	}
	return out
}

// InsightLevel is the severity of a dashboard alert.
type InsightLevel string

const (
	InsightWarning InsightLevel = "warning"
	InsightInfo    InsightLevel = "info"
	InsightSuccess InsightLevel = "success"
)

// Insight is the single birthing alert shown on the dashboard.
type Insight struct {
	Level   InsightLevel `json:"level"`
	Message string       `json:"message"`
}

// Insight picks the most urgent alert: overdue births beat births due soon.
func (f Forecast) Insight() Insight {
	switch {
	case f.OverdueCount > 0:
		return Insight{
			Level:   InsightWarning,
			Message: fmt.Sprintf("%d overdue birth(s). Check those animals immediately.", f.OverdueCount),
		}
	case f.DueSoonCount > 0:
		window := f.DueSoonDays
		if window <= 0 {
			window = DueSoonDays
		}
		return Insight{
			Level:   InsightInfo,
			Message: fmt.Sprintf("%d birth(s) due within %d days. Prepare birthing area.", f.DueSoonCount, window),
		}
	default:
		return Insight{Level: InsightSuccess, Message: "No immediate birthing alerts. Farm looks stable."}
	}
}

// String renders the insight as "level: message".
func (i Insight) String() string {
	return strings.ToUpper(string(i.Level)) + ": " + i.Message
}
