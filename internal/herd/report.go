package herd

import (
	"context"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"goatfarm-breeding-forecast/internal/breeding"
	"goatfarm-breeding-forecast/internal/records"
)

const (
	// SmallHerd is the goat count below which expansion is suggested.
	SmallHerd = 5
	// LargeHerd is the goat count above which space and feed advice is given.
	LargeHerd = 50
	// DefaultTopSales is the number of sales listed in a report.
	DefaultTopSales = 5
)

// Farm holds every record collection of one owner.
type Farm struct {
	Name     string
	Goats    map[string]records.Record
	Breeding map[string]records.Record
	Health   map[string]records.Record
	Sales    map[string]records.Record
}

// Load reads the farm name and all record collections for owner.
func Load(ctx context.Context, store records.Store, owner string) (Farm, error) {
	var (
		farm Farm
		err  error
	)
	if farm.Name, err = store.FarmName(ctx, owner); err != nil {
		return Farm{}, err
	}
	for _, c := range []struct {
		name string
		dst  *map[string]records.Record
	}{
		{records.CollectionGoats, &farm.Goats},
		{records.CollectionBreeding, &farm.Breeding},
		{records.CollectionHealth, &farm.Health},
		{records.CollectionSales, &farm.Sales},
	} {
		if *c.dst, err = store.List(ctx, owner, c.name); err != nil {
			return Farm{}, err
		}
	}
	return farm, nil
}

// Summary is the record count per collection.
type Summary struct {
	Goats    int `json:"goats"`
	Breeding int `json:"breeding"`
	Sales    int `json:"sales"`
	Health   int `json:"health"`
}

func (f Farm) Summary() Summary {
	return Summary{
		Goats:    len(f.Goats),
		Breeding: len(f.Breeding),
		Sales:    len(f.Sales),
		Health:   len(f.Health),
	}
}

// Recommendations returns advice lines in a fixed order: breeding, health,
// sales, herd size.
func (f Farm) Recommendations() []string {
	var recs []string

	if len(f.Breeding) > 0 {
		// Females are matched through the same aliases the forecast uses.
		active := make(map[string]struct{})
		for _, rec := range breeding.Normalize(f.Breeding) {
			if rec.FemaleID != breeding.UnknownID {
				active[rec.FemaleID] = struct{}{}
			}
		}
		if CountGoats(f.Goats).Females > len(active) {
			recs = append(recs, "Consider breeding more females to increase herd size.")
		}
	}

	if len(f.Health) > 0 {
		checked := false
		for _, rec := range f.Health {
			if text(rec["checkup_date"]) != "" {
				checked = true
				break
			}
		}
		if checked {
			recs = append(recs, "Health monitoring is active.")
		} else {
			recs = append(recs, "Schedule health check-ups for all goats.")
		}
	}

	if len(f.Sales) > 0 {
		recs = append(recs, "Total revenue: Ksh "+FormatAmount(TotalRevenue(Sales(f.Sales)))+". Great job!")
	} else {
		recs = append(recs, "Start recording sales to track income.")
	}

	switch total := len(f.Goats); {
	case total < SmallHerd:
		recs = append(recs, "Farm is small. Consider expansion.")
	case total > LargeHerd:
		recs = append(recs, "Large herd. Ensure proper feeding and space.")
	}
	return recs
}

// FormatAmount renders a whole-unit amount with thousands separators.
func FormatAmount(v float64) string {
	return message.NewPrinter(language.English).Sprintf("%.0f", v)
}

// Report is the full farm report.
type Report struct {
	FarmName        string            `json:"farm_name"`
	AsOf            time.Time         `json:"as_of"`
	Summary         Summary           `json:"summary"`
	Goats           GoatCounts        `json:"goats"`
	TopSales        []Sale            `json:"top_sales"`
	TotalRevenue    float64           `json:"total_revenue"`
	MonthlyRevenue  []MonthRevenue    `json:"monthly_revenue"`
	Trend           *Trend            `json:"trend,omitempty"`
	PriceOutliers   []Outlier         `json:"price_outliers"`
	Forecast        breeding.Forecast `json:"-"`
	Insight         breeding.Insight  `json:"insight"`
	Recommendations []string          `json:"recommendations"`
}

// Options tunes report building. Zero values select the defaults.
type Options struct {
	Policy   breeding.Policy
	TopSales int
	OutlierZ float64
}

// BuildReport assembles the farm report as of the given day.
func BuildReport(f Farm, asOf time.Time, opts Options) Report {
	top := opts.TopSales
	if top <= 0 {
		top = DefaultTopSales
	}
	sales := Sales(f.Sales)
	monthly := MonthlyRevenue(sales)
	forecast := opts.Policy.Summarize(opts.Policy.Normalize(f.Breeding), asOf)

	report := Report{
		FarmName:        f.Name,
		AsOf:            forecast.AsOf,
		Summary:         f.Summary(),
		Goats:           CountGoats(f.Goats),
		TopSales:        TopSales(sales, top),
		TotalRevenue:    TotalRevenue(sales),
		MonthlyRevenue:  monthly,
		PriceOutliers:   PriceOutliers(sales, opts.OutlierZ),
		Forecast:        forecast,
		Insight:         forecast.Insight(),
		Recommendations: f.Recommendations(),
	}
	if trend, ok := RevenueTrend(monthly); ok {
		report.Trend = &trend
	}
	return report
}
