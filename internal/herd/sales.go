package herd

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"goatfarm-breeding-forecast/internal/breeding"
	"goatfarm-breeding-forecast/internal/records"
)

// MonthLayout formats revenue months.
const MonthLayout = "2006-01"

// Sale is one sales record with a numeric price.
type Sale struct {
	Key    string    `json:"key"`
	GoatID string    `json:"goat_id"`
	Buyer  string    `json:"buyer_name"`
	Price  float64   `json:"price"`
	Date   time.Time `json:"sale_date"`
}

// Sales extracts the sales whose price is numeric, ordered by key. A missing
// price counts as zero; a price that is present but not a number drops the
// record.
func Sales(raw map[string]records.Record) []Sale {
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]Sale, 0, len(keys))
	for _, key := range keys {
		rec := raw[key]
		price, ok := priceValue(rec["price"])
		if !ok {
			continue
		}
		sale := Sale{
			Key:    key,
			GoatID: text(rec["goat_id"]),
			Buyer:  text(rec["buyer_name"]),
			Price:  price,
		}
		if date, ok := breeding.ParseDate(rec["sale_date"]); ok {
			sale.Date = date
		} else if date, ok := breeding.ParseDate(rec[records.CreatedAtField]); ok {
			sale.Date = date
		}
		out = append(out, sale)
	}
	return out
}

func priceValue(value any) (float64, bool) {
	var price float64
	switch v := value.(type) {
	case nil:
		return 0, true
	case float64:
		price = v
	case float32:
		price = float64(v)
	case int:
		price = float64(v)
	case int64:
		price = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		price = f
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		price = f
	default:
		return 0, false
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, false
	}
	return price, true
}

// TopSales returns the n highest priced sales. Equal prices keep key order.
func TopSales(sales []Sale, n int) []Sale {
	sorted := make([]Sale, len(sales))
	copy(sorted, sales)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Price != sorted[j].Price {
			return sorted[i].Price > sorted[j].Price
		}
		return sorted[i].Key < sorted[j].Key
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// TotalRevenue sums every sale price.
func TotalRevenue(sales []Sale) float64 {
	var total float64
	for _, sale := range sales {
		total += sale.Price
	}
	return total
}

// MonthRevenue is the summed sales of one calendar month.
type MonthRevenue struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
}

// MonthlyRevenue groups dated sales by month, oldest first. Sales without a
// date are left out.
func MonthlyRevenue(sales []Sale) []MonthRevenue {
	totals := make(map[string]float64)
	for _, sale := range sales {
		if sale.Date.IsZero() {
			continue
		}
		totals[sale.Date.Format(MonthLayout)] += sale.Price
	}
	out := make([]MonthRevenue, 0, len(totals))
	for month, total := range totals {
		out = append(out, MonthRevenue{Month: month, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// Trend is a least-squares line through monthly revenue.
type Trend struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	Months    int     `json:"months"`
	NextMonth string  `json:"next_month"`
	Projected float64 `json:"projected"`
}

// RevenueTrend fits revenue against months elapsed since the first month, so
// gaps in the series keep their distance. At least two months are required.
func RevenueTrend(monthly []MonthRevenue) (Trend, bool) {
	if len(monthly) < 2 {
		return Trend{}, false
	}
	first, err := time.Parse(MonthLayout, monthly[0].Month)
	if err != nil {
		return Trend{}, false
	}
	xs := make([]float64, 0, len(monthly))
	ys := make([]float64, 0, len(monthly))
	var last time.Time
	for _, m := range monthly {
		month, err := time.Parse(MonthLayout, m.Month)
		if err != nil {
			return Trend{}, false
		}
		xs = append(xs, float64(monthsBetween(first, month)))
		ys = append(ys, m.Total)
		last = month
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)
	next := last.AddDate(0, 1, 0)
	return Trend{
		Slope:     slope,
		Intercept: intercept,
		Months:    len(monthly),
		NextMonth: next.Format(MonthLayout),
		Projected: intercept + slope*float64(monthsBetween(first, next)),
	}, true
}

func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// Outlier is a sale whose price is unusually far from the mean.
type Outlier struct {
	Sale
	ZScore float64 `json:"z_score"`
}

// DefaultOutlierZ is the z-score beyond which a price is flagged.
const DefaultOutlierZ = 2.0

// PriceOutliers flags sales whose price lies more than threshold standard
// deviations from the mean. Fewer than three sales, or identical prices,
// yield nothing.
func PriceOutliers(sales []Sale, threshold float64) []Outlier {
	if threshold <= 0 {
		threshold = DefaultOutlierZ
	}
	out := []Outlier{}
	if len(sales) < 3 {
		return out
	}
	prices := make([]float64, len(sales))
	for i, sale := range sales {
		prices[i] = sale.Price
	}
	mean, std := stat.MeanStdDev(prices, nil)
	if std == 0 || math.IsNaN(std) {
		return out
	}
	for _, sale := range sales {
		z := stat.StdScore(sale.Price, mean, std)
		if math.Abs(z) > threshold {
			out = append(out, Outlier{Sale: sale, ZScore: z})
		}
	}
	return out
}
