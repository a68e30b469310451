// Package domain defines aggregation windows and the per-tenant aggregation
// service contract.
package domain

import (
	"time"

	metricdomain "github.com/agendobot/metrics/internal/metric/domain"
)

// SupersetLead is how far before a window's start raw events are fetched so a
// session spanning the boundary still gets its true start time.
const SupersetLead = 24 * time.Hour

// Window is a half-open aggregation interval [Start, End).
type Window struct {
	Period string
	Start  time.Time
	End    time.Time
}

// Contains reports whether ts falls inside the window.
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && ts.Before(w.End)
}

// RollingWindows returns the 7d/30d/90d windows ending at now.
func RollingWindows(now time.Time) []Window {
	return []Window{
		{Period: metricdomain.Period7d, Start: now.AddDate(0, 0, -7), End: now},
		{Period: metricdomain.Period30d, Start: now.AddDate(0, 0, -30), End: now},
		{Period: metricdomain.Period90d, Start: now.AddDate(0, 0, -90), End: now},
	}
}

// MonthWindows returns the historical calendar-month buckets, index 0 being
// the most recently completed month. Buckets are calendar-aligned and never
// overlap.
func MonthWindows(now time.Time) []Window {
	currentMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	windows := make([]Window, 0, metricdomain.HistoricalMonths)
	for i := 0; i < metricdomain.HistoricalMonths; i++ {
		windows = append(windows, Window{
			Period: metricdomain.MonthPeriod(i),
			Start:  currentMonth.AddDate(0, -(i + 1), 0),
			End:    currentMonth.AddDate(0, -i, 0),
		})
	}
	return windows
}

// MonthLabel formats a bucket start as YYYY-MM for the payload.
func MonthLabel(w Window) string { return w.Start.Format("2006-01") }
