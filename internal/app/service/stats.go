package service

import (
	"sort"
	"time"

	"github.com/sifan077/LinkPulse/internal/app/model"
)

const (
	dayWindow   = 24 * time.Hour
	weekWindow  = 7 * dayWindow
	monthWindow = 30 * dayWindow

	histogramDays = 7
	recentLinks   = 5
	defaultTopN   = 5
)

// WindowCounts are clicks inside the rolling windows ending at the aggregation time.
type WindowCounts struct {
	Today     int64
	ThisWeek  int64
	ThisMonth int64
}

// RankedLink is one entry of the top-N list.
type RankedLink struct {
	Code        string
	OriginalURL string
	TotalClicks int64
	CreatedAt   time.Time
}

// DailyCount is one calendar day of the histogram.
type DailyCount struct {
	Date   string
	Clicks int64
}

// LinkSummary is a link with its recent click counts.
type LinkSummary struct {
	Code           string
	OriginalURL    string
	TotalClicks    int64
	ClicksToday    int64
	ClicksThisWeek int64
	IsActive       bool
	ExpiresAt      *time.Time
	CreatedAt      time.Time
}

// Dashboard summarizes every link of an owner.
type Dashboard struct {
	TotalURLs   int
	TotalClicks int64
	Windows     WindowCounts
	TopLinks    []RankedLink
	Last7Days   []DailyCount
	RecentLinks []LinkSummary
	GeneratedAt time.Time
}

// ClickRecord is a click with its IP anonymized.
type ClickRecord struct {
	IP        string
	UserAgent string
	Timestamp time.Time
}

// LinkStats is the per-link view.
type LinkStats struct {
	LinkSummary
	Windows   WindowCounts
	Last7Days []DailyCount
	History   []ClickRecord
}

// StatsAggregator recomputes statistics from raw click logs on every call.
type StatsAggregator struct {
	topN int
	loc  *time.Location
}

// NewStatsAggregator returns an aggregator ranking topN links and bucketing days in loc.
func NewStatsAggregator(topN int, loc *time.Location) *StatsAggregator {
	if topN <= 0 {
		topN = defaultTopN
	}
	if loc == nil {
		loc = time.UTC
	}
	return &StatsAggregator{topN: topN, loc: loc}
}

// Summarize builds the owner dashboard from links and their click logs.
func (a *StatsAggregator) Summarize(links []model.Link, now time.Time) *Dashboard {
	d := &Dashboard{
		TotalURLs:   len(links),
		TopLinks:    a.TopN(links, a.topN),
		Last7Days:   a.Histogram(links, now),
		GeneratedAt: now,
	}
	for i := range links {
		d.TotalClicks += links[i].TotalClicks
		w := CountWindows(links[i].Clicks, now)
		d.Windows.Today += w.Today
		d.Windows.ThisWeek += w.ThisWeek
		d.Windows.ThisMonth += w.ThisMonth
	}

	recent := make([]*model.Link, len(links))
	for i := range links {
		recent[i] = &links[i]
	}
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].CreatedAt.After(recent[j].CreatedAt)
	})
	if len(recent) > recentLinks {
		recent = recent[:recentLinks]
	}
	d.RecentLinks = make([]LinkSummary, 0, len(recent))
	for _, link := range recent {
		d.RecentLinks = append(d.RecentLinks, a.Summary(link, now))
	}
	return d
}

// CountWindows counts clicks strictly after now - window for each rolling window.
func CountWindows(clicks []model.Click, now time.Time) WindowCounts {
	dayStart := now.Add(-dayWindow)
	weekStart := now.Add(-weekWindow)
	monthStart := now.Add(-monthWindow)

	var w WindowCounts
	for i := range clicks {
		ts := clicks[i].Timestamp
		if ts.After(monthStart) {
			w.ThisMonth++
		}
		if ts.After(weekStart) {
			w.ThisWeek++
		}
		if ts.After(dayStart) {
			w.Today++
		}
	}
	return w
}

// TopN ranks links by TotalClicks descending. Ties go to the earlier CreatedAt, then to input order.
func (a *StatsAggregator) TopN(links []model.Link, n int) []RankedLink {
	ranked := make([]RankedLink, 0, len(links))
	for i := range links {
		ranked = append(ranked, RankedLink{
			Code:        links[i].Code,
			OriginalURL: links[i].OriginalURL,
			TotalClicks: links[i].TotalClicks,
			CreatedAt:   links[i].CreatedAt,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].TotalClicks != ranked[j].TotalClicks {
			return ranked[i].TotalClicks > ranked[j].TotalClicks
		}
		return ranked[i].CreatedAt.Before(ranked[j].CreatedAt)
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Histogram returns click counts for the 7 calendar days ending today, oldest first.
// Each bucket is the half-open interval [dayStart, dayStart+1day) in the aggregator's location.
func (a *StatsAggregator) Histogram(links []model.Link, now time.Time) []DailyCount {
	local := now.In(a.loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, a.loc)

	starts := make([]time.Time, histogramDays+1)
	days := make([]DailyCount, histogramDays)
	for i := 0; i <= histogramDays; i++ {
		starts[i] = today.AddDate(0, 0, i-histogramDays+1)
		if i < histogramDays {
			days[i].Date = starts[i].Format("2006-01-02")
		}
	}

	for i := range links {
		for _, click := range links[i].Clicks {
			ts := click.Timestamp
			if ts.Before(starts[0]) || !ts.Before(starts[histogramDays]) {
				continue
			}
			for d := 0; d < histogramDays; d++ {
				if ts.Before(starts[d+1]) {
					days[d].Clicks++
					break
				}
			}
		}
	}
	return days
}

// Summary returns link with its day and week counts.
func (a *StatsAggregator) Summary(link *model.Link, now time.Time) LinkSummary {
	w := CountWindows(link.Clicks, now)
	return LinkSummary{
		Code:           link.Code,
		OriginalURL:    link.OriginalURL,
		TotalClicks:    link.TotalClicks,
		ClicksToday:    w.Today,
		ClicksThisWeek: w.ThisWeek,
		IsActive:       link.IsActive,
		ExpiresAt:      link.ExpiresAt,
		CreatedAt:      link.CreatedAt,
	}
}

// Link builds the per-link view. History is newest first with IPs anonymized.
func (a *StatsAggregator) Link(link *model.Link, now time.Time) *LinkStats {
	history := make([]ClickRecord, 0, len(link.Clicks))
	for i := len(link.Clicks) - 1; i >= 0; i-- {
		c := link.Clicks[i]
		history = append(history, ClickRecord{
			IP:        model.AnonymizeIP(c.IP),
			UserAgent: c.UserAgent,
			Timestamp: c.Timestamp,
		})
	}
	return &LinkStats{
		LinkSummary: a.Summary(link, now),
		Windows:     CountWindows(link.Clicks, now),
		Last7Days:   a.Histogram([]model.Link{*link}, now),
		History:     history,
	}
}
