package service

import (
	"testing"
	"time"

	"github.com/sifan077/LinkPulse/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clicksAt(times ...time.Time) []model.Click {
	clicks := make([]model.Click, 0, len(times))
	for _, ts := range times {
		clicks = append(clicks, model.Click{IP: "203.0.113.1", Timestamp: ts})
	}
	return clicks
}

func TestTopN_TiesKeepCreationOrder(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	links := []model.Link{
		{Code: "first", TotalClicks: 50, CreatedAt: created},
		{Code: "second", TotalClicks: 50, CreatedAt: created},
		{Code: "third", TotalClicks: 10, CreatedAt: created},
	}

	top := NewStatsAggregator(5, time.UTC).TopN(links, 5)
	require.Len(t, top, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{top[0].Code, top[1].Code, top[2].Code})
}

func TestTopN_EarlierCreationWinsTies(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	links := []model.Link{
		{Code: "newer", TotalClicks: 50, CreatedAt: base.Add(time.Hour)},
		{Code: "older", TotalClicks: 50, CreatedAt: base},
		{Code: "busiest", TotalClicks: 90, CreatedAt: base.Add(2 * time.Hour)},
	}

	top := NewStatsAggregator(2, time.UTC).TopN(links, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "busiest", top[0].Code)
	assert.Equal(t, "older", top[1].Code)
}

func TestCountWindows(t *testing.T) {
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	clicks := clicksAt(
		now.Add(-time.Minute),
		now.Add(-24*time.Hour+time.Second), // just inside the day
		now.Add(-24*time.Hour),             // on the day boundary, excluded
		now.Add(-25*time.Hour),
		now.Add(-7*24*time.Hour), // on the week boundary, excluded
		now.Add(-10*24*time.Hour),
		now.Add(-30*24*time.Hour), // on the month boundary, excluded
		now.Add(-31*24*time.Hour),
	)

	w := CountWindows(clicks, now)
	assert.Equal(t, int64(2), w.Today)
	assert.Equal(t, int64(4), w.ThisWeek)
	assert.Equal(t, int64(6), w.ThisMonth)
}

func TestCountWindows_Monotonic(t *testing.T) {
	now := time.Now()
	var times []time.Time
	for h := 0; h < 24*40; h += 7 {
		times = append(times, now.Add(-time.Duration(h)*time.Hour))
	}

	w := CountWindows(clicksAt(times...), now)
	assert.LessOrEqual(t, w.Today, w.ThisWeek)
	assert.LessOrEqual(t, w.ThisWeek, w.ThisMonth)
	assert.LessOrEqual(t, w.ThisMonth, int64(len(times)))
}

func TestHistogram_CalendarDays(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	today := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	links := []model.Link{
		{Clicks: clicksAt(
			today,                       // first instant of today
			today.Add(-time.Nanosecond), // last instant of yesterday
			today.AddDate(0, 0, -6),     // oldest bucket
			today.AddDate(0, 0, -7),     // before the histogram
		)},
		{Clicks: clicksAt(now)},
	}

	days := NewStatsAggregator(5, time.UTC).Histogram(links, now)
	require.Len(t, days, 7)
	assert.Equal(t, "2024-03-04", days[0].Date)
	assert.Equal(t, "2024-03-10", days[6].Date)
	assert.Equal(t, int64(1), days[0].Clicks)
	assert.Equal(t, int64(1), days[5].Clicks)
	assert.Equal(t, int64(2), days[6].Clicks)

	var total int64
	for _, d := range days {
		total += d.Clicks
	}
	assert.Equal(t, int64(4), total)
}

func TestHistogram_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	// 20:00 UTC on the 9th is already the 10th in UTC+8.
	click := time.Date(2024, 3, 9, 20, 0, 0, 0, time.UTC)
	now := time.Date(2024, 3, 9, 21, 0, 0, 0, time.UTC)

	days := NewStatsAggregator(5, loc).Histogram([]model.Link{{Clicks: clicksAt(click)}}, now)
	assert.Equal(t, "2024-03-10", days[6].Date)
	assert.Equal(t, int64(1), days[6].Clicks)
}

func TestSummarize(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	var links []model.Link
	for i := 0; i < 7; i++ {
		clicks := clicksAt(now.Add(-time.Duration(i) * 24 * time.Hour))
		links = append(links, model.Link{
			Code:        string(rune('a'+i)) + "code",
			TotalClicks: int64(len(clicks)),
			Clicks:      clicks,
			CreatedAt:   now.Add(-time.Duration(7-i) * time.Hour),
		})
	}

	d := NewStatsAggregator(3, time.UTC).Summarize(links, now)
	assert.Equal(t, 7, d.TotalURLs)
	assert.Equal(t, int64(7), d.TotalClicks)
	// The click exactly 24h old sits on the boundary and is excluded.
	assert.Equal(t, int64(1), d.Windows.Today)
	assert.Equal(t, int64(7), d.Windows.ThisWeek)
	assert.Equal(t, int64(7), d.Windows.ThisMonth)
	assert.Len(t, d.TopLinks, 3)
	assert.Equal(t, now, d.GeneratedAt)

	require.Len(t, d.RecentLinks, 5)
	assert.Equal(t, "gcode", d.RecentLinks[0].Code)
	assert.Equal(t, "ccode", d.RecentLinks[4].Code)
}

func TestSummarize_Empty(t *testing.T) {
	d := NewStatsAggregator(0, nil).Summarize(nil, time.Now())
	assert.Zero(t, d.TotalURLs)
	assert.Empty(t, d.TopLinks)
	assert.Empty(t, d.RecentLinks)
	assert.Len(t, d.Last7Days, 7)
}

func TestLinkStats_HistoryNewestFirstAndAnonymized(t *testing.T) {
	now := time.Now()
	link := &model.Link{
		Code:        "abc123",
		TotalClicks: 2,
		Clicks: []model.Click{
			{IP: "198.51.100.23", Timestamp: now.Add(-2 * time.Hour)},
			{IP: "2001:db8::1", UserAgent: "curl", Timestamp: now.Add(-time.Hour)},
		},
	}

	stats := NewStatsAggregator(5, time.UTC).Link(link, now)
	require.Len(t, stats.History, 2)
	assert.Equal(t, "2001:db8::xxxx", stats.History[0].IP)
	assert.Equal(t, "curl", stats.History[0].UserAgent)
	assert.Equal(t, "198.51.100.xxx", stats.History[1].IP)
	assert.Equal(t, int64(2), stats.ClicksToday)
	assert.Equal(t, int64(2), stats.Windows.ThisMonth)
}
