package jobstore

import (
	"fmt"
	"time"

	"github.com/khrees2412/applytrack/pkg/models"
)

// ISOWeekLabel formats the ISO-8601 week of t in loc as "YYYY-Www"
func ISOWeekLabel(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	year, week := t.In(loc).ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// TrendWindow returns the labels of the trailing weeks ending with the week of now, newest first
func TrendWindow(now time.Time, loc *time.Location, weeks int) []string {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	labels := make([]string, 0, weeks)
	for i := 0; i < weeks; i++ {
		labels = append(labels, ISOWeekLabel(local.AddDate(0, 0, -7*i), loc))
	}
	return labels
}

// EmptyStatistics is the snapshot reported before anything was computed
func EmptyStatistics() models.Statistics {
	breakdown := make(map[models.Status]int)
	for _, st := range models.KnownStatuses() {
		breakdown[st] = 0
	}
	return models.Statistics{StatusBreakdown: breakdown, WeeklyTrends: map[string]int{}}
}

// ComputeStatistics rebuilds the snapshot from the whole collection.
// Unknown statuses are left out of the breakdown, jobs applied outside the trend window are not counted in trends.
func ComputeStatistics(jobs map[string]models.JobRecord, now time.Time, loc *time.Location, weeks int) models.Statistics {
	stats := EmptyStatistics()
	stats.TotalApplications = len(jobs)
	stats.LastUpdated = now.UnixMilli()

	for _, label := range TrendWindow(now, loc, weeks) {
		stats.WeeklyTrends[label] = 0
	}

	for _, job := range jobs {
		if _, ok := stats.StatusBreakdown[job.Status]; ok {
			stats.StatusBreakdown[job.Status]++
		}
		label := ISOWeekLabel(job.AppliedAt(), loc)
		if _, ok := stats.WeeklyTrends[label]; ok {
			stats.WeeklyTrends[label]++
		}
	}
	return stats
}
