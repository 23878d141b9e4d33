package migration

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/khrees2412/applytrack/pkg/models"
)

var jobIDRe = regexp.MustCompile(`^\d{5,}$`)

// plausible application years of a legacy timestamp
const (
	minYear = 2020
	maxYear = 2050
)

// ValidationError describes one legacy entry that was skipped or repaired
type ValidationError struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("legacy job %q: %s", e.ID, e.Reason)
}

// ValidJobID reports whether id looks like a site job id, all digits and at least five of them
func ValidJobID(id string) bool {
	return jobIDRe.MatchString(id)
}

// legacyTimestamp returns the millis stored in raw if it is a number within the plausible years
func legacyTimestamp(raw json.RawMessage, loc *time.Location) (int64, bool) {
	var ms float64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return 0, false
	}
	ts := int64(ms)
	year := time.UnixMilli(ts).In(loc).Year()
	if year < minYear || year > maxYear {
		return 0, false
	}
	return ts, true
}

// Transform converts a legacy map into current job records. Entries with a malformed id are
// skipped, entries with an unusable timestamp get now instead. Records are applied, empty
// otherwise, and wait for enrichment on the next visit of the posting.
func Transform(legacy models.LegacyJobMap, now time.Time, loc *time.Location, urlTemplate string) (map[string]models.JobRecord, Details) {
	if loc == nil {
		loc = time.Local
	}
	ids := make([]string, 0, len(legacy))
	for id := range legacy {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	details := Details{TotalJobs: len(legacy)}
	jobs := make(map[string]models.JobRecord, len(legacy))
	for _, id := range ids {
		if !ValidJobID(id) {
			details.ErrorCount++
			details.Skipped = append(details.Skipped, ValidationError{ID: id, Reason: "invalid job id"})
			continue
		}

		ts, ok := legacyTimestamp(legacy[id], loc)
		if !ok {
			ts = now.UnixMilli()
			details.Repaired = append(details.Repaired, ValidationError{ID: id,
				Reason: fmt.Sprintf("implausible timestamp %s, using now", string(legacy[id]))})
		}

		url := ""
		if urlTemplate != "" {
			url = fmt.Sprintf(urlTemplate, id)
		}
		jobs[id] = models.JobRecord{
			ID:            id,
			URL:           url,
			Status:        models.StatusApplied,
			DateApplied:   ts,
			DateAdded:     ts,
			Notes:         []models.Note{},
			StatusHistory: []models.StatusChange{{Status: models.StatusApplied, Timestamp: ts}},
		}
		details.SuccessCount++
	}
	return jobs, details
}
