package models

import (
	"encoding/json"
	"time"
)

// Storage keys of the persisted layout
const (
	KeyJobs          = "jobs"
	KeySettings      = "settings"
	KeyStatistics    = "statistics"
	KeySchemaVersion = "schemaVersion"
	KeyLegacyJobs    = "appliedJobIds"
	KeyLegacyBackup  = KeyLegacyJobs + "_backup"
)

// CurrentSchemaVersion is the shape of the job collection this build reads and writes
const CurrentSchemaVersion = 2

// DefaultJobURLTemplate builds the canonical posting URL from a job id
const DefaultJobURLTemplate = "https://www.linkedin.com/jobs/view/%s"

// Status is the lifecycle state of a tracked job
type Status string

const (
	StatusApplied      Status = "applied"
	StatusInterviewing Status = "interviewing"
	StatusOffer        Status = "offer"
	StatusRejected     Status = "rejected"
	StatusWithdrawn    Status = "withdrawn"
	StatusViewed       Status = "viewed"
	StatusSaved        Status = "saved"
)

// DefaultStatus is used for new records that don't carry a status
const DefaultStatus = StatusApplied

var knownStatuses = []Status{
	StatusApplied, StatusInterviewing, StatusOffer, StatusRejected,
	StatusWithdrawn, StatusViewed, StatusSaved,
}

// KnownStatuses returns the statuses tallied in statistics, in display order
func KnownStatuses() []Status {
	out := make([]Status, len(knownStatuses))
	copy(out, knownStatuses)
	return out
}

// Known reports whether s is one of the built-in statuses
func (s Status) Known() bool {
	for _, k := range knownStatuses {
		if s == k {
			return true
		}
	}
	return false
}

// Note is a free-text annotation owned by a job
type Note struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // epoch millis
}

// StatusChange is one entry of the append-only status history
type StatusChange struct {
	Status    Status `json:"status"`
	Timestamp int64  `json:"timestamp"` // epoch millis
}

// Metadata holds best-effort attributes re-extracted on every visit
type Metadata struct {
	Location string `json:"location"`
	Salary   string `json:"salary"`
	Remote   bool   `json:"remote"`
}

// JobRecord is the canonical persisted representation of one tracked job
type JobRecord struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Company       string         `json:"company"`
	URL           string         `json:"url"`
	Status        Status         `json:"status"`
	Saved         bool           `json:"saved"`
	DateApplied   int64          `json:"dateApplied"` // epoch millis
	DateAdded     int64          `json:"dateAdded"`   // epoch millis, set once
	Notes         []Note         `json:"notes"`
	StatusHistory []StatusChange `json:"statusHistory"`
	Metadata      Metadata       `json:"metadata"`
}

// AppliedAt returns DateApplied as time
func (j JobRecord) AppliedAt() time.Time { return time.UnixMilli(j.DateApplied) }

// AddedAt returns DateAdded as time
func (j JobRecord) AddedAt() time.Time { return time.UnixMilli(j.DateAdded) }

// Clone returns a deep copy, so callers can't alias slices of a stored record
func (j JobRecord) Clone() JobRecord {
	out := j
	out.Notes = append([]Note(nil), j.Notes...)
	out.StatusHistory = append([]StatusChange(nil), j.StatusHistory...)
	return out
}

// JobPatch is a partial job submitted by a collaborator. Nil or empty fields are "not supplied".
type JobPatch struct {
	ID          string
	Title       *string
	Company     *string
	URL         *string
	Status      *Status
	Saved       *bool
	DateApplied *int64
	Location    *string
	Salary      *string
	Remote      *bool
}

// Statistics is a derived snapshot, always rebuilt from the full collection
type Statistics struct {
	TotalApplications int            `json:"totalApplications"`
	StatusBreakdown   map[Status]int `json:"statusBreakdown"`
	WeeklyTrends      map[string]int `json:"weeklyTrends"`
	LastUpdated       int64          `json:"lastUpdated"` // epoch millis
}

// LegacyJobMap is the v1 format: job id to the millis the user applied.
// Values are kept raw so malformed entries reach validation and backups stay verbatim.
type LegacyJobMap map[string]json.RawMessage

// LegacyBackup is the copy of the v1 map taken before migration
type LegacyBackup struct {
	Data      LegacyJobMap `json:"data"`
	Timestamp int64        `json:"timestamp"` // epoch millis
}
