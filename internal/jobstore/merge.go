package jobstore

import (
	"fmt"
	"time"

	"github.com/khrees2412/applytrack/pkg/models"
)

// Merge applies patch over existing (nil for a new record). For every field the
// incoming value wins when it is non-empty, otherwise the stored value is kept,
// otherwise a default is used. urlTemplate is formatted with the job id.
//
// DateAdded is only ever set for new records, and only new records get the
// initial status history entry. A status passed here replaces the current one
// without touching history, see UpdateStatus for tracked transitions.
func Merge(existing *models.JobRecord, patch models.JobPatch, now time.Time, urlTemplate string) models.JobRecord {
	nowMs := now.UnixMilli()

	var rec models.JobRecord
	if existing != nil {
		rec = existing.Clone()
	} else {
		rec = models.JobRecord{ID: patch.ID, Status: models.DefaultStatus, DateApplied: nowMs, DateAdded: nowMs}
	}

	rec.Title = pick(patch.Title, rec.Title)
	rec.Company = pick(patch.Company, rec.Company)
	rec.URL = pick(patch.URL, rec.URL)
	if rec.URL == "" && urlTemplate != "" {
		rec.URL = fmt.Sprintf(urlTemplate, rec.ID)
	}
	if patch.Status != nil && *patch.Status != "" {
		rec.Status = *patch.Status
	}
	if rec.Status == "" {
		rec.Status = models.DefaultStatus
	}
	if patch.Saved != nil && *patch.Saved {
		rec.Saved = true
	}
	if patch.DateApplied != nil && *patch.DateApplied > 0 {
		rec.DateApplied = *patch.DateApplied
	}
	if rec.DateApplied == 0 {
		rec.DateApplied = nowMs
	}
	if rec.DateAdded == 0 {
		rec.DateAdded = nowMs
	}

	rec.Metadata.Location = pick(patch.Location, rec.Metadata.Location)
	rec.Metadata.Salary = pick(patch.Salary, rec.Metadata.Salary)
	if patch.Remote != nil && *patch.Remote {
		rec.Metadata.Remote = true
	}

	if existing == nil || len(rec.StatusHistory) == 0 {
		rec.StatusHistory = []models.StatusChange{{Status: rec.Status, Timestamp: nowMs}}
	}
	if rec.Notes == nil {
		rec.Notes = []models.Note{}
	}
	return rec
}

func pick(incoming *string, current string) string {
	if incoming != nil && *incoming != "" {
		return *incoming
	}
	return current
}
