package jobstore

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/khrees2412/applytrack/pkg/models"
)

// GetJobsByStatus returns jobs with the given status, most recently applied first
func (s *Store) GetJobsByStatus(ctx context.Context, status models.Status) ([]models.JobRecord, error) {
	return s.filter(ctx, func(j models.JobRecord) bool { return j.Status == status })
}

// SearchJobs returns jobs whose title, company or location contain text, ignoring case.
// Empty text matches every job.
func (s *Store) SearchJobs(ctx context.Context, text string) ([]models.JobRecord, error) {
	fold := cases.Fold()
	needle := fold.String(text)
	return s.filter(ctx, func(j models.JobRecord) bool {
		for _, field := range []string{j.Title, j.Company, j.Metadata.Location} {
			if strings.Contains(fold.String(field), needle) {
				return true
			}
		}
		return false
	})
}

// RecentJobs returns up to limit jobs, most recently applied first
func (s *Store) RecentJobs(ctx context.Context, limit int) ([]models.JobRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	jobs, err := s.filter(ctx, func(models.JobRecord) bool { return true })
	if err != nil {
		return nil, err
	}
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// ThisWeekCount returns the number of jobs applied in the current ISO week
func (s *Store) ThisWeekCount(ctx context.Context) (int, error) {
	current := ISOWeekLabel(s.opts.Clock(), s.opts.Location)
	jobs, err := s.filter(ctx, func(j models.JobRecord) bool {
		return ISOWeekLabel(j.AppliedAt(), s.opts.Location) == current
	})
	return len(jobs), err
}

func (s *Store) filter(ctx context.Context, keep func(models.JobRecord) bool) ([]models.JobRecord, error) {
	all, err := s.GetAllJobs(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]models.JobRecord, 0, len(all))
	for _, j := range all {
		if keep(j) {
			res = append(res, j)
		}
	}
	SortByApplied(res)
	return res, nil
}

// SortByApplied orders jobs by application date descending, ties by id
func SortByApplied(jobs []models.JobRecord) {
	sort.Slice(jobs, func(i, k int) bool {
		if jobs[i].DateApplied != jobs[k].DateApplied {
			return jobs[i].DateApplied > jobs[k].DateApplied
		}
		return jobs[i].ID < jobs[k].ID
	})
}
