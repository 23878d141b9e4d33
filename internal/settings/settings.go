// Package settings persists user preferences under one key with total defaults.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/go-pkgz/lgr"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"

	"github.com/khrees2412/applytrack/internal/kv"
	"github.com/khrees2412/applytrack/pkg/models"
)

// ErrInvalidSettings is returned when an update would persist invalid preferences
var ErrInvalidSettings = errors.New("invalid settings")

// Store reads and writes the settings key
type Store struct {
	kv       kv.Store
	validate *validator.Validate
	log      log.L
}

// New makes a settings store over kvs
func New(kvs kv.Store, logger log.L) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{kv: kvs, validate: validator.New(), log: logger}
}

// Get returns the stored settings decoded over the defaults, so nested fields
// missing from older or hand-edited values are always filled in
func (s *Store) Get(ctx context.Context) (models.Settings, error) {
	res, err := s.kv.Get(ctx, models.KeySettings)
	if errors.Is(err, kv.ErrClosed) {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("get settings: %w", err)
	}

	settings := models.DefaultSettings()
	entry, ok := res[models.KeySettings]
	if !ok {
		return settings, nil
	}
	if err := entry.Decode(&settings); err != nil {
		s.log.Logf("[WARN] stored settings are unreadable, using defaults: %v", err)
		return models.DefaultSettings(), nil
	}
	fillNil(&settings)
	return settings, nil
}

// Update shallow-merges patch over the current settings and persists the result
func (s *Store) Update(ctx context.Context, patch models.SettingsPatch) (models.Settings, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return models.Settings{}, err
	}

	merged := Merge(current, patch)
	if err := s.validate.Struct(merged); err != nil {
		return models.Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	if err := s.kv.Set(ctx, map[string]any{models.KeySettings: merged}); err != nil {
		if errors.Is(err, kv.ErrClosed) {
			return merged, nil
		}
		return models.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	return merged, nil
}

// Reset overwrites the stored settings with defaults
func (s *Store) Reset(ctx context.Context) error {
	if err := s.kv.Set(ctx, map[string]any{models.KeySettings: models.DefaultSettings()}); err != nil && !errors.Is(err, kv.ErrClosed) {
		return fmt.Errorf("reset settings: %w", err)
	}
	return nil
}

// EnsureDefaults writes defaults only if no settings are stored
func (s *Store) EnsureDefaults(ctx context.Context) error {
	err := s.kv.SetIf(ctx, kv.Precondition{Key: models.KeySettings}, map[string]any{models.KeySettings: models.DefaultSettings()})
	if err == nil || errors.Is(err, kv.ErrVersionConflict) || errors.Is(err, kv.ErrClosed) {
		return nil
	}
	return fmt.Errorf("init settings: %w", err)
}

// Merge replaces every section supplied in patch, the rest comes from current
func Merge(current models.Settings, patch models.SettingsPatch) models.Settings {
	out := current
	if patch.Tracking != nil {
		out.Tracking = *patch.Tracking
	}
	if patch.Display != nil {
		out.Display = *patch.Display
	}
	if patch.Theme != nil {
		out.Theme = *patch.Theme
	}
	if patch.StatusColors != nil {
		out.StatusColors = patch.StatusColors
	}
	if patch.Notifications != nil {
		out.Notifications = *patch.Notifications
	}
	if patch.Filters != nil {
		out.Filters = *patch.Filters
	}
	if patch.CompanyBlacklist != nil {
		out.CompanyBlacklist = patch.CompanyBlacklist
	}
	fillNil(&out)
	return out
}

// IsBlacklisted reports whether company matches a blacklist entry, ignoring case and surrounding spaces
func IsBlacklisted(s models.Settings, company string) bool {
	company = strings.TrimSpace(company)
	if company == "" {
		return false
	}
	for _, c := range s.CompanyBlacklist {
		if strings.EqualFold(strings.TrimSpace(c), company) {
			return true
		}
	}
	return false
}

// Hidden reports whether a job is hidden from listings by the filters or the blacklist
func Hidden(s models.Settings, job models.JobRecord) bool {
	if IsBlacklisted(s, job.Company) {
		return true
	}
	switch {
	case s.Filters.HideApplied && job.Status == models.StatusApplied,
		s.Filters.HideViewed && job.Status == models.StatusViewed,
		s.Filters.HideSaved && (job.Saved || job.Status == models.StatusSaved):
		return true
	}
	fold := cases.Fold()
	title := fold.String(job.Title)
	for _, kw := range s.Filters.ExcludeKeywords {
		if kw = fold.String(strings.TrimSpace(kw)); kw != "" && strings.Contains(title, kw) {
			return true
		}
	}
	return false
}

// fillNil keeps collections non-nil, so the JSON form is always complete
func fillNil(s *models.Settings) {
	if s.StatusColors == nil {
		s.StatusColors = models.DefaultSettings().StatusColors
	}
	if s.Filters.ExcludeKeywords == nil {
		s.Filters.ExcludeKeywords = []string{}
	}
	if s.CompanyBlacklist == nil {
		s.CompanyBlacklist = []string{}
	}
}
