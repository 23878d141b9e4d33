package app

import (
	"errors"

	"github.com/khrees2412/applytrack/internal/jobstore"
	"github.com/khrees2412/applytrack/internal/kv"
	"github.com/khrees2412/applytrack/internal/migration"
	"github.com/khrees2412/applytrack/internal/settings"
)

// Sentinel errors for common application errors
var (
	ErrNotFound         = jobstore.ErrNotFound
	ErrNoteTooLong      = jobstore.ErrNoteTooLong
	ErrEmptyNote        = jobstore.ErrEmptyNote
	ErrNoBackup         = migration.ErrNoBackup
	ErrAlreadyMigrated  = migration.ErrAlreadyMigrated
	ErrInvalidSettings  = settings.ErrInvalidSettings
	ErrVersionConflict  = kv.ErrVersionConflict
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotInitialized   = errors.New("app not initialized")
	ErrMigrationPending = errors.New("data migration has not completed, see `applytrack migrate status`")
)
