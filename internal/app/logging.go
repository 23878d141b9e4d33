package app

import (
	"io"
	"os"

	log "github.com/go-pkgz/lgr"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/khrees2412/applytrack/internal/config"
)

// SetupLogs configures the global logger and returns where it writes to.
// Logs go to stderr, or to a rotated file when one is configured, so command output stays clean.
func SetupLogs(cfg config.LogConfig) io.Writer {
	if !cfg.Enabled {
		log.Setup(log.Out(io.Discard), log.Err(io.Discard))
		return io.Discard
	}

	var out io.Writer = os.Stderr
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
	}

	if cfg.Debug {
		log.Setup(log.Out(out), log.Err(out), log.Debug, log.Msec, log.CallerFunc, log.CallerPkg, log.CallerFile)
		return out
	}
	log.Setup(log.Out(out), log.Err(out), log.Msec)
	return out
}

func closeLog(out io.Writer) {
	if c, ok := out.(io.Closer); ok && out != os.Stderr {
		c.Close()
	}
}
