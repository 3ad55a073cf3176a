package customalloc

import (
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

// logger is a discard-by-default package-level logger, following the
// teacher's cmd/hiveexplorer/logger/logger.go pattern adapted for a library:
// silent unless a caller opts in via SetLogger, or the CUSTOMALLOC_LOG_ALLOC
// environment variable is set (mirroring the teacher's HIVE_LOG_ALLOC).
var logger atomic.Pointer[slog.Logger]

func init() {
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	if os.Getenv("CUSTOMALLOC_LOG_ALLOC") != "" {
		l = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	logger.Store(l)
}

// SetLogger installs l as the package-wide logger for allocation and sweep
// diagnostics. Passing nil restores the discard logger.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger.Store(l)
}

func logAllocDebug(msg string, args ...any) {
	logger.Load().Debug(msg, args...)
}

func logSweepDebug(msg string, args ...any) {
	logger.Load().Debug(msg, args...)
}
