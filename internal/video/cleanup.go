package video

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/depthflow/internal/logging"
)

// DefaultRemovalDelay is how long temporary outputs live before deletion.
const DefaultRemovalDelay = 60 * time.Second

// NewTempOutput returns a fresh "<uuid><ext>" path inside dir (os.TempDir when empty).
func NewTempOutput(dir, ext string) string {
	if dir == "" {
		dir = os.TempDir()
	}
	if ext == "" {
		ext = ".mp4"
	}
	return filepath.Join(dir, uuid.NewString()+ext)
}

// ScheduleRemoval deletes path after the delay on a background goroutine.
// The returned channel is closed once the removal has been attempted.
func ScheduleRemoval(path string, after time.Duration, logger *slog.Logger) <-chan struct{} {
	log := logging.Component(logging.OrNop(logger), "cleanup")
	done := make(chan struct{})
	time.AfterFunc(after, func() {
		defer close(done)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("failed to remove temporary output", "path", path, "error", err)
			return
		}
		log.Debug("removed temporary output", "path", path)
	})
	return done
}
