package processor

import (
	"os"

	"tessgen/internal/pkg/errors"
	"tessgen/internal/ports"
)

type Cleanup struct {
	cleanupLocal bool
	sp           ports.StorageProvider
}

func NewCleanup(cleanupLocal bool, sp ports.StorageProvider) *Cleanup {
	return &Cleanup{cleanupLocal: cleanupLocal, sp: sp}
}

// CleanupRun removes the local output directory of a run once its
// artifacts were published to a remote provider.
func (c *Cleanup) CleanupRun(dir string) error {
	if !c.shouldCleanup() {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return errors.Cleanup(err, dir)
	}
	return nil
}

// Local storage is the output directory itself, so it is never cleaned.
func (c *Cleanup) shouldCleanup() bool {
	return c.cleanupLocal && c.sp != nil && c.sp.Provider() != "localfs"
}
