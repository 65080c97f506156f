package processor

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"tessgen/internal/generator"
	"tessgen/internal/pkg/logger"
	"tessgen/internal/ports"
)

// artifactCollector remembers the base names of successful jobs.
type artifactCollector struct {
	mu    sync.Mutex
	names []string
}

func (a *artifactCollector) Accept(_ context.Context, res generator.JobResult) error {
	if !res.Succeeded() {
		return nil
	}
	a.mu.Lock()
	a.names = append(a.names, res.Artifact)
	a.mu.Unlock()
	return nil
}

func (a *artifactCollector) Names() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.names))
	copy(out, a.names)
	sort.Strings(out)
	return out
}

// OutputHandler uploads rendered artifacts to the storage provider.
type OutputHandler struct {
	sp      ports.StorageProvider
	enabled bool
	log     *logger.Logger
}

func NewOutputHandler(sp ports.StorageProvider, enabled bool, log *logger.Logger) *OutputHandler {
	return &OutputHandler{sp: sp, enabled: enabled && sp != nil, log: log}
}

// ObjectKey is the storage key of one artifact file of a run.
func ObjectKey(runID, file string) string {
	return path.Join("artifacts", runID, file)
}

// Publish uploads every file text2image produced for the given artifact
// base names (image and box file). Upload errors are logged per file and
// never fail the run. It returns the number of files uploaded.
func (oh *OutputHandler) Publish(ctx context.Context, runID, dir string, artifacts []string) int {
	if !oh.enabled || len(artifacts) == 0 {
		return 0
	}
	log := oh.log.WithRunID(runID)

	published := 0
	for _, base := range artifacts {
		files, err := filepath.Glob(filepath.Join(dir, base+".*"))
		if err != nil {
			log.Warn("artifact lookup failed", "artifact", base, "error", err.Error())
			continue
		}
		for _, f := range files {
			if err := oh.upload(ctx, runID, f); err != nil {
				log.Warn("artifact upload failed", "file", filepath.Base(f), "error", err.Error())
				continue
			}
			published++
		}
	}
	log.Info("artifacts published", "files", published, "provider", oh.sp.Provider())
	return published
}

func (oh *OutputHandler) upload(ctx context.Context, runID, localPath string) error {
	st, err := os.Stat(localPath)
	if err != nil {
		return err
	}
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = oh.sp.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   ObjectKey(runID, filepath.Base(localPath)),
		ContentType: contentType(localPath),
		Reader:      f,
		Size:        st.Size(),
	})
	return err
}

func contentType(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".tif", ".tiff":
		return "image/tiff"
	case ".png":
		return "image/png"
	case ".box", ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
