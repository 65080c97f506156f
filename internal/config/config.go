// Package config loads the immutable run configuration from the environment.
// A Config is built once in main and passed by value to every component.
package config

import (
	"runtime"
	"time"
)

const (
	DefaultProgressBatch      = 50
	DefaultProgressInterval   = 3 * time.Second
	DefaultFailureSampleLimit = 5
	DefaultModelName          = "jpn_custom"
	DefaultOutputDir          = "/workspace/data"
	DefaultQueueName          = "tessgen:runs"

	RenderModeExec = "exec"
	RenderModeHTTP = "http"
)

// Generator tunes the run engine.
type Generator struct {
	WorkerCount        int
	ProgressBatch      int
	ProgressInterval   time.Duration
	FailureSampleLimit int
	OutputDir          string
	ModelName          string
	// StagingDir holds per-job text files; empty means os.TempDir().
	StagingDir string
}

// Render describes how a job reaches text2image.
type Render struct {
	Mode        string
	Binary      string
	FontsDir    string
	PointSize   int
	Leading     int
	CharSpacing float64
	Exposure    int
	Resolution  int
	HTTPBaseURL string
	// Timeout bounds one render in both modes; zero disables it.
	Timeout time.Duration
}

// Storage selects where corpora are fetched from and artifacts are published to.
type Storage struct {
	Provider         string
	LocalRoot        string
	PublishArtifacts bool
	// CleanupLocal removes a run's local artifacts once they are published
	// to a remote provider.
	CleanupLocal bool

	GDriveClientID     string
	GDriveClientSecret string
	GDriveRefreshToken string
	GDriveFolderID     string
}

// Config holds application configuration loaded from environment variables.
type Config struct {
	Generator Generator
	Render    Render
	Storage   Storage

	CorpusFile string
	// Fonts is nil when FONTS is unset; fonts.Resolve then applies the catalog.
	Fonts []string

	RunDBPath   string
	MetricsAddr string

	DatabaseURL string
	RedisAddr   string
	QueueName   string
	HTTPPort    string
}

// DefaultWorkerCount is twice the hardware parallelism: text2image spends
// much of its time on font loading and file I/O.
func DefaultWorkerCount() int {
	return ClampWorkers(2 * runtime.NumCPU())
}

// ClampWorkers enforces the floor of one worker.
func ClampWorkers(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// Defaults returns the configuration used when no env var is set.
func Defaults() Config {
	return Config{
		Generator: Generator{
			WorkerCount:        DefaultWorkerCount(),
			ProgressBatch:      DefaultProgressBatch,
			ProgressInterval:   DefaultProgressInterval,
			FailureSampleLimit: DefaultFailureSampleLimit,
			OutputDir:          DefaultOutputDir,
			ModelName:          DefaultModelName,
		},
		Render: Render{
			Mode:        RenderModeExec,
			Binary:      "text2image",
			FontsDir:    "/usr/share/fonts",
			PointSize:   48,
			Leading:     48,
			CharSpacing: 1.0,
			Exposure:    0,
			Resolution:  300,
			Timeout:     10 * time.Minute,
		},
		Storage: Storage{
			Provider:  "localfs",
			LocalRoot: DefaultOutputDir,
		},
		CorpusFile: "/workspace/source/training_texts_expanded.txt",
		QueueName:  DefaultQueueName,
		HTTPPort:   "8080",
	}
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Defaults()

	g := &cfg.Generator
	g.WorkerCount = ClampWorkers(IntEnv("WORKER_COUNT", g.WorkerCount))
	g.ProgressBatch = IntEnv("PROGRESS_BATCH", g.ProgressBatch)
	if g.ProgressBatch < 1 {
		g.ProgressBatch = DefaultProgressBatch
	}
	if secs := FloatEnv("PROGRESS_INTERVAL_SECONDS", g.ProgressInterval.Seconds()); secs >= 0 {
		g.ProgressInterval = time.Duration(secs * float64(time.Second))
	}
	if n := IntEnv("FAILURE_SAMPLE_LIMIT", g.FailureSampleLimit); n >= 0 {
		g.FailureSampleLimit = n
	}
	g.OutputDir = Env("OUTPUT_DIR", g.OutputDir)
	g.ModelName = Env("MODEL_NAME", g.ModelName)
	g.StagingDir = Env("STAGING_DIR", g.StagingDir)

	r := &cfg.Render
	r.Mode = Env("RENDERER_MODE", r.Mode)
	r.Binary = Env("TEXT2IMAGE_BIN", r.Binary)
	r.FontsDir = Env("FONTS_DIR", r.FontsDir)
	r.PointSize = IntEnv("FONT_SIZE", r.PointSize)
	r.Leading = IntEnv("RENDER_LEADING", r.Leading)
	r.CharSpacing = FloatEnv("RENDER_CHAR_SPACING", r.CharSpacing)
	r.Exposure = IntEnv("RENDER_EXPOSURE", r.Exposure)
	r.Resolution = IntEnv("RENDER_RESOLUTION", r.Resolution)
	r.HTTPBaseURL = Env("RENDERER_HTTP_BASEURL", r.HTTPBaseURL)
	if secs := IntEnv("RENDER_TIMEOUT_SECONDS", int(r.Timeout.Seconds())); secs > 0 {
		r.Timeout = time.Duration(secs) * time.Second
	}

	s := &cfg.Storage
	s.Provider = Env("STORAGE_PROVIDER", s.Provider)
	s.LocalRoot = Env("STORAGE_LOCAL_ROOT", g.OutputDir)
	s.PublishArtifacts = BoolEnv("PUBLISH_ARTIFACTS", s.Provider != "localfs")
	s.CleanupLocal = BoolEnv("CLEANUP_LOCAL", false)
	s.GDriveClientID = Env("GDRIVE_CLIENT_ID", "")
	s.GDriveClientSecret = Env("GDRIVE_CLIENT_SECRET", "")
	s.GDriveRefreshToken = Env("GDRIVE_REFRESH_TOKEN", "")
	s.GDriveFolderID = Env("GDRIVE_FOLDER_ID", "")

	cfg.CorpusFile = Env("CORPUS_FILE", cfg.CorpusFile)
	cfg.Fonts = CSVEnv("FONTS", nil)
	cfg.RunDBPath = Env("RUN_DB_PATH", "")
	cfg.MetricsAddr = Env("METRICS_ADDR", "")
	cfg.DatabaseURL = Env("DATABASE_URL", "")
	cfg.RedisAddr = Env("REDIS_ADDR", "")
	cfg.QueueName = Env("RUN_QUEUE_NAME", cfg.QueueName)
	cfg.HTTPPort = Env("HTTP_PORT", cfg.HTTPPort)

	return cfg
}
