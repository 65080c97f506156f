package config

import (
	"reflect"
	"testing"
	"time"
)

var envKeys = []string{
	"WORKER_COUNT", "PROGRESS_BATCH", "PROGRESS_INTERVAL_SECONDS", "FAILURE_SAMPLE_LIMIT",
	"OUTPUT_DIR", "MODEL_NAME", "STAGING_DIR", "RENDERER_MODE", "TEXT2IMAGE_BIN", "FONT_SIZE",
	"FONTS", "CORPUS_FILE", "STORAGE_PROVIDER", "STORAGE_LOCAL_ROOT", "PUBLISH_ARTIFACTS",
	"RUN_QUEUE_NAME", "RENDER_TIMEOUT_SECONDS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.Generator.WorkerCount != DefaultWorkerCount() {
		t.Errorf("WorkerCount = %d, want %d", cfg.Generator.WorkerCount, DefaultWorkerCount())
	}
	if cfg.Generator.ProgressBatch != 50 {
		t.Errorf("ProgressBatch = %d, want 50", cfg.Generator.ProgressBatch)
	}
	if cfg.Generator.ProgressInterval != 3*time.Second {
		t.Errorf("ProgressInterval = %v, want 3s", cfg.Generator.ProgressInterval)
	}
	if cfg.Generator.FailureSampleLimit != 5 {
		t.Errorf("FailureSampleLimit = %d, want 5", cfg.Generator.FailureSampleLimit)
	}
	if cfg.Generator.ModelName != "jpn_custom" {
		t.Errorf("ModelName = %q, want jpn_custom", cfg.Generator.ModelName)
	}
	if cfg.Fonts != nil {
		t.Errorf("Fonts = %v, want nil", cfg.Fonts)
	}
	if cfg.Storage.PublishArtifacts {
		t.Error("localfs storage must not publish by default")
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("WORKER_COUNT", "7")
	t.Setenv("PROGRESS_BATCH", "10")
	t.Setenv("PROGRESS_INTERVAL_SECONDS", "0.5")
	t.Setenv("FAILURE_SAMPLE_LIMIT", "2")
	t.Setenv("MODEL_NAME", "jpn_test")
	t.Setenv("FONTS", "IPAexGothic, ,TakaoMincho")
	t.Setenv("STORAGE_PROVIDER", "gdrive")

	cfg := Load()

	if cfg.Generator.WorkerCount != 7 {
		t.Errorf("WorkerCount = %d, want 7", cfg.Generator.WorkerCount)
	}
	if cfg.Generator.ProgressBatch != 10 {
		t.Errorf("ProgressBatch = %d, want 10", cfg.Generator.ProgressBatch)
	}
	if cfg.Generator.ProgressInterval != 500*time.Millisecond {
		t.Errorf("ProgressInterval = %v, want 500ms", cfg.Generator.ProgressInterval)
	}
	if cfg.Generator.FailureSampleLimit != 2 {
		t.Errorf("FailureSampleLimit = %d, want 2", cfg.Generator.FailureSampleLimit)
	}
	if cfg.Generator.ModelName != "jpn_test" {
		t.Errorf("ModelName = %q", cfg.Generator.ModelName)
	}
	if want := []string{"IPAexGothic", "TakaoMincho"}; !reflect.DeepEqual(cfg.Fonts, want) {
		t.Errorf("Fonts = %v, want %v", cfg.Fonts, want)
	}
	if !cfg.Storage.PublishArtifacts {
		t.Error("gdrive storage should publish by default")
	}
}

func TestWorkerCountClamp(t *testing.T) {
	tests := []struct {
		env  string
		want int
	}{
		{"0", 1},
		{"-3", 1},
		{"1", 1},
		{"16", 16},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("WORKER_COUNT", tt.env)
			if got := Load().Generator.WorkerCount; got != tt.want {
				t.Errorf("WorkerCount = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("WORKER_COUNT", "many")
	t.Setenv("PROGRESS_BATCH", "0")
	t.Setenv("FAILURE_SAMPLE_LIMIT", "-1")

	cfg := Load()

	if cfg.Generator.WorkerCount != DefaultWorkerCount() {
		t.Errorf("WorkerCount = %d, want default", cfg.Generator.WorkerCount)
	}
	if cfg.Generator.ProgressBatch != DefaultProgressBatch {
		t.Errorf("ProgressBatch = %d, want default", cfg.Generator.ProgressBatch)
	}
	if cfg.Generator.FailureSampleLimit != DefaultFailureSampleLimit {
		t.Errorf("FailureSampleLimit = %d, want default", cfg.Generator.FailureSampleLimit)
	}
}
