package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"tessgen/internal/adapters/storage/localfs"
	"tessgen/internal/httpapi/handlers"
	"tessgen/internal/models"
	"tessgen/internal/pkg/logger"
	"tessgen/internal/queue"
	"tessgen/internal/store"
)

type fakeQueue struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (q *fakeQueue) Push(_ context.Context, runID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, runID)
	return nil
}

type fakeProgress map[string]queue.Progress

func (f fakeProgress) Fetch(_ context.Context, runID string) (queue.Progress, bool, error) {
	p, ok := f[runID]
	return p, ok, nil
}

type apiFixture struct {
	router http.Handler
	store  *store.SQLiteStore
	queue  *fakeQueue
	root   string
}

func newFixture(t *testing.T, checks ...handlers.Checker) *apiFixture {
	t.Helper()

	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	root := t.TempDir()
	q := &fakeQueue{}
	return &apiFixture{
		router: NewRouter(handlers.Deps{
			Store:    st,
			Queue:    q,
			Progress: fakeProgress{"01RUNNING": {Total: 10, Completed: 4, Percent: 40}},
			SP:       localfs.New(root),
			Checks:   checks,
			Log:      logger.Discard(),
		}),
		store: st,
		queue: q,
		root:  root,
	}
}

func (f *apiFixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, r)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, rec)
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestCreateRun(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/runs",
		`{"name":"smoke","texts":["日本語"," ","# skipped","テスト"],"fonts":["IPAexGothic"," ","IPAexGothic"],"model_name":"jpn_smoke"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}

	run := decode(t, rec)["run"].(map[string]any)
	id := run["id"].(string)
	if run["status"] != models.RunQueued {
		t.Errorf("status = %v", run["status"])
	}
	if len(f.queue.ids) != 1 || f.queue.ids[0] != id {
		t.Errorf("queued ids = %v, want [%s]", f.queue.ids, id)
	}

	stored, err := f.store.GetRun(context.Background(), id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if want := []string{"日本語", "テスト"}; !reflect.DeepEqual(stored.Texts, want) {
		t.Errorf("texts = %v, want %v", stored.Texts, want)
	}
	if want := []string{"IPAexGothic", "IPAexGothic"}; !reflect.DeepEqual(stored.Fonts, want) {
		t.Errorf("fonts = %v, want %v (blanks dropped, repeats kept)", stored.Fonts, want)
	}
}

func TestCreateRunValidation(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"no corpus", `{"fonts":["IPAexGothic"]}`, "texts"},
		{"blank texts only", `{"texts":["  "]}`, "texts"},
		{"comment texts only", `{"texts":["# note","  #other"]}`, "texts"},
		{"multi-line text", `{"texts":["a\nb"]}`, "texts"},
		{"both corpus sources", `{"texts":["a"],"corpus_object_key":"corpora/x.txt"}`, "texts"},
		{"explicit empty fonts", `{"texts":["a"],"fonts":[]}`, "fonts"},
		{"bad model name", `{"texts":["a"],"model_name":"../evil"}`, "model_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(t, http.MethodPost, "/runs", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			e := decode(t, rec)["error"].(map[string]any)
			if e["code"] != "VALIDATION_ERROR" {
				t.Errorf("code = %v", e["code"])
			}
			details, _ := e["details"].(map[string]any)
			if details["field"] != tt.field {
				t.Errorf("field = %v, want %s", details["field"], tt.field)
			}
			if len(f.queue.ids) != 0 {
				t.Error("invalid runs must not be queued")
			}
		})
	}
}

func TestCreateRunRejectsMalformedJSON(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/runs", `{"texts":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreateRunQueueDown(t *testing.T) {
	f := newFixture(t)
	f.queue.err = fmt.Errorf("connection refused")

	rec := f.do(t, http.MethodPost, "/runs", `{"texts":["a"]}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != "UNAVAILABLE" {
		t.Errorf("code = %s", code)
	}

	runs, err := f.store.ListRuns(context.Background(), models.RunFailed, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].ErrorText != "queue push failed" {
		t.Errorf("failed runs = %+v", runs)
	}
}

func TestGetRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.store.CreateRun(ctx, &models.Run{ID: "01RUNNING", Status: models.RunQueued, Texts: []string{"a"}}); err != nil {
		t.Fatal(err)
	}

	rec := f.do(t, http.MethodGet, "/runs/01RUNNING", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode(t, rec)
	p, ok := body["progress"].(map[string]any)
	if !ok {
		t.Fatalf("expected progress in %v", body)
	}
	if p["completed"] != float64(4) {
		t.Errorf("completed = %v", p["completed"])
	}

	rec = f.do(t, http.MethodGet, "/runs/01MISSING", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing run status = %d", rec.Code)
	}
}

func TestListRuns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i, status := range []string{models.RunQueued, models.RunQueued, models.RunRunning} {
		run := &models.Run{ID: fmt.Sprintf("01R%d", i), Status: status, Texts: []string{"a"}}
		if err := f.store.CreateRun(ctx, run); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	rec := f.do(t, http.MethodGet, "/runs?status=queued", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if runs := decode(t, rec)["runs"].([]any); len(runs) != 2 {
		t.Errorf("queued runs = %d, want 2", len(runs))
	}

	rec = f.do(t, http.MethodGet, "/runs?status=exploded", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown status = %d, want 400", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/runs?status=failed", "")
	if runs := decode(t, rec)["runs"].([]any); len(runs) != 0 {
		t.Errorf("failed runs = %v, want empty array", runs)
	}
}

func TestListJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.store.CreateRun(ctx, &models.Run{ID: "01RUN", Status: models.RunRunning, Texts: []string{"a"}}); err != nil {
		t.Fatal(err)
	}
	for i := uint(0); i < 3; i++ {
		outcome := "success"
		if i == 1 {
			outcome = "failure"
		}
		if err := f.store.RecordJob(ctx, models.JobRecord{
			RunID: "01RUN", Index: i, Text: "a", Font: "IPAexGothic",
			Artifact: fmt.Sprintf("jpn_custom.train_%04d", i), Outcome: outcome,
		}); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?outcome=failure", 1},
		{"?outcome=success&limit=1", 1},
		{"?offset=2", 1},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/runs/01RUN/jobs"+tt.query, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			if jobs := decode(t, rec)["jobs"].([]any); len(jobs) != tt.want {
				t.Errorf("jobs = %d, want %d", len(jobs), tt.want)
			}
		})
	}

	if rec := f.do(t, http.MethodGet, "/runs/01RUN/jobs?outcome=maybe", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad outcome status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/runs/01RUN/jobs?offset=-1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad offset status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/runs/01NOPE/jobs", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown run status = %d", rec.Code)
	}
}

func uploadRequest(t *testing.T, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "corpus.txt")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(content))
	mw.Close()

	r := httptest.NewRequest(http.MethodPost, "/corpora", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestUploadCorpus(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, uploadRequest(t, "# comment\n日本語\n\nテスト\n"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	c := decode(t, rec)["corpus"].(map[string]any)
	if c["texts"] != float64(2) {
		t.Errorf("texts = %v, want 2", c["texts"])
	}
	key, _ := c["object_key"].(string)
	if !strings.HasPrefix(key, "corpora/") {
		t.Errorf("object_key = %q", key)
	}

	rc, _, _, err := localfs.New(f.root).GetObject(context.Background(), key)
	if err != nil {
		t.Fatalf("stored corpus not readable: %v", err)
	}
	rc.Close()

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, uploadRequest(t, "\n# nothing\n"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty corpus status = %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t,
		handlers.Checker{Name: "redis", Check: func(context.Context) error { return nil }},
		handlers.Checker{Name: "postgres", Check: func(context.Context) error { return fmt.Errorf("refused") }},
	)

	body := decode(t, f.do(t, http.MethodGet, "/health", ""))
	if body["status"] != "ok" {
		t.Errorf("shallow status = %v", body["status"])
	}
	if _, ok := body["checks"]; ok {
		t.Error("shallow health must not run checks")
	}

	body = decode(t, f.do(t, http.MethodGet, "/health?deep=true", ""))
	if body["status"] != "degraded" {
		t.Errorf("deep status = %v, want degraded", body["status"])
	}
	checks := body["checks"].(map[string]any)
	if checks["redis"].(map[string]any)["status"] != "ok" {
		t.Error("redis check should pass")
	}
	if checks["storage"].(map[string]any)["provider"] != "localfs" {
		t.Errorf("storage = %v", checks["storage"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("expected default Go collector output")
	}
}
