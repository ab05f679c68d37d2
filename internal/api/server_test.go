package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"audiodrop/internal/api"
	"audiodrop/internal/job"
	"audiodrop/internal/storage"
	"audiodrop/internal/testsupport"
)

func newFixture(t *testing.T) (*httptest.Server, *storage.FileStore, func() []job.Job) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	q := testsupport.MustOpenQueue(t, cfg)

	srv := httptest.NewUnstartedServer(nil)
	store, err := storage.NewFileStore(cfg.Storage.Dir, "http://"+srv.Listener.Addr().String(), cfg.Storage.SigningSecret)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	s, err := api.New(q, store, api.OptionsFromConfig(cfg, nil))
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	srv.Config.Handler = s.Handler()
	srv.Start()
	t.Cleanup(srv.Close)

	queued := func() []job.Job {
		entries, err := q.List(context.Background(), "")
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		out := make([]job.Job, 0, len(entries))
		for _, e := range entries {
			j, err := job.Decode(e.Body)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			out = append(out, j)
		}
		return out
	}
	return srv, store, queued
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestEnqueueAcceptsValidJob(t *testing.T) {
	srv, _, queued := newFixture(t)

	body := `{"url":"https://example.test/a.mp4","title":"My Song!","email":"u@example.test"}`
	resp, err := http.Post(srv.URL+"/", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
	out := decode[api.EnqueueResponse](t, resp)
	if out.Body != "download started" || out.ID == "" || out.Key != "My_Song_.mp3" {
		t.Fatalf("unexpected response %+v", out)
	}

	jobs := queued()
	if len(jobs) != 1 || jobs[0].Title != "My Song!" || jobs[0].Destination != "u@example.test" {
		t.Fatalf("unexpected queued jobs %+v", jobs)
	}
}

func TestEnqueueRejectsInvalidInput(t *testing.T) {
	srv, _, queued := newFixture(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "relative url", body: `{"url":"/a.mp4","title":"t","email":"u@example.test"}`, field: "url"},
		{name: "ftp url", body: `{"url":"ftp://example.test/a","title":"t","email":"u@example.test"}`, field: "url"},
		{name: "missing title", body: `{"url":"https://example.test/a","email":"u@example.test"}`, field: "title"},
		{name: "bad email", body: `{"url":"https://example.test/a","title":"t","email":"nope"}`, field: "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
			out := decode[api.ErrorResponse](t, resp)
			if _, ok := out.Fields[tt.field]; !ok {
				t.Fatalf("expected field error for %s, got %+v", tt.field, out)
			}
		})
	}

	resp, err := http.Post(srv.URL+"/", "application/json", strings.NewReader("not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", resp.StatusCode)
	}
	if n := len(queued()); n != 0 {
		t.Fatalf("invalid requests must not be enqueued, got %d", n)
	}
}

func TestReadIssuesWorkingLink(t *testing.T) {
	srv, store, _ := newFixture(t)
	ctx := context.Background()
	if err := store.Write(ctx, "My_Song_.mp3", []byte("ID3 audio"), "audio/mpeg", map[string]string{"title": "My Song!"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	resp, err := http.Get(srv.URL + "/read/My_Song_.mp3")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	out := decode[api.ReadResponse](t, resp)
	if !out.Success || !strings.Contains(out.DownloadURL, "/files/My_Song_.mp3?") {
		t.Fatalf("unexpected read response %+v", out)
	}

	fileResp, err := http.Get(out.DownloadURL)
	if err != nil {
		t.Fatalf("GET file: %v", err)
	}
	defer fileResp.Body.Close()
	data, _ := io.ReadAll(fileResp.Body)
	if fileResp.StatusCode != http.StatusOK || string(data) != "ID3 audio" {
		t.Fatalf("unexpected file response %d %q", fileResp.StatusCode, data)
	}
	if ct := fileResp.Header.Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("expected audio/mpeg, got %q", ct)
	}
}

func TestReadMissingAndInvalidKeys(t *testing.T) {
	srv, _, _ := newFixture(t)

	resp, err := http.Get(srv.URL + "/read/Missing.mp3")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/read/" + url.PathEscape("bad key!.mp3"))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestFileLinkSignatureChecks(t *testing.T) {
	_, store, _ := newFixture(t)
	ctx := context.Background()
	if err := store.Write(ctx, "A.mp3", []byte("a"), "audio/mpeg", nil); err != nil {
		t.Fatalf("Write: %v", err)
	}

	link, err := store.SignedLink(ctx, "A.mp3", time.Hour)
	if err != nil {
		t.Fatalf("SignedLink: %v", err)
	}
	tampered := strings.Replace(link, "A.mp3", "B.mp3", 1)
	resp, err := http.Get(tampered)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for tampered link, got %d", resp.StatusCode)
	}

	expired, err := store.SignedLink(ctx, "A.mp3", -time.Minute)
	if err != nil {
		t.Fatalf("SignedLink: %v", err)
	}
	resp, err = http.Get(expired)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusGone {
		t.Fatalf("expected 410 for expired link, got %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv, _, _ := newFixture(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	out := decode[api.HealthResponse](t, resp)
	if resp.StatusCode != http.StatusOK || out.Status != "ok" {
		t.Fatalf("unexpected health %d %+v", resp.StatusCode, out)
	}
}

type failingQueue struct{}

func (failingQueue) Send(context.Context, []byte) (string, error) {
	return "", errors.New("disk full")
}

func TestEnqueueQueueFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := storage.NewFileStore(cfg.Storage.Dir, "http://localhost", "secret")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	s, err := api.New(failingQueue{}, store, api.Options{})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"url":"https://example.test/a","title":"t","email":"u@example.test"}`))
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestStartServesOnBind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	q := testsupport.MustOpenQueue(t, cfg)
	store, err := storage.NewFileStore(cfg.Storage.Dir, cfg.Storage.PublicBaseURL, cfg.Storage.SigningSecret)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	s, err := api.New(q, store, api.OptionsFromConfig(cfg, nil))
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	resp, err := http.Get("http://" + s.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
