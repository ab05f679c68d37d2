package pipeline_test

import (
	"context"
	"encoding/base64"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"audiodrop/internal/config"
	"audiodrop/internal/fetch"
	"audiodrop/internal/job"
	"audiodrop/internal/pipeline"
	"audiodrop/internal/services"
	"audiodrop/internal/storage"
	"audiodrop/internal/testsupport"
	"audiodrop/internal/transcode"
)

type harness struct {
	store      *fakeStore
	fetcher    *fakeFetcher
	transcoder *fakeTranscoder
	mailer     *fakeMailer
	alerts     *fakeAlerts
	pipeline   *pipeline.Pipeline
}

func newHarness(t *testing.T, opts pipeline.Options) *harness {
	t.Helper()
	h := &harness{
		store:      newFakeStore(),
		fetcher:    &fakeFetcher{body: testsupport.Bytes(2 * 1024 * 1024)},
		transcoder: &fakeTranscoder{},
		mailer:     &fakeMailer{},
		alerts:     &fakeAlerts{},
	}
	p, err := pipeline.New(pipeline.Dependencies{
		Store:      h.store,
		Fetcher:    h.fetcher,
		Transcoder: h.transcoder,
		Mailer:     h.mailer,
		Alerts:     h.alerts,
	}, opts)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	h.pipeline = p
	return h
}

var mySong = job.Job{
	SourceURL:   "https://example.test/a.mp4",
	Title:       "My Song!",
	Destination: "u@example.test",
}

func TestProcessAttachesSmallSourceAndPersists(t *testing.T) {
	h := newHarness(t, pipeline.Options{})

	res := h.pipeline.Process(context.Background(), mySong)

	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Key != "My_Song_.mp3" || res.Outcome != job.OutcomeAttached {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := h.mailer.kinds(); !reflect.DeepEqual(got, []string{"attachment"}) {
		t.Fatalf("expected one attachment delivery, got %v", got)
	}
	att := h.mailer.deliveries[0].Attachment
	if att.Name != "My_Song_.mp3" || att.ContentType != "audio/mpeg" {
		t.Fatalf("unexpected attachment %+v", att)
	}
	decoded, err := base64.StdEncoding.DecodeString(att.Base64)
	if err != nil || string(decoded) != "mp3:2097152" {
		t.Fatalf("attachment does not carry transcoded bytes: %q %v", decoded, err)
	}

	if len(h.store.writes) != 1 {
		t.Fatalf("expected one store write, got %d", len(h.store.writes))
	}
	w := h.store.writes[0]
	want := map[string]string{
		"title":       "My Song!",
		"originalUrl": "https://example.test/a.mp4",
		"sentTo":      "u@example.test",
	}
	if w.Key != "My_Song_.mp3" || w.ContentType != "audio/mpeg" || !reflect.DeepEqual(w.Metadata, want) {
		t.Fatalf("unexpected write %+v", w)
	}
	if h.transcoder.calls != 1 {
		t.Fatalf("expected one transcode, got %d", h.transcoder.calls)
	}
}

func TestProcessSizeThreshold(t *testing.T) {
	const limit = 41943040
	tests := []struct {
		name    string
		size    int64
		outcome job.Outcome
	}{
		{name: "at threshold", size: limit, outcome: job.OutcomeAttached},
		{name: "one byte over", size: limit + 1, outcome: job.OutcomeLinked},
		{name: "small", size: 1024, outcome: job.OutcomeAttached},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, pipeline.Options{})
			h.fetcher.body = make([]byte, tt.size)
			h.transcoder.out = []byte("mp3")

			res := h.pipeline.Process(context.Background(), mySong)

			if res.Outcome != tt.outcome || res.SourceBytes != tt.size {
				t.Fatalf("expected %s for %d bytes, got %+v", tt.outcome, tt.size, res)
			}
			if h.transcoder.calls != 1 {
				t.Fatalf("transcoding must happen on both paths, got %d calls", h.transcoder.calls)
			}
			if len(h.mailer.deliveries) != 1 {
				t.Fatalf("expected exactly one notification, got %v", h.mailer.kinds())
			}
		})
	}
}

func TestProcessLinkPathPersistsBeforeNotifying(t *testing.T) {
	h := newHarness(t, pipeline.Options{AttachmentLimit: 10})
	h.fetcher.body = make([]byte, 11)

	res := h.pipeline.Process(context.Background(), mySong)

	if res.Outcome != job.OutcomeLinked {
		t.Fatalf("expected linked outcome, got %+v", res)
	}
	if got := h.store.calls; !reflect.DeepEqual(got, []string{"exists", "write", "link"}) {
		t.Fatalf("unexpected store call order %v", got)
	}
	d := h.mailer.deliveries[0]
	if d.Kind != "link" || d.ValidFor != 24*time.Hour || !strings.Contains(d.Link, "ttl=86400") {
		t.Fatalf("unexpected link delivery %+v", d)
	}
}

func TestProcessFetchStatusFailure(t *testing.T) {
	h := newHarness(t, pipeline.Options{})
	h.fetcher.err = &fetch.StatusError{StatusCode: 404, Reason: "Not Found"}

	res := h.pipeline.Process(context.Background(), mySong)

	if res.Outcome != job.OutcomeFailed || !errors.Is(res.Err, services.ErrFetch) {
		t.Fatalf("expected fetch failure, got %+v", res)
	}
	var statusErr *fetch.StatusError
	if !errors.As(res.Err, &statusErr) || statusErr.StatusCode != 404 {
		t.Fatalf("expected status error in chain, got %v", res.Err)
	}
	if got := h.mailer.kinds(); !reflect.DeepEqual(got, []string{"failure"}) {
		t.Fatalf("expected one failure notification, got %v", got)
	}
	d := h.mailer.deliveries[0]
	if !strings.Contains(d.Message, "404") {
		t.Fatalf("failure message should reference the status code: %q", d.Message)
	}
	if d.Title != "My Song!" || d.SourceURL != mySong.SourceURL || d.To != mySong.Destination {
		t.Fatalf("unexpected failure delivery %+v", d)
	}
	if len(h.store.writes) != 0 || h.transcoder.calls != 0 {
		t.Fatal("failed fetch must not transcode or persist")
	}
	if len(h.alerts.jobFailed) != 1 {
		t.Fatalf("expected operator job-failure hook, got %d", len(h.alerts.jobFailed))
	}
}

func TestProcessTranscodeFailureCarriesStderr(t *testing.T) {
	h := newHarness(t, pipeline.Options{})
	h.transcoder.err = &transcode.ProcessError{ExitCode: 1, Stderr: "invalid data"}

	res := h.pipeline.Process(context.Background(), mySong)

	if res.Outcome != job.OutcomeFailed || !errors.Is(res.Err, services.ErrTranscode) {
		t.Fatalf("expected transcode failure, got %+v", res)
	}
	if got := h.mailer.kinds(); !reflect.DeepEqual(got, []string{"failure"}) {
		t.Fatalf("expected one failure notification, got %v", got)
	}
	if msg := h.mailer.deliveries[0].Message; !strings.Contains(msg, "invalid data") {
		t.Fatalf("failure message should carry stderr: %q", msg)
	}
}

func TestProcessCacheHitDoesNotError(t *testing.T) {
	h := newHarness(t, pipeline.Options{})

	first := h.pipeline.Process(context.Background(), mySong)
	second := h.pipeline.Process(context.Background(), mySong)

	if first.Err != nil || second.Err != nil || second.RefreshErr != nil {
		t.Fatalf("re-running a job must not error: %+v %+v", first, second)
	}
	if !second.CacheHit || !second.CachedDelivery || second.Outcome != job.OutcomeAttached {
		t.Fatalf("expected cached attachment delivery, got %+v", second)
	}
	if got := h.mailer.kinds(); !reflect.DeepEqual(got, []string{"attachment", "attachment"}) {
		t.Fatalf("expected one notification per run, got %v", got)
	}
	if h.fetcher.calls != 2 || len(h.store.writes) != 2 {
		t.Fatalf("refresh policy should re-fetch and re-persist: fetches=%d writes=%d", h.fetcher.calls, len(h.store.writes))
	}
}

func TestProcessCacheHitTerminalPolicy(t *testing.T) {
	h := newHarness(t, pipeline.Options{CachePolicy: config.CacheHitTerminal})
	h.store.objects["My_Song_.mp3"] = []byte("cached")

	res := h.pipeline.Process(context.Background(), mySong)

	if res.Outcome != job.OutcomeAttached || !res.CachedDelivery {
		t.Fatalf("unexpected result %+v", res)
	}
	if h.fetcher.calls != 0 || h.transcoder.calls != 0 || len(h.store.writes) != 0 {
		t.Fatal("terminal policy must stop after the cached delivery")
	}
	decoded, _ := base64.StdEncoding.DecodeString(h.mailer.deliveries[0].Attachment.Base64)
	if string(decoded) != "cached" {
		t.Fatalf("expected cached bytes, got %q", decoded)
	}
}

func TestProcessCacheRefreshFailureIsNotEmailed(t *testing.T) {
	h := newHarness(t, pipeline.Options{})
	h.store.objects["My_Song_.mp3"] = []byte("cached")
	h.fetcher.err = &fetch.StatusError{StatusCode: 500}

	res := h.pipeline.Process(context.Background(), mySong)

	if res.Err != nil || res.Outcome != job.OutcomeAttached {
		t.Fatalf("cached delivery should stand, got %+v", res)
	}
	if !errors.Is(res.RefreshErr, services.ErrFetch) {
		t.Fatalf("expected refresh error to be recorded, got %v", res.RefreshErr)
	}
	if got := h.mailer.kinds(); !reflect.DeepEqual(got, []string{"attachment"}) {
		t.Fatalf("expected only the cached delivery, got %v", got)
	}
	if len(h.alerts.jobFailed) != 1 {
		t.Fatalf("expected operator alert for refresh failure, got %d", len(h.alerts.jobFailed))
	}
}

func TestProcessStoreFailures(t *testing.T) {
	boom := errors.New("bucket offline")
	tests := []struct {
		name  string
		setup func(*harness)
	}{
		{name: "exists", setup: func(h *harness) { h.store.existsErr = boom }},
		{name: "read", setup: func(h *harness) {
			h.store.objects["My_Song_.mp3"] = []byte("x")
			h.store.readErr = boom
		}},
		{name: "write", setup: func(h *harness) { h.store.writeErr = &storage.Error{Op: "write", Key: "My_Song_.mp3", Err: boom} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, pipeline.Options{})
			tt.setup(h)

			res := h.pipeline.Process(context.Background(), mySong)

			if res.Outcome != job.OutcomeFailed || !errors.Is(res.Err, services.ErrStore) || !errors.Is(res.Err, boom) {
				t.Fatalf("expected store failure, got %+v", res)
			}
			last := h.mailer.deliveries[len(h.mailer.deliveries)-1]
			if last.Kind != "failure" || !strings.Contains(last.Message, "bucket offline") {
				t.Fatalf("unexpected final delivery %+v", last)
			}
		})
	}
}

func TestProcessReportsFailureAfterJobDeadline(t *testing.T) {
	h := newHarness(t, pipeline.Options{})
	h.transcoder.block = true

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := h.pipeline.Process(ctx, mySong)

	if res.Outcome != job.OutcomeFailed || !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline failure, got %+v", res)
	}
	d := h.mailer.deliveries[0]
	if d.Kind != "failure" || d.CtxErr != nil {
		t.Fatalf("failure report should run on a live context, got %+v", d)
	}
}

func TestProcessFailureReportFailureRaisesAlert(t *testing.T) {
	h := newHarness(t, pipeline.Options{})
	h.fetcher.err = errors.New("dial tcp: connection refused")
	h.mailer.failErr = errors.New("smtp unavailable")

	res := h.pipeline.Process(context.Background(), mySong)

	if res.Outcome != job.OutcomeFailed {
		t.Fatalf("expected failed outcome, got %+v", res)
	}
	if len(h.alerts.reportFailed) != 1 || len(h.alerts.jobFailed) != 0 {
		t.Fatalf("expected failure-report alert only, got report=%d job=%d", len(h.alerts.reportFailed), len(h.alerts.jobFailed))
	}
}

func TestProcessAttachmentDeliveryFailure(t *testing.T) {
	h := newHarness(t, pipeline.Options{})
	h.mailer.attachErr = errors.New("message rejected")

	res := h.pipeline.Process(context.Background(), mySong)

	if res.Outcome != job.OutcomeFailed || !errors.Is(res.Err, services.ErrNotify) {
		t.Fatalf("expected notify failure, got %+v", res)
	}
	if got := h.mailer.kinds(); !reflect.DeepEqual(got, []string{"attachment", "failure"}) {
		t.Fatalf("unexpected deliveries %v", got)
	}
	if len(h.store.writes) != 0 {
		t.Fatal("artifact must not be persisted after a failed attachment delivery")
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := pipeline.New(pipeline.Dependencies{}, pipeline.Options{}); err == nil {
		t.Fatal("expected error for missing collaborators")
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAttachmentLimitMiB(1))
	opts := pipeline.OptionsFromConfig(cfg)
	if opts.AttachmentLimit != 1024*1024 || opts.LinkTTL != 24*time.Hour || opts.CachePolicy != config.CacheHitRefresh {
		t.Fatalf("unexpected options %+v", opts)
	}
}
