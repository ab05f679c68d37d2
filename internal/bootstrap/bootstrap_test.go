package bootstrap_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"audiodrop/internal/bootstrap"
	"audiodrop/internal/config"
	"audiodrop/internal/job"
	"audiodrop/internal/storage"
	"audiodrop/internal/testsupport"
)

func TestNewWiresLocalBackends(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFFmpegScript(testsupport.CopyFFmpeg))

	app, err := bootstrap.New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("bootstrap.New: %v", err)
	}
	defer app.Close()

	if _, ok := app.Store.(*storage.FileStore); !ok {
		t.Fatalf("expected filesystem store, got %T", app.Store)
	}
	if app.Pipeline == nil || app.Mailer == nil || app.Alerts == nil {
		t.Fatal("expected pipeline collaborators to be wired")
	}
	for _, dir := range []string{cfg.Storage.Dir, cfg.Mail.OutboxDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}

func TestPipelineEndToEndThroughLocalBackends(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}
	cfg := testsupport.NewConfig(t, testsupport.WithFFmpegScript(testsupport.CopyFFmpeg))
	app, err := bootstrap.New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("bootstrap.New: %v", err)
	}
	defer app.Close()

	source := newSourceServer(t, testsupport.Bytes(4096))
	res := app.Pipeline.Process(context.Background(), job.Job{
		SourceURL:   source.URL + "/a.mp4",
		Title:       "My Song!",
		Destination: "u@example.test",
	})
	if res.Err != nil || res.Outcome != job.OutcomeAttached {
		t.Fatalf("unexpected result %+v", res)
	}

	data, err := app.Store.Read(context.Background(), "My_Song_.mp3")
	if err != nil || len(data) != 4096 {
		t.Fatalf("expected persisted artifact, got %d bytes (%v)", len(data), err)
	}
	info, err := app.Store.(*storage.FileStore).Stat(context.Background(), "My_Song_.mp3")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if got := job.MetadataFromMap(info.Metadata); got.SentTo != "u@example.test" || got.Title != "My Song!" {
		t.Fatalf("unexpected metadata %+v", got)
	}

	mails, err := filepath.Glob(filepath.Join(cfg.Mail.OutboxDir, "*.eml"))
	if err != nil || len(mails) != 1 {
		t.Fatalf("expected one outbox message, got %v (%v)", mails, err)
	}
	raw, _ := os.ReadFile(mails[0])
	if !strings.Contains(string(raw), "Subject: Download My Song!") {
		t.Fatalf("unexpected message:\n%s", raw)
	}
}

func TestOpenRejectsUnknownBackends(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Queue.Backend = "kafka"
	if _, err := bootstrap.OpenQueue(context.Background(), cfg); err == nil {
		t.Fatal("expected unsupported queue backend error")
	}
	cfg.Storage.Backend = "gcs"
	if _, err := bootstrap.OpenStore(context.Background(), cfg); err == nil {
		t.Fatal("expected unsupported storage backend error")
	}
}

func TestLoadAWSConfigAppliesRegion(t *testing.T) {
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "missing"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "missing"))
	cfg := testsupport.NewConfig(t)
	cfg.AWS.Region = "eu-west-1"
	cfg.Storage.Backend = config.StorageS3
	awsCfg, err := bootstrap.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("LoadAWSConfig: %v", err)
	}
	if awsCfg.Region != "eu-west-1" {
		t.Fatalf("expected region override, got %q", awsCfg.Region)
	}
}
