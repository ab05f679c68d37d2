package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"audiodrop/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Local backends are selected and the signing secret is fixed.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Storage.Dir = filepath.Join(base, "data", "artifacts")
	cfgVal.Storage.SigningSecret = "test-secret"
	cfgVal.Storage.PublicBaseURL = "http://127.0.0.1:8080"
	cfgVal.Queue.Path = filepath.Join(base, "data", "queue.db")
	cfgVal.Mail.OutboxDir = filepath.Join(base, "data", "outbox")
	cfgVal.API.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithNtfyTopic points operator alerts at the given topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Alerts.NtfyTopic = topic
	}
}

// WithAttachmentLimitMiB overrides the attachment threshold.
func WithAttachmentLimitMiB(limit int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.AttachmentLimitMiB = limit
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			writeScript(b.t, filepath.Join(binDir, name), "#!/bin/sh\nexit 0\n")
		}
		prependPath(b.t, binDir)
	}
}

// WithFFmpegScript installs an ffmpeg stand-in running the given shell body
// and points the transcoder at it.
func WithFFmpegScript(body string) ConfigOption {
	return func(b *configBuilder) {
		target := filepath.Join(b.baseDir, "bin", "ffmpeg")
		writeScript(b.t, target, "#!/bin/sh\n"+body+"\n")
		b.cfg.Transcoder.FFmpegBinary = target
	}
}

// CopyFFmpeg is an ffmpeg stand-in body that echoes stdin to stdout.
const CopyFFmpeg = "cat"

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}

func writeScript(t testing.TB, path, script string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", path, err)
	}
}

func prependPath(t testing.TB, dir string) {
	t.Helper()
	oldPath := os.Getenv("PATH")
	t.Setenv("PATH", dir+string(os.PathListSeparator)+oldPath)
}
