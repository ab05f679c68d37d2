package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

const secretPlaceholder = "__GENERATED_SECRET__"

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Storage selects and configures the artifact store backend.
type Storage struct {
	Backend       string `toml:"backend"`
	Dir           string `toml:"dir"`
	Bucket        string `toml:"bucket"`
	UsePathStyle  bool   `toml:"use_path_style"`
	PublicBaseURL string `toml:"public_base_url"`
	SigningSecret string `toml:"signing_secret"`
}

// Queue selects and configures the job queue backend.
type Queue struct {
	Backend                  string `toml:"backend"`
	Path                     string `toml:"path"`
	URL                      string `toml:"url"`
	VisibilityTimeoutSeconds int    `toml:"visibility_timeout_seconds"`
	WaitTimeSeconds          int    `toml:"wait_time_seconds"`
	MaxReceives              int    `toml:"max_receives"`
}

// Mail configures how requester notifications are sent.
type Mail struct {
	Transport    string `toml:"transport"`
	From         string `toml:"from"`
	OutboxDir    string `toml:"outbox_dir"`
	SMTPHost     string `toml:"smtp_host"`
	SMTPPort     int    `toml:"smtp_port"`
	SMTPUsername string `toml:"smtp_username"`
	SMTPPassword string `toml:"smtp_password"`
}

// Pipeline contains the delivery policy of the download/transcode pipeline.
type Pipeline struct {
	AttachmentLimitMiB          int    `toml:"attachment_limit_mib"`
	LinkTTLSeconds              int    `toml:"link_ttl_seconds"`
	CacheHitPolicy              string `toml:"cache_hit_policy"`
	JobTimeoutSeconds           int    `toml:"job_timeout_seconds"`
	MaxSourceMiB                int    `toml:"max_source_mib"`
	FetchTimeoutSeconds         int    `toml:"fetch_timeout_seconds"`
	FailureReportTimeoutSeconds int    `toml:"failure_report_timeout_seconds"`
}

// Transcoder contains settings for the external encoder.
type Transcoder struct {
	FFmpegBinary string `toml:"ffmpeg_binary"`
}

// Worker contains queue consumer settings.
type Worker struct {
	Concurrency         int `toml:"concurrency"`
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
}

// API contains intake HTTP server settings.
type API struct {
	Bind               string `toml:"bind"`
	ReadLinkTTLSeconds int    `toml:"read_link_ttl_seconds"`
}

// Alerts contains configuration for operator ntfy alerts.
type Alerts struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobFailures    bool   `toml:"job_failures"`
}

// AWS contains shared settings for the S3, SES, and SQS clients.
type AWS struct {
	Region   string `toml:"region"`
	Endpoint string `toml:"endpoint"`
	Profile  string `toml:"profile"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for audiodrop.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Storage: artifact store backend (filesystem or s3)
//   - Queue: job queue backend (sqlite or sqs)
//   - Mail: requester notification transport (outbox, smtp, or ses)
//   - Pipeline: size threshold, link TTL, cache-hit policy, job budget
//   - Transcoder: ffmpeg binary
//   - Worker: consumer concurrency and polling
//   - API: intake server bind address
//   - Alerts: ntfy operator alerts
//   - AWS: shared cloud client settings
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Storage    Storage    `toml:"storage"`
	Queue      Queue      `toml:"queue"`
	Mail       Mail       `toml:"mail"`
	Pipeline   Pipeline   `toml:"pipeline"`
	Transcoder Transcoder `toml:"transcoder"`
	Worker     Worker     `toml:"worker"`
	API        API        `toml:"api"`
	Alerts     Alerts     `toml:"alerts"`
	AWS        AWS        `toml:"aws"`
	Logging    Logging    `toml:"logging"`
}

// envFiles are loaded before environment overrides are applied. Variables that
// are already set in the process environment win over file contents.
var envFiles = []string{".env", ".env.local"}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	for _, name := range envFiles {
		_ = godotenv.Load(name)
	}

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("audiodrop.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories used by local backends.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir}
	if c.Storage.Backend == StorageFilesystem {
		dirs = append(dirs, c.Storage.Dir)
	}
	if c.Queue.Backend == QueueSQLite {
		dirs = append(dirs, filepath.Dir(c.Queue.Path))
	}
	if c.Mail.Transport == MailOutbox {
		dirs = append(dirs, c.Mail.OutboxDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// AttachmentLimitBytes returns the source size above which delivery switches to a link.
func (c *Config) AttachmentLimitBytes() int64 {
	return int64(c.Pipeline.AttachmentLimitMiB) * 1024 * 1024
}

// MaxSourceBytes returns the optional streaming fetch cap; zero disables it.
func (c *Config) MaxSourceBytes() int64 {
	return int64(c.Pipeline.MaxSourceMiB) * 1024 * 1024
}

// LinkTTL returns the validity window of links sent to requesters.
func (c *Config) LinkTTL() time.Duration {
	return time.Duration(c.Pipeline.LinkTTLSeconds) * time.Second
}

// JobTimeout returns the wall-clock budget of a single job attempt.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.Pipeline.JobTimeoutSeconds) * time.Second
}

// FetchTimeout returns the HTTP client timeout for source downloads; zero means none.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Pipeline.FetchTimeoutSeconds) * time.Second
}

// FailureReportTimeout bounds the failure notification sent after a job fails.
func (c *Config) FailureReportTimeout() time.Duration {
	return time.Duration(c.Pipeline.FailureReportTimeoutSeconds) * time.Second
}

// VisibilityTimeout returns how long a received message stays hidden from other consumers.
func (c *Config) VisibilityTimeout() time.Duration {
	return time.Duration(c.Queue.VisibilityTimeoutSeconds) * time.Second
}

// PollInterval returns the idle delay between empty queue receives.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Worker.PollIntervalSeconds) * time.Second
}

// ReadLinkTTL returns the validity of links issued by the intake read endpoint.
func (c *Config) ReadLinkTTL() time.Duration {
	return time.Duration(c.API.ReadLinkTTLSeconds) * time.Second
}

// FFmpegBinary returns the ffmpeg executable used by the transcoder.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Transcoder.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration with a freshly
// generated signing secret.
func SampleConfig() string {
	return strings.ReplaceAll(sampleConfig, secretPlaceholder, uuid.NewString())
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(SampleConfig()), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
