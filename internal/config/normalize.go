package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	if err := c.normalizeQueue(); err != nil {
		return err
	}
	if err := c.normalizeMail(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeWorker()
	c.normalizeLogging()
	c.AWS.Region = strings.TrimSpace(c.AWS.Region)
	c.AWS.Endpoint = strings.TrimSpace(c.AWS.Endpoint)
	c.AWS.Profile = strings.TrimSpace(c.AWS.Profile)
	c.Alerts.NtfyTopic = strings.TrimSpace(c.Alerts.NtfyTopic)
	if c.Alerts.RequestTimeout <= 0 {
		c.Alerts.RequestTimeout = defaultAlertRequestTimeout
	}
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	if c.API.ReadLinkTTLSeconds <= 0 {
		c.API.ReadLinkTTLSeconds = defaultReadLinkTTLSeconds
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageFilesystem
	}
	if strings.TrimSpace(c.Storage.Dir) == "" {
		c.Storage.Dir = filepath.Join(c.Paths.DataDir, "artifacts")
	}
	var err error
	if c.Storage.Dir, err = expandPath(c.Storage.Dir); err != nil {
		return fmt.Errorf("storage.dir: %w", err)
	}
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Storage.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.PublicBaseURL), "/")
	if c.Storage.PublicBaseURL == "" {
		c.Storage.PublicBaseURL = defaultPublicBaseURL
	}
	c.Storage.SigningSecret = strings.TrimSpace(c.Storage.SigningSecret)
	return nil
}

func (c *Config) normalizeQueue() error {
	c.Queue.Backend = strings.ToLower(strings.TrimSpace(c.Queue.Backend))
	if c.Queue.Backend == "" {
		c.Queue.Backend = QueueSQLite
	}
	if strings.TrimSpace(c.Queue.Path) == "" {
		c.Queue.Path = filepath.Join(c.Paths.DataDir, "queue.db")
	}
	var err error
	if c.Queue.Path, err = expandPath(c.Queue.Path); err != nil {
		return fmt.Errorf("queue.path: %w", err)
	}
	c.Queue.URL = strings.TrimSpace(c.Queue.URL)
	if c.Queue.VisibilityTimeoutSeconds <= 0 {
		c.Queue.VisibilityTimeoutSeconds = defaultVisibilityTimeoutSeconds
	}
	if c.Queue.WaitTimeSeconds < 0 {
		c.Queue.WaitTimeSeconds = 0
	}
	if c.Queue.MaxReceives <= 0 {
		c.Queue.MaxReceives = defaultMaxReceives
	}
	return nil
}

func (c *Config) normalizeMail() error {
	c.Mail.Transport = strings.ToLower(strings.TrimSpace(c.Mail.Transport))
	if c.Mail.Transport == "" {
		c.Mail.Transport = MailOutbox
	}
	c.Mail.From = strings.TrimSpace(c.Mail.From)
	if c.Mail.From == "" {
		c.Mail.From = defaultMailFrom
	}
	if strings.TrimSpace(c.Mail.OutboxDir) == "" {
		c.Mail.OutboxDir = filepath.Join(c.Paths.DataDir, "outbox")
	}
	var err error
	if c.Mail.OutboxDir, err = expandPath(c.Mail.OutboxDir); err != nil {
		return fmt.Errorf("mail.outbox_dir: %w", err)
	}
	c.Mail.SMTPHost = strings.TrimSpace(c.Mail.SMTPHost)
	if c.Mail.SMTPPort <= 0 {
		c.Mail.SMTPPort = defaultSMTPPort
	}
	c.Mail.SMTPUsername = strings.TrimSpace(c.Mail.SMTPUsername)
	return nil
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.AttachmentLimitMiB <= 0 {
		c.Pipeline.AttachmentLimitMiB = defaultAttachmentLimitMiB
	}
	if c.Pipeline.LinkTTLSeconds <= 0 {
		c.Pipeline.LinkTTLSeconds = defaultLinkTTLSeconds
	}
	c.Pipeline.CacheHitPolicy = strings.ToLower(strings.TrimSpace(c.Pipeline.CacheHitPolicy))
	if c.Pipeline.CacheHitPolicy == "" {
		c.Pipeline.CacheHitPolicy = CacheHitRefresh
	}
	if c.Pipeline.JobTimeoutSeconds <= 0 {
		c.Pipeline.JobTimeoutSeconds = defaultJobTimeoutSeconds
	}
	if c.Pipeline.MaxSourceMiB < 0 {
		c.Pipeline.MaxSourceMiB = 0
	}
	if c.Pipeline.FetchTimeoutSeconds < 0 {
		c.Pipeline.FetchTimeoutSeconds = 0
	}
	if c.Pipeline.FailureReportTimeoutSeconds <= 0 {
		c.Pipeline.FailureReportTimeoutSeconds = defaultFailureReportTimeoutSeconds
	}
	c.Transcoder.FFmpegBinary = strings.TrimSpace(c.Transcoder.FFmpegBinary)
}

func (c *Config) normalizeWorker() {
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = defaultWorkerConcurrency
	}
	if c.Worker.PollIntervalSeconds <= 0 {
		c.Worker.PollIntervalSeconds = defaultPollIntervalSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
