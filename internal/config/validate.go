package config

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateMail(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateAlerts(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageFilesystem:
		if c.Storage.SigningSecret == "" {
			defaultPath, err := DefaultConfigPath()
			if err != nil {
				defaultPath = defaultConfigPath
			}
			return fmt.Errorf("storage.signing_secret is required for the filesystem backend. Set AUDIODROP_SIGNING_SECRET or edit %s (create with 'audiodrop config init')", defaultPath)
		}
		if _, err := url.ParseRequestURI(c.Storage.PublicBaseURL); err != nil {
			return fmt.Errorf("storage.public_base_url: %w", err)
		}
	case StorageS3:
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket must be set when storage.backend is s3")
		}
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (expected %s or %s)", c.Storage.Backend, StorageFilesystem, StorageS3)
	}
	return nil
}

func (c *Config) validateQueue() error {
	switch c.Queue.Backend {
	case QueueSQLite:
	case QueueSQS:
		if c.Queue.URL == "" {
			return errors.New("queue.url must be set when queue.backend is sqs")
		}
		if c.Queue.WaitTimeSeconds > 20 {
			return errors.New("queue.wait_time_seconds must be at most 20 for sqs")
		}
	default:
		return fmt.Errorf("queue.backend: unsupported value %q (expected %s or %s)", c.Queue.Backend, QueueSQLite, QueueSQS)
	}
	return nil
}

func (c *Config) validateMail() error {
	if _, err := mail.ParseAddress(c.Mail.From); err != nil {
		return fmt.Errorf("mail.from: %w", err)
	}
	switch c.Mail.Transport {
	case MailOutbox, MailSES:
	case MailSMTP:
		if c.Mail.SMTPHost == "" {
			return errors.New("mail.smtp_host must be set when mail.transport is smtp")
		}
	default:
		return fmt.Errorf("mail.transport: unsupported value %q (expected %s, %s, or %s)", c.Mail.Transport, MailOutbox, MailSMTP, MailSES)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	switch c.Pipeline.CacheHitPolicy {
	case CacheHitRefresh, CacheHitTerminal:
	default:
		return fmt.Errorf("pipeline.cache_hit_policy: unsupported value %q (expected %s or %s)", c.Pipeline.CacheHitPolicy, CacheHitRefresh, CacheHitTerminal)
	}
	if c.Pipeline.JobTimeoutSeconds >= c.Queue.VisibilityTimeoutSeconds {
		return fmt.Errorf("pipeline.job_timeout_seconds (%d) must be lower than queue.visibility_timeout_seconds (%d)",
			c.Pipeline.JobTimeoutSeconds, c.Queue.VisibilityTimeoutSeconds)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateAlerts() error {
	if c.Alerts.NtfyTopic == "" {
		return nil
	}
	parsed, err := url.Parse(c.Alerts.NtfyTopic)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("alerts.ntfy_topic must be an absolute URL, got %q", c.Alerts.NtfyTopic)
	}
	if !strings.HasPrefix(parsed.Scheme, "http") {
		return fmt.Errorf("alerts.ntfy_topic must use http or https, got %q", parsed.Scheme)
	}
	return nil
}
