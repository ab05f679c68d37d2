package config

import (
	"os"
	"strconv"
	"strings"
)

type envBinding struct {
	name  string
	apply func(c *Config, value string)
}

// envBindings lists the AUDIODROP_* overrides. AWS credentials and region are
// resolved by the SDK's own environment chain and are not repeated here.
var envBindings = []envBinding{
	{"AUDIODROP_DATA_DIR", func(c *Config, v string) { c.Paths.DataDir = v }},
	{"AUDIODROP_LOG_DIR", func(c *Config, v string) { c.Paths.LogDir = v }},
	{"AUDIODROP_STORAGE_BACKEND", func(c *Config, v string) { c.Storage.Backend = v }},
	{"AUDIODROP_STORAGE_DIR", func(c *Config, v string) { c.Storage.Dir = v }},
	{"AUDIODROP_BUCKET", func(c *Config, v string) { c.Storage.Bucket = v }},
	{"AUDIODROP_PUBLIC_BASE_URL", func(c *Config, v string) { c.Storage.PublicBaseURL = v }},
	{"AUDIODROP_SIGNING_SECRET", func(c *Config, v string) { c.Storage.SigningSecret = v }},
	{"AUDIODROP_QUEUE_BACKEND", func(c *Config, v string) { c.Queue.Backend = v }},
	{"AUDIODROP_QUEUE_PATH", func(c *Config, v string) { c.Queue.Path = v }},
	{"AUDIODROP_QUEUE_URL", func(c *Config, v string) { c.Queue.URL = v }},
	{"AUDIODROP_MAIL_TRANSPORT", func(c *Config, v string) { c.Mail.Transport = v }},
	{"AUDIODROP_MAIL_FROM", func(c *Config, v string) { c.Mail.From = v }},
	{"AUDIODROP_SMTP_HOST", func(c *Config, v string) { c.Mail.SMTPHost = v }},
	{"AUDIODROP_SMTP_PORT", func(c *Config, v string) {
		if port, err := strconv.Atoi(v); err == nil {
			c.Mail.SMTPPort = port
		}
	}},
	{"AUDIODROP_SMTP_USERNAME", func(c *Config, v string) { c.Mail.SMTPUsername = v }},
	{"AUDIODROP_SMTP_PASSWORD", func(c *Config, v string) { c.Mail.SMTPPassword = v }},
	{"AUDIODROP_CACHE_HIT_POLICY", func(c *Config, v string) { c.Pipeline.CacheHitPolicy = v }},
	{"AUDIODROP_FFMPEG", func(c *Config, v string) { c.Transcoder.FFmpegBinary = v }},
	{"AUDIODROP_API_BIND", func(c *Config, v string) { c.API.Bind = v }},
	{"AUDIODROP_NTFY_TOPIC", func(c *Config, v string) { c.Alerts.NtfyTopic = v }},
	{"AUDIODROP_AWS_ENDPOINT", func(c *Config, v string) { c.AWS.Endpoint = v }},
	{"AUDIODROP_LOG_LEVEL", func(c *Config, v string) { c.Logging.Level = v }},
	{"AUDIODROP_LOG_FORMAT", func(c *Config, v string) { c.Logging.Format = v }},
}

func (c *Config) applyEnv() {
	for _, binding := range envBindings {
		value, ok := os.LookupEnv(binding.name)
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		binding.apply(c, value)
	}
}
