package config

const (
	StorageFilesystem = "filesystem"
	StorageS3         = "s3"

	QueueSQLite = "sqlite"
	QueueSQS    = "sqs"

	MailOutbox = "outbox"
	MailSMTP   = "smtp"
	MailSES    = "ses"

	CacheHitRefresh  = "refresh"
	CacheHitTerminal = "terminal"
)

const (
	defaultConfigPath                  = "~/.config/audiodrop/config.toml"
	defaultDataDir                     = "~/.local/share/audiodrop"
	defaultLogDir                      = "~/.local/share/audiodrop/logs"
	defaultPublicBaseURL               = "http://127.0.0.1:8080"
	defaultVisibilityTimeoutSeconds    = 900
	defaultWaitTimeSeconds             = 10
	defaultMaxReceives                 = 5
	defaultMailFrom                    = "audiodrop@localhost"
	defaultSMTPPort                    = 587
	defaultAttachmentLimitMiB          = 40
	defaultLinkTTLSeconds              = 86400
	defaultJobTimeoutSeconds           = 840
	defaultFailureReportTimeoutSeconds = 30
	defaultFFmpegBinary                = "ffmpeg"
	defaultWorkerConcurrency           = 2
	defaultPollIntervalSeconds         = 2
	defaultAPIBind                     = "127.0.0.1:8080"
	defaultReadLinkTTLSeconds          = 3600
	defaultAlertRequestTimeout         = 10
	defaultLogFormat                   = "auto"
	defaultLogLevel                    = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Storage: Storage{
			Backend:       StorageFilesystem,
			PublicBaseURL: defaultPublicBaseURL,
		},
		Queue: Queue{
			Backend:                  QueueSQLite,
			VisibilityTimeoutSeconds: defaultVisibilityTimeoutSeconds,
			WaitTimeSeconds:          defaultWaitTimeSeconds,
			MaxReceives:              defaultMaxReceives,
		},
		Mail: Mail{
			Transport: MailOutbox,
			From:      defaultMailFrom,
			SMTPPort:  defaultSMTPPort,
		},
		Pipeline: Pipeline{
			AttachmentLimitMiB:          defaultAttachmentLimitMiB,
			LinkTTLSeconds:              defaultLinkTTLSeconds,
			CacheHitPolicy:              CacheHitRefresh,
			JobTimeoutSeconds:           defaultJobTimeoutSeconds,
			FailureReportTimeoutSeconds: defaultFailureReportTimeoutSeconds,
		},
		Transcoder: Transcoder{
			FFmpegBinary: defaultFFmpegBinary,
		},
		Worker: Worker{
			Concurrency:         defaultWorkerConcurrency,
			PollIntervalSeconds: defaultPollIntervalSeconds,
		},
		API: API{
			Bind:               defaultAPIBind,
			ReadLinkTTLSeconds: defaultReadLinkTTLSeconds,
		},
		Alerts: Alerts{
			RequestTimeout: defaultAlertRequestTimeout,
			JobFailures:    false,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
