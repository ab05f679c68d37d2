package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"audiodrop/internal/config"
	"audiodrop/internal/fetch"
	"audiodrop/internal/logging"
	"audiodrop/internal/mailer"
	"audiodrop/internal/notifications"
	"audiodrop/internal/pipeline"
	"audiodrop/internal/queue"
	"audiodrop/internal/storage"
	"audiodrop/internal/transcode"
)

// App holds the collaborators built from one configuration.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    storage.Store
	Queue    queue.Queue
	Mailer   *mailer.Client
	Alerts   notifications.Service
	Pipeline *pipeline.Pipeline

	aws *aws.Config
}

// New builds every collaborator. Callers Close the App when done.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	app := &App{Config: cfg, Logger: logger}

	store, err := app.openStore(ctx)
	if err != nil {
		return nil, err
	}
	app.Store = store

	q, err := app.openQueue(ctx)
	if err != nil {
		return nil, err
	}
	app.Queue = q

	transport, err := app.openTransport(ctx)
	if err != nil {
		_ = q.Close()
		return nil, err
	}
	app.Mailer = mailer.NewClient(cfg.Mail.From, transport)
	app.Alerts = notifications.NewService(cfg)

	p, err := pipeline.New(pipeline.Dependencies{
		Store:      store,
		Fetcher:    fetch.NewHTTPFetcher(fetch.WithTimeout(cfg.FetchTimeout()), fetch.WithMaxBytes(cfg.MaxSourceBytes())),
		Transcoder: transcode.NewFFmpeg(cfg.FFmpegBinary()),
		Mailer:     app.Mailer,
		Alerts:     app.Alerts,
		Logger:     logger,
	}, pipeline.OptionsFromConfig(cfg))
	if err != nil {
		_ = q.Close()
		return nil, err
	}
	app.Pipeline = p

	logger.Debug("application wired",
		logging.String("storage_backend", cfg.Storage.Backend),
		logging.String("queue_backend", cfg.Queue.Backend),
		logging.String("mail_transport", cfg.Mail.Transport),
		logging.String("cache_hit_policy", cfg.Pipeline.CacheHitPolicy),
	)
	return app, nil
}

// Close releases the queue connection.
func (a *App) Close() error {
	if a == nil || a.Queue == nil {
		return nil
	}
	return a.Queue.Close()
}

// OpenQueue builds only the queue, for commands that do not process jobs.
func OpenQueue(ctx context.Context, cfg *config.Config) (queue.Queue, error) {
	app := &App{Config: cfg}
	return app.openQueue(ctx)
}

// OpenStore builds only the artifact store.
func OpenStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	app := &App{Config: cfg}
	return app.openStore(ctx)
}

func (a *App) openStore(ctx context.Context) (storage.Store, error) {
	cfg := a.Config
	switch cfg.Storage.Backend {
	case config.StorageFilesystem:
		return storage.NewFileStore(cfg.Storage.Dir, cfg.Storage.PublicBaseURL, cfg.Storage.SigningSecret)
	case config.StorageS3:
		awsCfg, err := a.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		return storage.NewS3Store(awsCfg, storage.S3Options{
			Bucket:       cfg.Storage.Bucket,
			Endpoint:     cfg.AWS.Endpoint,
			UsePathStyle: cfg.Storage.UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}
}

func (a *App) openQueue(ctx context.Context) (queue.Queue, error) {
	cfg := a.Config
	switch cfg.Queue.Backend {
	case config.QueueSQLite:
		return queue.OpenSQLite(cfg.Queue.Path, cfg.Queue.MaxReceives)
	case config.QueueSQS:
		awsCfg, err := a.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		return queue.NewSQSQueue(awsCfg, queue.SQSOptions{
			URL:             cfg.Queue.URL,
			Endpoint:        cfg.AWS.Endpoint,
			WaitTimeSeconds: cfg.Queue.WaitTimeSeconds,
		})
	default:
		return nil, fmt.Errorf("unsupported queue backend %q", cfg.Queue.Backend)
	}
}

func (a *App) openTransport(ctx context.Context) (mailer.Transport, error) {
	cfg := a.Config
	switch cfg.Mail.Transport {
	case config.MailOutbox:
		return mailer.NewOutboxTransport(cfg.Mail.OutboxDir)
	case config.MailSMTP:
		return mailer.NewSMTPTransport(mailer.SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Mail.SMTPUsername,
			Password: cfg.Mail.SMTPPassword,
		}), nil
	case config.MailSES:
		awsCfg, err := a.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		return mailer.NewSESTransport(awsCfg, cfg.AWS.Endpoint), nil
	default:
		return nil, fmt.Errorf("unsupported mail transport %q", cfg.Mail.Transport)
	}
}

// awsConfig loads the shared SDK configuration once.
func (a *App) awsConfig(ctx context.Context) (aws.Config, error) {
	if a.aws != nil {
		return *a.aws, nil
	}
	cfg, err := LoadAWSConfig(ctx, a.Config)
	if err != nil {
		return aws.Config{}, err
	}
	a.aws = &cfg
	return cfg, nil
}

// LoadAWSConfig resolves credentials and region from the environment and
// shared config files, with the aws section of cfg taking precedence.
func LoadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region := strings.TrimSpace(cfg.AWS.Region); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if profile := strings.TrimSpace(cfg.AWS.Profile); profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}
