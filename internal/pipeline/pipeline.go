package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"audiodrop/internal/config"
	"audiodrop/internal/fetch"
	"audiodrop/internal/job"
	"audiodrop/internal/logging"
	"audiodrop/internal/mailer"
	"audiodrop/internal/notifications"
	"audiodrop/internal/services"
	"audiodrop/internal/storage"
	"audiodrop/internal/transcode"
)

// Stage names reported in logs and wrapped errors.
const (
	StageCheckCache = "check_cache"
	StageFetch      = "fetch"
	StageTranscode  = "transcode"
	StageDeliver    = "deliver"
	StagePersist    = "persist"
	StageReport     = "report_failure"
)

const (
	defaultAttachmentLimit      = 40 * 1024 * 1024
	defaultLinkTTL              = 24 * time.Hour
	defaultFailureReportTimeout = 30 * time.Second
)

// Options holds delivery policy.
type Options struct {
	// AttachmentLimit is the largest source size delivered as an attachment.
	AttachmentLimit      int64
	LinkTTL              time.Duration
	CachePolicy          string
	FailureReportTimeout time.Duration
}

// OptionsFromConfig derives Options from the pipeline section of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		AttachmentLimit:      cfg.AttachmentLimitBytes(),
		LinkTTL:              cfg.LinkTTL(),
		CachePolicy:          cfg.Pipeline.CacheHitPolicy,
		FailureReportTimeout: cfg.FailureReportTimeout(),
	}
}

// Dependencies are the collaborators a Pipeline drives.
type Dependencies struct {
	Store      storage.Store
	Fetcher    fetch.Fetcher
	Transcoder transcode.Transcoder
	Mailer     mailer.Mailer
	Alerts     notifications.Service
	Logger     *slog.Logger
}

// Result summarizes one Process call.
type Result struct {
	Key     string
	Outcome job.Outcome
	// CacheHit reports that the key existed before the job ran.
	CacheHit bool
	// CachedDelivery reports that the requester received the stored artifact.
	CachedDelivery bool
	SourceBytes    int64
	ArtifactBytes  int64
	// Err is the failure reported to the requester, if any.
	Err error
	// RefreshErr is a failure of the post-delivery refresh after a cache hit.
	// The requester is not told about it.
	RefreshErr error
}

// Pipeline processes jobs. It is safe for concurrent use when its
// collaborators are.
type Pipeline struct {
	store      storage.Store
	fetcher    fetch.Fetcher
	transcoder transcode.Transcoder
	mailer     mailer.Mailer
	alerts     notifications.Service
	logger     *slog.Logger
	opts       Options
}

// New constructs a Pipeline. Missing options take their documented defaults.
func New(deps Dependencies, opts Options) (*Pipeline, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("pipeline: store is required")
	case deps.Fetcher == nil:
		return nil, errors.New("pipeline: fetcher is required")
	case deps.Transcoder == nil:
		return nil, errors.New("pipeline: transcoder is required")
	case deps.Mailer == nil:
		return nil, errors.New("pipeline: mailer is required")
	}
	if opts.AttachmentLimit <= 0 {
		opts.AttachmentLimit = defaultAttachmentLimit
	}
	if opts.LinkTTL <= 0 {
		opts.LinkTTL = defaultLinkTTL
	}
	if opts.CachePolicy == "" {
		opts.CachePolicy = config.CacheHitRefresh
	}
	if opts.FailureReportTimeout <= 0 {
		opts.FailureReportTimeout = defaultFailureReportTimeout
	}
	alerts := deps.Alerts
	if alerts == nil {
		alerts = notifications.NewService(nil)
	}
	return &Pipeline{
		store:      deps.Store,
		fetcher:    deps.Fetcher,
		transcoder: deps.Transcoder,
		mailer:     deps.Mailer,
		alerts:     alerts,
		logger:     logging.NewComponentLogger(deps.Logger, "pipeline"),
		opts:       opts,
	}, nil
}

// Process runs j to completion. The returned Result always carries the
// outcome; failures are reported to the requester, never to the caller.
func (p *Pipeline) Process(ctx context.Context, j job.Job) Result {
	key := j.Key()
	res := Result{Key: key}
	logger := logging.WithContext(ctx, p.logger).With(logging.String(logging.FieldArtifactKey, key))
	start := time.Now()

	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("title", j.Title),
		logging.String("source_url", j.SourceURL),
	)

	hit, err := p.deliverCached(ctx, j, key, &res)
	if err != nil {
		p.fail(ctx, logger, j, &res, err)
		return res
	}

	if hit {
		if p.opts.CachePolicy == config.CacheHitTerminal {
			p.logDone(logger, res, start)
			return res
		}
		if err := p.refresh(ctx, j, key, &res); err != nil {
			res.RefreshErr = err
			p.reportRefreshFailure(ctx, logger, j, err)
		}
		p.logDone(logger, res, start)
		return res
	}

	if err := p.run(ctx, j, key, &res); err != nil {
		p.fail(ctx, logger, j, &res, err)
		return res
	}
	p.logDone(logger, res, start)
	return res
}

// deliverCached sends the stored artifact when key exists.
func (p *Pipeline) deliverCached(ctx context.Context, j job.Job, key string, res *Result) (bool, error) {
	ctx = services.WithStage(ctx, StageCheckCache)
	exists, err := p.store.Exists(ctx, key)
	if err != nil {
		return false, services.Wrap(services.ErrStore, StageCheckCache, "check cache", "", err)
	}
	if !exists {
		return false, nil
	}
	res.CacheHit = true

	data, err := p.store.Read(ctx, key)
	if err != nil {
		return true, services.Wrap(services.ErrStore, StageCheckCache, "read cached artifact", "", err)
	}
	res.ArtifactBytes = int64(len(data))

	if err := p.mailer.DeliverAttachment(ctx, j.Destination, j.Title, j.SourceURL, mailer.EncodeAttachment(key, job.ContentType, data)); err != nil {
		return true, services.Wrap(services.ErrNotify, StageDeliver, "deliver cached attachment", "", err)
	}
	res.Outcome = job.OutcomeAttached
	res.CachedDelivery = true
	return true, nil
}

// run is the cache-miss path: fetch, transcode, deliver and persist.
func (p *Pipeline) run(ctx context.Context, j job.Job, key string, res *Result) error {
	source, err := p.fetchSource(ctx, j)
	if err != nil {
		return err
	}
	res.SourceBytes = int64(len(source))
	linked := res.SourceBytes > p.opts.AttachmentLimit

	mp3, err := p.transcodeSource(ctx, source)
	if err != nil {
		return err
	}
	res.ArtifactBytes = int64(len(mp3))

	if linked {
		if err := p.persist(ctx, j, key, mp3); err != nil {
			return err
		}
		if err := p.deliverLink(ctx, j, key); err != nil {
			return err
		}
		res.Outcome = job.OutcomeLinked
		return nil
	}

	deliverCtx := services.WithStage(ctx, StageDeliver)
	if err := p.mailer.DeliverAttachment(deliverCtx, j.Destination, j.Title, j.SourceURL, mailer.EncodeAttachment(key, job.ContentType, mp3)); err != nil {
		return services.Wrap(services.ErrNotify, StageDeliver, "deliver attachment", "", err)
	}
	res.Outcome = job.OutcomeAttached
	return p.persist(ctx, j, key, mp3)
}

// refresh re-derives the artifact after a cached delivery. It never contacts
// the requester.
func (p *Pipeline) refresh(ctx context.Context, j job.Job, key string, res *Result) error {
	source, err := p.fetchSource(ctx, j)
	if err != nil {
		return err
	}
	res.SourceBytes = int64(len(source))
	mp3, err := p.transcodeSource(ctx, source)
	if err != nil {
		return err
	}
	return p.persist(ctx, j, key, mp3)
}

func (p *Pipeline) fetchSource(ctx context.Context, j job.Job) ([]byte, error) {
	ctx = services.WithStage(ctx, StageFetch)
	result, err := p.fetcher.Fetch(ctx, j.SourceURL)
	if err != nil {
		return nil, services.Wrap(services.ErrFetch, StageFetch, "download source", "", err)
	}
	return result.Body, nil
}

func (p *Pipeline) transcodeSource(ctx context.Context, source []byte) ([]byte, error) {
	ctx = services.WithStage(ctx, StageTranscode)
	mp3, err := p.transcoder.Transcode(ctx, source)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscode, StageTranscode, "transcode to mp3", "", err)
	}
	return mp3, nil
}

func (p *Pipeline) persist(ctx context.Context, j job.Job, key string, mp3 []byte) error {
	ctx = services.WithStage(ctx, StagePersist)
	if err := p.store.Write(ctx, key, mp3, job.ContentType, j.Metadata().Map()); err != nil {
		return services.Wrap(services.ErrStore, StagePersist, "store artifact", "", err)
	}
	return nil
}

func (p *Pipeline) deliverLink(ctx context.Context, j job.Job, key string) error {
	ctx = services.WithStage(ctx, StageDeliver)
	link, err := p.store.SignedLink(ctx, key, p.opts.LinkTTL)
	if err != nil {
		return services.Wrap(services.ErrStore, StageDeliver, "sign download link", "", err)
	}
	if err := p.mailer.DeliverLink(ctx, j.Destination, j.Title, link, p.opts.LinkTTL); err != nil {
		return services.Wrap(services.ErrNotify, StageDeliver, "deliver link", "", err)
	}
	return nil
}

func (p *Pipeline) logDone(logger *slog.Logger, res Result, start time.Time) {
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.String(logging.FieldOutcome, string(res.Outcome)),
		logging.Bool("cache_hit", res.CacheHit),
		logging.Int64("source_bytes", res.SourceBytes),
		logging.Int64("artifact_bytes", res.ArtifactBytes),
		logging.Duration("duration", time.Since(start)),
	)
}

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s %s: %v", r.Outcome, r.Key, r.Err)
	}
	return fmt.Sprintf("%s %s", r.Outcome, r.Key)
}
