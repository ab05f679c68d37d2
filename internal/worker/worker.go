package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"audiodrop/internal/config"
	"audiodrop/internal/job"
	"audiodrop/internal/logging"
	"audiodrop/internal/pipeline"
	"audiodrop/internal/queue"
	"audiodrop/internal/services"
)

// LockFileName is the single-instance lock created in the data directory.
const LockFileName = "worker.lock"

// Processor runs one decoded job.
type Processor interface {
	Process(ctx context.Context, j job.Job) pipeline.Result
}

// Options controls consumer behavior.
type Options struct {
	Concurrency  int
	PollInterval time.Duration
	Visibility   time.Duration
	JobTimeout   time.Duration
	// LockPath enables the single-instance lock when set.
	LockPath string
}

// OptionsFromConfig derives worker options from cfg. The lock is only taken
// for the local sqlite queue.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.PollInterval(),
		Visibility:   cfg.VisibilityTimeout(),
		JobTimeout:   cfg.JobTimeout(),
	}
	if cfg.Queue.Backend == config.QueueSQLite {
		opts.LockPath = filepath.Join(cfg.Paths.DataDir, LockFileName)
	}
	return opts
}

// Worker drains a queue into a Processor.
type Worker struct {
	queue     queue.Queue
	processor Processor
	logger    *slog.Logger
	opts      Options
	lock      *flock.Flock
}

// New constructs a Worker.
func New(q queue.Queue, p Processor, logger *slog.Logger, opts Options) (*Worker, error) {
	if q == nil {
		return nil, errors.New("worker: queue is required")
	}
	if p == nil {
		return nil, errors.New("worker: processor is required")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.Visibility <= 0 {
		opts.Visibility = 15 * time.Minute
	}
	if opts.JobTimeout <= 0 || opts.JobTimeout >= opts.Visibility {
		opts.JobTimeout = opts.Visibility - opts.Visibility/15
	}
	w := &Worker{
		queue:     q,
		processor: p,
		logger:    logging.NewComponentLogger(logger, "worker"),
		opts:      opts,
	}
	if opts.LockPath != "" {
		w.lock = flock.New(opts.LockPath)
	}
	return w, nil
}

// Run consumes until ctx is cancelled and in-flight jobs have finished.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.acquire(); err != nil {
		return err
	}
	defer w.release()

	w.logger.Info("worker started",
		logging.String(logging.FieldEventType, "worker_start"),
		logging.Int("concurrency", w.opts.Concurrency),
		logging.Duration("job_timeout", w.opts.JobTimeout),
		logging.Duration("visibility_timeout", w.opts.Visibility),
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := range w.opts.Concurrency {
		g.Go(func() error {
			return w.loop(gctx, i)
		})
	}
	err := g.Wait()
	w.logger.Info("worker stopped", logging.String(logging.FieldEventType, "worker_stop"))
	return err
}

// Drain processes messages until a receive comes back empty and returns the
// number of messages handled.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	if err := w.acquire(); err != nil {
		return 0, err
	}
	defer w.release()

	handled := 0
	for {
		if err := ctx.Err(); err != nil {
			return handled, err
		}
		msgs, err := w.queue.Receive(ctx, w.opts.Concurrency, w.opts.Visibility)
		if err != nil {
			return handled, fmt.Errorf("receive: %w", err)
		}
		if len(msgs) == 0 {
			return handled, nil
		}
		g := new(errgroup.Group)
		g.SetLimit(w.opts.Concurrency)
		for _, msg := range msgs {
			g.Go(func() error {
				w.handle(ctx, msg)
				return nil
			})
		}
		_ = g.Wait()
		handled += len(msgs)
	}
}

func (w *Worker) loop(ctx context.Context, slot int) error {
	logger := w.logger.With(logging.Int("slot", slot))
	for {
		if ctx.Err() != nil {
			return nil
		}
		msgs, err := w.queue.Receive(ctx, 1, w.opts.Visibility)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.WarnWithContext(logger, "queue receive failed", "queue_receive_failed",
				logging.String(logging.FieldImpact, "polling paused until next interval"),
				logging.Error(err),
			)
			if !sleep(ctx, w.opts.PollInterval) {
				return nil
			}
			continue
		}
		if len(msgs) == 0 {
			if !sleep(ctx, w.opts.PollInterval) {
				return nil
			}
			continue
		}
		for _, msg := range msgs {
			w.handle(ctx, msg)
		}
	}
}

// handle processes one message and acks it.
func (w *Worker) handle(ctx context.Context, msg queue.Message) {
	// Shutdown must not cut a job short; the job budget bounds it instead.
	ctx = services.WithJobID(context.WithoutCancel(ctx), msg.ID)
	logger := logging.WithContext(ctx, w.logger).With(logging.Int("receive_count", msg.ReceiveCount))

	j, err := job.Decode(msg.Body)
	if err != nil {
		logging.ErrorWithContext(logger, "dropping malformed job", "job_malformed",
			logging.String(logging.FieldErrorHint, "producer sent a payload without url, title, and email"),
			logging.Int("body_bytes", len(msg.Body)),
			logging.Error(err),
		)
		w.ack(ctx, logger, msg)
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.opts.JobTimeout)
	res := w.processor.Process(jobCtx, j)
	cancel()

	logger.Debug("job processed",
		logging.String(logging.FieldArtifactKey, res.Key),
		logging.String(logging.FieldOutcome, string(res.Outcome)),
	)
	w.ack(ctx, logger, msg)
}

func (w *Worker) ack(ctx context.Context, logger *slog.Logger, msg queue.Message) {
	if err := w.queue.Ack(ctx, msg); err != nil {
		if errors.Is(err, queue.ErrStaleReceipt) {
			logging.WarnWithContext(logger, "ack rejected for stale receipt", "ack_stale",
				logging.String(logging.FieldImpact, "message was redelivered and may be processed again"),
				logging.String(logging.FieldErrorHint, "raise queue.visibility_timeout_seconds above the job budget"),
				logging.Error(err),
			)
			return
		}
		logging.ErrorWithContext(logger, "ack failed", "ack_failed", logging.Error(err))
	}
}

func (w *Worker) acquire() error {
	if w.lock == nil {
		return nil
	}
	if dir := filepath.Dir(w.opts.LockPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create lock directory: %w", err)
		}
	}
	ok, err := w.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another audiodrop worker is already running for this data directory")
	}
	return nil
}

func (w *Worker) release() {
	if w.lock == nil {
		return
	}
	if err := w.lock.Unlock(); err != nil {
		w.logger.Warn("failed to release worker lock", logging.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
