package pipeline

import (
	"context"
	"log/slog"

	"audiodrop/internal/job"
	"audiodrop/internal/logging"
	"audiodrop/internal/services"
)

// fail records err on res and sends the single failure report.
func (p *Pipeline) fail(ctx context.Context, logger *slog.Logger, j job.Job, res *Result, err error) {
	res.Outcome = job.OutcomeFailed
	res.Err = err
	details := services.Details(err)
	message := services.UserMessage(err)

	logging.ErrorWithContext(logger, "job failed", "job_failed",
		logging.String(logging.FieldOutcome, string(job.OutcomeFailed)),
		logging.String(logging.FieldStage, details.Stage),
		logging.String("error_kind", string(details.Kind)),
		logging.String(logging.FieldErrorHint, hintFor(details.Kind)),
		logging.Error(err),
	)

	// The job context may already be past its deadline.
	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.FailureReportTimeout)
	defer cancel()
	reportCtx = services.WithStage(reportCtx, StageReport)

	if reportErr := p.mailer.DeliverFailure(reportCtx, j.Destination, j.Title, j.SourceURL, message); reportErr != nil {
		logging.ErrorWithContext(logger, "failure report not delivered", "failure_report_failed",
			logging.Alert("failure_report_failed"),
			logging.String(logging.FieldImpact, "requester was not told the job failed"),
			logging.Error(reportErr),
		)
		if alertErr := p.alerts.NotifyFailureReportFailed(reportCtx, j.Title, j.Destination, err, reportErr); alertErr != nil {
			logger.Warn("operator alert failed", logging.Error(alertErr))
		}
		return
	}

	if alertErr := p.alerts.NotifyJobFailed(reportCtx, j.Title, j.Destination, err); alertErr != nil {
		logger.Warn("operator alert failed", logging.Error(alertErr))
	}
}

// reportRefreshFailure surfaces a failed post-delivery refresh to operators.
func (p *Pipeline) reportRefreshFailure(ctx context.Context, logger *slog.Logger, j job.Job, err error) {
	logging.WarnWithContext(logger, "cache refresh failed", "cache_refresh_failed",
		logging.String(logging.FieldImpact, "stored artifact was not refreshed"),
		logging.String(logging.FieldErrorHint, hintFor(services.Details(err).Kind)),
		logging.Error(err),
	)
	alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.FailureReportTimeout)
	defer cancel()
	if alertErr := p.alerts.NotifyJobFailed(alertCtx, j.Title, j.Destination, err); alertErr != nil {
		logger.Warn("operator alert failed", logging.Error(alertErr))
	}
}

func hintFor(kind services.ErrorKind) string {
	switch kind {
	case services.KindFetch:
		return "check that the source URL is reachable"
	case services.KindTranscode:
		return "check ffmpeg output and that the source contains audio"
	case services.KindStore:
		return "check artifact store credentials and availability"
	case services.KindNotify:
		return "check mail transport configuration"
	default:
		return "check logs for details"
	}
}
