package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"audiodrop/internal/config"
)

const userAgent = "audiodrop/0.1.0"

// Service defines the alert surface exposed to the pipeline and CLI.
type Service interface {
	NotifyJobFailed(ctx context.Context, title, destination string, err error) error
	NotifyFailureReportFailed(ctx context.Context, title, destination string, original, reportErr error) error
	TestNotification(ctx context.Context) error
}

// NewService builds an alert service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Alerts.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Alerts.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		jobFailures: cfg.Alerts.JobFailures,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	jobFailures bool
}

// NotifyJobFailed is only forwarded when alerts.job_failures is enabled; the
// requester already receives a failure email.
func (n *ntfyService) NotifyJobFailed(ctx context.Context, title, destination string, err error) error {
	if !n.jobFailures {
		return nil
	}
	data := payload{
		title:   "audiodrop - Job Failed",
		message: fmt.Sprintf("Job failed: %s\nRequester: %s\nError: %s", strings.TrimSpace(title), strings.TrimSpace(destination), errText(err)),
		tags:    []string{"audiodrop", "job", "failed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyFailureReportFailed(ctx context.Context, title, destination string, original, reportErr error) error {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Could not notify %s about a failed job.\n", strings.TrimSpace(destination))
	fmt.Fprintf(&builder, "Title: %s\n", strings.TrimSpace(title))
	fmt.Fprintf(&builder, "Job error: %s\n", errText(original))
	fmt.Fprintf(&builder, "Notify error: %s", errText(reportErr))
	data := payload{
		title:    "audiodrop - Failure Report Lost",
		message:  builder.String(),
		tags:     []string{"audiodrop", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "audiodrop - Test",
		message:  "Alert channel test",
		tags:     []string{"audiodrop", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func errText(err error) string {
	if err == nil {
		return "unknown"
	}
	return strings.TrimSpace(err.Error())
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyJobFailed(context.Context, string, string, error) error { return nil }
func (noopService) NotifyFailureReportFailed(context.Context, string, string, error, error) error {
	return nil
}
func (noopService) TestNotification(context.Context) error { return nil }
