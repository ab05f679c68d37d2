package api

// EnqueueRequest is the intake body. It mirrors the queue payload.
type EnqueueRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Email string `json:"email"`
}

// EnqueueResponse acknowledges an accepted job.
type EnqueueResponse struct {
	Body string `json:"body"`
	ID   string `json:"id"`
	Key  string `json:"key"`
}

// ReadResponse carries a time-limited download link.
type ReadResponse struct {
	Success     bool   `json:"success"`
	DownloadURL string `json:"downloadUrl"`
}

// ErrorResponse is returned for every non-2xx status.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status string `json:"status"`
}
