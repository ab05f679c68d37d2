package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
)

// ContentType is the media type of every stored artifact.
const ContentType = "audio/mpeg"

const artifactExt = ".mp3"

// Job is one queued request to fetch, transcode, and deliver a resource.
type Job struct {
	SourceURL   string `json:"url"`
	Title       string `json:"title"`
	Destination string `json:"email"`
}

// Outcome is the terminal disposition of a job.
type Outcome string

const (
	OutcomeAttached Outcome = "attached"
	OutcomeLinked   Outcome = "linked"
	OutcomeFailed   Outcome = "failed"
)

// Metadata is the provenance stored alongside an artifact.
type Metadata struct {
	Title       string
	OriginalURL string
	SentTo      string
}

// Map renders metadata with the keys used by every store backend.
func (m Metadata) Map() map[string]string {
	return map[string]string{
		"title":       m.Title,
		"originalUrl": m.OriginalURL,
		"sentTo":      m.SentTo,
	}
}

// MetadataFromMap is the inverse of Map. Missing keys stay empty.
func MetadataFromMap(values map[string]string) Metadata {
	return Metadata{
		Title:       values["title"],
		OriginalURL: values["originalUrl"],
		SentTo:      values["sentTo"],
	}
}

// Metadata returns the provenance recorded when this job's artifact is persisted.
func (j Job) Metadata() Metadata {
	return Metadata{Title: j.Title, OriginalURL: j.SourceURL, SentTo: j.Destination}
}

// Key returns the artifact key for this job.
func (j Job) Key() string {
	return ArtifactKey(j.Title)
}

// ArtifactKey derives the store key for a title.
func ArtifactKey(title string) string {
	return Sanitize(title) + artifactExt
}

// Sanitize replaces every rune outside [A-Za-z0-9.-] with an underscore.
// Multi-byte runes become a single underscore.
func Sanitize(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		if isKeyRune(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}

func isKeyRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.' || r == '-':
		return true
	}
	return false
}

// ValidKey reports whether key could have been produced by ArtifactKey.
func ValidKey(key string) bool {
	if !strings.HasSuffix(key, artifactExt) || key == artifactExt {
		return false
	}
	return Sanitize(key) == key
}

// ValidationError lists the fields of a job that failed intake checks.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, name := range []string{"url", "title", "email"} {
		if msg, ok := e.Fields[name]; ok {
			parts = append(parts, name+": "+msg)
		}
	}
	return "invalid job: " + strings.Join(parts, "; ")
}

// Validate applies the intake checks: an absolute http(s) URL, a non-empty
// title, and a parseable destination address.
func (j Job) Validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(j.SourceURL) == "" {
		fields["url"] = "required"
	} else if parsed, err := url.Parse(j.SourceURL); err != nil || parsed.Host == "" ||
		(parsed.Scheme != "http" && parsed.Scheme != "https") {
		fields["url"] = "must be an absolute http or https URL"
	}
	if strings.TrimSpace(j.Title) == "" {
		fields["title"] = "required"
	}
	if strings.TrimSpace(j.Destination) == "" {
		fields["email"] = "required"
	} else if _, err := mail.ParseAddress(j.Destination); err != nil {
		fields["email"] = "must be a valid address"
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// ErrMalformed marks payloads that can never be processed.
var ErrMalformed = errors.New("malformed job payload")

// Decode parses a queue payload. Only structural problems are rejected; the
// pipeline trusts the strings it receives.
func Decode(body []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(body, &j); err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if j.SourceURL == "" || j.Title == "" || j.Destination == "" {
		return Job{}, fmt.Errorf("%w: url, title, and email are required", ErrMalformed)
	}
	return j, nil
}

// Encode renders the queue payload.
func Encode(j Job) ([]byte, error) {
	body, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}
	return body, nil
}
