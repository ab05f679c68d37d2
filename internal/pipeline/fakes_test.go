package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"audiodrop/internal/fetch"
	"audiodrop/internal/mailer"
	"audiodrop/internal/storage"
)

type write struct {
	Key         string
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	writes    []write
	calls     []string
	existsErr error
	readErr   error
	writeErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) record(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	s.record("exists")
	if s.existsErr != nil {
		return false, s.existsErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *fakeStore) Read(_ context.Context, key string) ([]byte, error) {
	s.record("read")
	if s.readErr != nil {
		return nil, s.readErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (s *fakeStore) Write(_ context.Context, key string, data []byte, contentType string, metadata map[string]string) error {
	s.record("write")
	if s.writeErr != nil {
		return s.writeErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	s.writes = append(s.writes, write{Key: key, Data: data, ContentType: contentType, Metadata: metadata})
	return nil
}

func (s *fakeStore) SignedLink(_ context.Context, key string, ttl time.Duration) (string, error) {
	s.record("link")
	return fmt.Sprintf("https://files.test/%s?ttl=%d", key, int(ttl.Seconds())), nil
}

type fakeFetcher struct {
	body  []byte
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(context.Context, string) (fetch.Result, error) {
	f.calls++
	if f.err != nil {
		return fetch.Result{}, f.err
	}
	return fetch.Result{Body: f.body, ContentType: "video/mp4"}, nil
}

type fakeTranscoder struct {
	out   []byte
	err   error
	calls int
	block bool
}

func (f *fakeTranscoder) Transcode(ctx context.Context, src []byte) ([]byte, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return nil, fmt.Errorf("ffmpeg interrupted: %w", ctx.Err())
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.out != nil {
		return f.out, nil
	}
	return []byte("mp3:" + fmt.Sprint(len(src))), nil
}

type delivery struct {
	Kind       string
	To         string
	Title      string
	SourceURL  string
	Link       string
	ValidFor   time.Duration
	Message    string
	Attachment mailer.Attachment
	CtxErr     error
}

type fakeMailer struct {
	mu         sync.Mutex
	deliveries []delivery
	attachErr  error
	failErr    error
}

func (m *fakeMailer) add(d delivery) {
	m.mu.Lock()
	m.deliveries = append(m.deliveries, d)
	m.mu.Unlock()
}

func (m *fakeMailer) DeliverAttachment(ctx context.Context, to, title, sourceURL string, att mailer.Attachment) error {
	m.add(delivery{Kind: "attachment", To: to, Title: title, SourceURL: sourceURL, Attachment: att, CtxErr: ctx.Err()})
	return m.attachErr
}

func (m *fakeMailer) DeliverLink(ctx context.Context, to, title, link string, validFor time.Duration) error {
	m.add(delivery{Kind: "link", To: to, Title: title, Link: link, ValidFor: validFor, CtxErr: ctx.Err()})
	return nil
}

func (m *fakeMailer) DeliverFailure(ctx context.Context, to, title, sourceURL, message string) error {
	m.add(delivery{Kind: "failure", To: to, Title: title, SourceURL: sourceURL, Message: message, CtxErr: ctx.Err()})
	return m.failErr
}

func (m *fakeMailer) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.deliveries))
	for _, d := range m.deliveries {
		out = append(out, d.Kind)
	}
	return out
}

type fakeAlerts struct {
	jobFailed    []error
	reportFailed []error
}

func (a *fakeAlerts) NotifyJobFailed(_ context.Context, _, _ string, err error) error {
	a.jobFailed = append(a.jobFailed, err)
	return nil
}

func (a *fakeAlerts) NotifyFailureReportFailed(_ context.Context, _, _ string, _ error, reportErr error) error {
	a.reportFailed = append(a.reportFailed, reportErr)
	return nil
}

func (a *fakeAlerts) TestNotification(context.Context) error { return errors.New("unused") }
