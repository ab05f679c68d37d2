package queue

import (
	"context"
	"errors"
	"time"
)

// ErrStaleReceipt is returned by Ack when the receipt no longer owns the
// message, usually because the visibility timeout lapsed and another receive
// claimed it.
var ErrStaleReceipt = errors.New("stale receipt")

// Message is one received delivery of a queued payload.
type Message struct {
	ID           string
	Body         []byte
	Receipt      string
	ReceiveCount int
	SentAt       time.Time
}

// Queue is the consumer and producer contract used by the worker and intake API.
type Queue interface {
	Send(ctx context.Context, body []byte) (string, error)
	Receive(ctx context.Context, limit int, visibility time.Duration) ([]Message, error)
	Ack(ctx context.Context, msg Message) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Stats summarizes queue depth.
type Stats struct {
	Ready    int64 `json:"ready"`
	InFlight int64 `json:"inFlight"`
	Dead     int64 `json:"dead"`
}
