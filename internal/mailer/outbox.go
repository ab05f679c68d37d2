package mailer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"audiodrop/internal/fileutil"
)

// OutboxTransport writes each message as an .eml file.
type OutboxTransport struct {
	dir string
	now func() time.Time
}

func NewOutboxTransport(dir string) (*OutboxTransport, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create outbox: %w", err)
	}
	return &OutboxTransport{dir: dir, now: time.Now}, nil
}

func (t *OutboxTransport) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := t.now()
	raw, err := BuildMIME(msg, now)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%s-%s.eml", now.UTC().Format("20060102T150405Z"), uuid.NewString()[:8])
	path := filepath.Join(t.dir, name)
	if err := fileutil.WriteAtomic(path, raw, 0o644); err != nil {
		return fmt.Errorf("write outbox message: %w", err)
	}
	return nil
}
