package testsupport

import (
	"testing"

	"audiodrop/internal/config"
	"audiodrop/internal/queue"
)

// MustOpenQueue opens the sqlite queue named by cfg and registers cleanup.
func MustOpenQueue(t testing.TB, cfg *config.Config) *queue.SQLiteQueue {
	t.Helper()

	q, err := queue.OpenSQLite(cfg.Queue.Path, cfg.Queue.MaxReceives)
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	t.Cleanup(func() {
		_ = q.Close()
	})
	return q
}
