package queue

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	stateReady = "ready"
	stateDead  = "dead"
)

// SQLiteQueue is a single-host queue backed by SQLite.
type SQLiteQueue struct {
	db          *sql.DB
	path        string
	maxReceives int
	now         func() time.Time
}

// OpenSQLite initializes or connects to the queue database at path. Messages
// received maxReceives times without an ack are dead-lettered on their next
// receive attempt.
func OpenSQLite(path string, maxReceives int) (*SQLiteQueue, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure queue directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas are per connection; a single connection keeps them applied.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if maxReceives <= 0 {
		maxReceives = 5
	}
	q := &SQLiteQueue{db: db, path: path, maxReceives: maxReceives, now: time.Now}
	if err := q.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return q, nil
}

// Close closes the underlying database connection.
func (q *SQLiteQueue) Close() error {
	if q == nil || q.db == nil {
		return nil
	}
	return q.db.Close()
}

// Path returns the database file location.
func (q *SQLiteQueue) Path() string {
	return q.path
}

func (q *SQLiteQueue) Send(ctx context.Context, body []byte) (string, error) {
	id := uuid.NewString()
	now := q.now().UnixMilli()
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO messages (id, body, state, visible_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, body, stateReady, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("insert message: %w", err)
	}
	return id, nil
}

// Receive claims up to limit visible messages and hides them for visibility.
// The claim is one UPDATE ... RETURNING statement, so concurrent receivers
// never share a message.
func (q *SQLiteQueue) Receive(ctx context.Context, limit int, visibility time.Duration) ([]Message, error) {
	if limit <= 0 {
		limit = 1
	}
	now := q.now()
	nowMillis := now.UnixMilli()

	if _, err := q.db.ExecContext(ctx,
		`UPDATE messages SET state = ?, receipt = NULL, dead_at = ?
         WHERE state = ? AND visible_at <= ? AND receive_count >= ?`,
		stateDead, nowMillis, stateReady, nowMillis, q.maxReceives,
	); err != nil {
		return nil, fmt.Errorf("dead-letter messages: %w", err)
	}

	rows, err := q.db.QueryContext(ctx,
		`UPDATE messages
         SET receipt = lower(hex(randomblob(16))),
             receive_count = receive_count + 1,
             visible_at = ?
         WHERE seq IN (
             SELECT seq FROM messages
             WHERE state = ? AND visible_at <= ?
             ORDER BY seq
             LIMIT ?
         )
         RETURNING seq, id, body, receipt, receive_count, created_at`,
		now.Add(visibility).UnixMilli(), stateReady, nowMillis, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim messages: %w", err)
	}
	defer rows.Close()

	type claimed struct {
		seq int64
		msg Message
	}
	var out []claimed
	for rows.Next() {
		var c claimed
		var created int64
		if err := rows.Scan(&c.seq, &c.msg.ID, &c.msg.Body, &c.msg.Receipt, &c.msg.ReceiveCount, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		c.msg.SentAt = time.UnixMilli(created).UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	messages := make([]Message, len(out))
	for i, c := range out {
		messages[i] = c.msg
	}
	return messages, nil
}

// Ack deletes a message if msg.Receipt still owns it.
func (q *SQLiteQueue) Ack(ctx context.Context, msg Message) error {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM messages WHERE id = ? AND receipt = ? AND state = ?`,
		msg.ID, msg.Receipt, stateReady,
	)
	if err != nil {
		return fmt.Errorf("ack message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ack rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("ack %s: %w", msg.ID, ErrStaleReceipt)
	}
	return nil
}

func (q *SQLiteQueue) Stats(ctx context.Context) (Stats, error) {
	now := q.now().UnixMilli()
	var stats Stats
	err := q.db.QueryRowContext(ctx,
		`SELECT
             COALESCE(SUM(CASE WHEN state = ? AND visible_at <= ? THEN 1 ELSE 0 END), 0),
             COALESCE(SUM(CASE WHEN state = ? AND visible_at > ? THEN 1 ELSE 0 END), 0),
             COALESCE(SUM(CASE WHEN state = ? THEN 1 ELSE 0 END), 0)
         FROM messages`,
		stateReady, now, stateReady, now, stateDead,
	).Scan(&stats.Ready, &stats.InFlight, &stats.Dead)
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return stats, nil
}

// Entry is an administrative view of a stored message.
type Entry struct {
	ID           string
	State        string
	ReceiveCount int
	VisibleAt    time.Time
	CreatedAt    time.Time
	Body         []byte
}

// InFlight reports whether the entry is currently hidden by a receive.
func (e Entry) InFlight(now time.Time) bool {
	return e.State == stateReady && e.VisibleAt.After(now)
}

// List returns messages in arrival order. An empty state lists everything;
// otherwise state is "ready" or "dead".
func (q *SQLiteQueue) List(ctx context.Context, state string) ([]Entry, error) {
	query := `SELECT id, state, receive_count, visible_at, created_at, body FROM messages`
	var args []any
	state = strings.TrimSpace(state)
	if state != "" {
		if state != stateReady && state != stateDead {
			return nil, fmt.Errorf("unknown state %q", state)
		}
		query += ` WHERE state = ?`
		args = append(args, state)
	}
	query += ` ORDER BY seq`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var visible, created int64
		if err := rows.Scan(&e.ID, &e.State, &e.ReceiveCount, &visible, &created, &e.Body); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		e.VisibleAt = time.UnixMilli(visible).UTC()
		e.CreatedAt = time.UnixMilli(created).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return entries, nil
}

// Redrive returns dead messages to the ready state with a fresh receive count.
func (q *SQLiteQueue) Redrive(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE messages SET state = ?, receive_count = 0, receipt = NULL, visible_at = ?, dead_at = NULL WHERE state = ?`,
		stateReady, q.now().UnixMilli(), stateDead,
	)
	if err != nil {
		return 0, fmt.Errorf("redrive: %w", err)
	}
	return res.RowsAffected()
}

// Purge deletes dead messages, or every message when all is true.
func (q *SQLiteQueue) Purge(ctx context.Context, all bool) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if all {
		res, err = q.db.ExecContext(ctx, `DELETE FROM messages`)
	} else {
		res, err = q.db.ExecContext(ctx, `DELETE FROM messages WHERE state = ?`, stateDead)
	}
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	return res.RowsAffected()
}
