package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/starford/workspaces-mcp/internal/events"
)

// ToolStat aggregates the calls of one tool.
type ToolStat struct {
	Tool       string    `json:"tool"`
	Calls      int64     `json:"calls"`
	Failures   int64     `json:"failures"`
	AvgMillis  float64   `json:"avgMillis"`
	LastCalled time.Time `json:"lastCalled"`
}

// Journal is what the adapters read from the journal.
type Journal interface {
	Record(ctx context.Context, ev events.Event) error
	Recent(ctx context.Context, limit int, typePrefix string) ([]events.Event, error)
	ToolStats(ctx context.Context) ([]ToolStat, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

var _ Journal = (*DB)(nil)

// Record stores ev and, for tool events, updates the tool's statistics.
// Its signature matches events.Handler.
func (db *DB) Record(ctx context.Context, ev events.Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("journal: encode data: %w", err)
	}
	if ev.Data == nil {
		data = []byte("{}")
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO events (id, type, subject, data, at)
		VALUES (?, ?, ?, ?, ?)
	`, ev.ID, string(ev.Type), ev.Subject, string(data), ev.At.UTC())
	if err != nil {
		return fmt.Errorf("journal: insert event: %w", err)
	}

	if ev.Type == events.ToolExecuted || ev.Type == events.ToolFailed {
		failed := 0
		if ev.Type == events.ToolFailed {
			failed = 1
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tool_stats (tool, calls, failures, total_ms, last_called)
			VALUES (?, 1, ?, ?, ?)
			ON CONFLICT(tool) DO UPDATE SET
				calls       = calls + 1,
				failures    = failures + excluded.failures,
				total_ms    = total_ms + excluded.total_ms,
				last_called = excluded.last_called
		`, ev.Subject, failed, durationMillis(ev.Data), ev.At.UTC())
		if err != nil {
			return fmt.Errorf("journal: update tool stats: %w", err)
		}
	}

	return tx.Commit()
}

// Recent returns up to limit events, newest first. A non-empty typePrefix
// keeps only event types starting with it (e.g. "workspace.").
func (db *DB) Recent(ctx context.Context, limit int, typePrefix string) ([]events.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, type, subject, data, at FROM events
		WHERE type LIKE ? ESCAPE '\'
		ORDER BY at DESC, rowid DESC
		LIMIT ?
	`, likePrefix(typePrefix), limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var (
			ev   events.Event
			typ  string
			data string
		)
		if err := rows.Scan(&ev.ID, &typ, &ev.Subject, &data, &ev.At); err != nil {
			return nil, err
		}
		ev.Type = events.Type(typ)
		if data != "" && data != "{}" {
			if err := json.Unmarshal([]byte(data), &ev.Data); err != nil {
				return nil, fmt.Errorf("journal: decode data of %s: %w", ev.ID, err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ToolStats returns per-tool statistics sorted by tool name.
func (db *DB) ToolStats(ctx context.Context) ([]ToolStat, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT tool, calls, failures, total_ms, last_called
		FROM tool_stats ORDER BY tool
	`)
	if err != nil {
		return nil, fmt.Errorf("journal: tool stats: %w", err)
	}
	defer rows.Close()

	out := []ToolStat{}
	for rows.Next() {
		var (
			s       ToolStat
			totalMS int64
		)
		if err := rows.Scan(&s.Tool, &s.Calls, &s.Failures, &totalMS, &s.LastCalled); err != nil {
			return nil, err
		}
		if s.Calls > 0 {
			s.AvgMillis = float64(totalMS) / float64(s.Calls)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Prune deletes events recorded before the given time. Tool statistics are
// kept.
func (db *DB) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM events WHERE at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	return res.RowsAffected()
}

func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

func durationMillis(data map[string]any) int64 {
	switch v := data["duration_ms"].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
