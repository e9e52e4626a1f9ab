package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SessionRow is one row of the sessions table.
type SessionRow struct {
	ID         string     `json:"id"`
	URL        string     `json:"url"`
	State      string     `json:"state"`
	OpenedAt   time.Time  `json:"opened_at"`
	ReadyAt    *time.Time `json:"ready_at,omitempty"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
	Deliveries int        `json:"deliveries"`
}

// DeliveryRow is one recorded outbound metadata push.
type DeliveryRow struct {
	SessionID string    `json:"session_id"`
	Method    string    `json:"method"`
	URIs      []string  `json:"uris"`
	Documents int       `json:"documents"`
	SentAt    time.Time `json:"sent_at"`
}

// OpenSession inserts a new session in the connecting state.
func (db *DB) OpenSession(ctx context.Context, id, url string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, url, state, opened_at) VALUES (?, ?, 'connecting', ?)`,
		id, url, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("journal: open session: %w", err)
	}
	return nil
}

// MarkReady records the handshake completion.
func (db *DB) MarkReady(ctx context.Context, id string) error {
	return db.transition(ctx, id, "ready", "ready_at")
}

// CloseSession records the terminal close.
func (db *DB) CloseSession(ctx context.Context, id string) error {
	return db.transition(ctx, id, "closed", "closed_at")
}

func (db *DB) transition(ctx context.Context, id, state, column string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE sessions SET state = ?, `+column+` = ? WHERE id = ? AND state != 'closed'`,
		state, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("journal: %s session: %w", state, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("journal: %s session %s: no open session", state, id)
	}
	return nil
}

// RecordDelivery stores that method was sent for the given document URIs.
func (db *DB) RecordDelivery(ctx context.Context, sessionID, method string, uris []string) error {
	if uris == nil {
		uris = []string{}
	}
	urisJSON, _ := json.Marshal(uris)
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO deliveries (session_id, method, uris, documents, sent_at) VALUES (?, ?, ?, ?, ?)`,
		sessionID, method, string(urisJSON), len(uris), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("journal: record delivery: %w", err)
	}
	return nil
}

// Sessions returns the most recent sessions, newest first.
func (db *DB) Sessions(ctx context.Context, limit int) ([]SessionRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT s.id, s.url, s.state, s.opened_at, s.ready_at, s.closed_at,
		       (SELECT COUNT(*) FROM deliveries d WHERE d.session_id = s.id)
		FROM sessions s
		ORDER BY s.opened_at DESC, s.rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: sessions: %w", err)
	}
	defer rows.Close()

	out := []SessionRow{}
	for rows.Next() {
		var (
			r              SessionRow
			ready, closedT sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.URL, &r.State, &r.OpenedAt, &ready, &closedT, &r.Deliveries); err != nil {
			return nil, err
		}
		if ready.Valid {
			t := ready.Time
			r.ReadyAt = &t
		}
		if closedT.Valid {
			t := closedT.Time
			r.ClosedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Deliveries returns every delivery recorded for a session in send order.
func (db *DB) Deliveries(ctx context.Context, sessionID string) ([]DeliveryRow, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT session_id, method, uris, documents, sent_at FROM deliveries WHERE session_id = ? ORDER BY id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("journal: deliveries: %w", err)
	}
	defer rows.Close()

	var out []DeliveryRow
	for rows.Next() {
		var (
			d    DeliveryRow
			uris string
		)
		if err := rows.Scan(&d.SessionID, &d.Method, &uris, &d.Documents, &d.SentAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(uris), &d.URIs); err != nil {
			return nil, fmt.Errorf("journal: decode uris: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
