package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloudshipai/loom/internal/eventstore"
)

// EventStore is the SQLite-backed eventstore.Store: one row per (task_id,
// sequence), events JSON-marshaled whole into a single column, mirroring
// the teacher's pattern of storing the variable-shaped MCP tool-call
// payloads as a JSON blob column rather than one column per field.
// Only the newest snapshot per task is kept: PutSnapshot replaces an older
// one, and GetLatestSnapshot reports none when the kept snapshot lies past
// maxSequence, since older snapshots are not retained.
type EventStore struct {
	db *DB
}

func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db}
}

func (s *EventStore) Append(ctx context.Context, taskID string, expectedVersion uint64, events []eventstore.Event) (uint64, error) {
	var newVersion uint64
	err := withWriteLock(func() error {
		tx, err := s.db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("store: begin append tx: %w", err)
		}
		defer tx.Rollback()

		var have uint64
		row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(sequence), 0) FROM task_events WHERE task_id = ?`, taskID)
		if err := row.Scan(&have); err != nil {
			return fmt.Errorf("store: read current sequence: %w", err)
		}
		if have != expectedVersion {
			return &eventstore.VersionConflict{TaskID: taskID, Have: have, Expected: expectedVersion}
		}

		seq := have
		for i := range events {
			seq++
			events[i].TaskID = taskID
			events[i].Sequence = seq
			payload, err := json.Marshal(events[i])
			if err != nil {
				return fmt.Errorf("store: marshal event: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO task_events (task_id, sequence, payload) VALUES (?, ?, ?)`,
				taskID, seq, payload); err != nil {
				return fmt.Errorf("store: insert event: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("store: commit append tx: %w", err)
		}
		newVersion = seq
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newVersion, nil
}

func (s *EventStore) Load(ctx context.Context, taskID string, since uint64) ([]eventstore.Event, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT payload FROM task_events WHERE task_id = ? AND sequence > ? ORDER BY sequence ASC`,
		taskID, since)
	if err != nil {
		return nil, fmt.Errorf("store: load events: %w", err)
	}
	defer rows.Close()

	var out []eventstore.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		var ev eventstore.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("store: unmarshal event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *EventStore) PutSnapshot(ctx context.Context, taskID string, snap eventstore.Event) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("store: marshal snapshot: %w", err)
	}
	return withWriteLock(func() error {
		_, err := s.db.conn.ExecContext(ctx,
			`INSERT INTO task_snapshots (task_id, sequence, payload) VALUES (?, ?, ?)
			 ON CONFLICT(task_id) DO UPDATE SET sequence = excluded.sequence, payload = excluded.payload
			 WHERE excluded.sequence >= task_snapshots.sequence`,
			taskID, snap.Sequence, payload)
		if err != nil {
			return fmt.Errorf("store: upsert snapshot: %w", err)
		}
		return nil
	})
}

func (s *EventStore) GetLatestSnapshot(ctx context.Context, taskID string, maxSequence uint64) (eventstore.Event, bool, error) {
	var payload string
	var seq uint64
	row := s.db.conn.QueryRowContext(ctx,
		`SELECT sequence, payload FROM task_snapshots WHERE task_id = ?`, taskID)
	if err := row.Scan(&seq, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return eventstore.Event{}, false, nil
		}
		return eventstore.Event{}, false, fmt.Errorf("store: read snapshot: %w", err)
	}
	if maxSequence != 0 && seq > maxSequence {
		return eventstore.Event{}, false, nil
	}
	var ev eventstore.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return eventstore.Event{}, false, fmt.Errorf("store: unmarshal snapshot: %w", err)
	}
	return ev, true, nil
}
