package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/corebrain/robobrain/brain/emit"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite-backed Store[S], for field deployments that need
// a single-file, zero-setup persistence layer for a robot's decision
// threads (one database per robot, surviving process restarts).
//
// Schema:
//   - brain_steps: step-by-step execution history
//   - brain_checkpoints: named checkpoints for operator-labeled save points
//   - brain_checkpoints_v2: resume checkpoints (R5 suspend/resume)
//   - idempotency_keys: duplicate-commit prevention
//   - events_outbox: transactional event delivery to telemetry
type SQLiteStore[S any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewSQLiteStore opens (or creates) a SQLite database at path. Pass
// ":memory:" for an ephemeral database. WAL mode and a busy timeout are
// enabled so concurrent reads (e.g. a monitoring dashboard) don't block
// the brain's own writes.
func NewSQLiteStore[S any](path string) (*SQLiteStore[S], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &SQLiteStore[S]{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore[S]) createTables(ctx context.Context) error {
	stepsTable := `
		CREATE TABLE IF NOT EXISTS brain_steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			thread_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			node_id TEXT NOT NULL,
			state TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(thread_id, step)
		)
	`
	if _, err := s.db.ExecContext(ctx, stepsTable); err != nil {
		return fmt.Errorf("failed to create brain_steps table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_steps_thread_id ON brain_steps(thread_id)"); err != nil {
		return fmt.Errorf("failed to create idx_steps_thread_id: %w", err)
	}

	checkpointsTable := `
		CREATE TABLE IF NOT EXISTS brain_checkpoints (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			checkpoint_id TEXT NOT NULL UNIQUE,
			state TEXT NOT NULL,
			step INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := s.db.ExecContext(ctx, checkpointsTable); err != nil {
		return fmt.Errorf("failed to create brain_checkpoints table: %w", err)
	}

	checkpointsV2Table := `
		CREATE TABLE IF NOT EXISTS brain_checkpoints_v2 (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			thread_id TEXT NOT NULL,
			step_id INTEGER NOT NULL,
			node_id TEXT NOT NULL,
			next_node TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL,
			idempotency_key TEXT NOT NULL UNIQUE,
			timestamp TIMESTAMP NOT NULL,
			label TEXT DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(thread_id, step_id)
		)
	`
	if _, err := s.db.ExecContext(ctx, checkpointsV2Table); err != nil {
		return fmt.Errorf("failed to create brain_checkpoints_v2 table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_checkpoints_v2_thread_id ON brain_checkpoints_v2(thread_id, step_id)"); err != nil {
		return fmt.Errorf("failed to create idx_checkpoints_v2_thread_id: %w", err)
	}

	idempotencyTable := `
		CREATE TABLE IF NOT EXISTS idempotency_keys (
			key_value TEXT NOT NULL PRIMARY KEY,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := s.db.ExecContext(ctx, idempotencyTable); err != nil {
		return fmt.Errorf("failed to create idempotency_keys table: %w", err)
	}

	eventsOutboxTable := `
		CREATE TABLE IF NOT EXISTS events_outbox (
			id TEXT NOT NULL PRIMARY KEY,
			thread_id TEXT NOT NULL,
			event_data TEXT NOT NULL,
			emitted_at TIMESTAMP NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := s.db.ExecContext(ctx, eventsOutboxTable); err != nil {
		return fmt.Errorf("failed to create events_outbox table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_events_pending ON events_outbox(emitted_at, created_at)"); err != nil {
		return fmt.Errorf("failed to create idx_events_pending: %w", err)
	}

	return nil
}

// SaveStep persists a step, replacing any prior record at (threadID, step).
func (s *SQLiteStore[S]) SaveStep(ctx context.Context, threadID string, step int, nodeID string, state S) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	query := `
		INSERT INTO brain_steps (thread_id, step, node_id, state)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(thread_id, step) DO UPDATE SET
			node_id = excluded.node_id,
			state = excluded.state
	`
	if _, err := s.db.ExecContext(ctx, query, threadID, step, nodeID, string(stateJSON)); err != nil {
		return fmt.Errorf("failed to save step: %w", err)
	}
	return nil
}

// LoadLatest returns the highest-numbered step saved for threadID.
func (s *SQLiteStore[S]) LoadLatest(ctx context.Context, threadID string) (state S, step int, err error) {
	if err = s.checkOpen(); err != nil {
		var zero S
		return zero, 0, err
	}

	query := `SELECT step, state FROM brain_steps WHERE thread_id = ? ORDER BY step DESC LIMIT 1`

	var stateJSON string
	err = s.db.QueryRowContext(ctx, query, threadID).Scan(&step, &stateJSON)
	if err == sql.ErrNoRows {
		var zero S
		return zero, 0, ErrNotFound
	}
	if err != nil {
		var zero S
		return zero, 0, fmt.Errorf("failed to load latest step: %w", err)
	}

	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		var zero S
		return zero, 0, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, step, nil
}

// SaveCheckpoint creates or overwrites the named checkpoint cpID.
func (s *SQLiteStore[S]) SaveCheckpoint(ctx context.Context, cpID string, state S, step int) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	query := `
		INSERT INTO brain_checkpoints (checkpoint_id, state, step)
		VALUES (?, ?, ?)
		ON CONFLICT(checkpoint_id) DO UPDATE SET
			state = excluded.state,
			step = excluded.step,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, cpID, string(stateJSON), step); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint retrieves the named checkpoint cpID.
func (s *SQLiteStore[S]) LoadCheckpoint(ctx context.Context, cpID string) (state S, step int, err error) {
	if err = s.checkOpen(); err != nil {
		var zero S
		return zero, 0, err
	}

	query := `SELECT state, step FROM brain_checkpoints WHERE checkpoint_id = ?`

	var stateJSON string
	err = s.db.QueryRowContext(ctx, query, cpID).Scan(&stateJSON, &step)
	if err == sql.ErrNoRows {
		var zero S
		return zero, 0, ErrNotFound
	}
	if err != nil {
		var zero S
		return zero, 0, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		var zero S
		return zero, 0, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, step, nil
}

// SaveCheckpointV2 persists a resume checkpoint in a transaction, rejecting
// a reused idempotency key (prevents double-committing a suspend point).
func (s *SQLiteStore[S]) SaveCheckpointV2(ctx context.Context, checkpoint CheckpointV2[S]) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	stateJSON, err := json.Marshal(checkpoint.State)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `INSERT INTO idempotency_keys (key_value) VALUES (?)`, checkpoint.IdempotencyKey); err != nil {
		return fmt.Errorf("idempotency key already exists or insert failed: %w", err)
	}

	checkpointQuery := `
		INSERT INTO brain_checkpoints_v2
		(thread_id, step_id, node_id, next_node, state, idempotency_key, timestamp, label)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(thread_id, step_id) DO UPDATE SET
			node_id = excluded.node_id,
			next_node = excluded.next_node,
			state = excluded.state,
			idempotency_key = excluded.idempotency_key,
			timestamp = excluded.timestamp,
			label = excluded.label
	`
	if _, err = tx.ExecContext(ctx, checkpointQuery,
		checkpoint.ThreadID,
		checkpoint.StepID,
		checkpoint.NodeID,
		checkpoint.NextNode,
		string(stateJSON),
		checkpoint.IdempotencyKey,
		checkpoint.Timestamp.Format(time.RFC3339Nano),
		checkpoint.Label,
	); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore[S]) scanCheckpointV2(row *sql.Row) (CheckpointV2[S], error) {
	var (
		stateJSON    string
		timestampStr string
		checkpoint   CheckpointV2[S]
	)

	err := row.Scan(
		&checkpoint.ThreadID,
		&checkpoint.StepID,
		&checkpoint.NodeID,
		&checkpoint.NextNode,
		&stateJSON,
		&checkpoint.IdempotencyKey,
		&timestampStr,
		&checkpoint.Label,
	)
	if err == sql.ErrNoRows {
		var zero CheckpointV2[S]
		return zero, ErrNotFound
	}
	if err != nil {
		var zero CheckpointV2[S]
		return zero, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	checkpoint.Timestamp, err = time.Parse(time.RFC3339Nano, timestampStr)
	if err != nil {
		var zero CheckpointV2[S]
		return zero, fmt.Errorf("failed to parse timestamp: %w", err)
	}

	if err := json.Unmarshal([]byte(stateJSON), &checkpoint.State); err != nil {
		var zero CheckpointV2[S]
		return zero, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return checkpoint, nil
}

// LoadCheckpointV2 retrieves a checkpoint by thread id and step id.
func (s *SQLiteStore[S]) LoadCheckpointV2(ctx context.Context, threadID string, stepID int) (CheckpointV2[S], error) {
	if err := s.checkOpen(); err != nil {
		var zero CheckpointV2[S]
		return zero, err
	}

	query := `
		SELECT thread_id, step_id, node_id, next_node, state, idempotency_key, timestamp, label
		FROM brain_checkpoints_v2
		WHERE thread_id = ? AND step_id = ?
		LIMIT 1
	`
	row := s.db.QueryRowContext(ctx, query, threadID, stepID)
	return s.scanCheckpointV2(row)
}

// LoadLatestCheckpointV2 retrieves the most recently saved checkpoint for threadID.
func (s *SQLiteStore[S]) LoadLatestCheckpointV2(ctx context.Context, threadID string) (CheckpointV2[S], error) {
	if err := s.checkOpen(); err != nil {
		var zero CheckpointV2[S]
		return zero, err
	}

	query := `
		SELECT thread_id, step_id, node_id, next_node, state, idempotency_key, timestamp, label
		FROM brain_checkpoints_v2
		WHERE thread_id = ?
		ORDER BY step_id DESC
		LIMIT 1
	`
	row := s.db.QueryRowContext(ctx, query, threadID)
	return s.scanCheckpointV2(row)
}

// CheckIdempotency reports whether key has already been committed.
func (s *SQLiteStore[S]) CheckIdempotency(ctx context.Context, key string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM idempotency_keys WHERE key_value = ?`, key).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check idempotency: %w", err)
	}
	return count > 0, nil
}

// PendingEvents returns up to limit events not yet marked emitted, oldest first.
func (s *SQLiteStore[S]) PendingEvents(ctx context.Context, limit int) ([]emit.Event, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query := `
		SELECT id, thread_id, event_data
		FROM events_outbox
		WHERE emitted_at IS NULL
		ORDER BY created_at ASC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []emit.Event
	for rows.Next() {
		var id, threadID, eventJSON string
		if err := rows.Scan(&id, &threadID, &eventJSON); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}

		var event emit.Event
		if err := json.Unmarshal([]byte(eventJSON), &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}

	return events, nil
}

// MarkEventsEmitted stamps emitted_at for the given event IDs.
func (s *SQLiteStore[S]) MarkEventsEmitted(ctx context.Context, eventIDs []string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if len(eventIDs) == 0 {
		return nil
	}

	placeholders := ""
	args := make([]interface{}, len(eventIDs))
	for i, id := range eventIDs {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args[i] = id
	}

	// #nosec G201 -- placeholders are "?" marks for a parameterized query, not user input
	query := fmt.Sprintf(`UPDATE events_outbox SET emitted_at = CURRENT_TIMESTAMP WHERE id IN (%s)`, placeholders)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark events as emitted: %w", err)
	}
	return nil
}

// Close closes the underlying database connection. Safe to call more than once.
func (s *SQLiteStore[S]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore[S]) Ping(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Path returns the database file path.
func (s *SQLiteStore[S]) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

func (s *SQLiteStore[S]) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}
