package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/corebrain/robobrain/brain/emit"
)

// MemStore is an in-memory Store[S], for tests and single-process
// development runs. Data is lost on process exit.
type MemStore[S any] struct {
	mu             sync.RWMutex
	steps          map[string][]StepRecord[S] // threadID -> steps
	checkpoints    map[string]Checkpoint[S]   // checkpointID -> checkpoint
	checkpointsV2  map[string]CheckpointV2[S] // "threadID:stepID" -> checkpoint
	latestV2       map[string]string          // threadID -> "threadID:stepID" of newest
	labelIndex     map[string]string          // label -> "threadID:stepID"
	idempotencyMap map[string]bool
	pendingEvents  []emit.Event
	eventIDSet     map[string]int
}

// NewMemStore creates an empty in-memory store.
func NewMemStore[S any]() *MemStore[S] {
	return &MemStore[S]{
		steps:          make(map[string][]StepRecord[S]),
		checkpoints:    make(map[string]Checkpoint[S]),
		checkpointsV2:  make(map[string]CheckpointV2[S]),
		latestV2:       make(map[string]string),
		labelIndex:     make(map[string]string),
		idempotencyMap: make(map[string]bool),
		pendingEvents:  make([]emit.Event, 0),
		eventIDSet:     make(map[string]int),
	}
}

// SaveStep appends a step record to threadID's history.
func (m *MemStore[S]) SaveStep(_ context.Context, threadID string, step int, nodeID string, state S) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.steps[threadID] = append(m.steps[threadID], StepRecord[S]{Step: step, NodeID: nodeID, State: state})
	return nil
}

// LoadLatest returns the step record with the highest step number for threadID.
func (m *MemStore[S]) LoadLatest(_ context.Context, threadID string) (state S, step int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records, exists := m.steps[threadID]
	if !exists || len(records) == 0 {
		var zero S
		return zero, 0, ErrNotFound
	}

	latest := records[0]
	for _, record := range records[1:] {
		if record.Step > latest.Step {
			latest = record
		}
	}
	return latest.State, latest.Step, nil
}

// SaveCheckpoint overwrites the named checkpoint cpID.
func (m *MemStore[S]) SaveCheckpoint(_ context.Context, cpID string, state S, step int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkpoints[cpID] = Checkpoint[S]{ID: cpID, State: state, Step: step}
	return nil
}

// LoadCheckpoint retrieves the named checkpoint cpID.
func (m *MemStore[S]) LoadCheckpoint(_ context.Context, cpID string) (state S, step int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp, exists := m.checkpoints[cpID]
	if !exists {
		var zero S
		return zero, 0, ErrNotFound
	}
	return cp.State, cp.Step, nil
}

// SaveCheckpointV2 stores checkpoint indexed by (threadID, stepID), and
// rejects a reused idempotency key.
func (m *MemStore[S]) SaveCheckpointV2(_ context.Context, checkpoint CheckpointV2[S]) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if checkpoint.IdempotencyKey != "" {
		if m.idempotencyMap[checkpoint.IdempotencyKey] {
			return fmt.Errorf("duplicate checkpoint: idempotency key %q already exists", checkpoint.IdempotencyKey)
		}
		m.idempotencyMap[checkpoint.IdempotencyKey] = true
	}

	key := fmt.Sprintf("%s:%d", checkpoint.ThreadID, checkpoint.StepID)
	m.checkpointsV2[key] = checkpoint
	m.latestV2[checkpoint.ThreadID] = key

	if checkpoint.Label != "" {
		m.labelIndex[checkpoint.Label] = key
	}

	return nil
}

// LoadCheckpointV2 retrieves a checkpoint by thread id and step id.
func (m *MemStore[S]) LoadCheckpointV2(_ context.Context, threadID string, stepID int) (CheckpointV2[S], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := fmt.Sprintf("%s:%d", threadID, stepID)
	checkpoint, exists := m.checkpointsV2[key]
	if !exists {
		var zero CheckpointV2[S]
		return zero, ErrNotFound
	}
	return checkpoint, nil
}

// LoadLatestCheckpointV2 returns the most recently saved checkpoint for threadID.
func (m *MemStore[S]) LoadLatestCheckpointV2(_ context.Context, threadID string) (CheckpointV2[S], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key, exists := m.latestV2[threadID]
	if !exists {
		var zero CheckpointV2[S]
		return zero, ErrNotFound
	}
	return m.checkpointsV2[key], nil
}

// CheckIdempotency reports whether key has already been committed.
func (m *MemStore[S]) CheckIdempotency(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.idempotencyMap[key], nil
}

// PendingEvents returns up to limit events not yet marked emitted.
func (m *MemStore[S]) PendingEvents(_ context.Context, limit int) ([]emit.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := len(m.pendingEvents)
	if limit > 0 && limit < count {
		count = limit
	}

	result := make([]emit.Event, count)
	copy(result, m.pendingEvents[:count])
	return result, nil
}

// MarkEventsEmitted removes eventIDs from the pending queue.
func (m *MemStore[S]) MarkEventsEmitted(_ context.Context, eventIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(eventIDs) == 0 {
		return nil
	}

	toRemove := make(map[string]bool, len(eventIDs))
	for _, id := range eventIDs {
		toRemove[id] = true
	}

	filtered := make([]emit.Event, 0, len(m.pendingEvents))
	newEventIDSet := make(map[string]int)
	for _, event := range m.pendingEvents {
		eventID := ""
		if event.Meta != nil {
			if id, ok := event.Meta["event_id"].(string); ok {
				eventID = id
			}
		}
		if !toRemove[eventID] {
			newEventIDSet[eventID] = len(filtered)
			filtered = append(filtered, event)
		} else {
			delete(m.eventIDSet, eventID)
		}
	}

	m.pendingEvents = filtered
	m.eventIDSet = newEventIDSet
	return nil
}

// serializableMemStore is the JSON-serializable representation of MemStore.
type serializableMemStore[S any] struct {
	Steps          map[string][]StepRecord[S] `json:"steps"`
	Checkpoints    map[string]Checkpoint[S]   `json:"checkpoints"`
	CheckpointsV2  map[string]CheckpointV2[S] `json:"checkpoints_v2"`
	LatestV2       map[string]string          `json:"latest_v2"`
	LabelIndex     map[string]string          `json:"label_index"`
	IdempotencyMap map[string]bool            `json:"idempotency_map"`
	PendingEvents  []emit.Event               `json:"pending_events"`
}

// MarshalJSON serializes the store's contents, for persisting a thread's
// full history to a field-recorder log.
func (m *MemStore[S]) MarshalJSON() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := serializableMemStore[S]{
		Steps:          m.steps,
		Checkpoints:    m.checkpoints,
		CheckpointsV2:  m.checkpointsV2,
		LatestV2:       m.latestV2,
		LabelIndex:     m.labelIndex,
		IdempotencyMap: m.idempotencyMap,
		PendingEvents:  m.pendingEvents,
	}
	return json.Marshal(s)
}

// UnmarshalJSON replaces the store's contents from previously serialized data.
func (m *MemStore[S]) UnmarshalJSON(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var s serializableMemStore[S]
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	m.steps = s.Steps
	m.checkpoints = s.Checkpoints
	m.checkpointsV2 = s.CheckpointsV2
	m.latestV2 = s.LatestV2
	m.labelIndex = s.LabelIndex
	m.idempotencyMap = s.IdempotencyMap
	m.pendingEvents = s.PendingEvents

	if m.steps == nil {
		m.steps = make(map[string][]StepRecord[S])
	}
	if m.checkpoints == nil {
		m.checkpoints = make(map[string]Checkpoint[S])
	}
	if m.checkpointsV2 == nil {
		m.checkpointsV2 = make(map[string]CheckpointV2[S])
	}
	if m.latestV2 == nil {
		m.latestV2 = make(map[string]string)
	}
	if m.labelIndex == nil {
		m.labelIndex = make(map[string]string)
	}
	if m.idempotencyMap == nil {
		m.idempotencyMap = make(map[string]bool)
	}
	if m.pendingEvents == nil {
		m.pendingEvents = make([]emit.Event, 0)
	}

	m.eventIDSet = make(map[string]int)
	for i, event := range m.pendingEvents {
		if event.Meta != nil {
			if id, ok := event.Meta["event_id"].(string); ok {
				m.eventIDSet[id] = i
			}
		}
	}

	return nil
}
