package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/corebrain/robobrain/brain/emit"
)

// FileStore is a file-backed Store[S]: one JSON file per thread under
// baseDir, for field deployments that want durable, human-inspectable
// persistence without a database dependency. Named checkpoints (cpID,
// not thread-scoped) and the idempotency index are cross-cutting by the
// interface's own method signatures, so they live in two shared files
// alongside the per-thread ones rather than being duplicated per thread.
type FileStore[S any] struct {
	mu      sync.Mutex
	baseDir string
}

// fileThreadData is the on-disk shape of one thread's "<threadID>.json" file.
type fileThreadData[S any] struct {
	Steps         []StepRecord[S]          `json:"steps"`
	CheckpointsV2 map[string]CheckpointV2[S] `json:"checkpoints_v2"` // stepID (as string) -> checkpoint
	LatestStepKey string                   `json:"latest_step_key,omitempty"`
	LabelIndex    map[string]string        `json:"label_index,omitempty"` // label -> stepID
	PendingEvents []emit.Event             `json:"pending_events,omitempty"`
}

// fileSharedCheckpoints is the on-disk shape of "_checkpoints.json".
type fileSharedCheckpoints[S any] struct {
	Checkpoints map[string]Checkpoint[S] `json:"checkpoints"`
}

// fileSharedIdempotency is the on-disk shape of "_idempotency.json".
type fileSharedIdempotency struct {
	Keys map[string]bool `json:"keys"`
}

// NewFileStore opens (creating if necessary) a file-backed store rooted at
// baseDir. Each thread's history lives in its own "<threadID>.json" file.
func NewFileStore[S any](baseDir string) (*FileStore[S], error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore[S]{baseDir: baseDir}, nil
}

func (f *FileStore[S]) threadPath(threadID string) string {
	return filepath.Join(f.baseDir, sanitizeThreadID(threadID)+".json")
}

func (f *FileStore[S]) checkpointsPath() string {
	return filepath.Join(f.baseDir, "_checkpoints.json")
}

func (f *FileStore[S]) idempotencyPath() string {
	return filepath.Join(f.baseDir, "_idempotency.json")
}

// sanitizeThreadID replaces path separators so a thread id can never escape
// baseDir; thread ids are otherwise opaque host-supplied strings.
func sanitizeThreadID(threadID string) string {
	out := make([]rune, 0, len(threadID))
	for _, r := range threadID {
		if r == '/' || r == '\\' || r == 0 {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return "_"
	}
	return string(out)
}

func (f *FileStore[S]) readThread(threadID string) (fileThreadData[S], error) {
	data := fileThreadData[S]{
		CheckpointsV2: make(map[string]CheckpointV2[S]),
		LabelIndex:    make(map[string]string),
	}

	raw, err := os.ReadFile(f.threadPath(threadID))
	if os.IsNotExist(err) {
		return data, nil
	}
	if err != nil {
		return data, fmt.Errorf("failed to read thread file: %w", err)
	}

	if err := json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("failed to unmarshal thread file: %w", err)
	}
	if data.CheckpointsV2 == nil {
		data.CheckpointsV2 = make(map[string]CheckpointV2[S])
	}
	if data.LabelIndex == nil {
		data.LabelIndex = make(map[string]string)
	}
	return data, nil
}

func (f *FileStore[S]) writeThread(threadID string, data fileThreadData[S]) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal thread file: %w", err)
	}
	return writeFileAtomic(f.threadPath(threadID), raw)
}

func (f *FileStore[S]) readCheckpoints() (fileSharedCheckpoints[S], error) {
	shared := fileSharedCheckpoints[S]{Checkpoints: make(map[string]Checkpoint[S])}

	raw, err := os.ReadFile(f.checkpointsPath())
	if os.IsNotExist(err) {
		return shared, nil
	}
	if err != nil {
		return shared, fmt.Errorf("failed to read checkpoints file: %w", err)
	}
	if err := json.Unmarshal(raw, &shared); err != nil {
		return shared, fmt.Errorf("failed to unmarshal checkpoints file: %w", err)
	}
	if shared.Checkpoints == nil {
		shared.Checkpoints = make(map[string]Checkpoint[S])
	}
	return shared, nil
}

func (f *FileStore[S]) writeCheckpoints(shared fileSharedCheckpoints[S]) error {
	raw, err := json.MarshalIndent(shared, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoints file: %w", err)
	}
	return writeFileAtomic(f.checkpointsPath(), raw)
}

func (f *FileStore[S]) readIdempotency() (fileSharedIdempotency, error) {
	shared := fileSharedIdempotency{Keys: make(map[string]bool)}

	raw, err := os.ReadFile(f.idempotencyPath())
	if os.IsNotExist(err) {
		return shared, nil
	}
	if err != nil {
		return shared, fmt.Errorf("failed to read idempotency file: %w", err)
	}
	if err := json.Unmarshal(raw, &shared); err != nil {
		return shared, fmt.Errorf("failed to unmarshal idempotency file: %w", err)
	}
	if shared.Keys == nil {
		shared.Keys = make(map[string]bool)
	}
	return shared, nil
}

func (f *FileStore[S]) writeIdempotency(shared fileSharedIdempotency) error {
	raw, err := json.MarshalIndent(shared, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal idempotency file: %w", err)
	}
	return writeFileAtomic(f.idempotencyPath(), raw)
}

// writeFileAtomic writes via a temp file + rename so a crash mid-write never
// leaves a thread's JSON file truncated or corrupt.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// SaveStep appends a step record to threadID's file.
func (f *FileStore[S]) SaveStep(_ context.Context, threadID string, step int, nodeID string, state S) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.readThread(threadID)
	if err != nil {
		return err
	}
	data.Steps = append(data.Steps, StepRecord[S]{Step: step, NodeID: nodeID, State: state})
	return f.writeThread(threadID, data)
}

// LoadLatest returns the step record with the highest step number for threadID.
func (f *FileStore[S]) LoadLatest(_ context.Context, threadID string) (state S, step int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.readThread(threadID)
	if err != nil {
		var zero S
		return zero, 0, err
	}
	if len(data.Steps) == 0 {
		var zero S
		return zero, 0, ErrNotFound
	}

	latest := data.Steps[0]
	for _, record := range data.Steps[1:] {
		if record.Step > latest.Step {
			latest = record
		}
	}
	return latest.State, latest.Step, nil
}

// SaveCheckpoint overwrites the named checkpoint cpID in the shared
// checkpoints file.
func (f *FileStore[S]) SaveCheckpoint(_ context.Context, cpID string, state S, step int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	shared, err := f.readCheckpoints()
	if err != nil {
		return err
	}
	shared.Checkpoints[cpID] = Checkpoint[S]{ID: cpID, State: state, Step: step}
	return f.writeCheckpoints(shared)
}

// LoadCheckpoint retrieves the named checkpoint cpID.
func (f *FileStore[S]) LoadCheckpoint(_ context.Context, cpID string) (state S, step int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	shared, err := f.readCheckpoints()
	if err != nil {
		var zero S
		return zero, 0, err
	}
	cp, exists := shared.Checkpoints[cpID]
	if !exists {
		var zero S
		return zero, 0, ErrNotFound
	}
	return cp.State, cp.Step, nil
}

// SaveCheckpointV2 persists a resume checkpoint into threadID's file and
// rejects a reused idempotency key via the shared idempotency index.
func (f *FileStore[S]) SaveCheckpointV2(_ context.Context, checkpoint CheckpointV2[S]) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if checkpoint.IdempotencyKey != "" {
		idem, err := f.readIdempotency()
		if err != nil {
			return err
		}
		if idem.Keys[checkpoint.IdempotencyKey] {
			return fmt.Errorf("duplicate checkpoint: idempotency key %q already exists", checkpoint.IdempotencyKey)
		}
		idem.Keys[checkpoint.IdempotencyKey] = true
		if err := f.writeIdempotency(idem); err != nil {
			return err
		}
	}

	data, err := f.readThread(checkpoint.ThreadID)
	if err != nil {
		return err
	}

	stepKey := fmt.Sprintf("%d", checkpoint.StepID)
	data.CheckpointsV2[stepKey] = checkpoint
	data.LatestStepKey = stepKey
	if checkpoint.Label != "" {
		data.LabelIndex[checkpoint.Label] = stepKey
	}

	return f.writeThread(checkpoint.ThreadID, data)
}

// LoadCheckpointV2 retrieves a checkpoint by thread id and step id.
func (f *FileStore[S]) LoadCheckpointV2(_ context.Context, threadID string, stepID int) (CheckpointV2[S], error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.readThread(threadID)
	if err != nil {
		var zero CheckpointV2[S]
		return zero, err
	}
	cp, exists := data.CheckpointsV2[fmt.Sprintf("%d", stepID)]
	if !exists {
		var zero CheckpointV2[S]
		return zero, ErrNotFound
	}
	return cp, nil
}

// LoadLatestCheckpointV2 returns the most recently saved checkpoint for threadID.
func (f *FileStore[S]) LoadLatestCheckpointV2(_ context.Context, threadID string) (CheckpointV2[S], error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.readThread(threadID)
	if err != nil {
		var zero CheckpointV2[S]
		return zero, err
	}
	if data.LatestStepKey == "" {
		var zero CheckpointV2[S]
		return zero, ErrNotFound
	}
	cp, exists := data.CheckpointsV2[data.LatestStepKey]
	if !exists {
		var zero CheckpointV2[S]
		return zero, ErrNotFound
	}
	return cp, nil
}

// CheckIdempotency reports whether key has already been committed.
func (f *FileStore[S]) CheckIdempotency(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idem, err := f.readIdempotency()
	if err != nil {
		return false, err
	}
	return idem.Keys[key], nil
}

// PendingEvents scans every thread file for events not yet marked emitted,
// in file-name (thread id) order, up to limit.
func (f *FileStore[S]) PendingEvents(_ context.Context, limit int) ([]emit.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	threadIDs, err := f.listThreadIDs()
	if err != nil {
		return nil, err
	}

	var events []emit.Event
	for _, threadID := range threadIDs {
		data, err := f.readThread(threadID)
		if err != nil {
			return nil, err
		}
		for _, ev := range data.PendingEvents {
			events = append(events, ev)
			if limit > 0 && len(events) >= limit {
				return events, nil
			}
		}
	}
	return events, nil
}

// MarkEventsEmitted removes eventIDs from every thread file's pending queue.
func (f *FileStore[S]) MarkEventsEmitted(_ context.Context, eventIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(eventIDs) == 0 {
		return nil
	}
	toRemove := make(map[string]bool, len(eventIDs))
	for _, id := range eventIDs {
		toRemove[id] = true
	}

	threadIDs, err := f.listThreadIDs()
	if err != nil {
		return err
	}

	for _, threadID := range threadIDs {
		data, err := f.readThread(threadID)
		if err != nil {
			return err
		}

		filtered := data.PendingEvents[:0]
		changed := false
		for _, ev := range data.PendingEvents {
			id := ""
			if ev.Meta != nil {
				if v, ok := ev.Meta["event_id"].(string); ok {
					id = v
				}
			}
			if toRemove[id] {
				changed = true
				continue
			}
			filtered = append(filtered, ev)
		}
		if changed {
			data.PendingEvents = filtered
			if err := f.writeThread(threadID, data); err != nil {
				return err
			}
		}
	}
	return nil
}

// listThreadIDs returns every thread id with a file under baseDir, in
// filename order, skipping the shared "_checkpoints"/"_idempotency" files.
func (f *FileStore[S]) listThreadIDs() ([]string, error) {
	entries, err := os.ReadDir(f.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list store directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		base := name[:len(name)-len(".json")]
		if base == "_checkpoints" || base == "_idempotency" {
			continue
		}
		ids = append(ids, base)
	}
	sort.Strings(ids)
	return ids, nil
}
