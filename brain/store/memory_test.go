package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/corebrain/robobrain/brain/emit"
)

type memTestState struct {
	Counter int    `json:"counter"`
	Message string `json:"message"`
}

func TestMemStore_Construction(t *testing.T) {
	s := NewMemStore[memTestState]()
	if s == nil {
		t.Fatal("NewMemStore returned nil")
	}
	if _, _, err := s.LoadLatest(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on empty store, got %v", err)
	}
}

func TestMemStore_SaveStep_Concurrent(t *testing.T) {
	s := NewMemStore[memTestState]()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(step int) {
			defer wg.Done()
			_ = s.SaveStep(ctx, "thread-concurrent", step, "k1_ingest_observations", memTestState{Counter: step})
		}(i)
	}
	wg.Wait()

	_, step, err := s.LoadLatest(ctx, "thread-concurrent")
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if step != 20 {
		t.Errorf("expected latest step 20, got %d", step)
	}
}

func TestMemStore_LoadLatest(t *testing.T) {
	s := NewMemStore[memTestState]()
	ctx := context.Background()

	_ = s.SaveStep(ctx, "thread-001", 1, "k1_ingest_observations", memTestState{Counter: 1})
	_ = s.SaveStep(ctx, "thread-001", 2, "k2_mode_arbiter", memTestState{Counter: 2})

	state, step, err := s.LoadLatest(ctx, "thread-001")
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if step != 2 || state.Counter != 2 {
		t.Errorf("got (step=%d, counter=%d), want (2, 2)", step, state.Counter)
	}
}

func TestMemStore_SaveCheckpoint(t *testing.T) {
	s := NewMemStore[memTestState]()
	ctx := context.Background()

	if err := s.SaveCheckpoint(ctx, "cp-1", memTestState{Message: "saved"}, 3); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}
	state, step, err := s.LoadCheckpoint(ctx, "cp-1")
	if err != nil {
		t.Fatalf("LoadCheckpoint failed: %v", err)
	}
	if step != 3 || state.Message != "saved" {
		t.Errorf("got (step=%d, message=%q), want (3, %q)", step, state.Message, "saved")
	}
}

func TestMemStore_LoadCheckpoint_Errors(t *testing.T) {
	s := NewMemStore[memTestState]()
	if _, _, err := s.LoadCheckpoint(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemStore_JSONRoundTrip(t *testing.T) {
	s := NewMemStore[memTestState]()
	ctx := context.Background()

	_ = s.SaveStep(ctx, "thread-001", 1, "k1_ingest_observations", memTestState{Counter: 1, Message: "a"})
	_ = s.SaveCheckpoint(ctx, "cp-1", memTestState{Counter: 2, Message: "b"}, 1)
	_ = s.SaveCheckpointV2(ctx, CheckpointV2[memTestState]{
		ThreadID: "thread-001", StepID: 1, NodeID: "r5_human_approval", NextNode: "r5_human_approval",
		State: memTestState{Counter: 3}, IdempotencyKey: "sha256:x", Timestamp: time.Now(),
	})

	data, err := s.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}

	restored := NewMemStore[memTestState]()
	if err := restored.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON failed: %v", err)
	}

	state, step, err := restored.LoadLatest(ctx, "thread-001")
	if err != nil {
		t.Fatalf("LoadLatest after restore failed: %v", err)
	}
	if step != 1 || state.Counter != 1 {
		t.Errorf("restored step data mismatch: got (step=%d, counter=%d)", step, state.Counter)
	}

	cp, err := restored.LoadCheckpointV2(ctx, "thread-001", 1)
	if err != nil {
		t.Fatalf("LoadCheckpointV2 after restore failed: %v", err)
	}
	if cp.State.Counter != 3 {
		t.Errorf("restored checkpoint mismatch: got Counter=%d, want 3", cp.State.Counter)
	}
}

func TestMemStore_UnmarshalJSON_EmptyObject(t *testing.T) {
	s := NewMemStore[memTestState]()
	if err := s.UnmarshalJSON([]byte("{}")); err != nil {
		t.Fatalf("UnmarshalJSON of empty object failed: %v", err)
	}
	if _, _, err := s.LoadLatest(context.Background(), "anything"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on freshly-restored empty store, got %v", err)
	}
}

func TestMemStore_SaveCheckpointV2(t *testing.T) {
	s := NewMemStore[memTestState]()
	ctx := context.Background()

	cp := CheckpointV2[memTestState]{
		ThreadID: "thread-001", StepID: 5, NodeID: "r5_human_approval", NextNode: "r5_human_approval",
		State: memTestState{Counter: 7}, IdempotencyKey: "sha256:a", Timestamp: time.Now(), Label: "suspended:r5_human_approval",
	}
	if err := s.SaveCheckpointV2(ctx, cp); err != nil {
		t.Fatalf("SaveCheckpointV2 failed: %v", err)
	}

	loaded, err := s.LoadCheckpointV2(ctx, "thread-001", 5)
	if err != nil {
		t.Fatalf("LoadCheckpointV2 failed: %v", err)
	}
	if loaded.State.Counter != 7 || loaded.Label != "suspended:r5_human_approval" {
		t.Errorf("loaded checkpoint mismatch: %+v", loaded)
	}
}

func TestMemStore_SaveCheckpointV2_DuplicateKeyRejected(t *testing.T) {
	s := NewMemStore[memTestState]()
	ctx := context.Background()

	cp1 := CheckpointV2[memTestState]{ThreadID: "t", StepID: 1, IdempotencyKey: "sha256:dup", Timestamp: time.Now()}
	cp2 := CheckpointV2[memTestState]{ThreadID: "t", StepID: 2, IdempotencyKey: "sha256:dup", Timestamp: time.Now()}

	if err := s.SaveCheckpointV2(ctx, cp1); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	if err := s.SaveCheckpointV2(ctx, cp2); err == nil {
		t.Fatal("expected duplicate idempotency key to be rejected")
	}
}

func TestMemStore_LoadLatestCheckpointV2(t *testing.T) {
	s := NewMemStore[memTestState]()
	ctx := context.Background()

	_ = s.SaveCheckpointV2(ctx, CheckpointV2[memTestState]{ThreadID: "t", StepID: 1, IdempotencyKey: "sha256:1", Timestamp: time.Now()})
	_ = s.SaveCheckpointV2(ctx, CheckpointV2[memTestState]{ThreadID: "t", StepID: 2, IdempotencyKey: "sha256:2", Timestamp: time.Now()})

	latest, err := s.LoadLatestCheckpointV2(ctx, "t")
	if err != nil {
		t.Fatalf("LoadLatestCheckpointV2 failed: %v", err)
	}
	if latest.StepID != 2 {
		t.Errorf("expected latest StepID = 2, got %d", latest.StepID)
	}
}

func TestMemStore_CheckIdempotency(t *testing.T) {
	s := NewMemStore[memTestState]()
	ctx := context.Background()

	exists, err := s.CheckIdempotency(ctx, "sha256:unused")
	if err != nil || exists {
		t.Fatalf("expected (false, nil) for unused key, got (%v, %v)", exists, err)
	}

	_ = s.SaveCheckpointV2(ctx, CheckpointV2[memTestState]{ThreadID: "t", StepID: 1, IdempotencyKey: "sha256:used", Timestamp: time.Now()})

	exists, err = s.CheckIdempotency(ctx, "sha256:used")
	if err != nil || !exists {
		t.Fatalf("expected (true, nil) for used key, got (%v, %v)", exists, err)
	}
}

func TestMemStore_PendingEventsAndMarkEmitted(t *testing.T) {
	s := NewMemStore[memTestState]()
	ctx := context.Background()

	s.pendingEvents = append(s.pendingEvents,
		emit.Event{NodeID: "r6_dispatch_skills", Msg: "dispatched", Meta: map[string]interface{}{"event_id": "evt-1"}},
		emit.Event{NodeID: "r6_dispatch_skills", Msg: "dispatched", Meta: map[string]interface{}{"event_id": "evt-2"}},
		emit.Event{NodeID: "r6_dispatch_skills", Msg: "dispatched", Meta: map[string]interface{}{"event_id": "evt-3"}},
	)

	events, err := s.PendingEvents(ctx, 2)
	if err != nil {
		t.Fatalf("PendingEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events (limit), got %d", len(events))
	}

	if err := s.MarkEventsEmitted(ctx, []string{"evt-1"}); err != nil {
		t.Fatalf("MarkEventsEmitted failed: %v", err)
	}

	remaining, err := s.PendingEvents(ctx, 10)
	if err != nil {
		t.Fatalf("PendingEvents failed: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("expected 2 remaining events, got %d", len(remaining))
	}
	for _, e := range remaining {
		if e.Meta["event_id"] == "evt-1" {
			t.Error("evt-1 should have been removed after MarkEventsEmitted")
		}
	}
}

func TestMemStore_ConcurrentV2Operations(t *testing.T) {
	s := NewMemStore[memTestState]()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(step int) {
			defer wg.Done()
			key := "sha256:" + string(rune('a'+step%26)) + string(rune(step))
			_ = s.SaveCheckpointV2(ctx, CheckpointV2[memTestState]{
				ThreadID: "thread-concurrent", StepID: step, IdempotencyKey: key, Timestamp: time.Now(),
			})
		}(i)
	}
	wg.Wait()

	latest, err := s.LoadLatestCheckpointV2(ctx, "thread-concurrent")
	if err != nil {
		t.Fatalf("LoadLatestCheckpointV2 failed: %v", err)
	}
	if latest.StepID < 1 || latest.StepID > 20 {
		t.Errorf("unexpected latest step id: %d", latest.StepID)
	}
}
