package brain

import "testing"

type checkpointTestState struct {
	Mode string
}

func TestComputeIdempotencyKey_Deterministic(t *testing.T) {
	state := checkpointTestState{Mode: "AUTONOMOUS"}

	key1, err := computeIdempotencyKey("thread-001", 5, state)
	if err != nil {
		t.Fatalf("computeIdempotencyKey failed: %v", err)
	}
	key2, err := computeIdempotencyKey("thread-001", 5, state)
	if err != nil {
		t.Fatalf("computeIdempotencyKey failed: %v", err)
	}
	if key1 != key2 {
		t.Error("same inputs produced different idempotency keys")
	}
}

func TestComputeIdempotencyKey_DiffersByStep(t *testing.T) {
	state := checkpointTestState{Mode: "AUTONOMOUS"}

	key1, _ := computeIdempotencyKey("thread-001", 5, state)
	key2, _ := computeIdempotencyKey("thread-001", 6, state)
	if key1 == key2 {
		t.Error("different steps produced the same idempotency key")
	}
}

func TestComputeIdempotencyKey_DiffersByThread(t *testing.T) {
	state := checkpointTestState{Mode: "AUTONOMOUS"}

	key1, _ := computeIdempotencyKey("thread-001", 5, state)
	key2, _ := computeIdempotencyKey("thread-002", 5, state)
	if key1 == key2 {
		t.Error("different threads produced the same idempotency key")
	}
}

func TestComputeIdempotencyKey_DiffersByState(t *testing.T) {
	key1, _ := computeIdempotencyKey("thread-001", 5, checkpointTestState{Mode: "AUTONOMOUS"})
	key2, _ := computeIdempotencyKey("thread-001", 5, checkpointTestState{Mode: "SAFE"})
	if key1 == key2 {
		t.Error("different states produced the same idempotency key")
	}
}

func TestCheckpoint_Fields(t *testing.T) {
	cp := Checkpoint[checkpointTestState]{
		ThreadID: "thread-001", StepID: 3, NodeID: "r5_human_approval",
		NextNode: "r5_human_approval", State: checkpointTestState{Mode: "SAFE"},
		Label: "suspended:r5_human_approval",
	}
	if cp.Label != "suspended:r5_human_approval" {
		t.Errorf("Label = %q", cp.Label)
	}
}
