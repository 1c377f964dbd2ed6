package react

import (
	"context"
	"testing"

	"github.com/corebrain/robobrain/adapters/executor"
	"github.com/corebrain/robobrain/registry"
	"github.com/corebrain/robobrain/robot"
)

func TestDispatchSkills_CancelsBeforeDispatching(t *testing.T) {
	mock := &executor.MockExecutor{}
	state := robot.New()
	state.Skills.Running = []robot.RunningSkill{{GoalID: "g1", SkillName: "NavigateToPose", ResourcesOccupied: []robot.Resource{robot.ResourceBase}}}
	state.ReAct.ProposedOps = &robot.ProposedOps{
		ToCancel:   []string{"g1"},
		ToDispatch: []robot.DispatchOp{{SkillName: "NavigateToPose", Params: map[string]any{"x": 1.0}}},
	}

	node := DispatchSkills{Executor: mock, Registry: registry.NewWithBuiltins()}
	result := node.Run(context.Background(), state)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if len(mock.CancelCalls) != 1 || mock.CancelCalls[0] != "g1" {
		t.Errorf("cancel calls = %v, want [g1]", mock.CancelCalls)
	}
	if len(mock.DispatchCalls) != 1 {
		t.Errorf("dispatch calls = %+v, want 1", mock.DispatchCalls)
	}
	if len(result.Delta.Skills.Running) != 1 || result.Delta.Skills.Running[0].GoalID == "g1" {
		t.Errorf("running = %+v, want the cancelled goal removed and the new one present", result.Delta.Skills.Running)
	}
	if !result.Delta.Robot.Resources[robot.ResourceBase] {
		t.Error("base resource should be marked occupied after successful dispatch")
	}
}

func TestDispatchSkills_IdempotentDispatchAcrossReplay(t *testing.T) {
	mock := &executor.MockExecutor{}
	state := robot.New()
	state.ReAct.Iter = 3
	state.ReAct.ProposedOps = &robot.ProposedOps{ToDispatch: []robot.DispatchOp{{SkillName: "Speak", Params: map[string]any{"text": "hi"}}}}

	node := DispatchSkills{Executor: mock, Registry: registry.NewWithBuiltins()}
	r1 := node.Run(context.Background(), state)
	r2 := node.Run(context.Background(), state)

	if len(mock.DispatchCalls) != 1 {
		t.Errorf("replaying the same state should dedup the dispatch, got %d calls", len(mock.DispatchCalls))
	}
	if r1.Delta.Skills.Running[0].GoalID != r2.Delta.Skills.Running[0].GoalID {
		t.Error("replayed dispatch should resolve to the same goal id")
	}
}

func TestDispatchSkills_SpeaksToSpeakMessages(t *testing.T) {
	mock := &executor.MockExecutor{}
	state := robot.New()
	state.ReAct.ProposedOps = &robot.ProposedOps{ToSpeak: []string{"arrived at destination"}}

	node := DispatchSkills{Executor: mock, Registry: registry.NewWithBuiltins()}
	node.Run(context.Background(), state)
	if len(mock.SpeakCalls) != 1 || mock.SpeakCalls[0].Text != "arrived at destination" {
		t.Errorf("speak calls = %+v", mock.SpeakCalls)
	}
}

func TestDispatchSkills_PreviousStateResourcesUntouched(t *testing.T) {
	mock := &executor.MockExecutor{}
	state := robot.New()
	state.ReAct.ProposedOps = &robot.ProposedOps{ToDispatch: []robot.DispatchOp{
		{SkillName: "NavigateToPose", Params: map[string]any{"x": 1.0}},
	}}

	before := state.Robot.Resources[robot.ResourceBase]
	DispatchSkills{Executor: mock, Registry: registry.NewWithBuiltins()}.Run(context.Background(), state)
	if state.Robot.Resources[robot.ResourceBase] != before {
		t.Error("dispatching against a copy must not mutate the caller's original state map")
	}
}
