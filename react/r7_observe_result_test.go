package react

import (
	"context"
	"testing"
	"time"

	"github.com/corebrain/robobrain/adapters/executor"
	"github.com/corebrain/robobrain/robot"
)

func TestObserveResult_RemovesCompletedAndPublishesResult(t *testing.T) {
	mock := &executor.MockExecutor{PollResults: map[string]executor.PollResult{
		"g1": {Status: executor.PollDone, Success: true},
	}}
	state := robot.New()
	state.Skills.Running = []robot.RunningSkill{{GoalID: "g1", SkillName: "NavigateToPose", StartTime: time.Now(), TimeoutS: 60}}

	result := ObserveResult{Executor: mock}.Run(context.Background(), state)
	if len(result.Delta.Skills.Running) != 0 {
		t.Errorf("completed goal should be removed, got %+v", result.Delta.Skills.Running)
	}
	if result.Delta.Skills.LastResult == nil || result.Delta.Skills.LastResult.Status != robot.ResultSUCCESS {
		t.Errorf("last_result = %+v, want SUCCESS", result.Delta.Skills.LastResult)
	}
	if len(result.Delta.Messages) != 1 {
		t.Errorf("expected one tool-result message, got %d", len(result.Delta.Messages))
	}
	if result.Route.To != "r8_stop_or_loop" {
		t.Errorf("route = %q, want r8_stop_or_loop", result.Route.To)
	}
}

func TestObserveResult_StillRunningStaysInRunning(t *testing.T) {
	mock := &executor.MockExecutor{PollResults: map[string]executor.PollResult{"g1": {Status: executor.PollRunning}}}
	state := robot.New()
	state.Skills.Running = []robot.RunningSkill{{GoalID: "g1", SkillName: "NavigateToPose", StartTime: time.Now(), TimeoutS: 60}}

	result := ObserveResult{Executor: mock}.Run(context.Background(), state)
	if len(result.Delta.Skills.Running) != 1 {
		t.Errorf("still-running goal should stay, got %+v", result.Delta.Skills.Running)
	}
}

func TestObserveResult_TimeoutMarksFailedAndIncrementsFailures(t *testing.T) {
	mock := &executor.MockExecutor{}
	state := robot.New()
	state.Skills.Running = []robot.RunningSkill{{
		GoalID: "g1", SkillName: "NavigateToPose", StartTime: time.Now().Add(-2 * time.Minute), TimeoutS: 5,
	}}

	result := ObserveResult{Executor: mock}.Run(context.Background(), state)
	if len(result.Delta.Skills.Running) != 0 {
		t.Error("timed-out goal should be removed from running")
	}
	if result.Delta.Skills.LastResult == nil || result.Delta.Skills.LastResult.ErrorCode != "TIMEOUT" {
		t.Errorf("last_result = %+v, want TIMEOUT", result.Delta.Skills.LastResult)
	}
	if result.Delta.ReAct.ConsecutiveFailures["NavigateToPose"] != 1 {
		t.Errorf("consecutive failures = %d, want 1", result.Delta.ReAct.ConsecutiveFailures["NavigateToPose"])
	}
}

func TestObserveResult_SuccessResetsConsecutiveFailures(t *testing.T) {
	mock := &executor.MockExecutor{PollResults: map[string]executor.PollResult{"g1": {Status: executor.PollDone, Success: true}}}
	state := robot.New()
	state.ReAct.ConsecutiveFailures = map[string]int{"NavigateToPose": 2}
	state.Skills.Running = []robot.RunningSkill{{GoalID: "g1", SkillName: "NavigateToPose", StartTime: time.Now(), TimeoutS: 60}}

	result := ObserveResult{Executor: mock}.Run(context.Background(), state)
	if result.Delta.ReAct.ConsecutiveFailures["NavigateToPose"] != 0 {
		t.Errorf("consecutive failures should reset to 0 on success, got %d", result.Delta.ReAct.ConsecutiveFailures["NavigateToPose"])
	}
}
