package kernel

import (
	"context"
	"testing"

	"github.com/corebrain/robobrain/robot"
)

func TestTaskQueue_DrainsNewGoalIntoQueue(t *testing.T) {
	state := robot.New()
	state.HCI.UserInterrupt = robot.InterruptNEW_GOAL
	state.HCI.InterruptPayload = map[string]string{"goal_text": "kitchen"}
	state.Tasks.Mode = robot.ModeEXEC

	result := TaskQueue{}.Run(context.Background(), state)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if len(result.Delta.Tasks.Queue) != 1 {
		t.Fatalf("queue length = %d, want 1", len(result.Delta.Tasks.Queue))
	}
	task := result.Delta.Tasks.Queue[0]
	if task.Goal != "kitchen" || task.ID == "" {
		t.Errorf("task = %+v, want goal=kitchen with a non-empty id", task)
	}
	if task.Status != robot.TaskActive {
		t.Errorf("task status = %v, want ACTIVE (mode=EXEC, no prior active task)", task.Status)
	}
	if result.Delta.Tasks.ActiveTaskID == nil || *result.Delta.Tasks.ActiveTaskID != task.ID {
		t.Errorf("active_task_id = %v, want %v", result.Delta.Tasks.ActiveTaskID, task.ID)
	}
	if len(result.Delta.Tasks.Inbox) != 0 {
		t.Errorf("inbox should be drained, got %v", result.Delta.Tasks.Inbox)
	}
	if result.Route.To != "k6_kernel_route" {
		t.Errorf("route = %q, want k6_kernel_route", result.Route.To)
	}
}

func TestTaskQueue_SortsByPriorityThenDeadlineThenArrival(t *testing.T) {
	state := robot.New()
	state.Tasks.Queue = []robot.Task{
		{ID: "a", Goal: "low", Priority: 0, ArrivalOrder: 0},
		{ID: "b", Goal: "high", Priority: 5, ArrivalOrder: 1},
		{ID: "c", Goal: "also-low", Priority: 0, ArrivalOrder: 2},
	}

	result := TaskQueue{}.Run(context.Background(), state)
	queue := result.Delta.Tasks.Queue
	if queue[0].ID != "b" {
		t.Errorf("highest priority task should sort first, got %+v", queue)
	}
	if queue[1].ID != "a" || queue[2].ID != "c" {
		t.Errorf("equal-priority tasks should preserve arrival order, got %+v", queue)
	}
}

func TestTaskQueue_PreemptClearsPreemptibleActiveTask(t *testing.T) {
	active := "task-1"
	state := robot.New()
	state.Tasks.Queue = []robot.Task{{ID: active, Goal: "nav", Preemptible: true, Status: robot.TaskActive}}
	state.Tasks.ActiveTaskID = &active
	state.Tasks.PreemptFlag = true

	result := TaskQueue{}.Run(context.Background(), state)
	if result.Delta.Tasks.ActiveTaskID != nil {
		t.Errorf("preemptible active task should be cleared on preempt, got %v", result.Delta.Tasks.ActiveTaskID)
	}
}

func TestTaskQueue_NonPreemptibleActiveTaskSurvivesPreempt(t *testing.T) {
	active := "task-1"
	state := robot.New()
	state.Tasks.Queue = []robot.Task{{ID: active, Goal: "stop", Preemptible: false, Status: robot.TaskActive}}
	state.Tasks.ActiveTaskID = &active
	state.Tasks.PreemptFlag = true

	result := TaskQueue{}.Run(context.Background(), state)
	if result.Delta.Tasks.ActiveTaskID == nil || *result.Delta.Tasks.ActiveTaskID != active {
		t.Errorf("non-preemptible active task should survive preempt, got %v", result.Delta.Tasks.ActiveTaskID)
	}
}
