package kernel

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/corebrain/robobrain/brain"
	"github.com/corebrain/robobrain/robot"
)

// TaskQueue is K5: drains the inbox into the queue, assigns stable task
// ids, keeps the queue ordered, and maintains active_task_id.
type TaskQueue struct{}

// Run implements brain.Node.
func (TaskQueue) Run(ctx context.Context, state robot.BrainState) brain.NodeResult[robot.BrainState] {
	next := state

	inbox := append([]string{}, state.Tasks.Inbox...)
	if state.HCI.UserInterrupt == robot.InterruptNEW_GOAL {
		if goal, ok := state.HCI.InterruptPayload["goal_text"]; ok && goal != "" {
			inbox = append(inbox, goal)
		}
	}

	queue := append([]robot.Task{}, state.Tasks.Queue...)
	arrival := len(queue)
	for _, goal := range inbox {
		queue = append(queue, robot.Task{
			ID:                uuid.NewString(),
			Goal:              goal,
			Priority:          0,
			ResourcesRequired: []robot.Resource{robot.ResourceBase},
			Preemptible:       true,
			Status:            robot.TaskPending,
			ArrivalOrder:      arrival,
		})
		arrival++
	}

	sort.SliceStable(queue, func(i, j int) bool {
		if queue[i].Priority != queue[j].Priority {
			return queue[i].Priority > queue[j].Priority
		}
		di, dj := queue[i].Deadline, queue[j].Deadline
		if di != nil && dj != nil && !di.Equal(*dj) {
			return di.Before(*dj)
		}
		if di != nil && dj == nil {
			return true
		}
		if di == nil && dj != nil {
			return false
		}
		return queue[i].ArrivalOrder < queue[j].ArrivalOrder
	})

	activeTaskID := state.Tasks.ActiveTaskID

	if activeTaskID != nil && state.Tasks.PreemptFlag {
		if t, ok := findTask(queue, *activeTaskID); ok && t.Preemptible {
			activeTaskID = nil
		}
	}

	if activeTaskID == nil && state.Tasks.Mode == robot.ModeEXEC {
		for i := range queue {
			if queue[i].Status == robot.TaskPending {
				id := queue[i].ID
				activeTaskID = &id
				queue[i].Status = robot.TaskActive
				break
			}
		}
	}

	next.Tasks.Inbox = nil
	next.Tasks.Queue = queue
	next.Tasks.ActiveTaskID = activeTaskID

	return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Goto("k6_kernel_route")}
}

func findTask(queue []robot.Task, id string) (robot.Task, bool) {
	for _, t := range queue {
		if t.ID == id {
			return t, true
		}
	}
	return robot.Task{}, false
}
