package kernel

import (
	"context"
	"testing"

	"github.com/corebrain/robobrain/robot"
)

func TestWorldUpdate_DeterministicOrdering(t *testing.T) {
	state := robot.New()
	state.World.Zones = []string{"kitchen", "bedroom", "hallway"}
	state.World.Obstacles = []robot.Obstacle{
		{ID: "ob-2", X: 1, Y: 2, Kind: "box"},
		{ID: "ob-1", X: 0, Y: 0, Kind: "person"},
	}

	r1 := WorldUpdate{}.Run(context.Background(), state)
	r2 := WorldUpdate{}.Run(context.Background(), state)

	if r1.Delta.World.Summary != r2.Delta.World.Summary {
		t.Fatal("summary is not deterministic across identical inputs")
	}
	want := "Zones: bedroom, hallway, kitchen. Obstacles: ob-1 (person at 0,0), ob-2 (box at 1,2)."
	if r1.Delta.World.Summary != want {
		t.Errorf("summary = %q, want %q", r1.Delta.World.Summary, want)
	}
	if r1.Route.To != "k4_event_arbitrate" {
		t.Errorf("route = %q, want k4_event_arbitrate", r1.Route.To)
	}
}

func TestWorldUpdate_NoObstacles(t *testing.T) {
	state := robot.New()
	state.World.Zones = []string{"lobby"}

	result := WorldUpdate{}.Run(context.Background(), state)
	want := "Zones: lobby. Obstacles: none."
	if result.Delta.World.Summary != want {
		t.Errorf("summary = %q, want %q", result.Delta.World.Summary, want)
	}
}
