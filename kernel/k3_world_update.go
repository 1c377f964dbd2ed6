package kernel

import (
	"context"
	"sort"
	"strings"
	"text/template"

	"github.com/corebrain/robobrain/brain"
	"github.com/corebrain/robobrain/robot"
)

// worldSummaryTemplate renders zones and obstacles in stable sorted order
// so the textual summary is deterministic regardless of input order (D.2).
var worldSummaryTemplate = template.Must(template.New("world").Parse(
	`Zones: {{range $i, $z := .Zones}}{{if $i}}, {{end}}{{$z}}{{end}}. ` +
		`Obstacles: {{if not .Obstacles}}none{{end}}{{range $i, $o := .Obstacles}}{{if $i}}, {{end}}{{$o.ID}} ({{$o.Kind}} at {{$o.X}},{{$o.Y}}){{end}}.`))

// WorldUpdate is K3: produces a deterministic textual summary from zones
// and obstacles, suitable for oracle consumption.
type WorldUpdate struct{}

// Run implements brain.Node.
func (WorldUpdate) Run(ctx context.Context, state robot.BrainState) brain.NodeResult[robot.BrainState] {
	next := state

	zones := append([]string{}, state.World.Zones...)
	sort.Strings(zones)

	obstacles := append([]robot.Obstacle{}, state.World.Obstacles...)
	sort.Slice(obstacles, func(i, j int) bool { return obstacles[i].ID < obstacles[j].ID })

	var b strings.Builder
	_ = worldSummaryTemplate.Execute(&b, struct {
		Zones     []string
		Obstacles []robot.Obstacle
	}{Zones: zones, Obstacles: obstacles})

	next.World.Summary = b.String()

	return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Goto("k4_event_arbitrate")}
}
