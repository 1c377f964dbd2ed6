// Package registry implements the static skill catalog (§4.1): the fixed
// set of callable skills, their resource/timeout/error metadata, and
// lookup by name or by claimed resource.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/corebrain/robobrain/robot"
)

// ErrMissingField names the field a SkillDef registration omitted.
type ErrMissingField struct {
	SkillName string
	Field     string
}

func (e *ErrMissingField) Error() string {
	return fmt.Sprintf("skill %q: missing required field %q", e.SkillName, e.Field)
}

// Registry is a read-mostly catalog keyed by skill name.
type Registry struct {
	defs map[string]robot.SkillDef
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{defs: map[string]robot.SkillDef{}}
}

// Register adds a SkillDef, rejecting any definition missing one of the
// canonical eight fields: Name, InterfaceKind, ArgSchema, ResourcesRequired,
// Preemptible, CancelSupported, TimeoutS, ErrorMap. Preemptible and
// CancelSupported are booleans with no "unset" state, so their absence
// cannot be detected structurally; the other six are checked.
func (r *Registry) Register(def robot.SkillDef) error {
	if def.Name == "" {
		return &ErrMissingField{SkillName: def.Name, Field: "name"}
	}
	if def.InterfaceKind == "" {
		return &ErrMissingField{SkillName: def.Name, Field: "interface_kind"}
	}
	if def.ArgSchema == nil {
		return &ErrMissingField{SkillName: def.Name, Field: "arg_schema"}
	}
	if def.ResourcesRequired == nil {
		return &ErrMissingField{SkillName: def.Name, Field: "resources_required"}
	}
	if def.TimeoutS <= 0 {
		return &ErrMissingField{SkillName: def.Name, Field: "timeout_s"}
	}
	if def.ErrorMap == nil {
		return &ErrMissingField{SkillName: def.Name, Field: "error_map"}
	}

	r.defs[def.Name] = def
	return nil
}

// Lookup returns the SkillDef for name, or false if not registered.
func (r *Registry) Lookup(name string) (robot.SkillDef, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// ByResource returns every SkillDef that claims resource, sorted by name
// for deterministic iteration. R4's conflict check and Describe do not
// call it.
func (r *Registry) ByResource(resource robot.Resource) []robot.SkillDef {
	var out []robot.SkillDef
	for _, def := range r.defs {
		for _, claimed := range def.ResourcesRequired {
			if claimed == resource {
				out = append(out, def)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// All returns every registered SkillDef sorted by name.
func (r *Registry) All() []robot.SkillDef {
	out := make([]robot.SkillDef, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Describe renders a deterministic, human-readable dump of the catalog for
// trace messages and tests (not a CLI).
func (r *Registry) Describe() string {
	var b strings.Builder
	for _, def := range r.All() {
		fmt.Fprintf(&b, "%s: interface=%s resources=%v preemptible=%v cancel_supported=%v timeout_s=%d\n",
			def.Name, def.InterfaceKind, def.ResourcesRequired, def.Preemptible, def.CancelSupported, def.TimeoutS)
	}
	return b.String()
}

// NewWithBuiltins returns a Registry pre-populated with the three required
// built-in skills from §4.1.
func NewWithBuiltins() *Registry {
	r := New()
	_ = r.Register(robot.SkillDef{
		Name:              "NavigateToPose",
		InterfaceKind:     "long_running",
		ArgSchema:         map[string]string{"x": "float64", "y": "float64", "z": "float64"},
		ResourcesRequired: []robot.Resource{robot.ResourceBase},
		Preemptible:       true,
		CancelSupported:   true,
		TimeoutS:          120,
		ErrorMap: map[string]bool{
			"NAV_TIMEOUT": true, "NAV_BLOCKED": true, "NAV_GOAL_REJECTED": true,
			"RESOURCE_CONFLICT": true,
		},
	})
	_ = r.Register(robot.SkillDef{
		Name:              "StopBase",
		InterfaceKind:     "short",
		ArgSchema:         map[string]string{},
		ResourcesRequired: []robot.Resource{robot.ResourceBase},
		Preemptible:       false,
		CancelSupported:   false,
		TimeoutS:          5,
		ErrorMap:          map[string]bool{},
	})
	_ = r.Register(robot.SkillDef{
		Name:              "Speak",
		InterfaceKind:     "non_resource",
		ArgSchema:         map[string]string{"text": "string"},
		ResourcesRequired: []robot.Resource{},
		Preemptible:       false,
		CancelSupported:   false,
		TimeoutS:          5,
		ErrorMap:          map[string]bool{},
	})
	return r
}
