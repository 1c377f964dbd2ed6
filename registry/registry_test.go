package registry

import (
	"testing"

	"github.com/corebrain/robobrain/robot"
)

func TestNewWithBuiltins_AllEightFields(t *testing.T) {
	r := NewWithBuiltins()
	for _, name := range []string{"NavigateToPose", "StopBase", "Speak"} {
		def, ok := r.Lookup(name)
		if !ok {
			t.Fatalf("built-in %q not registered", name)
		}
		if def.InterfaceKind == "" || def.ArgSchema == nil || def.ResourcesRequired == nil ||
			def.TimeoutS == 0 || def.ErrorMap == nil {
			t.Errorf("%q missing one of the canonical eight fields: %+v", name, def)
		}
	}
}

func TestRegister_RejectsMissingFields(t *testing.T) {
	r := New()
	err := r.Register(robot.SkillDef{Name: "Incomplete"})
	if err == nil {
		t.Fatal("expected error registering a def missing required fields")
	}
}

func TestLookup_NotFound(t *testing.T) {
	r := New()
	if _, ok := r.Lookup("Nonexistent"); ok {
		t.Error("expected lookup miss for unregistered skill")
	}
}

func TestByResource(t *testing.T) {
	r := NewWithBuiltins()
	baseUsers := r.ByResource(robot.ResourceBase)
	if len(baseUsers) != 2 {
		t.Fatalf("expected 2 skills claiming base, got %d", len(baseUsers))
	}
	if baseUsers[0].Name != "NavigateToPose" || baseUsers[1].Name != "StopBase" {
		t.Errorf("ByResource not sorted by name: %+v", baseUsers)
	}

	gripperUsers := r.ByResource(robot.ResourceGripper)
	if len(gripperUsers) != 0 {
		t.Errorf("expected no skill claiming gripper, got %d", len(gripperUsers))
	}
}

func TestDescribe_Deterministic(t *testing.T) {
	r := NewWithBuiltins()
	d1 := r.Describe()
	d2 := r.Describe()
	if d1 != d2 {
		t.Error("Describe output is not deterministic across calls")
	}
	if d1 == "" {
		t.Error("Describe returned empty output")
	}
}
