// Package robobrain wires the Kernel (K1-K6) and ReAct (R1-R8) nodes into
// a single checkpointable graph over BrainState: the driver a host process
// drives one tick at a time (§2).
package robobrain

import (
	"time"

	"github.com/corebrain/robobrain/adapters/executor"
	"github.com/corebrain/robobrain/adapters/oracle"
	"github.com/corebrain/robobrain/adapters/telemetry"
	"github.com/corebrain/robobrain/brain"
	"github.com/corebrain/robobrain/brain/emit"
	"github.com/corebrain/robobrain/brain/store"
	"github.com/corebrain/robobrain/kernel"
	"github.com/corebrain/robobrain/react"
	"github.com/corebrain/robobrain/registry"
	"github.com/corebrain/robobrain/robot"
)

// retryableNodeError reports whether err's NodeError.Code is one of the
// given adapter-failure codes, treating every other error (bad JSON,
// guardrail rejections, programmer errors) as non-retryable.
func retryableNodeError(codes ...string) func(error) bool {
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return func(err error) bool {
		ne, ok := err.(*brain.NodeError)
		if !ok {
			return false
		}
		return set[ne.Code]
	}
}

// Adapters bundles the external collaborators the graph drives: oracle,
// executor, and telemetry (§6).
type Adapters struct {
	Oracle    oracle.Oracle
	Executor  executor.Executor
	Telemetry telemetry.Telemetry
}

// Wire assembles a brain.Engine over BrainState with every K1-K6 and
// R1-R8 node registered and connected per the flow in §2:
// K1->K2->K3->K4->K5->K6; while mode=EXEC, R1->R2->...->R8 loops back to
// R1 until it exits.
// emitter defaults to a JSON-mode LogEmitter on stdout when the host
// doesn't supply one, so every tick's node transitions are always
// observable, non-goal or not (§9).
func Wire(reg *registry.Registry, ad Adapters, st store.Store[robot.BrainState], costTracker *brain.CostTracker, opts brain.Options, emitter emit.Emitter) (*brain.Engine[robot.BrainState], error) {
	opts.CostTracker = costTracker
	if emitter == nil {
		emitter = emit.NewLogEmitter(nil, true)
	}
	eng := brain.New[robot.BrainState](robot.Reduce, st, emitter, opts)

	guardrails := react.GuardrailsCheck{Registry: reg}

	nodes := map[string]brain.Node[robot.BrainState]{
		"k1_hci_ingress":          kernel.HCIIngress{},
		"k2_telemetry_sync":       kernel.TelemetrySync{Telemetry: ad.Telemetry},
		"k3_world_update":         kernel.WorldUpdate{},
		"k4_event_arbitrate":      kernel.EventArbitrate{},
		"k5_task_queue":           kernel.TaskQueue{},
		"k6_kernel_route":         kernel.KernelRoute{},
		"k6_safe_handler":         kernel.SafeHandler{Executor: ad.Executor},
		"k6_charge_handler":       kernel.ChargeHandler{Executor: ad.Executor},
		"k6_idle_preempt_handler": kernel.IdlePreemptHandler{Executor: ad.Executor},
		"r1_build_observation":    react.BuildObservation{},
		"r2_react_decide":         react.ReActDecide{Oracle: ad.Oracle, Registry: reg, CostTracker: costTracker},
		"r3_compile_ops":          react.CompileOps{},
		"r4_guardrails_check":     guardrails,
		"r5_human_approval":       react.HumanApproval{Guardrails: guardrails},
		"r6_dispatch_skills":      react.DispatchSkills{Executor: ad.Executor, Registry: reg},
		"r7_observe_result":       react.ObserveResult{Executor: ad.Executor},
		"r8_stop_or_loop":         react.StopOrLoop{},
	}

	policies := map[string]*brain.NodePolicy{
		"r2_react_decide": {
			RetryPolicy: &brain.RetryPolicy{
				MaxAttempts: 3,
				BaseDelay:   200 * time.Millisecond,
				MaxDelay:    2 * time.Second,
				Retryable:   retryableNodeError("ORACLE_ERROR"),
			},
		},
		"r6_dispatch_skills": {
			RetryPolicy: &brain.RetryPolicy{
				MaxAttempts: 3,
				BaseDelay:   200 * time.Millisecond,
				MaxDelay:    2 * time.Second,
				Retryable:   retryableNodeError("DISPATCH_ERROR", "CANCEL_ERROR", "SPEAK_ERROR"),
			},
		},
	}

	for id, node := range nodes {
		if err := eng.AddWithPolicy(id, node, policies[id]); err != nil {
			return nil, err
		}
	}

	if err := eng.StartAt("k1_hci_ingress"); err != nil {
		return nil, err
	}

	return eng, nil
}
