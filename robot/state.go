// Package robot defines BrainState, the single aggregate value threaded
// through the kernel and react graphs, and its reducer.
package robot

import "time"

// Mode is the four-valued scheduler state.
type Mode string

const (
	ModeIDLE   Mode = "IDLE"
	ModeEXEC   Mode = "EXEC"
	ModeSAFE   Mode = "SAFE"
	ModeCHARGE Mode = "CHARGE"
)

// InterruptKind classifies a user utterance's effect on scheduling.
type InterruptKind string

const (
	InterruptNONE     InterruptKind = "NONE"
	InterruptPAUSE    InterruptKind = "PAUSE"
	InterruptSTOP     InterruptKind = "STOP"
	InterruptNEW_GOAL InterruptKind = "NEW_GOAL"
)

// ApprovalResponse is the human's reply to an ASK_HUMAN suspension.
type ApprovalResponse string

const (
	ApprovalNone    ApprovalResponse = ""
	ApprovalAPPROVE ApprovalResponse = "APPROVE"
	ApprovalEDIT    ApprovalResponse = "EDIT"
	ApprovalREJECT  ApprovalResponse = "REJECT"
)

// HCI carries the human/robot conversational surface: the last utterance,
// its classified interrupt, and any pending approval response.
type HCI struct {
	UserUtterance    string            `json:"user_utterance"`
	UserInterrupt    InterruptKind     `json:"user_interrupt"`
	InterruptPayload map[string]string `json:"interrupt_payload,omitempty"`
	ApprovalResponse ApprovalResponse  `json:"approval_response,omitempty"`
	EditParams       map[string]any    `json:"edit_params,omitempty"`
}

// Obstacle is one entry in World's obstacle list, keyed for deterministic
// summary rendering (sorted by ID).
type Obstacle struct {
	ID   string  `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Kind string  `json:"kind"`
}

// World is the semantic map summary handed to the oracle.
type World struct {
	Summary   string     `json:"summary"`
	Zones     []string   `json:"zones"`
	Obstacles []Obstacle `json:"obstacles"`
}

// Pose is the robot's position and orientation in the world frame.
type Pose struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Z           float64 `json:"z"`
	Orientation float64 `json:"orientation"`
}

// Twist is the robot's current commanded velocity.
type Twist struct {
	LinearX  float64 `json:"linear_x"`
	AngularZ float64 `json:"angular_z"`
}

// Resource names the three exclusive resources a skill may claim.
type Resource string

const (
	ResourceBase    Resource = "base"
	ResourceArm     Resource = "arm"
	ResourceGripper Resource = "gripper"
)

// AllResources enumerates the fixed resource set, used wherever a
// complete resources map must be initialized.
var AllResources = []Resource{ResourceBase, ResourceArm, ResourceGripper}

// Robot is the objective telemetry snapshot synced each tick by K2.
type Robot struct {
	Pose              Pose             `json:"pose"`
	Twist             Twist            `json:"twist"`
	BatteryPct        float64          `json:"battery_pct"`
	BatteryState      string           `json:"battery_state"`
	Resources         map[Resource]bool `json:"resources"`
	DistanceToTarget  float64          `json:"distance_to_target"`
	CollisionRisk     bool             `json:"collision_risk"`
}

// NewRobot returns a Robot with all three resources initialized to free.
func NewRobot() Robot {
	return Robot{Resources: map[Resource]bool{
		ResourceBase: false, ResourceArm: false, ResourceGripper: false,
	}}
}

// TaskStatus is a Task's lifecycle stage within the queue.
type TaskStatus string

const (
	TaskPending   TaskStatus = "PENDING"
	TaskActive    TaskStatus = "ACTIVE"
	TaskCompleted TaskStatus = "COMPLETED"
	TaskAborted   TaskStatus = "ABORTED"
)

// Task is one queued unit of work, produced from a NEW_GOAL interrupt.
type Task struct {
	ID                 string     `json:"id"`
	Goal               string     `json:"goal"`
	Priority           int        `json:"priority"`
	Deadline           *time.Time `json:"deadline,omitempty"`
	ResourcesRequired  []Resource `json:"resources_required"`
	Preemptible        bool       `json:"preemptible"`
	Status             TaskStatus `json:"status"`
	ArrivalOrder       int        `json:"arrival_order"`
}

// Tasks owns the queueing and mode-arbitration sub-state.
type Tasks struct {
	Inbox         []string `json:"inbox"`
	Queue         []Task   `json:"queue"`
	ActiveTaskID  *string  `json:"active_task_id,omitempty"`
	Mode          Mode     `json:"mode"`
	PreemptFlag   bool     `json:"preempt_flag"`
	PreemptReason string   `json:"preempt_reason,omitempty"`
}

// SkillDef is the registry's static per-skill metadata (§4.1's canonical
// eight fields).
type SkillDef struct {
	Name              string            `json:"name"`
	InterfaceKind     string            `json:"interface_kind"`
	ArgSchema         map[string]string `json:"arg_schema"`
	ResourcesRequired []Resource        `json:"resources_required"`
	Preemptible       bool              `json:"preemptible"`
	CancelSupported   bool              `json:"cancel_supported"`
	TimeoutS          int               `json:"timeout_s"`
	ErrorMap          map[string]bool   `json:"error_map"` // error_code -> recoverable
}

// RunningSkill is one in-flight dispatch tracked until R7 observes its
// completion or timeout.
type RunningSkill struct {
	GoalID             string     `json:"goal_id"`
	SkillName          string     `json:"skill_name"`
	TaskID             string     `json:"task_id"`
	Params             map[string]any `json:"params,omitempty"`
	StartTime          time.Time  `json:"start_time"`
	TimeoutS           int        `json:"timeout_s"`
	ResourcesOccupied  []Resource `json:"resources_occupied"`
}

// ResultStatus is the terminal outcome R7 publishes for a finished skill.
type ResultStatus string

const (
	ResultSUCCESS   ResultStatus = "SUCCESS"
	ResultFAILED    ResultStatus = "FAILED"
	ResultCANCELLED ResultStatus = "CANCELLED"
)

// LastResult is the most recently observed skill outcome, fed back to the
// oracle as part of R1's observation.
type LastResult struct {
	Status    ResultStatus       `json:"status"`
	ErrorCode string             `json:"error_code,omitempty"`
	ErrorMsg  string             `json:"error_msg,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

// Skills owns the registry snapshot, in-flight dispatches, and last result.
//
// Registry is carried as part of BrainState (rather than looked up
// externally on every node) so the state stays fully self-describing and
// round-trips through serialization without an external dependency.
type Skills struct {
	Registry map[string]SkillDef   `json:"registry"`
	Running  []RunningSkill        `json:"running"`
	LastResult *LastResult         `json:"last_result,omitempty"`
}

// DecisionType is the seven-value set R2 must resolve its oracle call to.
type DecisionType string

const (
	DecisionCONTINUE    DecisionType = "CONTINUE"
	DecisionREPLAN      DecisionType = "REPLAN"
	DecisionRETRY       DecisionType = "RETRY"
	DecisionSWITCHTASK  DecisionType = "SWITCH_TASK"
	DecisionASKHUMAN    DecisionType = "ASK_HUMAN"
	DecisionFINISH      DecisionType = "FINISH"
	DecisionABORT       DecisionType = "ABORT"
)

// ValidDecisionTypes is used by R2's fallback parser to check membership.
var ValidDecisionTypes = map[DecisionType]bool{
	DecisionCONTINUE: true, DecisionREPLAN: true, DecisionRETRY: true,
	DecisionSWITCHTASK: true, DecisionASKHUMAN: true, DecisionFINISH: true, DecisionABORT: true,
}

// PlanPatch is an oracle-proposed op, prior to guardrail validation.
type PlanPatch struct {
	SkillName string         `json:"skill_name"`
	Params    map[string]any `json:"params,omitempty"`
}

// Decision is R2's structured oracle output.
type Decision struct {
	Type      DecisionType `json:"type"`
	Reason    string       `json:"reason,omitempty"`
	PlanPatch []PlanPatch  `json:"plan_patch,omitempty"`
	Ops       []PlanPatch  `json:"ops,omitempty"`
}

// DispatchOp is one skill invocation R6 will issue.
type DispatchOp struct {
	SkillName string         `json:"skill_name"`
	TaskID    string         `json:"task_id,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
}

// ProposedOps is R3/R4's compiled, guardrail-checked side-effect plan.
type ProposedOps struct {
	ToCancel        []string       `json:"to_cancel,omitempty"`
	ToDispatch      []DispatchOp   `json:"to_dispatch,omitempty"`
	ToSpeak         []string       `json:"to_speak,omitempty"`
	NeedApproval    bool           `json:"need_approval"`
	ApprovalPayload map[string]any `json:"approval_payload,omitempty"`
}

// Message is one entry in the oracle conversation transcript R1 builds and
// R7 appends tool-result feedback to.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ReAct owns the inner loop's working memory: iteration count, the current
// observation, the oracle's decision, the compiled ops, and the exit reason.
type ReAct struct {
	Iter                int            `json:"iter"`
	Observation         map[string]any `json:"observation,omitempty"`
	Decision            *Decision      `json:"decision,omitempty"`
	ProposedOps         *ProposedOps   `json:"proposed_ops,omitempty"`
	StopReason          string         `json:"stop_reason,omitempty"`
	ConsecutiveFailures map[string]int `json:"consecutive_failures"`
}

// Trace is the append-only rationale log plus a metrics mapping. No node
// writes Metrics; R2's token usage and cost go to the brain.CostTracker
// handed to Wire instead.
type Trace struct {
	Log     []string           `json:"log"`
	Metrics map[string]float64 `json:"metrics"`
}

// BrainState is the single aggregate threaded through every kernel and
// react node. Messages is kept as a top-level slice rather than nested
// under ReAct since both R1 and R7 append to it across iterations and it
// is conceptually shared with the oracle adapter's input.
type BrainState struct {
	HCI      HCI      `json:"hci"`
	World    World    `json:"world"`
	Robot    Robot    `json:"robot"`
	Tasks    Tasks    `json:"tasks"`
	Skills   Skills   `json:"skills"`
	ReAct    ReAct    `json:"react"`
	Trace    Trace    `json:"trace"`
	Messages []Message `json:"messages"`
}

// New returns an empty BrainState with its zero-value sub-states properly
// initialized (non-nil maps/slices, mode=IDLE) as required at startup.
func New() BrainState {
	return BrainState{
		Robot: NewRobot(),
		Tasks: Tasks{Mode: ModeIDLE},
		Skills: Skills{Registry: map[string]SkillDef{}},
		ReAct:  ReAct{ConsecutiveFailures: map[string]int{}},
		Trace:  Trace{Metrics: map[string]float64{}},
	}
}
