// Package agent runs the bounded think-act-observe loop that answers one
// student question using the tool registry.
package agent

import (
	"errors"
	"fmt"
	"time"

	"campusnerd/internal/tools"
)

// Termination is why a question's loop stopped.
type Termination string

const (
	// Running means the loop has not terminated yet.
	Running       Termination = ""
	Answered      Termination = "answered"
	ExceededLimit Termination = "exceeded-limit"
	Aborted       Termination = "aborted"
)

// ErrLoopExceeded marks a state that ran out of steps or wall-clock time.
// It is recorded in State.Err, never returned by Run.
var ErrLoopExceeded = errors.New("agent loop exceeded its budget")

// ErrMalformedOutput is the observation for model output that names neither
// an action nor a final answer. The model gets a chance to correct itself.
var ErrMalformedOutput = fmt.Errorf("malformed model output: %w", tools.ErrToolInvocation)

// ActionKind is the closed set of things the model may ask for.
type ActionKind int

const (
	// ActionInvalid is output that could not be parsed into an action.
	ActionInvalid ActionKind = iota
	ActionTool
	ActionAnswer
)

func (k ActionKind) String() string {
	switch k {
	case ActionTool:
		return "tool"
	case ActionAnswer:
		return "answer"
	default:
		return "invalid"
	}
}

// Action is what the model chose in one step.
type Action struct {
	Kind   ActionKind
	Tool   string
	Args   map[string]any
	Answer string
}

// Step is one think-act-observe iteration.
type Step struct {
	Index       int
	Thought     string
	Action      Action
	Observation tools.Observation
	// Raw is the model output the step was parsed from.
	Raw string
}

// State is everything known about one question.
type State struct {
	ID        string
	Question  string
	Steps     []Step
	StepCount int
	MaxSteps  int
	Reason    Termination
	Answer    string
	Err       error
	Started   time.Time
	Elapsed   time.Duration
}

// Done reports whether the loop has terminated.
func (s *State) Done() bool {
	return s.Reason != Running
}

// ToolCalls returns the steps that invoked a tool.
func (s *State) ToolCalls() []Step {
	var calls []Step
	for _, step := range s.Steps {
		if step.Action.Kind == ActionTool {
			calls = append(calls, step)
		}
	}
	return calls
}

// lastStep reports whether the step being prompted is the final one. The
// counter is already incremented when the prompt is built.
func (s *State) lastStep() bool {
	return s.StepCount == s.MaxSteps
}
