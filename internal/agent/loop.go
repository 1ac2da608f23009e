package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"campusnerd/internal/extract"
	"campusnerd/internal/llm"
	"campusnerd/internal/logging"
	"campusnerd/internal/tools"

	"github.com/google/uuid"
)

// Agent answers questions with a ReAct loop over a tool registry.
type Agent struct {
	model       llm.Client
	registry    *tools.Registry
	scopes      ScopeFactory
	maxSteps    int
	timeout     time.Duration
	temperature float64
	now         func() time.Time
	onStep      func(Step)
	system      string
}

// New constructs an Agent. The tool catalogue is rendered once; the registry
// must be fully populated before New is called.
func New(model llm.Client, registry *tools.Registry, opts ...Option) *Agent {
	a := &Agent{
		model:    model,
		registry: registry,
		maxSteps: defaultMaxSteps,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.system = buildSystemPrompt(registry.Describe())
	return a
}

// MaxSteps returns the configured step budget.
func (a *Agent) MaxSteps() int {
	return a.maxSteps
}

// Answer runs the loop and returns the synthesized answer with the state.
func (a *Agent) Answer(ctx context.Context, question string) (string, *State, error) {
	state, err := a.Run(ctx, question)
	if state == nil {
		return "", nil, err
	}
	return Synthesize(state), state, err
}

// Run drives one question to a terminal state. Answered and ExceededLimit
// return a nil error; Aborted returns the cause, which wraps
// extract.ErrAuthentication when the student must log in again.
func (a *Agent) Run(ctx context.Context, question string) (*State, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("question is empty")
	}
	if a.model == nil {
		return nil, errors.New("language model is not configured")
	}

	state := &State{
		ID:       uuid.NewString(),
		Question: question,
		MaxSteps: a.maxSteps,
		Started:  a.now(),
	}
	audit := logging.AuditWithConversation(state.ID)
	audit.QuestionStart(a.maxSteps)
	log := logging.Get(logging.CategoryAgent).With("conversation", state.ID)
	log.Info("Question: %s", question)

	var env tools.Env
	if a.scopes != nil {
		scope := a.scopes()
		defer func() {
			if err := scope.Close(); err != nil {
				log.Warn("Closing browsing scope: %v", err)
			}
		}()
		env.Pages = scope
	}

	loopCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		loopCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	a.loop(ctx, loopCtx, state, env, audit)

	state.Elapsed = a.now().Sub(state.Started)
	audit.QuestionEnd(string(state.Reason), state.StepCount, state.Elapsed)
	log.Info("Terminated: %s after %d/%d steps (%v)",
		state.Reason, state.StepCount, state.MaxSteps, state.Elapsed)

	if state.Reason == Aborted {
		return state, state.Err
	}
	return state, nil
}

func (a *Agent) loop(ctx, loopCtx context.Context, state *State, env tools.Env, audit *logging.AuditLogger) {
	for {
		// Thinking: abort and budgets are checked before every model call.
		if err := ctx.Err(); err != nil {
			a.abort(state, err)
			return
		}
		if state.StepCount >= state.MaxSteps {
			a.exceed(state, fmt.Errorf("%w: %d steps", ErrLoopExceeded, state.MaxSteps))
			return
		}
		if loopCtx.Err() != nil {
			a.exceed(state, fmt.Errorf("%w: wall-clock limit %v", ErrLoopExceeded, a.timeout))
			return
		}

		state.StepCount++
		step := Step{Index: state.StepCount}

		resp, err := a.model.Complete(loopCtx, llm.Request{
			System:      a.system,
			Prompt:      buildUserPrompt(state, a.now()),
			Stop:        []string{observationStop},
			Temperature: a.temperature,
		})
		audit.LLMCall(step.Index, a.model.Model(), resp.Duration, resp.PromptTokens+resp.CompletionTokens, err)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				a.abort(state, ctx.Err())
			case loopCtx.Err() != nil:
				a.exceed(state, fmt.Errorf("%w: wall-clock limit %v", ErrLoopExceeded, a.timeout))
			default:
				a.abort(state, fmt.Errorf("completion at step %d: %w", step.Index, err))
			}
			return
		}
		step.Raw = resp.Text

		thought, action, err := parseOutput(resp.Text)
		step.Thought, step.Action = thought, action
		if err != nil {
			logging.AgentDebug("[%s] Step %d: unparseable output: %v", state.ID[:8], step.Index, err)
			audit.ActionRejected(step.Index, err)
			step.Observation = tools.Rejected(action.Tool, err)
			a.record(state, step)
			continue
		}

		if action.Kind == ActionAnswer {
			a.record(state, step)
			state.Answer = action.Answer
			state.Reason = Answered
			return
		}

		// Acting: Invoke rejects names outside the registry without running
		// anything. Tool calls are not interrupted by cancellation; abort is
		// honored at the next Thinking state.
		logging.AgentDebug("[%s] Step %d: %s %v", state.ID[:8], step.Index, action.Tool, action.Args)
		obs := a.registry.Invoke(context.WithoutCancel(ctx), env, action.Tool, action.Args)
		audit.ToolCall(step.Index, action.Tool, string(obs.Kind), obs.Duration, obs.Err)

		// Observing.
		step.Observation = obs
		a.record(state, step)

		if obs.Kind == tools.KindAuth {
			a.abort(state, fmt.Errorf("step %d: %w", step.Index, obs.Err))
			return
		}
	}
}

func (a *Agent) record(state *State, step Step) {
	state.Steps = append(state.Steps, step)
	if a.onStep != nil {
		a.onStep(step)
	}
}

func (a *Agent) abort(state *State, err error) {
	state.Reason = Aborted
	state.Err = err
	if errors.Is(err, extract.ErrAuthentication) {
		logging.AgentWarn("[%s] Session expired, aborting: %v", state.ID[:8], err)
	}
}

func (a *Agent) exceed(state *State, err error) {
	state.Reason = ExceededLimit
	state.Err = err
}
