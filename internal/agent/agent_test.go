package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"campusnerd/internal/extract"
	"campusnerd/internal/llm"
	"campusnerd/internal/tools"
	"campusnerd/internal/tools/campus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =============================================================================
// TEST DOUBLES
// =============================================================================

// scriptedLLM answers each call with respond(call, prompt).
type scriptedLLM struct {
	respond func(call int, prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

func (s *scriptedLLM) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, req.Prompt)
	call := len(s.prompts)
	s.mu.Unlock()

	text, err := s.respond(call, req.Prompt)
	if err != nil {
		return llm.Response{}, err
	}
	return llm.Response{Text: text, Model: "stub"}, nil
}

func (s *scriptedLLM) Model() string { return "stub" }

func (s *scriptedLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func replies(texts ...string) *scriptedLLM {
	return &scriptedLLM{respond: func(call int, _ string) (string, error) {
		if call > len(texts) {
			return texts[len(texts)-1], nil
		}
		return texts[call-1], nil
	}}
}

type fakeExtractor struct {
	courses   []extract.Course
	deadlines []extract.Deadline
	err       error
	calls     atomic.Int32
}

func (f *fakeExtractor) ListCourses(ctx context.Context, src extract.PageSource) ([]extract.Course, error) {
	f.calls.Add(1)
	if _, err := src.Page(ctx); err != nil {
		return nil, err
	}
	return f.courses, f.err
}

func (f *fakeExtractor) ListDeadlines(ctx context.Context, src extract.PageSource) ([]extract.Deadline, error) {
	f.calls.Add(1)
	if _, err := src.Page(ctx); err != nil {
		return nil, err
	}
	return append([]extract.Deadline(nil), f.deadlines...), f.err
}

type staticPage struct {
	url  string
	html string
}

func (p *staticPage) Navigate(_ context.Context, url string) error { p.url = url; return nil }
func (p *staticPage) URL() string                                   { return p.url }
func (p *staticPage) HTML(context.Context) (string, error)          { return p.html, nil }

type testScope struct {
	page      extract.Page
	pageCalls atomic.Int32
	closes    atomic.Int32
}

func (s *testScope) Page(context.Context) (extract.Page, error) {
	s.pageCalls.Add(1)
	return s.page, nil
}

func (s *testScope) Close() error {
	s.closes.Add(1)
	return nil
}

func newRegistry(t *testing.T, ex campus.Extractor) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	require.NoError(t, campus.RegisterAll(reg, ex))
	return reg
}

func scopeFactory(s *testScope) Option {
	return WithScopes(func() Scope { return s })
}

var paris = time.FixedZone("CEST", 2*60*60)

func fixedClock() time.Time {
	return time.Date(2024, 4, 18, 10, 30, 0, 0, paris)
}

func lastObservation(prompt string) string {
	i := strings.LastIndex(prompt, "Observation: ")
	if i < 0 {
		return ""
	}
	rest := prompt[i+len("Observation: "):]
	if j := strings.IndexByte(rest, '\n'); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

const callCourses = "Thought: I need the student's courses.\nAction: list_courses\nAction Input: {}"
const callDeadlines = "Thought: I need the deadlines.\nAction: list_deadlines\nAction Input: {}"

// =============================================================================
// SCENARIOS
// =============================================================================

func TestAgent_GroundedCourseFilter(t *testing.T) {
	ex := &fakeExtractor{courses: []extract.Course{
		{Name: "Math", Category: "Sciences", Progress: 40},
		{Name: "History", Category: "Humanities", Progress: 90},
	}}
	scope := &testScope{page: &staticPage{}}

	model := &scriptedLLM{respond: func(call int, prompt string) (string, error) {
		if call == 1 {
			return callCourses, nil
		}
		var got struct {
			Courses []extract.Course `json:"courses"`
		}
		if err := json.Unmarshal([]byte(lastObservation(prompt)), &got); err != nil {
			return "", err
		}
		var names []string
		for _, c := range got.Courses {
			if c.Category == "Sciences" {
				names = append(names, c.Name)
			}
		}
		return "Thought: I can answer now.\nFinal Answer: Your Sciences courses: " + strings.Join(names, ", ") + ".", nil
	}}

	a := New(model, newRegistry(t, ex), scopeFactory(scope), WithClock(fixedClock))
	answer, state, err := a.Answer(context.Background(), "List my Sciences courses")
	require.NoError(t, err)

	assert.Equal(t, Answered, state.Reason)
	assert.Contains(t, answer, "Math")
	assert.NotContains(t, answer, "History")
	assert.Len(t, state.ToolCalls(), 1)
	assert.Equal(t, int32(1), scope.closes.Load())
}

func TestAgent_NextDeadline(t *testing.T) {
	ex := &fakeExtractor{deadlines: []extract.Deadline{
		{Course: "CourseA", Title: "Final project", Due: time.Date(2024, 5, 1, 23, 59, 0, 0, paris)},
		{Course: "CourseB", Title: "Essay", Due: time.Date(2024, 4, 20, 14, 0, 0, 0, paris)},
	}}
	scope := &testScope{page: &staticPage{}}

	model := &scriptedLLM{respond: func(call int, prompt string) (string, error) {
		if call == 1 {
			return callDeadlines, nil
		}
		var got struct {
			Deadlines []struct {
				Course string `json:"course"`
				Title  string `json:"title"`
				Due    string `json:"due"`
			} `json:"deadlines"`
		}
		if err := json.Unmarshal([]byte(lastObservation(prompt)), &got); err != nil {
			return "", err
		}
		next := got.Deadlines[0]
		return fmt.Sprintf("Final Answer: Your next deadline is %s for %s, due %s.", next.Title, next.Course, next.Due[:10]), nil
	}}

	answer, state, err := New(model, newRegistry(t, ex), scopeFactory(scope)).
		Answer(context.Background(), "When is my next deadline?")
	require.NoError(t, err)

	assert.Equal(t, Answered, state.Reason)
	assert.Contains(t, answer, "CourseB")
	assert.Contains(t, answer, "2024-04-20")
}

func TestAgent_DegenerateExtraction(t *testing.T) {
	ex := extract.New(extract.Config{
		RetryAttempts: 2,
		RetryInitial:  time.Millisecond,
		RetryMax:      time.Millisecond,
		SettleTimeout: 10 * time.Millisecond,
		SettlePoll:    time.Millisecond,
	})
	scope := &testScope{page: &staticPage{html: `<html><body><main><p>Maintenance in progress</p></main></body></html>`}}

	model := &scriptedLLM{respond: func(call int, prompt string) (string, error) {
		if call == 1 {
			return callCourses, nil
		}
		if strings.HasPrefix(lastObservation(prompt), "ERROR") {
			return "Thought: the tool failed.\nFinal Answer: Sorry, your courses could not be retrieved: the dashboard layout was not recognized.", nil
		}
		return "Final Answer: You have 12 courses.", nil
	}}

	answer, state, err := New(model, newRegistry(t, ex), scopeFactory(scope)).
		Answer(context.Background(), "What are my courses?")
	require.NoError(t, err)

	require.Len(t, state.Steps, 2)
	obs := state.Steps[0].Observation
	assert.True(t, obs.Failed())
	assert.Equal(t, tools.KindScrapeParse, obs.Kind)
	assert.ErrorIs(t, obs.Err, extract.ErrScrapeParse)
	assert.Equal(t, Answered, state.Reason)
	assert.Contains(t, answer, "could not be retrieved")
}

func TestAgent_NoToolPath(t *testing.T) {
	ex := &fakeExtractor{}
	scope := &testScope{page: &staticPage{}}
	model := replies("Thought: This is general knowledge.\nFinal Answer: Python is a programming language.")

	answer, state, err := New(model, newRegistry(t, ex), scopeFactory(scope)).
		Answer(context.Background(), "What is Python?")
	require.NoError(t, err)

	assert.Equal(t, "Python is a programming language.", answer)
	assert.Empty(t, state.ToolCalls())
	assert.Equal(t, 1, state.StepCount)
	assert.Equal(t, int32(0), ex.calls.Load())
	assert.Equal(t, int32(0), scope.pageCalls.Load(), "browsing context is never leased")
	assert.Equal(t, int32(1), scope.closes.Load())
}

func TestAgent_LoopBudget(t *testing.T) {
	for _, maxSteps := range []int{1, 3, 6} {
		t.Run(fmt.Sprint(maxSteps), func(t *testing.T) {
			ex := &fakeExtractor{}
			scope := &testScope{page: &staticPage{}}
			model := replies(callCourses)

			answer, state, err := New(model, newRegistry(t, ex), scopeFactory(scope), WithMaxSteps(maxSteps)).
				Answer(context.Background(), "What are my courses?")
			require.NoError(t, err)

			assert.Equal(t, ExceededLimit, state.Reason)
			assert.ErrorIs(t, state.Err, ErrLoopExceeded)
			assert.Equal(t, maxSteps, state.StepCount)
			assert.Len(t, state.Steps, maxSteps)
			assert.Equal(t, maxSteps, model.calls())
			assert.Equal(t, FallbackExceeded, answer)
			assert.Equal(t, int32(1), scope.closes.Load())
		})
	}
}

func TestAgent_MalformedOutputConsumesSteps(t *testing.T) {
	model := replies("I am not sure what to do.")

	state, err := New(model, newRegistry(t, &fakeExtractor{}), WithMaxSteps(3)).
		Run(context.Background(), "What are my courses?")
	require.NoError(t, err)

	assert.Equal(t, ExceededLimit, state.Reason)
	require.Len(t, state.Steps, 3)
	for _, step := range state.Steps {
		assert.Equal(t, ActionInvalid, step.Action.Kind)
		assert.ErrorIs(t, step.Observation.Err, ErrMalformedOutput)
		assert.Equal(t, tools.KindToolInvocation, step.Observation.Kind)
	}
}

func TestAgent_UnknownToolSelfCorrection(t *testing.T) {
	ex := &fakeExtractor{courses: []extract.Course{{Name: "Math", Category: "Sciences", Progress: 40}}}
	scope := &testScope{page: &staticPage{}}

	model := &scriptedLLM{respond: func(call int, prompt string) (string, error) {
		switch call {
		case 1:
			return "Thought: I will fetch grades.\nAction: get_grades\nAction Input: {}", nil
		case 2:
			if !strings.Contains(lastObservation(prompt), "unknown tool") {
				return "Final Answer: unexpected", nil
			}
			return callCourses, nil
		default:
			return "Final Answer: You are enrolled in Math.", nil
		}
	}}

	answer, state, err := New(model, newRegistry(t, ex), scopeFactory(scope)).
		Answer(context.Background(), "What are my courses?")
	require.NoError(t, err)

	require.Len(t, state.Steps, 3)
	first := state.Steps[0].Observation
	assert.ErrorIs(t, first.Err, tools.ErrUnknownTool)
	assert.Equal(t, tools.KindToolInvocation, first.Kind)
	assert.Contains(t, first.Err.Error(), "list_courses", "available tools are listed")
	assert.False(t, state.Steps[1].Observation.Failed())
	assert.Equal(t, int32(1), ex.calls.Load(), "unknown tool is never executed")
	assert.Equal(t, "You are enrolled in Math.", answer)
}

func TestAgent_ArgumentsRejected(t *testing.T) {
	ex := &fakeExtractor{}
	model := replies(
		"Thought: filter server side.\nAction: list_courses\nAction Input: {\"category\": \"Sciences\"}",
		"Final Answer: done",
	)

	state, err := New(model, newRegistry(t, ex), scopeFactory(&testScope{page: &staticPage{}})).
		Run(context.Background(), "List my Sciences courses")
	require.NoError(t, err)

	assert.ErrorIs(t, state.Steps[0].Observation.Err, tools.ErrInvalidArguments)
	assert.Equal(t, int32(0), ex.calls.Load())
	assert.Equal(t, Answered, state.Reason)
}

func TestAgent_AbortBeforeFirstStep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scope := &testScope{page: &staticPage{}}
	model := replies(callCourses)

	answer, state, err := New(model, newRegistry(t, &fakeExtractor{}), scopeFactory(scope)).
		Answer(ctx, "What are my courses?")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Aborted, state.Reason)
	assert.Equal(t, 0, model.calls())
	assert.Equal(t, FallbackAborted, answer)
	assert.Equal(t, int32(1), scope.closes.Load())
}

func TestAgent_AbortBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ex := &fakeExtractor{courses: []extract.Course{{Name: "Math"}}}
	scope := &testScope{page: &staticPage{}}
	model := replies(callCourses)

	state, err := New(model, newRegistry(t, ex), scopeFactory(scope),
		WithStepHook(func(Step) { cancel() }),
	).Run(ctx, "What are my courses?")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Aborted, state.Reason)
	assert.Equal(t, 1, state.StepCount)
	assert.False(t, state.Steps[0].Observation.Failed(), "the running tool call completes")
	assert.Equal(t, int32(1), scope.closes.Load())
}

func TestAgent_AuthenticationAborts(t *testing.T) {
	ex := &fakeExtractor{err: fmt.Errorf("%w: redirected to login", extract.ErrAuthentication)}
	scope := &testScope{page: &staticPage{}}
	model := replies(callCourses, "Final Answer: should not be reached")

	answer, state, err := New(model, newRegistry(t, ex), scopeFactory(scope)).
		Answer(context.Background(), "What are my courses?")

	require.Error(t, err)
	assert.ErrorIs(t, err, extract.ErrAuthentication)
	assert.Equal(t, Aborted, state.Reason)
	assert.Equal(t, tools.KindAuth, state.Steps[0].Observation.Kind)
	assert.Equal(t, 1, model.calls())
	assert.Equal(t, FallbackAuth, answer)
	assert.Equal(t, int32(1), scope.closes.Load())
}

func TestAgent_BackendFailure(t *testing.T) {
	model := &scriptedLLM{respond: func(int, string) (string, error) {
		return "", fmt.Errorf("%w: connection refused", llm.ErrBackend)
	}}

	answer, state, err := New(model, newRegistry(t, &fakeExtractor{})).
		Answer(context.Background(), "What is Python?")
	assert.ErrorIs(t, err, llm.ErrBackend)
	assert.Equal(t, Aborted, state.Reason)
	assert.Equal(t, FallbackBackend, answer)
}

func TestAgent_WallClockTimeout(t *testing.T) {
	model := &scriptedLLM{respond: func(int, string) (string, error) {
		time.Sleep(30 * time.Millisecond)
		return "Thought: still thinking\nAction: list_courses\nAction Input: {}", nil
	}}
	model2 := &blockingLLM{}

	state, err := New(model, newRegistry(t, &fakeExtractor{}), WithTimeout(20*time.Millisecond), WithMaxSteps(50)).
		Run(context.Background(), "What are my courses?")
	require.NoError(t, err)
	assert.Equal(t, ExceededLimit, state.Reason)
	assert.Less(t, state.StepCount, 50)

	state, err = New(model2, newRegistry(t, &fakeExtractor{}), WithTimeout(20*time.Millisecond)).
		Run(context.Background(), "What are my courses?")
	require.NoError(t, err)
	assert.Equal(t, ExceededLimit, state.Reason)
	assert.ErrorIs(t, state.Err, ErrLoopExceeded)
}

// blockingLLM waits for its context to end.
type blockingLLM struct{}

func (blockingLLM) Complete(ctx context.Context, _ llm.Request) (llm.Response, error) {
	<-ctx.Done()
	return llm.Response{}, ctx.Err()
}

func (blockingLLM) Model() string { return "blocking" }

func TestAgent_LastStepHint(t *testing.T) {
	model := replies(callCourses, "Final Answer: ok")

	_, err := New(model, newRegistry(t, &fakeExtractor{}), WithMaxSteps(2)).
		Run(context.Background(), "What are my courses?")
	require.NoError(t, err)

	require.Len(t, model.prompts, 2)
	assert.NotContains(t, model.prompts[0], "last step")
	assert.Contains(t, model.prompts[1], "This is your last step")
}

func TestAgent_LastStepHint_SingleStepBudget(t *testing.T) {
	model := replies("Final Answer: ok")

	_, err := New(model, newRegistry(t, &fakeExtractor{}), WithMaxSteps(1)).
		Run(context.Background(), "What are my courses?")
	require.NoError(t, err)

	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "This is your last step")
}

func TestAgent_PromptCarriesHistory(t *testing.T) {
	ex := &fakeExtractor{courses: []extract.Course{{Name: "Math", Category: "Sciences", Progress: 40}}}
	model := replies(callCourses, "Final Answer: Math")

	a := New(model, newRegistry(t, ex), scopeFactory(&testScope{page: &staticPage{}}), WithClock(fixedClock))
	_, err := a.Run(context.Background(), "What are my courses?")
	require.NoError(t, err)

	second := model.prompts[1]
	assert.Contains(t, second, "Today is Thursday 18 April 2024")
	assert.Contains(t, second, "Question: What are my courses?")
	assert.Contains(t, second, "Action: list_courses\nAction Input: {}\nObservation: {\"courses\":[")
	assert.Contains(t, a.system, "- list_courses:")
	assert.Contains(t, a.system, "NEVER INVENT data")
}

func TestAgent_WithoutScopes(t *testing.T) {
	model := replies(callCourses, "Final Answer: I could not retrieve your courses.")

	state, err := New(model, newRegistry(t, &fakeExtractor{})).Run(context.Background(), "What are my courses?")
	require.NoError(t, err)
	assert.Equal(t, tools.KindInternal, state.Steps[0].Observation.Kind)
}

func TestAgent_RunValidation(t *testing.T) {
	_, err := New(replies("x"), tools.NewRegistry()).Run(context.Background(), "   ")
	assert.Error(t, err)

	_, err = New(nil, tools.NewRegistry()).Run(context.Background(), "hi")
	assert.Error(t, err)
}

func TestAgent_StepHookSeesEveryStep(t *testing.T) {
	var seen []int
	model := replies("gibberish", callCourses, "Final Answer: ok")

	state, err := New(model, newRegistry(t, &fakeExtractor{}),
		WithStepHook(func(s Step) { seen = append(seen, s.Index) }),
	).Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.Equal(t, len(state.Steps), len(seen))
	assert.True(t, errors.Is(state.Steps[0].Observation.Err, ErrMalformedOutput))
}
