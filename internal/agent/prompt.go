package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// observationStop keeps the model from writing observations itself.
const observationStop = "Observation:"

const systemPromptHeader = `You are an academic assistant for students of the De Vinci learning platform.
Respond naturally. Use a tool ONLY when the question needs the student's own courses or deadlines.

TOOLS:
`

const systemPromptFormat = `
FORMAT:
To use a tool, write exactly:
Thought: what you need to find out
Action: the tool name, exactly as listed above
Action Input: {}

The system then replies with "Observation: <result>". You may use several tools, one per step.
When you can answer, or if the question needs no student data, write:
Thought: why you can answer now
Final Answer: your answer to the student

STRICT RULES:
1. NEVER INVENT data. Course names, categories, progress and dates must come from an Observation.
2. If an Observation starts with ERROR, tell the student the data could not be retrieved and why.
3. Never write "Observation:" yourself.
4. Do not make assumptions about results you have not observed.
5. Be precise and honest. Never speculate.`

func buildSystemPrompt(catalogue string) string {
	return systemPromptHeader + catalogue + systemPromptFormat
}

// buildUserPrompt renders the question and the step history in the same
// text protocol the model is asked to produce.
func buildUserPrompt(state *State, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Today is %s.\n\n", now.Format("Monday 2 January 2006, 15:04 MST"))
	b.WriteString("Question: ")
	b.WriteString(state.Question)
	b.WriteString("\n")

	for _, step := range state.Steps {
		b.WriteString("\n")
		if step.Thought != "" {
			fmt.Fprintf(&b, "Thought: %s\n", step.Thought)
		}
		switch step.Action.Kind {
		case ActionTool:
			fmt.Fprintf(&b, "Action: %s\nAction Input: %s\n", step.Action.Tool, renderArgs(step.Action.Args))
		case ActionInvalid:
			if step.Action.Tool != "" {
				fmt.Fprintf(&b, "Action: %s\n", step.Action.Tool)
			}
		}
		fmt.Fprintf(&b, "%s %s\n", observationStop, step.Observation.Text())
	}

	if state.lastStep() {
		b.WriteString("\nThis is your last step. Write a Final Answer now using only the observations above.\n")
	}
	b.WriteString("\n")
	return b.String()
}

func renderArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(data)
}
