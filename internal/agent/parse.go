package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	thinkBlock  = regexp.MustCompile(`(?s)<think>.*?</think>`)
	thoughtRe   = regexp.MustCompile(`(?is)Thought\s*:\s*(.*?)\s*(?:\n\s*(?:Action|Final\s+Answer)\s*:|$)`)
	actionRe    = regexp.MustCompile(`(?im)^[ \t*]*Action[ \t*]*:[ \t]*(.*)$`)
	inputRe     = regexp.MustCompile(`(?is)Action[ \t*]*Input[ \t*]*:(.*)`)
	finalRe     = regexp.MustCompile(`(?is)Final[ \t]+Answer[ \t*]*:\s*(.*)`)
	codeFenceRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```")
)

// parseOutput turns raw model text into a thought and an action. When both an
// action and a final answer are present, whichever comes first wins.
func parseOutput(raw string) (string, Action, error) {
	text := strings.TrimSpace(thinkBlock.ReplaceAllString(raw, ""))
	if i := strings.Index(text, "Observation:"); i >= 0 {
		text = text[:i]
	}

	var thought string
	if m := thoughtRe.FindStringSubmatch(text); m != nil {
		thought = strings.TrimSpace(m[1])
	}

	actionLoc := actionRe.FindStringSubmatchIndex(text)
	finalLoc := finalRe.FindStringSubmatchIndex(text)

	switch {
	case finalLoc != nil && (actionLoc == nil || finalLoc[0] < actionLoc[0]):
		answer := strings.TrimSpace(text[finalLoc[2]:finalLoc[3]])
		if answer == "" {
			return thought, Action{}, fmt.Errorf("%w: Final Answer is empty", ErrMalformedOutput)
		}
		return thought, Action{Kind: ActionAnswer, Answer: answer}, nil

	case actionLoc != nil:
		name := cleanToolName(text[actionLoc[2]:actionLoc[3]])
		if name == "" {
			return thought, Action{}, fmt.Errorf("%w: Action names no tool", ErrMalformedOutput)
		}
		rest := text[actionLoc[1]:]
		if next := finalRe.FindStringIndex(rest); next != nil {
			rest = rest[:next[0]]
		}
		args, err := parseActionInput(rest)
		if err != nil {
			return thought, Action{Kind: ActionInvalid, Tool: name}, err
		}
		return thought, Action{Kind: ActionTool, Tool: name, Args: args}, nil
	}

	return thought, Action{}, fmt.Errorf("%w: expected \"Action:\" or \"Final Answer:\"", ErrMalformedOutput)
}

// cleanToolName strips decoration models add around tool names, such as
// backticks or a trailing "()".
func cleanToolName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "`\"'*[] ")
	s = strings.TrimSuffix(s, "()")
	if i := strings.IndexAny(s, " \t("); i >= 0 {
		s = s[:i]
	}
	return s
}

func parseActionInput(rest string) (map[string]any, error) {
	m := inputRe.FindStringSubmatch(rest)
	if m == nil {
		return map[string]any{}, nil
	}
	input := strings.TrimSpace(m[1])
	if fence := codeFenceRe.FindStringSubmatch(input); fence != nil {
		input = fence[1]
	}

	switch strings.ToLower(strings.Trim(input, "`\" ")) {
	case "", "none", "null", "{}", "n/a":
		return map[string]any{}, nil
	}

	start, end := strings.Index(input, "{"), strings.LastIndex(input, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: Action Input must be a JSON object, got %q", ErrMalformedOutput, input)
	}

	args := map[string]any{}
	if err := json.Unmarshal([]byte(input[start:end+1]), &args); err != nil {
		return nil, fmt.Errorf("%w: Action Input is not valid JSON: %v", ErrMalformedOutput, err)
	}
	return args, nil
}
