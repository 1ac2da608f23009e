package campus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"campusnerd/internal/extract"
	"campusnerd/internal/logging"
	"campusnerd/internal/tools"
)

// humanDue is the due-date layout shown to the model next to RFC 3339.
const humanDue = "Monday 2 January 2006, 15:04 MST"

// ListDeadlinesTool returns a tool listing upcoming deadlines.
func ListDeadlinesTool(ex Extractor) *tools.Tool {
	return &tools.Tool{
		Name: "list_deadlines",
		Description: "Retrieves the student's upcoming assignment deadlines and due dates from the " +
			"learning platform timeline, sorted with the soonest first. " +
			"Use when the student asks about deadlines, homework, work to submit or due dates.",
		Schema:  tools.Schema{},
		Returns: `{"deadlines":[{"course":string,"title":string,"due":RFC3339,"due_human":string,"url":string}],"count":int}`,
		Execute: func(ctx context.Context, env tools.Env, _ map[string]any) (string, error) {
			return executeListDeadlines(ctx, ex, env)
		},
	}
}

type deadlineView struct {
	Course   string `json:"course"`
	Title    string `json:"title"`
	Due      string `json:"due"`
	DueHuman string `json:"due_human"`
	URL      string `json:"url,omitempty"`
}

type deadlineList struct {
	Deadlines []deadlineView `json:"deadlines"`
	Count     int            `json:"count"`
}

func executeListDeadlines(ctx context.Context, ex Extractor, env tools.Env) (string, error) {
	if env.Pages == nil {
		return "", errNoBrowsingContext
	}

	deadlines, err := ex.ListDeadlines(ctx, env.Pages)
	if err != nil {
		return "", fmt.Errorf("list_deadlines: %w", err)
	}
	extract.SortDeadlines(deadlines)
	logging.ToolsDebug("list_deadlines: %d deadlines", len(deadlines))

	out := deadlineList{Deadlines: make([]deadlineView, 0, len(deadlines)), Count: len(deadlines)}
	for _, d := range deadlines {
		out.Deadlines = append(out.Deadlines, deadlineView{
			Course:   d.Course,
			Title:    d.Title,
			Due:      d.Due.Format(time.RFC3339),
			DueHuman: d.Due.Format(humanDue),
			URL:      d.URL,
		})
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to encode deadlines: %w", err)
	}
	return string(data), nil
}
