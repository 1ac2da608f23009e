package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"campusnerd/cmd/campus/ui"
	"campusnerd/internal/agent"
	"campusnerd/internal/extract"

	"github.com/spf13/cobra"
)

// askCmd answers a single question
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question",
	Long: `Runs one question through the reasoning loop and prints the answer.

Examples:
  campus ask "What are my courses?"
  campus ask --show-steps "When is my next deadline?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := joinArgs(args)
	if question == "" {
		return errors.New("question is empty")
	}
	showSteps, _ := cmd.Flags().GetBool("show-steps")

	ctx, cancel := signalContext()
	defer cancel()

	out := cmd.OutOrStdout()
	styles := ui.DefaultStyles()

	var opts []agent.Option
	if showSteps {
		opts = append(opts, agent.WithStepHook(func(step agent.Step) {
			fmt.Fprint(out, formatStep(step, cfg.Agent.MaxSteps, styles))
		}))
	}

	a, err := newApp(cfg, opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	answer, state, runErr := a.agent.Answer(ctx, question)
	if state == nil {
		return runErr
	}

	if showSteps {
		fmt.Fprint(out, formatSummary(state, styles))
	}
	fmt.Fprintln(out, ui.Markdown(ui.NewRenderer(80), answer))

	if errors.Is(runErr, extract.ErrAuthentication) {
		return loginHint(cmd.ErrOrStderr())
	}
	return nil
}

// loginHint tells the student where to log in again.
func loginHint(w io.Writer) error {
	where := "the browser profile at " + cfg.Browser.UserDataDir
	if cfg.Browser.DebuggerURL != "" {
		where = "the Chrome attached at " + cfg.Browser.DebuggerURL
	}
	fmt.Fprintf(w, "Open %s in %s, log in, then retry.\n", cfg.Dashboard.CoursesURL, where)
	return errors.New("dashboard session expired")
}

// formatStep renders one step of the reasoning trace.
func formatStep(step agent.Step, maxSteps int, styles ui.Styles) string {
	var sb strings.Builder
	sb.WriteString(styles.Step.Render(fmt.Sprintf("Step %d/%d", step.Index, maxSteps)))
	sb.WriteString("\n")
	if step.Thought != "" {
		fmt.Fprintf(&sb, "  Thought: %s\n", step.Thought)
	}
	switch step.Action.Kind {
	case agent.ActionTool:
		fmt.Fprintf(&sb, "  Action: %s\n", step.Action.Tool)
		fmt.Fprintf(&sb, "  Observation: %s\n", truncate(step.Observation.Text(), 300))
	case agent.ActionAnswer:
		sb.WriteString("  Action: final answer\n")
	default:
		fmt.Fprintf(&sb, "  %s\n", styles.Warning.Render(truncate(step.Observation.Text(), 300)))
	}
	return sb.String()
}

// formatSummary renders how the loop ended.
func formatSummary(state *agent.State, styles ui.Styles) string {
	return styles.Muted.Render(fmt.Sprintf("%s after %d steps, %d tool calls, %v",
		state.Reason, state.StepCount, len(state.ToolCalls()), state.Elapsed.Round(time.Millisecond))) + "\n\n"
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
