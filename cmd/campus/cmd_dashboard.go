package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"campusnerd/cmd/campus/ui"
	"campusnerd/internal/extract"

	"github.com/spf13/cobra"
)

// =============================================================================
// DASHBOARD COMMANDS - direct extraction, no language model
// =============================================================================

var coursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "List your courses from the dashboard",
	Args:  cobra.NoArgs,
	RunE:  runCourses,
}

var deadlinesCmd = &cobra.Command{
	Use:   "deadlines",
	Short: "List upcoming deadlines from the timeline, soonest first",
	Args:  cobra.NoArgs,
	RunE:  runDeadlines,
}

func runCourses(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	scope := a.browser.NewScope()
	defer scope.Close()

	courses, err := a.extractor.ListCourses(ctx, scope)
	if err != nil {
		return extractionError(cmd, err)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(cmd.OutOrStdout(), courses)
	}
	fmt.Fprint(cmd.OutOrStdout(), coursesTable(courses).View(ui.DefaultStyles()))
	return nil
}

func runDeadlines(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	scope := a.browser.NewScope()
	defer scope.Close()

	deadlines, err := a.extractor.ListDeadlines(ctx, scope)
	if err != nil {
		return extractionError(cmd, err)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(cmd.OutOrStdout(), deadlines)
	}
	fmt.Fprint(cmd.OutOrStdout(), deadlinesTable(deadlines).View(ui.DefaultStyles()))
	return nil
}

func coursesTable(courses []extract.Course) *ui.Table {
	t := ui.NewTable(fmt.Sprintf("Courses (%d)", len(courses)), "Course", "Category", "Progress")
	for _, c := range courses {
		t.AddRow(c.Name, c.Category, strconv.Itoa(c.Progress)+"%")
	}
	return t
}

func deadlinesTable(deadlines []extract.Deadline) *ui.Table {
	t := ui.NewTable(fmt.Sprintf("Deadlines (%d)", len(deadlines)), "Due", "Course", "Title")
	for _, d := range deadlines {
		t.AddRow(d.Due.Format("Mon 02 Jan 2006 15:04"), d.Course, d.Title)
	}
	return t
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// extractionError turns extraction failures into plain-language errors.
func extractionError(cmd *cobra.Command, err error) error {
	switch {
	case errors.Is(err, extract.ErrAuthentication):
		return loginHint(cmd.ErrOrStderr())
	case errors.Is(err, extract.ErrScrapeParse):
		return errors.New("the dashboard layout was not recognized, so no data could be read")
	case errors.Is(err, extract.ErrNetwork):
		return errors.New("the learning platform could not be reached after several attempts")
	default:
		return err
	}
}
