package campus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"campusnerd/internal/extract"
	"campusnerd/internal/logging"
	"campusnerd/internal/tools"
)

var errNoBrowsingContext = errors.New("no browsing context for this question")

// ListCoursesTool returns a tool listing the student's courses.
func ListCoursesTool(ex Extractor) *tools.Tool {
	return &tools.Tool{
		Name: "list_courses",
		Description: "Retrieves the COMPLETE list of the student's courses from the learning platform, " +
			"with each course's category, description and completion progress. " +
			"Use the description to answer what a course is about. " +
			"Use when the student asks about their courses, subjects or progress.",
		Schema:  tools.Schema{},
		Returns: `{"courses":[{"name":string,"category":string,"summary":string,"progress":0-100,"url":string}],"count":int}`,
		Execute: func(ctx context.Context, env tools.Env, _ map[string]any) (string, error) {
			return executeListCourses(ctx, ex, env)
		},
	}
}

type courseList struct {
	Courses []extract.Course `json:"courses"`
	Count   int              `json:"count"`
}

func executeListCourses(ctx context.Context, ex Extractor, env tools.Env) (string, error) {
	if env.Pages == nil {
		return "", errNoBrowsingContext
	}

	courses, err := ex.ListCourses(ctx, env.Pages)
	if err != nil {
		return "", fmt.Errorf("list_courses: %w", err)
	}
	logging.ToolsDebug("list_courses: %d courses", len(courses))

	data, err := json.Marshal(courseList{Courses: courses, Count: len(courses)})
	if err != nil {
		return "", fmt.Errorf("failed to encode courses: %w", err)
	}
	return string(data), nil
}
