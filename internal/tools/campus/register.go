package campus

import (
	"context"

	"campusnerd/internal/extract"
	"campusnerd/internal/tools"
)

// Extractor is the extraction surface the tools call through.
type Extractor interface {
	ListCourses(ctx context.Context, src extract.PageSource) ([]extract.Course, error)
	ListDeadlines(ctx context.Context, src extract.PageSource) ([]extract.Deadline, error)
}

// RegisterAll registers all dashboard tools with the given registry.
func RegisterAll(registry *tools.Registry, ex Extractor) error {
	allTools := []*tools.Tool{
		ListCoursesTool(ex),
		ListDeadlinesTool(ex),
	}

	for _, tool := range allTools {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}

	return nil
}
