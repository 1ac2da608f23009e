// Package extract turns the learning dashboard's course overview and timeline
// views into typed records. It only reads from the browsing context it is
// handed; it never clicks, submits forms or touches cookies.
package extract

import (
	"context"
	"time"
)

// Course is one entry of the course overview block.
type Course struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	// Summary is the course description shown in the summary view.
	Summary  string `json:"summary,omitempty"`
	// Progress is the completion percentage, always within [0,100].
	Progress int    `json:"progress"`
	URL      string `json:"url,omitempty"`
}

// Deadline is one upcoming event from the timeline block.
type Deadline struct {
	Course string    `json:"course"`
	Title  string    `json:"title"`
	Due    time.Time `json:"due"`
	URL    string    `json:"url,omitempty"`
}

// View identifies which dashboard view an extraction targets.
type View string

const (
	ViewCourses  View = "courses"
	ViewTimeline View = "timeline"
)

// Page is an authenticated browsing context.
type Page interface {
	// Navigate loads url and waits for the document to load.
	Navigate(ctx context.Context, url string) error
	// URL reports the current location, after any redirects.
	URL() string
	// HTML returns the current serialized DOM.
	HTML(ctx context.Context) (string, error)
}

// PageSource hands out the browsing context for the current question.
// Implementations may block until the context is available.
type PageSource interface {
	Page(ctx context.Context) (Page, error)
}

// PageSourceFunc adapts a function to PageSource.
type PageSourceFunc func(ctx context.Context) (Page, error)

func (f PageSourceFunc) Page(ctx context.Context) (Page, error) { return f(ctx) }
