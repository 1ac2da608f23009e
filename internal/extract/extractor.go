package extract

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"campusnerd/internal/logging"

	"github.com/cenkalti/backoff/v4"
)

// Config controls where and how views are loaded.
type Config struct {
	CoursesURL  string
	TimelineURL string
	// LoginMarkers are URL substrings that identify a login page.
	LoginMarkers []string
	Location     *time.Location

	// RetryAttempts is the total number of load attempts, including the first.
	RetryAttempts int
	RetryInitial  time.Duration
	RetryMax      time.Duration

	// SettleTimeout bounds how long a view may show loading placeholders.
	SettleTimeout time.Duration
	SettlePoll    time.Duration

	Now func() time.Time
}

// DefaultConfig returns defaults for the De Vinci learning dashboard.
func DefaultConfig() Config {
	return Config{
		CoursesURL:    "https://learning.devinci.fr/my/",
		TimelineURL:   "https://learning.devinci.fr/my/",
		LoginMarkers:  []string{"/login/", "/adfs/", "login.microsoftonline.com"},
		Location:      time.Local,
		RetryAttempts: 3,
		RetryInitial:  500 * time.Millisecond,
		RetryMax:      5 * time.Second,
		SettleTimeout: 15 * time.Second,
		SettlePoll:    250 * time.Millisecond,
	}
}

// Extractor loads dashboard views through a PageSource and parses them.
type Extractor struct {
	cfg Config
}

// New creates an Extractor. Zero-valued fields fall back to DefaultConfig.
func New(cfg Config) *Extractor {
	def := DefaultConfig()
	if cfg.CoursesURL == "" {
		cfg.CoursesURL = def.CoursesURL
	}
	if cfg.TimelineURL == "" {
		cfg.TimelineURL = def.TimelineURL
	}
	if cfg.LoginMarkers == nil {
		cfg.LoginMarkers = def.LoginMarkers
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = def.RetryAttempts
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = def.RetryInitial
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = def.RetryMax
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = def.SettleTimeout
	}
	if cfg.SettlePoll <= 0 {
		cfg.SettlePoll = def.SettlePoll
	}
	return &Extractor{cfg: cfg}
}

// Config returns the effective configuration.
func (e *Extractor) Config() Config {
	return e.cfg
}

// ListCourses loads the course overview and returns its courses.
func (e *Extractor) ListCourses(ctx context.Context, src PageSource) ([]Course, error) {
	raw, final, err := e.load(ctx, src, ViewCourses, e.cfg.CoursesURL)
	if err != nil {
		return nil, err
	}
	courses, err := e.parser(final).ParseCourses(raw)
	if err != nil {
		logging.ExtractWarn("Course overview at %s not recognized: %v", final, err)
		return nil, err
	}
	logging.Extract("Extracted %d courses", len(courses))
	return courses, nil
}

// ListDeadlines loads the timeline and returns its events ascending by due time.
func (e *Extractor) ListDeadlines(ctx context.Context, src PageSource) ([]Deadline, error) {
	raw, final, err := e.load(ctx, src, ViewTimeline, e.cfg.TimelineURL)
	if err != nil {
		return nil, err
	}
	deadlines, err := e.parser(final).ParseDeadlines(raw)
	if err != nil {
		logging.ExtractWarn("Timeline at %s not recognized: %v", final, err)
		return nil, err
	}
	logging.Extract("Extracted %d deadlines", len(deadlines))
	return deadlines, nil
}

func (e *Extractor) parser(pageURL string) Parser {
	base, _ := url.Parse(pageURL)
	return Parser{Base: base, Location: e.cfg.Location, Now: e.cfg.Now}
}

// load navigates to target and returns the settled markup and final URL.
// Transient failures are retried with exponential backoff; a login redirect
// stops immediately.
func (e *Extractor) load(ctx context.Context, src PageSource, view View, target string) (string, string, error) {
	page, err := src.Page(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		return "", "", fmt.Errorf("%w: browsing context unavailable: %v", ErrNetwork, err)
	}

	var raw, final string
	attempts := 0
	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempts++
		logging.ExtractDebug("Loading %s view (attempt %d/%d): %s", view, attempts, e.cfg.RetryAttempts, target)

		if err := page.Navigate(ctx, target); err != nil {
			return fmt.Errorf("navigate %s: %w", target, err)
		}
		if e.isLoginURL(page.URL()) {
			return backoff.Permanent(fmt.Errorf("%w: %s redirected to %s", ErrAuthentication, view, page.URL()))
		}

		html, err := e.settle(ctx, page)
		if err != nil {
			return err
		}
		if looksLikeLogin(html) {
			return backoff.Permanent(fmt.Errorf("%w: %s shows a login form", ErrAuthentication, view))
		}

		raw, final = html, page.URL()
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.cfg.RetryInitial
	policy.MaxInterval = e.cfg.RetryMax
	policy.MaxElapsedTime = 0

	err = backoff.RetryNotify(op,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(e.cfg.RetryAttempts-1)), ctx),
		func(err error, wait time.Duration) {
			logging.ExtractWarn("Loading %s view failed, retrying in %v: %v", view, wait, err)
		})
	if err == nil {
		return raw, final, nil
	}

	switch {
	case errors.Is(err, ErrAuthentication):
		logging.ExtractWarn("Session expired while loading %s view", view)
		return "", "", err
	case ctx.Err() != nil:
		return "", "", ctx.Err()
	}
	return "", "", fmt.Errorf("%w: %s view after %d attempts: %v", ErrNetwork, view, attempts, err)
}

// settle polls the page until loading placeholders are gone.
func (e *Extractor) settle(ctx context.Context, page Page) (string, error) {
	deadline := time.Now().Add(e.cfg.SettleTimeout)
	for {
		html, err := page.HTML(ctx)
		if err != nil {
			return "", fmt.Errorf("read page: %w", err)
		}
		if !stillLoading(html) {
			return html, nil
		}
		if time.Now().After(deadline) {
			return "", errStillLoading
		}

		timer := time.NewTimer(e.cfg.SettlePoll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", backoff.Permanent(ctx.Err())
		case <-timer.C:
		}
	}
}

func (e *Extractor) isLoginURL(current string) bool {
	current = strings.ToLower(current)
	for _, marker := range e.cfg.LoginMarkers {
		if marker != "" && strings.Contains(current, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}
