package extract

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePage serves canned markup. navErrs are returned by successive Navigate
// calls; bodies by successive HTML calls, the last one repeating.
type fakePage struct {
	mu        sync.Mutex
	navErrs   []error
	redirects map[string]string
	bodies    []string

	current   string
	navCalls  int
	htmlCalls int
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.navCalls++
	if len(p.navErrs) > 0 {
		err := p.navErrs[0]
		p.navErrs = p.navErrs[1:]
		if err != nil {
			return err
		}
	}
	if to, ok := p.redirects[url]; ok {
		url = to
	}
	p.current = url
	return ctx.Err()
}

func (p *fakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.htmlCalls++
	if len(p.bodies) == 0 {
		return "", errors.New("no body")
	}
	body := p.bodies[0]
	if len(p.bodies) > 1 {
		p.bodies = p.bodies[1:]
	}
	return body, nil
}

func sourceOf(p Page) PageSource {
	return PageSourceFunc(func(context.Context) (Page, error) { return p, nil })
}

func testExtractor() *Extractor {
	return New(Config{
		CoursesURL:    "https://learning.devinci.fr/my/",
		TimelineURL:   "https://learning.devinci.fr/my/",
		Location:      paris,
		RetryAttempts: 3,
		RetryInitial:  time.Millisecond,
		RetryMax:      2 * time.Millisecond,
		SettleTimeout: 50 * time.Millisecond,
		SettlePoll:    time.Millisecond,
		Now:           fixedNow,
	})
}

func TestListCourses(t *testing.T) {
	page := &fakePage{bodies: []string{fixture(t, "courses_summary.html")}}

	courses, err := testExtractor().ListCourses(context.Background(), sourceOf(page))
	require.NoError(t, err)
	require.Len(t, courses, 3)
	assert.Equal(t, "Math", courses[0].Name)
	assert.Equal(t, "https://learning.devinci.fr/course/view.php?id=101", courses[0].URL)
	assert.Equal(t, 1, page.navCalls)
}

func TestListDeadlines(t *testing.T) {
	page := &fakePage{bodies: []string{fixture(t, "timeline.html")}}

	deadlines, err := testExtractor().ListDeadlines(context.Background(), sourceOf(page))
	require.NoError(t, err)
	require.Len(t, deadlines, 3)
	assert.Equal(t, "Quiz 3", deadlines[0].Title)
	assert.Equal(t, "CourseA", deadlines[2].Course)
}

func TestListCourses_RetriesTransientFailures(t *testing.T) {
	page := &fakePage{
		navErrs: []error{errors.New("net::ERR_CONNECTION_RESET"), errors.New("navigation timeout")},
		bodies:  []string{fixture(t, "courses_summary.html")},
	}

	courses, err := testExtractor().ListCourses(context.Background(), sourceOf(page))
	require.NoError(t, err)
	assert.Len(t, courses, 3)
	assert.Equal(t, 3, page.navCalls)
}

func TestListCourses_NetworkErrorAfterRetries(t *testing.T) {
	boom := errors.New("net::ERR_INTERNET_DISCONNECTED")
	page := &fakePage{
		navErrs: []error{boom, boom, boom, boom},
		bodies:  []string{fixture(t, "courses_summary.html")},
	}

	_, err := testExtractor().ListCourses(context.Background(), sourceOf(page))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, 3, page.navCalls, "attempts are bounded")
}

func TestListCourses_LoginRedirectIsNotRetried(t *testing.T) {
	page := &fakePage{
		redirects: map[string]string{
			"https://learning.devinci.fr/my/": "https://learning.devinci.fr/login/index.php",
		},
		bodies: []string{fixture(t, "login.html")},
	}

	_, err := testExtractor().ListCourses(context.Background(), sourceOf(page))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.NotErrorIs(t, err, ErrNetwork)
	assert.Equal(t, 1, page.navCalls)
}

func TestListDeadlines_LoginFormIsAuthenticationError(t *testing.T) {
	page := &fakePage{bodies: []string{fixture(t, "login.html")}}

	_, err := testExtractor().ListDeadlines(context.Background(), sourceOf(page))
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, 1, page.navCalls)
}

func TestListCourses_UnknownLayoutIsNotRetried(t *testing.T) {
	page := &fakePage{bodies: []string{fixture(t, "unknown.html")}}

	_, err := testExtractor().ListCourses(context.Background(), sourceOf(page))
	assert.ErrorIs(t, err, ErrScrapeParse)
	assert.Equal(t, 1, page.navCalls)
}

func TestListCourses_WaitsForPlaceholders(t *testing.T) {
	loading := fixture(t, "courses_loading.html")
	page := &fakePage{bodies: []string{loading, loading, fixture(t, "courses_summary.html")}}

	courses, err := testExtractor().ListCourses(context.Background(), sourceOf(page))
	require.NoError(t, err)
	assert.Len(t, courses, 3)
	assert.Equal(t, 1, page.navCalls)
	assert.Equal(t, 3, page.htmlCalls)
}

func TestListCourses_NeverSettlesIsNetworkError(t *testing.T) {
	page := &fakePage{bodies: []string{fixture(t, "courses_loading.html")}}

	_, err := testExtractor().ListCourses(context.Background(), sourceOf(page))
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, 3, page.navCalls)
}

func TestListCourses_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	page := &fakePage{bodies: []string{fixture(t, "courses_summary.html")}}
	_, err := testExtractor().ListCourses(ctx, sourceOf(page))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrNetwork)
}

func TestListCourses_SourceUnavailable(t *testing.T) {
	src := PageSourceFunc(func(context.Context) (Page, error) {
		return nil, errors.New("chrome not found")
	})

	_, err := testExtractor().ListCourses(context.Background(), src)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestNew_AppliesDefaults(t *testing.T) {
	e := New(Config{})
	cfg := e.Config()
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.NotEmpty(t, cfg.LoginMarkers)
	assert.NotNil(t, cfg.Location)
	assert.Equal(t, "https://learning.devinci.fr/my/", cfg.CoursesURL)
}
