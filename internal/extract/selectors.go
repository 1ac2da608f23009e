package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Candidates is a prioritized list of CSS selectors for one field.
type Candidates []string

// First returns the matches of the first candidate that selects at least one
// element under s, along with that candidate. It returns nil when none match.
func (c Candidates) First(s *goquery.Selection) (*goquery.Selection, string) {
	for _, sel := range c {
		if found := s.Find(sel); found.Length() > 0 {
			return found, sel
		}
	}
	return nil, ""
}

func (c Candidates) String() string {
	return strings.Join(c, " | ")
}

// courseSelectors covers the course overview block in summary, card and list
// display modes. The display mode is a persisted user preference, so it is
// read as-is rather than switched.
var courseSelectors = struct {
	Container    Candidates
	Item         Candidates
	Name         Candidates
	Category     Candidates
	Summary      Candidates
	ProgressBar  Candidates
	ProgressText Candidates
	EmptyState   Candidates
	Link         Candidates
}{
	Container: Candidates{
		`section[data-block="myoverviewdevinci"] div[data-region="courses-view"]`,
		`section[data-block="myoverview"] div[data-region="courses-view"]`,
		`div[data-region="courses-view"]`,
		`.block_myoverview [data-region="course-view-content"]`,
	},
	Item: Candidates{
		`div.course-summaryitem`,
		`div.card.course-card`,
		`li.course-listitem`,
		`[data-region="course-content"]`,
	},
	Name: Candidates{
		`a.aalink.coursename`,
		`a.coursename`,
		`.coursename a`,
		`a[href*="course/view.php"]`,
	},
	Category: Candidates{
		`.categoryname`,
		`.course-category`,
		`[data-region="course-category"]`,
	},
	Summary: Candidates{
		`.summary`,
		`.course-summary`,
		`[data-region="course-summary"]`,
	},
	ProgressBar: Candidates{
		`.progress-bar[aria-valuenow]`,
		`[role="progressbar"][aria-valuenow]`,
	},
	ProgressText: Candidates{
		`.progress-text`,
		`[data-region="progress-text"]`,
		`.progress + .small`,
	},
	EmptyState: Candidates{
		`[data-region="empty-message"]`,
		`.empty-placeholder-image-lg`,
	},
	Link: Candidates{
		`a[href*="course/view.php"]`,
	},
}

// timelineSelectors covers the timeline block, sorted by dates.
var timelineSelectors = struct {
	Container  Candidates
	Item       Candidates
	Title      Candidates
	Course     Candidates
	Time       Candidates
	DateHeader Candidates
	EmptyState Candidates
	Link       Candidates
}{
	Container: Candidates{
		`section[data-block="timeline"] div[data-region="event-list-container"]`,
		`.block_timeline [data-region="event-list-container"]`,
		`div[data-region="event-list-container"]`,
	},
	Item: Candidates{
		`.timeline-event-list-item`,
		`[data-region="event-list-item"]`,
	},
	Title: Candidates{
		`h6.event-name a`,
		`.event-name a`,
		`a[href*="/mod/"]`,
	},
	Course: Candidates{
		`.event-name-container small`,
		`.event-name-container .text-muted`,
	},
	Time: Candidates{
		`small.text-right`,
		`.timeline-name small.text-nowrap`,
	},
	DateHeader: Candidates{
		`[data-region="event-list-content-date"]`,
		`[data-timestamp]`,
	},
	EmptyState: Candidates{
		`[data-region="no-events-empty-message"]:not(.hidden)`,
		`.empty-placeholder-image-lg`,
	},
	Link: Candidates{
		`a[href*="/mod/"]`,
		`a[href*="/calendar/"]`,
	},
}

// loadingSelectors match skeleton placeholders rendered while a block is
// still fetching its content.
var loadingSelectors = Candidates{
	`div[data-region="courses-view"] .bg-pulse-grey`,
	`[data-region="event-list-loading-placeholder"]:not(.hidden):not([hidden])`,
}

// loginSelectors indicate a login form rather than a dashboard view.
var loginSelectors = Candidates{
	`input[type="password"]`,
	`form#login`,
}

// hiddenText is removed before reading an element's visible text.
const hiddenText = `.sr-only, .visually-hidden, .accesshide`
