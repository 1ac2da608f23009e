package extract

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var percentPattern = regexp.MustCompile(`(-?\d{1,4}(?:[.,]\d+)?)\s*%`)

// ParseCourses extracts the course overview in document order.
// An empty overview yields an empty, non-nil slice.
func (p Parser) ParseCourses(raw string) ([]Course, error) {
	doc, err := parseDocument(raw)
	if err != nil {
		return nil, err
	}

	container, _ := courseSelectors.Container.First(doc.Selection)
	if container == nil {
		return nil, fmt.Errorf("%w: course overview container not found (tried %s)",
			ErrScrapeParse, courseSelectors.Container)
	}
	container = container.First()

	items, matched := courseSelectors.Item.First(container)
	if items == nil {
		if isEmptyView(container, courseSelectors.EmptyState, courseSelectors.Link) {
			return []Course{}, nil
		}
		return nil, fmt.Errorf("%w: course overview has links but no course items (tried %s)",
			ErrScrapeParse, courseSelectors.Item)
	}

	courses := make([]Course, 0, items.Length())
	var parseErr error
	items.EachWithBreak(func(i int, item *goquery.Selection) bool {
		c, err := p.parseCourse(item)
		if err != nil {
			parseErr = fmt.Errorf("course %d (%s): %w", i, matched, err)
			return false
		}
		courses = append(courses, c)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return courses, nil
}

func (p Parser) parseCourse(item *goquery.Selection) (Course, error) {
	link, _ := courseSelectors.Name.First(item)
	if link == nil {
		return Course{}, fmt.Errorf("%w: course name not found (tried %s)", ErrScrapeParse, courseSelectors.Name)
	}
	link = link.First()

	name := visibleText(link)
	if name == "" {
		return Course{}, fmt.Errorf("%w: course name is empty", ErrScrapeParse)
	}
	href, _ := link.Attr("href")

	var category string
	if cat, _ := courseSelectors.Category.First(item); cat != nil {
		category = visibleText(cat.First())
	}

	var summary string
	if s, _ := courseSelectors.Summary.First(item); s != nil {
		summary = visibleText(s.First())
	}

	progress, err := parseProgress(item)
	if err != nil {
		return Course{}, fmt.Errorf("%s: %w", name, err)
	}

	return Course{
		Name:     name,
		Category: category,
		Summary:  summary,
		Progress: progress,
		URL:      p.resolve(href),
	}, nil
}

// parseProgress reads the completion percentage. Courses without completion
// tracking show no indicator and report 0.
func parseProgress(item *goquery.Selection) (int, error) {
	if bar, _ := courseSelectors.ProgressBar.First(item); bar != nil {
		raw, _ := bar.First().Attr("aria-valuenow")
		return percent(raw)
	}
	if text, _ := courseSelectors.ProgressText.First(item); text != nil {
		m := percentPattern.FindStringSubmatch(text.First().Text())
		if m == nil {
			return 0, fmt.Errorf("%w: progress text %q has no percentage", ErrScrapeParse, strings.TrimSpace(text.First().Text()))
		}
		return percent(m[1])
	}
	return 0, nil
}

func percent(raw string) (int, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: progress %q is not a number", ErrScrapeParse, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: progress %q is not a finite number", ErrScrapeParse, raw)
	}
	if v < 0 || v > 100 {
		return 0, fmt.Errorf("%w: progress %s outside [0,100]", ErrScrapeParse, raw)
	}
	return int(math.Round(v)), nil
}
