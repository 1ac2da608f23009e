package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ParseDeadlines extracts timeline events sorted ascending by due time.
// Ties are ordered by course then title so the output is stable.
func (p Parser) ParseDeadlines(raw string) ([]Deadline, error) {
	doc, err := parseDocument(raw)
	if err != nil {
		return nil, err
	}

	container, _ := timelineSelectors.Container.First(doc.Selection)
	if container == nil {
		return nil, fmt.Errorf("%w: timeline container not found (tried %s)",
			ErrScrapeParse, timelineSelectors.Container)
	}
	container = container.First()

	items, _ := timelineSelectors.Item.First(container)
	if items == nil {
		if isEmptyView(container, timelineSelectors.EmptyState, timelineSelectors.Link) {
			return []Deadline{}, nil
		}
		return nil, fmt.Errorf("%w: timeline has links but no event items (tried %s)",
			ErrScrapeParse, timelineSelectors.Item)
	}

	deadlines := make([]Deadline, 0, items.Length())
	var parseErr error
	items.EachWithBreak(func(i int, item *goquery.Selection) bool {
		d, err := p.parseDeadline(item)
		if err != nil {
			parseErr = fmt.Errorf("event %d: %w", i, err)
			return false
		}
		deadlines = append(deadlines, d)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	SortDeadlines(deadlines)
	return deadlines, nil
}

// SortDeadlines orders deadlines ascending by due time, then course, then title.
func SortDeadlines(ds []Deadline) {
	sort.SliceStable(ds, func(i, j int) bool {
		if !ds[i].Due.Equal(ds[j].Due) {
			return ds[i].Due.Before(ds[j].Due)
		}
		if ds[i].Course != ds[j].Course {
			return ds[i].Course < ds[j].Course
		}
		return ds[i].Title < ds[j].Title
	})
}

func (p Parser) parseDeadline(item *goquery.Selection) (Deadline, error) {
	link, _ := timelineSelectors.Title.First(item)
	if link == nil {
		return Deadline{}, fmt.Errorf("%w: event title not found (tried %s)", ErrScrapeParse, timelineSelectors.Title)
	}
	link = link.First()
	title := visibleText(link)
	if title == "" {
		return Deadline{}, fmt.Errorf("%w: event title is empty", ErrScrapeParse)
	}
	href, _ := link.Attr("href")

	var course string
	if c, _ := timelineSelectors.Course.First(item); c != nil {
		course = courseFromSubtitle(visibleText(c.First()))
	}

	day, err := p.eventDay(item)
	if err != nil {
		return Deadline{}, fmt.Errorf("%s: %w", title, err)
	}

	hour, minute := 0, 0
	if t, _ := timelineSelectors.Time.First(item); t != nil {
		hour, minute, err = parseClock(visibleText(t.First()))
		if err != nil {
			return Deadline{}, fmt.Errorf("%s: %w", title, err)
		}
	}

	return Deadline{
		Course: course,
		Title:  title,
		Due:    time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, p.location()),
		URL:    p.resolve(href),
	}, nil
}

// courseFromSubtitle extracts the course from "Assignment is due · Course".
func courseFromSubtitle(s string) string {
	if i := strings.LastIndex(s, "·"); i >= 0 {
		return strings.TrimSpace(s[i+len("·"):])
	}
	return strings.TrimSpace(s)
}

// eventDay finds the date header preceding the event's list group.
func (p Parser) eventDay(item *goquery.Selection) (time.Time, error) {
	group := item.Closest(".list-group")
	if group.Length() == 0 {
		group = item
	}

	headerSel := strings.Join(timelineSelectors.DateHeader, ", ")
	var header *goquery.Selection
	for s := group.Prev(); s.Length() > 0; s = s.Prev() {
		if s.Is(headerSel) {
			header = s
			break
		}
	}
	if header == nil {
		return time.Time{}, fmt.Errorf("%w: no date header before event", ErrScrapeParse)
	}

	if ts, ok := header.Attr("data-timestamp"); ok {
		if secs, err := strconv.ParseInt(strings.TrimSpace(ts), 10, 64); err == nil {
			return time.Unix(secs, 0).In(p.location()), nil
		}
	}

	text := visibleText(header)
	if h := header.Find("h5"); h.Length() > 0 {
		text = visibleText(h.First())
	}
	return parseDayHeader(text, p.now())
}

var frenchMonths = map[string]string{
	"janvier":   "january",
	"février":   "february",
	"fevrier":   "february",
	"mars":      "march",
	"avril":     "april",
	"mai":       "may",
	"juin":      "june",
	"juillet":   "july",
	"août":      "august",
	"aout":      "august",
	"septembre": "september",
	"octobre":   "october",
	"novembre":  "november",
	"décembre":  "december",
	"decembre":  "december",
}

var weekdays = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
	"lundi": true, "mardi": true, "mercredi": true, "jeudi": true,
	"vendredi": true, "samedi": true, "dimanche": true,
}

var ordinalPattern = regexp.MustCompile(`^(\d{1,2})(?:er|st|nd|rd|th)$`)

var dayLayouts = []string{
	"2 January 2006",
	"January 2 2006",
	"2 Jan 2006",
	"Jan 2 2006",
	"2006-01-02",
	"02/01/2006",
}

var dayLayoutsNoYear = []string{
	"2 January",
	"January 2",
}

// parseDayHeader parses English or French timeline day headers such as
// "Saturday, 20 April 2024", "samedi 20 avril 2024" or "Today".
func parseDayHeader(text string, now time.Time) (time.Time, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.ReplaceAll(s, "’", "'")

	switch {
	case s == "":
		return time.Time{}, fmt.Errorf("%w: empty date header", ErrScrapeParse)
	case strings.HasPrefix(s, "today"), strings.HasPrefix(s, "aujourd'hui"):
		return now, nil
	case strings.HasPrefix(s, "tomorrow"), strings.HasPrefix(s, "demain"):
		return now.AddDate(0, 0, 1), nil
	}

	fields := strings.Fields(strings.ReplaceAll(s, ",", " "))
	kept := fields[:0]
	for _, f := range fields {
		if weekdays[f] {
			continue
		}
		if en, ok := frenchMonths[f]; ok {
			f = en
		}
		if m := ordinalPattern.FindStringSubmatch(f); m != nil {
			f = m[1]
		}
		kept = append(kept, f)
	}
	s = strings.Join(kept, " ")

	for _, layout := range dayLayouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, nil
		}
	}
	for _, layout := range dayLayoutsNoYear {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			t = time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())
			if t.Before(now.AddDate(0, -1, 0)) {
				t = t.AddDate(1, 0, 0)
			}
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized date header %q", ErrScrapeParse, text)
}

var clockPattern = regexp.MustCompile(`(?i)(\d{1,2})\s*[:h]\s*(\d{2})\s*([ap]\.?m\.?)?`)

// parseClock parses "23:59", "11:59 PM" or "23h59".
func parseClock(text string) (int, int, error) {
	m := clockPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: unrecognized time %q", ErrScrapeParse, text)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if suffix := strings.ToLower(strings.ReplaceAll(m[3], ".", "")); suffix != "" {
		if hour < 1 || hour > 12 {
			return 0, 0, fmt.Errorf("%w: invalid time %q", ErrScrapeParse, text)
		}
		hour %= 12
		if suffix == "pm" {
			hour += 12
		}
	}
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: invalid time %q", ErrScrapeParse, text)
	}
	return hour, minute, nil
}
