package extract

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Parser converts serialized dashboard markup into records. It holds no
// state between calls: identical input yields identical output.
type Parser struct {
	// Base resolves relative links. Nil leaves hrefs untouched.
	Base *url.URL
	// Location is the timezone dates on the timeline are shown in.
	Location *time.Location
	// Now anchors relative day headers such as "Today".
	Now func() time.Time
}

func (p Parser) location() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

func (p Parser) now() time.Time {
	if p.Now == nil {
		return time.Now().In(p.location())
	}
	return p.Now().In(p.location())
}

func (p Parser) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || p.Base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return p.Base.ResolveReference(ref).String()
}

func parseDocument(raw string) (*goquery.Document, error) {
	root, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScrapeParse, err)
	}
	return goquery.NewDocumentFromNode(root), nil
}

// visibleText returns the whitespace-collapsed text of s without
// screen-reader-only labels.
func visibleText(s *goquery.Selection) string {
	c := s.Clone()
	c.Find(hiddenText).Remove()
	return strings.Join(strings.Fields(c.Text()), " ")
}

// isEmptyView decides whether a container with no item matches is a genuinely
// empty view or a layout the candidates no longer recognize.
func isEmptyView(container *goquery.Selection, empty, links Candidates) bool {
	if found, _ := empty.First(container); found != nil {
		return true
	}
	found, _ := links.First(container)
	return found == nil
}

// stillLoading reports whether any loading placeholder remains in raw.
func stillLoading(raw string) bool {
	doc, err := parseDocument(raw)
	if err != nil {
		return false
	}
	found, _ := loadingSelectors.First(doc.Selection)
	return found != nil
}

// looksLikeLogin reports whether raw contains a login form.
func looksLikeLogin(raw string) bool {
	doc, err := parseDocument(raw)
	if err != nil {
		return false
	}
	found, _ := loginSelectors.First(doc.Selection)
	return found != nil
}
