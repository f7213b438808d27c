// Package linkfinder locates the "view in browser" or main article link of a
// newsletter without calling a model.
//
// Anchors are scanned once. An explicit view-in-browser affordance wins
// immediately; otherwise the first anchor that looks like the main article
// is returned.
package linkfinder

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Tier says why an anchor was picked.
type Tier int

const (
	TierNone Tier = iota
	TierExplicit
	TierArticleLink
	TierArticleText
	TierHeadline
	TierHeading
)

func (t Tier) String() string {
	switch t {
	case TierExplicit:
		return "explicit"
	case TierArticleLink:
		return "article-link"
	case TierArticleText:
		return "article-text"
	case TierHeadline:
		return "headline"
	case TierHeading:
		return "heading"
	default:
		return "none"
	}
}

// Candidate describes one anchor as the finder sees it.
type Candidate struct {
	Href   string
	Text   string
	Signal string
	Tier   Tier
	// Skipped is set for anchors that were not considered at all.
	Skipped string
}

// Finder is safe for concurrent use.
type Finder struct {
	rules    Rules
	patterns []*regexp.Regexp
}

// New compiles rules.
func New(rules Rules) (*Finder, error) {
	f := &Finder{rules: rules}
	for _, p := range rules.ViewInBrowserPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("view-in-browser pattern %q: %w", p, err)
		}
		f.patterns = append(f.patterns, re)
	}
	return f, nil
}

// Default returns a Finder with DefaultRules.
func Default() *Finder {
	f, err := New(DefaultRules())
	if err != nil {
		panic(err)
	}
	return f
}

// Find returns the best link in doc, or false when there is none.
func (f *Finder) Find(doc string) (string, bool) {
	d, ok := parse(doc)
	if !ok {
		return "", false
	}

	var found, fallback string
	d.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		c := f.inspect(s)
		switch {
		case c.Skipped != "":
		case c.Tier == TierExplicit:
			found = c.Href
			return false
		case c.Tier != TierNone && fallback == "":
			fallback = c.Href
		}
		return true
	})

	if found != "" {
		return found, true
	}
	return fallback, fallback != ""
}

// Candidates lists every anchor in doc with the tier it satisfies.
func (f *Finder) Candidates(doc string) []Candidate {
	d, ok := parse(doc)
	if !ok {
		return nil
	}

	var out []Candidate
	d.Find("a").Each(func(_ int, s *goquery.Selection) {
		out = append(out, f.inspect(s))
	})
	return out
}

func (f *Finder) inspect(s *goquery.Selection) Candidate {
	href, _ := s.Attr("href")
	href = strings.TrimSpace(href)
	text := strings.TrimSpace(s.Text())
	c := Candidate{Href: href, Text: text}

	switch {
	case href == "":
		c.Skipped = "no href"
		return c
	case strings.HasPrefix(strings.ToLower(href), "mailto:"):
		c.Skipped = "mailto"
		return c
	case href == "#":
		c.Skipped = "placeholder"
		return c
	}

	aria, _ := s.Attr("aria-label")
	title, _ := s.Attr("title")
	c.Signal = joinNonEmpty(text, strings.TrimSpace(aria), strings.TrimSpace(title))

	for _, re := range f.patterns {
		if re.MatchString(c.Signal) {
			c.Tier = TierExplicit
			return c
		}
	}

	c.Tier = f.fallbackTier(s, href, text)
	return c
}

func (f *Finder) fallbackTier(s *goquery.Selection, href, text string) Tier {
	for _, sub := range f.rules.ArticleLinkSubstrings {
		if sub != "" && strings.Contains(href, sub) {
			return TierArticleLink
		}
	}

	lower := strings.ToLower(text)
	for _, words := range f.rules.ArticleTextMarkers {
		if containsAll(lower, words) {
			return TierArticleText
		}
	}

	if utf8.RuneCountInString(text) > f.rules.MinHeadlineLength && !f.boilerplate(lower) {
		return TierHeadline
	}

	if f.rules.HeadingAnchors && s.Closest("h1, h2, h3").Length() > 0 {
		return TierHeading
	}
	return TierNone
}

func (f *Finder) boilerplate(lower string) bool {
	for _, p := range f.rules.BoilerplatePrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

func parse(doc string) (*goquery.Document, bool) {
	if strings.TrimSpace(doc) == "" {
		return nil, false
	}
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return nil, false
	}
	return d, true
}

func containsAll(s string, words []string) bool {
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if !strings.Contains(s, strings.ToLower(w)) {
			return false
		}
	}
	return true
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
