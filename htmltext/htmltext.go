// Package htmltext flattens newsletter HTML into readable plain text.
//
// Two variants share one extractor: PlainText for generic text derivation
// and CleanText for pipeline input, which additionally drops media and
// footer blocks and keeps block boundaries as line breaks.
package htmltext

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// DefaultFooterMarkers are matched as substrings of class and id attributes.
var DefaultFooterMarkers = []string{"footer", "unsubscribe"}

const (
	alwaysDropped = "script, style, head, noscript"
	mediaDropped  = "img, svg, iframe"
	blockElements = "p, div, h1, h2, h3, h4, h5, h6, li, tr, blockquote"
)

// Options selects what the extractor removes and keeps.
type Options struct {
	DropMedia   bool
	DropFooters bool
	// FooterMarkers are case-sensitive substrings of class/id attributes.
	// Empty means DefaultFooterMarkers.
	FooterMarkers []string
	// PreserveBlockBreaks turns <br> into a newline and ends every non-empty
	// block element with one.
	PreserveBlockBreaks bool
}

// Strict returns the options used to clean pipeline input.
func Strict(markers []string) Options {
	return Options{
		DropMedia:           true,
		DropFooters:         true,
		FooterMarkers:       markers,
		PreserveBlockBreaks: true,
	}
}

// Extract parses doc and returns its normalized visible text.
func Extract(doc string, opts Options) (string, error) {
	if strings.TrimSpace(doc) == "" {
		return "", nil
	}

	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	d.Find(alwaysDropped).Remove()
	if opts.DropMedia {
		d.Find(mediaDropped).Remove()
	}
	if opts.DropFooters {
		removeFooters(d, opts.FooterMarkers)
	}
	if opts.PreserveBlockBreaks {
		d.Find("br").Each(func(_ int, s *goquery.Selection) {
			s.ReplaceWithNodes(textNode("\n"))
		})
		d.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
			if strings.TrimSpace(s.Text()) != "" {
				s.AppendNodes(textNode("\n"))
			}
		})
	}

	text := d.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		text = d.Text()
	}
	return Normalize(text), nil
}

// PlainText is the plain variant: scripts, styles and head removed, nothing
// else touched. Absent input gives "".
func PlainText(doc string) string {
	text, err := Extract(doc, Options{})
	if err != nil {
		return ""
	}
	return text
}

// CleanText is the strict variant used on pipeline input.
func CleanText(doc string, markers []string) (string, error) {
	return Extract(doc, Strict(markers))
}

func removeFooters(d *goquery.Document, markers []string) {
	if len(markers) == 0 {
		markers = DefaultFooterMarkers
	}

	d.Find("footer").Remove()
	d.Find("[class], [id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		for _, m := range markers {
			if m == "" {
				continue
			}
			if strings.Contains(class, m) || strings.Contains(id, m) {
				return true
			}
		}
		return false
	}).Remove()
}

func textNode(data string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: data}
}
