package linkfinder

// Rules are the sender-specific knobs of the finder. They are tuned per
// deployment, so everything here can be overridden from configuration.
type Rules struct {
	// ViewInBrowserPatterns are regular expressions, matched
	// case-insensitively against anchor text, aria-label and title.
	ViewInBrowserPatterns []string
	// ArticleLinkSubstrings mark hrefs that point at a hosted article.
	ArticleLinkSubstrings []string
	// ArticleTextMarkers are word groups; an anchor whose text contains
	// every word of one group is an article link.
	ArticleTextMarkers [][]string
	// BoilerplatePrefixes disqualify long anchor texts from the headline rule.
	BoilerplatePrefixes []string
	// MinHeadlineLength is the anchor text length, in characters, above
	// which an anchor looks like a headline.
	MinHeadlineLength int
	// HeadingAnchors treats anchors inside h1-h3 as article links.
	HeadingAnchors bool
}

// DefaultRules returns the rules observed to work on common newsletter
// platforms.
func DefaultRules() Rules {
	return Rules{
		ViewInBrowserPatterns: []string{
			`view\s+(this\s+)?(email\s+)?in\s+(your\s+)?browser`,
			`view\s+(this\s+)?(email\s+)?online`,
			`view\s+(this\s+)?in\s+(a\s+)?web\s*browser`,
			`read\s+(this\s+)?online`,
			`view\s+online`,
			`open\s+in\s+browser`,
			`browser\s+version`,
			`web\s+version`,
			`view\s+in\s+your\s+browser`,
			`open\s+in\s+your\s+browser`,
			`click\s+here\s+to\s+view`,
			`view\s+on\s+web`,
			`read\s+in\s+browser`,
			`see\s+web\s+version`,
			`having\s+trouble\s+viewing`,
			`can'?t\s+see\s+this`,
			`view\s+as\s+web\s*page`,
		},
		ArticleLinkSubstrings: []string{
			"substack.com/app-link/post",
			"substack.com/p/",
			"alphasignal.ai/c?",
		},
		ArticleTextMarkers: [][]string{
			{"read", "detail"},
		},
		BoilerplatePrefixes: []string{
			"subscribe",
			"signup",
			"follow",
			"unsubscribe",
			"view",
			"click here",
			"join",
		},
		MinHeadlineLength: 20,
		HeadingAnchors:    true,
	}
}
