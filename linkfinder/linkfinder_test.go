package linkfinder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindExplicitWinsOverEverything(t *testing.T) {
	doc := `<body>
		<h1><a href="https://news.test/story">A very long headline about markets today</a></h1>
		<a href="https://news.test/substack.com/p/other">Substack post</a>
		<a href="https://news.test/web/123">View this email in your browser</a>
		<a href="https://news.test/web/456">Read online</a>
	</body>`

	link, ok := Default().Find(doc)
	require.True(t, ok)
	assert.Equal(t, "https://news.test/web/123", link)
}

func TestFindExplicitPatterns(t *testing.T) {
	tests := []struct {
		name   string
		anchor string
	}{
		{name: "read online", anchor: `<a href="https://x.test/v">READ ONLINE</a>`},
		{name: "web version", anchor: `<a href="https://x.test/v">Web version</a>`},
		{name: "open in browser", anchor: `<a href="https://x.test/v">Open in browser</a>`},
		{name: "view as web page", anchor: `<a href="https://x.test/v">View as webpage</a>`},
		{name: "having trouble", anchor: `<a href="https://x.test/v">Having trouble viewing this email?</a>`},
		{name: "nested markup", anchor: `<a href="https://x.test/v"><span>View</span> <b>online</b></a>`},
		{name: "aria label", anchor: `<a href="https://x.test/v" aria-label="View in browser"><img src="i.png"></a>`},
		{name: "title", anchor: `<a href="https://x.test/v" title="Web version"></a>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := `<body><a href="https://x.test/home">Home</a>` + tt.anchor + `</body>`
			link, ok := Default().Find(doc)
			require.True(t, ok)
			assert.Equal(t, "https://x.test/v", link)
		})
	}
}

func TestFindLongTextFallback(t *testing.T) {
	doc := `<body>
		<a href="https://x.test/logo">Logo</a>
		<a href="https://x.test/subscribe">Subscribe to the weekly digest now</a>
		<a href="https://x.test/article">How we cut our cloud bill in half</a>
		<a href="https://x.test/second">Another fairly long article title here</a>
	</body>`

	link, ok := Default().Find(doc)
	require.True(t, ok)
	assert.Equal(t, "https://x.test/article", link)
}

func TestFindArticleLinkFallback(t *testing.T) {
	doc := `<body>
		<a href="https://bytebytego.substack.com/p/how-dns-works">Read</a>
		<a href="https://x.test/story">A long descriptive article title that comes later</a>
	</body>`

	link, ok := Default().Find(doc)
	require.True(t, ok)
	assert.Equal(t, "https://bytebytego.substack.com/p/how-dns-works", link)
}

func TestFindArticleTextMarker(t *testing.T) {
	doc := `<body><a href="https://vested.test/c/1">Read in detail</a></body>`

	link, ok := Default().Find(doc)
	require.True(t, ok)
	assert.Equal(t, "https://vested.test/c/1", link)
}

func TestFindHeadingAnchor(t *testing.T) {
	doc := `<html><body><h1><a href="https://ex.com/p">Title</a></h1><p>Hello world</p></body></html>`

	link, ok := Default().Find(doc)
	require.True(t, ok)
	assert.Equal(t, "https://ex.com/p", link)

	rules := DefaultRules()
	rules.HeadingAnchors = false
	f, err := New(rules)
	require.NoError(t, err)
	_, ok = f.Find(doc)
	assert.False(t, ok)
}

func TestFindNothing(t *testing.T) {
	doc := `<body>
		<a href="https://x.test/">Home</a>
		<a href="mailto:editor@x.test">Write to the editor with your feedback</a>
		<a href="MAILTO:editor@x.test">Or write to the editor in capitals</a>
		<a href="#">A placeholder anchor with plenty of text</a>
		<a>An anchor without any href but long text</a>
		<a href="https://x.test/u">Unsubscribe from all of these emails</a>
		<a href="https://x.test/f">Follow us on every social network</a>
		<a href="https://x.test/c">Click here to manage your preferences</a>
	</body>`

	link, ok := Default().Find(doc)
	assert.False(t, ok)
	assert.Empty(t, link)
}

func TestFindEmpty(t *testing.T) {
	_, ok := Default().Find("")
	assert.False(t, ok)
}

func TestNewRejectsBadPattern(t *testing.T) {
	rules := DefaultRules()
	rules.ViewInBrowserPatterns = []string{"view(in"}
	_, err := New(rules)
	assert.Error(t, err)
}

func TestCandidates(t *testing.T) {
	doc := `<body>
		<a href="mailto:a@x.test">mail</a>
		<a href="https://x.test/v">View online</a>
		<a href="https://x.test/s">A long descriptive article title</a>
		<a href="https://x.test/h">Hi</a>
	</body>`

	got := Default().Candidates(doc)
	require.Len(t, got, 4)
	assert.Equal(t, "mailto", got[0].Skipped)
	assert.Equal(t, TierExplicit, got[1].Tier)
	assert.Equal(t, TierHeadline, got[2].Tier)
	assert.Equal(t, TierNone, got[3].Tier)
	assert.Equal(t, "headline", got[2].Tier.String())
}
