package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLinkValidation(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		want  string
	}{
		{"none", "NONE", nil, ""},
		{"none lowercase", " none\n", nil, ""},
		{"non-http scheme", "ftp://x", nil, ""},
		{"https", "https://a.test/p", nil, "https://a.test/p"},
		{"http with whitespace", "  http://a.test/p\n", nil, "http://a.test/p"},
		{"chatty reply", "The link is https://a.test/p", nil, ""},
		{"empty reply", "", nil, ""},
		{"model error", "https://a.test/p", errors.New("timeout"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newFakeModel()
			m.replies["link"] = tt.reply
			m.errs["link"] = tt.err

			up, err := New(m).ExtractLink(context.Background(), State{HTMLBody: "<p>hi</p>"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, up.ViewInBrowserLink)
			assert.Equal(t, 1, m.count("link"))
		})
	}
}

func TestExtractLinkSkips(t *testing.T) {
	m := newFakeModel()
	p := New(m)

	up, err := p.ExtractLink(context.Background(), State{})
	require.NoError(t, err)
	assert.Equal(t, Update{}, up)

	up, err = p.ExtractLink(context.Background(), State{HTMLBody: "<p>x</p>", ViewInBrowserLink: "https://a.test"})
	require.NoError(t, err)
	assert.Equal(t, Update{}, up)

	assert.Equal(t, 0, m.count("link"))
}

func TestExtractLinkTruncatesHTML(t *testing.T) {
	m := newFakeModel()
	m.replies["link"] = "NONE"

	html := strings.Repeat("é", 6000)
	_, err := New(m).ExtractLink(context.Background(), State{HTMLBody: html})
	require.NoError(t, err)

	require.Len(t, m.prompts["link"], 1)
	assert.Equal(t, 5000, strings.Count(m.prompts["link"][0], "é"))
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name      string
		cleaned   string
		reply     string
		err       error
		want      string
		wantCalls int
	}{
		{"no content", "", "unused", nil, NoContentSummary, 0},
		{"model reply", "Some text", "  A tidy summary.\n", nil, "A tidy summary.", 1},
		{"empty reply", "Some text", "   ", nil, ErrorSummary, 1},
		{"model error", "Some text", "", errors.New("503"), ErrorSummary, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newFakeModel()
			m.replies["summarize"] = tt.reply
			m.errs["summarize"] = tt.err

			up, err := New(m).Summarize(context.Background(), State{CleanedText: tt.cleaned})
			require.NoError(t, err)
			assert.Equal(t, tt.want, up.Summary)
			assert.Equal(t, tt.wantCalls, m.count("summarize"))
		})
	}
}

func TestStageRequestSettings(t *testing.T) {
	m := newFakeModel()
	m.replies["link"] = "NONE"
	m.replies["summarize"] = "ok"
	m.replies["classify"] = "ai"

	_, err := New(m).Run(context.Background(), "<p>No anchors here, only text.</p>")
	require.NoError(t, err)

	tests := []struct {
		stage       string
		maxTokens   int
		temperature float32
	}{
		{"link", 150, 0},
		{"summarize", 100, 0.1},
		{"classify", 50, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.stage, func(t *testing.T) {
			require.Len(t, m.reqs[tt.stage], 1)
			req := m.reqs[tt.stage][0]
			assert.Equal(t, tt.maxTokens, req.MaxTokens)
			assert.Equal(t, tt.temperature, req.Temperature)
		})
	}
}

func TestSummarizeTruncates(t *testing.T) {
	m := newFakeModel()
	m.replies["summarize"] = "ok"

	_, err := New(m).Summarize(context.Background(), State{CleanedText: strings.Repeat("ü", 12000)})
	require.NoError(t, err)
	assert.Equal(t, 10000, strings.Count(m.prompts["summarize"][0], "ü"))
}

func TestClassify(t *testing.T) {
	m := newFakeModel()
	m.replies["classify"] = "Finance, Business"

	up, err := New(m).Classify(context.Background(), State{
		Summary:     "A newsletter about fundraising and venture capital",
		CleanedText: "body",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"finance", "business"}, up.Topics)

	prompt := m.prompts["classify"][0]
	assert.Contains(t, prompt, "A newsletter about fundraising and venture capital\n\nbody")
	assert.Contains(t, prompt, "software development")
}

func TestClassifyInputBounds(t *testing.T) {
	l := DefaultLimits()
	body := strings.Repeat("a", 2000)

	assert.Equal(t, "sum\n\n"+strings.Repeat("a", 1000), classifyInput(State{Summary: "sum", CleanedText: body}, l))
	assert.Equal(t, strings.Repeat("a", 1500), classifyInput(State{CleanedText: body}, l))
	assert.Equal(t, "", classifyInput(State{}, l))
}

func TestClassifyNoContent(t *testing.T) {
	m := newFakeModel()

	up, err := New(m).Classify(context.Background(), State{})
	require.NoError(t, err)
	assert.NotNil(t, up.Topics)
	assert.Empty(t, up.Topics)
	assert.Equal(t, 0, m.count("classify"))
}

func TestClassifyModelError(t *testing.T) {
	m := newFakeModel()
	m.errs["classify"] = errors.New("boom")

	up, err := New(m).Classify(context.Background(), State{CleanedText: "text"})
	require.NoError(t, err)
	assert.Equal(t, []string{}, up.Topics)
}

func TestClassifyCustomVocabulary(t *testing.T) {
	m := newFakeModel()
	m.replies["classify"] = "climate"

	up, err := New(m, WithVocabulary([]string{"climate", "energy"})).Classify(context.Background(), State{CleanedText: "text"})
	require.NoError(t, err)
	assert.Equal(t, []string{"climate"}, up.Topics)
	assert.Contains(t, m.prompts["classify"][0], "[climate, energy]")
}

func TestParseTopics(t *testing.T) {
	tests := []struct {
		reply string
		want  []string
	}{
		{"Finance, Business", []string{"finance", "business"}},
		{"ai", []string{"ai"}},
		{`"Tech", 'AI'.`, []string{"tech", "ai"}},
		{"Software Development, tech, TECH", []string{"software development", "tech"}},
		{" , ,", []string{}},
		{"", []string{}},
		{"crypto.\n", []string{"crypto"}},
	}

	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTopics(tt.reply))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", truncate("héllo", 4))
	assert.Equal(t, "héllo", truncate("héllo", 10))
	assert.Equal(t, "héllo", truncate("héllo", 0))
}
