package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"newslettersync_go/htmltext"
	"newslettersync_go/llm"
)

// Clean extracts the cleaned text and the heuristic link.
func (p *Pipeline) Clean(_ context.Context, s State) (Update, error) {
	text, err := htmltext.CleanText(s.HTMLBody, p.opts.FooterMarkers)
	if err != nil {
		return Update{}, fmt.Errorf("clean html: %w", err)
	}

	link, ok := p.opts.Finder.Find(s.HTMLBody)
	p.log.Debug().Str("stage", StepClean.String()).
		Int("chars", len(text)).
		Bool("heuristic_link", ok).
		Msg("cleaned")

	return Update{CleanedText: text, ViewInBrowserLink: link}, nil
}

// ExtractLink asks the model for the article link. Anything but an http(s)
// URL is discarded. Model failures leave the link absent.
func (p *Pipeline) ExtractLink(ctx context.Context, s State) (Update, error) {
	log := p.log.With().Str("stage", StepExtractLink.String()).Logger()
	if s.ViewInBrowserLink != "" {
		return Update{}, nil
	}
	if s.HTMLBody == "" {
		log.Debug().Msg("no html body")
		return Update{}, nil
	}

	resp, err := p.model.Invoke(ctx, llm.Request{
		Prompt:      extractLinkPrompt(truncate(s.HTMLBody, p.opts.Limits.LinkHTMLChars)),
		MaxTokens:   p.opts.Limits.LinkTokens,
		Temperature: 0,
		Model:       p.opts.LinkModel,
	})
	if err != nil {
		log.Warn().Err(err).Msg("link extraction failed")
		return Update{}, nil
	}

	link, ok := validLink(resp.Content)
	if !ok {
		log.Debug().Str("reply", truncate(resp.Content, 80)).Msg("no usable link")
		return Update{}, nil
	}
	log.Debug().Str("link", link).Msg("model link")
	return Update{ViewInBrowserLink: link}, nil
}

func validLink(reply string) (string, bool) {
	reply = strings.TrimSpace(reply)
	if strings.EqualFold(reply, noLink) {
		return "", false
	}
	if strings.HasPrefix(reply, "http://") || strings.HasPrefix(reply, "https://") {
		return reply, true
	}
	return "", false
}

// Summarize produces a short summary, or one of the fixed sentinels.
func (p *Pipeline) Summarize(ctx context.Context, s State) (Update, error) {
	if s.CleanedText == "" {
		return Update{Summary: NoContentSummary}, nil
	}

	resp, err := p.model.Invoke(ctx, llm.Request{
		Prompt:      summarizePrompt(truncate(s.CleanedText, p.opts.Limits.SummaryChars)),
		MaxTokens:   p.opts.Limits.SummaryTokens,
		Temperature: 0.1,
		Model:       p.opts.SummaryModel,
	})
	if err != nil {
		p.log.Warn().Err(err).Str("stage", StepSummarize.String()).Msg("summarization failed")
		return Update{Summary: ErrorSummary}, nil
	}

	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return Update{Summary: ErrorSummary}, nil
	}
	return Update{Summary: summary}, nil
}

// Classify tags the newsletter. It always yields a non-nil Topics slice.
func (p *Pipeline) Classify(ctx context.Context, s State) (Update, error) {
	text := classifyInput(s, p.opts.Limits)
	if text == "" {
		return Update{Topics: []string{}}, nil
	}

	resp, err := p.model.Invoke(ctx, llm.Request{
		Prompt:      classifyPrompt(p.opts.Vocabulary, text),
		MaxTokens:   p.opts.Limits.ClassifyTokens,
		Temperature: 0.1,
		Model:       p.opts.ClassifyModel,
	})
	if err != nil {
		p.log.Warn().Err(err).Str("stage", StepClassify.String()).Msg("classification failed")
		return Update{Topics: []string{}}, nil
	}
	return Update{Topics: ParseTopics(resp.Content)}, nil
}

func classifyInput(s State, l Limits) string {
	if s.Summary != "" {
		return s.Summary + "\n\n" + truncate(s.CleanedText, l.ClassifyBodyChars)
	}
	return truncate(s.CleanedText, l.ClassifyOnlyChars)
}

const tagCutset = " \t\r\n\"'`"

// ParseTopics splits a comma-separated model reply into lowercase tags,
// dropping empties and repeats. Tags outside the vocabulary are kept.
func ParseTopics(reply string) []string {
	tags := lo.Map(strings.Split(reply, ","), func(t string, _ int) string {
		t = strings.TrimLeft(t, tagCutset)
		t = strings.TrimRight(t, tagCutset+".!;:")
		return strings.ToLower(t)
	})
	return lo.Uniq(lo.Filter(tags, func(t string, _ int) bool { return t != "" }))
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
