package pipeline

import (
	"fmt"
	"strings"
)

const (
	NoContentSummary = "No content to summarize."
	ErrorSummary     = "Error generating summary."

	noLink = "NONE"
)

func summarizePrompt(content string) string {
	return fmt.Sprintf(`Summarize this newsletter in at most 50 words. Be concise and informative.

Newsletter Content:
%s
`, content)
}

func classifyPrompt(vocabulary []string, content string) string {
	return fmt.Sprintf(`Classify this newsletter into 1-3 topic tags from: [%s]. Return only comma-separated tags.

Content:
%s
`, strings.Join(vocabulary, ", "), content)
}

func extractLinkPrompt(html string) string {
	return fmt.Sprintf(`Extract the main article link from this HTML email.

Return the literal href of an <a> element that appears in the HTML below. In order of priority:
1. A link wrapping the main headline (inside h1, h2 or h3)
2. A "View in browser" / "Read online" / "Web version" link
3. A long, descriptive link pointing to the main article or post

Never invent, complete or template a URL. Return ONLY the URL, nothing else.
If no such link exists, return %s.

HTML:
%s
`, noLink, html)
}
