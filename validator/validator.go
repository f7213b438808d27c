package validator

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"newslettersync_go/pipeline"
)

const maxSummaryWords = 60

// ValidateResult sanity-checks a pipeline result. It returns "" when the
// result looks fine, otherwise a description of the first problem found.
// Problems are worth a log line, never a failed import.
func ValidateResult(res pipeline.Result, vocabulary []string) string {
	if res.CleanedText == "" {
		return "Empty cleaned text"
	}
	if !utf8.ValidString(res.CleanedText) {
		return "Cleaned text is not valid UTF-8"
	}

	switch res.Summary {
	case "":
		return "Missing summary"
	case pipeline.ErrorSummary:
		return "Summary generation failed"
	}
	if n := len(strings.Fields(res.Summary)); n > maxSummaryWords {
		return fmt.Sprintf("Summary runs to %d words", n)
	}

	if len(res.Topics) == 0 {
		return "No topics assigned"
	}
	if len(res.Topics) > 3 {
		return fmt.Sprintf("Too many topics: %d", len(res.Topics))
	}
	for _, t := range res.Topics {
		if len(vocabulary) > 0 && !slices.Contains(vocabulary, t) {
			return "Topic outside vocabulary: " + t
		}
	}

	if res.ViewInBrowserLink == "" {
		return "No article link found"
	}
	return ""
}
