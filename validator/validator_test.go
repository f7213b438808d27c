package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"newslettersync_go/pipeline"
)

func TestValidateResult(t *testing.T) {
	good := pipeline.Result{
		CleanedText:       "Body text",
		ViewInBrowserLink: "https://a.test/p",
		Summary:           "A short summary.",
		Topics:            []string{"ai", "tech"},
	}

	tests := []struct {
		name   string
		mutate func(r *pipeline.Result)
		want   string
	}{
		{"ok", func(r *pipeline.Result) {}, ""},
		{"empty text", func(r *pipeline.Result) { r.CleanedText = "" }, "Empty cleaned text"},
		{"error summary", func(r *pipeline.Result) { r.Summary = pipeline.ErrorSummary }, "Summary generation failed"},
		{"long summary", func(r *pipeline.Result) { r.Summary = strings.Repeat("word ", 80) }, "Summary runs to 80 words"},
		{"no topics", func(r *pipeline.Result) { r.Topics = []string{} }, "No topics assigned"},
		{"too many topics", func(r *pipeline.Result) { r.Topics = []string{"ai", "tech", "design", "crypto"} }, "Too many topics: 4"},
		{"unknown topic", func(r *pipeline.Result) { r.Topics = []string{"gardening"} }, "Topic outside vocabulary: gardening"},
		{"no link", func(r *pipeline.Result) { r.ViewInBrowserLink = "" }, "No article link found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := good
			r.Topics = append([]string(nil), good.Topics...)
			tt.mutate(&r)
			assert.Equal(t, tt.want, ValidateResult(r, pipeline.DefaultVocabulary))
		})
	}
}

func TestValidateResultOpenVocabulary(t *testing.T) {
	r := pipeline.Result{CleanedText: "x", Summary: "s", Topics: []string{"gardening"}, ViewInBrowserLink: "https://a.test"}
	assert.Equal(t, "", ValidateResult(r, nil))
}
