package pipeline

import (
	"github.com/rs/zerolog"

	"newslettersync_go/htmltext"
	"newslettersync_go/linkfinder"
)

// DefaultVocabulary is the closed topic list offered to the classifier.
var DefaultVocabulary = []string{
	"tech", "business", "finance", "ai", "design",
	"software development", "productivity", "crypto",
}

// Limits bounds what each model-backed stage sends and asks for. Character
// limits count runes.
type Limits struct {
	SummaryChars      int
	ClassifyBodyChars int // body excerpt appended to a summary
	ClassifyOnlyChars int // body excerpt when there is no summary
	LinkHTMLChars     int

	SummaryTokens  int
	ClassifyTokens int
	LinkTokens     int
}

// DefaultLimits returns the stock bounds.
func DefaultLimits() Limits {
	return Limits{
		SummaryChars:      10000,
		ClassifyBodyChars: 1000,
		ClassifyOnlyChars: 1500,
		LinkHTMLChars:     5000,
		SummaryTokens:     100,
		ClassifyTokens:    50,
		LinkTokens:        150,
	}
}

// Options is read-only after New and shared by concurrent Runs.
type Options struct {
	Vocabulary    []string
	FooterMarkers []string
	Finder        *linkfinder.Finder
	Limits        Limits
	// Model names per stage; empty means the client default.
	SummaryModel  string
	ClassifyModel string
	LinkModel     string
	Logger        zerolog.Logger
}

// Option mutates Options during New.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		Vocabulary:    DefaultVocabulary,
		FooterMarkers: htmltext.DefaultFooterMarkers,
		Limits:        DefaultLimits(),
		Logger:        zerolog.Nop(),
	}
}

func WithVocabulary(v []string) Option {
	return func(o *Options) {
		if len(v) > 0 {
			o.Vocabulary = v
		}
	}
}

func WithFooterMarkers(m []string) Option {
	return func(o *Options) {
		if len(m) > 0 {
			o.FooterMarkers = m
		}
	}
}

// WithFinder swaps the heuristic link finder, e.g. one built from
// deployment-specific rules.
func WithFinder(f *linkfinder.Finder) Option {
	return func(o *Options) { o.Finder = f }
}

func WithLimits(l Limits) Option {
	return func(o *Options) { o.Limits = l }
}

// WithModels sets per-stage model names.
func WithModels(summary, classify, link string) Option {
	return func(o *Options) {
		o.SummaryModel = summary
		o.ClassifyModel = classify
		o.LinkModel = link
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}
