// Package pipeline enriches one newsletter body: clean the HTML, find the
// canonical link (heuristically, then through the model as a fallback),
// summarize and classify.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"newslettersync_go/linkfinder"
	"newslettersync_go/llm"
)

// ErrPipeline wraps every failure that aborts a Run.
var ErrPipeline = errors.New("pipeline failed")

// Model is the text-generation collaborator. *llm.Client satisfies it.
type Model interface {
	Invoke(ctx context.Context, req llm.Request) (llm.Response, error)
}

// Stage turns the current state into a partial update.
type Stage func(ctx context.Context, s State) (Update, error)

type Step int

const (
	StepClean Step = iota
	StepExtractLink
	StepSummarize
	StepClassify
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepClean:
		return "clean"
	case StepExtractLink:
		return "extract_link"
	case StepSummarize:
		return "summarize"
	case StepClassify:
		return "classify"
	case StepDone:
		return "done"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Pipeline holds read-only configuration and the model client; Run may be
// called concurrently.
type Pipeline struct {
	model  Model
	opts   Options
	log    zerolog.Logger
	stages map[Step]Stage
}

func New(model Model, opts ...Option) *Pipeline {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Finder == nil {
		o.Finder = linkfinder.Default()
	}

	p := &Pipeline{
		model: model,
		opts:  o,
		log:   o.Logger.With().Str("component", "pipeline").Logger(),
	}
	p.stages = map[Step]Stage{
		StepClean:       p.Clean,
		StepExtractLink: p.ExtractLink,
		StepSummarize:   p.Summarize,
		StepClassify:    p.Classify,
	}
	return p
}

// Run enriches htmlBody. Any stage error or panic aborts the run with an
// error wrapping ErrPipeline and no partial result.
func (p *Pipeline) Run(ctx context.Context, htmlBody string) (res Result, err error) {
	step := StepClean
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = fmt.Errorf("%w: %s stage panicked: %v", ErrPipeline, step, r)
		}
	}()

	st := State{HTMLBody: htmlBody}
	for step != StepDone {
		stage, ok := p.stages[step]
		if !ok {
			return Result{}, fmt.Errorf("%w: no stage for %s", ErrPipeline, step)
		}

		up, err := stage(ctx, st)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %s: %w", ErrPipeline, step, err)
		}
		st = Merge(st, up)
		step = next(step, st)
	}

	p.log.Debug().
		Bool("link", st.ViewInBrowserLink != "").
		Strs("topics", st.Topics).
		Msg("run complete")
	return st.result(), nil
}

// next routes after step. The model link fallback only runs when Clean left
// the link empty.
func next(step Step, st State) Step {
	switch step {
	case StepClean:
		if st.ViewInBrowserLink != "" {
			return StepSummarize
		}
		return StepExtractLink
	case StepExtractLink:
		return StepSummarize
	case StepSummarize:
		return StepClassify
	}
	return StepDone
}
