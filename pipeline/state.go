package pipeline

// State is threaded through the stages of one Run. Empty strings and a nil
// Topics slice mean "not produced yet".
type State struct {
	HTMLBody          string
	CleanedText       string
	ViewInBrowserLink string
	Summary           string
	Topics            []string
	Error             string
}

// Update is the partial state a stage returns. It has no HTMLBody field, so
// no stage can overwrite the input.
type Update struct {
	CleanedText       string
	ViewInBrowserLink string
	Summary           string
	Topics            []string
	Error             string
}

// Result is the enriched output of a successful Run.
type Result struct {
	CleanedText       string   `json:"cleanedText"`
	ViewInBrowserLink string   `json:"viewInBrowserLink,omitempty"`
	Summary           string   `json:"summary"`
	Topics            []string `json:"topics"`
}

// Merge applies u to s field by field: non-empty strings replace, empty ones
// never do. A non-nil Topics slice replaces even when empty.
func Merge(s State, u Update) State {
	s.CleanedText = pick(s.CleanedText, u.CleanedText)
	s.ViewInBrowserLink = pick(s.ViewInBrowserLink, u.ViewInBrowserLink)
	s.Summary = pick(s.Summary, u.Summary)
	s.Error = pick(s.Error, u.Error)
	if u.Topics != nil {
		s.Topics = u.Topics
	}
	return s
}

func pick(old, next string) string {
	if next != "" {
		return next
	}
	return old
}

func (s State) result() Result {
	topics := s.Topics
	if topics == nil {
		topics = []string{}
	}
	return Result{
		CleanedText:       s.CleanedText,
		ViewInBrowserLink: s.ViewInBrowserLink,
		Summary:           s.Summary,
		Topics:            topics,
	}
}
