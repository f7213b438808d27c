package htmltext

import (
	"fmt"

	"github.com/jaytaylor/html2text"
)

// Readable renders doc as text with link targets kept inline, for people
// tuning link heuristics against real mail.
func Readable(doc string) (string, error) {
	text, err := html2text.FromString(doc, html2text.Options{PrettyTables: true})
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return text, nil
}
