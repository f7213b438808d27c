package htmltext

import (
	"regexp"
	"strings"
)

var (
	lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\u2028", "\n", "\u2029", "\n")

	// Preheader padding in marketing mail is mostly made of these.
	invisibleRe  = regexp.MustCompile(`[\x{00ad}\x{034f}\x{200b}-\x{200d}\x{2060}\x{feff}]`)
	horizontalRe = regexp.MustCompile(`[ \t\f\v\x{00a0}\x{2000}-\x{200a}\x{202f}\x{205f}\x{3000}]+`)
	lineEdgeRe   = regexp.MustCompile(` *\n *`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// Normalize collapses whitespace the way a reader would perceive it: one
// space between words, no spaces at line edges, at most one blank line in a
// row, nothing at either end. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = lineEndings.Replace(s)
	s = invisibleRe.ReplaceAllString(s, "")
	s = horizontalRe.ReplaceAllString(s, " ")
	s = lineEdgeRe.ReplaceAllString(s, "\n")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
