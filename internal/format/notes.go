package format

import (
	"html"
	"regexp"
	"strings"

	"afterlife.app/publisher/internal/model"
)

// URLs may contain one level of balanced parentheses, as in Wikipedia links.
var markdownLink = regexp.MustCompile(`\[([^\[\]]+)\]\((https?://(?:[^\s()]|\([^\s()]*\))+)\)`)

// ParseNotes turns an operator's free-text reply into caption-ready lines.
// Blank lines are dropped, order is kept, duplicates are kept.
func ParseNotes(raw string) model.NoteList {
	var notes model.NoteList
	for _, line := range strings.Split(raw, "\n") {
		if stripBullet(line) == "" {
			continue
		}
		notes = append(notes, Linkify(html.EscapeString(Bullet(line))))
	}
	return notes
}

// Bullet gives a line exactly one leading "- ", however many hyphens and
// spaces it started with. Bullet(Bullet(s)) == Bullet(s).
func Bullet(line string) string {
	return "- " + stripBullet(line)
}

func stripBullet(line string) string {
	return strings.TrimLeft(strings.TrimSpace(line), "- ")
}

// Linkify converts [text](url) into an HTML anchor. Only http(s) targets are
// converted; anything else is left as typed.
func Linkify(s string) string {
	return markdownLink.ReplaceAllString(s, `<a href="$2">$1</a>`)
}
