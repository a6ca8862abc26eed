package format

import (
	"fmt"
	"html"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"afterlife.app/publisher/internal/model"
)

const (
	androidVersion = "Android 16"
	notesHeader    = "<b>Notes:</b>"
	closingTag     = "#NeverDie"
	dateLayout     = "02 January 2006"
)

// Links are the fixed external URLs used by posts and their keyboards.
type Links struct {
	DownloadBase     string // device page is {DownloadBase}/{codename}/
	SourceChangelogs string
	Support          string
	Donate           string
	UpdatesChannel   string
}

type Formatter struct {
	links Links
}

func New(links Links) *Formatter {
	return &Formatter{links: links}
}

// Post renders the announcement caption. poster stands in for the maintainer
// when the record has none. The notes block, header included, is present
// only when notes is non-empty.
func (f *Formatter) Post(rec *model.ReleaseRecord, poster string, notes model.NoteList) string {
	distribution := orDefault(rec.Distribution, model.Distribution)
	maintainerName := orDefault(rec.MaintainerName, poster)
	maintainerLink := orDefault(rec.MaintainerLink, "https://t.me/"+poster)

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s v%s | %s | %s</b>\n",
		esc(distribution), esc(orDefault(rec.Version, "Unknown")), esc(BuildType(rec.BuildType)), androidVersion)
	fmt.Fprintf(&b, "Supported Device: %s - %s\n", esc(orDefault(rec.DeviceName, rec.Codename)), esc(rec.Codename))
	fmt.Fprintf(&b, "Build date: %s\n", BuildDate(rec.BuildTimestamp))
	fmt.Fprintf(&b, "Size: %s\n", Size(rec.SizeBytes))
	fmt.Fprintf(&b, "Maintainer: <a href='%s'>%s</a>\n", esc(maintainerLink), esc(maintainerName))

	if len(notes) > 0 {
		fmt.Fprintf(&b, "\n%s\n%s\n", notesHeader, strings.Join(notes, "\n"))
	}

	b.WriteString("\nThere's nothing special about my rom, you can skip if you don't like, or you can taste it.\n")
	fmt.Fprintf(&b, "Subscribe For More <a href='%s'>%s</a>\n\n", esc(f.links.UpdatesChannel), esc(distribution))
	b.WriteString("Hope you all have a happy life\nThank you.\n\n")
	b.WriteString(TagLine(rec))

	return b.String()
}

// TagLine is "#AfterlifeOS #<codename> [#<release codename>] #NeverDie".
func TagLine(rec *model.ReleaseRecord) string {
	tags := []string{"#" + orDefault(rec.Distribution, model.Distribution), "#" + rec.Codename}
	if rec.ReleaseCodename != "" {
		tags = append(tags, "#"+rec.ReleaseCodename)
	}
	tags = append(tags, closingTag)
	return esc(strings.Join(tags, " "))
}

// Size renders bytes as gigabytes with two decimals, or "N/A".
func Size(bytes *float64) string {
	if bytes == nil || *bytes == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.2f GB", *bytes/(1024*1024*1024))
}

// BuildDate renders epoch seconds as "02 January 2006" in UTC, or "Unknown".
func BuildDate(ts *int64) string {
	if ts == nil || *ts == 0 {
		return "Unknown"
	}
	return time.Unix(*ts, 0).UTC().Format(dateLayout)
}

// BuildType title-cases the build classification, defaulting to "Unofficial".
func BuildType(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "Unofficial"
	}
	return cases.Title(language.English).String(s)
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func esc(s string) string {
	return html.EscapeString(s)
}
