package format

import (
	"fmt"
	"strings"

	"afterlife.app/publisher/internal/model"
	"afterlife.app/publisher/internal/transport"
)

// ReleaseKeyboard is the five-link keyboard attached to published posts.
func (f *Formatter) ReleaseKeyboard(rec *model.ReleaseRecord) transport.Keyboard {
	deviceSupport := orDefault(rec.SupportGroup, f.links.Support)
	download := fmt.Sprintf("%s/%s/", strings.TrimSuffix(f.links.DownloadBase, "/"), rec.Codename)

	return transport.Keyboard{
		{
			{Text: "Download", URL: download},
			{Text: "Source Changelogs", URL: f.links.SourceChangelogs},
		},
		{
			{Text: "Support Group", URL: f.links.Support},
			{Text: "Donate", URL: f.links.Donate},
		},
		{
			{Text: "Device Support", URL: deviceSupport},
		},
	}
}
