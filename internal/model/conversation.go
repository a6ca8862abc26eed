package model

// NoteList holds release note lines already rendered for the caption:
// bulleted, HTML-escaped and with [text](url) turned into links.
type NoteList []string

// Draft is one preview that can still be confirmed or cancelled. The preview
// message itself is identified by the button press that references the draft.
// Notes live here so confirmation never has to scrape them back out of the caption.
type Draft struct {
	ID         int64
	OperatorID int64
	ChatID     int64
	Codename   string
	Poster     string
	Notes      NoteList
}

// PendingPost links an outstanding notes prompt to the preview it will edit.
// There is at most one per operator.
type PendingPost struct {
	DraftID          int64
	OperatorID       int64
	ChatID           int64
	Codename         string
	Poster           string
	PreviewMessageID int
	PromptMessageID  int
}
