package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"

	"afterlife.app/publisher/common/logger"
	"afterlife.app/publisher/internal/conversation"
	"afterlife.app/publisher/internal/fetcher"
	"afterlife.app/publisher/internal/format"
	"afterlife.app/publisher/internal/model"
	"afterlife.app/publisher/internal/store"
	"afterlife.app/publisher/internal/transport"
)

const (
	msgBannerMissing   = "⚠️ Banner not set. An admin can reply to an image with /setbanner."
	msgNotesPrompt     = "📝 Reply to this message with the release notes, one per line.\nUse [text](https://link) to add a link."
	msgPostSent        = "✅ Post sent to channel successfully."
	msgPostCanceled    = "❌ Post canceled."
	msgInvalidButton   = "This button is no longer valid."
	msgDraftGone       = "This post is no longer active."
	btnNotesYes        = "📝 Yes, add notes"
	btnNotesNo         = "➡️ No, continue"
	btnConfirm         = "✅ Post to Channel"
	btnCancel          = "❌ Cancel"
	fetchFailedPattern = "Failed to fetch data for <code>%s</code>. Make sure the JSON file exists."
)

// PostRequest is a /post command from an authorized chat.
type PostRequest struct {
	ChatID    int64
	MessageID int
	Operator  model.Operator
	Codename  string
}

// ButtonPress is an inline button callback on a preview message.
type ButtonPress struct {
	CallbackID string
	ChatID     int64
	MessageID  int
	Operator   model.Operator
	Data       string
}

// Reply is a text message that replies to another message.
type Reply struct {
	ChatID           int64
	MessageID        int
	ReplyToMessageID int
	Operator         model.Operator
	Text             string
}

// PublisherService drives the post conversation:
// preview → (notes prompt → notes reply) → confirm or cancel.
type PublisherService interface {
	StartPost(ctx context.Context, req PostRequest) error
	HandleButton(ctx context.Context, press ButtonPress) error
	// CollectNotes reports handled=false when the reply is not an answer to
	// the operator's outstanding notes prompt.
	CollectNotes(ctx context.Context, reply Reply) (handled bool, err error)
}

type PublisherDeps struct {
	Messenger transport.Messenger
	Fetcher   fetcher.Fetcher
	Banners   store.BannerStore
	Formatter *format.Formatter
	State     *conversation.Store
	Codec     *conversation.Codec
	Channel   transport.Destination
}

type publisherService struct {
	messenger transport.Messenger
	fetcher   fetcher.Fetcher
	banners   store.BannerStore
	formatter *format.Formatter
	state     *conversation.Store
	codec     *conversation.Codec
	channel   transport.Destination
}

func NewPublisherService(deps PublisherDeps) PublisherService {
	return &publisherService{
		messenger: deps.Messenger,
		fetcher:   deps.Fetcher,
		banners:   deps.Banners,
		formatter: deps.Formatter,
		state:     deps.State,
		codec:     deps.Codec,
		channel:   deps.Channel,
	}
}

func (s *publisherService) StartPost(ctx context.Context, req PostRequest) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Device:    logger.Ptr(req.Codename),
		Component: "publisher.service.post",
	})

	bannerID, ok := s.banner(ctx, req.ChatID, req.MessageID)
	if !ok {
		return nil
	}

	rec, err := s.fetcher.Fetch(ctx, req.Codename)
	if err != nil {
		slog.InfoContext(ctx, "no release data for post", "error", err)
		s.reply(ctx, req.ChatID, req.MessageID, fmt.Sprintf(fetchFailedPattern, html.EscapeString(req.Codename)), true)
		return nil
	}

	poster := rec.MaintainerName
	if poster == "" {
		poster = req.Operator.DisplayName()
	}

	draft := s.state.CreateDraft(model.Draft{
		OperatorID: req.Operator.ID,
		ChatID:     req.ChatID,
		Codename:   req.Codename,
		Poster:     poster,
	})

	_, err = s.messenger.SendPhoto(ctx, transport.Photo{
		To:       transport.Chat(req.ChatID),
		FileID:   bannerID,
		Caption:  s.formatter.Post(rec, poster, nil),
		ReplyTo:  req.MessageID,
		Keyboard: s.notesKeyboard(req.Operator.ID, draft.ID),
	})
	if err != nil {
		s.state.DeleteDraft(draft.ID)
		slog.WarnContext(ctx, "failed to send preview", "error", err)
		s.reply(ctx, req.ChatID, req.MessageID, fmt.Sprintf("Failed to send preview: %v", err), false)
		return nil
	}

	slog.InfoContext(ctx, "preview sent", "draft_id", draft.ID, "version", rec.Version)
	return nil
}

func (s *publisherService) HandleButton(ctx context.Context, press ButtonPress) error {
	tok, err := s.codec.Decode(press.Data)
	if err != nil {
		slog.WarnContext(ctx, "rejected callback token", "error", err)
		s.answer(ctx, press.CallbackID, msgInvalidButton, true)
		return nil
	}

	if !tok.AuthorizedFor(press.Operator.ID) {
		slog.InfoContext(ctx, "operator denied on foreign button",
			"kind", tok.Kind.String(),
			"owner_id", tok.OperatorID)
		s.answer(ctx, press.CallbackID, deniedText(tok.Kind), true)
		return nil
	}

	draft, err := s.state.Draft(tok.DraftID)
	if err != nil {
		if errors.Is(err, conversation.ErrDraftNotFound) {
			s.answer(ctx, press.CallbackID, msgDraftGone, true)
			return nil
		}
		return fmt.Errorf("loading draft: %w", err)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Device:    logger.Ptr(draft.Codename),
		Component: "publisher.service.button",
	})
	slog.DebugContext(ctx, "button pressed", "kind", tok.Kind.String(), "draft_id", draft.ID)

	switch tok.Kind {
	case conversation.KindNotesYes:
		s.chooseNotes(ctx, press, draft)
	case conversation.KindNotesNo:
		s.skipNotes(ctx, press, draft)
	case conversation.KindConfirm:
		s.confirm(ctx, press, draft)
	case conversation.KindCancel:
		s.cancel(ctx, press, draft)
	}
	return nil
}

func (s *publisherService) chooseNotes(ctx context.Context, press ButtonPress, draft model.Draft) {
	s.answer(ctx, press.CallbackID, "", false)

	if err := s.messenger.EditKeyboard(ctx, press.ChatID, press.MessageID, nil); err != nil {
		slog.WarnContext(ctx, "failed to remove notes keyboard", "error", err)
	}

	promptID, err := s.messenger.SendMessage(ctx, transport.Message{
		To:         transport.Chat(press.ChatID),
		Text:       msgNotesPrompt,
		ReplyTo:    press.MessageID,
		ForceReply: true,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to send notes prompt", "error", err)
		s.reply(ctx, press.ChatID, press.MessageID, fmt.Sprintf("Failed to ask for notes: %v", err), false)
		return
	}

	replaced := s.state.PutPending(model.PendingPost{
		DraftID:          draft.ID,
		OperatorID:       press.Operator.ID,
		ChatID:           press.ChatID,
		Codename:         draft.Codename,
		Poster:           draft.Poster,
		PreviewMessageID: press.MessageID,
		PromptMessageID:  promptID,
	})
	if replaced {
		slog.InfoContext(ctx, "replaced earlier notes prompt for operator")
	}
}

func (s *publisherService) skipNotes(ctx context.Context, press ButtonPress, draft model.Draft) {
	s.answer(ctx, press.CallbackID, "", false)

	if err := s.messenger.EditKeyboard(ctx, press.ChatID, press.MessageID, s.confirmKeyboard(press.Operator.ID, draft.ID)); err != nil {
		slog.WarnContext(ctx, "failed to show confirm keyboard", "error", err)
		s.reply(ctx, press.ChatID, press.MessageID, fmt.Sprintf("Failed to update preview: %v", err), false)
	}
}

func (s *publisherService) CollectNotes(ctx context.Context, reply Reply) (bool, error) {
	pending, ok := s.state.Pending(reply.Operator.ID)
	if !ok || pending.PromptMessageID != reply.ReplyToMessageID || pending.ChatID != reply.ChatID {
		return false, nil
	}
	s.state.TakePending(reply.Operator.ID)

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Device:    logger.Ptr(pending.Codename),
		Component: "publisher.service.notes",
	})

	notes := format.ParseNotes(reply.Text)

	rec, err := s.fetcher.Fetch(ctx, pending.Codename)
	if err != nil {
		slog.InfoContext(ctx, "no release data while applying notes", "error", err)
		s.reply(ctx, reply.ChatID, reply.MessageID, fmt.Sprintf(fetchFailedPattern, html.EscapeString(pending.Codename)), true)
		return true, nil
	}

	if err := s.state.SetNotes(pending.DraftID, notes); err != nil {
		if errors.Is(err, conversation.ErrDraftNotFound) {
			s.reply(ctx, reply.ChatID, reply.MessageID, msgDraftGone, false)
			return true, nil
		}
		return true, fmt.Errorf("saving notes: %w", err)
	}

	caption := s.formatter.Post(rec, pending.Poster, notes)
	kb := s.confirmKeyboard(reply.Operator.ID, pending.DraftID)
	if err := s.messenger.EditCaption(ctx, reply.ChatID, pending.PreviewMessageID, caption, kb); err != nil {
		slog.WarnContext(ctx, "failed to apply notes to preview", "error", err)
		s.reply(ctx, reply.ChatID, reply.MessageID, fmt.Sprintf("Failed to update preview: %v", err), false)
		return true, nil
	}

	for _, msgID := range []int{pending.PromptMessageID, reply.MessageID} {
		if err := s.messenger.DeleteMessage(ctx, reply.ChatID, msgID); err != nil {
			slog.WarnContext(ctx, "failed to clean up notes message", "message", msgID, "error", err)
		}
	}

	slog.InfoContext(ctx, "notes applied to preview", "draft_id", pending.DraftID, "notes", len(notes))
	return true, nil
}

func (s *publisherService) confirm(ctx context.Context, press ButtonPress, draft model.Draft) {
	s.answer(ctx, press.CallbackID, "", false)

	rec, err := s.fetcher.Fetch(ctx, draft.Codename)
	if err != nil {
		slog.InfoContext(ctx, "no release data on confirm", "error", err)
		s.reply(ctx, press.ChatID, press.MessageID, fmt.Sprintf("Failed to re-fetch data for <code>%s</code>.", html.EscapeString(draft.Codename)), true)
		return
	}

	bannerID, ok := s.banner(ctx, press.ChatID, press.MessageID)
	if !ok {
		return
	}

	_, err = s.messenger.SendPhoto(ctx, transport.Photo{
		To:       s.channel,
		FileID:   bannerID,
		Caption:  s.formatter.Post(rec, draft.Poster, draft.Notes),
		Keyboard: s.formatter.ReleaseKeyboard(rec),
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to publish to channel", "error", err)
		s.reply(ctx, press.ChatID, press.MessageID, fmt.Sprintf("Failed to send to channel: %v", err), false)
		return
	}

	s.state.DeleteDraft(draft.ID)
	if err := s.messenger.EditKeyboard(ctx, press.ChatID, press.MessageID, nil); err != nil {
		slog.WarnContext(ctx, "failed to remove confirm keyboard", "error", err)
	}
	s.reply(ctx, press.ChatID, press.MessageID, msgPostSent, false)

	slog.InfoContext(ctx, "post published", "draft_id", draft.ID, "version", rec.Version, "notes", len(draft.Notes))
}

func (s *publisherService) cancel(ctx context.Context, press ButtonPress, draft model.Draft) {
	s.answer(ctx, press.CallbackID, "", false)

	s.state.DeleteDraft(draft.ID)
	if _, ok := s.state.TakePending(press.Operator.ID); ok {
		slog.DebugContext(ctx, "discarded pending notes prompt")
	}

	if err := s.messenger.EditKeyboard(ctx, press.ChatID, press.MessageID, nil); err != nil {
		slog.WarnContext(ctx, "failed to remove keyboard on cancel", "error", err)
	}
	s.reply(ctx, press.ChatID, press.MessageID, msgPostCanceled, false)

	slog.InfoContext(ctx, "post canceled", "draft_id", draft.ID)
}

// banner loads the banner file ID, telling the chat when it cannot.
func (s *publisherService) banner(ctx context.Context, chatID int64, replyTo int) (string, bool) {
	fileID, err := s.banners.Get(ctx)
	if err == nil {
		return fileID, true
	}
	if errors.Is(err, store.ErrNotFound) {
		s.reply(ctx, chatID, replyTo, msgBannerMissing, false)
		return "", false
	}
	slog.ErrorContext(ctx, "failed to read banner", "error", err)
	s.reply(ctx, chatID, replyTo, fmt.Sprintf("Failed to read banner: %v", err), false)
	return "", false
}

func (s *publisherService) notesKeyboard(operatorID, draftID int64) transport.Keyboard {
	return transport.Keyboard{{
		{Text: btnNotesYes, Data: s.token(conversation.KindNotesYes, operatorID, draftID)},
		{Text: btnNotesNo, Data: s.token(conversation.KindNotesNo, operatorID, draftID)},
	}}
}

func (s *publisherService) confirmKeyboard(operatorID, draftID int64) transport.Keyboard {
	return transport.Keyboard{
		{{Text: btnConfirm, Data: s.token(conversation.KindConfirm, operatorID, draftID)}},
		{{Text: btnCancel, Data: s.token(conversation.KindCancel, operatorID, draftID)}},
	}
}

func (s *publisherService) token(kind conversation.Kind, operatorID, draftID int64) string {
	return s.codec.Encode(conversation.Token{Kind: kind, OperatorID: operatorID, DraftID: draftID})
}

func (s *publisherService) reply(ctx context.Context, chatID int64, replyTo int, text string, asHTML bool) {
	if _, err := s.messenger.SendMessage(ctx, transport.Message{
		To:      transport.Chat(chatID),
		Text:    text,
		HTML:    asHTML,
		ReplyTo: replyTo,
	}); err != nil {
		slog.WarnContext(ctx, "failed to send reply", "error", err)
	}
}

func (s *publisherService) answer(ctx context.Context, callbackID, text string, alert bool) {
	if err := s.messenger.AnswerCallback(ctx, callbackID, text, alert); err != nil {
		slog.WarnContext(ctx, "failed to answer callback", "error", err)
	}
}

func deniedText(kind conversation.Kind) string {
	switch kind {
	case conversation.KindConfirm:
		return "You are not allowed to send this post."
	case conversation.KindCancel:
		return "You are not allowed to cancel this post."
	default:
		return "You are not allowed to edit this post."
	}
}
