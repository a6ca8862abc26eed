package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"afterlife.app/publisher/common/logger"
	"afterlife.app/publisher/core/config"
	"afterlife.app/publisher/internal/fetcher"
	"afterlife.app/publisher/internal/model"
	"afterlife.app/publisher/internal/service"
	"afterlife.app/publisher/internal/transport"
)

const (
	msgChatNotAllowed = "Sorry, this command is only allowed in specific groups."
	msgAdminOnly      = "Only bot admins can change the banner."
	msgBadButton      = "This button is no longer valid."

	msgPostUsage = "Usage:\n/post <codename>\nExample: /post surya\n\n" +
		"After the preview appears you can choose to add release notes."

	msgHelp = "AfterlifeOS release publisher\n\n" +
		"/post <codename> - preview and publish a release post\n" +
		"/banner - show the current banner\n" +
		"/setbanner - reply to an image to make it the banner (admins)\n" +
		"/removebanner - remove the banner (admins)"
)

type Config struct {
	Publisher    service.PublisherService
	Banners      service.BannerService
	Messenger    transport.Messenger
	AllowedChats config.IDList
	Admins       config.IDList
}

// Dispatcher routes Telegram updates to the publisher and banner services.
// It is not safe for concurrent use; callers feed it one update at a time.
type Dispatcher struct {
	publisher    service.PublisherService
	banners      service.BannerService
	messenger    transport.Messenger
	allowedChats config.IDList
	admins       config.IDList
}

func New(cfg Config) *Dispatcher {
	return &Dispatcher{
		publisher:    cfg.Publisher,
		banners:      cfg.Banners,
		messenger:    cfg.Messenger,
		allowedChats: cfg.AllowedChats,
		admins:       cfg.Admins,
	}
}

// Handle processes a single update. Problems the operator can act on are
// answered in chat; only unexpected failures are returned.
func (d *Dispatcher) Handle(ctx context.Context, update tgbotapi.Update) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UpdateID:  logger.Ptr(update.UpdateID),
		Component: "publisher.bot.dispatcher",
	})

	sc := logger.StartSpan(ctx, "bot.handle_update")
	defer sc.End()
	ctx = sc.Context()

	var err error
	switch {
	case update.CallbackQuery != nil:
		err = d.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		err = d.handleMessage(ctx, update.Message)
	default:
		slog.DebugContext(ctx, "ignoring update type")
	}

	if err != nil {
		sc.RecordError(err)
	}
	return err
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.Chat == nil {
		return nil
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{ChatID: logger.Ptr(msg.Chat.ID)})
	if msg.From != nil {
		ctx = logger.WithLogFields(ctx, logger.LogFields{OperatorID: logger.Ptr(msg.From.ID)})
	}

	if msg.IsCommand() {
		return d.handleCommand(ctx, msg)
	}

	if msg.ReplyToMessage != nil && msg.From != nil && msg.Text != "" {
		handled, err := d.publisher.CollectNotes(ctx, service.Reply{
			ChatID:           msg.Chat.ID,
			MessageID:        msg.MessageID,
			ReplyToMessageID: msg.ReplyToMessage.MessageID,
			Operator:         operatorOf(msg.From),
			Text:             msg.Text,
		})
		if err != nil {
			return fmt.Errorf("collecting notes: %w", err)
		}
		if handled {
			slog.DebugContext(ctx, "reply consumed as release notes")
		}
	}
	return nil
}

func (d *Dispatcher) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	command := msg.Command()
	args := strings.Fields(msg.CommandArguments())
	slog.InfoContext(ctx, "command received", "command", command, "args", len(args))

	switch command {
	case "start", "help":
		d.reply(ctx, msg, msgHelp)
		return nil
	case "post", "banner", "setbanner", "removebanner":
	default:
		return nil
	}

	if !d.allowedChats.Contains(msg.Chat.ID) {
		slog.InfoContext(ctx, "command from unauthorized chat", "command", command)
		d.reply(ctx, msg, msgChatNotAllowed)
		return nil
	}

	req := service.BannerRequest{ChatID: msg.Chat.ID, MessageID: msg.MessageID}

	switch command {
	case "post":
		return d.post(ctx, msg, args)
	case "banner":
		return d.banners.View(ctx, req)
	case "setbanner":
		if !d.isAdmin(msg.From) {
			d.reply(ctx, msg, msgAdminOnly)
			return nil
		}
		if msg.ReplyToMessage != nil {
			req.FileID = largestPhoto(msg.ReplyToMessage.Photo)
		}
		return d.banners.Set(ctx, req)
	case "removebanner":
		if !d.isAdmin(msg.From) {
			d.reply(ctx, msg, msgAdminOnly)
			return nil
		}
		return d.banners.Remove(ctx, req)
	}
	return nil
}

func (d *Dispatcher) post(ctx context.Context, msg *tgbotapi.Message, args []string) error {
	if len(args) != 1 || msg.From == nil {
		d.reply(ctx, msg, msgPostUsage)
		return nil
	}

	codename, ok := fetcher.ParseCodename(args[0])
	if !ok {
		d.reply(ctx, msg, msgPostUsage)
		return nil
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{Device: logger.Ptr(codename)})
	if err := d.publisher.StartPost(ctx, service.PostRequest{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Operator:  operatorOf(msg.From),
		Codename:  codename,
	}); err != nil {
		return fmt.Errorf("starting post: %w", err)
	}
	return nil
}

func (d *Dispatcher) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) error {
	if cq.From == nil || cq.Message == nil || cq.Message.Chat == nil {
		if err := d.messenger.AnswerCallback(ctx, cq.ID, msgBadButton, true); err != nil {
			slog.WarnContext(ctx, "failed to answer callback", "error", err)
		}
		return nil
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ChatID:     logger.Ptr(cq.Message.Chat.ID),
		OperatorID: logger.Ptr(cq.From.ID),
	})

	if err := d.publisher.HandleButton(ctx, service.ButtonPress{
		CallbackID: cq.ID,
		ChatID:     cq.Message.Chat.ID,
		MessageID:  cq.Message.MessageID,
		Operator:   operatorOf(cq.From),
		Data:       cq.Data,
	}); err != nil {
		return fmt.Errorf("handling button: %w", err)
	}
	return nil
}

func (d *Dispatcher) isAdmin(u *tgbotapi.User) bool {
	return u != nil && d.admins.Contains(u.ID)
}

func (d *Dispatcher) reply(ctx context.Context, msg *tgbotapi.Message, text string) {
	if _, err := d.messenger.SendMessage(ctx, transport.Message{
		To:      transport.Chat(msg.Chat.ID),
		Text:    text,
		ReplyTo: msg.MessageID,
	}); err != nil {
		slog.WarnContext(ctx, "failed to reply", "error", err)
	}
}

func operatorOf(u *tgbotapi.User) model.Operator {
	return model.Operator{ID: u.ID, Username: u.UserName, FirstName: u.FirstName}
}

// largestPhoto picks the highest-resolution size of a photo message.
func largestPhoto(sizes []tgbotapi.PhotoSize) string {
	best := ""
	bestArea := -1
	for _, s := range sizes {
		if area := s.Width * s.Height; area > bestArea {
			best, bestArea = s.FileID, area
		}
	}
	return best
}
