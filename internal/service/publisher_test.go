package service_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"afterlife.app/publisher/internal/conversation"
	"afterlife.app/publisher/internal/fetcher"
	"afterlife.app/publisher/internal/format"
	"afterlife.app/publisher/internal/model"
	"afterlife.app/publisher/internal/service"
	"afterlife.app/publisher/internal/transport"
)

const (
	chatID     int64 = -100200300
	operatorA  int64 = 111
	operatorB  int64 = 222
	commandMsg       = 10
)

var testLinks = format.Links{
	DownloadBase:     "https://afterlifeos.com/device",
	SourceChangelogs: "https://github.com/AfterlifeOS/Release_changelogs/blob/main/AfterLife-Changelogs.mk",
	Support:          "https://t.me/AfterLifeOS",
	Donate:           "https://t.me/donate_zero/6",
	UpdatesChannel:   "https://t.me/Afterlife_update",
}

func suryaRecord() *model.ReleaseRecord {
	ts := int64(1718409600)
	size := float64(2684354560)
	return &model.ReleaseRecord{
		Codename:        "surya",
		DeviceName:      "POCO X3 NFC",
		Distribution:    model.Distribution,
		Version:         "3.0",
		ReleaseCodename: "Zenith",
		BuildTimestamp:  &ts,
		SizeBytes:       &size,
		BuildType:       "official",
		MaintainerName:  "Zero",
		MaintainerLink:  "https://t.me/zero",
	}
}

var _ = Describe("PublisherService", func() {
	var (
		ctx       context.Context
		messenger *fakeMessenger
		fetch     *mockFetcher
		banners   *memBannerStore
		state     *conversation.Store
		codec     *conversation.Codec
		publisher service.PublisherService
		channel   transport.Destination
		opA       model.Operator
		opB       model.Operator
	)

	decode := func(b transport.Button) conversation.Token {
		tok, err := codec.Decode(b.Data)
		Expect(err).NotTo(HaveOccurred())
		return tok
	}

	startPost := func() sentPhoto {
		Expect(publisher.StartPost(ctx, service.PostRequest{
			ChatID:    chatID,
			MessageID: commandMsg,
			Operator:  opA,
			Codename:  "surya",
		})).To(Succeed())
		Expect(messenger.photos).To(HaveLen(1))
		return messenger.photos[0]
	}

	press := func(op model.Operator, messageID int, data string) {
		Expect(publisher.HandleButton(ctx, service.ButtonPress{
			CallbackID: "cb",
			ChatID:     chatID,
			MessageID:  messageID,
			Operator:   op,
			Data:       data,
		})).To(Succeed())
	}

	buttonOf := func(kb transport.Keyboard, kind conversation.Kind) transport.Button {
		for _, b := range kb.Buttons() {
			if decode(b).Kind == kind {
				return b
			}
		}
		Fail("no button of kind " + kind.String())
		return transport.Button{}
	}

	BeforeEach(func() {
		ctx = context.Background()
		messenger = newFakeMessenger()
		fetch = &mockFetcher{fetchFn: func(_ context.Context, _ string) (*model.ReleaseRecord, error) {
			return suryaRecord(), nil
		}}
		banners = &memBannerStore{fileID: "banner-file-id"}
		var next int64
		state = conversation.NewStoreWithIDs(func() int64 {
			next++
			return next
		})
		codec = conversation.NewCodec("test-secret")
		channel = transport.Destination{ChannelUsername: "@Afterlife_update"}
		opA = model.Operator{ID: operatorA, Username: "alice"}
		opB = model.Operator{ID: operatorB, Username: "bob"}

		publisher = service.NewPublisherService(service.PublisherDeps{
			Messenger: messenger,
			Fetcher:   fetch,
			Banners:   banners,
			Formatter: format.New(testLinks),
			State:     state,
			Codec:     codec,
			Channel:   channel,
		})
	})

	Describe("StartPost", func() {
		It("sends a preview with the add-notes decision", func() {
			preview := startPost()

			Expect(preview.Photo.To).To(Equal(transport.Chat(chatID)))
			Expect(preview.Photo.FileID).To(Equal("banner-file-id"))
			Expect(preview.Photo.ReplyTo).To(Equal(commandMsg))
			Expect(preview.Photo.Caption).To(ContainSubstring("Supported Device: POCO X3 NFC - surya"))
			Expect(preview.Photo.Caption).NotTo(ContainSubstring("<b>Notes:</b>"))

			buttons := preview.Photo.Keyboard.Buttons()
			Expect(buttons).To(HaveLen(2))
			Expect(decode(buttons[0])).To(Equal(conversation.Token{Kind: conversation.KindNotesYes, OperatorID: operatorA, DraftID: 1}))
			Expect(decode(buttons[1]).Kind).To(Equal(conversation.KindNotesNo))
		})

		It("stops with a corrective message when no banner is set", func() {
			banners.fileID = ""

			Expect(publisher.StartPost(ctx, service.PostRequest{ChatID: chatID, MessageID: commandMsg, Operator: opA, Codename: "surya"})).To(Succeed())

			Expect(messenger.photos).To(BeEmpty())
			Expect(fetch.calls).To(BeEmpty())
			Expect(messenger.lastMessage().Text).To(ContainSubstring("/setbanner"))
		})

		It("reports a fetch failure and sends no preview", func() {
			fetch.fetchFn = func(_ context.Context, _ string) (*model.ReleaseRecord, error) {
				return nil, fetcher.ErrNoRelease
			}

			Expect(publisher.StartPost(ctx, service.PostRequest{ChatID: chatID, MessageID: commandMsg, Operator: opA, Codename: "surya"})).To(Succeed())

			Expect(messenger.photos).To(BeEmpty())
			msg := messenger.lastMessage()
			Expect(msg.Text).To(Equal("Failed to fetch data for <code>surya</code>. Make sure the JSON file exists."))
			Expect(msg.HTML).To(BeTrue())
			drafts, _ := state.Stats()
			Expect(drafts).To(BeZero())
		})

		It("uses the operator as poster when upstream has no maintainer", func() {
			fetch.fetchFn = func(_ context.Context, _ string) (*model.ReleaseRecord, error) {
				rec := suryaRecord()
				rec.MaintainerName = ""
				rec.MaintainerLink = ""
				return rec, nil
			}

			preview := startPost()
			Expect(preview.Photo.Caption).To(ContainSubstring("Maintainer: <a href='https://t.me/alice'>alice</a>"))
		})

		It("reports a failed preview send and forgets the draft", func() {
			messenger.sendPhotoErr = errTelegram

			Expect(publisher.StartPost(ctx, service.PostRequest{ChatID: chatID, MessageID: commandMsg, Operator: opA, Codename: "surya"})).To(Succeed())

			Expect(messenger.lastMessage().Text).To(ContainSubstring("Failed to send preview"))
			drafts, _ := state.Stats()
			Expect(drafts).To(BeZero())
		})
	})

	Describe("skipping notes", func() {
		It("swaps in only confirm and cancel without re-rendering", func() {
			preview := startPost()

			press(opA, preview.ID, buttonOf(preview.Photo.Keyboard, conversation.KindNotesNo).Data)

			Expect(messenger.captions).To(BeEmpty())
			Expect(messenger.keyboards).To(HaveLen(1))
			edit := messenger.keyboards[0]
			Expect(edit.MessageID).To(Equal(preview.ID))

			buttons := edit.Keyboard.Buttons()
			Expect(buttons).To(HaveLen(2))
			Expect(decode(buttons[0]).Kind).To(Equal(conversation.KindConfirm))
			Expect(decode(buttons[1]).Kind).To(Equal(conversation.KindCancel))
		})
	})

	Describe("adding notes", func() {
		var (
			preview  sentPhoto
			promptID int
		)

		BeforeEach(func() {
			preview = startPost()
			press(opA, preview.ID, buttonOf(preview.Photo.Keyboard, conversation.KindNotesYes).Data)

			Expect(messenger.keyboards).To(HaveLen(1))
			Expect(messenger.keyboards[0].Keyboard).To(BeEmpty())
			Expect(messenger.messages).To(HaveLen(1))
			Expect(messenger.messages[0].Msg.ForceReply).To(BeTrue())
			promptID = messenger.messages[0].ID
		})

		It("renders the notes into the preview and cleans up", func() {
			handled, err := publisher.CollectNotes(ctx, service.Reply{
				ChatID:           chatID,
				MessageID:        5000,
				ReplyToMessageID: promptID,
				Operator:         opA,
				Text:             "Flash the full image\n[Support](https://t.me/x)",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(handled).To(BeTrue())

			Expect(fetch.calls).To(Equal([]string{"surya", "surya"}))
			Expect(messenger.captions).To(HaveLen(1))
			edit := messenger.captions[0]
			Expect(edit.MessageID).To(Equal(preview.ID))
			Expect(edit.Caption).To(ContainSubstring(
				"<b>Notes:</b>\n- Flash the full image\n- <a href=\"https://t.me/x\">Support</a>\n\n"))

			buttons := edit.Keyboard.Buttons()
			Expect(buttons).To(HaveLen(2))
			Expect(decode(buttons[0]).Kind).To(Equal(conversation.KindConfirm))

			Expect(messenger.deletions).To(ConsistOf(
				deletion{ChatID: chatID, MessageID: promptID},
				deletion{ChatID: chatID, MessageID: 5000},
			))
			_, pending := state.Stats()
			Expect(pending).To(BeZero())
		})

		It("consumes the pending post exactly once", func() {
			reply := service.Reply{ChatID: chatID, MessageID: 5000, ReplyToMessageID: promptID, Operator: opA, Text: "one"}
			handled, _ := publisher.CollectNotes(ctx, reply)
			Expect(handled).To(BeTrue())

			reply.MessageID = 5001
			handled, _ = publisher.CollectNotes(ctx, reply)
			Expect(handled).To(BeFalse())
			Expect(messenger.captions).To(HaveLen(1))
		})

		It("ignores replies to another message", func() {
			handled, err := publisher.CollectNotes(ctx, service.Reply{
				ChatID: chatID, MessageID: 5000, ReplyToMessageID: preview.ID, Operator: opA, Text: "nope",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(handled).To(BeFalse())
			Expect(messenger.captions).To(BeEmpty())
			_, pending := state.Stats()
			Expect(pending).To(Equal(1))
		})

		It("ignores replies from another operator", func() {
			handled, _ := publisher.CollectNotes(ctx, service.Reply{
				ChatID: chatID, MessageID: 5000, ReplyToMessageID: promptID, Operator: opB, Text: "hijack",
			})
			Expect(handled).To(BeFalse())
			Expect(messenger.captions).To(BeEmpty())
			_, pending := state.Stats()
			Expect(pending).To(Equal(1))
		})

		It("reports a failed re-fetch and still clears the pending post", func() {
			fetch.fetchFn = func(_ context.Context, _ string) (*model.ReleaseRecord, error) {
				return nil, fetcher.ErrNoRelease
			}

			handled, err := publisher.CollectNotes(ctx, service.Reply{
				ChatID: chatID, MessageID: 5000, ReplyToMessageID: promptID, Operator: opA, Text: "one",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(handled).To(BeTrue())
			Expect(messenger.captions).To(BeEmpty())
			Expect(messenger.lastMessage().Text).To(HavePrefix("Failed to fetch data"))
			_, pending := state.Stats()
			Expect(pending).To(BeZero())
		})

		It("publishes the collected notes on confirm", func() {
			_, _ = publisher.CollectNotes(ctx, service.Reply{
				ChatID: chatID, MessageID: 5000, ReplyToMessageID: promptID, Operator: opA, Text: "Clean flash\n- - Latest firmware",
			})
			confirm := buttonOf(messenger.captions[0].Keyboard, conversation.KindConfirm)

			press(opA, preview.ID, confirm.Data)

			published := messenger.lastPhoto()
			Expect(published.To).To(Equal(channel))
			Expect(published.Caption).To(ContainSubstring("<b>Notes:</b>\n- Clean flash\n- Latest firmware\n\n"))
		})

		It("replaces an earlier prompt when the operator asks again", func() {
			press(opA, preview.ID, buttonOf(preview.Photo.Keyboard, conversation.KindNotesYes).Data)
			secondPrompt := messenger.messages[len(messenger.messages)-1].ID

			handled, _ := publisher.CollectNotes(ctx, service.Reply{
				ChatID: chatID, MessageID: 5000, ReplyToMessageID: promptID, Operator: opA, Text: "stale",
			})
			Expect(handled).To(BeFalse())

			handled, _ = publisher.CollectNotes(ctx, service.Reply{
				ChatID: chatID, MessageID: 5001, ReplyToMessageID: secondPrompt, Operator: opA, Text: "fresh",
			})
			Expect(handled).To(BeTrue())
		})
	})

	Describe("confirming", func() {
		var (
			preview sentPhoto
			confirm transport.Button
		)

		BeforeEach(func() {
			preview = startPost()
			press(opA, preview.ID, buttonOf(preview.Photo.Keyboard, conversation.KindNotesNo).Data)
			confirm = buttonOf(messenger.keyboards[0].Keyboard, conversation.KindConfirm)
		})

		It("publishes once to the channel with the full keyboard", func() {
			press(opA, preview.ID, confirm.Data)

			Expect(messenger.photos).To(HaveLen(2))
			published := messenger.lastPhoto()
			Expect(published.To).To(Equal(channel))
			Expect(published.FileID).To(Equal("banner-file-id"))
			Expect(published.Caption).NotTo(ContainSubstring("<b>Notes:</b>"))
			Expect(published.Caption).To(HaveSuffix("#AfterlifeOS #surya #Zenith #NeverDie"))
			Expect(published.Keyboard.Buttons()).To(HaveLen(5))

			Expect(fetch.calls).To(HaveLen(2), "confirm re-fetches")

			last := messenger.keyboards[len(messenger.keyboards)-1]
			Expect(last.MessageID).To(Equal(preview.ID))
			Expect(last.Keyboard).To(BeEmpty())
			Expect(messenger.lastMessage().Text).To(Equal("✅ Post sent to channel successfully."))

			drafts, _ := state.Stats()
			Expect(drafts).To(BeZero())
		})

		It("denies another operator and changes nothing", func() {
			keyboardEdits := len(messenger.keyboards)

			press(opB, preview.ID, confirm.Data)

			Expect(messenger.photos).To(HaveLen(1))
			Expect(messenger.keyboards).To(HaveLen(keyboardEdits))
			Expect(fetch.calls).To(HaveLen(1))
			answer := messenger.answers[len(messenger.answers)-1]
			Expect(answer.Alert).To(BeTrue())
			Expect(answer.Text).To(ContainSubstring("not allowed"))
		})

		It("reports a publish failure and leaves the preview untouched", func() {
			messenger.sendPhotoErr = errTelegram
			keyboardEdits := len(messenger.keyboards)

			press(opA, preview.ID, confirm.Data)

			Expect(messenger.keyboards).To(HaveLen(keyboardEdits))
			Expect(messenger.lastMessage().Text).To(HavePrefix("Failed to send to channel"))
			drafts, _ := state.Stats()
			Expect(drafts).To(Equal(1))
		})

		It("reports a failed re-fetch without publishing", func() {
			fetch.fetchFn = func(_ context.Context, _ string) (*model.ReleaseRecord, error) {
				return nil, fetcher.ErrNoRelease
			}

			press(opA, preview.ID, confirm.Data)

			Expect(messenger.photos).To(HaveLen(1))
			Expect(messenger.lastMessage().Text).To(ContainSubstring("Failed to re-fetch"))
		})

		It("picks up upstream changes made after the preview", func() {
			fetch.fetchFn = func(_ context.Context, _ string) (*model.ReleaseRecord, error) {
				rec := suryaRecord()
				rec.Version = "3.1"
				return rec, nil
			}

			press(opA, preview.ID, confirm.Data)
			Expect(messenger.lastPhoto().Caption).To(HavePrefix("<b>AfterlifeOS v3.1 |"))
		})
	})

	Describe("cancelling", func() {
		It("removes the keyboard, acknowledges and drops pending notes", func() {
			preview := startPost()
			press(opA, preview.ID, buttonOf(preview.Photo.Keyboard, conversation.KindNotesYes).Data)
			_, pending := state.Stats()
			Expect(pending).To(Equal(1))

			cancel := codec.Encode(conversation.Token{Kind: conversation.KindCancel, OperatorID: operatorA, DraftID: 1})
			press(opA, preview.ID, cancel)

			last := messenger.keyboards[len(messenger.keyboards)-1]
			Expect(last.Keyboard).To(BeEmpty())
			Expect(messenger.lastMessage().Text).To(Equal("❌ Post canceled."))
			drafts, pending := state.Stats()
			Expect(drafts).To(BeZero())
			Expect(pending).To(BeZero())
		})
	})

	Describe("token checks", func() {
		It("rejects malformed tokens", func() {
			press(opA, 1, "confirm_send:surya:zero:111")

			Expect(messenger.answers).To(HaveLen(1))
			Expect(messenger.answers[0].Alert).To(BeTrue())
			Expect(messenger.keyboards).To(BeEmpty())
		})

		It("rejects tokens for finished drafts", func() {
			gone := codec.Encode(conversation.Token{Kind: conversation.KindConfirm, OperatorID: operatorA, DraftID: 42})
			press(opA, 1, gone)

			Expect(messenger.answers[0].Text).To(Equal("This post is no longer active."))
			Expect(messenger.photos).To(BeEmpty())
		})

		DescribeTable("denies a foreign operator for every kind",
			func(kind conversation.Kind, denial string) {
				preview := startPost()
				data := codec.Encode(conversation.Token{Kind: kind, OperatorID: operatorA, DraftID: 1})

				press(opB, preview.ID, data)

				Expect(messenger.answers).To(ConsistOf(callbackAnswer{ID: "cb", Text: denial, Alert: true}))
				Expect(messenger.keyboards).To(BeEmpty())
				Expect(messenger.captions).To(BeEmpty())
				Expect(messenger.messages).To(BeEmpty())
				Expect(messenger.deletions).To(BeEmpty())
				Expect(messenger.photos).To(HaveLen(1), "only the preview")
				Expect(fetch.calls).To(HaveLen(1), "no re-fetch")

				drafts, pending := state.Stats()
				Expect(drafts).To(Equal(1))
				Expect(pending).To(BeZero())
			},
			Entry("confirm", conversation.KindConfirm, "You are not allowed to send this post."),
			Entry("cancel", conversation.KindCancel, "You are not allowed to cancel this post."),
			Entry("notes yes", conversation.KindNotesYes, "You are not allowed to edit this post."),
			Entry("notes no", conversation.KindNotesNo, "You are not allowed to edit this post."),
		)
	})
})
