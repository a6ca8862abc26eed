package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"afterlife.app/publisher/internal/service"
	"afterlife.app/publisher/internal/transport"
)

var _ = Describe("BannerService", func() {
	var (
		ctx       context.Context
		messenger *fakeMessenger
		banners   *memBannerStore
		svc       service.BannerService
		req       service.BannerRequest
	)

	BeforeEach(func() {
		ctx = context.Background()
		messenger = newFakeMessenger()
		banners = &memBannerStore{}
		svc = service.NewBannerService(banners, messenger)
		req = service.BannerRequest{ChatID: chatID, MessageID: 77}
	})

	Describe("View", func() {
		It("explains how to set a missing banner", func() {
			Expect(svc.View(ctx, req)).To(Succeed())
			Expect(messenger.photos).To(BeEmpty())
			Expect(messenger.lastMessage().Text).To(ContainSubstring("/setbanner"))
		})

		It("shows the stored banner", func() {
			banners.fileID = "stored"

			Expect(svc.View(ctx, req)).To(Succeed())

			photo := messenger.lastPhoto()
			Expect(photo.FileID).To(Equal("stored"))
			Expect(photo.To).To(Equal(transport.Chat(chatID)))
			Expect(photo.ReplyTo).To(Equal(77))
		})

		It("reports a store failure", func() {
			banners.getErr = errors.New("connection refused")

			Expect(svc.View(ctx, req)).To(Succeed())
			Expect(messenger.lastMessage().Text).To(Equal("Failed to read banner: connection refused"))
		})
	})

	Describe("Set", func() {
		It("requires a replied-to image", func() {
			Expect(svc.Set(ctx, req)).To(Succeed())
			Expect(banners.fileID).To(BeEmpty())
			Expect(messenger.lastMessage().Text).To(HavePrefix("Reply to an image"))
		})

		It("replaces the banner", func() {
			banners.fileID = "old"
			req.FileID = "new"

			Expect(svc.Set(ctx, req)).To(Succeed())
			Expect(banners.fileID).To(Equal("new"))
			Expect(messenger.lastMessage().Text).To(Equal("✅ Banner updated."))
		})

		It("keeps the old banner when saving fails", func() {
			banners.fileID = "old"
			banners.setErr = errors.New("READONLY")
			req.FileID = "new"

			Expect(svc.Set(ctx, req)).To(Succeed())
			Expect(banners.fileID).To(Equal("old"))
			Expect(messenger.lastMessage().Text).To(HavePrefix("Failed to save banner"))
		})
	})

	Describe("Remove", func() {
		It("clears the banner so /post is blocked", func() {
			banners.fileID = "old"

			Expect(svc.Remove(ctx, req)).To(Succeed())
			Expect(banners.fileID).To(BeEmpty())
			Expect(messenger.lastMessage().Text).To(Equal("🗑 Banner removed."))
		})
	})

	It("returns an error when the reply cannot be sent", func() {
		messenger.sendMessageErr = errTelegram
		Expect(svc.Remove(ctx, req)).To(MatchError(ContainSubstring("chat not found")))
	})
})
