package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"afterlife.app/publisher/internal/store"
	"afterlife.app/publisher/internal/transport"
)

// BannerRequest targets the chat and message a banner command came from.
// FileID is the largest photo size of the replied-to image, if any.
type BannerRequest struct {
	ChatID    int64
	MessageID int
	FileID    string
}

type BannerService interface {
	View(ctx context.Context, req BannerRequest) error
	Set(ctx context.Context, req BannerRequest) error
	Remove(ctx context.Context, req BannerRequest) error
}

type bannerService struct {
	banners   store.BannerStore
	messenger transport.Messenger
}

func NewBannerService(banners store.BannerStore, messenger transport.Messenger) BannerService {
	return &bannerService{banners: banners, messenger: messenger}
}

func (s *bannerService) View(ctx context.Context, req BannerRequest) error {
	fileID, err := s.banners.Get(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return s.say(ctx, req, msgBannerMissing)
		}
		slog.ErrorContext(ctx, "failed to read banner", "error", err)
		return s.say(ctx, req, fmt.Sprintf("Failed to read banner: %v", err))
	}

	if _, err := s.messenger.SendPhoto(ctx, transport.Photo{
		To:      transport.Chat(req.ChatID),
		FileID:  fileID,
		Caption: "This is the currently used banner.",
		ReplyTo: req.MessageID,
	}); err != nil {
		return s.say(ctx, req, fmt.Sprintf("Failed to send banner: %v", err))
	}
	return nil
}

func (s *bannerService) Set(ctx context.Context, req BannerRequest) error {
	if req.FileID == "" {
		return s.say(ctx, req, "Reply to an image with /setbanner to use it as the banner.")
	}
	if err := s.banners.Set(ctx, req.FileID); err != nil {
		slog.ErrorContext(ctx, "failed to save banner", "error", err)
		return s.say(ctx, req, fmt.Sprintf("Failed to save banner: %v", err))
	}
	slog.InfoContext(ctx, "banner updated")
	return s.say(ctx, req, "✅ Banner updated.")
}

func (s *bannerService) Remove(ctx context.Context, req BannerRequest) error {
	if err := s.banners.Delete(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to remove banner", "error", err)
		return s.say(ctx, req, fmt.Sprintf("Failed to remove banner: %v", err))
	}
	slog.InfoContext(ctx, "banner removed")
	return s.say(ctx, req, "🗑 Banner removed.")
}

func (s *bannerService) say(ctx context.Context, req BannerRequest, text string) error {
	if _, err := s.messenger.SendMessage(ctx, transport.Message{
		To:      transport.Chat(req.ChatID),
		Text:    text,
		ReplyTo: req.MessageID,
	}); err != nil {
		return fmt.Errorf("replying to banner command: %w", err)
	}
	return nil
}
