package service

import (
	"afterlife.app/publisher/internal/conversation"
	"afterlife.app/publisher/internal/fetcher"
	"afterlife.app/publisher/internal/format"
	"afterlife.app/publisher/internal/store"
	"afterlife.app/publisher/internal/transport"
)

type ServicesConfig struct {
	Messenger transport.Messenger
	Fetcher   fetcher.Fetcher
	Banners   store.BannerStore
	Formatter *format.Formatter
	State     *conversation.Store
	Codec     *conversation.Codec
	Channel   transport.Destination
}

type Services struct {
	publisher PublisherService
	banners   BannerService
}

func NewServices(cfg ServicesConfig) *Services {
	return &Services{
		publisher: NewPublisherService(PublisherDeps{
			Messenger: cfg.Messenger,
			Fetcher:   cfg.Fetcher,
			Banners:   cfg.Banners,
			Formatter: cfg.Formatter,
			State:     cfg.State,
			Codec:     cfg.Codec,
			Channel:   cfg.Channel,
		}),
		banners: NewBannerService(cfg.Banners, cfg.Messenger),
	}
}

func (s *Services) Publisher() PublisherService {
	return s.publisher
}

func (s *Services) Banners() BannerService {
	return s.banners
}
