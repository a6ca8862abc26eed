package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// BannerKey is the only key the publisher persists.
const BannerKey = "banner_file_id"

type redisBannerStore struct {
	client redis.Cmdable
	key    string
}

func NewRedisBannerStore(client redis.Cmdable) BannerStore {
	return &redisBannerStore{client: client, key: BannerKey}
}

func (s *redisBannerStore) Get(ctx context.Context) (string, error) {
	fileID, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("reading banner: %w", err)
	}
	if strings.TrimSpace(fileID) == "" {
		return "", ErrNotFound
	}
	return fileID, nil
}

func (s *redisBannerStore) Set(ctx context.Context, fileID string) error {
	if strings.TrimSpace(fileID) == "" {
		return fmt.Errorf("banner file id is empty")
	}
	if err := s.client.Set(ctx, s.key, fileID, 0).Err(); err != nil {
		return fmt.Errorf("saving banner: %w", err)
	}
	return nil
}

func (s *redisBannerStore) Delete(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("removing banner: %w", err)
	}
	return nil
}
