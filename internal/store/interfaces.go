package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// BannerStore holds the single banner image reference used for every post.
type BannerStore interface {
	// Get returns the banner's Telegram file ID, or ErrNotFound when unset.
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, fileID string) error
	// Delete clears the banner. Clearing an unset banner is not an error.
	Delete(ctx context.Context) error
}
