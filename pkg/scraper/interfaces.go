package scraper

import (
	"context"

	"liscraper/pkg/models"
)

// Session is one open, exclusively-owned browser page on a profile feed.
type Session interface {
	// ScrollToLoadMore triggers one lazy-load scroll and reports whether
	// new content appeared.
	ScrollToLoadMore(ctx context.Context) (bool, error)
	// CaptureSnapshot returns the current rendered markup.
	CaptureSnapshot(ctx context.Context) (string, error)
	// Close releases the session. Safe to call on every exit path.
	Close()
}

// Driver opens browser sessions.
type Driver interface {
	Open(ctx context.Context, profile string) (Session, error)
}

// DriverFunc adapts a function to the Driver interface.
type DriverFunc func(ctx context.Context, profile string) (Session, error)

func (f DriverFunc) Open(ctx context.Context, profile string) (Session, error) {
	return f(ctx, profile)
}

// ResultSink persists a run's collected set.
type ResultSink interface {
	Write(profile string, posts []models.Post) (string, error)
	LoadExisting(profile string) ([]models.Post, error)
}
