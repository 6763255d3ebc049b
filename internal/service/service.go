// Package service wraps the repositories with validation, uniform error
// kinds and event publication.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/workspaces-mcp/internal/apperr"
	"github.com/starford/workspaces-mcp/internal/events"
)

// Publisher is the part of the event bus the services use.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event)
}

// safePublish publishes ev and swallows anything the publisher throws.
func safePublish(ctx context.Context, pub Publisher, logger *slog.Logger, ev events.Event) {
	if pub == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("publish event failed",
				slog.String("event", string(ev.Type)),
				slog.String("error", fmt.Sprint(r)))
		}
	}()
	pub.Publish(ctx, ev)
}

// classified guarantees that a non-nil error carries an apperr kind.
func classified(err error) error {
	if err == nil {
		return nil
	}
	return apperr.Unexpected(err)
}
