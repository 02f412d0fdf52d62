package providers

import (
	"context"

	"github.com/searchforge/relevance/internal/domain/entities"
)

// Event channels used across the application.
const (
	EventChannelClicks = "search:clicks"
)

// EventBus defines the interface for publishing and consuming click events.
type EventBus interface {
	// Publish publishes a click event to all subscribers on a channel
	Publish(ctx context.Context, channel string, event *entities.ClickEvent) error

	// Subscribe subscribes to click events on a channel. The returned
	// channel is closed when ctx is cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan *entities.ClickEvent, error)

	// Close shuts down the bus and all subscriptions
	Close() error
}
