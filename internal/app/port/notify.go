package port

import (
	"context"

	"token_screener/internal/domain/entity"
)

// NotificationSink delivers one message per triggered alert. Delivery is best effort.
type NotificationSink interface {
	// Permitted reports whether the sink may deliver right now.
	Permitted() bool
	Notify(ctx context.Context, alert entity.PriceAlert, price float64) error
}

// AudioSink plays the alert cue.
type AudioSink interface {
	Play(ctx context.Context) error
}

// EventPublisher fans application events out to live subscribers.
type EventPublisher interface {
	Publish(eventType string, payload any)
}
