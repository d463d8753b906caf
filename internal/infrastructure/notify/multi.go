package notify

import (
	"context"
	"errors"

	"token_screener/internal/app/port"
	"token_screener/internal/domain/entity"
)

// Multi fans a notification out to every permitted sink.
type Multi []port.NotificationSink

func (m Multi) Permitted() bool {
	for _, s := range m {
		if s.Permitted() {
			return true
		}
	}
	return false
}

func (m Multi) Notify(ctx context.Context, alert entity.PriceAlert, price float64) error {
	var errs []error
	for _, s := range m {
		if !s.Permitted() {
			continue
		}
		if err := s.Notify(ctx, alert, price); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
