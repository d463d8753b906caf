package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"token_screener/internal/app/port"
	"token_screener/internal/domain/entity"
	"token_screener/internal/infrastructure/metrics"
)

// KeyAlerts is the durable key of the alert list.
const KeyAlerts = "alerts"

const notifyTimeout = 5 * time.Second

// SoundSource reports whether the alert cue should play.
type SoundSource interface {
	SoundEnabled() bool
}

// AlertEngineDeps are the collaborators of an AlertEngine. Notifier, Audio and Sound
// may be nil.
type AlertEngineDeps struct {
	KV        port.KeyValueStore
	Persister *Persister
	Notifier  port.NotificationSink
	Audio     port.AudioSink
	Sound     SoundSource
	Logger    port.Logger
	Metrics   *metrics.Metrics
	Now       func() time.Time
	NewID     func() string
}

// AlertEngine owns the price alerts. An alert moves Active -> Triggered once and is
// never evaluated again.
type AlertEngine struct {
	persister *Persister
	notifier  port.NotificationSink
	audio     port.AudioSink
	sound     SoundSource
	logger    port.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	newID     func() string

	mu     sync.Mutex
	alerts []entity.PriceAlert
	ready  chan struct{}
}

// NewAlertEngine starts loading persisted alerts in the background.
func NewAlertEngine(ctx context.Context, deps AlertEngineDeps) *AlertEngine {
	e := &AlertEngine{
		persister: deps.Persister,
		notifier:  deps.Notifier,
		audio:     deps.Audio,
		sound:     deps.Sound,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		now:       deps.Now,
		newID:     deps.NewID,
		ready:     make(chan struct{}),
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = e.defaultID
	}
	go e.load(ctx, deps.KV)
	return e
}

func (e *AlertEngine) defaultID() string {
	return fmt.Sprintf("%d-%s", e.now().UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:9])
}

func (e *AlertEngine) load(ctx context.Context, kv port.KeyValueStore) {
	var alerts []entity.PriceAlert
	if !loadJSON(ctx, kv, KeyAlerts, &alerts, e.logger) {
		alerts = nil
	}
	valid := alerts[:0]
	for _, a := range alerts {
		if a.ID == "" || a.TokenAddress == "" || !a.Condition.Valid() {
			e.logger.Warn("Dropping malformed persisted alert", "id", a.ID)
			continue
		}
		valid = append(valid, a)
	}

	e.mu.Lock()
	e.alerts = valid
	e.mu.Unlock()
	close(e.ready)
	e.logger.Debug("Alerts loaded", "count", len(valid))
}

// Ready is closed once persisted alerts are loaded.
func (e *AlertEngine) Ready() <-chan struct{} {
	return e.ready
}

func (e *AlertEngine) waitReady(ctx context.Context) error {
	select {
	case <-e.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("alerts not loaded: %w", ctx.Err())
	}
}

// ValidateAlert checks an alert request against the current price without side effects.
func ValidateAlert(in entity.NewAlertInput, currentPrice float64) error {
	if strings.TrimSpace(in.TokenAddress) == "" {
		return fmt.Errorf("%w: token address is required", entity.ErrInvalidInput)
	}
	if !in.Condition.Valid() {
		return fmt.Errorf("%w: condition must be %q or %q", entity.ErrInvalidInput, entity.AlertAbove, entity.AlertBelow)
	}
	if math.IsNaN(in.TargetPrice) || math.IsInf(in.TargetPrice, 0) || in.TargetPrice <= 0 {
		return fmt.Errorf("%w: target price must be a positive number", entity.ErrInvalidAlertTarget)
	}
	if currentPrice <= 0 || math.IsNaN(currentPrice) || math.IsInf(currentPrice, 0) {
		return fmt.Errorf("%w: current price is unknown", entity.ErrInvalidAlertTarget)
	}
	switch in.Condition {
	case entity.AlertAbove:
		if in.TargetPrice <= currentPrice {
			return fmt.Errorf("%w: target price must be above the current price $%g", entity.ErrInvalidAlertTarget, currentPrice)
		}
	case entity.AlertBelow:
		if in.TargetPrice >= currentPrice {
			return fmt.Errorf("%w: target price must be below the current price $%g", entity.ErrInvalidAlertTarget, currentPrice)
		}
	}
	return nil
}

// AddAlert validates the request and stores a new active alert.
func (e *AlertEngine) AddAlert(ctx context.Context, in entity.NewAlertInput, currentPrice float64) (entity.PriceAlert, error) {
	if err := ValidateAlert(in, currentPrice); err != nil {
		return entity.PriceAlert{}, err
	}
	if err := e.waitReady(ctx); err != nil {
		return entity.PriceAlert{}, err
	}

	alert := entity.PriceAlert{
		ID:           e.newID(),
		TokenAddress: strings.TrimSpace(in.TokenAddress),
		TokenSymbol:  in.TokenSymbol,
		TokenName:    in.TokenName,
		Condition:    in.Condition,
		TargetPrice:  in.TargetPrice,
		CreatedAt:    e.now(),
	}

	e.mu.Lock()
	e.alerts = append(e.alerts, alert)
	e.persistLocked()
	e.mu.Unlock()

	e.logger.Info("Price alert created", "id", alert.ID, "token", alert.TokenAddress, "condition", alert.Condition, "target", alert.TargetPrice)
	return alert, nil
}

// Evaluate runs one atomic pass over the active alerts against prices. Alerts whose
// token has no price are skipped. It returns the alerts that triggered in this pass.
func (e *AlertEngine) Evaluate(ctx context.Context, prices map[string]float64) []entity.PriceAlert {
	if len(prices) == 0 {
		return nil
	}
	select {
	case <-e.ready:
	default:
		// Nothing to evaluate until persisted alerts are known.
		return nil
	}

	var (
		triggered []entity.PriceAlert
		observed  []float64
	)
	e.mu.Lock()
	ts := e.now()
	for i := range e.alerts {
		a := &e.alerts[i]
		if a.Triggered {
			continue
		}
		price, ok := prices[a.TokenAddress]
		if !ok || price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
			continue
		}
		if !a.Crossed(price) {
			continue
		}
		a.Triggered = true
		at := ts
		a.TriggeredAt = &at
		triggered = append(triggered, *a)
		observed = append(observed, price)
	}
	if len(triggered) > 0 {
		e.persistLocked()
	}
	e.mu.Unlock()

	if len(triggered) == 0 {
		return nil
	}
	e.metrics.AddAlertsTriggered(len(triggered))
	e.dispatch(ctx, triggered, observed)
	return triggered
}

func (e *AlertEngine) dispatch(ctx context.Context, triggered []entity.PriceAlert, prices []float64) {
	nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	for i, a := range triggered {
		e.logger.Info("Price alert triggered", "id", a.ID, "token", a.TokenSymbol, "condition", a.Condition, "target", a.TargetPrice, "price", prices[i])
		if e.notifier == nil || !e.notifier.Permitted() {
			continue
		}
		if err := e.notifier.Notify(nctx, a, prices[i]); err != nil {
			e.logger.Warn("Alert notification failed", "id", a.ID, "error", err)
		}
	}

	if e.audio != nil && (e.sound == nil || e.sound.SoundEnabled()) {
		if err := e.audio.Play(nctx); err != nil {
			e.logger.Warn("Alert sound failed", "error", err)
		}
	}
}

// Remove deletes the alert with id. It reports whether an alert was removed.
func (e *AlertEngine) Remove(ctx context.Context, id string) (bool, error) {
	if err := e.waitReady(ctx); err != nil {
		return false, err
	}
	e.mu.Lock()
	idx := -1
	for i, a := range e.alerts {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.mu.Unlock()
		return false, nil
	}
	e.alerts = append(e.alerts[:idx:idx], e.alerts[idx+1:]...)
	e.persistLocked()
	e.mu.Unlock()
	return true, nil
}

// Clear removes every alert.
func (e *AlertEngine) Clear(ctx context.Context) error {
	if err := e.waitReady(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	e.alerts = nil
	e.persistLocked()
	e.mu.Unlock()
	return nil
}

// List returns a copy of all alerts in creation order.
func (e *AlertEngine) List() []entity.PriceAlert {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.copyLocked()
}

// ActiveAddresses returns the token addresses with at least one active alert.
func (e *AlertEngine) ActiveAddresses() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, a := range e.alerts {
		if a.Triggered {
			continue
		}
		if _, ok := seen[a.TokenAddress]; ok {
			continue
		}
		seen[a.TokenAddress] = struct{}{}
		out = append(out, a.TokenAddress)
	}
	return out
}

// AlertedAddresses returns every token address that has an alert, active or not.
func (e *AlertEngine) AlertedAddresses() map[string]struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]struct{}, len(e.alerts))
	for _, a := range e.alerts {
		out[a.TokenAddress] = struct{}{}
	}
	return out
}

// persistLocked enqueues the current alerts. Callers hold e.mu so a stale snapshot
// never lands after a newer one.
func (e *AlertEngine) persistLocked() {
	e.persister.Enqueue(KeyAlerts, e.copyLocked())
}

func (e *AlertEngine) copyLocked() []entity.PriceAlert {
	out := make([]entity.PriceAlert, len(e.alerts))
	for i, a := range e.alerts {
		if a.TriggeredAt != nil {
			at := *a.TriggeredAt
			a.TriggeredAt = &at
		}
		out[i] = a
	}
	return out
}
