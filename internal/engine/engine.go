// Package engine contains the alert decision core: it consumes normalized
// incoming messages, extracts offers, applies the cooldown/price-delta
// policy against the key state table, and hands decided alerts to the
// dispatcher.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/promowatch/telegram-promo-watch/internal/catalog"
	"github.com/promowatch/telegram-promo-watch/internal/cooldown"
	"github.com/promowatch/telegram-promo-watch/internal/matchlog"
	"github.com/promowatch/telegram-promo-watch/internal/observability"
	"github.com/promowatch/telegram-promo-watch/internal/offer"
)

// Emit reasons.
const (
	EmitFirstSighting   = "first_sighting"
	EmitPriceDrop       = "price_drop"
	EmitPriceDelta      = "price_delta"
	EmitCooldownExpired = "cooldown_expired"
)

const logFieldCorrelationID = "correlation_id"

// deltaThreshold is the relative price change that bypasses the cooldown
// window, inclusive.
var deltaThreshold = decimal.RequireFromString("0.05")

// Message is a normalized incoming event, transport-agnostic.
type Message struct {
	Text       string
	Source     string
	ReceivedAt time.Time
}

// Alert is the decided outgoing command handed to the dispatcher.
type Alert struct {
	Destination   int64
	Product       string
	Brand         string
	Price         decimal.Decimal
	PreviousPrice *decimal.Decimal
	Source        string
	RawText       string
	Hot           bool
	Reason        string
}

// Dispatcher delivers a decided alert. The concrete transport owns
// formatting, retries and failure handling; the engine only logs a
// delivery failure as non-fatal.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert Alert) error
}

type Config struct {
	CooldownWindow time.Duration
	Destination    int64
}

// Engine owns the read-decide-update transaction on the cooldown store.
// The mutex is the single serialization point: traffic is sparse
// human-authored chat, so a global lock is plenty.
type Engine struct {
	cfg        Config
	matcher    *offer.Matcher
	store      *cooldown.Store
	dispatcher Dispatcher
	matchLog   *matchlog.Writer
	logger     *zerolog.Logger

	mu  sync.Mutex
	now func() time.Time
}

func New(cfg Config, cat *catalog.Catalog, store *cooldown.Store, dispatcher Dispatcher, matchLog *matchlog.Writer, logger *zerolog.Logger) (*Engine, error) {
	matcher, err := offer.NewMatcher(cat)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:        cfg,
		matcher:    matcher,
		store:      store,
		dispatcher: dispatcher,
		matchLog:   matchLog,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// ProcessMessage runs one message through match, decide and dispatch.
// Misses and suppressions are ordinary outcomes; nothing on this path is
// treated as an error.
func (e *Engine) ProcessMessage(ctx context.Context, msg Message) {
	correlationID := uuid.New().String()
	logger := e.logger.With().Str(logFieldCorrelationID, correlationID).Str("source", msg.Source).Logger()

	o, missReason := e.matcher.Match(msg.Text, msg.Source, msg.ReceivedAt)
	if o == nil {
		observability.MessagesDiscarded.WithLabelValues(missReason).Inc()
		logger.Debug().Str("reason", missReason).Msg("no offer in message")

		return
	}

	observability.OffersMatched.WithLabelValues(o.Product).Inc()

	emitted, reason, previous := e.decide(o)

	observability.TrackedKeys.Set(float64(e.store.Len()))

	if !emitted {
		observability.AlertsSuppressed.WithLabelValues(o.Product).Inc()
		logger.Info().
			Str("product", o.Product).
			Str("brand", o.Brand).
			Str("price", o.Price.String()).
			Msg("offer suppressed within cooldown")

		return
	}

	observability.AlertsEmitted.WithLabelValues(o.Product, reason).Inc()
	logger.Info().
		Str("product", o.Product).
		Str("brand", o.Brand).
		Str("price", o.Price.String()).
		Str("reason", reason).
		Msg("alert emitted")

	alert := Alert{
		Destination:   e.cfg.Destination,
		Product:       o.Product,
		Brand:         o.Brand,
		Price:         o.Price,
		PreviousPrice: previous,
		Source:        o.Source,
		RawText:       o.RawText,
		Hot:           o.Hot,
		Reason:        reason,
	}

	// State is already committed; a delivery failure is not retried by
	// re-decision and must not roll the entry back.
	if err := e.dispatcher.Dispatch(ctx, alert); err != nil {
		observability.DispatchFailures.Inc()
		logger.Error().Err(err).Str("product", o.Product).Msg("failed to dispatch alert")
	}

	if err := e.matchLog.Append(matchlog.Record{
		Timestamp: o.ReceivedAt,
		Source:    o.Source,
		Product:   o.Product,
		Brand:     o.Brand,
		Price:     o.Price,
		Reason:    reason,
		Text:      o.RawText,
	}); err != nil {
		logger.Warn().Err(err).Msg("failed to append match log")
	}
}

// decide runs the per-key state machine as one atomic read-decide-update
// step. It returns whether to emit, the emit reason, and the previously
// alerted price when the key was already tracked.
func (e *Engine) decide(o *offer.Offer) (bool, string, *decimal.Decimal) {
	key := cooldown.Key{Product: o.Product, Brand: o.Brand, Source: o.Source}
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	entry, tracked := e.store.Get(key)
	if !tracked {
		e.store.Upsert(key, o.Price, now)

		return true, EmitFirstSighting, nil
	}

	previous := entry.LastPrice

	emit, reason := evaluate(o.Price, entry, now, e.cfg.CooldownWindow)
	if emit {
		// A suppressed sighting leaves the entry untouched so the next
		// delta is still measured against the last alerted price; small
		// increases cannot drift past the threshold unalerted.
		e.store.Upsert(key, o.Price, now)
	}

	return emit, reason, &previous
}

// evaluate applies the alert policy for an already-tracked key.
func evaluate(price decimal.Decimal, entry cooldown.Entry, now time.Time, window time.Duration) (bool, string) {
	if price.LessThan(entry.LastPrice) {
		return true, EmitPriceDrop
	}

	delta := price.Sub(entry.LastPrice).Div(entry.LastPrice)
	if delta.Abs().GreaterThanOrEqual(deltaThreshold) {
		return true, EmitPriceDelta
	}

	if now.Sub(entry.LastAlertAt) >= window {
		return true, EmitCooldownExpired
	}

	return false, ""
}

// TrackedKeys reports the current cooldown table size.
func (e *Engine) TrackedKeys() int {
	return e.store.Len()
}
