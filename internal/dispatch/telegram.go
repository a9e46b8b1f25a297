// Package dispatch delivers decided alerts to the destination chat through
// the Telegram Bot API.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/promowatch/telegram-promo-watch/internal/engine"
	"github.com/promowatch/telegram-promo-watch/internal/observability"
)

const (
	sendAttempts       = 3
	initialSendBackoff = time.Second
)

// Telegram sends alert messages through the Bot API with bounded retries.
// Retry and failure handling live here; the engine fires and forgets.
type Telegram struct {
	api     *tgbotapi.BotAPI
	limiter *rate.Limiter
	logger  *zerolog.Logger
}

func New(api *tgbotapi.BotAPI, sendRPS float64, logger *zerolog.Logger) *Telegram {
	if sendRPS <= 0 {
		sendRPS = 1
	}

	return &Telegram{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(sendRPS), 1),
		logger:  logger,
	}
}

func (t *Telegram) Dispatch(ctx context.Context, alert engine.Alert) error {
	start := time.Now()
	defer func() {
		observability.DispatchDuration.Observe(time.Since(start).Seconds())
	}()

	msg := tgbotapi.NewMessage(alert.Destination, FormatAlert(alert))
	msg.DisableWebPagePreview = true

	attempt := 0
	operation := func() error {
		if err := t.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		attempt++

		if _, err := t.api.Send(msg); err != nil {
			t.logger.Debug().Err(err).Int("attempt", attempt).Int64("destination", alert.Destination).Msg("send attempt failed")

			return err
		}

		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialSendBackoff

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, sendAttempts-1), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return fmt.Errorf("sending alert to %d: %w", alert.Destination, err)
	}

	t.logger.Info().Int64("destination", alert.Destination).Str("product", alert.Product).Msg("alert delivered")

	return nil
}
