// Package telegrambot is the Bot API ingestion path: direct messages and
// group posts forwarded to the bot run through the same decision engine as
// channel traffic.
package telegrambot

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/promowatch/telegram-promo-watch/internal/config"
	"github.com/promowatch/telegram-promo-watch/internal/engine"
	"github.com/promowatch/telegram-promo-watch/internal/observability"
	"github.com/promowatch/telegram-promo-watch/internal/seen"
)

const longPollTimeout = 60

// Processor consumes normalized incoming messages.
type Processor interface {
	ProcessMessage(ctx context.Context, msg engine.Message)
}

// StatusReporter exposes engine counters for the /status command.
type StatusReporter interface {
	TrackedKeys() int
}

type Bot struct {
	cfg       *config.Config
	api       *tgbotapi.BotAPI
	processor Processor
	status    StatusReporter
	guard     *seen.Guard
	logger    *zerolog.Logger
	startedAt time.Time
}

func New(cfg *config.Config, api *tgbotapi.BotAPI, processor Processor, status StatusReporter, guard *seen.Guard, logger *zerolog.Logger) *Bot {
	return &Bot{
		cfg:       cfg,
		api:       api,
		processor: processor,
		status:    status,
		guard:     guard,
		logger:    logger,
		startedAt: time.Now(),
	}
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = longPollTimeout

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.api.Self.UserName).Msg("Bot ingestion started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			if update.Message == nil {
				continue
			}

			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(msg)

		return
	}

	if msg.Text == "" {
		return
	}

	if !b.cfg.IsChatAllowed(msg.Chat.ID) {
		b.logger.Warn().Int64("chat_id", msg.Chat.ID).Msg("message from disallowed chat ignored")

		return
	}

	if b.guard.IsDuplicate(msg.Chat.ID, msg.MessageID) {
		observability.SeenDuplicates.Inc()

		return
	}

	source := sourceFor(msg.Chat)
	observability.MessagesIngested.WithLabelValues(source).Inc()

	b.processor.ProcessMessage(ctx, engine.Message{
		Text:       msg.Text,
		Source:     source,
		ReceivedAt: msg.Time().UTC(),
	})
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	b.logger.Info().Str("command", msg.Command()).Int64("chat_id", msg.Chat.ID).Msg("Handling command")

	switch msg.Command() {
	case "start", "help":
		b.reply(msg, helpText())
	case "status":
		b.reply(msg, b.statusText())
	default:
		b.reply(msg, "Unknown command. Try /help.")
	}
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyToMessageID = msg.MessageID

	if _, err := b.api.Send(reply); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("failed to send reply")
	}
}

func (b *Bot) statusText() string {
	return fmt.Sprintf(
		"Uptime: %s\nTracked keys: %d\nSeen cache: %d messages\nCooldown window: %s",
		time.Since(b.startedAt).Round(time.Second),
		b.status.TrackedKeys(),
		b.guard.Len(),
		b.cfg.CooldownWindow,
	)
}

func helpText() string {
	return "Forward or paste offer messages here and I'll alert the destination chat " +
		"when a configured product shows up with a fresh price.\n\n" +
		"/status - runtime counters\n" +
		"/help - this message"
}

// sourceFor derives a stable source identifier for a chat: the public
// username when available, otherwise the numeric chat ID.
func sourceFor(chat *tgbotapi.Chat) string {
	if chat == nil {
		return "chat:unknown"
	}

	if chat.UserName != "" {
		return "@" + chat.UserName
	}

	return fmt.Sprintf("chat:%d", chat.ID)
}
