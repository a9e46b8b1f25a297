// Package ingest listens to monitored Telegram channels through an MTProto
// client session and feeds normalized messages into the decision engine.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/rs/zerolog"

	"github.com/promowatch/telegram-promo-watch/internal/config"
	"github.com/promowatch/telegram-promo-watch/internal/engine"
	"github.com/promowatch/telegram-promo-watch/internal/observability"
	"github.com/promowatch/telegram-promo-watch/internal/seen"
)

// ErrChannelNotFound indicates the channel was not found.
var ErrChannelNotFound = errors.New("channel not found")

// ErrNotAChannel indicates the peer is not a channel.
var ErrNotAChannel = errors.New("peer is not a channel")

// Processor consumes normalized incoming messages.
type Processor interface {
	ProcessMessage(ctx context.Context, msg engine.Message)
}

// Reader runs the client session: authenticates, joins the monitored
// channels and forwards their live messages to the engine.
type Reader struct {
	cfg       *config.Config
	processor Processor
	guard     *seen.Guard
	logger    *zerolog.Logger

	mu       sync.Mutex
	channels map[int64]string // channel ID -> username, filled at startup
}

func New(cfg *config.Config, processor Processor, guard *seen.Guard, logger *zerolog.Logger) *Reader {
	return &Reader{
		cfg:       cfg,
		processor: processor,
		guard:     guard,
		logger:    logger,
		channels:  make(map[int64]string),
	}
}

// Run connects and blocks until the context is canceled.
func (r *Reader) Run(ctx context.Context) error {
	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewChannelMessage(r.handleChannelMessage)

	client := telegram.NewClient(r.cfg.TGAPIID, r.cfg.TGAPIHash, telegram.Options{
		SessionStorage: &telegram.FileSessionStorage{
			Path: r.cfg.TGSessionPath,
		},
		UpdateHandler: dispatcher,
	})

	return client.Run(ctx, func(ctx context.Context) error {
		if err := client.Auth().IfNecessary(ctx, r.authFlow()); err != nil {
			return fmt.Errorf("authenticating client session: %w", err)
		}

		r.logger.Info().Msg("Successfully authenticated as user")

		api := tg.NewClient(client)
		if err := r.resolveChannels(ctx, api); err != nil {
			return err
		}

		r.logger.Info().Int("channels", len(r.channels)).Msg("Monitoring channels")

		<-ctx.Done()

		return ctx.Err()
	})
}

// Login only establishes the session file, then exits. Meant for the first
// interactive run before the reader is deployed.
func (r *Reader) Login(ctx context.Context) error {
	client := telegram.NewClient(r.cfg.TGAPIID, r.cfg.TGAPIHash, telegram.Options{
		SessionStorage: &telegram.FileSessionStorage{
			Path: r.cfg.TGSessionPath,
		},
	})

	return client.Run(ctx, func(ctx context.Context) error {
		if err := client.Auth().IfNecessary(ctx, r.authFlow()); err != nil {
			return fmt.Errorf("authenticating client session: %w", err)
		}

		self, err := client.Self(ctx)
		if err != nil {
			return fmt.Errorf("fetching self: %w", err)
		}

		r.logger.Info().Int64("user_id", self.ID).Str("username", self.Username).Str("session", r.cfg.TGSessionPath).Msg("Session established")

		return nil
	})
}

// resolveChannels resolves each configured username and joins the channel
// so its updates are delivered. A channel that fails to resolve is logged
// and skipped; the rest keep working.
func (r *Reader) resolveChannels(ctx context.Context, api *tg.Client) error {
	usernames := r.cfg.NormalizedChannels()
	if len(usernames) == 0 {
		r.logger.Warn().Msg("MONITORED_CHANNELS is empty, nothing will be ingested")
	}

	for _, username := range usernames {
		channel, err := r.resolveChannel(ctx, api, username)
		if err != nil {
			r.logger.Error().Err(err).Str("username", username).Msg("failed to resolve channel")

			continue
		}

		if _, err := api.ChannelsJoinChannel(ctx, &tg.InputChannel{
			ChannelID:  channel.ID,
			AccessHash: channel.AccessHash,
		}); err != nil && !tgerr.Is(err, "USER_ALREADY_PARTICIPANT") {
			r.logger.Warn().Err(err).Str("username", username).Msg("failed to join channel")
		}

		r.mu.Lock()
		r.channels[channel.ID] = username
		r.mu.Unlock()

		r.logger.Info().Str("username", username).Int64("peer_id", channel.ID).Str("title", channel.Title).Msg("Tracking channel")
	}

	return nil
}

func (r *Reader) resolveChannel(ctx context.Context, api *tg.Client, username string) (*tg.Channel, error) {
	resolved, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})
	if err != nil {
		return nil, fmt.Errorf("resolving username: %w", err)
	}

	if len(resolved.Chats) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, username)
	}

	channel, ok := resolved.Chats[0].(*tg.Channel)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotAChannel, username)
	}

	return channel, nil
}

// handleChannelMessage normalizes one live channel post and feeds it to the
// engine. It never returns an error: a bad update must not take the client
// down.
func (r *Reader) handleChannelMessage(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
	msg, ok := u.Message.(*tg.Message)
	if !ok {
		return nil
	}

	text := strings.TrimSpace(msg.Message)
	if text == "" {
		return nil
	}

	peer, ok := msg.PeerID.(*tg.PeerChannel)
	if !ok {
		return nil
	}

	source, monitored := r.sourceFor(peer.ChannelID, e)
	if !monitored {
		return nil
	}

	if r.guard.IsDuplicate(peer.ChannelID, msg.ID) {
		observability.SeenDuplicates.Inc()
		r.logger.Debug().Int64("chat_id", peer.ChannelID).Int("message_id", msg.ID).Msg("duplicate message ignored")

		return nil
	}

	observability.MessagesIngested.WithLabelValues(source).Inc()

	r.processor.ProcessMessage(ctx, engine.Message{
		Text:       text,
		Source:     source,
		ReceivedAt: time.Unix(int64(msg.Date), 0).UTC(),
	})

	return nil
}

// sourceFor maps a channel ID to its "@username" source identifier and
// reports whether the channel is monitored.
func (r *Reader) sourceFor(channelID int64, e tg.Entities) (string, bool) {
	r.mu.Lock()
	username, ok := r.channels[channelID]
	r.mu.Unlock()

	if !ok {
		// Updates can arrive for channels the account follows but the
		// operator did not configure; those are ignored.
		if ch, found := e.Channels[channelID]; found {
			r.logger.Debug().Str("username", ch.Username).Msg("message from unmonitored channel")
		}

		return "", false
	}

	return "@" + username, true
}
