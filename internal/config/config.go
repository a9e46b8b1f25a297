package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrCooldownWindow indicates a missing or non-positive cooldown window.
var ErrCooldownWindow = errors.New("cooldown window must be positive")

var numericIDRe = regexp.MustCompile(`^-?\d+$`)

type Config struct {
	AppEnv            string        `env:"APP_ENV" envDefault:"local"`
	BotToken          string        `env:"BOT_TOKEN,required"`
	TGAPIID           int           `env:"TG_API_ID,required"`
	TGAPIHash         string        `env:"TG_API_HASH,required"`
	TGPhone           string        `env:"TG_PHONE"`
	TG2FAPassword     string        `env:"TG_2FA_PASSWORD"`
	TGSessionPath     string        `env:"TG_SESSION_PATH" envDefault:"./tg.session"`
	MonitoredChannels []string      `env:"MONITORED_CHANNELS" envSeparator:","`
	AllowedChatIDs    []int64       `env:"ALLOWED_CHAT_IDS" envSeparator:","`
	DestinationChatID int64         `env:"DESTINATION_CHAT_ID,required"`
	CooldownWindow    time.Duration `env:"COOLDOWN_WINDOW,required"`
	CatalogPath       string        `env:"CATALOG_PATH" envDefault:"./catalog.json"`
	SeenCachePath     string        `env:"SEEN_CACHE_PATH" envDefault:"/tmp/promo_watch_seen.json"`
	SeenCacheSize     int           `env:"SEEN_CACHE_SIZE" envDefault:"2500"`
	MatchLogPath      string        `env:"MATCH_LOG_PATH" envDefault:"/tmp/promo_watch_matches.log"`
	EntryTTL          time.Duration `env:"ENTRY_TTL" envDefault:"0"`
	StateDumpInterval time.Duration `env:"STATE_DUMP_INTERVAL" envDefault:"5m"`
	SendRPS           float64       `env:"SEND_RPS" envDefault:"1"`
	HealthPort        int           `env:"HEALTH_PORT" envDefault:"8080"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	if cfg.CooldownWindow <= 0 {
		return nil, ErrCooldownWindow
	}

	return cfg, nil
}

// NormalizedChannels returns the monitored channel usernames lowercased and
// stripped of the "@" prefix. Bare numeric entries are skipped: they are chat
// IDs, which cannot be resolved by username.
func (c *Config) NormalizedChannels() []string {
	channels := make([]string, 0, len(c.MonitoredChannels))

	for _, raw := range c.MonitoredChannels {
		u := strings.TrimSpace(raw)
		if u == "" || numericIDRe.MatchString(u) {
			continue
		}

		channels = append(channels, strings.ToLower(strings.TrimPrefix(u, "@")))
	}

	return channels
}

// IsChatAllowed reports whether a chat may feed messages through the bot
// ingestion path. An empty allowlist accepts any chat.
func (c *Config) IsChatAllowed(chatID int64) bool {
	if len(c.AllowedChatIDs) == 0 {
		return true
	}

	for _, id := range c.AllowedChatIDs {
		if id == chatID {
			return true
		}
	}

	return false
}
