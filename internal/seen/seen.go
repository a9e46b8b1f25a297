// Package seen guards against reprocessing the same Telegram message.
// Channels echo each other and clients occasionally redeliver updates, so
// every (chat, message) pair is admitted once.
package seen

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultMaxSize = 2500

type snapshot struct {
	Timestamp int64    `json:"ts"`
	Items     []string `json:"items"`
}

// Guard is a bounded (chat, message) cache with best-effort JSON
// persistence across restarts. It is not durable storage: losing the file
// only means a few duplicate alerts after a restart.
type Guard struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]time.Time
	path    string
	logger  *zerolog.Logger
}

func NewGuard(path string, maxSize int, logger *zerolog.Logger) *Guard {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}

	g := &Guard{
		maxSize: maxSize,
		entries: make(map[string]time.Time),
		path:    path,
		logger:  logger,
	}
	g.load()

	return g
}

// IsDuplicate reports whether the message was already seen and records it
// otherwise. When the cache overflows, the oldest half is dropped.
func (g *Guard) IsDuplicate(chatID int64, messageID int) bool {
	key := fmt.Sprintf("%d:%d", chatID, messageID)

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.entries[key]; ok {
		return true
	}

	if len(g.entries) >= g.maxSize {
		g.evictOldestHalf()
	}

	g.entries[key] = time.Now()

	return false
}

func (g *Guard) evictOldestHalf() {
	type entry struct {
		key string
		at  time.Time
	}

	all := make([]entry, 0, len(g.entries))
	for k, at := range g.entries {
		all = append(all, entry{key: k, at: at})
	}

	sort.Slice(all, func(i, j int) bool { return all[i].at.After(all[j].at) })

	kept := all[:g.maxSize/2]
	g.entries = make(map[string]time.Time, len(kept))

	for _, e := range kept {
		g.entries[e.key] = e.at
	}
}

func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.entries)
}

// Dump persists the cache keys to disk. Called periodically and on
// shutdown; failures are logged, never fatal.
func (g *Guard) Dump() {
	if g.path == "" {
		return
	}

	g.mu.Lock()
	snap := snapshot{Timestamp: time.Now().Unix(), Items: make([]string, 0, len(g.entries))}

	for k := range g.entries {
		snap.Items = append(snap.Items, k)
	}
	g.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		g.logger.Error().Err(err).Msg("failed to encode seen cache")

		return
	}

	if err := os.WriteFile(g.path, data, 0o600); err != nil {
		g.logger.Error().Err(err).Str("path", g.path).Msg("failed to persist seen cache")

		return
	}

	g.logger.Info().Str("path", g.path).Int("items", len(snap.Items)).Msg("persisted seen cache")
}

func (g *Guard) load() {
	if g.path == "" {
		return
	}

	data, err := os.ReadFile(g.path)
	if err != nil {
		if !os.IsNotExist(err) {
			g.logger.Warn().Err(err).Str("path", g.path).Msg("failed to read seen cache")
		}

		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		g.logger.Warn().Err(err).Str("path", g.path).Msg("failed to decode seen cache")

		return
	}

	items := snap.Items
	if len(items) > g.maxSize {
		items = items[len(items)-g.maxSize:]
	}

	now := time.Now()
	for _, k := range items {
		g.entries[k] = now
	}

	g.logger.Info().Str("path", g.path).Int("items", len(g.entries)).Msg("loaded seen cache")
}
