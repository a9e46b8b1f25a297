package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promowatch/telegram-promo-watch/internal/catalog"
	"github.com/promowatch/telegram-promo-watch/internal/cooldown"
	"github.com/promowatch/telegram-promo-watch/internal/matchlog"
)

type fakeDispatcher struct {
	mu     sync.Mutex
	alerts []Alert
	err    error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, alert Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.alerts = append(f.alerts, alert)

	return f.err
}

func (f *fakeDispatcher) sent() []Alert {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Alert, len(f.alerts))
	copy(out, f.alerts)

	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

const testWindow = 30 * time.Minute

func newTestEngine(t *testing.T) (*Engine, *fakeDispatcher, *cooldown.Store, *testClock) {
	t.Helper()

	cat := &catalog.Catalog{
		Rules: []catalog.ProductRule{
			{
				Name:          "RTX 5060",
				MatchPatterns: []string{"rtx 5060"},
				BrandAliases:  []string{"Inno3D", "Galax"},
			},
			{
				Name:          "Ryzen 7 5700X",
				MatchPatterns: []string{"ryzen 7 5700x", "5700x"},
			},
		},
	}
	require.NoError(t, cat.Validate())

	dispatcher := &fakeDispatcher{}
	store := cooldown.NewStore()
	nop := zerolog.Nop()

	e, err := New(
		Config{CooldownWindow: testWindow, Destination: 42},
		cat, store, dispatcher, matchlog.NewWriter(""), &nop,
	)
	require.NoError(t, err)

	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	e.now = clock.Now

	return e, dispatcher, store, clock
}

func (e *Engine) processText(text, source string) {
	e.ProcessMessage(context.Background(), Message{Text: text, Source: source, ReceivedAt: e.now()})
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestFirstSightingAlwaysAlerts(t *testing.T) {
	e, dispatcher, _, _ := newTestEngine(t)

	e.processText("Ryzen 7 5700X por R$ 890", "@promohardware")

	alerts := dispatcher.sent()
	require.Len(t, alerts, 1)
	assert.Equal(t, EmitFirstSighting, alerts[0].Reason)
	assert.Equal(t, "Ryzen 7 5700X", alerts[0].Product)
	assert.True(t, alerts[0].Price.Equal(d("890")))
	assert.Nil(t, alerts[0].PreviousPrice)
	assert.Equal(t, int64(42), alerts[0].Destination)
}

func TestPriceDropAlwaysAlerts(t *testing.T) {
	e, dispatcher, _, clock := newTestEngine(t)

	e.processText("RTX 5060 Inno3D R$ 1700", "@promohardware")
	clock.Advance(time.Minute) // well inside the cooldown window
	e.processText("RTX 5060 Inno3D R$ 1500", "@promohardware")

	alerts := dispatcher.sent()
	require.Len(t, alerts, 2)
	assert.Equal(t, EmitPriceDrop, alerts[1].Reason)
	assert.True(t, alerts[1].Price.Equal(d("1500")))
	require.NotNil(t, alerts[1].PreviousPrice)
	assert.True(t, alerts[1].PreviousPrice.Equal(d("1700")))
}

func TestDeltaThresholdBypassesCooldown(t *testing.T) {
	e, dispatcher, _, clock := newTestEngine(t)

	e.processText("RTX 5060 Inno3D R$ 1000", "@promohardware")
	clock.Advance(time.Minute)

	// +5% exactly: inclusive threshold, emits even within cooldown.
	e.processText("RTX 5060 Inno3D R$ 1050", "@promohardware")

	alerts := dispatcher.sent()
	require.Len(t, alerts, 2)
	assert.Equal(t, EmitPriceDelta, alerts[1].Reason)
}

func TestSmallRiseWithinCooldownSuppressed(t *testing.T) {
	e, dispatcher, store, clock := newTestEngine(t)

	e.processText("RTX 5060 Inno3D R$ 1500", "@promohardware")
	clock.Advance(time.Minute)

	// ~0.7% rise inside the window: suppressed, state untouched.
	e.processText("RTX 5060 Inno3D R$ 1510", "@promohardware")

	require.Len(t, dispatcher.sent(), 1)

	entry, ok := store.Get(cooldown.Key{Product: "RTX 5060", Brand: "Inno3D", Source: "@promohardware"})
	require.True(t, ok)
	assert.True(t, entry.LastPrice.Equal(d("1500")), "suppressed sighting must not move lastPrice")
}

func TestPostCooldownReminder(t *testing.T) {
	e, dispatcher, store, clock := newTestEngine(t)

	e.processText("RTX 5060 Inno3D R$ 1500", "@promohardware")
	clock.Advance(testWindow)
	e.processText("RTX 5060 Inno3D R$ 1510", "@promohardware")

	alerts := dispatcher.sent()
	require.Len(t, alerts, 2)
	assert.Equal(t, EmitCooldownExpired, alerts[1].Reason)

	entry, ok := store.Get(cooldown.Key{Product: "RTX 5060", Brand: "Inno3D", Source: "@promohardware"})
	require.True(t, ok)
	assert.True(t, entry.LastPrice.Equal(d("1510")))
}

func TestKeyIndependence(t *testing.T) {
	e, dispatcher, store, clock := newTestEngine(t)

	e.processText("RTX 5060 Inno3D R$ 1700", "@promohardware")
	clock.Advance(time.Minute)
	e.processText("RTX 5060 Inno3D R$ 1500", "@promohardware")
	clock.Advance(time.Minute)

	// Different brand: first sighting for its own key.
	e.processText("RTX 5060 Galax R$ 1730", "@promohardware")

	// Different source: again a first sighting.
	e.processText("RTX 5060 Inno3D R$ 1500", "@otherdeals")

	alerts := dispatcher.sent()
	require.Len(t, alerts, 4)
	assert.Equal(t, EmitFirstSighting, alerts[2].Reason)
	assert.Equal(t, EmitFirstSighting, alerts[3].Reason)

	entry, ok := store.Get(cooldown.Key{Product: "RTX 5060", Brand: "Inno3D", Source: "@promohardware"})
	require.True(t, ok)
	assert.True(t, entry.LastPrice.Equal(d("1500")), "other keys must not disturb this entry")
}

func TestAntiDrift(t *testing.T) {
	e, dispatcher, _, clock := newTestEngine(t)

	e.processText("RTX 5060 Inno3D R$ 1000", "@promohardware")
	clock.Advance(time.Minute)

	// +4%: suppressed, baseline stays 1000.
	e.processText("RTX 5060 Inno3D R$ 1040", "@promohardware")
	clock.Advance(time.Minute)

	// Another +4% on top: 8.2% against the last alerted price, emits.
	e.processText("RTX 5060 Inno3D R$ 1082", "@promohardware")

	alerts := dispatcher.sent()
	require.Len(t, alerts, 2)
	assert.Equal(t, EmitPriceDelta, alerts[1].Reason)
	require.NotNil(t, alerts[1].PreviousPrice)
	assert.True(t, alerts[1].PreviousPrice.Equal(d("1000")))
}

func TestDispatchFailureDoesNotRollBackState(t *testing.T) {
	e, dispatcher, store, clock := newTestEngine(t)
	dispatcher.err = errors.New("telegram unreachable")

	e.processText("RTX 5060 Inno3D R$ 1700", "@promohardware")

	entry, ok := store.Get(cooldown.Key{Product: "RTX 5060", Brand: "Inno3D", Source: "@promohardware"})
	require.True(t, ok, "state commits even when dispatch fails")
	assert.True(t, entry.LastPrice.Equal(d("1700")))

	// The same price shortly after stays suppressed; the failed send is
	// not retried by re-decision.
	clock.Advance(time.Minute)
	e.processText("RTX 5060 Inno3D R$ 1700", "@promohardware")
	assert.Len(t, dispatcher.sent(), 1)
}

func TestNonOfferMessagesAreIgnored(t *testing.T) {
	e, dispatcher, store, _ := newTestEngine(t)

	e.processText("bom dia pessoal, alguma promo de GPU hoje?", "@promohardware")
	e.processText("RTX 5060 esgotou em todo lugar", "@promohardware")

	assert.Empty(t, dispatcher.sent())
	assert.Equal(t, 0, store.Len())
}

func TestConcurrentSameKeySingleFirstSighting(t *testing.T) {
	e, dispatcher, _, _ := newTestEngine(t)

	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			e.processText("RTX 5060 Inno3D R$ 1700", "@promohardware")
		}()
	}

	wg.Wait()

	alerts := dispatcher.sent()
	require.Len(t, alerts, 1, "near-simultaneous equal offers must decide exactly once")
	assert.Equal(t, EmitFirstSighting, alerts[0].Reason)
}
