package cooldown

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetUpsert(t *testing.T) {
	s := NewStore()
	key := Key{Product: "RTX 5060", Brand: "Inno3D", Source: "@promo"}

	_, ok := s.Get(key)
	require.False(t, ok)

	when := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.Upsert(key, decimal.NewFromInt(1700), when)

	e, ok := s.Get(key)
	require.True(t, ok)
	assert.True(t, e.LastPrice.Equal(decimal.NewFromInt(1700)))
	assert.Equal(t, when, e.LastAlertAt)

	s.Upsert(key, decimal.NewFromInt(1500), when.Add(time.Hour))

	e, ok = s.Get(key)
	require.True(t, ok)
	assert.True(t, e.LastPrice.Equal(decimal.NewFromInt(1500)))
}

func TestStore_KeyIndependence(t *testing.T) {
	s := NewStore()
	when := time.Now()

	s.Upsert(Key{Product: "RTX 5060", Brand: "Inno3D", Source: "@a"}, decimal.NewFromInt(1700), when)

	_, ok := s.Get(Key{Product: "RTX 5060", Brand: "Galax", Source: "@a"})
	assert.False(t, ok, "different brand must be a different key")

	_, ok = s.Get(Key{Product: "RTX 5060", Brand: "Inno3D", Source: "@b"})
	assert.False(t, ok, "different source must be a different key")

	assert.Equal(t, 1, s.Len())
}

func TestStore_EvictBefore(t *testing.T) {
	s := NewStore()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	s.Upsert(Key{Product: "old"}, decimal.NewFromInt(100), base)
	s.Upsert(Key{Product: "fresh"}, decimal.NewFromInt(100), base.Add(48*time.Hour))

	evicted := s.EvictBefore(base.Add(24 * time.Hour))
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, s.Len())

	_, ok := s.Get(Key{Product: "fresh"})
	assert.True(t, ok)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore()
	key := Key{Product: "RTX 5060"}

	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			s.Upsert(key, decimal.NewFromInt(int64(1000+n)), time.Now())
			s.Get(key)
			s.Len()
		}(i)
	}

	wg.Wait()

	_, ok := s.Get(key)
	assert.True(t, ok)
	assert.Equal(t, 1, s.Len())
}
