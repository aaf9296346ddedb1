package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func cycle(currencies ...string) TriangularPath {
	return TriangularPath{Currencies: currencies}
}

func TestCanonicalKeyRotationInvariant(t *testing.T) {
	// The same cycle discovered from different starting currencies must
	// collapse to one key.
	a := cycle("BTC", "ETH", "USDT", "BTC")
	b := cycle("ETH", "USDT", "BTC", "ETH")
	c := cycle("USDT", "BTC", "ETH", "USDT")

	assert.Equal(t, a.CanonicalKey(), b.CanonicalKey())
	assert.Equal(t, a.CanonicalKey(), c.CanonicalKey())
	assert.Equal(t, "BTC>ETH>USDT", a.CanonicalKey())
}

func TestCanonicalKeyPreservesOrientation(t *testing.T) {
	// The reversed cycle trades opposite sides of each book; it is distinct.
	forward := cycle("BTC", "ETH", "USDT", "BTC")
	reversed := cycle("BTC", "USDT", "ETH", "BTC")
	assert.NotEqual(t, forward.CanonicalKey(), reversed.CanonicalKey())
}

func TestPathString(t *testing.T) {
	p := cycle("BTC", "ETH", "USDT", "BTC")
	assert.Equal(t, "BTC → ETH → USDT → BTC", p.String())
	assert.Equal(t, "BTC", p.Start())
}

func TestOpportunityFresh(t *testing.T) {
	now := time.Now()
	o := Opportunity{DetectedAt: now.Add(-1 * time.Second)}
	assert.True(t, o.Fresh(2*time.Second, now))
	assert.False(t, o.Fresh(500*time.Millisecond, now))
}

func TestSnapshotBestSkipsNonExecutable(t *testing.T) {
	s := &MarketSnapshot{Opportunities: []Opportunity{
		{ID: "a", Executable: false},
		{ID: "b", Executable: true},
		{ID: "c", Executable: true},
	}}

	best, ok := s.Best()
	assert.True(t, ok)
	assert.Equal(t, "b", best.ID)
	assert.Equal(t, 2, s.ExecutableCount())

	empty := &MarketSnapshot{}
	_, ok = empty.Best()
	assert.False(t, ok)
}
