package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	scrapeerrors "sjsage522/outletscraper/pkg/errors"
)

const guardKeyPrefix = "outletscraper:blocked:"

// RunGuard blocks a scrape target for a while after a run that found no
// outlets, so a page whose structure changed is not hit on every tick.
type RunGuard struct {
	cache     CacheService
	blockTime time.Duration
}

// NewRunGuard creates a guard backed by cache
func NewRunGuard(cache CacheService, blockTime time.Duration) *RunGuard {
	return &RunGuard{cache: cache, blockTime: blockTime}
}

// key maps any target URL onto a valid memcache key
func (g *RunGuard) key(target string) string {
	sum := sha1.Sum([]byte(target))
	return guardKeyPrefix + hex.EncodeToString(sum[:])
}

// Blocked reports whether target is still blocked and for how long it
// was blocked. Cache failures are returned and leave the target unblocked.
func (g *RunGuard) Blocked(target string) (bool, time.Duration, error) {
	value, err := g.cache.Get(g.key(target))
	if errors.Is(err, ErrCacheMiss) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, scrapeerrors.NewCache("guard", "failed to read block state", err)
	}
	seconds, _ := strconv.Atoi(string(value))
	return true, time.Duration(seconds) * time.Second, nil
}

// Block marks target as blocked for the guard's block time
func (g *RunGuard) Block(target string) error {
	if g.blockTime <= 0 {
		return nil
	}
	value := []byte(strconv.Itoa(int(g.blockTime / time.Second)))
	if err := g.cache.Set(g.key(target), value, g.blockTime); err != nil {
		return scrapeerrors.NewCache("guard", "failed to block target", err)
	}
	return nil
}

// Release removes a block on target
func (g *RunGuard) Release(target string) error {
	if err := g.cache.Delete(g.key(target)); err != nil && !errors.Is(err, ErrCacheMiss) {
		return scrapeerrors.NewCache("guard", "failed to release target", err)
	}
	return nil
}
