package client

import (
	"encoding/json"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/patrickmn/go-cache"

	"github.com/atsocial/atsocial"
)

// ProfileCache absorbs the profile fan-out the discovery engine produces:
// every scan re-enriches the same handful of authors.
type ProfileCache interface {
	Get(did string) (*atsocial.Profile, bool)
	Set(did string, profile *atsocial.Profile)
}

// MemoryCache is the default in-process backend.
type MemoryCache struct {
	c *cache.Cache
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &MemoryCache{c: cache.New(ttl, 15*time.Minute)}
}

func (m *MemoryCache) Get(did string) (*atsocial.Profile, bool) {
	x, found := m.c.Get(did)
	if !found {
		return nil, false
	}
	profile := x.(atsocial.Profile)
	return &profile, true
}

func (m *MemoryCache) Set(did string, profile *atsocial.Profile) {
	m.c.Set(did, *profile, cache.DefaultExpiration)
}

// MemcachedCache shares profiles across processes. Failures read as cache
// misses.
type MemcachedCache struct {
	mc  *memcache.Client
	ttl int32
}

func NewMemcachedCache(mc *memcache.Client, ttl time.Duration) *MemcachedCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &MemcachedCache{mc: mc, ttl: int32(ttl.Seconds())}
}

func (m *MemcachedCache) Get(did string) (*atsocial.Profile, bool) {
	item, err := m.mc.Get("profile:" + did)
	if err != nil {
		return nil, false
	}

	var profile atsocial.Profile
	if json.Unmarshal(item.Value, &profile) != nil {
		return nil, false
	}
	return &profile, true
}

func (m *MemcachedCache) Set(did string, profile *atsocial.Profile) {
	raw, err := json.Marshal(profile)
	if err != nil {
		return
	}
	_ = m.mc.Set(&memcache.Item{Key: "profile:" + did, Value: raw, Expiration: m.ttl})
}
