// Package cache is the process-wide handle over one logcache store. Every
// call is serialized by a single mutex, since the store itself holds no
// locks.
package cache

import (
	"sync"

	"github.com/hasssanezzz/logcache/internal"
	"github.com/hasssanezzz/logcache/shared"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
)

type Stats = internal.Stats

var valueJSON = jsoniter.ConfigCompatibleWithStandardLibrary

type Cache struct {
	mu        sync.Mutex
	store     *internal.Store
	collector *internal.Collector
}

func Open(path string, configs ...shared.EngineConfig) (*Cache, error) {
	store, err := internal.Open(path, configs...)
	if err != nil {
		return nil, err
	}
	c := &Cache{store: store}
	c.collector = internal.NewCollector(store, &c.mu)
	return c, nil
}

func (c *Cache) Get(key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Get(key)
}

func (c *Cache) Set(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Set(key, value)
}

func (c *Cache) Remove(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Remove(key)
}

func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Contains(key)
}

func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Keys()
}

func (c *Cache) Compact() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Compact()
}

func (c *Cache) Stats() (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Stats()
}

// GetJSON decodes the value of key into v. It reports false when the key is
// absent, leaving v untouched.
func (c *Cache) GetJSON(key string, v any) (bool, error) {
	value, ok, err := c.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := valueJSON.UnmarshalFromString(value, v); err != nil {
		return true, err
	}
	return true, nil
}

// SetJSON stores v under key as a JSON string.
func (c *Cache) SetJSON(key string, v any) error {
	value, err := valueJSON.MarshalToString(v)
	if err != nil {
		return err
	}
	return c.Set(key, value)
}

func (c *Cache) Collector() prometheus.Collector {
	return c.collector
}

func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Close()
}
