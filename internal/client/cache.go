package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Key identifies a cached query. Entity doubles as the cache tag.
type Key struct {
	Entity string
	Op     string
	Params string
}

func (k Key) String() string {
	return k.Entity + "/" + k.Op + "?" + k.Params
}

// DefaultMaxAge is how long NewCache serves a result before loading it
// again.
const DefaultMaxAge = 30 * time.Second

type entry struct {
	value   any
	fetched time.Time
}

// Cache keeps successful query results until their entity is invalidated or
// they are older than MaxAge. Concurrent fetches of one key share a single
// request, and a result that arrives after its entity was invalidated is not
// stored.
type Cache struct {
	// MaxAge bounds how long a result is served. Zero keeps results until
	// invalidation.
	MaxAge time.Duration

	mu        sync.Mutex
	entries   map[Key]entry
	gens      map[string]uint64
	subs      map[string]map[int]func()
	nextSub   int
	lastPrune time.Time
	now       func() time.Time

	group singleflight.Group
}

// NewCache returns an empty cache with DefaultMaxAge.
func NewCache() *Cache {
	return &Cache{
		MaxAge:  DefaultMaxAge,
		entries: map[Key]entry{},
		gens:    map[string]uint64{},
		subs:    map[string]map[int]func(){},
		now:     time.Now,
	}
}

func (c *Cache) expired(e entry, now time.Time) bool {
	return c.MaxAge > 0 && now.Sub(e.fetched) >= c.MaxAge
}

// prune drops expired entries at most once per MaxAge. c.mu must be held.
func (c *Cache) prune(now time.Time) {
	if c.MaxAge <= 0 || now.Sub(c.lastPrune) < c.MaxAge {
		return
	}
	c.lastPrune = now
	for k, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, k)
		}
	}
}

// Fetch returns the cached value for key or calls fetch to load it.
func (c *Cache) Fetch(ctx context.Context, key Key, fetch func(context.Context) (any, error)) (any, error) {
	c.mu.Lock()
	now := c.now()
	if e, ok := c.entries[key]; ok {
		if !c.expired(e, now) {
			c.mu.Unlock()
			return e.value, nil
		}
		delete(c.entries, key)
	}
	gen := c.gens[key.Entity]
	c.mu.Unlock()

	// The generation is part of the flight key so a fetch started after an
	// invalidation never joins one started before it.
	v, err, _ := c.group.Do(fmt.Sprintf("%s#%d", key, gen), func() (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gens[key.Entity] == gen {
			now := c.now()
			c.prune(now)
			c.entries[key] = entry{value: v, fetched: now}
		}
		c.mu.Unlock()
		return v, nil
	})
	return v, err
}

// Generation returns the invalidation counter of entity.
func (c *Cache) Generation(entity string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[entity]
}

// Invalidate drops every entry tagged with one of tags and notifies their
// subscribers. Subscribers run synchronously, after the lock is released.
func (c *Cache) Invalidate(tags ...string) {
	var notify []func()
	c.mu.Lock()
	for _, tag := range tags {
		c.gens[tag]++
		for k := range c.entries {
			if k.Entity == tag {
				delete(c.entries, k)
			}
		}
		for _, fn := range c.subs[tag] {
			notify = append(notify, fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range notify {
		fn()
	}
}

// Subscribe calls fn after every invalidation of tag until the returned
// function is called.
func (c *Cache) Subscribe(tag string, fn func()) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	if c.subs[tag] == nil {
		c.subs[tag] = map[int]func(){}
	}
	c.subs[tag][id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs[tag], id)
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
