// Package settings holds the admin-editable conversation settings and the
// process-wide cache in front of their durable store. The cache is owned
// state behind a struct, never a package global, so tests can build a fresh
// one per run.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
)

// ErrUnavailable is returned when the cache was constructed without a
// backing store handle.
var ErrUnavailable = errors.New("settings store unavailable")

const (
	DefaultTone       = "Neutral"
	DefaultGenderTone = "Neutral"
	DefaultTextSize   = "Medium"

	// DefaultMessageValue is the durable-history page size used when a
	// session buffer is rehydrated. It is unrelated to the fixed prompt
	// window the pipeline sends upstream.
	DefaultMessageValue = 20

	DefaultDurationValue = 30
)

// Interval is the total-character budget for a reply. Max <= 0 means
// unbounded.
type Interval struct {
	Min int `bson:"min" json:"min"`
	Max int `bson:"max" json:"max"`
}

// Text renders the budget the way the system prompt states it, e.g.
// "150 to 400 characters" or "150 to ∞ characters".
func (iv Interval) Text() string {
	max := "∞"
	if iv.Max > 0 {
		max = strconv.Itoa(iv.Max)
	}
	return fmt.Sprintf("%d to %s characters", iv.Min, max)
}

// Settings is the singleton configuration record. Absent until the first
// admin write.
type Settings struct {
	Tone          string   `bson:"tone" json:"tone"`
	GenderTone    string   `bson:"genderTone" json:"genderTone"`
	TextSize      string   `bson:"textSize" json:"textSize"`
	MessageValue  int      `bson:"messageValue" json:"messageValue"`
	DurationValue int      `bson:"durationValue" json:"durationValue"`
	Interval      Interval `bson:"intervalValue" json:"intervalValue"`
}

func Default() Settings {
	return Settings{
		Tone:          DefaultTone,
		GenderTone:    DefaultGenderTone,
		TextSize:      DefaultTextSize,
		MessageValue:  DefaultMessageValue,
		DurationValue: DefaultDurationValue,
		Interval:      Interval{Min: 150, Max: 400},
	}
}

// Store is the durable singleton record. Get returns (nil, nil) when no
// configuration has ever been written.
type Store interface {
	Get(ctx context.Context) (*Settings, error)
	Upsert(ctx context.Context, s Settings) error
}

// Cache is the process-wide settings cache: fetch-if-empty on read,
// write-through with a synchronous refresh on update.
type Cache struct {
	mu    sync.RWMutex
	store Store
	cur   *Settings
}

func NewCache(store Store) *Cache {
	return &Cache{store: store}
}

// Current returns the cached settings, fetching synchronously when the
// cache is empty. found is false when no configuration document exists yet;
// callers fall back to Default().
func (c *Cache) Current(ctx context.Context) (s Settings, found bool, err error) {
	c.mu.RLock()
	if c.cur != nil {
		s = *c.cur
		c.mu.RUnlock()
		return s, true, nil
	}
	c.mu.RUnlock()

	if c.store == nil {
		return Settings{}, false, ErrUnavailable
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur != nil {
		return *c.cur, true, nil
	}
	stored, err := c.store.Get(ctx)
	if err != nil {
		return Settings{}, false, fmt.Errorf("fetch settings: %w", err)
	}
	if stored == nil {
		return Settings{}, false, nil
	}
	c.cur = stored
	return *stored, true, nil
}

// Update writes the settings through to the store and refreshes the cache
// before returning, so requests started afterwards observe the new value.
func (c *Cache) Update(ctx context.Context, s Settings) (Settings, error) {
	if c.store == nil {
		return Settings{}, ErrUnavailable
	}
	if err := c.store.Upsert(ctx, s); err != nil {
		return Settings{}, fmt.Errorf("update settings: %w", err)
	}
	stored, err := c.store.Get(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("refresh settings: %w", err)
	}
	if stored == nil {
		// The store acknowledged the upsert; trust the written value.
		stored = &s
	}
	c.mu.Lock()
	c.cur = stored
	c.mu.Unlock()
	return *stored, nil
}

// Invalidate empties the cache so the next read hits the store.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.cur = nil
	c.mu.Unlock()
}
