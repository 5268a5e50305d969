package cache

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"englishtutorbot/pkg/sheets"
	"englishtutorbot/pkg/state"
)

// Gateway is the slice of the spreadsheet gateway the cache needs.
type Gateway interface {
	FetchRow(ctx context.Context, userID int64) (sheets.ProfileRow, error)
	UpsertRow(ctx context.Context, userID int64, row sheets.ProfileRow) error
}

// entry is one cached profile. Version counts local mutations; a flush only
// clears the dirty flag when the version it snapshotted is still current, so
// an acknowledged write never swallows a mutation that raced it.
type entry struct {
	profile        state.UserProfile
	dirty          bool
	version        uint64
	flushedVersion uint64
	synced         bool
	lastSync       time.Time
	lastTouch      time.Time
}

// Cache is the in-memory mirror of the profiles tab. It absorbs read bursts,
// coalesces writes, and keeps serving last-known state while the store is
// unavailable. Dirty entries are never evicted.
type Cache struct {
	gw      Gateway
	idleTTL time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[int64]*entry
}

func New(gw Gateway, idleTTL time.Duration) *Cache {
	return &Cache{
		gw:      gw,
		idleTTL: idleTTL,
		now:     time.Now,
		entries: make(map[int64]*entry),
	}
}

// Get returns the profile for userID, fetching from the gateway on a miss.
// When the store is unavailable a fresh local profile is served and flagged
// for a later resync; a dirty cached copy always wins over a remote read.
func (c *Cache) Get(ctx context.Context, userID int64, userName string) (state.UserProfile, error) {
	c.mu.Lock()
	e, ok := c.entries[userID]
	if ok {
		e.lastTouch = c.now()
		if e.synced || e.dirty {
			p := e.profile
			c.mu.Unlock()
			return p, nil
		}
	}
	c.mu.Unlock()

	row, err := c.gw.FetchRow(ctx, userID)
	switch {
	case err == nil:
		return c.adopt(userID, userName, profileFromRow(row), true), nil
	case errors.Is(err, sheets.ErrNotFound):
		log.Printf("[Cache] No profile row for user %d, starting fresh", userID)
		p := c.adopt(userID, userName, freshProfile(userID, userName), true)
		c.MarkDirty(userID, p) // new users must reach the sheet on next flush
		return p, nil
	case sheets.IsPermanent(err):
		log.Printf("[Cache] Permanent store failure for user %d, serving local state: %v", userID, err)
		return c.adopt(userID, userName, freshProfile(userID, userName), false), nil
	default:
		log.Printf("[Cache] Store unavailable for user %d, serving local state: %v", userID, err)
		return c.adopt(userID, userName, freshProfile(userID, userName), false), nil
	}
}

// MarkDirty stores the mutated profile and schedules it for the next flush.
func (c *Cache) MarkDirty(userID int64, profile state.UserProfile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markDirtyLocked(userID, profile)
}

func (c *Cache) markDirtyLocked(userID int64, profile state.UserProfile) {
	e, ok := c.entries[userID]
	if !ok {
		e = &entry{lastTouch: c.now()}
		c.entries[userID] = e
	}
	e.profile = profile
	e.dirty = true
	e.version++
	e.lastTouch = c.now()
}

// Version returns the mutation counter for userID (0 when uncached). Tests
// use it to assert a transition dirtied the profile exactly once.
func (c *Cache) Version(userID int64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[userID]; ok {
		return e.version
	}
	return 0
}

// DirtyCount reports how many entries await a flush.
func (c *Cache) DirtyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if e.dirty {
			n++
		}
	}
	return n
}

// Flush writes all dirty entries, each retried independently by the gateway
// so one failing row does not block the others. It returns the number of
// entries flushed and the number that failed.
func (c *Cache) Flush(ctx context.Context) (flushed, failed int) {
	type snapshot struct {
		userID  int64
		profile state.UserProfile
		version uint64
	}

	c.mu.Lock()
	var dirty []snapshot
	for userID, e := range c.entries {
		if e.dirty {
			dirty = append(dirty, snapshot{userID: userID, profile: e.profile, version: e.version})
		}
	}
	c.mu.Unlock()

	for _, snap := range dirty {
		if err := c.gw.UpsertRow(ctx, snap.userID, rowFromProfile(snap.profile)); err != nil {
			log.Printf("[Cache] Flush failed for user %d: %v", snap.userID, err)
			failed++
			continue
		}
		c.ackFlush(snap.userID, snap.version)
		flushed++
	}
	return flushed, failed
}

// FlushUser flushes a single user's entry, used on session teardown.
func (c *Cache) FlushUser(ctx context.Context, userID int64) error {
	c.mu.Lock()
	e, ok := c.entries[userID]
	if !ok || !e.dirty {
		c.mu.Unlock()
		return nil
	}
	profile := e.profile
	version := e.version
	c.mu.Unlock()

	if err := c.gw.UpsertRow(ctx, userID, rowFromProfile(profile)); err != nil {
		return err
	}
	c.ackFlush(userID, version)
	return nil
}

func (c *Cache) ackFlush(userID int64, version uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[userID]
	if !ok {
		return
	}
	e.flushedVersion = version
	e.lastSync = c.now()
	e.synced = true
	if e.version == version {
		e.dirty = false
	}
	// A newer mutation arrived while the write was in flight; leave the
	// entry dirty so the next flush carries it.
}

// ExpireIdle evicts entries untouched for the idle TTL. Entries with
// unflushed writes are never evicted.
func (c *Cache) ExpireIdle(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := now.Add(-c.idleTTL)
	evicted := 0
	for userID, e := range c.entries {
		if e.dirty {
			continue
		}
		if e.lastTouch.Before(cutoff) {
			delete(c.entries, userID)
			evicted++
		}
	}
	return evicted
}

// Drop removes an entry regardless of staleness. Only call after a
// successful flush (session finalization).
func (c *Cache) Drop(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[userID]; ok && e.dirty {
		log.Printf("[Cache] Refusing to drop dirty entry for user %d", userID)
		return
	}
	delete(c.entries, userID)
}

func (c *Cache) adopt(userID int64, userName string, profile state.UserProfile, synced bool) state.UserProfile {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[userID]; ok && e.dirty {
		// Dirty local state always wins over a remote read.
		e.lastTouch = c.now()
		return e.profile
	}

	if userName != "" && profile.UserName != userName {
		profile.UserName = userName
	}
	e := &entry{
		profile:   profile,
		synced:    synced,
		lastTouch: c.now(),
	}
	if synced {
		e.lastSync = c.now()
	}
	c.entries[userID] = e
	return profile
}

func freshProfile(userID int64, userName string) state.UserProfile {
	return state.UserProfile{
		UserID:   userID,
		UserName: userName,
	}
}
