// Package cache holds the two-tier cache of the installed-app list and the
// per-package display metadata.
//
// Both caches are explicit objects: callers construct them over a Store and
// inject them where needed. Persistence is best effort. Read failures are
// treated as misses and write failures are logged and dropped.
package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vanderheijden86/appdrawer/pkg/debug"
	"github.com/vanderheijden86/appdrawer/pkg/metrics"
	"github.com/vanderheijden86/appdrawer/pkg/model"
)

const (
	// DefaultStaleness is how long a persisted snapshot stays valid.
	DefaultStaleness = 5 * time.Minute
	// DefaultMemoryTTL is how long the in-memory raw list is served.
	DefaultMemoryTTL = 5 * time.Minute
)

// ErrCorrupt is returned by DecodeList for malformed snapshots.
var ErrCorrupt = errors.New("cache: corrupt list snapshot")

// VersionSource yields the live package stamps the list version is computed
// from.
type VersionSource interface {
	PackageStamps(ctx context.Context) ([]model.PackageStamp, error)
}

// ListOption configures a ListCache.
type ListOption func(*ListCache)

// WithStaleness sets the persisted snapshot validity window.
func WithStaleness(d time.Duration) ListOption {
	return func(c *ListCache) {
		if d > 0 {
			c.staleness = d
		}
	}
}

// WithMemoryTTL sets how long the in-memory list is served.
func WithMemoryTTL(d time.Duration) ListOption {
	return func(c *ListCache) {
		if d > 0 {
			c.memTTL = d
		}
	}
}

// WithListClock overrides the time source.
func WithListClock(now func() time.Time) ListOption {
	return func(c *ListCache) {
		if now != nil {
			c.now = now
		}
	}
}

// ListCache caches the raw list of launchable entries in memory with a TTL
// and persists a snapshot with its timestamp and version fingerprint.
type ListCache struct {
	store     Store
	staleness time.Duration
	memTTL    time.Duration
	now       func() time.Time

	mu    sync.RWMutex
	mem   []model.AppEntry
	memAt time.Time

	saveMu   sync.Mutex
	saveSeq  uint64
	lastSave uint64
	saves    sync.WaitGroup
}

// NewListCache creates a list cache over store.
func NewListCache(store Store, opts ...ListOption) *ListCache {
	c := &ListCache{
		store:     store,
		staleness: DefaultStaleness,
		memTTL:    DefaultMemoryTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Staleness returns the configured validity window.
func (c *ListCache) Staleness() time.Duration {
	return c.staleness
}

// IsValid reports whether a persisted snapshot exists, decodes to at least
// one entry and is younger than the staleness window.
func (c *ListCache) IsValid() bool {
	data, err := c.store.Read(KeyList)
	if err != nil {
		return false
	}
	if entries, err := DecodeList(data); err != nil || len(entries) == 0 {
		return false
	}
	ts, err := c.Timestamp()
	if err != nil {
		return false
	}
	return c.now().Sub(ts) < c.staleness
}

// Timestamp returns the time the persisted snapshot was written.
func (c *ListCache) Timestamp() (time.Time, error) {
	data, err := c.store.Read(KeyTimestamp)
	if err != nil {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp: %w", err)
	}
	return time.UnixMilli(ms), nil
}

// Version returns the persisted version fingerprint.
func (c *ListCache) Version() (string, error) {
	data, err := c.store.Read(KeyVersion)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// IsVersionCurrent recomputes the version from src and compares it with the
// persisted one. Any failure counts as not current.
func (c *ListCache) IsVersionCurrent(ctx context.Context, src VersionSource) bool {
	stored, err := c.Version()
	if err != nil || stored == "" {
		return false
	}
	stamps, err := src.PackageStamps(ctx)
	if err != nil {
		debug.Log("list cache: version check failed: %v", err)
		return false
	}
	return stored == model.ListVersion(stamps)
}

// Load returns the persisted snapshot. A missing or corrupt snapshot yields
// an empty list.
func (c *ListCache) Load() []model.AppEntry {
	defer metrics.Timer(metrics.CacheIO)()
	data, err := c.store.Read(KeyList)
	if err != nil {
		metrics.ListCacheMetrics.Miss()
		if !errors.Is(err, ErrNotFound) {
			debug.Log("list cache: read failed: %v", err)
		}
		return []model.AppEntry{}
	}
	entries, err := DecodeList(data)
	if err != nil {
		metrics.ListCacheMetrics.Miss()
		debug.Log("list cache: %v", err)
		return []model.AppEntry{}
	}
	metrics.ListCacheMetrics.Hit()
	return entries
}

// Save persists list and version in the background. Failures are logged and
// ignored. When saves overlap the most recent call wins.
func (c *ListCache) Save(list []model.AppEntry, version string) {
	snapshot := model.CloneEntries(list)
	c.saveMu.Lock()
	c.saveSeq++
	seq := c.saveSeq
	c.saveMu.Unlock()

	c.saves.Add(1)
	go func() {
		defer c.saves.Done()
		if err := c.save(seq, snapshot, version); err != nil {
			debug.Log("list cache: save failed: %v", err)
		}
	}()
}

// SaveSync persists list and version before returning.
func (c *ListCache) SaveSync(list []model.AppEntry, version string) error {
	c.saveMu.Lock()
	c.saveSeq++
	seq := c.saveSeq
	c.saveMu.Unlock()
	return c.save(seq, list, version)
}

func (c *ListCache) save(seq uint64, list []model.AppEntry, version string) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	if seq < c.lastSave {
		return nil
	}
	c.lastSave = seq

	defer metrics.Timer(metrics.CacheIO)()
	ts := strconv.FormatInt(c.now().UnixMilli(), 10)
	var errs []error
	if err := c.store.Write(KeyList, EncodeList(list)); err != nil {
		errs = append(errs, err)
	}
	if err := c.store.Write(KeyTimestamp, []byte(ts)); err != nil {
		errs = append(errs, err)
	}
	if err := c.store.Write(KeyVersion, []byte(version)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Wait blocks until background saves have finished.
func (c *ListCache) Wait() {
	c.saves.Wait()
}

// Invalidate drops the persisted timestamp and the in-memory list so the
// next load goes to the registry. The persisted snapshot stays readable.
func (c *ListCache) Invalidate() {
	if err := c.store.Delete(KeyTimestamp); err != nil {
		debug.Log("list cache: invalidate failed: %v", err)
	}
	c.mu.Lock()
	c.mem = nil
	c.memAt = time.Time{}
	c.mu.Unlock()
}

// Clear removes every persisted record and the in-memory list.
func (c *ListCache) Clear() {
	c.saveMu.Lock()
	// Saves queued before the clear must not resurrect the snapshot.
	c.lastSave = c.saveSeq + 1
	c.saveSeq = c.lastSave
	for _, key := range []string{KeyList, KeyTimestamp, KeyVersion} {
		if err := c.store.Delete(key); err != nil {
			debug.Log("list cache: delete %s failed: %v", key, err)
		}
	}
	c.saveMu.Unlock()

	c.mu.Lock()
	c.mem = nil
	c.memAt = time.Time{}
	c.mu.Unlock()
}

// Memory returns a copy of the in-memory list if it is younger than the TTL.
func (c *ListCache) Memory() ([]model.AppEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.mem == nil || c.now().Sub(c.memAt) >= c.memTTL {
		return nil, false
	}
	return model.CloneEntries(c.mem), true
}

// SetMemory replaces the in-memory list.
func (c *ListCache) SetMemory(list []model.AppEntry) {
	snapshot := model.CloneEntries(list)
	c.mu.Lock()
	c.mem = snapshot
	c.memAt = c.now()
	c.mu.Unlock()
}

// EncodeList renders entries as "packageId|activityName" lines. Entries whose
// fields cannot be represented in that form are skipped.
func EncodeList(entries []model.AppEntry) []byte {
	var buf bytes.Buffer
	for _, e := range entries {
		if e.IsZero() || strings.ContainsAny(e.PackageID, "|\n\r") || strings.ContainsAny(e.ActivityName, "|\n\r") {
			continue
		}
		buf.WriteString(e.Key())
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// DecodeList parses a snapshot written by EncodeList. Blank lines are
// ignored; any malformed line makes the whole snapshot corrupt.
func DecodeList(data []byte) ([]model.AppEntry, error) {
	entries := []model.AppEntry{}
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		e, ok := model.ParseEntryKey(line)
		if !ok {
			return []model.AppEntry{}, fmt.Errorf("%w: line %d", ErrCorrupt, i+1)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
