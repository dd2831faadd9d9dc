package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/appdrawer/pkg/debug"
	"github.com/vanderheijden86/appdrawer/pkg/metrics"
	"github.com/vanderheijden86/appdrawer/pkg/model"
)

// metadataRecord is the persisted form of one AppMetadata.
type metadataRecord struct {
	Activity    string `json:"activity"`
	Label       string `json:"label"`
	LastUpdated int64  `json:"last_updated"` // epoch milliseconds
	Stamp       int64  `json:"stamp,omitempty"`
}

// MetadataOption configures a MetadataCache.
type MetadataOption func(*MetadataCache)

// WithMetadataStaleness sets the age after which an entry is stale.
func WithMetadataStaleness(d time.Duration) MetadataOption {
	return func(c *MetadataCache) {
		if d > 0 {
			c.staleness = d
		}
	}
}

// WithMetadataClock overrides the time source.
func WithMetadataClock(now func() time.Time) MetadataOption {
	return func(c *MetadataCache) {
		if now != nil {
			c.now = now
		}
	}
}

// MetadataCache maps package ids to display metadata. It is loaded from the
// store at most once and persisted on request.
type MetadataCache struct {
	store     Store
	staleness time.Duration
	now       func() time.Time

	mu      sync.RWMutex
	entries map[string]model.AppMetadata
	loaded  bool

	persistMu  sync.Mutex
	persistSeq uint64
	persisted  uint64
	persists   sync.WaitGroup
}

// NewMetadataCache creates an empty metadata cache over store.
func NewMetadataCache(store Store, opts ...MetadataOption) *MetadataCache {
	c := &MetadataCache{
		store:     store,
		staleness: DefaultStaleness,
		now:       time.Now,
		entries:   make(map[string]model.AppMetadata),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the metadata for packageID.
func (c *MetadataCache) Get(packageID string) (model.AppMetadata, bool) {
	c.mu.RLock()
	md, ok := c.entries[packageID]
	c.mu.RUnlock()
	metrics.MetadataCacheMetrics.Observe(ok)
	return md, ok
}

// Put stores md under packageID. A zero LastUpdated is set to now.
func (c *MetadataCache) Put(packageID string, md model.AppMetadata) {
	md.PackageID = packageID
	if md.LastUpdated.IsZero() {
		md.LastUpdated = c.now()
	}
	c.mu.Lock()
	c.entries[packageID] = md
	c.mu.Unlock()
}

// Remove drops the metadata for packageID.
func (c *MetadataCache) Remove(packageID string) {
	c.mu.Lock()
	delete(c.entries, packageID)
	c.mu.Unlock()
}

// IsStale reports whether packageID is missing or older than the staleness
// window.
func (c *MetadataCache) IsStale(packageID string) bool {
	c.mu.RLock()
	md, ok := c.entries[packageID]
	c.mu.RUnlock()
	if !ok {
		return true
	}
	return md.IsStale(c.now(), c.staleness)
}

// Len returns the number of cached packages.
func (c *MetadataCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot returns a copy of all entries.
func (c *MetadataCache) Snapshot() map[string]model.AppMetadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]model.AppMetadata, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Labels returns package id → label for entries with a non-empty label.
func (c *MetadataCache) Labels() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.entries))
	for k, v := range c.entries {
		if v.Label != "" {
			out[k] = v.Label
		}
	}
	return out
}

// Loaded reports whether the persisted map has been read.
func (c *MetadataCache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// EnsureLoaded reads the persisted map once. Entries already present in
// memory take precedence over persisted ones. A corrupt record is ignored.
func (c *MetadataCache) EnsureLoaded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return
	}
	c.loaded = true

	data, err := c.store.Read(KeyMetadata)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			debug.Log("metadata cache: read failed: %v", err)
		}
		return
	}
	persisted, err := DecodeMetadata(data)
	if err != nil {
		debug.Log("metadata cache: %v", err)
		return
	}
	for k, v := range persisted {
		if _, ok := c.entries[k]; !ok {
			c.entries[k] = v
		}
	}
}

// Persist writes the current map in the background. Overlapping persists
// resolve to the most recent snapshot.
func (c *MetadataCache) Persist() {
	snapshot := c.Snapshot()
	c.persistMu.Lock()
	c.persistSeq++
	seq := c.persistSeq
	c.persistMu.Unlock()

	c.persists.Add(1)
	go func() {
		defer c.persists.Done()
		if err := c.persist(seq, snapshot); err != nil {
			debug.Log("metadata cache: persist failed: %v", err)
		}
	}()
}

// PersistSync writes the current map before returning.
func (c *MetadataCache) PersistSync() error {
	snapshot := c.Snapshot()
	c.persistMu.Lock()
	c.persistSeq++
	seq := c.persistSeq
	c.persistMu.Unlock()
	return c.persist(seq, snapshot)
}

func (c *MetadataCache) persist(seq uint64, snapshot map[string]model.AppMetadata) error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if seq < c.persisted {
		return nil
	}
	c.persisted = seq

	defer metrics.Timer(metrics.CacheIO)()
	data, err := EncodeMetadata(snapshot)
	if err != nil {
		return err
	}
	return c.store.Write(KeyMetadata, data)
}

// Wait blocks until background persists have finished.
func (c *MetadataCache) Wait() {
	c.persists.Wait()
}

// Clear drops all entries and the persisted record.
func (c *MetadataCache) Clear() {
	c.persistMu.Lock()
	c.persisted = c.persistSeq + 1
	c.persistSeq = c.persisted
	if err := c.store.Delete(KeyMetadata); err != nil {
		debug.Log("metadata cache: delete failed: %v", err)
	}
	c.persistMu.Unlock()

	c.mu.Lock()
	c.entries = make(map[string]model.AppMetadata)
	c.loaded = true
	c.mu.Unlock()
}

// EncodeMetadata renders the persisted JSON form.
func EncodeMetadata(entries map[string]model.AppMetadata) ([]byte, error) {
	records := make(map[string]metadataRecord, len(entries))
	for pkg, md := range entries {
		var ts int64
		if !md.LastUpdated.IsZero() {
			ts = md.LastUpdated.UnixMilli()
		}
		records[pkg] = metadataRecord{Activity: md.ActivityName, Label: md.Label, LastUpdated: ts, Stamp: md.Stamp}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}
	return data, nil
}

// DecodeMetadata parses the persisted JSON form.
func DecodeMetadata(data []byte) (map[string]model.AppMetadata, error) {
	var records map[string]metadataRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	out := make(map[string]model.AppMetadata, len(records))
	for pkg, r := range records {
		if pkg == "" {
			continue
		}
		md := model.AppMetadata{PackageID: pkg, ActivityName: r.Activity, Label: r.Label, Stamp: r.Stamp}
		if r.LastUpdated > 0 {
			md.LastUpdated = time.UnixMilli(r.LastUpdated)
		}
		out[pkg] = md
	}
	return out, nil
}
