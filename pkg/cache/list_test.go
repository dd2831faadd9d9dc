package cache_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/vanderheijden86/appdrawer/pkg/cache"
	"github.com/vanderheijden86/appdrawer/pkg/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type stampSource struct {
	stamps []model.PackageStamp
	err    error
}

func (s stampSource) PackageStamps(context.Context) ([]model.PackageStamp, error) {
	return s.stamps, s.err
}

var sampleEntries = []model.AppEntry{
	{PackageID: "com.a", ActivityName: "com.a.Main"},
	{PackageID: "com.b", ActivityName: "com.b.Main"},
	{PackageID: "com.b", ActivityName: "com.b.Second"},
}

func TestListCache_EmptyStore(t *testing.T) {
	c := cache.NewListCache(cache.NewMemoryStore())
	if c.IsValid() {
		t.Error("empty store should not be valid")
	}
	got := c.Load()
	if got == nil || len(got) != 0 {
		t.Errorf("Load on empty store = %#v, want empty non-nil slice", got)
	}
	if _, ok := c.Memory(); ok {
		t.Error("Memory should miss before SetMemory")
	}
}

func TestListCache_SaveSyncThenLoad(t *testing.T) {
	clock := newFakeClock()
	store := cache.NewMemoryStore()
	c := cache.NewListCache(store, cache.WithListClock(clock.Now))

	if err := c.SaveSync(sampleEntries, "3_42"); err != nil {
		t.Fatalf("SaveSync: %v", err)
	}
	if !c.IsValid() {
		t.Error("fresh snapshot should be valid")
	}
	if got := c.Load(); !reflect.DeepEqual(got, sampleEntries) {
		t.Errorf("Load = %v, want %v", got, sampleEntries)
	}
	v, err := c.Version()
	if err != nil || v != "3_42" {
		t.Errorf("Version = %q, %v", v, err)
	}
	ts, err := store.Read(cache.KeyTimestamp)
	if err != nil {
		t.Fatalf("timestamp record: %v", err)
	}
	if string(ts) != strconv.FormatInt(clock.Now().UnixMilli(), 10) {
		t.Errorf("timestamp = %s", ts)
	}
}

func TestListCache_ExpiresAfterStaleness(t *testing.T) {
	clock := newFakeClock()
	c := cache.NewListCache(cache.NewMemoryStore(),
		cache.WithListClock(clock.Now),
		cache.WithStaleness(time.Minute))

	if err := c.SaveSync(sampleEntries, "v"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(59 * time.Second)
	if !c.IsValid() {
		t.Error("should still be valid before the window closes")
	}
	clock.Advance(time.Second)
	if c.IsValid() {
		t.Error("should be invalid once the window has elapsed")
	}
	// Expired snapshots can still be read.
	if got := c.Load(); len(got) != len(sampleEntries) {
		t.Errorf("Load after expiry = %d entries", len(got))
	}
}

func TestListCache_CorruptSnapshot(t *testing.T) {
	store := cache.NewMemoryStore()
	c := cache.NewListCache(store)
	if err := c.SaveSync(sampleEntries, "v"); err != nil {
		t.Fatal(err)
	}
	_ = store.Write(cache.KeyList, []byte("com.a|Main\nno-separator-here\n"))

	if c.IsValid() {
		t.Error("corrupt snapshot must not be valid")
	}
	if got := c.Load(); len(got) != 0 {
		t.Errorf("corrupt snapshot should load empty, got %v", got)
	}
}

func TestListCache_EmptySnapshotInvalid(t *testing.T) {
	store := cache.NewMemoryStore()
	c := cache.NewListCache(store)
	if err := c.SaveSync(sampleEntries, "v"); err != nil {
		t.Fatal(err)
	}
	_ = store.Write(cache.KeyList, []byte("\n\n"))
	if c.IsValid() {
		t.Error("snapshot with no entries must not be valid")
	}
}

func TestListCache_CorruptTimestamp(t *testing.T) {
	store := cache.NewMemoryStore()
	c := cache.NewListCache(store)
	if err := c.SaveSync(sampleEntries, "v"); err != nil {
		t.Fatal(err)
	}
	_ = store.Write(cache.KeyTimestamp, []byte("yesterday"))
	if c.IsValid() {
		t.Error("unparseable timestamp must invalidate")
	}
	if got := c.Load(); len(got) != len(sampleEntries) {
		t.Error("corrupt timestamp must not affect the list record")
	}
}

func TestListCache_IsVersionCurrent(t *testing.T) {
	stamps := []model.PackageStamp{{PackageID: "com.a", UpdatedAt: 10}, {PackageID: "com.b", UpdatedAt: 32}}
	c := cache.NewListCache(cache.NewMemoryStore())

	ctx := context.Background()
	if c.IsVersionCurrent(ctx, stampSource{stamps: stamps}) {
		t.Error("no stored version should not be current")
	}
	if err := c.SaveSync(sampleEntries, model.ListVersion(stamps)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		src  stampSource
		want bool
	}{
		{"same", stampSource{stamps: stamps}, true},
		{"package added", stampSource{stamps: append(append([]model.PackageStamp{}, stamps...), model.PackageStamp{PackageID: "com.c", UpdatedAt: 1})}, false},
		{"package updated", stampSource{stamps: []model.PackageStamp{{PackageID: "com.a", UpdatedAt: 11}, {PackageID: "com.b", UpdatedAt: 32}}}, false},
		{"registry error", stampSource{err: errors.New("boom")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.IsVersionCurrent(ctx, tt.src); got != tt.want {
				t.Errorf("IsVersionCurrent = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestListCache_SaveIsAsync(t *testing.T) {
	store := cache.NewMemoryStore()
	c := cache.NewListCache(store)
	c.Save(sampleEntries, "v1")
	c.Wait()
	if got := c.Load(); !reflect.DeepEqual(got, sampleEntries) {
		t.Errorf("Load after Save+Wait = %v", got)
	}
}

func TestListCache_SaveCopiesInput(t *testing.T) {
	c := cache.NewListCache(cache.NewMemoryStore())
	list := model.CloneEntries(sampleEntries)
	c.Save(list, "v")
	list[0].PackageID = "mutated"
	c.Wait()
	if got := c.Load(); got[0].PackageID != "com.a" {
		t.Errorf("Save must snapshot its input, got %q", got[0].PackageID)
	}
}

func TestListCache_LastSaveWins(t *testing.T) {
	c := cache.NewListCache(cache.NewMemoryStore())
	for i := 0; i < 20; i++ {
		c.Save(sampleEntries[:1+i%3], strconv.Itoa(i))
	}
	c.Wait()
	if v, _ := c.Version(); v != "19" {
		t.Errorf("Version = %q, want 19", v)
	}
}

func TestListCache_Clear(t *testing.T) {
	store := cache.NewMemoryStore()
	c := cache.NewListCache(store)
	if err := c.SaveSync(sampleEntries, "v"); err != nil {
		t.Fatal(err)
	}
	c.SetMemory(sampleEntries)
	c.Clear()

	if c.IsValid() {
		t.Error("cleared cache should be invalid")
	}
	if len(c.Load()) != 0 {
		t.Error("cleared cache should load empty")
	}
	if _, ok := c.Memory(); ok {
		t.Error("Clear should drop the in-memory list")
	}
	if keys := store.Keys(); len(keys) != 0 {
		t.Errorf("store still has %v", keys)
	}
}

func TestListCache_Invalidate(t *testing.T) {
	c := cache.NewListCache(cache.NewMemoryStore())
	if err := c.SaveSync(sampleEntries, "v"); err != nil {
		t.Fatal(err)
	}
	c.Invalidate()
	if c.IsValid() {
		t.Error("Invalidate should make the snapshot invalid")
	}
	if len(c.Load()) != len(sampleEntries) {
		t.Error("Invalidate should keep the snapshot readable")
	}
}

func TestListCache_MemoryTTL(t *testing.T) {
	clock := newFakeClock()
	c := cache.NewListCache(cache.NewMemoryStore(),
		cache.WithListClock(clock.Now),
		cache.WithMemoryTTL(10*time.Second))

	c.SetMemory(sampleEntries)
	got, ok := c.Memory()
	if !ok || !reflect.DeepEqual(got, sampleEntries) {
		t.Fatalf("Memory = %v, %v", got, ok)
	}
	got[0].PackageID = "mutated"
	again, _ := c.Memory()
	if again[0].PackageID != "com.a" {
		t.Error("Memory must return a copy")
	}

	clock.Advance(10 * time.Second)
	if _, ok := c.Memory(); ok {
		t.Error("Memory should expire after the TTL")
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	store, err := cache.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.Read(cache.KeyList); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("Read missing = %v, want ErrNotFound", err)
	}
	if err := store.Write(cache.KeyList, []byte("com.a|Main\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := store.Read(cache.KeyList)
	if err != nil || string(data) != "com.a|Main\n" {
		t.Errorf("Read = %q, %v", data, err)
	}
	if err := store.Delete(cache.KeyList); err != nil {
		t.Errorf("Delete: %v", err)
	}
	if err := store.Delete(cache.KeyList); err != nil {
		t.Errorf("Delete of missing key should succeed, got %v", err)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestFileStore_RejectsBadKeys(t *testing.T) {
	store, err := cache.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"", "..", "a/b", `a\b`, ".lock"} {
		if err := store.Write(key, []byte("x")); err == nil {
			t.Errorf("Write(%q) should fail", key)
		}
	}
}

func TestFileStore_ConcurrentWriters(t *testing.T) {
	store, err := cache.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	c := cache.NewListCache(store)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = c.SaveSync(sampleEntries[:1+i%3], "v"+strconv.Itoa(i))
		}(i)
	}
	wg.Wait()

	got := c.Load()
	if len(got) == 0 || len(got) > len(sampleEntries) {
		t.Errorf("Load after concurrent writes = %v", got)
	}
}

func TestDecodeList(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []model.AppEntry
		wantErr bool
	}{
		{"empty", "", []model.AppEntry{}, false},
		{"blank lines", "\n\n  \n", []model.AppEntry{}, false},
		{"one", "com.a|Main", []model.AppEntry{{PackageID: "com.a", ActivityName: "Main"}}, false},
		{"crlf", "com.a|Main\r\ncom.b|B\r\n", []model.AppEntry{{PackageID: "com.a", ActivityName: "Main"}, {PackageID: "com.b", ActivityName: "B"}}, false},
		{"missing separator", "com.a", nil, true},
		{"empty package", "|Main", nil, true},
		{"extra separator", "com.a|Main|x", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cache.DecodeList([]byte(tt.in))
			if tt.wantErr {
				if !errors.Is(err, cache.ErrCorrupt) {
					t.Errorf("err = %v, want ErrCorrupt", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncodeList_SkipsUnrepresentable(t *testing.T) {
	data := cache.EncodeList([]model.AppEntry{
		{PackageID: "com.a", ActivityName: "Main"},
		{PackageID: "", ActivityName: "Orphan"},
		{PackageID: "com.b", ActivityName: "Bad|Name"},
		{PackageID: "com.c\n", ActivityName: "Main"},
	})
	if string(data) != "com.a|Main\n" {
		t.Errorf("EncodeList = %q", data)
	}
}

// FuzzDecodeList checks the snapshot decoder never panics and that anything
// it accepts survives a re-encode.
func FuzzDecodeList(f *testing.F) {
	seeds := []string{
		"",
		"com.a|Main\n",
		"com.a|Main\ncom.b|B\n",
		"|",
		"a||b",
		"  com.a  |  Main  ",
		"\r\n\r\n",
		"com.a|Main\x00",
	}
	for _, s := range seeds {
		f.Add([]byte(s))
	}
	f.Fuzz(func(t *testing.T, data []byte) {
		entries, err := cache.DecodeList(data)
		if err != nil {
			if len(entries) != 0 {
				t.Fatalf("error with %d entries", len(entries))
			}
			return
		}
		again, err := cache.DecodeList(cache.EncodeList(entries))
		if err != nil {
			t.Fatalf("re-decode failed: %v", err)
		}
		if len(again) > len(entries) {
			t.Fatalf("re-decode grew: %d > %d", len(again), len(entries))
		}
	})
}
