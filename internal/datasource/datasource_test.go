package datasource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/vanderheijden86/appdrawer/pkg/cache"
	"github.com/vanderheijden86/appdrawer/pkg/model"
)

var testPackages = []Package{
	{PackageID: "org.mozilla.firefox", Label: "Firefox", Activities: []string{"org.mozilla.firefox.App"}, UpdatedAt: 100},
	{PackageID: "com.android.camera", Label: "Camera", Activities: []string{"Main", "Video"}, UpdatedAt: 200},
	{PackageID: "com.example.nolabel", Activities: []string{"Main"}, UpdatedAt: 300},
	{PackageID: "com.example.disabled", Label: "Off", Activities: []string{"Main"}, UpdatedAt: 400, Disabled: true},
}

func writeJSONL(t *testing.T, path string, pkgs []Package) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := WritePackages(f, pkgs); err != nil {
		t.Fatal(err)
	}
}

func createSQLite(t *testing.T, path string, pkgs []Package) *SQLiteRegistry {
	t.Helper()
	ctx := context.Background()
	reg, err := CreateSQLiteRegistry(ctx, path)
	if err != nil {
		t.Fatalf("CreateSQLiteRegistry: %v", err)
	}
	for _, p := range pkgs {
		if err := reg.Install(ctx, p); err != nil {
			t.Fatalf("Install(%s): %v", p.PackageID, err)
		}
	}
	return reg
}

var wantLaunchable = []model.AppEntry{
	{PackageID: "com.android.camera", ActivityName: "Main"},
	{PackageID: "com.android.camera", ActivityName: "Video"},
	{PackageID: "com.example.nolabel", ActivityName: "Main"},
	{PackageID: "org.mozilla.firefox", ActivityName: "org.mozilla.firefox.App"},
}

func checkRegistry(t *testing.T, reg Registry) {
	t.Helper()
	ctx := context.Background()

	got, err := reg.Launchable(ctx)
	if err != nil {
		t.Fatalf("Launchable: %v", err)
	}
	if !reflect.DeepEqual(got, wantLaunchable) {
		t.Errorf("Launchable = %v, want %v", got, wantLaunchable)
	}

	label, err := reg.ResolveLabel(ctx, model.AppEntry{PackageID: "org.mozilla.firefox"})
	if err != nil || label != "Firefox" {
		t.Errorf("ResolveLabel(firefox) = %q, %v", label, err)
	}
	if _, err := reg.ResolveLabel(ctx, model.AppEntry{PackageID: "com.example.nolabel"}); !errors.Is(err, ErrNoLabel) {
		t.Errorf("ResolveLabel(nolabel) err = %v, want ErrNoLabel", err)
	}
	if _, err := reg.ResolveLabel(ctx, model.AppEntry{PackageID: "missing"}); !errors.Is(err, ErrNoLabel) {
		t.Errorf("ResolveLabel(missing) err = %v, want ErrNoLabel", err)
	}

	stamps, err := reg.PackageStamps(ctx)
	if err != nil {
		t.Fatalf("PackageStamps: %v", err)
	}
	if len(stamps) != 4 {
		t.Errorf("PackageStamps returned %d, want 4 (disabled packages included)", len(stamps))
	}
	if v := model.ListVersion(stamps); v != "4_1000" {
		t.Errorf("version = %q, want 4_1000", v)
	}
}

func TestJSONLRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), JSONLFileName)
	writeJSONL(t, path, testPackages)
	checkRegistry(t, NewJSONLRegistry(path))
}

func TestSQLiteRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), SQLiteFileName)
	w := createSQLite(t, path, testPackages)
	defer w.Close()

	r, err := OpenSQLiteRegistry(path)
	if err != nil {
		t.Fatalf("OpenSQLiteRegistry: %v", err)
	}
	defer r.Close()
	checkRegistry(t, r)
}

func TestSQLiteRegistry_InstallReplacesAndUninstall(t *testing.T) {
	ctx := context.Background()
	reg := createSQLite(t, filepath.Join(t.TempDir(), SQLiteFileName), testPackages)
	defer reg.Close()

	if err := reg.Install(ctx, Package{PackageID: "com.android.camera", Label: "Cam", Activities: []string{"Main"}, UpdatedAt: 201}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Uninstall(ctx, "org.mozilla.firefox"); err != nil {
		t.Fatal(err)
	}
	got, err := reg.Launchable(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []model.AppEntry{
		{PackageID: "com.android.camera", ActivityName: "Main"},
		{PackageID: "com.example.nolabel", ActivityName: "Main"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Launchable = %v, want %v", got, want)
	}
	if err := reg.Install(ctx, Package{}); err == nil {
		t.Error("Install with empty id should fail")
	}
}

func TestParsePackages(t *testing.T) {
	in := strings.Join([]string{
		`{"package_id":"a","activities":["Main"],"updated_at":1}`,
		``,
		`{"package_id":"b","label":"B","activities":[],"updated_at":2}`,
		`{"package_id":"a","label":"A2","activities":["Main"],"updated_at":3}`,
	}, "\n")
	pkgs, err := ParsePackages(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(pkgs) != 2 || pkgs[0].Label != "A2" || pkgs[0].UpdatedAt != 3 {
		t.Errorf("pkgs = %+v", pkgs)
	}

	for _, bad := range []string{`{"package_id":""}`, `{not json}`, `{"label":"x"}`} {
		if _, err := ParsePackages(strings.NewReader(bad)); err == nil {
			t.Errorf("ParsePackages(%q) should fail", bad)
		}
	}
}

func TestDiffStamps(t *testing.T) {
	old := []model.PackageStamp{{PackageID: "a", UpdatedAt: 1}, {PackageID: "b", UpdatedAt: 2}, {PackageID: "c", UpdatedAt: 3}}
	cur := []model.PackageStamp{{PackageID: "c", UpdatedAt: 4}, {PackageID: "a", UpdatedAt: 1}, {PackageID: "d", UpdatedAt: 5}}
	d := DiffStamps(old, cur)
	want := StampDiff{Added: []string{"d"}, Removed: []string{"b"}, Changed: []string{"c"}}
	if !reflect.DeepEqual(d, want) {
		t.Errorf("DiffStamps = %+v, want %+v", d, want)
	}
	if !d.HasChanges() {
		t.Error("HasChanges should be true")
	}
	if s := d.Summary(); !strings.Contains(s, "1 added (d)") || !strings.Contains(s, "1 removed (b)") {
		t.Errorf("Summary = %q", s)
	}

	same := DiffStamps(old, old)
	if same.HasChanges() || same.Summary() != "no package changes" {
		t.Errorf("identical sets should not differ: %+v", same)
	}
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := store.Read(cache.KeyList); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("Read missing = %v, want ErrNotFound", err)
	}

	// Exercise the store through the list cache.
	lists := cache.NewListCache(store)
	entries := []model.AppEntry{{PackageID: "a", ActivityName: "Main"}}
	if err := lists.SaveSync(entries, "1_1"); err != nil {
		t.Fatalf("SaveSync: %v", err)
	}
	if !lists.IsValid() {
		t.Error("snapshot should be valid")
	}
	if got := lists.Load(); !reflect.DeepEqual(got, entries) {
		t.Errorf("Load = %v", got)
	}
	if err := store.Write(cache.KeyVersion, nil); err != nil {
		t.Errorf("Write(nil): %v", err)
	}
	lists.Clear()
	if _, err := store.Read(cache.KeyList); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("Read after Clear = %v", err)
	}
}

func TestSQLiteFileIndex(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	files := []string{
		"Report.pdf",
		"notes.txt",
		filepath.Join("docs", "report-2024.md"),
		filepath.Join("docs", "deep", "too-deep-report.txt"),
	}
	for _, f := range files {
		p := filepath.Join(root, f)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	idx, err := OpenSQLiteFileIndex(filepath.Join(t.TempDir(), "files.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	n, err := idx.Rebuild(ctx, []string{root}, 2)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if n != 3 {
		t.Errorf("indexed %d files, want 3 (depth bounded)", n)
	}

	hits, err := idx.SearchFiles(ctx, "REPORT", 10)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, h := range hits {
		names = append(names, h.Name)
	}
	if want := []string{"report-2024.md", "Report.pdf"}; !reflect.DeepEqual(names, want) {
		t.Errorf("SearchFiles = %v, want %v", names, want)
	}

	if hits, _ := idx.SearchFiles(ctx, "report", 1); len(hits) != 1 {
		t.Errorf("limit not applied: %d hits", len(hits))
	}
	if hits, _ := idx.SearchFiles(ctx, "  ", 10); len(hits) != 0 {
		t.Error("blank query should return nothing")
	}
}

func TestDiscoverAndSelectBest(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	jsonlPath := filepath.Join(dir, JSONLFileName)
	writeJSONL(t, jsonlPath, testPackages)
	reg := createSQLite(t, filepath.Join(dir, SQLiteFileName), testPackages[:1])
	reg.Close()
	if err := os.WriteFile(filepath.Join(dir, "broken.jsonl"), []byte("{oops"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Same mod time: priority decides.
	now := time.Now()
	for _, name := range []string{JSONLFileName, SQLiteFileName, "broken.jsonl"} {
		if err := os.Chtimes(filepath.Join(dir, name), now, now); err != nil {
			t.Fatal(err)
		}
	}

	sources, err := Discover(ctx, dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 2 {
		t.Fatalf("Discover found %d valid sources, want 2: %v", len(sources), sources)
	}
	best, err := SelectBest(sources)
	if err != nil {
		t.Fatal(err)
	}
	if best.Kind != KindSQLite || best.PackageCount != 1 {
		t.Errorf("best = %v", best)
	}

	all, _ := Discover(ctx, dir, true)
	if len(all) != 3 {
		t.Errorf("Discover(includeInvalid) = %d sources, want 3", len(all))
	}

	// A fresher JSONL wins over SQLite.
	later := now.Add(time.Minute)
	if err := os.Chtimes(jsonlPath, later, later); err != nil {
		t.Fatal(err)
	}
	sources, _ = Discover(ctx, dir, false)
	if best, _ := SelectBest(sources); best.Kind != KindJSONL {
		t.Errorf("fresher JSONL should win, got %v", best)
	}

	if _, err := SelectBest(nil); !errors.Is(err, ErrNoSource) {
		t.Errorf("SelectBest(nil) = %v", err)
	}
}

func TestOpenPath(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, JSONLFileName)
	writeJSONL(t, path, testPackages)

	reg, src, err := OpenPath(ctx, "", path)
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()
	if src.Kind != KindJSONL {
		t.Errorf("kind = %s", src.Kind)
	}

	reg2, src2, err := OpenPath(ctx, "", dir)
	if err != nil {
		t.Fatal(err)
	}
	defer reg2.Close()
	if src2.Path != path {
		t.Errorf("directory lookup picked %s", src2.Path)
	}

	if _, err := DetectKind("registry.csv"); err == nil {
		t.Error("unknown extension should fail")
	}
}
