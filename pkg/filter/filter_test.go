package filter_test

import (
	"reflect"
	"strings"
	"testing"

	"golang.org/x/text/language"
	"pgregory.net/rapid"

	"github.com/vanderheijden86/appdrawer/pkg/filter"
	"github.com/vanderheijden86/appdrawer/pkg/model"
)

func entry(pkg string) model.AppEntry {
	return model.AppEntry{PackageID: pkg, ActivityName: pkg + ".Main"}
}

func packages(entries []model.AppEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.PackageID
	}
	return out
}

func TestSortScenario_DigitsAndHashAfterLetters(t *testing.T) {
	raw := []model.AppEntry{entry("A"), entry("B"), entry("C"), entry("D")}
	labels := filter.MapLabels(map[string]string{
		"A": "Zebra",
		"B": "apple",
		"C": "#1 Tool",
		"D": "7-Zip",
	})
	sorted, filtered := filter.NewPipeline(language.Und).Run(raw, filter.Options{ShowAll: true}, labels)
	if got, want := packages(sorted), []string{"B", "A", "D", "C"}; !reflect.DeepEqual(got, want) {
		t.Errorf("sorted = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(filtered, raw) {
		t.Errorf("filtered should keep raw order, got %v", packages(filtered))
	}
}

func TestApplyScenario_FocusAllowList(t *testing.T) {
	raw := []model.AppEntry{entry("A"), entry("B"), entry("C")}
	got := filter.Apply(raw, filter.Options{ShowAll: true, FocusActive: true, FocusAllow: filter.Set("B")})
	if want := []string{"B"}; !reflect.DeepEqual(packages(got), want) {
		t.Errorf("Apply = %v, want %v", packages(got), want)
	}
}

func TestApplyScenario_WorkspaceOverridesFavorites(t *testing.T) {
	raw := []model.AppEntry{entry("A"), entry("B"), entry("C")}
	opts := filter.Options{
		WorkspaceActive: true,
		WorkspaceApps:   filter.Set("A", "C"),
		Favorites:       filter.Set("B"),
		ShowAll:         false,
	}
	got := filter.Apply(raw, opts)
	if want := []string{"A", "C"}; !reflect.DeepEqual(packages(got), want) {
		t.Errorf("Apply = %v, want %v", packages(got), want)
	}
}

func TestOptionsCheck_Precedence(t *testing.T) {
	self := model.AppEntry{PackageID: "launcher", ActivityName: "launcher.Home"}
	selfSettings := model.AppEntry{PackageID: "launcher", ActivityName: "launcher.Settings"}
	opts := filter.Options{
		SelfPackage:          "launcher",
		SelfSettingsActivity: "launcher.Settings",
		Hidden:               filter.Set("hidden", "launcher"),
		FocusActive:          true,
		FocusAllow:           filter.Set("focus", "hidden", "fav", "launcher"),
		Favorites:            filter.Set("fav"),
	}

	tests := []struct {
		e    model.AppEntry
		want filter.Reason
	}{
		{self, filter.ExcludedSelf},
		// Self settings passes the self check and then hits hidden.
		{selfSettings, filter.ExcludedHidden},
		{entry("hidden"), filter.ExcludedHidden},
		{entry("other"), filter.ExcludedFocus},
		{entry("focus"), filter.ExcludedFavorites},
		{entry("fav"), filter.Keep},
	}
	for _, tt := range tests {
		if got := opts.Check(tt.e); got != tt.want {
			t.Errorf("Check(%v) = %v, want %v", tt.e, got, tt.want)
		}
	}
}

func TestApply_AllFiltersDisabled(t *testing.T) {
	raw := []model.AppEntry{
		entry("a"),
		{PackageID: "launcher", ActivityName: "launcher.Home"},
		{PackageID: "launcher", ActivityName: "launcher.Settings"},
		entry("hidden"),
		entry("b"),
	}
	opts := filter.Options{
		SelfPackage:          "launcher",
		SelfSettingsActivity: "launcher.Settings",
		Hidden:               filter.Set("hidden"),
		ShowAll:              true,
	}
	got := filter.Apply(raw, opts)
	want := []model.AppEntry{raw[0], raw[2], raw[4]}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Apply = %v, want %v", got, want)
	}
}

func TestApply_Empty(t *testing.T) {
	got := filter.Apply(nil, filter.Options{})
	if got == nil || len(got) != 0 {
		t.Errorf("Apply(nil) = %#v, want empty slice", got)
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	raw := []model.AppEntry{entry("b"), entry("a")}
	before := model.CloneEntries(raw)
	_ = filter.Apply(raw, filter.Options{Favorites: filter.Set("a")})
	_ = filter.Sort(raw, nil)
	if !reflect.DeepEqual(raw, before) {
		t.Error("input slice was mutated")
	}
}

func TestExcluded_IgnoresFavoritesAndWorkspace(t *testing.T) {
	opts := filter.Options{
		Hidden:          filter.Set("h"),
		WorkspaceActive: true,
		WorkspaceApps:   filter.Set("w"),
		Favorites:       filter.Set("f"),
	}
	if opts.Excluded(entry("other")) {
		t.Error("search exclusion should not apply workspace or favorites")
	}
	if !opts.Excluded(entry("h")) {
		t.Error("hidden apps are always excluded")
	}
}

func TestOptionsClone(t *testing.T) {
	opts := filter.Options{Hidden: filter.Set("a")}
	c := opts.Clone()
	c.Hidden["b"] = struct{}{}
	if _, ok := opts.Hidden["b"]; ok {
		t.Error("Clone shares the hidden set")
	}
}

func TestSortKey(t *testing.T) {
	tests := []struct{ a, b string }{
		{"apple", "Zebra"},
		{"Zebra", "7-Zip"},
		{"7-Zip", "#1 Tool"},
		{"Éclair", "7up"},
		{"zzz", "0"},
	}
	for _, tt := range tests {
		if !(filter.SortKey(tt.a) < filter.SortKey(tt.b)) {
			t.Errorf("SortKey(%q) should sort before SortKey(%q)", tt.a, tt.b)
		}
	}
	if filter.SortKey("  Mail ") != "mail" {
		t.Errorf("SortKey should trim and lower-case, got %q", filter.SortKey("  Mail "))
	}
}

func TestSorter_Turkish(t *testing.T) {
	s := filter.NewSorter(language.Turkish)
	if got := s.Key("Istanbul"); !strings.HasPrefix(got, "ı") {
		t.Errorf("Turkish lower-casing of I should give dotless ı, got %q", got)
	}
}

func TestSort_FallsBackToPackageID(t *testing.T) {
	raw := []model.AppEntry{entry("com.Zed"), entry("com.alpha")}
	labels := filter.MapLabels(map[string]string{"com.Zed": "  "})
	got := filter.Sort(raw, labels)
	if want := []string{"com.alpha", "com.Zed"}; !reflect.DeepEqual(packages(got), want) {
		t.Errorf("Sort = %v, want %v", packages(got), want)
	}
}

func TestMetadataLabels(t *testing.T) {
	labels := filter.MetadataLabels(map[string]model.AppMetadata{
		"a": {Label: "Alpha"},
		"b": {},
	})
	if l, ok := labels(entry("a")); !ok || l != "Alpha" {
		t.Errorf("labels(a) = %q, %v", l, ok)
	}
	if _, ok := labels(entry("b")); ok {
		t.Error("empty label should report missing")
	}
}

func genOptions(t *rapid.T, pkgs []string) filter.Options {
	subset := func(label string) map[string]struct{} {
		set := map[string]struct{}{}
		for _, p := range pkgs {
			if rapid.Bool().Draw(t, label) {
				set[p] = struct{}{}
			}
		}
		return set
	}
	return filter.Options{
		Hidden:          subset("hidden"),
		FocusActive:     rapid.Bool().Draw(t, "focusActive"),
		FocusAllow:      subset("focus"),
		WorkspaceActive: rapid.Bool().Draw(t, "workspaceActive"),
		WorkspaceApps:   subset("workspace"),
		ShowAll:         rapid.Bool().Draw(t, "showAll"),
		Favorites:       subset("favorites"),
	}
}

func genRaw(t *rapid.T) ([]model.AppEntry, []string) {
	n := rapid.IntRange(0, 25).Draw(t, "n")
	raw := make([]model.AppEntry, n)
	pkgs := make([]string, n)
	for i := range raw {
		pkgs[i] = rapid.StringMatching(`[a-e]{1,2}`).Draw(t, "pkg")
		raw[i] = entry(pkgs[i])
	}
	return raw, pkgs
}

func TestApply_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw, pkgs := genRaw(t)
		opts := genOptions(t, pkgs)
		p := filter.NewPipeline(language.Und)
		s1, f1 := p.Run(raw, opts, nil)
		s2, f2 := p.Run(raw, opts, nil)
		if !reflect.DeepEqual(s1, s2) || !reflect.DeepEqual(f1, f2) {
			t.Fatalf("pipeline not idempotent")
		}
		// Filtering the filtered list changes nothing.
		if again := filter.Apply(f1, opts); !reflect.DeepEqual(again, f1) {
			t.Fatalf("Apply(Apply(x)) != Apply(x)")
		}
	})
}

func TestApply_Monotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw, pkgs := genRaw(t)
		opts := genOptions(t, pkgs)

		// Turning each exclusion on never grows the result.
		type toggle struct {
			name string
			on   func(filter.Options) filter.Options
			off  func(filter.Options) filter.Options
		}
		toggles := []toggle{
			{"hidden",
				func(o filter.Options) filter.Options { return o },
				func(o filter.Options) filter.Options { o.Hidden = nil; return o }},
			{"focus",
				func(o filter.Options) filter.Options { o.FocusActive = true; return o },
				func(o filter.Options) filter.Options { o.FocusActive = false; return o }},
			{"workspace",
				func(o filter.Options) filter.Options { o.WorkspaceActive = true; o.ShowAll = true; return o },
				func(o filter.Options) filter.Options { o.WorkspaceActive = false; o.ShowAll = true; return o }},
			{"favorites",
				func(o filter.Options) filter.Options { o.ShowAll = false; return o },
				func(o filter.Options) filter.Options { o.ShowAll = true; return o }},
		}
		for _, tg := range toggles {
			on := filter.Apply(raw, tg.on(opts))
			off := filter.Apply(raw, tg.off(opts))
			if len(on) > len(off) {
				t.Fatalf("%s: enabling grew result %d > %d", tg.name, len(on), len(off))
			}
		}
	})
}

func TestSort_TotalOrderAndStability(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(t, "n")
		raw := make([]model.AppEntry, n)
		labelMap := map[string]string{}
		for i := range raw {
			pkg := "p" + string(rune('a'+i))
			raw[i] = entry(pkg)
			labelMap[pkg] = rapid.OneOf(
				rapid.StringMatching(`[A-Za-z][a-z]{0,3}`),
				rapid.StringMatching(`[0-9#][a-z0-9]{0,3}`),
			).Draw(t, "label")
		}
		sorted := filter.Sort(raw, filter.MapLabels(labelMap))
		if len(sorted) != len(raw) {
			t.Fatalf("length changed")
		}

		index := map[string]int{}
		for i, e := range raw {
			index[e.PackageID] = i
		}
		seenNonLetter := false
		for i, e := range sorted {
			first := labelMap[e.PackageID][0]
			isLetter := (first >= 'a' && first <= 'z') || (first >= 'A' && first <= 'Z')
			if isLetter && seenNonLetter {
				t.Fatalf("letter label %q after a digit or # label", labelMap[e.PackageID])
			}
			if !isLetter {
				seenNonLetter = true
			}
			if i == 0 {
				continue
			}
			prev := sorted[i-1]
			if strings.EqualFold(labelMap[prev.PackageID], labelMap[e.PackageID]) && index[prev.PackageID] > index[e.PackageID] {
				t.Fatalf("equal labels %q out of input order", labelMap[e.PackageID])
			}
		}
	})
}
