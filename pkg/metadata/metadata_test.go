package metadata

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		add      []string
		want     []string
		changed  bool
	}{
		{"empty", nil, []string{"a", "b"}, []string{"a", "b"}, true},
		{"present", []string{"a", "b"}, []string{"b"}, []string{"a", "b"}, false},
		{"trimmed match", []string{" a "}, []string{"a"}, []string{" a "}, false},
		{"keeps existing duplicates", []string{"x", "x"}, []string{"y"}, []string{"x", "x", "y"}, true},
		{"drops empty", []string{"a"}, []string{"", "  "}, []string{"a"}, false},
		{"case sensitive", []string{"Cat"}, []string{"cat"}, []string{"Cat", "cat"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, changed := Merge(tc.existing, tc.add)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
			}
			if changed != tc.changed {
				t.Errorf("Merge() changed = %v, want %v", changed, tc.changed)
			}
		})
	}
}

func TestUnique(t *testing.T) {
	got, changed := Unique([]string{"x", "x", "y", "", "x"})
	if diff := cmp.Diff([]string{"x", "y"}, got); diff != "" {
		t.Errorf("Unique() mismatch (-want +got):\n%s", diff)
	}
	if !changed {
		t.Errorf("Unique() changed = false, want true")
	}

	if _, changed := Unique([]string{"a", "b"}); changed {
		t.Errorf("Unique() on clean input reported a change")
	}
}

func TestTagsHelpers(t *testing.T) {
	tags := Tags{
		Subject:     {"x", "x", "y"},
		Keywords:    {"y"},
		CatalogSets: {"z"},
	}

	if diff := cmp.Diff(map[Field][]string{Subject: {"x"}}, tags.Duplicates()); diff != "" {
		t.Errorf("Duplicates() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"x", "y", "z"}, tags.Union()); diff != "" {
		t.Errorf("Union() mismatch (-want +got):\n%s", diff)
	}

	want := Tags{
		Keywords:    {"x"},
		CatalogSets: {"x", "y"},
		TagsList:    {"x", "y"},
	}
	if diff := cmp.Diff(want, tags.Missing([]string{"x", "y", ""})); diff != "" {
		t.Errorf("Missing() mismatch (-want +got):\n%s", diff)
	}
	if got := tags.Count(); got != 5 {
		t.Errorf("Count() = %d, want 5", got)
	}
}

func TestMemoryStore(t *testing.T) {
	m := NewMemory()
	m.Set("a.jpg", Tags{Subject: {"x", "x", "y"}})

	if err := m.WriteTags("a.jpg", Tags{Subject: {"y", "z"}, Keywords: {"x"}}); err != nil {
		t.Fatalf("WriteTags: %v", err)
	}
	got, err := m.ReadTags("a.jpg")
	if err != nil {
		t.Fatalf("ReadTags: %v", err)
	}
	want := Tags{Subject: {"x", "x", "y", "z"}, Keywords: {"x"}, CatalogSets: nil, TagsList: nil}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("after write (-want +got):\n%s", diff)
	}

	if err := m.Deduplicate("a.jpg"); err != nil {
		t.Fatalf("Deduplicate: %v", err)
	}
	got, _ = m.ReadTags("a.jpg")
	if diff := cmp.Diff([]string{"x", "y", "z"}, got[Subject]); diff != "" {
		t.Errorf("after dedupe (-want +got):\n%s", diff)
	}

	if p, _ := m.IsProcessed("a.jpg"); p {
		t.Errorf("new file reported processed")
	}
	if err := m.SetProcessed("a.jpg", true); err != nil {
		t.Fatalf("SetProcessed: %v", err)
	}
	if p, _ := m.IsProcessed("a.jpg"); !p {
		t.Errorf("IsProcessed = false after SetProcessed(true)")
	}
	if got := m.Writes(); got != 3 {
		t.Errorf("Writes() = %d, want 3", got)
	}
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("boom")
	r := readErr("a.jpg", cause)
	if !errors.Is(r, ErrRead) || errors.Is(r, ErrWrite) || !errors.Is(r, cause) {
		t.Errorf("read error classification wrong: %v", r)
	}
	w := writeErr("a.jpg", cause)
	if !errors.Is(w, ErrWrite) || errors.Is(w, ErrRead) {
		t.Errorf("write error classification wrong: %v", w)
	}
}
