// Package metadata reads and writes the embedded tag fields of image files.
package metadata

import (
	"errors"
	"fmt"
	"strings"
)

// Field names a tag container embedded in an image.
type Field string

const (
	Subject     Field = "Subject"     // XMP-dc
	Keywords    Field = "Keywords"    // IPTC
	CatalogSets Field = "CatalogSets" // XMP-mediapro
	TagsList    Field = "TagsList"    // XMP-digiKam
)

// Fields lists every tag field, in the order they are reported.
var Fields = []Field{Subject, Keywords, CatalogSets, TagsList}

// ProcessedTag holds the processed marker; ProcessedValue is the marker itself.
var (
	ProcessedTag   = "XMP-photoshop:Instructions"
	ProcessedValue = "tagsync:processed"
)

var (
	ErrRead  = errors.New("metadata read failed")
	ErrWrite = errors.New("metadata write failed")
)

// Error describes a failed store operation on a single file.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap exposes both the kind (ErrRead or ErrWrite) and the cause.
func (e *Error) Unwrap() []error {
	kind := ErrWrite
	if e.Op == "read" {
		kind = ErrRead
	}
	return []error{kind, e.Err}
}

func readErr(path string, err error) error {
	return &Error{Op: "read", Path: path, Err: err}
}

func writeErr(path string, err error) error {
	return &Error{Op: "write", Path: path, Err: err}
}

// Tags maps each field to its values.
type Tags map[Field][]string

// Store is the contract the reconciliation engine depends on.
type Store interface {
	ReadTags(path string) (Tags, error)
	WriteTags(path string, additions Tags) error
	Deduplicate(path string) error
	IsProcessed(path string) (bool, error)
	SetProcessed(path string, processed bool) error
}

// Contains reports whether tag is present in vs, comparing trimmed values.
func Contains(vs []string, tag string) bool {
	tag = strings.TrimSpace(tag)
	for _, v := range vs {
		if strings.TrimSpace(v) == tag {
			return true
		}
	}
	return false
}

// Merge returns existing followed by every addition not yet present.
// Empty additions are dropped. It reports whether anything was appended.
func Merge(existing []string, additions []string) ([]string, bool) {
	out := append([]string{}, existing...)
	changed := false
	for _, a := range additions {
		a = strings.TrimSpace(a)
		if a == "" || Contains(out, a) {
			continue
		}
		out = append(out, a)
		changed = true
	}
	return out, changed
}

// Unique drops repeated and empty values, keeping the first occurrence.
// It reports whether anything was dropped.
func Unique(vs []string) ([]string, bool) {
	seen := map[string]bool{}
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		t := strings.TrimSpace(v)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, len(out) != len(vs)
}

// Duplicates returns, per field, the values that occur more than once.
func (t Tags) Duplicates() map[Field][]string {
	dups := map[Field][]string{}
	for _, f := range Fields {
		count := map[string]int{}
		for _, v := range t[f] {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			count[v]++
			if count[v] == 2 {
				dups[f] = append(dups[f], v)
			}
		}
	}
	return dups
}

// Union returns every distinct non-empty value across all fields.
func (t Tags) Union() []string {
	var all []string
	for _, f := range Fields {
		all = append(all, t[f]...)
	}
	u, _ := Unique(all)
	return u
}

// Missing returns, per field, the tags absent from that field.
// Fields with nothing missing are omitted.
func (t Tags) Missing(tags []string) Tags {
	missing := Tags{}
	for _, f := range Fields {
		for _, tag := range tags {
			tag = strings.TrimSpace(tag)
			if tag == "" || Contains(t[f], tag) || Contains(missing[f], tag) {
				continue
			}
			missing[f] = append(missing[f], tag)
		}
	}
	return missing
}

// Count returns the total number of values across all fields.
func (t Tags) Count() int {
	n := 0
	for _, vs := range t {
		n += len(vs)
	}
	return n
}
