// Package sidecar manages the caption text file kept next to an image.
package sidecar

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tstromberg/tagsync/pkg/tagger"
	"k8s.io/klog/v2"
)

// Ext is the sidecar file extension.
const Ext = ".txt"

// ErrSidecar marks a filesystem failure while handling a sidecar.
var ErrSidecar = errors.New("sidecar failed")

// Outcome is what Reconcile did to the sidecar.
type Outcome int

const (
	Unchanged Outcome = iota
	Created
	Appended
	Deleted
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Appended:
		return "appended"
	case Deleted:
		return "deleted"
	default:
		return "unchanged"
	}
}

// PathFor returns the sidecar path for an image.
func PathFor(image string) string {
	return strings.TrimSuffix(image, filepath.Ext(image)) + Ext
}

// Exists reports whether a sidecar is present at path.
func Exists(path string) (bool, error) {
	st, err := os.Stat(path)
	if err == nil {
		return !st.IsDir(), nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("%w: stat %s: %w", ErrSidecar, path, err)
}

// Read returns the words of a sidecar and whether it looks like a tag list.
func Read(path string) ([]string, bool, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("%w: read %s: %w", ErrSidecar, path, err)
	}
	s := string(bs)
	if !strings.Contains(s, ",") {
		return nil, false, nil
	}
	return tagger.SplitCaption(s), true, nil
}

func subset(words []string, of []string) bool {
	set := map[string]bool{}
	for _, w := range of {
		set[strings.TrimSpace(w)] = true
	}
	for _, w := range words {
		if !set[w] {
			return false
		}
	}
	return true
}

func without(words []string, drop []string) []string {
	set := map[string]bool{}
	for _, w := range drop {
		set[w] = true
	}
	var out []string
	for _, w := range words {
		if w != "" && !set[w] {
			out = append(out, w)
		}
	}
	return out
}

func join(tags []string) string {
	escaped := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			escaped = append(escaped, tagger.Escape(t))
		}
	}
	return strings.Join(escaped, ",")
}

// Reconcile brings the sidecar at path in line with the canonical tags and the
// tags already recorded in the image metadata. A sidecar whose every word is
// recorded is redundant and deleted; otherwise canonical tags it lacks are appended.
func Reconcile(path string, canonical []string, recorded []string) (Outcome, error) {
	exists, err := Exists(path)
	if err != nil {
		return Unchanged, err
	}

	if !exists {
		missing := without(canonical, recorded)
		if len(missing) == 0 {
			return Unchanged, nil
		}
		klog.Infof("creating %s", path)
		if err := os.WriteFile(path, []byte(join(canonical)), 0o644); err != nil {
			return Unchanged, fmt.Errorf("%w: create %s: %w", ErrSidecar, path, err)
		}
		return Created, nil
	}

	words, isList, err := Read(path)
	if err != nil {
		return Unchanged, err
	}
	if !isList {
		klog.V(1).Infof("%s is not a tag list, leaving it alone", path)
		return Unchanged, nil
	}

	if subset(words, recorded) {
		if filepath.Ext(path) != Ext {
			return Unchanged, fmt.Errorf("%w: refusing to delete %s: not a %s file", ErrSidecar, path, Ext)
		}
		klog.Infof("all words in %s are recorded in metadata, deleting", path)
		if err := os.Remove(path); err != nil {
			return Unchanged, fmt.Errorf("%w: delete %s: %w", ErrSidecar, path, err)
		}
		return Deleted, nil
	}

	klog.Infof("%s has words missing from metadata: %v", path, without(words, recorded))
	add := without(canonical, words)
	if len(add) == 0 {
		return Unchanged, nil
	}

	klog.Infof("appending %v to %s", add, path)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return Unchanged, fmt.Errorf("%w: open %s: %w", ErrSidecar, path, err)
	}
	if _, err := f.WriteString("," + join(add)); err != nil {
		f.Close()
		return Unchanged, fmt.Errorf("%w: append %s: %w", ErrSidecar, path, err)
	}
	if err := f.Close(); err != nil {
		return Unchanged, fmt.Errorf("%w: close %s: %w", ErrSidecar, path, err)
	}
	return Appended, nil
}
