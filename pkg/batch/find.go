// Package batch runs the reconciliation engine over a directory tree.
package batch

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"k8s.io/klog/v2"
)

// Extensions is the image allow-list, matched case-insensitively.
var Extensions = []string{".jpg", ".jpeg", ".png", ".gif", ".tif", ".tiff", ".bmp"}

// IsImage reports whether path has an allowed image extension.
func IsImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func hidden(root, path string) bool {
	return path != root && strings.HasPrefix(filepath.Base(path), ".")
}

// Find returns every image under root, ordered by directory and then by name.
// Hidden files and directories are skipped.
func Find(root string) ([]string, error) {
	var found []string
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if hidden(root, path) {
				if de.IsDir() {
					return godirwalk.SkipThis
				}
				return nil
			}
			if de.IsDir() || !IsImage(path) {
				return nil
			}
			klog.V(2).Infof("found %s", path)
			found = append(found, path)
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			klog.Warningf("skipping %s: %v", path, err)
			return godirwalk.SkipNode
		},
		FollowSymbolicLinks: false,
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.SliceStable(found, func(i, j int) bool {
		di, dj := dirKey(found[i]), dirKey(found[j])
		if di != dj {
			return di < dj
		}
		return filepath.Base(found[i]) < filepath.Base(found[j])
	})
	return found, nil
}

// dirKey orders directories component by component, so a/b sorts before a-c
// as it would in a depth-first walk.
func dirKey(path string) string {
	return strings.ReplaceAll(filepath.Dir(path), string(filepath.Separator), "\x00")
}

// dirs returns root and every non-hidden directory below it.
func dirs(root string) ([]string, error) {
	var ds []string
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if !de.IsDir() {
				return nil
			}
			if hidden(root, path) {
				return godirwalk.SkipThis
			}
			ds = append(ds, path)
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			klog.Warningf("skipping %s: %v", path, err)
			return godirwalk.SkipNode
		},
	})
	return ds, err
}
