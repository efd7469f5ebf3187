package recon

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/otiai10/copy"
	"k8s.io/klog/v2"
)

// backupPath mirrors path under dir, relative to root when possible.
func backupPath(root, dir, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || root == "" || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	return filepath.Join(dir, rel)
}

// backup copies the original image before its first modification.
// An existing backup is the older, untouched copy and is kept.
func backup(root, dir, path string) error {
	dst := backupPath(root, dir, path)
	if _, err := os.Stat(dst); err == nil {
		klog.V(1).Infof("backup of %s already at %s", path, dst)
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat backup: %w", err)
	}

	klog.V(1).Infof("backing up %s -> %s", path, dst)
	if err := copy.Copy(path, dst, copy.Options{PreserveTimes: true, Sync: true}); err != nil {
		return fmt.Errorf("backup %s: %w", path, err)
	}
	return nil
}
