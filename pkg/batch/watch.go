package batch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"
)

// DefaultSettle is how long an image must be quiet before it is reconciled.
const DefaultSettle = 2 * time.Second

// Watch reconciles images under root as they are created or modified, until ctx
// is done. Images are processed once no event has touched them for settle.
func (d *Driver) Watch(ctx context.Context, root string, settle time.Duration) error {
	if err := checkRoot(root); err != nil {
		return err
	}
	if settle <= 0 {
		settle = DefaultSettle
	}

	unlock, err := Lock(root)
	if err != nil {
		return err
	}
	defer unlock()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new watcher: %w", err)
	}
	defer w.Close()

	ds, err := dirs(root)
	if err != nil {
		return fmt.Errorf("list dirs: %w", err)
	}
	for _, dir := range ds {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	klog.Infof("watching %d dirs under %s ...", len(ds), root)

	work := context.WithoutCancel(ctx)
	pending := map[string]time.Time{}
	tick := time.NewTicker(settle / 2)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			klog.Infof("watch stopped: %d pending images dropped", len(pending))
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			klog.V(2).Infof("event: %s", event)
			if hidden(root, event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if st, err := os.Stat(event.Name); err == nil && st.IsDir() {
					for _, p := range d.addTree(w, root, event.Name) {
						pending[p] = time.Now()
					}
					continue
				}
			}
			if (event.Has(fsnotify.Create) || event.Has(fsnotify.Write)) && IsImage(event.Name) {
				pending[event.Name] = time.Now()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			klog.Warningf("watch error: %v", err)

		case now := <-tick.C:
			for p, last := range pending {
				if now.Sub(last) < settle {
					continue
				}
				delete(pending, p)
				if _, err := os.Stat(p); err != nil {
					continue
				}
				d.total++
				d.one(work, p)
			}
		}
	}
}

// addTree watches a new directory tree and returns the images already inside
// it, which were written before the watch could see them.
func (d *Driver) addTree(w *fsnotify.Watcher, root, dir string) []string {
	ds, err := dirs(dir)
	if err != nil {
		klog.Warningf("list %s: %v", dir, err)
		return nil
	}
	for _, sub := range ds {
		if hidden(root, sub) {
			continue
		}
		if err := w.Add(sub); err != nil {
			klog.Warningf("watch %s: %v", sub, err)
			continue
		}
		klog.V(1).Infof("watching new dir %s", sub)
	}

	imgs, err := Find(dir)
	if err != nil {
		klog.Warningf("find in %s: %v", dir, err)
		return nil
	}
	return imgs
}
