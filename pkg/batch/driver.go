package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/tstromberg/tagsync/pkg/recon"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// LockName is the run lock file created in the root directory.
const LockName = ".tagsync.lock"

// ErrLocked is returned when another run holds the root's lock.
var ErrLocked = errors.New("another run is using this directory")

// Processor reconciles a single image.
type Processor interface {
	Process(ctx context.Context, path string) (*recon.Report, error)
}

// Progress is a snapshot of the run counters.
type Progress struct {
	Total     int
	Completed int
	Running   int
	Failed    int
}

// Outstanding is the number of images not yet finished.
func (p Progress) Outstanding() int {
	return p.Total - p.Completed
}

// Failure records why one image failed.
type Failure struct {
	Path  string
	Stage recon.Stage
	Err   error
}

// Summary is the outcome of a run.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Canceled  int
	FastPath  int
	Failures  []Failure
	Elapsed   time.Duration
}

// Driver dispatches images to a Processor with bounded concurrency.
type Driver struct {
	Engine Processor

	// Workers bounds concurrent images; zero uses runtime.NumCPU.
	Workers int

	// ReportEvery is the progress logging interval; zero disables it.
	ReportEvery time.Duration

	// OnProgress, if set, is called after every finished image.
	OnProgress func(Progress)

	total     int
	running   atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	fast      atomic.Int64
	canceled  atomic.Int64

	mu       sync.Mutex
	failures []Failure
}

func (d *Driver) workers() int {
	if d.Workers > 0 {
		return d.Workers
	}
	return runtime.NumCPU()
}

// Progress returns the current counters.
func (d *Driver) Progress() Progress {
	return Progress{
		Total:     d.total,
		Completed: int(d.completed.Load()),
		Running:   int(d.running.Load()),
		Failed:    int(d.failed.Load()),
	}
}

// Lock takes the run lock for root. The caller must call the returned unlock.
func Lock(root string) (func(), error) {
	l := flock.New(filepath.Join(root, LockName))
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", root, ErrLocked)
	}
	return func() {
		if err := l.Unlock(); err != nil {
			klog.Warningf("release lock: %v", err)
		}
	}, nil
}

func checkRoot(root string) error {
	st, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("root: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("root %s is not a directory", root)
	}
	return nil
}

// Run reconciles every image under root. The returned error is reserved for
// setup failures; per-image failures are recorded in the Summary.
func (d *Driver) Run(ctx context.Context, root string) (*Summary, error) {
	start := time.Now()
	if err := checkRoot(root); err != nil {
		return nil, err
	}
	unlock, err := Lock(root)
	if err != nil {
		return nil, err
	}
	defer unlock()

	paths, err := Find(root)
	if err != nil {
		return nil, err
	}
	d.reset(len(paths))
	klog.Infof("found %d images under %s, running %d at a time", len(paths), root, d.workers())

	stop := d.report()
	defer stop()

	// In-flight images finish even after cancellation so no write is abandoned midway.
	work := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(d.workers())
	for i, p := range paths {
		if ctx.Err() != nil {
			d.canceled.Add(int64(len(paths) - i))
			klog.Warningf("canceled: %d images not started", len(paths)-i)
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				d.canceled.Add(1)
				return nil
			}
			d.one(work, p)
			return nil
		})
	}
	g.Wait()

	s := d.summary()
	s.Elapsed = time.Since(start)
	return s, nil
}

func (d *Driver) reset(total int) {
	d.total = total
	d.running.Store(0)
	d.completed.Store(0)
	d.failed.Store(0)
	d.fast.Store(0)
	d.canceled.Store(0)
	d.mu.Lock()
	d.failures = nil
	d.mu.Unlock()
}

// one processes a single image and records the outcome.
func (d *Driver) one(ctx context.Context, path string) {
	d.running.Add(1)
	r, err := d.Engine.Process(ctx, path)
	d.running.Add(-1)

	if err != nil {
		klog.Errorf("%s failed: %v", path, err)
		d.failed.Add(1)
		d.mu.Lock()
		d.failures = append(d.failures, Failure{Path: path, Stage: recon.StageOf(err), Err: err})
		d.mu.Unlock()
	} else if r != nil && r.FastPath {
		d.fast.Add(1)
	}
	d.completed.Add(1)

	if d.OnProgress != nil {
		d.OnProgress(d.Progress())
	}
}

// report logs progress every ReportEvery until the returned func is called.
func (d *Driver) report() func() {
	if d.ReportEvery <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(d.ReportEvery)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				p := d.Progress()
				klog.Infof("progress: %d/%d done, %d running, %d outstanding, %d failed",
					p.Completed, p.Total, p.Running, p.Outstanding(), p.Failed)
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

func (d *Driver) summary() *Summary {
	d.mu.Lock()
	defer d.mu.Unlock()
	sort.Slice(d.failures, func(i, j int) bool { return d.failures[i].Path < d.failures[j].Path })
	failed := int(d.failed.Load())
	completed := int(d.completed.Load())
	return &Summary{
		Total:     d.total,
		Succeeded: completed - failed,
		Failed:    failed,
		Canceled:  int(d.canceled.Load()),
		FastPath:  int(d.fast.Load()),
		Failures:  append([]Failure{}, d.failures...),
	}
}
