// Package recon reconciles inferred tags with the metadata embedded in an image.
package recon

import (
	"context"
	"fmt"
	"image"

	"github.com/tstromberg/tagsync/pkg/metadata"
	"github.com/tstromberg/tagsync/pkg/sidecar"
	"github.com/tstromberg/tagsync/pkg/tagger"
	"k8s.io/klog/v2"
)

// Engine runs the reconciliation state machine for one image at a time.
// It holds no per-image state and is safe for concurrent use.
type Engine struct {
	Store  metadata.Store
	Tagger tagger.Tagger

	// Load decodes an image; nil uses tagger.Load.
	Load func(path string) (image.Image, error)

	// Threshold is the minimum confidence; zero uses tagger.DefaultThreshold.
	Threshold float64

	// DryRun stops before the first write and only reports planned changes.
	DryRun bool

	// BackupDir, when set, receives a copy of each image before it is first
	// modified, at its path relative to Root.
	BackupDir string
	Root      string
}

// Report describes what happened to one image.
type Report struct {
	Path       string
	State      State
	FastPath   bool
	Tags       []string
	Caption    string
	Added      int
	Planned    metadata.Tags
	Deduped    bool
	Sidecar    sidecar.Outcome
	MarkedDone bool
}

func (r *Report) move(s State) {
	klog.V(2).Infof("%s: %s -> %s", r.Path, r.State, s)
	r.State = s
}

func (r *Report) fail(s Stage, err error) (*Report, error) {
	r.move(Failed)
	return r, fail(r.Path, s, err)
}

func (e *Engine) threshold() float64 {
	if e.Threshold == 0 {
		return tagger.DefaultThreshold
	}
	return e.Threshold
}

// Process reconciles the image at path. On failure the returned error is an
// *Error naming the stage, the report's State is Failed, and the processed
// flag is left untouched.
func (e *Engine) Process(ctx context.Context, path string) (*Report, error) {
	r := &Report{Path: path, State: Unvisited}

	processed, err := e.Store.IsProcessed(path)
	if err != nil {
		return r.fail(StageStoreRead, err)
	}
	current, err := e.Store.ReadTags(path)
	if err != nil {
		return r.fail(StageStoreRead, err)
	}
	sc := sidecar.PathFor(path)
	hasSidecar, err := sidecar.Exists(sc)
	if err != nil {
		return r.fail(StageSidecar, err)
	}

	dups := current.Duplicates()
	if processed && len(dups) == 0 && !hasSidecar {
		klog.V(1).Infof("%s already processed", path)
		r.FastPath = true
		r.move(Done)
		return r, nil
	}
	klog.V(1).Infof("%s needs inference (processed=%v duplicates=%d sidecar=%v)", path, processed, len(dups), hasSidecar)
	r.move(NeedsInference)

	caption, err := e.infer(ctx, path)
	if err != nil {
		r.move(Failed)
		return r, err
	}
	r.Tags = caption.Tags
	r.Caption = caption.Text
	klog.Infof("%s caption: %s", path, caption.Text)
	r.move(PendingWrite)

	missing := current.Missing(r.Tags)
	if e.DryRun {
		r.Planned = missing
		klog.Infof("%s dry run: would add %d entries: %v", path, missing.Count(), missing)
		return r, nil
	}

	if len(missing) > 0 {
		if e.BackupDir != "" {
			if err := backup(e.Root, e.BackupDir, path); err != nil {
				return r.fail(StageStoreWrite, err)
			}
		}
		klog.Infof("%s: adding %d entries", path, missing.Count())
		if err := e.Store.WriteTags(path, missing); err != nil {
			return r.fail(StageStoreWrite, err)
		}
		r.Added = missing.Count()
	}
	r.move(Verifying)

	after, err := e.verify(r)
	if err != nil {
		return r, err
	}

	if d := after.Duplicates(); len(d) > 0 {
		r.move(Deduplicating)
		klog.Infof("%s: removing duplicates %v", path, d)
		if e.BackupDir != "" && r.Added == 0 {
			if err := backup(e.Root, e.BackupDir, path); err != nil {
				return r.fail(StageStoreWrite, err)
			}
		}
		if err := e.Store.Deduplicate(path); err != nil {
			return r.fail(StageStoreWrite, err)
		}
		r.Deduped = true

		r.move(Verifying)
		after, err = e.verify(r)
		if err != nil {
			return r, err
		}
		if d := after.Duplicates(); len(d) > 0 {
			return r.fail(StageVerify, fmt.Errorf("duplicates remain after deduplication: %v", d))
		}
	}

	r.Sidecar, err = sidecar.Reconcile(sc, r.Tags, after.Union())
	if err != nil {
		return r.fail(StageSidecar, err)
	}

	if !processed {
		if err := e.Store.SetProcessed(path, true); err != nil {
			return r.fail(StageStoreWrite, err)
		}
		r.MarkedDone = true
	}
	r.move(Done)
	return r, nil
}

func (e *Engine) infer(ctx context.Context, path string) (tagger.Caption, error) {
	load := e.Load
	if load == nil {
		load = tagger.Load
	}
	img, err := load(path)
	if err != nil {
		return tagger.Caption{}, fail(path, StageLoad, err)
	}
	p, err := e.Tagger.Infer(ctx, img)
	if err != nil {
		return tagger.Caption{}, fail(path, StageInference, err)
	}
	klog.V(1).Infof("%s ratings: %v", path, p.Ratings)
	return tagger.Normalize(p.Tags, e.threshold()), nil
}

// verify re-reads the metadata and requires every canonical tag in every field.
func (e *Engine) verify(r *Report) (metadata.Tags, error) {
	after, err := e.Store.ReadTags(r.Path)
	if err != nil {
		_, ferr := r.fail(StageStoreRead, err)
		return nil, ferr
	}
	if m := after.Missing(r.Tags); len(m) > 0 {
		_, ferr := r.fail(StageVerify, fmt.Errorf("tags missing after write: %v", m))
		return nil, ferr
	}
	return after, nil
}
