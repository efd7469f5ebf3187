package main

import (
	"errors"
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/tstromberg/tagsync/pkg/batch"
	"github.com/tstromberg/tagsync/pkg/config"
	"github.com/tstromberg/tagsync/pkg/recon"
)

func TestApplyFlags(t *testing.T) {
	if err := flag.CommandLine.Parse([]string{"-workers", "3", "-backend", "gemini", "/photos"}); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Threshold = 0.5
	applyFlags(&cfg)

	if cfg.Workers != 3 || cfg.Tagger.Backend != config.BackendGemini || cfg.Root != "/photos" {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if cfg.Threshold != 0.5 {
		t.Errorf("unset -threshold overrode config: %v", cfg.Threshold)
	}
}

func TestRender(t *testing.T) {
	s := &batch.Summary{
		Total: 3, Succeeded: 2, Failed: 1, FastPath: 1, Elapsed: 1500 * time.Millisecond,
		Failures: []batch.Failure{{Path: "/photos/2.png", Stage: recon.StageLoad, Err: errors.New("corrupt")}},
	}
	out := renderSummary(s)
	// StyleRounded upper-cases headers.
	for _, want := range []string{"SUCCEEDED", "FAST PATH", "1.5s"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	out = renderFailures(s.Failures)
	for _, want := range []string{"/photos/2.png", "load", "corrupt"} {
		if !strings.Contains(out, want) {
			t.Errorf("failures missing %q:\n%s", want, out)
		}
	}
}
