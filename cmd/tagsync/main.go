// tagsync adds machine-generated tags to images and reconciles them across
// embedded metadata fields and caption sidecar files.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"k8s.io/klog/v2"

	"github.com/tstromberg/tagsync/pkg/batch"
	"github.com/tstromberg/tagsync/pkg/config"
	"github.com/tstromberg/tagsync/pkg/metadata"
	"github.com/tstromberg/tagsync/pkg/recon"
	"github.com/tstromberg/tagsync/pkg/tagger"
)

var (
	configPath  = flag.String("config", "", "path to a TOML config file")
	dryRun      = flag.Bool("n", false, "dry-run mode, report planned tags without writing")
	workers     = flag.Int("workers", 0, "number of images processed concurrently")
	threshold   = flag.Float64("threshold", 0, "minimum tag confidence")
	backend     = flag.String("backend", "", "tagger backend: wd14 or gemini")
	modelPath   = flag.String("model", "", "path to the wd14 ONNX model")
	labelsPath  = flag.String("labels", "", "path to the wd14 label CSV")
	onnxRuntime = flag.String("onnxruntime", "", "path to the onnxruntime shared library")
	backupDir   = flag.String("backup", "", "copy images here before modifying them")
	watch       = flag.Bool("watch", false, "keep running and tag new images as they appear")
	exiftoolBin = flag.String("exiftool", "", "path to the exiftool binary")
)

// applyFlags overrides cfg with flags given on the command line.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "n":
			cfg.DryRun = *dryRun
		case "workers":
			cfg.Workers = *workers
		case "threshold":
			cfg.Threshold = *threshold
		case "backend":
			cfg.Tagger.Backend = *backend
		case "model":
			cfg.Tagger.ModelPath = *modelPath
		case "labels":
			cfg.Tagger.LabelsPath = *labelsPath
		case "onnxruntime":
			cfg.Tagger.ONNXRuntimePath = *onnxRuntime
		case "backup":
			cfg.BackupDir = *backupDir
		case "watch":
			cfg.Watch = *watch
		case "exiftool":
			cfg.ExiftoolPath = *exiftoolBin
		}
	})
	if flag.NArg() > 0 {
		cfg.Root = flag.Arg(0)
	}
}

func newTagger(ctx context.Context, cfg *config.Config) (tagger.Tagger, error) {
	t := cfg.Tagger
	if t.Backend == config.BackendGemini {
		return tagger.NewGemini(ctx, t.GeminiAPIKey, t.GeminiModel)
	}
	return tagger.NewWD14(tagger.WD14Options{
		ModelPath:   t.ModelPath,
		LabelsPath:  t.LabelsPath,
		LibraryPath: t.ONNXRuntimePath,
	})
}

func main() {
	klog.InitFlags(nil)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <root>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	code := run()
	klog.Flush()
	os.Exit(code)
}

// run returns the process exit code: 1 if any image failed.
func run() int {
	cfg, err := config.Load(*configPath)
	if err != nil {
		klog.Exitf("config: %v", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		klog.Exitf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := metadata.NewExiftool(cfg.ExiftoolPath)
	if err != nil {
		klog.Exitf("metadata store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			klog.Errorf("Failed to close exiftool: %v", err)
		}
	}()

	tg, err := newTagger(ctx, cfg)
	if err != nil {
		klog.Exitf("tagger: %v", err)
	}
	if c, ok := tg.(io.Closer); ok {
		defer c.Close()
	}

	klog.Infof("tagsync starting: root=%s backend=%s workers=%d threshold=%.2f dry-run=%v",
		cfg.Root, cfg.Tagger.Backend, cfg.Workers, cfg.Threshold, cfg.DryRun)

	d := &batch.Driver{
		Engine: &recon.Engine{
			Store:     store,
			Tagger:    tg,
			Threshold: cfg.Threshold,
			DryRun:    cfg.DryRun,
			BackupDir: cfg.BackupDir,
			Root:      cfg.Root,
		},
		Workers:     cfg.Workers,
		ReportEvery: cfg.ReportInterval(),
	}

	s, err := d.Run(ctx, cfg.Root)
	if err != nil {
		klog.Exitf("run: %v", err)
	}
	fmt.Println(renderSummary(s))
	if len(s.Failures) > 0 {
		fmt.Println(renderFailures(s.Failures))
	}

	if cfg.Watch && ctx.Err() == nil {
		klog.Infof("watching %s for new images", cfg.Root)
		if err := d.Watch(ctx, cfg.Root, batch.DefaultSettle); err != nil {
			klog.Exitf("watch: %v", err)
		}
	}

	if s.Failed > 0 {
		return 1
	}
	return 0
}
