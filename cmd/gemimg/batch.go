package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gemimg/pkg/checkpoint"
	errs "gemimg/pkg/errors"
	"gemimg/pkg/gemini"
	"gemimg/pkg/logger"
	"gemimg/pkg/ratelimit"
	"gemimg/pkg/storage"
	"gemimg/pkg/ui"
)

var (
	perMinute    int
	resumeBatch  bool
	forceRestart bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <prompts-file>",
	Short: "Generate one image per line of a prompts file",
	Long: `Generate images for every prompt in a file, reusing one browser session.

The file holds one prompt per line. Blank lines and lines starting with '#'
are skipped. Use '-' to read prompts from stdin. Images are written to the
output directory as gemini-001.png, gemini-002.png, ... skipping names that
already exist.

A refused or timed-out prompt is reported and the batch moves on. Login and
browser failures stop the batch.

Progress is checkpointed after every image. Re-run an interrupted batch with
--resume to skip prompts that already have an image.

Examples:
  gemimg batch prompts.txt --output-dir ./renders
  gemimg batch prompts.txt --resume
  gemimg batch prompts.txt --per-minute 4 --metadata
  cat prompts.txt | gemimg batch -`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&outputDir, "output-dir", "", "directory for generated images")
	batchCmd.Flags().IntVar(&perMinute, "per-minute", 0, "maximum generations per minute (default from config)")
	batchCmd.Flags().BoolVar(&resumeBatch, "resume", false, "resume from the last checkpoint")
	batchCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "force restart, ignoring an existing checkpoint")
	addGenerationFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	prompts, err := readPromptsFile(args[0])
	if err != nil {
		return err
	}
	if len(prompts) == 0 {
		return fmt.Errorf("no prompts found in %s", args[0])
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.GetLogger().WithComponent("batch")

	paths, err := storage.NewManager(cfg.Output.Directory)
	if err != nil {
		return err
	}

	source := promptSource(args[0])
	id := checkpoint.BatchID(source, prompts)
	checkpoints, err := checkpoint.NewManager(id)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint manager: %w", err)
	}
	cp, err := openCheckpoint(checkpoints, id, source, len(prompts), resumeBatch, forceRestart)
	if err != nil {
		return err
	}

	opts := generationOptions(cfg)
	client := gemini.NewClient(cfg)
	defer func() {
		if err := client.Disconnect(); err != nil {
			log.WithError(err).Warn("Failed to disconnect browser")
		}
	}()

	runner := &batchRunner{
		gen:         client,
		paths:       paths,
		limiter:     ratelimit.PerMinute(cfg.Batch.GenerationsPerMinute),
		checkpoints: checkpoints,
		cp:          cp,
		tracker:     ui.NewStatusTracker(len(prompts)),
		aspectRatio: opts.AspectRatio,
		timeout:     opts.Timeout,
		log:         log,
	}

	ui.PrintInfo("Prompts", fmt.Sprintf("%d", len(prompts)))
	ui.PrintInfo("Output", paths.GetOutputDir())

	ctx := cmd.Context()
	if err := client.Connect(ctx, gemini.ConnectOptions{Headed: opts.Headed}); err != nil {
		runner.finish(err)
		return err
	}

	err = runner.run(ctx, prompts)

	tracker := runner.tracker
	fmt.Fprintln(os.Stdout)
	ui.PrintSuccess(tracker.Summary())

	if notify {
		msg := fmt.Sprintf("%d of %d images generated", tracker.Completed, tracker.Total)
		if err != nil {
			ui.NewNotifier().SendError("gemimg batch", msg)
		} else {
			ui.NewNotifier().SendSuccess("gemimg batch", msg)
		}
	}

	return err
}

// imageGenerator is the part of gemini.Client a batch drives
type imageGenerator interface {
	GenerateImage(ctx context.Context, req gemini.Request) (*gemini.Result, error)
}

// batchRunner generates one image per prompt on a shared session, recording
// progress in a checkpoint.
type batchRunner struct {
	gen         imageGenerator
	paths       *storage.Manager
	limiter     ratelimit.Limiter
	checkpoints *checkpoint.Manager
	cp          *checkpoint.Checkpoint
	tracker     *ui.StatusTracker
	aspectRatio string
	timeout     time.Duration
	log         logger.Logger
}

// run processes prompts in order. GENERATION failures are counted and
// skipped; AUTH and BROWSER failures and cancellation end the batch.
func (r *batchRunner) run(ctx context.Context, prompts []string) error {
	var fatal error
	for i, prompt := range prompts {
		if r.cp.IsGenerated(i, prompt) {
			r.tracker.RecordSuccess()
			ui.PrintDim(fmt.Sprintf("[%d/%d] skipped, already generated: %s", i+1, len(prompts), prompt))
			continue
		}
		if err := r.limiter.Wait(ctx); err != nil {
			fatal = err
			break
		}

		target := r.paths.NextPath("gemini", ".png")
		ui.PrintHighlight(fmt.Sprintf("[%d/%d] %s", i+1, len(prompts), prompt))

		result, err := r.gen.GenerateImage(ctx, gemini.Request{
			Prompt:      prompt,
			OutputPath:  target,
			AspectRatio: r.aspectRatio,
			Timeout:     r.timeout,
		})
		if err != nil {
			r.tracker.RecordFailure()
			ui.PrintWarning("  failed", err.Error())
			if stopsBatch(err) || ctx.Err() != nil {
				fatal = err
				break
			}
			continue
		}

		r.tracker.RecordSuccess()
		ui.PrintDim("  saved " + result.ImagePath)
		r.tracker.PrintProgress()

		if err := r.checkpoints.RecordGeneration(r.cp, i, prompt, result.ImagePath); err != nil {
			r.log.WithError(err).Warn("Failed to update checkpoint")
		}
	}

	if fatal == nil && r.tracker.Failed > 0 {
		fatal = fmt.Errorf("%d of %d prompts failed", r.tracker.Failed, r.tracker.Total)
	}
	r.finish(fatal)
	return fatal
}

// finish keeps the checkpoint only when there is something to resume
func (r *batchRunner) finish(err error) {
	if err != nil && r.cp.TotalGenerated > 0 {
		ui.PrintDim("Progress saved. Re-run with --resume to continue.")
		return
	}
	if delErr := r.checkpoints.Delete(); delErr != nil {
		r.log.WithError(delErr).Warn("Failed to delete checkpoint")
	}
}

// promptSource names where prompts came from for the checkpoint id
func promptSource(path string) string {
	if path == "-" {
		return "stdin"
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// openCheckpoint loads, discards or creates the checkpoint for a batch
// depending on resume and force
func openCheckpoint(mgr *checkpoint.Manager, id, source string, total int, resume, force bool) (*checkpoint.Checkpoint, error) {
	var cp *checkpoint.Checkpoint
	var err error

	switch {
	case force && mgr.Exists():
		if err := mgr.Delete(); err != nil {
			return nil, err
		}
		ui.PrintInfo("Force restart", "Ignoring existing checkpoint")
	case resume && mgr.Exists():
		cp, err = mgr.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if cp != nil {
			ui.PrintInfo("Resuming from checkpoint", fmt.Sprintf("%d of %d already generated", cp.TotalGenerated, cp.TotalPrompts))
		}
	case mgr.Exists():
		ui.PrintWarning("Previous run of this batch found")
		ui.PrintDim("  Use --resume to continue where you left off")
		ui.PrintDim("  Use --force-restart to start fresh")
		return nil, fmt.Errorf("checkpoint exists - use --resume to continue or --force-restart to start fresh")
	}

	if cp == nil {
		cp, err = mgr.Create(id, source, total)
		if err != nil {
			return nil, err
		}
	}

	return cp, nil
}

// stopsBatch reports whether later prompts cannot succeed either
func stopsBatch(err error) bool {
	return errs.Is(err, errs.ErrorTypeAuth) || errs.Is(err, errs.ErrorTypeBrowser)
}

func readPromptsFile(path string) ([]string, error) {
	if path == "-" {
		return readPrompts(os.Stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open prompts file: %w", err)
	}
	defer f.Close()

	return readPrompts(f)
}

// readPrompts returns the non-blank, non-comment lines of r
func readPrompts(r io.Reader) ([]string, error) {
	var prompts []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prompts = append(prompts, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read prompts: %w", err)
	}

	return prompts, nil
}
