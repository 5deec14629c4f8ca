package watermark

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"gemimg/pkg/config"
	"gemimg/pkg/storage"
)

// ErrUnavailable means the removal tool is not installed
var ErrUnavailable = errors.New("watermark removal tool not installed")

// Remover writes a watermark-free copy of an image and returns its path.
// The input file is never modified.
type Remover interface {
	Clean(ctx context.Context, path string) (string, error)
}

// ExternalRemover runs a separately installed tool:
//
//	<interpreter> <entry script> <input> <output>
//
// with the tool directory as working directory. The tool cannot overwrite
// its input, so output always goes to a new temporary file.
type ExternalRemover struct {
	ToolDir     string
	Interpreter string
	EntryScript string
	Timeout     time.Duration
}

// NewExternalRemover builds a remover from the watermark config section
func NewExternalRemover(cfg *config.WatermarkConfig) *ExternalRemover {
	return &ExternalRemover{
		ToolDir:     cfg.ToolDir,
		Interpreter: cfg.InterpreterPath(),
		EntryScript: cfg.EntryScriptPath(),
		Timeout:     cfg.Timeout,
	}
}

// Available reports whether the entry script exists
func (r *ExternalRemover) Available() bool {
	info, err := os.Stat(r.EntryScript)
	return err == nil && !info.IsDir()
}

// Clean runs the tool on path. On failure any partial output is removed.
func (r *ExternalRemover) Clean(ctx context.Context, path string) (string, error) {
	if !r.Available() {
		return "", fmt.Errorf("%w: %s", ErrUnavailable, r.EntryScript)
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	tmp := storage.TempPath(path, "nowm")

	cmd := exec.CommandContext(ctx, r.Interpreter, r.EntryScript, path, tmp)
	cmd.Dir = r.ToolDir
	cmd.WaitDelay = 2 * time.Second
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		os.Remove(tmp)
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("watermark removal timed out after %s", r.Timeout)
		}
		if line := lastMeaningfulLine(out.String()); line != "" {
			return "", fmt.Errorf("watermark removal failed: %s: %w", line, err)
		}
		return "", fmt.Errorf("watermark removal failed: %w", err)
	}

	if info, err := os.Stat(tmp); err != nil || info.Size() == 0 {
		os.Remove(tmp)
		return "", fmt.Errorf("watermark removal produced no output file")
	}

	return tmp, nil
}

// progress bars and library chatter that say nothing about the outcome
var boilerplatePrefixes = []string{
	"warning:",
	"userwarning",
	"futurewarning",
	"deprecationwarning",
	"warnings.warn",
	"traceback (most recent call last)",
	"loading",
	"downloading",
	"  ",
}

// lastMeaningfulLine returns the last non-empty line that is not boilerplate
func lastMeaningfulLine(output string) string {
	var last string
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isBoilerplate(line) {
			continue
		}
		last = trimmed
	}
	return last
}

func isBoilerplate(line string) bool {
	if strings.ContainsRune(line, '\r') || strings.Contains(line, "%|") {
		return true
	}
	lower := strings.ToLower(line)
	for _, p := range boilerplatePrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
