package osint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultScanTimeout = 3 * time.Minute
	// stderrLimit caps how much tool output is kept for error messages.
	stderrLimit = 4 << 10
)

// ErrScanTimeout is returned when the tool exceeds its deadline and is killed.
var ErrScanTimeout = errors.New("osint: scan timed out")

// ToolRunner invokes the external username-enumeration tool. The tool writes
// its findings to <Dir>/captured/<username>.txt; stdout is not parsed.
type ToolRunner struct {
	dir     string
	command []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewToolRunner builds a runner. command is the program and any leading
// arguments, e.g. ["python3", "brib.py"].
func NewToolRunner(dir string, command []string, timeout time.Duration, logger *slog.Logger) *ToolRunner {
	if len(command) == 0 {
		command = []string{"python3", "brib.py"}
	}
	if timeout <= 0 {
		timeout = defaultScanTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolRunner{dir: dir, command: command, timeout: timeout, logger: logger}
}

// Run executes one fast scan for username and waits for the process to exit.
// The process is killed when ctx is cancelled or the scan timeout elapses,
// and is always reaped before Run returns.
func (r *ToolRunner) Run(ctx context.Context, username string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := append(append([]string{}, r.command[1:]...), "--username", username, "--scan", "--fast")
	cmd := exec.CommandContext(ctx, r.command[0], args...)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(), "PYTHONIOENCODING=utf-8")
	// nil Stdin reads from the null device so the tool can never block on a prompt.
	cmd.Stdin = nil
	stderr := &limitedBuffer{limit: stderrLimit}
	cmd.Stdout = nil
	cmd.Stderr = stderr
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	err := cmd.Run()
	r.logger.Debug("osint tool finished", "username", username, "elapsed", time.Since(start), "error", err)
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrScanTimeout, r.timeout)
		}
		return fmt.Errorf("osint: scan cancelled: %w", ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "Unknown error"
		}
		return fmt.Errorf("OSINT tool failed with code %d: %s", exitErr.ExitCode(), msg)
	}
	return fmt.Errorf("osint: start tool: %w", err)
}

// OutputPath is where the tool leaves results for username.
func (r *ToolRunner) OutputPath(username string) string {
	return filepath.Join(r.dir, "captured", username+".txt")
}

// limitedBuffer keeps the first limit bytes written and discards the rest.
type limitedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}
