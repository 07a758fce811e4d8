// Package runner executes subprocesses from explicit argument vectors and
// reports non-zero exits as ExecutionFailedError.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"go.trai.ch/zerr"

	"github.com/ZebulonRouseFrantzich/parts/internal/logging"
)

// ExecutionFailedError reports a subprocess that could not be started or
// exited non-zero.
type ExecutionFailedError struct {
	Args     []string
	Dir      string
	ExitCode int // -1 when the process never ran or was killed by a signal
	Err      error
}

func (e *ExecutionFailedError) Error() string {
	return fmt.Sprintf("execution failed: %s (exit code %d)", strings.Join(e.Args, " "), e.ExitCode)
}

func (e *ExecutionFailedError) Unwrap() error {
	return e.Err
}

// Runner runs commands with their output streamed to a logger.
type Runner struct {
	logger logging.Logger
	env    []string
}

// New creates a runner. Output lines are logged at info (stdout) and warn
// (stderr) level.
func New(logger logging.Logger) *Runner {
	return &Runner{logger: logging.OrNop(logger)}
}

// WithEnv returns a copy of the runner that adds env to every command.
func (r *Runner) WithEnv(env ...string) *Runner {
	merged := append(append([]string{}, r.env...), env...)
	return &Runner{logger: r.logger, env: merged}
}

// Run executes argv in dir. The process inherits the current environment,
// then the runner's env, then env; later entries win.
func (r *Runner) Run(ctx context.Context, dir string, env []string, argv ...string) error {
	if len(argv) == 0 {
		return &ExecutionFailedError{Dir: dir, ExitCode: -1, Err: zerr.New("empty command")}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // argv comes from package definitions
	cmd.Dir = dir
	cmd.Env = append(append(os.Environ(), r.env...), env...)

	stdout := &lineWriter{emit: func(line string) { r.logger.Info(line, "cmd", argv[0]) }}
	stderr := &lineWriter{emit: func(line string) { r.logger.Warn(line, "cmd", argv[0]) }}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	r.logger.Debug("exec", "args", argv, "dir", dir)
	err := cmd.Run()
	stdout.Flush()
	stderr.Flush()
	if err == nil {
		return nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	return &ExecutionFailedError{
		Args:     append([]string{}, argv...),
		Dir:      dir,
		ExitCode: exitCode,
		Err:      zerr.With(zerr.Wrap(err, "command failed"), "exit_code", exitCode),
	}
}

// lineWriter splits a byte stream into lines for the logger, buffering
// partial lines between writes.
type lineWriter struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	emit func(string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := string(w.buf.Next(idx + 1))
		w.emit(strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

// Flush emits any trailing partial line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() == 0 {
		return
	}
	scanner := bufio.NewScanner(&w.buf)
	for scanner.Scan() {
		w.emit(scanner.Text())
	}
	w.buf.Reset()
}
