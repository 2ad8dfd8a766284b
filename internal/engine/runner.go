package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"time"
)

const (
	maxLineBytes     = 1024 * 1024
	defaultWaitDelay = 5 * time.Second
)

// LineFunc receives each line of the subprocess's combined output, without
// the trailing newline.
type LineFunc func(line string)

type ExecRunner interface {
	Run(ctx context.Context, spec ExecSpec, onLine LineFunc) ExecResult
}

type SubprocessRunner struct {
	// WaitDelay bounds how long Wait blocks on inherited pipes after the
	// process group is killed.
	WaitDelay time.Duration
}

type tailBuffer struct {
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	if max <= 0 {
		max = 64 * 1024
	}
	return &tailBuffer{
		buf: make([]byte, 0, max),
		max: max,
	}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(p) >= t.max {
		t.buf = append(t.buf[:0], p[len(p)-t.max:]...)
		return len(p), nil
	}
	overflow := len(t.buf) + len(p) - t.max
	if overflow > 0 {
		t.buf = append(t.buf[:0], t.buf[overflow:]...)
	}
	t.buf = append(t.buf, p...)
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}

func NewSubprocessRunner() *SubprocessRunner {
	return &SubprocessRunner{WaitDelay: defaultWaitDelay}
}

func (r *SubprocessRunner) Run(ctx context.Context, spec ExecSpec, onLine LineFunc) ExecResult {
	start := time.Now()
	if spec.Bin == "" {
		return ExecResult{ExitCode: 1, Duration: time.Since(start), Err: errors.New("missing binary")}
	}

	runCtx := ctx
	cancel := func() {}
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
	}
	defer cancel()

	cmd := exec.CommandContext(runCtx, spec.Bin, spec.Args...)
	cmd.Dir = spec.Dir
	configureCommandForTermination(cmd)
	cmd.Cancel = func() error {
		terminateCommand(cmd)
		return nil
	}
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = defaultWaitDelay
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return ExecResult{ExitCode: 1, Duration: time.Since(start), Err: fmt.Errorf("open output pipe: %w", err)}
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		result := ExecResult{ExitCode: 1, Duration: time.Since(start), Err: fmt.Errorf("start %s: %w", spec.Bin, err)}
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			result.ExitCode = 127
		}
		return result
	}

	tail := newTailBuffer(64 * 1024)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	scanner.Split(scanOutputLines)
	for scanner.Scan() {
		line := scanner.Text()
		_, _ = tail.Write([]byte(line + "\n"))
		if onLine != nil {
			onLine(line)
		}
	}
	scanErr := scanner.Err()
	if scanErr != nil {
		terminateCommand(cmd)
	}

	waitErr := cmd.Wait()
	result := ExecResult{
		Duration:   time.Since(start),
		OutputTail: tail.String(),
	}

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		result.TimedOut = true
		result.ExitCode = exitCodeOf(waitErr)
		result.Err = fmt.Errorf("%w after %s", ErrTimedOut, spec.Timeout)
		return result
	case ctx.Err() != nil:
		result.Interrupted = true
		result.ExitCode = 130
		result.Err = ErrInterrupted
		return result
	case scanErr != nil:
		result.ExitCode = exitCodeOf(waitErr)
		result.Err = fmt.Errorf("read output: %w", scanErr)
		return result
	}

	if waitErr == nil {
		return result
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result
	}
	result.ExitCode = 1
	result.Err = waitErr
	return result
}

// scanOutputLines splits on "\n", "\r\n" and a bare "\r", so progress bars
// that redraw with carriage returns yield one line per update. A trailing
// "\r" is held until the next byte shows whether "\n" follows.
func scanOutputLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}
