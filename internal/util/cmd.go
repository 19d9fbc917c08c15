package util

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// killGrace bounds how long Wait keeps draining pipes after the process was killed.
const killGrace = 5 * time.Second

// CmdSpec describes a subprocess to run.
type CmdSpec struct {
	Path    string   // Binary path
	Args    []string // Arguments
	Env     []string // Optional environment variables (KEY=VALUE). If nil, inherit.
	Dir     string   // Working directory; empty = inherit.
	Verbose bool     // Echo the command line and stream output to the terminal

	StdoutLine    func(string) // Called for each stdout line (if non-nil)
	StderrLine    func(string) // Called for each stderr line (if non-nil)
	CaptureStdout bool         // When false, stdout is buffered only if StdoutLine is nil
}

// CmdResult contains captured output and exit status.
type CmdResult struct {
	Stdout []byte
	Stderr []byte
	Code   int
	Err    error
}

// CmdRunner runs subprocesses. Tests substitute fakes for ffmpeg/ffprobe.
type CmdRunner interface {
	Run(ctx context.Context, spec CmdSpec) (CmdResult, error)
}

type defaultRunner struct{}

// NewDefaultRunner returns a CmdRunner backed by Run.
func NewDefaultRunner() CmdRunner { return defaultRunner{} }

func (defaultRunner) Run(ctx context.Context, spec CmdSpec) (CmdResult, error) {
	return Run(ctx, spec)
}

// Run executes the command and waits for it. The process (and on unix its whole
// process group) is killed when ctx is cancelled; Run does not return before the
// process has exited. Stderr is always captured. On non-zero exit the returned
// error describes the exit code while CmdResult carries the captured buffers.
func Run(ctx context.Context, spec CmdSpec) (CmdResult, error) {
	var stdoutBuf, stderrBuf bytes.Buffer

	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	if spec.Env != nil {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	configureProcess(cmd)
	cmd.WaitDelay = killGrace

	// Wait owns the OS pipes, so WaitDelay still bounds it when a process that
	// left the group keeps stdout or stderr open.
	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	cmd.Stdout = outW
	cmd.Stderr = errW

	if spec.Verbose {
		fmt.Fprintf(os.Stderr, "+ %s\n", ShellQuote(spec.Path, spec.Args))
	}

	if err := cmd.Start(); err != nil {
		return CmdResult{Code: -1, Err: err}, err
	}

	var g errgroup.Group
	g.Go(func() error {
		return scanLines(outR, func(line string) {
			if spec.StdoutLine != nil {
				spec.StdoutLine(line)
			}
			if spec.Verbose {
				fmt.Fprintln(os.Stdout, line)
			}
			if spec.CaptureStdout || spec.StdoutLine == nil {
				stdoutBuf.WriteString(line)
				stdoutBuf.WriteByte('\n')
			}
		})
	})
	g.Go(func() error {
		return scanLines(errR, func(line string) {
			if spec.StderrLine != nil {
				spec.StderrLine(line)
			}
			if spec.Verbose {
				fmt.Fprintln(os.Stderr, line)
			}
			stderrBuf.WriteString(line)
			stderrBuf.WriteByte('\n')
		})
	})

	waitErr := cmd.Wait()
	_ = outW.Close()
	_ = errW.Close()
	scanErr := g.Wait()
	if waitErr == nil && scanErr != nil && spec.Verbose {
		fmt.Fprintf(os.Stderr, "output scan error: %v\n", scanErr)
	}

	code := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	res := CmdResult{
		Stdout: stdoutBuf.Bytes(),
		Stderr: stderrBuf.Bytes(),
		Code:   code,
		Err:    waitErr,
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("command interrupted: %w", ctxErr)
	}
	if waitErr != nil {
		return res, fmt.Errorf("command failed (exit %d): %w", code, waitErr)
	}
	return res, nil
}

func scanLines(r io.Reader, fn func(string)) error {
	sc := bufio.NewScanner(r)
	const maxCapacity = 1024 * 1024
	sc.Buffer(make([]byte, 0, 64*1024), maxCapacity)
	for sc.Scan() {
		fn(sc.Text())
	}
	err := sc.Err()
	if err == nil || errors.Is(err, os.ErrClosed) {
		return nil
	}
	// Keep the child from blocking on a full pipe.
	_, _ = io.Copy(io.Discard, r)
	return err
}

// TailLines returns at most n trailing non-empty lines of b.
func TailLines(b []byte, n int) string {
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return strings.Join(out, "\n")
}

// ShellQuote returns a printable shell-like command string for logging.
func ShellQuote(path string, args []string) string {
	b := &strings.Builder{}
	b.WriteString(quote(path))
	for _, a := range args {
		b.WriteByte(' ')
		b.WriteString(quote(a))
	}
	return b.String()
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.ContainsAny(s, " \t\n\"'\\$`(){}[]*&;|<>?!") {
		return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
	}
	return s
}
