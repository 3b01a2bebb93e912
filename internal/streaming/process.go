package streaming

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
	"syscall"
	"time"

	"github.com/jaisil18/tv-transmision-sub000/internal/logger"
)

// killTimeout bounds the wait after SIGKILL
const killTimeout = 2 * time.Second

// Process management errors
var (
	ErrInvalidCommand = errors.New("invalid encoder command")
	ErrProcessTimeout = errors.New("process termination timeout")
)

// Process is a running encoder
type Process interface {
	PID() int
	// Wait blocks until the process exits. It must be called exactly once.
	Wait() error
	Signal(sig os.Signal) error
	Kill() error
}

// Launcher starts encoder processes. onOutput receives every diagnostic line.
type Launcher interface {
	Launch(ctx context.Context, args []string, onOutput func(line string)) (Process, error)
}

// ExecLauncher launches the encoder binary as a child process
type ExecLauncher struct {
	Binary string
}

// NewExecLauncher creates a launcher for the given encoder binary
func NewExecLauncher(binary string) *ExecLauncher {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &ExecLauncher{Binary: binary}
}

type execProcess struct {
	cmd        *exec.Cmd
	outputDone chan struct{}
}

func (p *execProcess) PID() int                   { return p.cmd.Process.Pid }
func (p *execProcess) Signal(sig os.Signal) error { return p.cmd.Process.Signal(sig) }
func (p *execProcess) Kill() error                { return p.cmd.Process.Kill() }

// Wait drains diagnostic output before reaping the process
func (p *execProcess) Wait() error {
	<-p.outputDone
	return p.cmd.Wait()
}

// Launch starts the binary with args. The process is not bound to ctx; it
// lives until terminated.
func (l *ExecLauncher) Launch(_ context.Context, args []string, onOutput func(line string)) (Process, error) {
	launchStart := time.Now()

	if len(args) == 0 {
		return nil, ErrInvalidCommand
	}

	cmd := exec.Command(l.Binary, args...)
	cmd.Stdout = io.Discard

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start encoder: %w", err)
	}

	proc := &execProcess{cmd: cmd, outputDone: make(chan struct{})}
	go func() {
		defer close(proc.outputDone)
		captureOutput(cmd.Process.Pid, stderr, onOutput)
	}()

	logger.Log.Info().
		Int("pid", cmd.Process.Pid).
		Strs("args", args[:min(5, len(args))]).
		Int64("launch_latency_ms", time.Since(launchStart).Milliseconds()).
		Msg("Encoder process launched")

	return proc, nil
}

// captureOutput forwards each diagnostic line. Progress lines end in \r, so
// both terminators split.
func captureOutput(pid int, reader io.Reader, onOutput func(string)) {
	scanner := bufio.NewScanner(reader)
	scanner.Split(scanLinesOrCR)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if onOutput != nil {
			onOutput(line)
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Log.Warn().Err(err).Int("ffmpeg_pid", pid).Msg("Error reading encoder output")
	}
}

func scanLinesOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// containsError checks if a log line contains error indicators
func containsError(line string) bool {
	lower := strings.ToLower(line)
	for _, keyword := range []string{"error", "failed", "fatal"} {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// terminateProcess stops a process gracefully (SIGTERM) then forcefully
// (SIGKILL) if it has not exited within timeout. exited is closed by whoever
// owns Wait once the process has been reaped.
func terminateProcess(proc Process, exited <-chan struct{}, timeout time.Duration) error {
	terminateStart := time.Now()
	pid := proc.PID()

	select {
	case <-exited:
		return nil
	default:
	}

	logger.Log.Debug().Int("pid", pid).Msg("Sending SIGTERM to encoder process")

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		// Signals other than Kill are unsupported on some platforms
		logger.Log.Debug().Err(err).Int("pid", pid).Msg("SIGTERM failed, killing")
		timeout = 0
	}

	select {
	case <-exited:
		logger.Log.Info().
			Int("pid", pid).
			Int64("terminate_latency_ms", time.Since(terminateStart).Milliseconds()).
			Msg("Encoder process terminated gracefully")
		return nil
	case <-time.After(timeout):
	}

	logger.Log.Warn().
		Int("pid", pid).
		Dur("timeout", timeout).
		Msg("Encoder process didn't exit gracefully, sending SIGKILL")

	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill process: %w", err)
	}

	select {
	case <-exited:
		logger.Log.Info().
			Int("pid", pid).
			Int64("terminate_latency_ms", time.Since(terminateStart).Milliseconds()).
			Msg("Encoder process killed")
		return nil
	case <-time.After(killTimeout):
		logger.Log.Error().
			Int("pid", pid).
			Dur("kill_timeout", killTimeout).
			Msg("Encoder process did not die after SIGKILL")
		return fmt.Errorf("%w: process %d did not die after SIGKILL", ErrProcessTimeout, pid)
	}
}
