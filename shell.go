package shellmind

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gopsprocess "github.com/shirou/gopsutil/v4/process"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// outputQueue is a thread-safe append/drain buffer of OutputLines,
// replacing the original source's queue.Queue (client/shell.py's
// _q_stdout / _q_stderr).
type outputQueue struct {
	mu    sync.Mutex
	lines []OutputLine
}

func (q *outputQueue) push(line OutputLine) {
	q.mu.Lock()
	q.lines = append(q.lines, line)
	q.mu.Unlock()
}

func (q *outputQueue) drain() []OutputLine {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.lines) == 0 {
		return nil
	}
	out := q.lines
	q.lines = nil
	return out
}

// Shell manages a persistent /bin/bash subprocess and exposes it
// through the same execute-one-command contract as the original
// source's client/shell.py Shell class.
type Shell struct {
	log         *logrus.Logger
	ps1         string
	exitTimeout time.Duration
	killTimeout time.Duration
	newRunner   func() BashRunner

	mu     sync.Mutex
	runner BashRunner
	stdin  io.WriteCloser
	stdout *outputQueue
	stderr *outputQueue
}

// NewShell spawns /bin/bash and starts its reader goroutines.
func NewShell(log *logrus.Logger, ps1 string, exitTimeout, killTimeout time.Duration) (*Shell, error) {
	return NewShellWithRunner(log, ps1, exitTimeout, killTimeout, func() BashRunner { return NewLocalBashRunner() })
}

// NewShellWithRunner is NewShell with an injectable BashRunner factory,
// so tests can drive the PS1-probe and output-draining logic against a
// MockBashRunner instead of a real /bin/bash.
func NewShellWithRunner(log *logrus.Logger, ps1 string, exitTimeout, killTimeout time.Duration, newRunner func() BashRunner) (*Shell, error) {
	s := &Shell{log: log, ps1: ps1, exitTimeout: exitTimeout, killTimeout: killTimeout, newRunner: newRunner}
	if err := s.openShell(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Shell) openShell() error {
	s.log.Info("opening shell")
	runner := s.newRunner()
	stdin, stdout, stderr, err := runner.Start()
	if err != nil {
		return &ErrShellUnavailable{Cause: err}
	}

	s.runner = runner
	s.stdin = stdin
	s.stdout = &outputQueue{}
	s.stderr = &outputQueue{}
	go enqueueLines(stdout, s.stdout)
	go enqueueLines(stderr, s.stderr)
	s.log.WithField("pid", runner.Pid()).Info("shell started")
	return nil
}

// enqueueLines scans r line by line, timestamping each as it arrives,
// mirroring client/shell.py's _enqueue_output thread target.
func enqueueLines(r io.ReadCloser, q *outputQueue) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		q.push(OutputLine{Time: nowSeconds(), Text: scanner.Text()})
	}
	r.Close()
}

func (s *Shell) putStdin(command string) error {
	_, err := s.stdin.Write([]byte(command + "\n"))
	return err
}

// shellGone reports whether the bash process has exited.
func (s *Shell) shellGone() bool {
	if s.runner == nil {
		return true
	}
	return s.runner.Exited()
}

// ensureShell restarts bash if it has died, returning false when a
// restart occurred (the caller should treat the in-flight command as
// lost, as in client/shell.py's _ensure_shell).
func (s *Shell) ensureShell() bool {
	if !s.shellGone() {
		return true
	}
	s.log.Error("shell has exited, restarting")
	_ = s.waitShell()
	if err := s.openShell(); err != nil {
		s.log.WithError(err).Fatal("failed to restart shell")
	}
	return false
}

func (s *Shell) waitShell() error {
	err := s.runner.Wait()
	if leftover := s.stdout.drain(); len(leftover) > 0 {
		s.log.WithField("lines", len(leftover)).Warn("leftover stdout after shell exit")
	}
	if leftover := s.stderr.drain(); len(leftover) > 0 {
		s.log.WithField("lines", len(leftover)).Warn("leftover stderr after shell exit")
	}
	s.log.Info("shell finished")
	return err
}

// shellChildren lists the live descendants of the bash process.
func (s *Shell) shellChildren() ([]*gopsprocess.Process, error) {
	pid := s.runner.Pid()
	if pid == 0 {
		return nil, nil
	}
	return childProcesses(pid)
}

func (s *Shell) killShellChildren(kill bool) bool {
	children, err := s.shellChildren()
	if err != nil || len(children) == 0 {
		return true
	}
	return killProcesses(s.log, children, kill, s.killTimeout)
}

// closeShell terminates the shell (and its children), waiting for it
// to exit. Mirrors client/shell.py's _close_shell.
func (s *Shell) closeShell(kill bool) bool {
	s.log.WithField("kill", kill).Warn("closing shell")
	if !s.shellGone() {
		if !s.killShellChildren(kill) {
			s.log.Error("failed to kill shell children")
			return false
		}
		self, err := gopsprocess.NewProcess(s.runner.Pid())
		if err == nil && !killProcesses(s.log, []*gopsprocess.Process{self}, kill, s.killTimeout) {
			s.log.Error("failed to kill shell")
			return false
		}
	}
	_ = s.waitShell()
	s.log.Warn("shell closed")
	return true
}

// Respawn force-restarts the shell, used when a command leaves
// orphaned background processes behind that cannot be reaped.
func (s *Shell) Respawn(kill bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closeShell(kill) {
		return &ErrShellUnavailable{Cause: fmt.Errorf("failed to close shell")}
	}
	return s.openShell()
}

// Close tears the shell down permanently.
func (s *Shell) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeShell(true)
}

// tempFifo creates a uniquely named FIFO in a fresh temp directory,
// grounded on client/shell.py's temp_fifo() contextmanager; uuid
// replaces Python's random_string(8) (§12).
func tempFifo() (path string, cleanup func(), err error) {
	dir, err := os.MkdirTemp("", "shellmind-fifo-")
	if err != nil {
		return "", nil, fmt.Errorf("create fifo dir: %w", err)
	}
	path = filepath.Join(dir, uuid.NewString())
	if err := unix.Mkfifo(path, 0o600); err != nil {
		os.RemoveAll(dir)
		return "", nil, fmt.Errorf("mkfifo: %w", err)
	}
	cleanup = func() { os.RemoveAll(dir) }
	return path, cleanup, nil
}

// readFifoWithTimeout opens fifoPath non-blocking and polls for data,
// the Go analogue of client/shell.py's os.open(O_NONBLOCK) + select()
// loop in _wait_done (§4.3.3).
func readFifoWithTimeout(fifoPath string, timeout time.Duration) (string, bool) {
	fd, err := unix.Open(fifoPath, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return "", false
	}
	defer unix.Close(fd)

	const pollInterval = 5 * time.Millisecond
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 4096)
	var collected strings.Builder
	for time.Now().Before(deadline) {
		n, err := unix.Read(fd, buf)
		switch {
		case err == unix.EAGAIN:
			time.Sleep(pollInterval)
		case err != nil:
			return collected.String(), collected.Len() > 0
		case n > 0:
			collected.Write(buf[:n])
			return collected.String(), true
		default:
			time.Sleep(pollInterval)
		}
	}
	return collected.String(), false
}

// waitDone blocks until the PS1 probe writes to fifoPath or exitTimeout
// elapses, escalating to a child-process kill on timeout (§4.3.3,
// §4.3.4). On timeout it returns ErrCommandTimedOut rather than a
// fabricated prompt string, since no fixed placeholder can satisfy
// promptPattern; the caller is responsible for building the synthetic
// exit_code=-2 result (§4.3.3, §6, testable scenario #4). If the shell
// had to be respawned, this re-probes the new shell for a real,
// parseable prompt instead, mirroring client/shell.py's _wait_done.
func (s *Shell) waitDone(fifoPath string) (string, error) {
	if !s.ensureShell() {
		return s.getPrompt()
	}
	s.log.WithField("timeout", s.exitTimeout).Debug("waiting for shell to finish")
	out, ok := readFifoWithTimeout(fifoPath, s.exitTimeout)
	if ok {
		return out, nil
	}
	s.log.Error("shell did not finish in time")
	if !s.killShellChildren(false) {
		s.log.Error("failed to terminate shell children gracefully")
		s.killShellChildren(true)
	}
	return "", &ErrCommandTimedOut{}
}

// getPrompt runs the PS1 expansion probe described in §4.3.3: bash
// unsets PS1 because it starts non-interactively, so each probe sets
// it, captures the would-be prompt via ${PS1@P}, and writes it to a
// scratch FIFO.
func (s *Shell) getPrompt() (string, error) {
	fifoPath, cleanup, err := tempFifo()
	if err != nil {
		return "", err
	}
	defer cleanup()

	// Escape "$" as well as quotes so "$?" is expanded by ${PS1@P} after
	// (exit "$R"), not at assignment time (where it would always be 0).
	escaped := strings.NewReplacer(`"`, `\"`, `$`, `\$`).Replace(s.ps1)
	probe := fmt.Sprintf(
		`(R="$?"; PS1="%s"; (exit "$R"); echo -n "${PS1@P}" >> %s; exit "$R")`,
		escaped, fifoPath,
	)
	if err := s.putStdin(probe); err != nil {
		return "", &ErrShellUnavailable{Cause: err}
	}
	raw, err := s.waitDone(fifoPath)
	if err != nil {
		return "", err
	}
	s.log.WithField("prompt", raw).Debug("got prompt")
	return raw, nil
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
