package shellmind

import (
	"context"
	"time"

	gopsprocess "github.com/shirou/gopsutil/v4/process"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// childProcesses returns the live descendants of the process with the
// given pid, recursively, using gopsutil/v4 -- the Go analogue of the
// original source's psutil usage in client/shell.py's
// _get_shell_children (§4.3.4).
func childProcesses(pid int32) ([]*gopsprocess.Process, error) {
	proc, err := gopsprocess.NewProcess(pid)
	if err != nil {
		// Already gone: no children to report.
		return nil, nil
	}
	children, err := proc.ChildrenWithContext(context.Background())
	if err != nil {
		return nil, err
	}
	all := children
	for _, child := range children {
		if grandchildren, err := childProcesses(child.Pid); err == nil {
			all = append(all, grandchildren...)
		}
	}
	return all, nil
}

// killProcesses terminates procs: SIGTERM (or SIGKILL if kill is true),
// then waits up to killTimeout for them to exit. After SIGTERM it
// returns true only if every process is confirmed gone; after SIGKILL
// it returns true at once, without waiting or checking. Mirrors
// client/shell.py's _kill_procs.
func killProcesses(log *logrus.Logger, procs []*gopsprocess.Process, kill bool, killTimeout time.Duration) bool {
	if len(procs) == 0 {
		return true
	}
	sig := unix.SIGTERM
	if kill {
		sig = unix.SIGKILL
	}
	log.WithFields(logrus.Fields{"count": len(procs), "kill": kill}).Warn("terminating processes")
	for _, p := range procs {
		_ = p.SendSignalWithContext(context.Background(), gopsprocess.Signal(sig))
	}
	if kill {
		return true
	}
	return waitProcessesGone(procs, killTimeout)
}

// waitProcessesGone polls until every process in procs has exited or
// timeout elapses, returning whether all are gone.
func waitProcessesGone(procs []*gopsprocess.Process, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	const pollInterval = 20 * time.Millisecond
	for time.Now().Before(deadline) {
		allGone := true
		for _, p := range procs {
			if alive, _ := p.IsRunningWithContext(context.Background()); alive {
				allGone = false
				break
			}
		}
		if allGone {
			return true
		}
		time.Sleep(pollInterval)
	}
	for _, p := range procs {
		if alive, _ := p.IsRunningWithContext(context.Background()); alive {
			return false
		}
	}
	return true
}
