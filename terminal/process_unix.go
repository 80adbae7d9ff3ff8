//go:build !windows

package terminal

import (
	"errors"
	"os"
	"os/exec"

	"github.com/creack/pty"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
)

// startPTY runs cmd as the leader of a new session whose controlling
// terminal is the returned master's slave.
func startPTY(cmd *exec.Cmd, size Size) (*os.File, error) {
	return pty.StartWithSize(cmd, winsize(size))
}

func setSize(ptmx *os.File, size Size) error {
	return pty.Setsize(ptmx, winsize(size))
}

func winsize(size Size) *pty.Winsize {
	return &pty.Winsize{Rows: uint16(size.Rows), Cols: uint16(size.Cols)}
}

// descendants lists every live process below pid. It must be collected
// before the tree is signalled: orphans are reparented and lose their link.
func descendants(pid int) []*process.Process {
	root, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil
	}
	var out []*process.Process
	queue := []*process.Process{root}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		children, err := p.Children()
		if err != nil {
			continue
		}
		out = append(out, children...)
		queue = append(queue, children...)
	}
	return out
}

// signalGroup delivers sig to the process group led by pid. A group that is
// already gone is not an error.
func signalGroup(pid int, sig unix.Signal) error {
	if pid <= 0 {
		return nil
	}
	if err := unix.Kill(-pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}
	return nil
}

func hangup(pid int) error {
	return signalGroup(pid, unix.SIGHUP)
}

// forceKill SIGKILLs the group and any recorded descendant that escaped it.
func forceKill(pid int, procs []*process.Process) error {
	err := signalGroup(pid, unix.SIGKILL)
	for _, p := range procs {
		if running, _ := p.IsRunning(); running {
			_ = p.Kill()
		}
	}
	return err
}
