package guard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/voc0der/linux-proton-ge-updater/internal/logger"
)

// defaultPollInterval is how often the process table is re-read while waiting.
const defaultPollInterval = 200 * time.Millisecond

// ErrProcessStillRunning is returned when a process survives SIGKILL and the kill timeout.
var ErrProcessStillRunning = errors.New("process is still running")

// ProcessTable reads the OS process list.
type ProcessTable interface {
	Processes() ([]ps.Process, error)
	FindProcess(pid int) (ps.Process, error)
}

// Signaller delivers signals to processes by pid.
type Signaller interface {
	Signal(pid int, sig os.Signal) error
}

// Options configure a Guard.
type Options struct {
	// ApplicationName is compared exactly with the process executable name.
	ApplicationName string
	// ShutdownTimeout bounds the wait after SIGTERM.
	ShutdownTimeout time.Duration
	// KillTimeout bounds the wait after SIGKILL.
	KillTimeout time.Duration
	// PollInterval overrides defaultPollInterval.
	PollInterval time.Duration
}

// Guard terminates every process named ApplicationName.
type Guard struct {
	opts    Options
	table   ProcessTable
	signals Signaller
	selfPID int
}

// Option customizes a Guard.
type Option func(*Guard)

// WithProcessTable replaces the OS process table.
func WithProcessTable(table ProcessTable) Option {
	return func(g *Guard) {
		if table != nil {
			g.table = table
		}
	}
}

// WithSignaller replaces the OS signal delivery.
func WithSignaller(signals Signaller) Option {
	return func(g *Guard) {
		if signals != nil {
			g.signals = signals
		}
	}
}

// New returns a Guard backed by the host process table.
func New(opts *Options, guardOpts ...Option) *Guard {
	g := &Guard{
		opts:    *opts,
		table:   osProcessTable{},
		signals: osSignaller{},
		selfPID: os.Getpid(),
	}

	if g.opts.PollInterval <= 0 {
		g.opts.PollInterval = defaultPollInterval
	}

	for _, opt := range guardOpts {
		opt(g)
	}

	return g
}

// Stop terminates all matching processes and returns how many were stopped.
// Zero matches is not an error.
func (g *Guard) Stop(ctx context.Context) (int, error) {
	processList, err := g.table.Processes()
	if err != nil {
		return 0, fmt.Errorf("list processes: %w", err)
	}

	stopped := 0

	for _, process := range processList {
		if process.Pid() == g.selfPID || process.Executable() != g.opts.ApplicationName {
			continue
		}

		logger.InfoKV(ctx, "Closing application", "name", g.opts.ApplicationName, "pid", process.Pid())

		if err = g.stopProcess(ctx, process.Pid()); err != nil {
			return stopped, err
		}

		stopped++
	}

	if stopped == 0 {
		logger.DebugKV(ctx, "Application is not running", "name", g.opts.ApplicationName)
	}

	return stopped, nil
}

// stopProcess sends SIGTERM, waits, then escalates to SIGKILL.
func (g *Guard) stopProcess(ctx context.Context, pid int) error {
	if err := g.signals.Signal(pid, syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}

		return fmt.Errorf("terminate pid %d: %w", pid, err)
	}

	exited, err := g.waitExit(ctx, pid, g.opts.ShutdownTimeout)
	if err != nil || exited {
		return err
	}

	logger.WarnKV(ctx, "Application ignored termination, killing it",
		"pid", pid, "timeout", g.opts.ShutdownTimeout.String())

	if err = g.signals.Signal(pid, syscall.SIGKILL); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}

		return fmt.Errorf("kill pid %d: %w", pid, err)
	}

	exited, err = g.waitExit(ctx, pid, g.opts.KillTimeout)
	if err != nil {
		return err
	}

	if !exited {
		return fmt.Errorf("pid %d: %w", pid, ErrProcessStillRunning)
	}

	return nil
}

// waitExit polls the process table until pid disappears or timeout elapses.
func (g *Guard) waitExit(ctx context.Context, pid int, timeout time.Duration) (bool, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(g.opts.PollInterval)
	defer ticker.Stop()

	for {
		process, err := g.table.FindProcess(pid)
		if errors.Is(err, os.ErrNotExist) {
			// Vanished between the directory check and the stat read.
			return true, nil
		}

		if err != nil {
			return false, fmt.Errorf("find pid %d: %w", pid, err)
		}

		if process == nil {
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return false, nil
		case <-ticker.C:
		}
	}
}

// osProcessTable reads processes through go-ps.
type osProcessTable struct{}

func (osProcessTable) Processes() ([]ps.Process, error) {
	return ps.Processes()
}

//nolint:ireturn // go-ps exposes processes as an interface.
func (osProcessTable) FindProcess(pid int) (ps.Process, error) {
	return ps.FindProcess(pid)
}

// osSignaller signals processes through os.FindProcess.
type osSignaller struct{}

func (osSignaller) Signal(pid int, sig os.Signal) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}

	return process.Signal(sig)
}
