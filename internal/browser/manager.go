// Package browser owns the lifecycle of the shared automation browser
// process: launching it under an isolated profile directory, waiting for its
// debug port, and tearing it down fully before a different profile may use
// the same port. At most one live process exists per Manager.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sjbaek/recollect/internal/poll"
)

var (
	// ErrLaunchTimeout means the debug port never came up; the spawned
	// process has been killed.
	ErrLaunchTimeout = errors.New("browser: debug port not ready before timeout")
	// ErrMissingBinary means the configured browser executable is absent.
	ErrMissingBinary = errors.New("browser: executable not found")
)

// ProcessHandle identifies the one live automation browser. It exists only
// between a successful launch and the matching terminate.
type ProcessHandle struct {
	PID        int
	DebugPort  int
	ProfileDir string

	cmd *exec.Cmd
}

// Manager is the single ownership slot for the automation browser process.
// The handle is nil while no process we spawned is alive; it is never
// package-level state.
type Manager struct {
	Binary         string
	DebugPort      int
	RealProfileDir string

	handle *ProcessHandle
}

// NewManager returns a Manager for the given executable and debug port.
func NewManager(binary string, debugPort int, realProfileDir string) *Manager {
	return &Manager{Binary: binary, DebugPort: debugPort, RealProfileDir: realProfileDir}
}

// Handle returns the live process handle, or nil.
func (m *Manager) Handle() *ProcessHandle { return m.handle }

// DebugURL is the CDP endpoint of the (expected) live browser.
func (m *Manager) DebugURL() string {
	return "http://localhost:" + strconv.Itoa(m.DebugPort)
}

const (
	launchPollAttempts = 15
	launchPollInterval = time.Second
	drainPollAttempts  = 10
	drainPollInterval  = 500 * time.Millisecond
	termGrace          = 5 * time.Second
	killGrace          = 3 * time.Second
)

// Ensure makes the debug port answer for the given profile directory,
// launching the browser when needed. First use of a profile directory seeds
// it from the user's real profile.
func (m *Manager) Ensure(ctx context.Context, profileDir string) error {
	if m.portReady() {
		if m.handle == nil {
			slog.Info("adopting externally started browser", "port", m.DebugPort)
		}
		return nil
	}

	if _, err := os.Stat(m.Binary); err != nil {
		return fmt.Errorf("%w: %s", ErrMissingBinary, m.Binary)
	}

	if _, err := os.Stat(filepath.Join(profileDir, "Default")); err != nil {
		slog.Info("first use of automation profile, seeding", "dir", profileDir)
		if err := SeedProfile(m.RealProfileDir, profileDir); err != nil {
			return err
		}
	}

	return m.launch(ctx, profileDir)
}

func (m *Manager) launch(ctx context.Context, profileDir string) error {
	cmd := exec.Command(m.Binary,
		"--remote-debugging-port="+strconv.Itoa(m.DebugPort),
		"--user-data-dir="+profileDir,
		"--no-first-run",
		"--disable-blink-features=AutomationControlled",
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("browser: start: %w", err)
	}

	err := poll.Until(ctx, launchPollAttempts, launchPollInterval, func(context.Context) (bool, error) {
		return m.portReady(), nil
	})
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		if errors.Is(err, poll.ErrExhausted) {
			return fmt.Errorf("%w: port %d", ErrLaunchTimeout, m.DebugPort)
		}
		return err
	}

	m.handle = &ProcessHandle{
		PID:        cmd.Process.Pid,
		DebugPort:  m.DebugPort,
		ProfileDir: profileDir,
		cmd:        cmd,
	}
	slog.Info("browser launched", "pid", m.handle.PID, "port", m.DebugPort, "profile", profileDir)
	return nil
}

// Terminate stops the browser we spawned: graceful signal, bounded grace
// period, forceful kill, then wait for the debug port to stop answering so
// the next launch cannot race the dying process. Externally started browsers
// are never touched.
func (m *Manager) Terminate(ctx context.Context) error {
	h := m.handle
	if h == nil {
		return nil
	}
	m.handle = nil

	done := make(chan struct{})
	go func() {
		_ = h.cmd.Wait()
		close(done)
	}()

	_ = unix.Kill(-h.PID, unix.SIGTERM)

	select {
	case <-done:
		slog.Info("browser closed gracefully", "pid", h.PID)
	case <-time.After(termGrace):
		_ = unix.Kill(-h.PID, unix.SIGKILL)
		select {
		case <-done:
			slog.Warn("browser force-killed", "pid", h.PID)
		case <-time.After(killGrace):
			slog.Warn("browser did not exit after SIGKILL", "pid", h.PID)
		}
	}

	_ = poll.Until(ctx, drainPollAttempts, drainPollInterval, func(context.Context) (bool, error) {
		return !m.portReady(), nil
	})
	return nil
}

func (m *Manager) portReady() bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("localhost", strconv.Itoa(m.DebugPort)), 2*time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
