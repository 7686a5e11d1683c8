package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
)

// DefaultPIDFile is used when no PID file is configured
const DefaultPIDFile = "skin2.pid"

// LifecycleManager owns the daemon's PID file
type LifecycleManager struct {
	pidFile string
	logger  zerolog.Logger

	// owned is set once this process has written the PID file
	owned bool
}

// NewLifecycleManager creates a lifecycle manager for pidFile
func NewLifecycleManager(pidFile string, logger zerolog.Logger) *LifecycleManager {
	return &LifecycleManager{
		pidFile: pidFile,
		logger:  logger.With().Str("component", "lifecycle").Logger(),
	}
}

// Start writes the PID file. It refuses to overwrite the file of a live
// process.
func (l *LifecycleManager) Start() error {
	if IsRunning(l.pidFile) {
		return fmt.Errorf("daemon is already running (PID file: %s)", l.pidFile)
	}

	if dir := filepath.Dir(l.pidFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create PID directory: %w", err)
		}
	}

	if err := os.WriteFile(l.pidFile, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	l.owned = true

	l.logger.Info().
		Str("pid_file", l.pidFile).
		Int("pid", os.Getpid()).
		Msg("Lifecycle manager started")

	return nil
}

// Stop removes the PID file if this process wrote it. A file left by a
// refused Start belongs to another daemon and is kept.
func (l *LifecycleManager) Stop() error {
	if !l.owned {
		return nil
	}
	if pid, err := ReadPID(l.pidFile); err == nil && pid != os.Getpid() {
		l.owned = false
		l.logger.Warn().Int("pid", pid).Msg("PID file was replaced by another process, leaving it")
		return nil
	}
	if err := os.Remove(l.pidFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	l.owned = false

	l.logger.Info().Msg("Lifecycle manager stopped")
	return nil
}

// PIDFile returns the managed path
func (l *LifecycleManager) PIDFile() string {
	return l.pidFile
}

// ReadPID returns the process ID recorded in pidFile
func ReadPID(pidFile string) (int, error) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file: %w", err)
	}
	return pid, nil
}

// IsRunning reports whether pidFile names a live process
func IsRunning(pidFile string) bool {
	pid, err := ReadPID(pidFile)
	if err != nil || pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix FindProcess always succeeds; signal 0 probes for existence.
	return process.Signal(syscall.Signal(0)) == nil
}
