// Package companion finds and starts the desktop front-end that connects
// back to the bridge over WebSocket. Launching is best effort: callers log
// the error and carry on without a companion.
package companion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zhubert/agent-assistant/exec"
	"github.com/zhubert/agent-assistant/logger"
)

// DefaultName is the companion executable name looked up on PATH.
const DefaultName = "agent-assistant-ui"

// ErrNotFound is returned when no candidate exists.
var ErrNotFound = errors.New("companion executable not found")

// DefaultCandidates returns the built-in search list: next to the running
// executable, in its ui/ subdirectory, then DefaultName on PATH.
func DefaultCandidates() []string {
	var candidates []string
	if self, err := os.Executable(); err == nil {
		dir := filepath.Dir(self)
		candidates = append(candidates,
			filepath.Join(dir, DefaultName),
			filepath.Join(dir, "ui", DefaultName),
		)
	}
	return append(candidates, DefaultName)
}

// Launcher starts the first companion candidate that exists.
type Launcher struct {
	Candidates []string             // Paths or bare names; empty means DefaultCandidates
	Args       []string             // Passed to the companion
	Executor   exec.CommandExecutor // nil means exec.GetDefaultExecutor
	Log        *slog.Logger         // nil means the companion component logger

	onExit func(err error) // test hook, called after the process is reaped
}

func (l *Launcher) executor() exec.CommandExecutor {
	if l.Executor != nil {
		return l.Executor
	}
	return exec.GetDefaultExecutor()
}

func (l *Launcher) log() *slog.Logger {
	if l.Log != nil {
		return l.Log
	}
	return logger.WithComponent("companion")
}

func (l *Launcher) candidates() []string {
	if len(l.Candidates) > 0 {
		return l.Candidates
	}
	return DefaultCandidates()
}

// Find returns the first candidate that resolves to an executable file.
// Candidates containing a path separator are checked on disk; bare names
// are resolved against PATH.
func (l *Launcher) Find() (string, error) {
	candidates := l.candidates()
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if !strings.ContainsRune(c, filepath.Separator) && !strings.ContainsRune(c, '/') {
			if path, err := l.executor().LookPath(c); err == nil {
				return path, nil
			}
			continue
		}
		info, err := os.Stat(c)
		if err != nil || info.IsDir() {
			continue
		}
		return c, nil
	}
	return "", fmt.Errorf("%w (tried %s)", ErrNotFound, strings.Join(candidates, ", "))
}

// Launch finds the companion and starts it without waiting for it to exit.
// The process is reaped in the background and its exit is logged.
func (l *Launcher) Launch(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := l.Find()
	if err != nil {
		return err
	}

	log := l.log().With("path", path)
	handle, err := l.executor().Start(filepath.Dir(path), path, l.Args...)
	if err != nil {
		return fmt.Errorf("start companion %s: %w", path, err)
	}
	log.Info("companion started", "pid", handle.Pid())

	go func() {
		err := handle.Wait()
		if err != nil {
			log.Warn("companion exited", "error", err)
		} else {
			log.Info("companion exited")
		}
		if l.onExit != nil {
			l.onExit(err)
		}
	}()
	return nil
}
