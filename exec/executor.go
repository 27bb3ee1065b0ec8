// Package exec provides an abstraction over starting background processes
// for testability. Production code uses RealExecutor, while tests inject a
// MockExecutor that records calls and returns pre-recorded results.
package exec

import (
	"errors"
	"os"
	"os/exec"
	"sync"
)

// ErrNotFound is returned by MockExecutor.LookPath for unknown names.
var ErrNotFound = errors.New("executable file not found")

// CommandExecutor abstracts process lookup and start.
type CommandExecutor interface {
	// LookPath resolves a bare executable name against PATH.
	LookPath(name string) (string, error)

	// Start starts a command without waiting for it to complete. The child
	// does not inherit stdin or stdout.
	Start(dir string, name string, args ...string) (CommandHandle, error)
}

// CommandHandle represents a running command.
type CommandHandle interface {
	// Pid returns the process id.
	Pid() int

	// Wait blocks until the command exits.
	Wait() error
}

// RealExecutor executes commands using os/exec.
type RealExecutor struct{}

// NewRealExecutor returns a new RealExecutor.
func NewRealExecutor() *RealExecutor {
	return &RealExecutor{}
}

// LookPath resolves name with exec.LookPath.
func (e *RealExecutor) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Start starts a command without waiting for it to complete. Its stderr is
// shared with this process; stdin and stdout go to the null device.
func (e *RealExecutor) Start(dir string, name string, args ...string) (CommandHandle, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &realCommandHandle{cmd: cmd}, nil
}

// realCommandHandle wraps a real exec.Cmd.
type realCommandHandle struct {
	cmd *exec.Cmd
}

func (h *realCommandHandle) Pid() int {
	return h.cmd.Process.Pid
}

func (h *realCommandHandle) Wait() error {
	return h.cmd.Wait()
}

// MockResponse defines the result of a mocked Start.
type MockResponse struct {
	Pid     int
	Err     error // returned by Start
	WaitErr error // returned by Wait
}

// CommandMatcher is a function that determines if a command matches.
type CommandMatcher func(dir, name string, args []string) bool

// MockRule defines a matching rule and its response.
type MockRule struct {
	Match    CommandMatcher
	Response MockResponse
}

// MockExecutor returns pre-recorded responses for commands.
// Commands are matched in order of rule registration.
type MockExecutor struct {
	mu       sync.RWMutex
	rules    []MockRule
	paths    map[string]string
	calls    []MockCall
	fallback CommandExecutor
}

// MockCall records a command invocation for verification.
type MockCall struct {
	Dir  string
	Name string
	Args []string
}

// NewMockExecutor creates a new MockExecutor.
// If fallback is provided, unmatched commands will be delegated to it.
func NewMockExecutor(fallback CommandExecutor) *MockExecutor {
	return &MockExecutor{
		paths:    make(map[string]string),
		fallback: fallback,
	}
}

// AddRule adds a matching rule with its response.
func (e *MockExecutor) AddRule(match CommandMatcher, response MockResponse) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, MockRule{Match: match, Response: response})
}

// AddExactMatch adds a rule that matches a specific command exactly.
func (e *MockExecutor) AddExactMatch(name string, args []string, response MockResponse) {
	e.AddRule(func(dir, n string, a []string) bool {
		if n != name || len(a) != len(args) {
			return false
		}
		for i, arg := range args {
			if a[i] != arg {
				return false
			}
		}
		return true
	}, response)
}

// AddPath makes LookPath resolve name to path.
func (e *MockExecutor) AddPath(name, path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paths[name] = path
}

// GetCalls returns all recorded command invocations.
func (e *MockExecutor) GetCalls() []MockCall {
	e.mu.RLock()
	defer e.mu.RUnlock()
	calls := make([]MockCall, len(e.calls))
	copy(calls, e.calls)
	return calls
}

// ClearCalls clears the recorded command invocations.
func (e *MockExecutor) ClearCalls() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = nil
}

func (e *MockExecutor) findMatch(dir, name string, args []string) *MockResponse {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, rule := range e.rules {
		if rule.Match(dir, name, args) {
			return &rule.Response
		}
	}
	return nil
}

func (e *MockExecutor) recordCall(dir, name string, args []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, MockCall{Dir: dir, Name: name, Args: args})
}

// LookPath resolves names registered with AddPath.
func (e *MockExecutor) LookPath(name string) (string, error) {
	e.mu.RLock()
	path, ok := e.paths[name]
	e.mu.RUnlock()
	if ok {
		return path, nil
	}
	if e.fallback != nil {
		return e.fallback.LookPath(name)
	}
	return "", &exec.Error{Name: name, Err: ErrNotFound}
}

// Start starts a mocked command. The handle's Wait returns immediately.
func (e *MockExecutor) Start(dir string, name string, args ...string) (CommandHandle, error) {
	e.recordCall(dir, name, args)

	if resp := e.findMatch(dir, name, args); resp != nil {
		if resp.Err != nil {
			return nil, resp.Err
		}
		return &mockCommandHandle{response: *resp}, nil
	}

	if e.fallback != nil {
		return e.fallback.Start(dir, name, args...)
	}

	return &mockCommandHandle{}, nil
}

// mockCommandHandle wraps a mock response.
type mockCommandHandle struct {
	response MockResponse
}

func (h *mockCommandHandle) Pid() int {
	return h.response.Pid
}

func (h *mockCommandHandle) Wait() error {
	return h.response.WaitErr
}

// Ensure implementations satisfy the interface.
var _ CommandExecutor = (*RealExecutor)(nil)
var _ CommandExecutor = (*MockExecutor)(nil)
var _ CommandHandle = (*realCommandHandle)(nil)
var _ CommandHandle = (*mockCommandHandle)(nil)

// defaultExecutorMu protects defaultExecutor for concurrent access.
var defaultExecutorMu sync.RWMutex

// defaultExecutor is the global default executor (can be swapped for testing).
var defaultExecutor CommandExecutor = NewRealExecutor()

// GetDefaultExecutor returns the global default executor.
func GetDefaultExecutor() CommandExecutor {
	defaultExecutorMu.RLock()
	defer defaultExecutorMu.RUnlock()
	return defaultExecutor
}

// SetDefaultExecutor sets the global default executor.
func SetDefaultExecutor(e CommandExecutor) {
	defaultExecutorMu.Lock()
	defer defaultExecutorMu.Unlock()
	defaultExecutor = e
}
