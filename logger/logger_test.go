package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zhubert/agent-assistant/paths"
)

// setupTestLogger creates a temp log file and initializes the logger with it.
func setupTestLogger(t *testing.T) string {
	t.Helper()
	Reset()
	t.Cleanup(Reset)

	logPath := filepath.Join(t.TempDir(), "test-debug.log")
	if err := Init(logPath); err != nil {
		t.Fatalf("Failed to init logger: %v", err)
	}
	return logPath
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	return string(content)
}

func TestGet_StructuredLogging(t *testing.T) {
	logPath := setupTestLogger(t)

	Get().Info("client connected", "sessionID", "s-1", "open", 2)

	content := readLog(t, logPath)
	if !strings.Contains(content, "client connected") {
		t.Error("Should contain message")
	}
	if !strings.Contains(content, "sessionID=s-1") {
		t.Error("Should contain sessionID=s-1")
	}
	if !strings.Contains(content, "open=2") {
		t.Error("Should contain open=2")
	}
	if !strings.Contains(content, "time=") {
		t.Error("Log line should contain timestamp")
	}
}

func TestInit_CreatesDirectory(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	logPath := filepath.Join(t.TempDir(), "nested", "dir", "bridge.log")
	if err := Init(logPath); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if _, err := os.Stat(logPath); err != nil {
		t.Errorf("log file not created: %v", err)
	}
	if Path() != logPath {
		t.Errorf("Path() = %q, want %q", Path(), logPath)
	}
}

func TestInit_SecondCallIsNoop(t *testing.T) {
	first := setupTestLogger(t)
	second := filepath.Join(t.TempDir(), "second.log")

	if err := Init(second); err != nil {
		t.Fatalf("second Init() error = %v", err)
	}
	Get().Info("after second init")

	if !strings.Contains(readLog(t, first), "after second init") {
		t.Error("second Init should not redirect output")
	}
	if _, err := os.Stat(second); !os.IsNotExist(err) {
		t.Error("second log file should not be created")
	}
}

func TestInitStderr(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	InitStderr()
	if Path() != "" {
		t.Errorf("Path() = %q, want empty when logging to stderr", Path())
	}
	// Should not panic
	Get().Info("stderr message")
}

func TestLogLevel_Filtering(t *testing.T) {
	logPath := setupTestLogger(t)

	SetDebug(false)
	Get().Debug("debug-filtered")
	Get().Info("info-visible")

	content := readLog(t, logPath)
	if strings.Contains(content, "debug-filtered") {
		t.Error("Debug message should be filtered at Info level")
	}
	if !strings.Contains(content, "info-visible") {
		t.Error("Info message should be visible at Info level")
	}

	SetDebug(true)
	defer SetDebug(false)
	Get().Debug("debug-visible")
	if !strings.Contains(readLog(t, logPath), "level=DEBUG") {
		t.Error("Should contain level=DEBUG marker after SetDebug(true)")
	}
}

func TestWithComponent(t *testing.T) {
	logPath := setupTestLogger(t)

	WithComponent("bridge").Info("request sent", "requestID", "abc123")

	content := readLog(t, logPath)
	if !strings.Contains(content, "component=bridge") {
		t.Error("Should contain 'component=bridge' attribute")
	}
	if !strings.Contains(content, "requestID=abc123") {
		t.Error("Should contain 'requestID=abc123' attribute")
	}
}

func TestEnsureInit_DefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_STATE_HOME", "")
	paths.Reset()
	t.Cleanup(paths.Reset)
	Reset()
	t.Cleanup(Reset)

	Get().Info("default path test")

	want := filepath.Join(home, ".agent-assistant", "logs", "agent-assistant.log")
	if Path() != want {
		t.Errorf("Path() = %q, want %q", Path(), want)
	}
	if !strings.Contains(readLog(t, want), "default path test") {
		t.Error("default log file should contain the message")
	}
}

func TestConcurrent_InitAndGet(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	paths.Reset()
	t.Cleanup(paths.Reset)

	for i := 0; i < 10; i++ {
		Reset()

		logPath := filepath.Join(t.TempDir(), "concurrent.log")
		done := make(chan bool, 15)

		for i := 0; i < 5; i++ {
			go func() {
				_ = Init(logPath)
				done <- true
			}()
			go func() {
				Get().With("sessionID", "sess").Info("concurrent session")
				done <- true
			}()
			go func() {
				WithComponent("comp").Info("concurrent component")
				done <- true
			}()
		}

		for i := 0; i < 15; i++ {
			<-done
		}
	}
	Reset()
}
