package debug

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func useTempLogPath(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	origGetLogPath := getLogPath
	getLogPath = func() (string, error) {
		return filepath.Join(tmpDir, LogDirName, LogFileName), nil
	}
	t.Cleanup(func() {
		getLogPath = origGetLogPath
		Close()
		resetForTest()
	})
	return filepath.Join(tmpDir, LogDirName)
}

func TestInit_Disabled(t *testing.T) {
	resetForTest()

	err := Init(false)
	if err != nil {
		t.Fatalf("Init(false) failed: %v", err)
	}

	if Enabled() {
		t.Error("Enabled() should return false when initialized with false")
	}

	// Logging should be no-ops
	Log("test message")
	Logf("test %s", "formatted")
	Warnf("test %s", "warning")
}

func TestInit_Enabled(t *testing.T) {
	resetForTest()
	logDir := useTempLogPath(t)

	if err := Init(true); err != nil {
		t.Fatalf("Init(true) failed: %v", err)
	}
	if !Enabled() {
		t.Error("Enabled() should return true when initialized with true")
	}

	Log("test message")
	Logf("test %s %d", "formatted", 42)

	content, err := os.ReadFile(filepath.Join(logDir, LogFileName))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	contentStr := string(content)
	if !strings.Contains(contentStr, "debug log started") {
		t.Error("Log file should contain startup message")
	}
	if !strings.Contains(contentStr, "test message") {
		t.Error("Log file should contain 'test message'")
	}
	if !strings.Contains(contentStr, "test formatted 42") {
		t.Error("Log file should contain 'test formatted 42'")
	}
}

func TestInit_RotatesExistingLog(t *testing.T) {
	resetForTest()
	logDir := useTempLogPath(t)

	if err := os.MkdirAll(logDir, 0755); err != nil {
		t.Fatalf("Failed to create log directory: %v", err)
	}
	logPath := filepath.Join(logDir, LogFileName)
	if err := os.WriteFile(logPath, []byte("old log content from last launch\n"), 0600); err != nil {
		t.Fatalf("Failed to write pre-existing log: %v", err)
	}

	if err := Init(true); err != nil {
		t.Fatalf("Init(true) failed: %v", err)
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if strings.Contains(string(content), "old log content") {
		t.Error("current log should start fresh after rotation")
	}
	if !strings.Contains(string(content), "debug log started") {
		t.Error("Log file should contain new startup message")
	}

	entries, err := os.ReadDir(logDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) < 2 {
		t.Errorf("expected previous log to be kept as a backup, found %d file(s)", len(entries))
	}
}

func TestSetLevel(t *testing.T) {
	resetForTest()
	logDir := useTempLogPath(t)

	if err := Init(true); err != nil {
		t.Fatalf("Init(true) failed: %v", err)
	}
	if err := SetLevel("warn"); err != nil {
		t.Fatalf("SetLevel(warn) failed: %v", err)
	}

	Logf("hidden %s", "debug")
	Warnf("visible %s", "warning")

	content, err := os.ReadFile(filepath.Join(logDir, LogFileName))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if strings.Contains(string(content), "hidden debug") {
		t.Error("debug entry should be filtered at warn level")
	}
	if !strings.Contains(string(content), "visible warning") {
		t.Error("warning entry should be written at warn level")
	}

	if err := SetLevel("nonsense"); err == nil {
		t.Error("SetLevel should reject unknown level")
	}
}

func TestClose(t *testing.T) {
	resetForTest()
	useTempLogPath(t)

	if err := Init(true); err != nil {
		t.Fatalf("Init(true) failed: %v", err)
	}

	// Close should not panic
	Close()

	// Multiple closes should be safe
	Close()
	Close()
}

func TestGetLogPath(t *testing.T) {
	path, err := GetLogPath()
	if err != nil {
		t.Fatalf("GetLogPath() failed: %v", err)
	}

	if !strings.HasSuffix(path, filepath.Join(LogDirName, LogFileName)) {
		t.Errorf("GetLogPath() = %q, want suffix %q", path, filepath.Join(LogDirName, LogFileName))
	}
}

// resetForTest resets the package state for testing.
func resetForTest() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	enabled = false
	logger = newDiscardLogger()
}
