// Package debug provides debug logging infrastructure for the update client.
// Logging is only enabled when --debug is passed at startup.
// Logs are written to ~/.updateclient/debug.log, rotated on each launch.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// LogFileName is the name of the debug log file.
	LogFileName = "debug.log"
	// LogDirName is the name of the directory containing the log file.
	LogDirName = ".updateclient"
)

var (
	mu      sync.RWMutex
	enabled bool
	logger  = newDiscardLogger()
	logFile *lumberjack.Logger

	// getLogPath is a function variable to allow overriding in tests.
	getLogPath = defaultGetLogPath
)

func newDiscardLogger() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

// Init initializes the debug logging system.
// If enable is false, all logging operations become no-ops.
// If enable is true, a fresh log file is started at ~/.updateclient/debug.log
// and the previous one is kept as a timestamped backup.
func Init(enable bool) error {
	mu.Lock()
	defer mu.Unlock()

	enabled = enable
	if !enable {
		logger = newDiscardLogger()
		return nil
	}

	logPath, err := getLogPath()
	if err != nil {
		return fmt.Errorf("determine log path: %w", err)
	}

	dir := filepath.Dir(logPath)
	//nolint:gosec // G301: User config directory needs standard permissions
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	lj := &lumberjack.Logger{
		Filename:   filepath.ToSlash(logPath),
		MaxSize:    5, // MB
		MaxBackups: 3,
		MaxAge:     30, // days
	}
	if _, err := os.Stat(logPath); err == nil {
		if err := lj.Rotate(); err != nil {
			return fmt.Errorf("rotate log file: %w", err)
		}
	}
	logFile = lj

	l := log.New()
	l.SetOutput(lj)
	l.SetLevel(log.DebugLevel)
	l.SetFormatter(&log.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000000",
	})
	logger = l
	logger.Infof("=== update client debug log started at %s ===", time.Now().Format(time.RFC3339))

	return nil
}

// SetLevel changes the minimum level written to the log.
func SetLevel(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}
	mu.Lock()
	defer mu.Unlock()
	logger.SetLevel(lvl)
	return nil
}

// Close closes the debug log file if open.
// Safe to call even if logging is disabled.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

// Log writes a debug message if debug logging is enabled.
// Arguments are handled in the manner of fmt.Print.
func Log(v ...any) {
	mu.RLock()
	defer mu.RUnlock()

	if !enabled {
		return
	}
	logger.Debug(v...)
}

// Logf writes a formatted debug message if debug logging is enabled.
// Arguments are handled in the manner of fmt.Printf.
func Logf(format string, v ...any) {
	mu.RLock()
	defer mu.RUnlock()

	if !enabled {
		return
	}
	logger.Debugf(format, v...)
}

// Warnf writes a formatted warning if debug logging is enabled.
func Warnf(format string, v ...any) {
	mu.RLock()
	defer mu.RUnlock()

	if !enabled {
		return
	}
	logger.Warnf(format, v...)
}

// Enabled returns whether debug logging is currently enabled.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// defaultGetLogPath returns the path to the debug log file.
func defaultGetLogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine user home: %w", err)
	}
	return filepath.Join(home, LogDirName, LogFileName), nil
}

// GetLogPath returns the path to the debug log file.
// Exported for use by other packages that need to know where logs are.
func GetLogPath() (string, error) {
	return getLogPath()
}
