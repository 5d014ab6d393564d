package logger

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/natefinch/lumberjack.v2"
)

var rotator *lumberjack.Logger

// DefaultPath is ~/Library/Logs/vsplit.log on macOS and
// ~/.local/state/vsplit/vsplit.log elsewhere.
func DefaultPath() string {
	return defaultPath(runtime.GOOS)
}

func defaultPath(goos string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "vsplit.log"
	}
	if goos == "darwin" {
		return filepath.Join(home, "Library", "Logs", "vsplit.log")
	}
	return filepath.Join(home, ".local", "state", "vsplit", "vsplit.log")
}

// Setup sends the standard logger to stdout and a rotated file.
func Setup(logFilePath string) string {
	if logFilePath == "" {
		logFilePath = DefaultPath()
	}
	_ = os.MkdirAll(filepath.Dir(logFilePath), 0755)

	rotator = &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     7,    // days
		Compress:   true, // gzip
	}

	mw := io.MultiWriter(os.Stdout, rotator)

	log.SetOutput(mw)
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	return logFilePath
}

// MuteStdout keeps only the file output, used while a TUI owns the terminal.
func MuteStdout() {
	if rotator != nil {
		log.SetOutput(rotator)
	}
}

// Close flushes the rotated file.
func Close() error {
	if rotator == nil {
		return nil
	}
	return rotator.Close()
}
