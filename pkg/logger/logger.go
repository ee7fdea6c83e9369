package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/studyhub/studyfeed/pkg/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger *log.Logger
var rotator *lumberjack.Logger

// Init initializes the logger
func Init(verbose bool) {
	logLevel := parseLevel(config.GetString("log.level"))
	if verbose {
		logLevel = log.DebugLevel
	}

	logger = log.NewWithOptions(openWriter(config.GetString("log.file")), log.Options{
		ReportTimestamp: true,
		Level:           logLevel,
	})
}

// InitWithWriter points the logger at w, mainly for tests.
func InitWithWriter(w io.Writer, level log.Level) {
	logger = log.NewWithOptions(w, log.Options{Level: level})
}

func openWriter(logFile string) io.Writer {
	if logFile == "" {
		return os.Stderr
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0700); err != nil {
		// If we can't create the log directory, just log to stderr
		return os.Stderr
	}

	rotator = &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    config.GetInt("log.max_size_mb"),
		MaxBackups: config.GetInt("log.max_backups"),
		MaxAge:     config.GetInt("log.max_age_days"),
		Compress:   true,
	}
	return rotator
}

func parseLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Close flushes and closes the rotating log file
func Close() error {
	if rotator != nil {
		return rotator.Close()
	}
	return nil
}

// Debug logs a debug message
func Debug(msg string, args ...interface{}) {
	if logger != nil {
		logger.Debug(msg, args...)
	}
}

// Info logs an info message
func Info(msg string, args ...interface{}) {
	if logger != nil {
		logger.Info(msg, args...)
	}
}

// Warn logs a warning message
func Warn(msg string, args ...interface{}) {
	if logger != nil {
		logger.Warn(msg, args...)
	}
}

// Error logs an error message
func Error(msg string, args ...interface{}) {
	if logger != nil {
		logger.Error(msg, args...)
	}
}

// Fatal logs a fatal message and exits
func Fatal(msg string, args ...interface{}) {
	if logger != nil {
		logger.Fatal(msg, args...)
	} else {
		os.Exit(1)
	}
}

// GetLogger returns the logger instance
func GetLogger() *log.Logger {
	return logger
}
