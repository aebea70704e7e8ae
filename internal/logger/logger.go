package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/julianstephens/keepup/internal/constants"
)

// Logger is the process-wide logger. Nil until Init.
var Logger *log.Logger

// Config holds logger configuration
type Config struct {
	// Debug lowers the level to debug and mirrors output to stderr
	Debug bool
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// JSON switches the file format from logfmt-style text to JSON lines
	JSON bool
	// Dir is the directory the rotating log file is written to
	Dir string
}

// File returns the log file path for dir
func File(dir string) string {
	return filepath.Join(dir, constants.AppName+".log")
}

func (c Config) level() (log.Level, error) {
	if c.Debug {
		return log.DebugLevel, nil
	}
	if c.Level == "" {
		return log.InfoLevel, nil
	}
	lvl, err := log.ParseLevel(strings.ToLower(c.Level))
	if err != nil {
		return log.InfoLevel, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	return lvl, nil
}

// Init replaces the global logger. An invalid level still installs a logger
// at info level and returns the error.
func Init(cfg Config) error {
	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return err
	}

	level, levelErr := cfg.level()

	var w io.Writer = &lumberjack.Logger{
		Filename:   File(cfg.Dir),
		MaxSize:    5, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	// Command output stays clean unless debugging
	if cfg.Debug {
		w = io.MultiWriter(os.Stderr, w)
	}

	formatter := log.TextFormatter
	if cfg.JSON {
		formatter = log.JSONFormatter
	}

	Logger = log.NewWithOptions(w, log.Options{
		ReportCaller:    cfg.Debug,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          constants.AppName,
		Formatter:       formatter,
	})
	return levelErr
}

// With returns a child logger carrying keyvals, or a discarding logger before Init
func With(keyvals ...interface{}) *log.Logger {
	if Logger == nil {
		return log.New(io.Discard)
	}
	return Logger.With(keyvals...)
}

func Debug(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Debug(msg, keyvals...)
	}
}

func Info(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Info(msg, keyvals...)
	}
}

func Warn(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Warn(msg, keyvals...)
	}
}

func Error(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Error(msg, keyvals...)
	}
}
