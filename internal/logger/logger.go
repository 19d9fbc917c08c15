package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config defines the configuration for the logger.
type Config struct {
	Level      string    // Log level (e.g., "info", "debug", "error")
	FilePath   string    // Path to the log file; empty disables file logging
	MaxSize    int       // Maximum size in megabytes before log rotation
	MaxBackups int       // Maximum number of old log files to retain
	MaxAge     int       // Maximum number of days to retain old log files
	Compress   bool      // Whether to compress rotated log files
	Console    io.Writer // Optional human-readable console sink, e.g. os.Stderr
	JSON       bool      // JSON lines instead of text in the file
}

// DefaultConfig returns the default Config. FilePath is filled by the caller.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
		JSON:       true,
	}
}

// NewLogger returns a logrus.Logger writing to a rotating file and, when
// configured, to a console. The TUI passes no console so log lines never
// tear the screen.
func NewLogger(config Config) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)

	if config.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	logger.SetOutput(io.Discard)
	if config.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0o755); err != nil {
			return nil, err
		}
		logger.SetOutput(&lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		})
	}

	if config.Console != nil {
		// Console gets its own formatter, so it is attached as a hook.
		logger.AddHook(&consoleHook{
			w:         config.Console,
			formatter: &logrus.TextFormatter{DisableTimestamp: true},
			levels:    logrus.AllLevels[:level+1],
		})
	}

	return logger, nil
}

type consoleHook struct {
	w         io.Writer
	formatter logrus.Formatter
	levels    []logrus.Level
}

func (h *consoleHook) Levels() []logrus.Level { return h.levels }

func (h *consoleHook) Fire(e *logrus.Entry) error {
	b, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = h.w.Write(b)
	return err
}

// WithJob returns a logger entry scoped to one compression job.
func WithJob(logger logrus.FieldLogger, jobID string) *logrus.Entry {
	return logger.WithField("job", jobID)
}

// WithFile returns a logger entry with the specified file context.
func WithFile(logger logrus.FieldLogger, filePath string) *logrus.Entry {
	return logger.WithField("file", filePath)
}
