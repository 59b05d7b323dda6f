package logger

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus entry so components can add fields without
// touching the global logger.
type Logger struct {
	*logrus.Entry
}

// Options configures a Logger
type Options struct {
	Level  string    // debug, info, warn, error
	Format string    // text or json; empty picks by ENVIRONMENT
	Output io.Writer // defaults to stdout
}

// New builds a Logger. Local environments get a readable text format,
// everything else JSON.
func New(opts Options) *Logger {
	base := logrus.New()

	format := strings.ToLower(opts.Format)
	if format == "" {
		if env := os.Getenv("ENVIRONMENT"); env == "" || env == "local" {
			format = "text"
		} else {
			format = "json"
		}
	}

	if format == "json" {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	} else {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		})
	}

	if opts.Output != nil {
		base.SetOutput(opts.Output)
	} else {
		base.SetOutput(os.Stdout)
	}

	base.SetLevel(parseLevel(opts.Level))

	return &Logger{Entry: logrus.NewEntry(base)}
}

// Discard returns a Logger that drops everything, for tests
func Discard() *Logger {
	return New(Options{Level: "error", Format: "text", Output: io.Discard})
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// WithRequest attaches request metadata
func (l *Logger) WithRequest(r *http.Request) *Logger {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = uuid.New().String()
	}

	return &Logger{Entry: l.WithFields(logrus.Fields{
		"req_id":     reqID,
		"method":     r.Method,
		"path":       r.URL.Path,
		"remote_ip":  r.RemoteAddr,
		"user_agent": r.UserAgent(),
	})}
}

// WithRun scopes log lines to one pipeline run
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{Entry: l.WithField("run_id", runID)}
}

// WithComponent tags log lines with the emitting component
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Entry: l.WithField("component", name)}
}

// WithError standardizes error logging
func (l *Logger) WithError(err error) *logrus.Entry {
	if err == nil {
		return l.Entry
	}
	return l.Entry.WithField("error", err.Error())
}
