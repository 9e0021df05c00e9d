// Package logging builds the agent's logger: one logrus instance writing
// "timestamp - LEVEL - message" lines to stdout and to a size-rotated file.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	DefaultFile = "/var/log/agent_monitor.log"

	MaxSizeMB  = 5
	MaxBackups = 3

	TimestampFormat = "2006-01-02 15:04:05.000"
)

type Options struct {
	File    string
	Level   string
	Console io.Writer // defaults to os.Stdout
}

// Logger wraps the logrus instance together with the rotating file handle so
// the file can be flushed and closed on shutdown.
type Logger struct {
	*logrus.Logger
	file *lumberjack.Logger
}

// New builds a Logger. When the log file cannot be opened the logger falls
// back to console only and reports the problem through the returned logger.
func New(opts Options) *Logger {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	l := logrus.New()
	l.SetFormatter(&LineFormatter{TimestampFormat: TimestampFormat})
	l.SetLevel(ParseLevel(opts.Level))

	out := &Logger{Logger: l}
	if opts.File == "" {
		l.SetOutput(console)
		return out
	}

	if err := probeFile(opts.File); err != nil {
		l.SetOutput(console)
		l.WithError(err).Warnf("cannot write log file %s, logging to console only", opts.File)
		return out
	}

	out.file = &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    MaxSizeMB,
		MaxBackups: MaxBackups,
	}
	l.SetOutput(io.MultiWriter(out.file, console))
	return out
}

// Close releases the rotating file. Safe on a console-only logger.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel maps a config string to a logrus level, defaulting to info.
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

func probeFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	return f.Close()
}

// LineFormatter renders entries as "timestamp - LEVEL - message", followed by
// the entry fields as sorted key=value pairs.
type LineFormatter struct {
	TimestampFormat string
}

func (f *LineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	b := e.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	tsFormat := f.TimestampFormat
	if tsFormat == "" {
		tsFormat = TimestampFormat
	}
	b.WriteString(e.Time.Format(tsFormat))
	b.WriteString(" - ")
	b.WriteString(levelName(e.Level))
	b.WriteString(" - ")
	b.WriteString(e.Message)

	if len(e.Data) > 0 {
		keys := make([]string, 0, len(e.Data))
		for k := range e.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(b, "%s=%v", k, e.Data[k])
		}
		b.WriteByte(']')
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func levelName(l logrus.Level) string {
	if l == logrus.WarnLevel {
		return "WARNING"
	}
	return strings.ToUpper(l.String())
}
