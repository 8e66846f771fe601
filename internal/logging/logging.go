// Package logging sets up the logger of the command.
// Stdout is reserved for outcomes and results, so the log goes to stderr.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Formatter renders an entry in a single line.
// Format: [15:04:05] [info ] message
type Formatter struct{}

// Format renders a single log entry.
func (f *Formatter) Format(entry *log.Entry) ([]byte, error) {
	var buffer *bytes.Buffer
	if entry.Buffer != nil {
		buffer = entry.Buffer
	} else {
		buffer = &bytes.Buffer{}
	}
	level := entry.Level.String()
	if level == "warning" {
		level = "warn"
	}
	message := strings.TrimRight(entry.Message, "\r\n")
	fmt.Fprintf(buffer, "[%s] [%-5s] %s\n", entry.Time.Format("15:04:05"), level, message)
	return buffer.Bytes(), nil
}

// Options represents the logging options.
type Options struct {
	Verbose bool
	// Also writes the log to the file rotated by size, if set.
	File string
}

// New returns a logger.
// Call the returned function to close the log file.
func New(o Options) (*log.Logger, func()) {
	logger := log.New()
	logger.SetFormatter(&Formatter{})
	logger.SetLevel(log.InfoLevel)
	if o.Verbose {
		logger.SetLevel(log.DebugLevel)
	}
	if o.File == "" {
		logger.SetOutput(os.Stderr)
		return logger, func() {}
	}
	w := &lumberjack.Logger{
		Filename:   o.File,
		MaxSize:    1,
		MaxBackups: 1,
	}
	logger.SetOutput(io.MultiWriter(os.Stderr, w))
	return logger, func() { _ = w.Close() }
}

// Logf returns a function to write debug logs, which fits Logf of the library configs.
func Logf(logger *log.Logger) func(format string, args ...interface{}) {
	return func(format string, args ...interface{}) {
		logger.Debugf(format, args...)
	}
}
