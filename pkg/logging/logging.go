// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	LogFile      = "notecal.log"
	ErrorLogFile = "sync-errors.log"
)

// Options controls Setup.
type Options struct {
	// Dir holds the log files.
	Dir string
	// Path overrides Dir/LogFile.
	Path    string
	Verbose bool
	// Console receives human-readable output. Nil means stderr.
	Console io.Writer
}

// Setup points the global logger at a rotating file and the console. The
// console only shows warnings unless Verbose is set. The returned closer
// flushes the file.
func Setup(opts Options) io.Closer {
	path := opts.Path
	if path == "" {
		path = filepath.Join(opts.Dir, LogFile)
	}
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    5,
		MaxBackups: 3,
		MaxAge:     30,
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	consoleLevel := zerolog.WarnLevel
	if opts.Verbose {
		consoleLevel = zerolog.DebugLevel
	}

	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(
		file,
		levelWriter{
			Writer: zerolog.ConsoleWriter{Out: console, TimeFormat: "15:04:05"},
			min:    consoleLevel,
		},
	)).With().Timestamp().Caller().Logger()
	return file
}

// NewErrorLog opens the append-only per-task error log in dir.
func NewErrorLog(dir string) (*lumberjack.Logger, string) {
	path := filepath.Join(dir, ErrorLogFile)
	return &lumberjack.Logger{Filename: path, MaxSize: 1, MaxBackups: 2}, path
}

type levelWriter struct {
	io.Writer
	min zerolog.Level
}

func (w levelWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l < w.min {
		return len(p), nil
	}
	return w.Write(p)
}
