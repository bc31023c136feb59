package app

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions select where and how the global logger writes.
type LogOptions struct {
	Verbose bool
	JSON    bool
	// File, when set, receives a JSON copy of every record and is rotated
	// by size.
	File string
	// Out defaults to os.Stderr.
	Out io.Writer
}

const (
	logMaxSizeMB  = 100
	logMaxBackups = 5
	logMaxAgeDays = 30
)

// SetupLogging configures the global zerolog logger. The returned closer
// releases the log file, if any.
func SetupLogging(opts LogOptions) io.Closer {
	zerolog.TimeFieldFormat = time.RFC3339
	if opts.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	var console io.Writer = out
	if !opts.JSON {
		console = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	if opts.File == "" {
		log.Logger = zerolog.New(console).With().Timestamp().Logger()
		return nopCloser{}
	}
	file := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
		MaxAge:     logMaxAgeDays,
		Compress:   true,
	}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(console, file)).With().Timestamp().Logger()
	return file
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
