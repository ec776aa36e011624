package main

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"doclingd/internal/session"
)

// newLogger builds the process logger from log_level and log_format.
func newLogger(level, format string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if strings.EqualFold(format, "json") {
		return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	}
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(cw).Level(lvl).With().Timestamp().Logger()
}

// logPublisher forwards session events to the log at debug level.
type logPublisher struct {
	log zerolog.Logger
}

func (p logPublisher) Publish(e session.Event) {
	p.log.Debug().Str("model", e.ModelID).Fields(e.Fields).Msg(e.Name)
}
