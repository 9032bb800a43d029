// Package logging provides the structured logging setup shared by every
// long-lived component (queue, worker, coordinator, evaluator).
//
// Error-level entries are routed to stderr and everything else to stdout,
// so container log collectors can apply different retention/alerting rules
// per stream without parsing log bodies.
package logging

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// streamSplitter routes logrus output to stderr for error level and above,
// stdout otherwise. It recognises the level marker of both the text and the
// JSON formatter.
type streamSplitter struct{}

var stderrMarkers = [][]byte{
	[]byte("level=error"), []byte("level=fatal"), []byte("level=panic"),
	[]byte(`"level":"error"`), []byte(`"level":"fatal"`), []byte(`"level":"panic"`),
}

func (streamSplitter) Write(p []byte) (int, error) {
	for _, m := range stderrMarkers {
		if bytes.Contains(p, m) {
			return os.Stderr.Write(p)
		}
	}
	return os.Stdout.Write(p)
}

// Config controls how New builds a logger.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // "json" or "text"
}

// New builds a logrus.Logger wired to the stream splitter and tagged with a
// component field, matching how the teacher threads a *logrus.Entry through
// its coordinator and worker pool.
func New(component string, cfg Config) *logrus.Entry {
	base := logrus.New()
	base.SetOutput(streamSplitter{})

	if cfg.Format == "json" {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	return base.WithField("component", component)
}
