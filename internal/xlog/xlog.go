// Package xlog provides the structured loggers used across pagefile,
// bufferpool and record. Each package gets a logger tagged with its own
// "component" field, the structured equivalent of the original
// DaemonDB teacher's fmt.Printf("[BufferPool] ...") tags.
package xlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel adjusts verbosity for every component logger. Tests that want
// to see cache-hit/miss churn call SetLevel(logrus.DebugLevel).
func SetLevel(level logrus.Level) {
	base.SetLevel(level)
}

// For returns a logger entry scoped to the named component.
func For(component string) *logrus.Entry {
	return base.WithField("component", component)
}
