// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Init sets level and format ("text" or "json") on the standard logger and
// directs output to w, or stderr when w is nil.
func Init(level, format string, w io.Writer) error {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	var f logrus.Formatter
	switch strings.ToLower(format) {
	case "", "text":
		f = &logrus.TextFormatter{FullTimestamp: true}
	case "json":
		f = &logrus.JSONFormatter{}
	default:
		return fmt.Errorf("log format %q: want text or json", format)
	}

	if w == nil {
		w = os.Stderr
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(f)
	logrus.SetOutput(w)
	return nil
}

// Component returns an entry tagged with the component name
func Component(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}
