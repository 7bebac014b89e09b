package observability

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ConfigureLogging sets the global logrus level and formatter.
// An unknown level falls back to info; verbose forces debug.
func ConfigureLogging(level, format string, verbose bool, out io.Writer) {
	if out == nil {
		out = os.Stderr
	}
	log.SetOutput(out)

	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	if verbose {
		lvl = log.DebugLevel
	}
	log.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
