package common

import (
	"io"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
)

// LogHandler returns the apex/log handler for format ("text", "json" or "cli").
// Unknown formats fall back to text.
func LogHandler(format string, w io.Writer) log.Handler {
	switch format {
	case "json":
		return json.New(w)
	case "cli":
		return cli.New(w)
	default:
		return text.New(w)
	}
}

// SetupLogging installs the default apex/log handler and level.
func SetupLogging(level, format string) {
	log.SetHandler(LogHandler(format, os.Stderr))
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("Unknown log level %q, using info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
