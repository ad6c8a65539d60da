package logging

import (
	"io"
	"log"
	"os"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// MakeDefaultLoggers returns Loggers that write timestamped lines to stdout, except for errors
// which go to stderr. Debug output is disabled until the configured level says otherwise.
func MakeDefaultLoggers() ldlog.Loggers {
	loggers := ldlog.NewDefaultLoggers()
	loggers.SetBaseLogger(newLog(os.Stdout))
	loggers.SetBaseLoggerForLevel(ldlog.Error, newLog(os.Stderr))
	loggers.SetMinLevel(ldlog.Info)
	return loggers
}

func newLog(w io.Writer) *log.Logger {
	return log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds)
}
