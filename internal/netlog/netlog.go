// Package netlog configures the process-wide structured logger used by
// every component of the mesh session layer, so that transport warnings
// (accept collisions, bind failures), packet drops, and disconnects all
// land in one place with consistent formatting.
package netlog

import (
	"fmt"
	"os"

	"github.com/phuslu/log"
)

// Setup installs a console logger at the given level. Call it once at
// process start; components log through the package-level helpers below
// regardless of whether Setup was called (an un-configured logger still
// writes to stderr at info level).
func Setup(level log.Level) {
	log.DefaultLogger = log.Logger{
		Level:  level,
		Caller: 1,
		Writer: &log.ConsoleWriter{Writer: os.Stderr},
	}
}

// Info logs an informational message, printf-style.
func Info(format string, args ...interface{}) {
	log.Info().Msg(fmt.Sprintf(format, args...))
}

// Warn logs a recoverable problem — an accept collision, a dropped
// packet, a disconnected peer.
func Warn(format string, args ...interface{}) {
	log.Warn().Msg(fmt.Sprintf(format, args...))
}

// Error logs a problem that aborted one operation but not the process.
func Error(format string, args ...interface{}) {
	log.Error().Msg(fmt.Sprintf(format, args...))
}

// Fatal logs an invariant violation and terminates the process, matching
// the core's policy of aborting on a packet whose source player id
// couldn't have survived codec authentication.
func Fatal(format string, args ...interface{}) {
	log.Fatal().Msg(fmt.Sprintf(format, args...))
}
