package runtime

import (
	"log/slog"
	"strings"
)

// relayLogWriter is a custom io.Writer that redirects a relay subprocess's
// standard output (stdout/stderr) to the directory's slog.Logger.
// It prefixes each log entry with the group name to keep relays apart.
type relayLogWriter struct {
	logger  *slog.Logger
	prefix  string
	isError bool
}

// Write implements the io.Writer interface. It captures the bytes from the
// subprocess and logs them using the appropriate severity level.
func (w *relayLogWriter) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}

	// Clean the message (remove trailing newlines that subprocesses often add)
	msg := strings.TrimRight(string(p), "\n")

	if w.isError {
		w.logger.Error(msg, "relay", w.prefix)
	} else {
		w.logger.Info(msg, "relay", w.prefix)
	}

	return len(p), nil
}
