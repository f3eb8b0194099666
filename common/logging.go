package common

// Log output routing: error-level lines go to stderr, everything else
// to stdout, so container orchestrators and shell pipelines can treat
// the two streams differently. The package-level Logger is the default
// instance the CLI and background workers share; components that need
// per-subsystem fields derive entries from it via WithField.

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes log lines to stdout or stderr by inspecting
// the rendered level field.
type OutputSplitter struct{}

// Write sends error-level lines to stderr and everything else to
// stdout. Safe for concurrent use: it only reads p and writes to the
// OS streams.
func (splitter *OutputSplitter) Write(p []byte) (n int, err error) {
	if bytes.Contains(p, []byte("level=error")) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the shared default logger, pre-wired with the
// OutputSplitter. Deployment-specific formatting and level changes
// apply here once and take effect everywhere.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
}
