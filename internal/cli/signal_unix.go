//go:build !windows

package cli

import (
	"os"
	"syscall"
)

// interruptSignals stop serve and fetch. SIGHUP is included so a server
// started from a closing terminal still shuts down gracefully.
func interruptSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP}
}
