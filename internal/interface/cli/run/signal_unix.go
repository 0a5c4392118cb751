//go:build !windows
// +build !windows

package run

import (
	"os"
	"syscall"
)

// getSignalsToHandle returns the signals that cancel a run on Unix systems.
// The in-flight stage finishes or is interrupted; state stays resumable.
func getSignalsToHandle() []os.Signal {
	return []os.Signal{
		os.Interrupt,    // Ctrl+C (SIGINT)
		syscall.SIGTERM, // kill command
	}
}
