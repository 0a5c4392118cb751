//go:build windows
// +build windows

package run

import (
	"os"
)

// getSignalsToHandle returns the signals that cancel a run on Windows
func getSignalsToHandle() []os.Signal {
	return []os.Signal{
		os.Interrupt, // Ctrl+C
	}
}
