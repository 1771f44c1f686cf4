// Package lifecycle handles process-level shutdown signaling.
package lifecycle

import (
	"os"
	"os/signal"
	"syscall"
)

// WaitForSignal blocks the calling goroutine until an interrupt or
// SIGTERM arrives, then invokes onSignal before returning.
func WaitForSignal(onSignal func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	if onSignal != nil {
		onSignal()
	}
}
