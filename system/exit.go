package system

import (
	"os"
	"os/signal"
	"syscall"
)

// WaitForOsSignal blocks until the process receives SIGINT or SIGTERM.
func WaitForOsSignal() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
}
