//go:build !windows

package main

import (
	"os"
	"syscall"
)

// resumeSignals trigger an update check, e.g. after a suspended session
var resumeSignals = []os.Signal{syscall.SIGCONT, syscall.SIGUSR1}
