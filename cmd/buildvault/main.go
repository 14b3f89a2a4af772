package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"buildvault/internal/services"
)

// Exit statuses. Stage failures after acquisition do not change the status.
const (
	exitOK      = 0
	exitFailure = 1
	exitSetup   = 2
	exitLocked  = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	err := cmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
	}
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, services.ErrLocked):
		return exitLocked
	case errors.Is(err, services.ErrConfiguration), errors.Is(err, services.ErrStore):
		return exitSetup
	default:
		return exitFailure
	}
}
