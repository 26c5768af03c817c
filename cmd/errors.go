package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/mblarsen/wsl-notifyd/internal/bus"
)

// handleClientError adds a hint to errors from talking to the bus service.
func handleClientError(err error) error {
	slog.Debug("a bus error occurred", "err", err)
	if errors.Is(err, bus.ErrNotRunning) {
		return fmt.Errorf("%w: start it with 'wsl-notifyd serve' or 'wsl-notifyd daemon install'", err)
	}
	return fmt.Errorf("could not reach the notification service on the session bus: %w", err)
}
