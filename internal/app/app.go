package app

import (
	"context"
)

// App is the running client: a connected wire with its inbound protocol
// handlers started.
type App struct {
	*Wire
}

// Start connects the transport and begins serving inbound pairing and
// session traffic. Handlers stop when ctx is cancelled.
func Start(ctx context.Context, w *Wire) (*App, error) {
	if err := w.Network.Connect(ctx); err != nil {
		return nil, err
	}
	w.Pairings.Start(ctx)
	w.Sessions.Start(ctx)
	return &App{Wire: w}, nil
}

// Close disconnects the transport.
func (a *App) Close() error {
	return a.Network.Disconnect()
}
