package interfaces

import "context"

// -----------------------------------------------------------------------------
// IDataExchanger defines the contract for pushing data to external listeners.
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	// -----------------------------------------------------------------------------
	// Start binds the listener and begins serving sessions.
	Start(ctx context.Context) error

	// -----------------------------------------------------------------------------
	// Stop closes every session and shuts the listener down gracefully.
	Stop(ctx context.Context) error

	// -----------------------------------------------------------------------------
	// ActiveSessions returns the number of connected subscribers.
	ActiveSessions() int
}
