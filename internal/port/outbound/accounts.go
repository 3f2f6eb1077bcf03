// Package outbound defines the outbound port interfaces for
// collaborators the session engine consults.
package outbound

import "context"

// AccountDirectory answers account-status questions during session
// creation. The engine never stores account state itself.
type AccountDirectory interface {
	// IsAccountLocked reports whether the user is barred from creating
	// sessions.
	IsAccountLocked(ctx context.Context, userID string) (bool, error)

	// IsDeviceTrusted reports whether the fingerprint belongs to a
	// device the user has previously verified.
	IsDeviceTrusted(ctx context.Context, userID, fingerprint string) (bool, error)
}
