package memory

import (
	"context"
	"sync"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/port/outbound"
)

// AccountDirectory answers account-status questions from fixed sets,
// for deployments where lock state and device trust are provisioned by
// configuration rather than an external identity service. An empty
// trusted set treats every device as trusted; a non-empty set trusts
// only the listed fingerprints.
type AccountDirectory struct {
	mu      sync.RWMutex
	locked  map[string]struct{}
	trusted map[string]struct{}
}

// NewAccountDirectory builds a directory from the provisioned sets.
func NewAccountDirectory(lockedUsers, trustedDevices []string) *AccountDirectory {
	d := &AccountDirectory{
		locked:  make(map[string]struct{}, len(lockedUsers)),
		trusted: make(map[string]struct{}, len(trustedDevices)),
	}
	for _, u := range lockedUsers {
		d.locked[u] = struct{}{}
	}
	for _, fp := range trustedDevices {
		d.trusted[fp] = struct{}{}
	}
	return d
}

// IsAccountLocked reports whether the user is barred from creating sessions.
func (d *AccountDirectory) IsAccountLocked(ctx context.Context, userID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, locked := d.locked[userID]
	return locked, nil
}

// IsDeviceTrusted reports whether the fingerprint belongs to a verified
// device. With no provisioned fingerprints every device is trusted.
func (d *AccountDirectory) IsDeviceTrusted(ctx context.Context, userID, fingerprint string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if len(d.trusted) == 0 {
		return true, nil
	}
	_, trusted := d.trusted[fingerprint]
	return trusted, nil
}

// LockAccount bars the user from creating sessions.
func (d *AccountDirectory) LockAccount(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.locked[userID] = struct{}{}
}

// UnlockAccount clears the user's lock.
func (d *AccountDirectory) UnlockAccount(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.locked, userID)
}

// TrustDevice adds a fingerprint to the trusted set.
func (d *AccountDirectory) TrustDevice(fingerprint string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.trusted[fingerprint] = struct{}{}
}

// Compile-time interface verification.
var _ outbound.AccountDirectory = (*AccountDirectory)(nil)
