package memory

import (
	"context"
	"testing"
)

func TestAccountDirectory_Locks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := NewAccountDirectory([]string{"mallory"}, nil)

	locked, err := dir.IsAccountLocked(ctx, "mallory")
	if err != nil || !locked {
		t.Errorf("IsAccountLocked(mallory) = %v, %v, want true", locked, err)
	}
	locked, err = dir.IsAccountLocked(ctx, "alice")
	if err != nil || locked {
		t.Errorf("IsAccountLocked(alice) = %v, %v, want false", locked, err)
	}

	dir.LockAccount("alice")
	if locked, _ = dir.IsAccountLocked(ctx, "alice"); !locked {
		t.Error("alice should be locked after LockAccount")
	}
	dir.UnlockAccount("alice")
	if locked, _ = dir.IsAccountLocked(ctx, "alice"); locked {
		t.Error("alice should be unlocked after UnlockAccount")
	}
}

func TestAccountDirectory_DeviceTrust(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	// No provisioned fingerprints: everything is trusted.
	open := NewAccountDirectory(nil, nil)
	if trusted, err := open.IsDeviceTrusted(ctx, "alice", "fp-anything"); err != nil || !trusted {
		t.Errorf("open directory trust = %v, %v, want true", trusted, err)
	}

	// Provisioned fingerprints: only listed devices are trusted.
	strict := NewAccountDirectory(nil, []string{"fp-known"})
	if trusted, _ := strict.IsDeviceTrusted(ctx, "alice", "fp-known"); !trusted {
		t.Error("fp-known should be trusted")
	}
	if trusted, _ := strict.IsDeviceTrusted(ctx, "alice", "fp-other"); trusted {
		t.Error("fp-other should not be trusted")
	}

	strict.TrustDevice("fp-other")
	if trusted, _ := strict.IsDeviceTrusted(ctx, "alice", "fp-other"); !trusted {
		t.Error("fp-other should be trusted after TrustDevice")
	}
}
