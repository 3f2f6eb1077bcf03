package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/device"
	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/geo"
)

func testBinding(bindingID, sessionID string) *device.Binding {
	return &device.Binding{
		BindingID:   bindingID,
		SessionID:   sessionID,
		UserID:      "user-1",
		Fingerprint: "fp-0123456789abcdef",
		IP:          "203.0.113.10",
		UserAgent:   "Mozilla/5.0",
		Location:    &geo.Location{Country: "US", City: "New York", Latitude: 40.71, Longitude: -74.0},
		CreatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		TrustLevel:  device.TrustTrusted,
	}
}

func TestBindingStore_RegisterAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewBindingStore()

	b := testBinding("bind-1", "sess-1")
	if err := store.Register(ctx, b); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	got, err := store.Get(ctx, "bind-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.SessionID != "sess-1" || got.TrustLevel != device.TrustTrusted {
		t.Errorf("got session %q trust %q", got.SessionID, got.TrustLevel)
	}

	// Mutating the returned copy must not leak into the store.
	got.Location.Country = "GB"
	again, _ := store.Get(ctx, "bind-1")
	if again.Location.Country != "US" {
		t.Error("store returned a shared Location pointer")
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, device.ErrBindingNotFound) {
		t.Errorf("Get() missing error = %v, want ErrBindingNotFound", err)
	}
}

func TestBindingStore_RegisterReplaces(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewBindingStore()

	if err := store.Register(ctx, testBinding("bind-1", "sess-1")); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	// Re-register the same binding attached to a new session.
	moved := testBinding("bind-1", "sess-2")
	moved.TrustLevel = device.TrustUnknown
	if err := store.Register(ctx, moved); err != nil {
		t.Fatalf("Register() replace error: %v", err)
	}

	got, err := store.Get(ctx, "bind-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.SessionID != "sess-2" || got.TrustLevel != device.TrustUnknown {
		t.Errorf("replacement not stored: session %q trust %q", got.SessionID, got.TrustLevel)
	}

	// The old session must no longer own the binding.
	if err := store.RemoveBySession(ctx, "sess-1"); err != nil {
		t.Fatalf("RemoveBySession() error: %v", err)
	}
	if _, err := store.Get(ctx, "bind-1"); err != nil {
		t.Errorf("binding removed through its old session: %v", err)
	}
}

func TestBindingStore_RemoveBySession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewBindingStore()

	if err := store.Register(ctx, testBinding("bind-1", "sess-1")); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if err := store.Register(ctx, testBinding("bind-2", "sess-1")); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if err := store.Register(ctx, testBinding("bind-3", "sess-2")); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	if err := store.RemoveBySession(ctx, "sess-1"); err != nil {
		t.Fatalf("RemoveBySession() error: %v", err)
	}

	for _, id := range []string{"bind-1", "bind-2"} {
		if _, err := store.Get(ctx, id); !errors.Is(err, device.ErrBindingNotFound) {
			t.Errorf("Get(%q) after removal error = %v, want ErrBindingNotFound", id, err)
		}
	}
	if _, err := store.Get(ctx, "bind-3"); err != nil {
		t.Errorf("another session's binding was removed: %v", err)
	}

	// Removing a session with no bindings is not an error.
	if err := store.RemoveBySession(ctx, "sess-gone"); err != nil {
		t.Errorf("RemoveBySession() empty session error: %v", err)
	}
}
