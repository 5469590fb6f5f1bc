// Package session owns the reactive session state for one signed-in (or
// signed-out) user: identity, profile, role and authorization decision.
// All mutation goes through the Holder; everything else reads snapshots.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/harperclay/expensify/internal/auth"
	"github.com/harperclay/expensify/internal/model"
	"github.com/harperclay/expensify/internal/service"
)

// Reconciler is the slice of the authorization core the Holder needs.
type Reconciler interface {
	Reconcile(ctx context.Context, identity model.Identity) (*auth.Result, error)
}

// Snapshot is an immutable view of the session state. The Identity and
// Profile pointers must not be mutated by readers.
type Snapshot struct {
	Loading  bool
	Identity *model.Identity
	Profile  *model.UserProfile
	Role     model.Role
	Allowed  bool

	// Err holds the most recent boundary failure, if any. Prior session
	// state is preserved alongside it so the caller can retry.
	Err error
}

// SignedIn reports whether an identity is present.
func (s Snapshot) SignedIn() bool {
	return s.Identity != nil
}

// Holder is the single writer of session state. It runs the one-time
// startup sequence (pending redirect result, else identity-change
// subscription), exposes the sign-in/sign-out actions, and guarantees that
// a stale reconcile completing late never clobbers fresher state.
type Holder struct {
	mu         sync.Mutex
	gateway    service.IdentityGateway
	reconciler Reconciler
	snap       Snapshot

	// seq numbers identity events in arrival order. A reconcile result is
	// only applied while its event is still the newest; anything else
	// completed out of order and is discarded.
	seq     uint64
	started bool
	unsub   func()
}

// NewHolder creates a Holder in the initial loading state.
func NewHolder(gateway service.IdentityGateway, reconciler Reconciler) *Holder {
	return &Holder{
		gateway:    gateway,
		reconciler: reconciler,
		snap:       Snapshot{Loading: true},
	}
}

// Start runs the one-time startup sequence: consume a pending redirect
// sign-in result if one exists, otherwise subscribe to ongoing
// identity-change notifications. Calling Start more than once is an error.
func (h *Holder) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return fmt.Errorf("session holder already started")
	}
	h.started = true
	h.mu.Unlock()

	identity, err := h.gateway.ConsumePendingRedirectResult(ctx)
	if err != nil {
		// The redirect check failing does not make the session unusable:
		// fall back to the listener, as a page reload would.
		slog.Error("failed to consume redirect result", "error", err)
		identity = nil
	}

	if identity != nil {
		h.handleIdentity(ctx, identity)
		return nil
	}

	h.unsub = h.gateway.OnIdentityChanged(func(id *model.Identity) {
		h.handleIdentity(context.WithoutCancel(ctx), id)
	})

	// No pending result and no notification yet means signed out.
	h.mu.Lock()
	if h.seq == 0 {
		h.snap = signedOut()
	}
	h.mu.Unlock()
	return nil
}

// Snapshot returns the current session state.
func (h *Holder) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snap
}

// SignIn begins a redirect-based sign-in and returns the authorization URL
// the user's browser must visit. On failure to even initiate, loading is
// reset and the failure returned.
func (h *Holder) SignIn(ctx context.Context) (string, error) {
	h.mu.Lock()
	h.snap.Loading = true
	h.mu.Unlock()

	authURL, err := h.gateway.BeginRedirectSignIn(ctx)
	if err != nil {
		h.mu.Lock()
		h.snap.Loading = false
		h.mu.Unlock()
		return "", fmt.Errorf("failed to begin sign-in: %w", err)
	}
	return authURL, nil
}

// SignOut signs the user out at the gateway and clears the session state.
// If the gateway call fails the user is still signed in and prior state is
// kept untouched; the failure is returned, never silently swallowed.
func (h *Holder) SignOut(ctx context.Context) error {
	h.mu.Lock()
	h.snap.Loading = true
	h.mu.Unlock()

	err := h.gateway.SignOut(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.snap.Loading = false
		return fmt.Errorf("failed to sign out: %w", err)
	}

	// Bumping seq invalidates any reconcile still in flight, so a slow
	// stale result cannot resurrect the signed-in state afterwards.
	h.seq++
	h.snap = signedOut()
	return nil
}

// Close unsubscribes from identity-change notifications.
func (h *Holder) Close() {
	h.mu.Lock()
	unsub := h.unsub
	h.unsub = nil
	h.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// handleIdentity processes one identity event: nil clears the session,
// anything else is reconciled. The result is applied only if no newer event
// arrived while the reconcile was running.
func (h *Holder) handleIdentity(ctx context.Context, identity *model.Identity) {
	h.mu.Lock()
	h.seq++
	n := h.seq
	h.snap.Loading = true
	h.mu.Unlock()

	if identity == nil {
		h.mu.Lock()
		if n == h.seq {
			h.snap = signedOut()
		}
		h.mu.Unlock()
		return
	}

	result, err := h.reconciler.Reconcile(ctx, *identity)

	h.mu.Lock()
	defer h.mu.Unlock()
	if n != h.seq {
		slog.Debug("discarding stale reconcile result", "event", n, "latest", h.seq)
		return
	}

	if err != nil {
		// Unknown authorization state: keep whatever we knew before and
		// surface the failure for retry.
		h.snap.Loading = false
		h.snap.Err = err
		return
	}

	h.snap = Snapshot{
		Loading:  false,
		Identity: identity,
		Profile:  result.Profile,
		Role:     result.Role,
		Allowed:  result.Allowed,
	}
}

func signedOut() Snapshot {
	return Snapshot{
		Loading:  false,
		Identity: nil,
		Profile:  nil,
		Role:     model.RoleNone,
		Allowed:  false,
	}
}
