// Package auth implements the authorization and profile-reconciliation flow:
// given a freshly authenticated identity, decide whether the user may use
// the application, which role they hold, and create or merge their durable
// profile record.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/harperclay/expensify/internal/model"
	"github.com/harperclay/expensify/internal/service"
)

// Result is the outcome of reconciling one identity.
type Result struct {
	// Profile is the persisted profile when Allowed, an ephemeral
	// non-persisted view when denied, and nil when the identity carries
	// no email at all.
	Profile *model.UserProfile

	Allowed bool
	Role    model.Role
}

// Reconciler derives an authorization decision and a durable profile from an
// authenticated identity. It is safe for concurrent use.
type Reconciler struct {
	store service.Storage
	nowFn func() time.Time
}

// NewReconciler creates a Reconciler backed by the given storage.
func NewReconciler(store service.Storage) *Reconciler {
	return &Reconciler{
		store: store,
		nowFn: time.Now,
	}
}

// Reconcile decides allow/deny plus role for identity and, when allowed,
// creates or merges the durable profile record keyed by the identity id.
//
// The operation is idempotent: repeated calls with the same identity and
// unchanged allow-list state converge to the same persisted role, email and
// display name, with CreatedAt stable after the first call and LastLoginAt
// advancing monotonically.
//
// A non-nil error means the authorization state is unknown (a boundary
// failed); it is never a denial. Denial only comes from a confirmed
// allow-list miss, and never mutates the store.
func (r *Reconciler) Reconcile(ctx context.Context, identity model.Identity) (*Result, error) {
	// An identity without a verifiable email can never be authorized,
	// regardless of allow-list content.
	if identity.Email == "" {
		slog.Warn("identity has no email address, denying", "id", identity.ID)
		return &Result{Profile: nil, Allowed: false, Role: model.RoleNone}, nil
	}

	entry, err := r.store.GetAllowListEntry(ctx, identity.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up allow-list entry: %w", err)
	}

	if entry == nil {
		slog.Warn("sign-in denied: email not allow-listed", "email", identity.Email)
		// Ephemeral, never-persisted view so the UI can still show who
		// attempted to sign in.
		now := r.nowFn()
		return &Result{
			Profile: &model.UserProfile{
				ID:          identity.ID,
				Email:       identity.Email,
				DisplayName: identity.DisplayName,
				AvatarURL:   identity.AvatarURL,
				Role:        model.RoleNone,
				CreatedAt:   now,
				LastLoginAt: now,
			},
			Allowed: false,
			Role:    model.RoleNone,
		}, nil
	}

	profile := model.UserProfile{
		ID:          identity.ID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		AvatarURL:   identity.AvatarURL,
		Role:        entry.Role,
	}

	existing, err := r.store.GetProfile(ctx, identity.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up profile: %w", err)
	}

	if existing == nil {
		if err := r.store.CreateProfile(ctx, profile); err != nil {
			return nil, fmt.Errorf("failed to create profile: %w", err)
		}
		slog.Info("created profile", "id", identity.ID, "role", entry.Role)
	} else {
		if err := r.store.MergeProfile(ctx, profile); err != nil {
			return nil, fmt.Errorf("failed to merge profile: %w", err)
		}
		slog.Debug("merged profile", "id", identity.ID, "role", entry.Role)
	}

	// Re-read so the returned profile carries the server-resolved
	// timestamps instead of anything derived from this process's clock.
	persisted, err := r.store.GetProfile(ctx, identity.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read profile: %w", err)
	}
	if persisted == nil {
		return nil, fmt.Errorf("profile %q missing after write", identity.ID)
	}

	return &Result{Profile: persisted, Allowed: true, Role: entry.Role}, nil
}
