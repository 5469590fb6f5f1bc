// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/harperclay/expensify/internal/model"
)

// Storage defines the contract for the document-store persistence layer.
//
// Lookup methods return (nil, nil) when the requested record does not exist;
// an error always means the store itself could not answer, never "absent".
// Callers depend on that distinction: an authorization denial may only be
// derived from a confirmed miss.
type Storage interface {
	// Allow-list operations. The entries are administrator-provisioned;
	// the sign-in flow only ever reads them.
	GetAllowListEntry(ctx context.Context, email string) (*model.AllowListEntry, error)
	PutAllowListEntry(ctx context.Context, entry model.AllowListEntry) error
	DeleteAllowListEntry(ctx context.Context, email string) error
	ListAllowListEntries(ctx context.Context) ([]model.AllowListEntry, error)

	// Profile operations. CreateProfile and MergeProfile stamp timestamps
	// server-side: CreateProfile sets both CreatedAt and LastLoginAt,
	// MergeProfile refreshes LastLoginAt and must never touch CreatedAt.
	GetProfile(ctx context.Context, id string) (*model.UserProfile, error)
	CreateProfile(ctx context.Context, profile model.UserProfile) error
	MergeProfile(ctx context.Context, profile model.UserProfile) error

	// Custom category operations, always scoped to one owner.
	ListCustomCategories(ctx context.Context, ownerID string) ([]model.Category, error)
	CreateCustomCategory(ctx context.Context, category model.Category) error
	DeleteCustomCategory(ctx context.Context, ownerID, categoryID string) error

	// Expense operations, always scoped to one owner.
	CreateExpense(ctx context.Context, expense model.Expense) error
	ListRecentExpenses(ctx context.Context, ownerID string, limit int) ([]model.Expense, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// IdentityGateway is the external identity provider boundary. Sign-in is
// redirect-based: BeginRedirectSignIn returns the URL the user's browser
// must visit; the flow resumes later via ConsumePendingRedirectResult.
type IdentityGateway interface {
	// BeginRedirectSignIn starts a redirect sign-in and returns the
	// authorization URL to send the user to.
	BeginRedirectSignIn(ctx context.Context) (string, error)

	// SignOut ends the provider session. On error the user must be treated
	// as still signed in.
	SignOut(ctx context.Context) error

	// ConsumePendingRedirectResult returns the identity produced by a
	// completed redirect sign-in, or (nil, nil) when none is pending.
	// The result is consumed: a second call returns nothing.
	ConsumePendingRedirectResult(ctx context.Context) (*model.Identity, error)

	// OnIdentityChanged registers a callback invoked on every identity
	// change, including sign-out (nil identity). The returned function
	// unsubscribes the callback.
	OnIdentityChanged(fn func(identity *model.Identity)) (unsubscribe func())
}

// RetryOptions configures retry behavior for boundary operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
