// Package expense records expenses and lists the most recent ones for a
// user. Receipt image upload is a stub that returns placeholder references;
// there is no real image pipeline.
package expense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/harperclay/expensify/internal/model"
	"github.com/harperclay/expensify/internal/service"
)

// RecentLimit is the fixed result cap for recent-expense listings.
const RecentLimit = 50

// MaxVendorLength caps vendor names, in runes.
const MaxVendorLength = 100

// Validation errors, all user-correctable.
var (
	ErrNonPositiveAmount  = errors.New("amount must be positive")
	ErrUnknownCurrency    = errors.New("unsupported currency")
	ErrMissingDate        = errors.New("date is required")
	ErrMissingVendor      = errors.New("vendor is required")
	ErrVendorTooLong      = fmt.Errorf("vendor exceeds %d characters", MaxVendorLength)
	ErrMissingCategory    = errors.New("category is required")
	ErrInvalidExpenseType = errors.New("type must be debit or credit")
	ErrTooManyImages      = fmt.Errorf("at most %d receipt images are allowed", model.MaxReceiptImages)
)

// Store provides expense creation and listing over the document store.
type Store struct {
	storage service.Storage
}

// NewStore creates an expense store backed by the given storage.
func NewStore(storage service.Storage) *Store {
	return &Store{storage: storage}
}

// Create validates and records a new expense owned by ownerID, returning
// its id. CreatedAt/UpdatedAt are stamped by the storage layer.
func (s *Store) Create(ctx context.Context, ownerID string, e model.Expense) (string, error) {
	if err := validate(&e); err != nil {
		return "", err
	}

	e.ID = uuid.NewString()
	e.OwnerID = ownerID

	if err := s.storage.CreateExpense(ctx, e); err != nil {
		return "", fmt.Errorf("failed to create expense: %w", err)
	}

	slog.Info("created expense",
		"owner", ownerID,
		"id", e.ID,
		"amount", e.Amount,
		"currency", e.Currency,
		"vendor", e.Vendor)
	return e.ID, nil
}

// ListRecent returns ownerID's most recent expenses ordered by occurrence
// date descending, capped at RecentLimit.
func (s *Store) ListRecent(ctx context.Context, ownerID string) ([]model.Expense, error) {
	expenses, err := s.storage.ListRecentExpenses(ctx, ownerID, RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	return expenses, nil
}

// Vendors returns the distinct vendor names across ownerID's recent
// expenses, case-insensitively deduplicated and sorted, for autocomplete.
func (s *Store) Vendors(ctx context.Context, ownerID string) ([]string, error) {
	expenses, err := s.storage.ListRecentExpenses(ctx, ownerID, RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	seen := make(map[string]string, len(expenses))
	for _, e := range expenses {
		key := strings.ToLower(e.Vendor)
		if _, ok := seen[key]; !ok {
			seen[key] = e.Vendor
		}
	}

	vendors := make([]string, 0, len(seen))
	for _, v := range seen {
		vendors = append(vendors, v)
	}
	sort.Slice(vendors, func(i, j int) bool {
		return strings.ToLower(vendors[i]) < strings.ToLower(vendors[j])
	})
	return vendors, nil
}

// UploadReceiptImage is the stub upload path: it returns a placeholder
// reference without storing any bytes.
func (s *Store) UploadReceiptImage(_ context.Context, ownerID, filename string) (model.StoredImage, error) {
	if filename == "" {
		filename = "receipt"
	}
	id := uuid.NewString()
	return model.StoredImage{
		ID:          id,
		Name:        filename,
		URL:         "https://placehold.co/400x300.png?text=" + url.QueryEscape(filename),
		StoragePath: fmt.Sprintf("receipts/%s/%s/%s", ownerID, id, filename),
	}, nil
}

func validate(e *model.Expense) error {
	if e.Amount <= 0 {
		return ErrNonPositiveAmount
	}
	if !model.IsSupportedCurrency(e.Currency) {
		return ErrUnknownCurrency
	}
	if e.OccurredOn.IsZero() {
		return ErrMissingDate
	}
	e.Vendor = strings.TrimSpace(e.Vendor)
	if e.Vendor == "" {
		return ErrMissingVendor
	}
	if utf8.RuneCountInString(e.Vendor) > MaxVendorLength {
		return ErrVendorTooLong
	}
	if e.CategoryID == "" {
		return ErrMissingCategory
	}
	if e.Type != model.TypeDebit && e.Type != model.TypeCredit {
		return ErrInvalidExpenseType
	}
	if len(e.Images) > model.MaxReceiptImages {
		return ErrTooManyImages
	}
	return nil
}
