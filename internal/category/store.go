// Package category manages the per-user expense category set: a fixed
// built-in list merged at read time with the owner's custom categories.
package category

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/harperclay/expensify/internal/model"
	"github.com/harperclay/expensify/internal/service"
)

// MaxNameLength caps category names, in runes.
const MaxNameLength = 50

var (
	// ErrBuiltinCategory is returned when a caller tries to delete a
	// built-in category; built-ins are not stored per-user.
	ErrBuiltinCategory = errors.New("built-in categories cannot be deleted")

	// ErrEmptyName is returned for blank category names.
	ErrEmptyName = errors.New("category name cannot be empty")

	// ErrNameTooLong is returned for names over MaxNameLength runes.
	ErrNameTooLong = fmt.Errorf("category name exceeds %d characters", MaxNameLength)
)

// Store provides the merged category view over the document store.
type Store struct {
	storage service.Storage
}

// NewStore creates a category store backed by the given storage.
func NewStore(storage service.Storage) *Store {
	return &Store{storage: storage}
}

// List returns the built-in categories merged with ownerID's custom
// categories, sorted by name case-insensitively for stable UI ordering.
// Built-ins and customs are indistinguishable apart from the IsCustom flag.
func (s *Store) List(ctx context.Context, ownerID string) ([]model.Category, error) {
	custom, err := s.storage.ListCustomCategories(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list custom categories: %w", err)
	}

	merged := make([]model.Category, 0, len(model.BuiltinCategories)+len(custom))
	merged = append(merged, model.BuiltinCategories...)
	merged = append(merged, custom...)

	sort.SliceStable(merged, func(i, j int) bool {
		return strings.ToLower(merged[i].Name) < strings.ToLower(merged[j].Name)
	})

	return merged, nil
}

// Create adds a custom category for ownerID and returns its id. Unknown
// icon references are replaced with the fallback icon; the result is always
// marked custom.
func (s *Store) Create(ctx context.Context, ownerID, name string, icon model.IconRef) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", ErrNameTooLong
	}

	cat := model.Category{
		ID:       uuid.NewString(),
		Name:     name,
		IconRef:  model.NormalizeIcon(icon),
		IsCustom: true,
		OwnerID:  ownerID,
	}

	if err := s.storage.CreateCustomCategory(ctx, cat); err != nil {
		return "", fmt.Errorf("failed to create category: %w", err)
	}

	slog.Info("created custom category", "owner", ownerID, "name", name, "id", cat.ID)
	return cat.ID, nil
}

// Delete removes one of ownerID's custom categories. Built-in ids are
// rejected at this boundary. Expenses referencing the category are left
// untouched; there is no referential check.
func (s *Store) Delete(ctx context.Context, ownerID, categoryID string) error {
	if model.IsBuiltinCategoryID(categoryID) {
		return ErrBuiltinCategory
	}

	if err := s.storage.DeleteCustomCategory(ctx, ownerID, categoryID); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}

	slog.Info("deleted custom category", "owner", ownerID, "id", categoryID)
	return nil
}
