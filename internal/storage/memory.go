package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harperclay/expensify/internal/common"
	"github.com/harperclay/expensify/internal/model"
)

// MemoryStorage is an in-memory implementation of the storage contract. It
// backs unit tests and the `serve --dev` mode; semantics mirror
// MongoStorage, including server-side timestamp stamping.
type MemoryStorage struct {
	mu         sync.RWMutex
	allowList  map[string]model.AllowListEntry
	profiles   map[string]model.UserProfile
	categories map[string]model.Category
	expenses   map[string]model.Expense

	// Now supplies the "server" clock; tests may replace it.
	Now func() time.Time
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		allowList:  make(map[string]model.AllowListEntry),
		profiles:   make(map[string]model.UserProfile),
		categories: make(map[string]model.Category),
		expenses:   make(map[string]model.Expense),
		Now:        time.Now,
	}
}

// GetAllowListEntry returns the entry for email, or (nil, nil) when absent.
func (s *MemoryStorage) GetAllowListEntry(_ context.Context, email string) (*model.AllowListEntry, error) {
	if err := validateString(email, "email"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.allowList[email]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// PutAllowListEntry inserts or replaces an allow-list entry.
func (s *MemoryStorage) PutAllowListEntry(_ context.Context, entry model.AllowListEntry) error {
	if err := validateString(entry.Email, "email"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowList[entry.Email] = entry
	return nil
}

// DeleteAllowListEntry removes an allow-list entry.
func (s *MemoryStorage) DeleteAllowListEntry(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.allowList[email]; !ok {
		return fmt.Errorf("%w: allow-list entry %q", common.ErrNotFound, email)
	}
	delete(s.allowList, email)
	return nil
}

// ListAllowListEntries returns all entries ordered by email.
func (s *MemoryStorage) ListAllowListEntries(_ context.Context) ([]model.AllowListEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]model.AllowListEntry, 0, len(s.allowList))
	for _, e := range s.allowList {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Email < entries[j].Email })
	return entries, nil
}

// GetProfile returns the profile for id, or (nil, nil) when absent.
func (s *MemoryStorage) GetProfile(_ context.Context, id string) (*model.UserProfile, error) {
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// CreateProfile stores a new profile, stamping LastLoginAt. CreatedAt is
// stamped only when no profile exists yet; a duplicate create never
// re-stamps it.
func (s *MemoryStorage) CreateProfile(_ context.Context, profile model.UserProfile) error {
	if err := validateString(profile.ID, "profile.ID"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.Now()
	if existing, ok := s.profiles[profile.ID]; ok {
		profile.CreatedAt = existing.CreatedAt
	} else {
		profile.CreatedAt = now
	}
	profile.LastLoginAt = now
	s.profiles[profile.ID] = profile
	return nil
}

// MergeProfile refreshes identity fields, role and LastLoginAt of an
// existing profile; CreatedAt is preserved.
func (s *MemoryStorage) MergeProfile(_ context.Context, profile model.UserProfile) error {
	if err := validateString(profile.ID, "profile.ID"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.profiles[profile.ID]
	if !ok {
		return fmt.Errorf("%w: profile %q", common.ErrNotFound, profile.ID)
	}

	existing.Email = profile.Email
	existing.DisplayName = profile.DisplayName
	existing.AvatarURL = profile.AvatarURL
	existing.Role = profile.Role
	existing.LastLoginAt = s.Now()
	s.profiles[profile.ID] = existing
	return nil
}

// ListCustomCategories returns the owner's custom categories ordered by name.
func (s *MemoryStorage) ListCustomCategories(_ context.Context, ownerID string) ([]model.Category, error) {
	if err := validateString(ownerID, "ownerID"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var categories []model.Category
	for _, c := range s.categories {
		if c.OwnerID == ownerID {
			categories = append(categories, c)
		}
	}
	sort.Slice(categories, func(i, j int) bool {
		return strings.ToLower(categories[i].Name) < strings.ToLower(categories[j].Name)
	})
	return categories, nil
}

// CreateCustomCategory stores a custom category with a stamped CreatedAt.
func (s *MemoryStorage) CreateCustomCategory(_ context.Context, category model.Category) error {
	if err := validateString(category.ID, "category.ID"); err != nil {
		return err
	}
	if err := validateString(category.OwnerID, "category.OwnerID"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	category.IsCustom = true
	category.CreatedAt = s.Now()
	s.categories[category.ID] = category
	return nil
}

// DeleteCustomCategory removes one of the owner's custom categories.
func (s *MemoryStorage) DeleteCustomCategory(_ context.Context, ownerID, categoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[categoryID]
	if !ok || c.OwnerID != ownerID {
		return fmt.Errorf("%w: category %q", common.ErrNotFound, categoryID)
	}
	delete(s.categories, categoryID)
	return nil
}

// CreateExpense stores a new expense, stamping CreatedAt and UpdatedAt.
func (s *MemoryStorage) CreateExpense(_ context.Context, expense model.Expense) error {
	if err := validateString(expense.ID, "expense.ID"); err != nil {
		return err
	}
	if err := validateString(expense.OwnerID, "expense.OwnerID"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.Now()
	expense.CreatedAt = now
	expense.UpdatedAt = now
	s.expenses[expense.ID] = expense
	return nil
}

// ListRecentExpenses returns the owner's expenses by occurrence date
// descending, capped at limit.
func (s *MemoryStorage) ListRecentExpenses(_ context.Context, ownerID string, limit int) ([]model.Expense, error) {
	if err := validateString(ownerID, "ownerID"); err != nil {
		return nil, err
	}
	if err := validateLimit(limit); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var expenses []model.Expense
	for _, e := range s.expenses {
		if e.OwnerID == ownerID {
			expenses = append(expenses, e)
		}
	}
	sort.Slice(expenses, func(i, j int) bool {
		if !expenses[i].OccurredOn.Equal(expenses[j].OccurredOn) {
			return expenses[i].OccurredOn.After(expenses[j].OccurredOn)
		}
		return expenses[i].CreatedAt.After(expenses[j].CreatedAt)
	})
	if len(expenses) > limit {
		expenses = expenses[:limit]
	}
	return expenses, nil
}

// Ping always succeeds.
func (s *MemoryStorage) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStorage) Close(_ context.Context) error { return nil }
