package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vbonduro/domeok/internal/domain"
)

// ingredientRepository is the subset of store.IngredientStore that
// PantryService requires.
type ingredientRepository interface {
	Create(ctx context.Context, userID string, names []string, purchaseDate time.Time) ([]*domain.Ingredient, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Ingredient, error)
	SoftDelete(ctx context.Context, userID string, id int64) error
}

// PantryService keeps the user's ingredient inventory, the context the
// assistant recommends from.
type PantryService struct {
	store  ingredientRepository
	logger *slog.Logger
}

func NewPantryService(store ingredientRepository, logger *slog.Logger) *PantryService {
	return &PantryService{store: store, logger: logger}
}

// AddIngredients stores the given names, trimmed, skipping blanks and
// repeats. A zero purchaseDate means today.
func (s *PantryService) AddIngredients(ctx context.Context, userID string, names []string, purchaseDate time.Time) ([]*domain.Ingredient, error) {
	seen := make(map[string]struct{}, len(names))
	clean := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		clean = append(clean, n)
	}
	if len(clean) == 0 {
		return nil, domain.NewError(domain.KindInvalidRequest, "at least one ingredient name is required")
	}

	if purchaseDate.IsZero() {
		y, m, d := time.Now().Date()
		purchaseDate = time.Date(y, m, d, 0, 0, 0, 0, time.Local)
	}

	created, err := s.store.Create(ctx, userID, clean, purchaseDate)
	if err != nil {
		return nil, fmt.Errorf("failed to add ingredients: %w", err)
	}
	s.logger.Info("ingredients added", "user_id", userID, "count", len(created))
	return created, nil
}

func (s *PantryService) ListIngredients(ctx context.Context, userID string) ([]*domain.Ingredient, error) {
	return s.store.ListByUser(ctx, userID)
}

func (s *PantryService) DeleteIngredient(ctx context.Context, userID string, id int64) error {
	return s.store.SoftDelete(ctx, userID, id)
}
