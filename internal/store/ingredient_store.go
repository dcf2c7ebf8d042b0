package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vbonduro/domeok/internal/domain"
)

var ErrNotFound = errors.New("ingredient not found")

const ingredientColumns = `id, user_id, name, purchase_date, expiration_date, storage_type, created_at`

type IngredientStore struct {
	db *sql.DB
}

func NewIngredientStore(db *sql.DB) *IngredientStore {
	return &IngredientStore{db: db}
}

// Create inserts one row per name in a single transaction.
func (s *IngredientStore) Create(ctx context.Context, userID string, names []string, purchaseDate time.Time) ([]*domain.Ingredient, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Error("failed to roll back transaction", "error", err)
		}
	}()

	ids := make([]int64, 0, len(names))
	for _, name := range names {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO ingredients (user_id, name, purchase_date) VALUES (?, ?, ?)
		`, userID, name, purchaseDate.UTC())
		if err != nil {
			return nil, fmt.Errorf("failed to create ingredient: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to get last insert id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit ingredients: %w", err)
	}

	created := make([]*domain.Ingredient, 0, len(ids))
	for _, id := range ids {
		in, err := s.GetByID(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		created = append(created, in)
	}
	return created, nil
}

func (s *IngredientStore) GetByID(ctx context.Context, userID string, id int64) (*domain.Ingredient, error) {
	in := &domain.Ingredient{}
	err := s.db.QueryRowContext(ctx, `
		SELECT `+ingredientColumns+` FROM ingredients
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL
	`, id, userID).Scan(&in.ID, &in.UserID, &in.Name, &in.PurchaseDate, &in.ExpirationDate, &in.StorageType, &in.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ingredient: %w", err)
	}
	return in, nil
}

// ListByUser returns the user's live ingredients, oldest purchase first.
func (s *IngredientStore) ListByUser(ctx context.Context, userID string) ([]*domain.Ingredient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ingredientColumns+` FROM ingredients
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY purchase_date ASC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}
	defer closeRows(rows)

	var ingredients []*domain.Ingredient
	for rows.Next() {
		in := &domain.Ingredient{}
		if err := rows.Scan(&in.ID, &in.UserID, &in.Name, &in.PurchaseDate, &in.ExpirationDate, &in.StorageType, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ingredient: %w", err)
		}
		ingredients = append(ingredients, in)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ingredients: %w", err)
	}
	return ingredients, nil
}

// ListNames returns just the names of the user's live ingredients in
// ListByUser order. The result may be empty.
func (s *IngredientStore) ListNames(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM ingredients
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY purchase_date ASC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingredient names: %w", err)
	}
	defer closeRows(rows)

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan ingredient name: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ingredient names: %w", err)
	}
	return names, nil
}

// SoftDelete marks the ingredient deleted. It returns ErrNotFound when the
// row does not exist, belongs to another user, or is already deleted.
func (s *IngredientStore) SoftDelete(ctx context.Context, userID string, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE ingredients SET deleted_at = ? WHERE id = ? AND user_id = ? AND deleted_at IS NULL
	`, time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete ingredient: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		slog.Error("failed to close rows", "error", err)
	}
}
