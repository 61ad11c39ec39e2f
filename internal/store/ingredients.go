package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NutritionalInfo is stored as-is; no unit conversion happens server side.
type NutritionalInfo struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

type Ingredient struct {
	ID              uuid.UUID        `json:"_id"`
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	Image           *string          `json:"image,omitempty"`
	NutritionalInfo *NutritionalInfo `json:"nutritionalInfo,omitempty"`
	IsActive        bool             `json:"isActive"`
	CreatedAt       time.Time        `json:"createdAt"`
}

type IngredientsStore struct {
	db *sql.DB
}

func scanIngredient(row interface{ Scan(...any) error }) (*Ingredient, error) {
	i := &Ingredient{}
	var nutrition []byte
	if err := row.Scan(&i.ID, &i.Name, &i.Description, &i.Image, &nutrition, &i.IsActive, &i.CreatedAt); err != nil {
		return nil, err
	}
	if len(nutrition) > 0 {
		if err := json.Unmarshal(nutrition, &i.NutritionalInfo); err != nil {
			return nil, fmt.Errorf("decode nutritional info: %w", err)
		}
	}
	return i, nil
}

func (s *IngredientsStore) Create(ctx context.Context, i *Ingredient) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	nutrition, err := json.Marshal(i.NutritionalInfo)
	if err != nil {
		return fmt.Errorf("encode nutritional info: %w", err)
	}

	query := `
		INSERT INTO ingredients (name, description, image, nutritional_info, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err = s.db.QueryRowContext(ctx, query,
		i.Name, i.Description, i.Image, nutrition, i.IsActive,
	).Scan(&i.ID, &i.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("create ingredient: %w", err)
	}
	return nil
}

func (s *IngredientsStore) GetByID(ctx context.Context, id uuid.UUID) (*Ingredient, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	i, err := scanIngredient(s.db.QueryRowContext(ctx, `
		SELECT id, name, description, image, nutritional_info, is_active, created_at
		FROM ingredients WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get ingredient: %w", err)
	}
	return i, nil
}

func (s *IngredientsStore) List(ctx context.Context) ([]*Ingredient, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, image, nutritional_info, is_active, created_at
		FROM ingredients ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}
	defer rows.Close()

	var list []*Ingredient
	for rows.Next() {
		i, err := scanIngredient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ingredient: %w", err)
		}
		list = append(list, i)
	}
	return list, rows.Err()
}

func (s *IngredientsStore) Update(ctx context.Context, i *Ingredient) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	nutrition, err := json.Marshal(i.NutritionalInfo)
	if err != nil {
		return fmt.Errorf("encode nutritional info: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE ingredients
		SET name=$1, description=$2, image=$3, nutritional_info=$4, is_active=$5
		WHERE id=$6`,
		i.Name, i.Description, i.Image, nutrition, i.IsActive, i.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("update ingredient: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *IngredientsStore) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM ingredients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete ingredient: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
