package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ProductPage is a named storefront page a category's products appear on.
type ProductPage struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Category struct {
	ID            uuid.UUID     `json:"_id"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Image         *string       `json:"image,omitempty"`
	ProductPages  []ProductPage `json:"productPages"`
	SelectedPages []string      `json:"selectedPages"`
	IsActive      bool          `json:"isActive"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

type CategoriesStore struct {
	db *sql.DB
}

const categoryColumns = `id, name, description, image, product_pages, selected_pages, is_active, created_at, updated_at`

func scanCategory(row interface{ Scan(...any) error }) (*Category, error) {
	c := &Category{}
	var pages []byte
	if err := row.Scan(
		&c.ID, &c.Name, &c.Description, &c.Image, &pages,
		pq.Array(&c.SelectedPages), &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(pages, &c.ProductPages); err != nil {
		return nil, fmt.Errorf("decode product pages: %w", err)
	}
	return c, nil
}

func (s *CategoriesStore) Create(ctx context.Context, c *Category) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	if c.ProductPages == nil {
		c.ProductPages = []ProductPage{}
	}
	pages, err := json.Marshal(c.ProductPages)
	if err != nil {
		return fmt.Errorf("encode product pages: %w", err)
	}

	query := `
		INSERT INTO categories (name, description, image, product_pages, selected_pages, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query,
		c.Name, c.Description, c.Image, pages, pq.Array(c.SelectedPages), c.IsActive,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (s *CategoriesStore) GetByID(ctx context.Context, id uuid.UUID) (*Category, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	c, err := scanCategory(s.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// List returns all categories, optionally only those whose selected pages
// contain selectedPage.
func (s *CategoriesStore) List(ctx context.Context, selectedPage string) ([]*Category, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `SELECT ` + categoryColumns + ` FROM categories`
	args := []any{}
	if selectedPage != "" {
		query += ` WHERE $1 = ANY(selected_pages)`
		args = append(args, selectedPage)
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var list []*Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (s *CategoriesStore) Update(ctx context.Context, c *Category) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	pages, err := json.Marshal(c.ProductPages)
	if err != nil {
		return fmt.Errorf("encode product pages: %w", err)
	}

	query := `
		UPDATE categories
		SET name=$1, description=$2, image=$3, product_pages=$4, selected_pages=$5,
			is_active=$6, updated_at=now()
		WHERE id=$7
		RETURNING updated_at
	`
	err = s.db.QueryRowContext(ctx, query,
		c.Name, c.Description, c.Image, pages, pq.Array(c.SelectedPages), c.IsActive, c.ID,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

func (s *CategoriesStore) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *CategoriesStore) NameExists(ctx context.Context, name string, excludeID *uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `SELECT EXISTS(SELECT 1 FROM categories WHERE name = $1`
	args := []any{name}
	if excludeID != nil {
		query += ` AND id != $2`
		args = append(args, *excludeID)
	}
	query += `)`

	var exists bool
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&exists)
	return exists, err
}

// ProductPages returns the deduplicated union of every category's product
// pages. Plain selected-page URLs with no named entry are synthesized into
// one by de-slugging the filename.
func (s *CategoriesStore) ProductPages(ctx context.Context) ([]ProductPage, error) {
	categories, err := s.List(ctx, "")
	if err != nil {
		return nil, err
	}

	pages := []ProductPage{}
	seen := make(map[string]bool)
	for _, c := range categories {
		for _, p := range c.ProductPages {
			if !seen[p.URL] {
				seen[p.URL] = true
				pages = append(pages, p)
			}
		}
		for _, url := range c.SelectedPages {
			if !seen[url] {
				seen[url] = true
				pages = append(pages, ProductPage{Name: pageNameFromURL(url), URL: url})
			}
		}
	}
	return pages, nil
}

func pageNameFromURL(url string) string {
	name := url
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, ".html")
	return strings.ReplaceAll(name, "-", " ")
}
