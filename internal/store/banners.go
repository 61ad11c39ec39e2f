package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// BannerTypes and BannerPages are the accepted enum values.
var (
	BannerTypes = map[string]bool{"home_slider": true, "beverage": true, "smoothie": true, "promo": true}
	BannerPages = map[string]bool{"home": true, "menu": true, "about": true, "contact": true}
)

// BannerIngredient is the flattened ingredient shape attached to banner reads.
type BannerIngredient struct {
	ID    uuid.UUID `json:"_id"`
	Name  string    `json:"name"`
	Image *string   `json:"image,omitempty"`
}

type Banner struct {
	ID            uuid.UUID          `json:"_id"`
	Title         string             `json:"title"`
	Subtitle      string             `json:"subtitle"`
	Image         string             `json:"image"`
	MobileImage   *string            `json:"mobileImage,omitempty"`
	Link          string             `json:"link"`
	IngredientIDs []uuid.UUID        `json:"-"`
	Ingredients   []BannerIngredient `json:"ingredients"`
	BannerType    string             `json:"bannerType"`
	Page          *string            `json:"page"`
	DisplayOrder  int                `json:"displayOrder"`
	IsActive      bool               `json:"isActive"`
	CreatedAt     time.Time          `json:"createdAt"`
}

type BannersStore struct {
	db *sql.DB
}

func uuidsToStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func scanBanner(row interface{ Scan(...any) error }) (*Banner, error) {
	b := &Banner{}
	var rawIDs []string
	if err := row.Scan(
		&b.ID, &b.Title, &b.Subtitle, &b.Image, &b.MobileImage, &b.Link,
		pq.Array(&rawIDs), &b.BannerType, &b.Page, &b.DisplayOrder, &b.IsActive, &b.CreatedAt,
	); err != nil {
		return nil, err
	}
	for _, raw := range rawIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("banner ingredient id: %w", err)
		}
		b.IngredientIDs = append(b.IngredientIDs, id)
	}
	return b, nil
}

const bannerColumns = `id, title, subtitle, image, mobile_image, link, ingredient_ids,
	banner_type, page, display_order, is_active, created_at`

func (s *BannersStore) Create(ctx context.Context, b *Banner) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
		INSERT INTO banners (title, subtitle, image, mobile_image, link, ingredient_ids,
			banner_type, page, display_order, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`
	err := s.db.QueryRowContext(ctx, query,
		b.Title, b.Subtitle, b.Image, b.MobileImage, b.Link,
		pq.Array(uuidsToStrings(b.IngredientIDs)), b.BannerType, b.Page, b.DisplayOrder, b.IsActive,
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return fmt.Errorf("create banner: %w", err)
	}
	return s.populateIngredients(ctx, []*Banner{b})
}

func (s *BannersStore) GetByID(ctx context.Context, id uuid.UUID) (*Banner, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	b, err := scanBanner(s.db.QueryRowContext(ctx,
		`SELECT `+bannerColumns+` FROM banners WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get banner: %w", err)
	}
	if err := s.populateIngredients(ctx, []*Banner{b}); err != nil {
		return nil, err
	}
	return b, nil
}

// List returns active banners ordered for display, optionally narrowed by
// banner type and storefront page. limit <= 0 means no limit.
func (s *BannersStore) List(ctx context.Context, bannerType, page string, limit int) ([]*Banner, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `SELECT ` + bannerColumns + ` FROM banners WHERE is_active = true`
	args := []any{}
	if bannerType != "" {
		args = append(args, bannerType)
		query += fmt.Sprintf(" AND banner_type = $%d", len(args))
	}
	if page != "" {
		args = append(args, page)
		query += fmt.Sprintf(" AND page = $%d", len(args))
	}
	query += " ORDER BY display_order ASC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list banners: %w", err)
	}
	defer rows.Close()

	var list []*Banner
	for rows.Next() {
		b, err := scanBanner(rows)
		if err != nil {
			return nil, fmt.Errorf("scan banner: %w", err)
		}
		list = append(list, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.populateIngredients(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *BannersStore) Update(ctx context.Context, b *Banner) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE banners
		SET title=$1, subtitle=$2, image=$3, mobile_image=$4, link=$5, ingredient_ids=$6,
			banner_type=$7, page=$8, display_order=$9, is_active=$10
		WHERE id=$11`,
		b.Title, b.Subtitle, b.Image, b.MobileImage, b.Link,
		pq.Array(uuidsToStrings(b.IngredientIDs)), b.BannerType, b.Page, b.DisplayOrder,
		b.IsActive, b.ID,
	)
	if err != nil {
		return fmt.Errorf("update banner: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return s.populateIngredients(ctx, []*Banner{b})
}

func (s *BannersStore) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM banners WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete banner: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// populateIngredients resolves ingredient references to {_id, name, image}
// across a batch of banners with one query.
func (s *BannersStore) populateIngredients(ctx context.Context, banners []*Banner) error {
	idSet := make(map[uuid.UUID]bool)
	for _, b := range banners {
		b.Ingredients = []BannerIngredient{}
		for _, id := range b.IngredientIDs {
			idSet[id] = true
		}
	}
	if len(idSet) == 0 {
		return nil
	}

	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id.String())
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, image FROM ingredients WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("populate banner ingredients: %w", err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]BannerIngredient, len(idSet))
	for rows.Next() {
		var ing BannerIngredient
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.Image); err != nil {
			return fmt.Errorf("scan banner ingredient: %w", err)
		}
		byID[ing.ID] = ing
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, b := range banners {
		for _, id := range b.IngredientIDs {
			if ing, ok := byID[id]; ok {
				b.Ingredients = append(b.Ingredients, ing)
			}
		}
	}
	return nil
}
