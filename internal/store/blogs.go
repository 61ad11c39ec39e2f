package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// BlogCategory is the flattened category shape attached to blog reads.
type BlogCategory struct {
	ID   uuid.UUID `json:"_id"`
	Name string    `json:"name"`
}

// BlogAuthor is the flattened author shape attached to blog reads.
type BlogAuthor struct {
	ID    uuid.UUID `json:"_id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

type Blog struct {
	ID            uuid.UUID      `json:"_id"`
	Title         string         `json:"title"`
	Slug          string         `json:"slug"`
	Content       string         `json:"content"`
	Excerpt       string         `json:"excerpt"`
	FeaturedImage *string        `json:"featuredImage,omitempty"`
	AuthorID      uuid.UUID      `json:"-"`
	Author        BlogAuthor     `json:"author"`
	CategoryIDs   []uuid.UUID    `json:"-"`
	Categories    []BlogCategory `json:"categories"`
	IsPublished   bool           `json:"isPublished"`
	PublishedAt   *time.Time     `json:"publishedAt"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

type BlogsStore struct {
	db *sql.DB
}

const blogColumns = `b.id, b.title, b.slug, b.content, b.excerpt, b.featured_image,
	b.author_id, COALESCE(a.name, ''), COALESCE(a.email, ''), b.category_ids,
	b.is_published, b.published_at, b.created_at, b.updated_at`

func scanBlog(row interface{ Scan(...any) error }) (*Blog, error) {
	b := &Blog{}
	var rawIDs []string
	if err := row.Scan(
		&b.ID, &b.Title, &b.Slug, &b.Content, &b.Excerpt, &b.FeaturedImage,
		&b.AuthorID, &b.Author.Name, &b.Author.Email, pq.Array(&rawIDs),
		&b.IsPublished, &b.PublishedAt, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	b.Author.ID = b.AuthorID
	for _, raw := range rawIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("blog category id: %w", err)
		}
		b.CategoryIDs = append(b.CategoryIDs, id)
	}
	return b, nil
}

func (s *BlogsStore) Create(ctx context.Context, b *Blog) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
		INSERT INTO blogs (title, slug, content, excerpt, featured_image, author_id,
			category_ids, is_published, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		b.Title, b.Slug, b.Content, b.Excerpt, b.FeaturedImage, b.AuthorID,
		pq.Array(uuidsToStrings(b.CategoryIDs)), b.IsPublished, b.PublishedAt,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("create blog: %w", err)
	}
	return s.populate(ctx, []*Blog{b})
}

func (s *BlogsStore) GetByID(ctx context.Context, id uuid.UUID) (*Blog, error) {
	return s.getOne(ctx, "b.id = $1", id)
}

func (s *BlogsStore) GetBySlug(ctx context.Context, slug string) (*Blog, error) {
	return s.getOne(ctx, "b.slug = $1", slug)
}

func (s *BlogsStore) getOne(ctx context.Context, cond string, arg any) (*Blog, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	b, err := scanBlog(s.db.QueryRowContext(ctx, `
		SELECT `+blogColumns+`
		FROM blogs b
		LEFT JOIN admins a ON a.id = b.author_id
		WHERE `+cond, arg))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get blog: %w", err)
	}
	if err := s.populate(ctx, []*Blog{b}); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *BlogsStore) List(ctx context.Context) ([]*Blog, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+blogColumns+`
		FROM blogs b
		LEFT JOIN admins a ON a.id = b.author_id
		ORDER BY b.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list blogs: %w", err)
	}
	defer rows.Close()

	var list []*Blog
	for rows.Next() {
		b, err := scanBlog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan blog: %w", err)
		}
		list = append(list, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.populate(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *BlogsStore) Update(ctx context.Context, b *Blog) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
		UPDATE blogs
		SET title=$1, slug=$2, content=$3, excerpt=$4, featured_image=$5,
			category_ids=$6, is_published=$7, published_at=$8, updated_at=now()
		WHERE id=$9
		RETURNING updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		b.Title, b.Slug, b.Content, b.Excerpt, b.FeaturedImage,
		pq.Array(uuidsToStrings(b.CategoryIDs)), b.IsPublished, b.PublishedAt, b.ID,
	).Scan(&b.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("update blog: %w", err)
	}
	return s.populate(ctx, []*Blog{b})
}

func (s *BlogsStore) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM blogs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete blog: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// populate resolves category references to {_id, name} across a batch.
func (s *BlogsStore) populate(ctx context.Context, blogs []*Blog) error {
	idSet := make(map[uuid.UUID]bool)
	for _, b := range blogs {
		b.Categories = []BlogCategory{}
		for _, id := range b.CategoryIDs {
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
		`SELECT id, name FROM categories WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("populate blog categories: %w", err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]BlogCategory, len(idSet))
	for rows.Next() {
		var c BlogCategory
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return fmt.Errorf("scan blog category: %w", err)
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, b := range blogs {
		for _, id := range b.CategoryIDs {
			if c, ok := byID[id]; ok {
				b.Categories = append(b.Categories, c)
			}
		}
	}
	return nil
}
