package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrConflict          = errors.New("resource already exists")
	QueryTimeoutDuration = time.Second * 5
)

type Storage struct {
	Categories interface {
		Create(context.Context, *Category) error
		GetByID(context.Context, uuid.UUID) (*Category, error)
		List(ctx context.Context, selectedPage string) ([]*Category, error)
		Update(context.Context, *Category) error
		Delete(context.Context, uuid.UUID) error
		NameExists(ctx context.Context, name string, excludeID *uuid.UUID) (bool, error)
		ProductPages(context.Context) ([]ProductPage, error)
	}
	Ingredients interface {
		Create(context.Context, *Ingredient) error
		GetByID(context.Context, uuid.UUID) (*Ingredient, error)
		List(context.Context) ([]*Ingredient, error)
		Update(context.Context, *Ingredient) error
		Delete(context.Context, uuid.UUID) error
	}
	Banners interface {
		Create(context.Context, *Banner) error
		GetByID(context.Context, uuid.UUID) (*Banner, error)
		List(ctx context.Context, bannerType, page string, limit int) ([]*Banner, error)
		Update(context.Context, *Banner) error
		Delete(context.Context, uuid.UUID) error
	}
	Blogs interface {
		Create(context.Context, *Blog) error
		GetByID(context.Context, uuid.UUID) (*Blog, error)
		GetBySlug(context.Context, string) (*Blog, error)
		List(context.Context) ([]*Blog, error)
		Update(context.Context, *Blog) error
		Delete(context.Context, uuid.UUID) error
	}
	Admins interface {
		GetByEmail(context.Context, string) (*Admin, error)
		Create(context.Context, *Admin) error
	}
}

func NewStorage(db *sql.DB) Storage {
	return Storage{
		Categories:  &CategoriesStore{db},
		Ingredients: &IngredientsStore{db},
		Banners:     &BannersStore{db},
		Blogs:       &BlogsStore{db},
		Admins:      &AdminsStore{db},
	}
}

// isUniqueViolation reports whether err is a Postgres duplicate-key error.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
