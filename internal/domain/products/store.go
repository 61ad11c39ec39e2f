package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sipstore/internal/params"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrDuplicateName    = errors.New("a product with this name already exists")
	ErrDuplicateSKU     = errors.New("a product with this SKU already exists")
	ErrDuplicateBarcode = errors.New("a product with this barcode already exists")
	ErrDuplicateProduct = errors.New("product already exists")
)

// Store is the data access abstraction for the product catalog.
// Implemented by Repository (which uses pgxpool.Pool).
type Store interface {
	Create(ctx context.Context, p *Product) (*Product, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	List(ctx context.Context, f Filter, sort []params.SortKey, limit, offset int) ([]*Product, int, error)
	Update(ctx context.Context, p *Product) (*Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	NameExists(ctx context.Context, name string, excludeID *uuid.UUID) (bool, error)
	SKUExists(ctx context.Context, sku string, excludeID *uuid.UUID) (bool, error)
	CategoryExists(ctx context.Context, id uuid.UUID) (bool, error)
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Store {
	return &Repository{db: db}
}

const productColumns = `p.id, p.name, p.sku, p.barcode, p.description, p.price, p.cost_price,
	p.category_id, p.stock, p.volume, p.volume_unit, p.weight, p.dimensions, p.images,
	p.is_active, p.tags, p.recipes, p.rating_average, p.rating_count, p.selected_pages,
	p.created_at, p.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner, withCategoryName bool) (*Product, error) {
	p := &Product{}
	dest := []any{
		&p.ID, &p.Name, &p.SKU, &p.Barcode, &p.Description, &p.Price, &p.CostPrice,
		&p.CategoryID, &p.Stock, &p.Volume, &p.VolumeUnit, &p.Weight, &p.Dimensions, &p.Images,
		&p.IsActive, &p.Tags, &p.Recipes, &p.Ratings.Average, &p.Ratings.Count, &p.SelectedPages,
		&p.CreatedAt, &p.UpdatedAt,
	}
	if withCategoryName {
		dest = append(dest, &p.CategoryName)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return p, nil
}

// Create validates referential and uniqueness constraints, then inserts.
// The pre-checks give friendly errors early; the unique indexes are the
// actual guarantee under concurrency (races surface as 23505 and are
// translated the same way).
func (r *Repository) Create(ctx context.Context, p *Product) (*Product, error) {
	exists, err := r.CategoryExists(ctx, p.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("validate category: %w", err)
	}
	if !exists {
		return nil, ErrCategoryNotFound
	}

	if taken, err := r.NameExists(ctx, p.Name, nil); err != nil {
		return nil, fmt.Errorf("check name: %w", err)
	} else if taken {
		return nil, ErrDuplicateName
	}
	if taken, err := r.SKUExists(ctx, p.SKU, nil); err != nil {
		return nil, fmt.Errorf("check sku: %w", err)
	} else if taken {
		return nil, ErrDuplicateSKU
	}

	query := `
		INSERT INTO products (name, sku, barcode, description, price, cost_price, category_id,
			stock, volume, volume_unit, weight, dimensions, images, is_active, tags, recipes,
			selected_pages)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, rating_average, rating_count, created_at, updated_at;
	`
	err = r.db.QueryRow(ctx, query,
		p.Name, p.SKU, p.Barcode, p.Description, p.Price, p.CostPrice, p.CategoryID,
		p.Stock, p.Volume, p.VolumeUnit, p.Weight, p.Dimensions, p.Images, p.IsActive,
		p.Tags, p.Recipes, p.SelectedPages,
	).Scan(&p.ID, &p.Ratings.Average, &p.Ratings.Count, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if dupErr := translateUniqueViolation(err); dupErr != nil {
			return nil, dupErr
		}
		return nil, fmt.Errorf("create product: %w", err)
	}
	return r.GetByID(ctx, p.ID)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	query := `
		SELECT ` + productColumns + `, COALESCE(c.name, '')
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1;
	`
	p, err := scanProduct(r.db.QueryRow(ctx, query, id), true)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// List returns one page of matching products plus the pre-pagination total.
func (r *Repository) List(ctx context.Context, f Filter, sort []params.SortKey, limit, offset int) ([]*Product, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	where, args := f.whereClause()
	orderBy := orderByClause(sort)

	dataSQL := fmt.Sprintf(`
		SELECT %s, COALESCE(c.name, '')
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		%s
		%s
		LIMIT $%d OFFSET $%d;`,
		productColumns, where, orderBy, len(args)+1, len(args)+2)

	rows, err := r.db.Query(ctx, dataSQL, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	list := make([]*Product, 0, limit)
	for rows.Next() {
		p, err := scanProduct(rows, true)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows: %w", err)
	}

	countSQL := "SELECT COUNT(*) FROM products p " + where
	var total int
	if err := r.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	return list, total, nil
}

// Update overwrites the stored document with p. The caller has already merged
// partial input onto the existing document; re-checks here only cover fields
// that changed relative to what is stored.
func (r *Repository) Update(ctx context.Context, p *Product) (*Product, error) {
	existing, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	if p.CategoryID != existing.CategoryID {
		exists, err := r.CategoryExists(ctx, p.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("validate category: %w", err)
		}
		if !exists {
			return nil, ErrCategoryNotFound
		}
	}
	if p.Name != existing.Name {
		if taken, err := r.NameExists(ctx, p.Name, &p.ID); err != nil {
			return nil, fmt.Errorf("check name: %w", err)
		} else if taken {
			return nil, ErrDuplicateName
		}
	}
	if p.SKU != existing.SKU {
		if taken, err := r.SKUExists(ctx, p.SKU, &p.ID); err != nil {
			return nil, fmt.Errorf("check sku: %w", err)
		} else if taken {
			return nil, ErrDuplicateSKU
		}
	}

	query := `
		UPDATE products
		SET name=$1, sku=$2, barcode=$3, description=$4, price=$5, cost_price=$6,
			category_id=$7, stock=$8, volume=$9, volume_unit=$10, weight=$11,
			dimensions=$12, images=$13, is_active=$14, tags=$15, recipes=$16,
			selected_pages=$17, updated_at=now()
		WHERE id=$18
		RETURNING updated_at;
	`
	err = r.db.QueryRow(ctx, query,
		p.Name, p.SKU, p.Barcode, p.Description, p.Price, p.CostPrice,
		p.CategoryID, p.Stock, p.Volume, p.VolumeUnit, p.Weight,
		p.Dimensions, p.Images, p.IsActive, p.Tags, p.Recipes,
		p.SelectedPages, p.ID,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		if dupErr := translateUniqueViolation(err); dupErr != nil {
			return nil, dupErr
		}
		return nil, fmt.Errorf("update product: %w", err)
	}
	return r.GetByID(ctx, p.ID)
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id=$1;`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *Repository) NameExists(ctx context.Context, name string, excludeID *uuid.UUID) (bool, error) {
	return r.fieldExists(ctx, "name", name, excludeID)
}

func (r *Repository) SKUExists(ctx context.Context, sku string, excludeID *uuid.UUID) (bool, error) {
	return r.fieldExists(ctx, "sku", sku, excludeID)
}

func (r *Repository) fieldExists(ctx context.Context, column, value string, excludeID *uuid.UUID) (bool, error) {
	query := "SELECT EXISTS(SELECT 1 FROM products WHERE " + column + " = $1"
	args := []any{value}
	if excludeID != nil {
		query += " AND id != $2"
		args = append(args, *excludeID)
	}
	query += ")"

	var exists bool
	err := r.db.QueryRow(ctx, query, args...).Scan(&exists)
	return exists, err
}

func (r *Repository) CategoryExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM categories WHERE id = $1)",
		id,
	).Scan(&exists)
	return exists, err
}

// translateUniqueViolation maps a 23505 to the colliding field's domain error,
// or returns nil for anything else.
func translateUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "name"):
		return ErrDuplicateName
	case strings.Contains(pgErr.ConstraintName, "sku"):
		return ErrDuplicateSKU
	case strings.Contains(pgErr.ConstraintName, "barcode"):
		return ErrDuplicateBarcode
	default:
		return ErrDuplicateProduct
	}
}
