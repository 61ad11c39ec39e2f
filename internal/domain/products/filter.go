package products

import (
	"fmt"
	"strings"

	"sipstore/internal/params"

	"github.com/google/uuid"
)

// Filter selects products; all set fields are combined with AND.
type Filter struct {
	CategoryID   *uuid.UUID // exact category match
	IsActive     *bool      // exact active flag match
	SelectedPage string     // membership test against selected_pages
	Search       string     // case-insensitive substring, OR over text fields
}

// sortColumns maps client-facing sort fields to columns. Anything not listed
// here is silently skipped, never interpolated.
var sortColumns = map[string]string{
	"name":            "name",
	"sku":             "sku",
	"price":           "price",
	"costPrice":       "cost_price",
	"stock":           "stock",
	"weight":          "weight",
	"volume":          "volume",
	"isActive":        "is_active",
	"ratings.average": "rating_average",
	"createdAt":       "created_at",
	"updatedAt":       "updated_at",
}

// whereClause renders the filter as a WHERE fragment with positional
// placeholders starting at $1, returning the fragment and its arguments.
// An empty filter yields an empty fragment.
func (f Filter) whereClause() (string, []any) {
	var (
		conds []string
		args  []any
	)

	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.CategoryID != nil {
		conds = append(conds, "p.category_id = "+next(*f.CategoryID))
	}
	if f.IsActive != nil {
		conds = append(conds, "p.is_active = "+next(*f.IsActive))
	}
	if f.SelectedPage != "" {
		conds = append(conds, next(f.SelectedPage)+" = ANY(p.selected_pages)")
	}
	if f.Search != "" {
		pattern := next("%" + escapeLike(f.Search) + "%")
		conds = append(conds, fmt.Sprintf(`(p.name ILIKE %[1]s
			OR p.description ILIKE %[1]s
			OR array_to_string(p.tags, ' ') ILIKE %[1]s
			OR EXISTS (
				SELECT 1 FROM jsonb_array_elements(p.recipes) rec
				WHERE rec->>'name' ILIKE %[1]s
					OR rec->>'ingredients' ILIKE %[1]s
					OR rec->>'instructions' ILIKE %[1]s
			))`, pattern))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// orderByClause renders a compound sort, left to right, ignoring fields not
// in the allowlist. With no usable key the default is newest first.
func orderByClause(keys []params.SortKey) string {
	var parts []string
	for _, k := range keys {
		col, ok := sortColumns[k.Field]
		if !ok {
			continue
		}
		dir := "ASC"
		if k.Desc {
			dir = "DESC"
		}
		parts = append(parts, "p."+col+" "+dir)
	}
	if len(parts) == 0 {
		return "ORDER BY p.created_at DESC"
	}
	return "ORDER BY " + strings.Join(parts, ", ")
}

// escapeLike neutralizes LIKE metacharacters so a search term only ever
// matches as a literal substring.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}
