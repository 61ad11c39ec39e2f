package products

import (
	"strings"
	"testing"

	"sipstore/internal/params"

	"github.com/google/uuid"
)

func TestWhereClauseEmpty(t *testing.T) {
	clause, args := Filter{}.whereClause()
	if clause != "" || args != nil {
		t.Fatalf("got %q with %d args, want empty", clause, len(args))
	}
}

func TestWhereClauseCombines(t *testing.T) {
	id := uuid.New()
	active := true
	f := Filter{
		CategoryID:   &id,
		IsActive:     &active,
		SelectedPage: "smoothies.html",
		Search:       "mango",
	}

	clause, args := f.whereClause()
	if !strings.HasPrefix(clause, "WHERE ") {
		t.Fatalf("clause %q does not start with WHERE", clause)
	}
	if got := strings.Count(clause, " AND "); got != 3 {
		t.Errorf("got %d AND joins, want 3", got)
	}
	// category, active, page and one shared search pattern
	if len(args) != 4 {
		t.Errorf("got %d args, want 4", len(args))
	}
	if args[3] != "%mango%" {
		t.Errorf("search arg = %v, want %%mango%%", args[3])
	}
	for _, col := range []string{"p.category_id", "p.is_active", "p.selected_pages", "p.recipes"} {
		if !strings.Contains(clause, col) {
			t.Errorf("clause missing %s: %q", col, clause)
		}
	}
}

func TestWhereClauseEscapesLikeMeta(t *testing.T) {
	f := Filter{Search: "50%_off\\"}
	_, args := f.whereClause()
	if len(args) != 1 {
		t.Fatalf("got %d args, want 1", len(args))
	}
	got := args[0].(string)
	if got != `%50\%\_off\\%` {
		t.Errorf("pattern = %q, want %q", got, `%50\%\_off\\%`)
	}
}

func TestOrderByClauseDefault(t *testing.T) {
	if got := orderByClause(nil); got != "ORDER BY p.created_at DESC" {
		t.Fatalf("got %q", got)
	}
}

func TestOrderByClauseAllowlist(t *testing.T) {
	keys := []params.SortKey{
		{Field: "price", Desc: true},
		{Field: "drop table", Desc: false}, // not a sortable field
		{Field: "ratings.average", Desc: true},
	}
	got := orderByClause(keys)
	want := "ORDER BY p.price DESC, p.rating_average DESC"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestOrderByClauseAllUnknown(t *testing.T) {
	keys := []params.SortKey{{Field: "nope"}, {Field: "nor-this"}}
	if got := orderByClause(keys); got != "ORDER BY p.created_at DESC" {
		t.Fatalf("got %q, want default", got)
	}
}

func TestFormattedPrice(t *testing.T) {
	p := Product{Price: 12.5}
	if got := p.FormattedPrice(); got != "$12.50" {
		t.Fatalf("got %q, want $12.50", got)
	}
	p.Price = 0
	if got := p.FormattedPrice(); got != "$0.00" {
		t.Fatalf("got %q, want $0.00", got)
	}
}
