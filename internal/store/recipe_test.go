package store

import (
	"strings"
	"testing"

	"github.com/foodgram/apiserver/types"
)

func TestRecipeFilterClause_Empty(t *testing.T) {
	where, args := recipeFilterClause(types.RecipeFilter{Offset: 10, Limit: 5})
	if where != "" {
		t.Errorf("where = %q, want empty", where)
	}
	if len(args) != 0 {
		t.Errorf("args = %v, want none", args)
	}
}

func TestRecipeFilterClause_AllFilters(t *testing.T) {
	where, args := recipeFilterClause(types.RecipeFilter{
		AuthorID:    3,
		TagSlugs:    []string{"breakfast", "dinner"},
		FavoritedBy: 7,
		InCartOf:    9,
	})

	if !strings.HasPrefix(where, " WHERE ") {
		t.Fatalf("where = %q, want WHERE clause", where)
	}
	for _, want := range []string{
		"r.author_id = $1",
		"t.slug = ANY($2)",
		"f.user_id = $3",
		"p.user_id = $4",
	} {
		if !strings.Contains(where, want) {
			t.Errorf("where clause missing %q:\n%s", want, where)
		}
	}
	if strings.Count(where, " AND ") < 3 {
		t.Errorf("expected conditions joined with AND:\n%s", where)
	}
	if len(args) != 4 {
		t.Fatalf("len(args) = %d, want 4", len(args))
	}
	if args[0] != 3 || args[2] != 7 || args[3] != 9 {
		t.Errorf("args = %v", args)
	}
}

func TestRecipeFilterClause_PlaceholdersFollowArgs(t *testing.T) {
	where, args := recipeFilterClause(types.RecipeFilter{FavoritedBy: 2})
	if !strings.Contains(where, "f.user_id = $1") {
		t.Errorf("where = %q, want $1 placeholder", where)
	}
	if len(args) != 1 || args[0] != 2 {
		t.Errorf("args = %v, want [2]", args)
	}
}

func TestEscapeLike(t *testing.T) {
	tests := map[string]string{
		"sugar":   "sugar",
		"50%":     `50\%`,
		"a_b":     `a\_b`,
		`back\sl`: `back\\sl`,
	}
	for in, want := range tests {
		if got := escapeLike(in); got != want {
			t.Errorf("escapeLike(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClampPage(t *testing.T) {
	offset, limit := clampPage(-5, 0)
	if offset != 0 || limit != 20 {
		t.Errorf("clampPage(-5, 0) = (%d, %d), want (0, 20)", offset, limit)
	}
	offset, limit = clampPage(40, 10)
	if offset != 40 || limit != 10 {
		t.Errorf("clampPage(40, 10) = (%d, %d), want (40, 10)", offset, limit)
	}
}
