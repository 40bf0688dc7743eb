package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/foodgram/apiserver/types"
	"github.com/lib/pq"
)

const recipeColumns = `r.id, r.author_id, r.name, r.image, r.text, r.cooking_time, r.pub_date`

// RecipeRepository handles persistence for recipes and their tag and
// ingredient associations.
type RecipeRepository struct {
	db *sql.DB
}

func NewRecipeRepository(db *sql.DB) *RecipeRepository {
	return &RecipeRepository{db: db}
}

func scanRecipe(row interface{ Scan(...any) error }) (types.Recipe, error) {
	var recipe types.Recipe
	err := row.Scan(
		&recipe.ID,
		&recipe.AuthorID,
		&recipe.Name,
		&recipe.Image,
		&recipe.Text,
		&recipe.CookingTime,
		&recipe.PubDate,
	)
	return recipe, err
}

// Create inserts the recipe row and all of its association rows in a single
// transaction. Either everything is written or nothing is.
func (r *RecipeRepository) Create(
	ctx context.Context,
	recipe types.Recipe,
	ingredients []types.RecipeIngredient,
	tagIDs []int,
) (types.Recipe, error) {
	if recipe.PubDate.IsZero() {
		recipe.PubDate = time.Now()
	}

	const insertRecipe = `
		INSERT INTO recipes (author_id, name, image, text, cooking_time, pub_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	const insertIngredient = `
		INSERT INTO recipe_ingredients (recipe_id, ingredient_id, amount)
		VALUES ($1, $2, $3)`
	const insertTag = `
		INSERT INTO recipe_tags (recipe_id, tag_id)
		VALUES ($1, $2)`

	err := WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(
			ctx,
			insertRecipe,
			recipe.AuthorID,
			recipe.Name,
			recipe.Image,
			recipe.Text,
			recipe.CookingTime,
			recipe.PubDate,
		).Scan(&recipe.ID); err != nil {
			return mapError(err)
		}

		for _, item := range ingredients {
			if _, err := tx.ExecContext(ctx, insertIngredient, recipe.ID, item.IngredientID, item.Amount); err != nil {
				return fmt.Errorf("insert ingredient %d: %w", item.IngredientID, mapError(err))
			}
		}
		for _, tagID := range tagIDs {
			if _, err := tx.ExecContext(ctx, insertTag, recipe.ID, tagID); err != nil {
				return fmt.Errorf("insert tag %d: %w", tagID, mapError(err))
			}
		}
		return nil
	})
	if err != nil {
		return types.Recipe{}, err
	}
	return recipe, nil
}

func (r *RecipeRepository) Get(ctx context.Context, id int) (types.Recipe, error) {
	const query = `SELECT ` + recipeColumns + ` FROM recipes r WHERE r.id = $1`
	recipe, err := scanRecipe(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Recipe{}, ErrNotFound
		}
		return types.Recipe{}, err
	}
	return recipe, nil
}

// List returns a page of recipes matching filter, newest first, and the
// total number of matches.
func (r *RecipeRepository) List(ctx context.Context, filter types.RecipeFilter) ([]types.Recipe, int, error) {
	offset, limit := clampPage(filter.Offset, filter.Limit)
	where, args := recipeFilterClause(filter)

	countQuery := `SELECT COUNT(1) FROM recipes r` + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(`
		SELECT %s
		FROM recipes r%s
		ORDER BY r.pub_date DESC, r.id DESC
		OFFSET $%d LIMIT $%d`, recipeColumns, where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, listQuery, append(args, offset, limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	recipes := make([]types.Recipe, 0, limit)
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, 0, err
		}
		recipes = append(recipes, recipe)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return recipes, total, nil
}

func recipeFilterClause(filter types.RecipeFilter) (string, []any) {
	var conds []string
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.AuthorID > 0 {
		conds = append(conds, "r.author_id = "+next(filter.AuthorID))
	}
	if len(filter.TagSlugs) > 0 {
		conds = append(conds, `EXISTS (
			SELECT 1 FROM recipe_tags rt
			JOIN tags t ON t.id = rt.tag_id
			WHERE rt.recipe_id = r.id AND t.slug = ANY(`+next(pq.Array(filter.TagSlugs))+`))`)
	}
	if filter.FavoritedBy > 0 {
		conds = append(conds, `EXISTS (
			SELECT 1 FROM favorites f
			WHERE f.recipe_id = r.id AND f.user_id = `+next(filter.FavoritedBy)+`)`)
	}
	if filter.InCartOf > 0 {
		conds = append(conds, `EXISTS (
			SELECT 1 FROM purchases p
			WHERE p.recipe_id = r.id AND p.user_id = `+next(filter.InCartOf)+`)`)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Tags returns the tags attached to a recipe.
func (r *RecipeRepository) Tags(ctx context.Context, recipeID int) ([]types.Tag, error) {
	const query = `
		SELECT t.id, t.name, t.color, t.slug
		FROM recipe_tags rt
		JOIN tags t ON t.id = rt.tag_id
		WHERE rt.recipe_id = $1
		ORDER BY t.id`
	rows, err := r.db.QueryContext(ctx, query, recipeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []types.Tag{}
	for rows.Next() {
		var tag types.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Color, &tag.Slug); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tags, nil
}

// Ingredients returns the ingredients of a recipe with their amounts.
func (r *RecipeRepository) Ingredients(ctx context.Context, recipeID int) ([]types.IngredientAmount, error) {
	const query = `
		SELECT i.id, i.name, i.measurement_unit, ri.amount
		FROM recipe_ingredients ri
		JOIN ingredients i ON i.id = ri.ingredient_id
		WHERE ri.recipe_id = $1
		ORDER BY i.name, i.id`
	rows, err := r.db.QueryContext(ctx, query, recipeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []types.IngredientAmount{}
	for rows.Next() {
		var item types.IngredientAmount
		if err := rows.Scan(&item.ID, &item.Name, &item.MeasurementUnit, &item.Amount); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// CountByAuthor returns how many recipes a user has published.
func (r *RecipeRepository) CountByAuthor(ctx context.Context, authorID int) (int, error) {
	const query = `SELECT COUNT(1) FROM recipes WHERE author_id = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, authorID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
