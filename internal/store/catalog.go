package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/foodgram/apiserver/types"
	"github.com/lib/pq"
)

// CatalogRepository handles persistence for tags and ingredients.
type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) ListTags(ctx context.Context) ([]types.Tag, error) {
	const query = `SELECT id, name, color, slug FROM tags ORDER BY id`
	return r.queryTags(ctx, query)
}

func (r *CatalogRepository) GetTag(ctx context.Context, id int) (types.Tag, error) {
	const query = `SELECT id, name, color, slug FROM tags WHERE id = $1`
	var tag types.Tag
	err := r.db.QueryRowContext(ctx, query, id).Scan(&tag.ID, &tag.Name, &tag.Color, &tag.Slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Tag{}, ErrNotFound
		}
		return types.Tag{}, err
	}
	return tag, nil
}

// GetTagsByIDs returns the tags that exist among ids, ordered by id.
func (r *CatalogRepository) GetTagsByIDs(ctx context.Context, ids []int) ([]types.Tag, error) {
	const query = `SELECT id, name, color, slug FROM tags WHERE id = ANY($1) ORDER BY id`
	return r.queryTags(ctx, query, pq.Array(int64s(ids)))
}

func (r *CatalogRepository) queryTags(ctx context.Context, query string, args ...any) ([]types.Tag, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
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

// ListIngredients returns all ingredients, optionally those whose name starts
// with prefix (case-insensitive).
func (r *CatalogRepository) ListIngredients(ctx context.Context, prefix string) ([]types.Ingredient, error) {
	query := `SELECT id, name, measurement_unit FROM ingredients`
	var args []any
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		query += ` WHERE name ILIKE $1`
		args = append(args, escapeLike(prefix)+"%")
	}
	query += ` ORDER BY name, id`
	return r.queryIngredients(ctx, query, args...)
}

func (r *CatalogRepository) GetIngredient(ctx context.Context, id int) (types.Ingredient, error) {
	const query = `SELECT id, name, measurement_unit FROM ingredients WHERE id = $1`
	var ingredient types.Ingredient
	err := r.db.QueryRowContext(ctx, query, id).Scan(&ingredient.ID, &ingredient.Name, &ingredient.MeasurementUnit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Ingredient{}, ErrNotFound
		}
		return types.Ingredient{}, err
	}
	return ingredient, nil
}

// GetIngredientsByIDs returns the ingredients that exist among ids, ordered by id.
func (r *CatalogRepository) GetIngredientsByIDs(ctx context.Context, ids []int) ([]types.Ingredient, error) {
	const query = `SELECT id, name, measurement_unit FROM ingredients WHERE id = ANY($1) ORDER BY id`
	return r.queryIngredients(ctx, query, pq.Array(int64s(ids)))
}

func (r *CatalogRepository) queryIngredients(ctx context.Context, query string, args ...any) ([]types.Ingredient, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ingredients := []types.Ingredient{}
	for rows.Next() {
		var ingredient types.Ingredient
		if err := rows.Scan(&ingredient.ID, &ingredient.Name, &ingredient.MeasurementUnit); err != nil {
			return nil, err
		}
		ingredients = append(ingredients, ingredient)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ingredients, nil
}

// CreateTags inserts tags in one transaction, skipping any whose name, color
// or slug already exists. It returns the number of rows inserted.
func (r *CatalogRepository) CreateTags(ctx context.Context, tags []types.Tag) (int, error) {
	const query = `
		INSERT INTO tags (name, color, slug)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`
	inserted := 0
	err := WithTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, tag := range tags {
			result, err := tx.ExecContext(ctx, query, tag.Name, tag.Color, tag.Slug)
			if err != nil {
				return mapError(err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return err
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// CreateIngredients inserts ingredients in one transaction, skipping exact
// (name, measurement_unit) duplicates. It returns the number of rows inserted.
func (r *CatalogRepository) CreateIngredients(ctx context.Context, ingredients []types.Ingredient) (int, error) {
	const query = `
		INSERT INTO ingredients (name, measurement_unit)
		SELECT $1, $2
		WHERE NOT EXISTS (
			SELECT 1 FROM ingredients WHERE name = $1 AND measurement_unit = $2
		)`
	inserted := 0
	err := WithTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, ingredient := range ingredients {
			result, err := tx.ExecContext(ctx, query, ingredient.Name, ingredient.MeasurementUnit)
			if err != nil {
				return mapError(err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return err
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
