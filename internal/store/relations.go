package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/foodgram/apiserver/types"
)

const (
	tableFavorites = "favorites"
	tablePurchases = "purchases"
)

// RelationRepository handles user-to-user and user-to-recipe association rows:
// follows, favorites and purchases.
type RelationRepository struct {
	db *sql.DB
}

func NewRelationRepository(db *sql.DB) *RelationRepository {
	return &RelationRepository{db: db}
}

func (r *RelationRepository) CreateFollow(ctx context.Context, userID, authorID int) (types.Follow, error) {
	const query = `
		INSERT INTO follows (user_id, author_id)
		VALUES ($1, $2)
		RETURNING id`
	follow := types.Follow{UserID: userID, AuthorID: authorID}
	if err := r.db.QueryRowContext(ctx, query, userID, authorID).Scan(&follow.ID); err != nil {
		return types.Follow{}, mapError(err)
	}
	return follow, nil
}

func (r *RelationRepository) DeleteFollow(ctx context.Context, userID, authorID int) error {
	const query = `DELETE FROM follows WHERE user_id = $1 AND author_id = $2`
	result, err := r.db.ExecContext(ctx, query, userID, authorID)
	if err != nil {
		return err
	}
	return affectedOrNotFound(result)
}

func (r *RelationRepository) IsFollowing(ctx context.Context, userID, authorID int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM follows WHERE user_id = $1 AND author_id = $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID, authorID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// ListFollowing returns the authors userID follows, ordered by follow time,
// and their total count.
func (r *RelationRepository) ListFollowing(ctx context.Context, userID, offset, limit int) ([]types.User, int, error) {
	offset, limit = clampPage(offset, limit)

	const countQuery = `SELECT COUNT(1) FROM follows WHERE user_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT u.id, u.email, u.username, u.first_name, u.last_name, u.password_hash, u.created_at, u.updated_at
		FROM follows f
		JOIN users u ON u.id = f.author_id
		WHERE f.user_id = $1
		ORDER BY f.id
		OFFSET $2 LIMIT $3`
	rows, err := r.db.QueryContext(ctx, listQuery, userID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	authors := make([]types.User, 0, limit)
	for rows.Next() {
		author, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		authors = append(authors, author)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return authors, total, nil
}

func (r *RelationRepository) CreateFavorite(ctx context.Context, userID, recipeID int) (types.Favorite, error) {
	id, err := r.createUserRecipe(ctx, tableFavorites, userID, recipeID)
	if err != nil {
		return types.Favorite{}, err
	}
	return types.Favorite{ID: id, UserID: userID, RecipeID: recipeID}, nil
}

func (r *RelationRepository) DeleteFavorite(ctx context.Context, userID, recipeID int) error {
	return r.deleteUserRecipe(ctx, tableFavorites, userID, recipeID)
}

func (r *RelationRepository) IsFavorite(ctx context.Context, userID, recipeID int) (bool, error) {
	return r.existsUserRecipe(ctx, tableFavorites, userID, recipeID)
}

func (r *RelationRepository) CreatePurchase(ctx context.Context, userID, recipeID int) (types.Purchase, error) {
	id, err := r.createUserRecipe(ctx, tablePurchases, userID, recipeID)
	if err != nil {
		return types.Purchase{}, err
	}
	return types.Purchase{ID: id, UserID: userID, RecipeID: recipeID}, nil
}

func (r *RelationRepository) DeletePurchase(ctx context.Context, userID, recipeID int) error {
	return r.deleteUserRecipe(ctx, tablePurchases, userID, recipeID)
}

func (r *RelationRepository) IsPurchase(ctx context.Context, userID, recipeID int) (bool, error) {
	return r.existsUserRecipe(ctx, tablePurchases, userID, recipeID)
}

// ShoppingList sums ingredient amounts over every recipe in the user's cart,
// grouped by ingredient name and unit.
func (r *RelationRepository) ShoppingList(ctx context.Context, userID int) ([]types.ShoppingListItem, error) {
	const query = `
		SELECT i.name, i.measurement_unit, SUM(ri.amount)
		FROM purchases p
		JOIN recipe_ingredients ri ON ri.recipe_id = p.recipe_id
		JOIN ingredients i ON i.id = ri.ingredient_id
		WHERE p.user_id = $1
		GROUP BY i.name, i.measurement_unit
		ORDER BY i.name, i.measurement_unit`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []types.ShoppingListItem{}
	for rows.Next() {
		var item types.ShoppingListItem
		if err := rows.Scan(&item.Name, &item.MeasurementUnit, &item.Amount); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// table is tableFavorites or tablePurchases.
func (r *RelationRepository) createUserRecipe(ctx context.Context, table string, userID, recipeID int) (int, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, recipe_id)
		VALUES ($1, $2)
		RETURNING id`, table)
	var id int
	if err := r.db.QueryRowContext(ctx, query, userID, recipeID).Scan(&id); err != nil {
		return 0, mapError(err)
	}
	return id, nil
}

func (r *RelationRepository) deleteUserRecipe(ctx context.Context, table string, userID, recipeID int) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND recipe_id = $2`, table)
	result, err := r.db.ExecContext(ctx, query, userID, recipeID)
	if err != nil {
		return err
	}
	return affectedOrNotFound(result)
}

func (r *RelationRepository) existsUserRecipe(ctx context.Context, table string, userID, recipeID int) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE user_id = $1 AND recipe_id = $2)`, table)
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID, recipeID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
