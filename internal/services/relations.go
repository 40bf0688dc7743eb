package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/foodgram/apiserver/internal/apperr"
	"github.com/foodgram/apiserver/internal/store"
	"github.com/foodgram/apiserver/types"
)

// RelationRepository defines persistence for follows, favorites and purchases.
type RelationRepository interface {
	CreateFollow(ctx context.Context, userID, authorID int) (types.Follow, error)
	DeleteFollow(ctx context.Context, userID, authorID int) error
	IsFollowing(ctx context.Context, userID, authorID int) (bool, error)
	ListFollowing(ctx context.Context, userID, offset, limit int) ([]types.User, int, error)
	CreateFavorite(ctx context.Context, userID, recipeID int) (types.Favorite, error)
	DeleteFavorite(ctx context.Context, userID, recipeID int) error
	IsFavorite(ctx context.Context, userID, recipeID int) (bool, error)
	CreatePurchase(ctx context.Context, userID, recipeID int) (types.Purchase, error)
	DeletePurchase(ctx context.Context, userID, recipeID int) error
	IsPurchase(ctx context.Context, userID, recipeID int) (bool, error)
	ShoppingList(ctx context.Context, userID int) ([]types.ShoppingListItem, error)
}

// RelationService manages follows, favorites and the shopping cart.
type RelationService struct {
	relations RelationRepository
	users     UserRepository
	recipes   RecipeRepository
	deps
}

func NewRelationService(relations RelationRepository, users UserRepository, recipes RecipeRepository, opts ...Option) *RelationService {
	return &RelationService{
		relations: relations,
		users:     users,
		recipes:   recipes,
		deps:      newDeps(opts),
	}
}

// Follow subscribes userID to authorID and returns the author as the
// follower now sees them.
func (s *RelationService) Follow(ctx context.Context, userID, authorID, recipesLimit int) (types.Subscription, error) {
	author, err := s.users.GetByID(ctx, authorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Subscription{}, apperr.NotFound("user %d not found", authorID)
		}
		return types.Subscription{}, fmt.Errorf("get author: %w", err)
	}
	if userID == authorID {
		return types.Subscription{}, apperr.Validation("You cannot subscribe to yourself.")
	}

	if _, err := s.relations.CreateFollow(ctx, userID, authorID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.Subscription{}, apperr.Conflict("You are already subscribed to this author.")
		}
		return types.Subscription{}, fmt.Errorf("create follow: %w", err)
	}
	return s.subscription(ctx, author, userID, recipesLimit)
}

// Unfollow removes the subscription. Removing a missing one is a bad request.
func (s *RelationService) Unfollow(ctx context.Context, userID, authorID int) error {
	if err := s.relations.DeleteFollow(ctx, userID, authorID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.BadRequest("You are not subscribed to this author.")
		}
		return fmt.Errorf("delete follow: %w", err)
	}
	return nil
}

// ListSubscriptions returns the authors userID follows with a preview of at
// most recipesLimit recipes each (all when recipesLimit is 0).
func (s *RelationService) ListSubscriptions(ctx context.Context, userID, offset, limit, recipesLimit int) ([]types.Subscription, int, error) {
	authors, total, err := s.relations.ListFollowing(ctx, userID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list following: %w", err)
	}
	subs := make([]types.Subscription, 0, len(authors))
	for _, author := range authors {
		sub, err := s.subscription(ctx, author, userID, recipesLimit)
		if err != nil {
			return nil, 0, err
		}
		subs = append(subs, sub)
	}
	return subs, total, nil
}

func (s *RelationService) subscription(ctx context.Context, author types.User, viewerID, recipesLimit int) (types.Subscription, error) {
	sub, err := subscriptionView(ctx, s.relations, s.recipes, author, viewerID)
	if err != nil {
		return types.Subscription{}, err
	}

	limit := recipesLimit
	if limit < 1 {
		limit = sub.RecipesCount
	}
	sub.Recipes = []types.RecipeShort{}
	if limit < 1 {
		return sub, nil
	}
	recipes, _, err := s.recipes.List(ctx, types.RecipeFilter{AuthorID: author.ID, Limit: limit})
	if err != nil {
		return types.Subscription{}, fmt.Errorf("list author recipes: %w", err)
	}
	for _, recipe := range recipes {
		sub.Recipes = append(sub.Recipes, recipe.Short())
	}
	return sub, nil
}

func (s *RelationService) AddFavorite(ctx context.Context, userID, recipeID int) (types.RecipeShort, error) {
	recipe, err := s.recipe(ctx, recipeID)
	if err != nil {
		return types.RecipeShort{}, err
	}
	if _, err := s.relations.CreateFavorite(ctx, userID, recipeID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.RecipeShort{}, apperr.Conflict("Recipe is already in favorites.")
		}
		return types.RecipeShort{}, fmt.Errorf("create favorite: %w", err)
	}
	return recipe.Short(), nil
}

func (s *RelationService) RemoveFavorite(ctx context.Context, userID, recipeID int) error {
	if _, err := s.recipe(ctx, recipeID); err != nil {
		return err
	}
	if err := s.relations.DeleteFavorite(ctx, userID, recipeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.BadRequest("Recipe is not in favorites.")
		}
		return fmt.Errorf("delete favorite: %w", err)
	}
	return nil
}

func (s *RelationService) AddToCart(ctx context.Context, userID, recipeID int) (types.RecipeShort, error) {
	recipe, err := s.recipe(ctx, recipeID)
	if err != nil {
		return types.RecipeShort{}, err
	}
	if _, err := s.relations.CreatePurchase(ctx, userID, recipeID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.RecipeShort{}, apperr.Conflict("Recipe is already in the shopping cart.")
		}
		return types.RecipeShort{}, fmt.Errorf("create purchase: %w", err)
	}
	return recipe.Short(), nil
}

func (s *RelationService) RemoveFromCart(ctx context.Context, userID, recipeID int) error {
	if _, err := s.recipe(ctx, recipeID); err != nil {
		return err
	}
	if err := s.relations.DeletePurchase(ctx, userID, recipeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.BadRequest("Recipe is not in the shopping cart.")
		}
		return fmt.Errorf("delete purchase: %w", err)
	}
	return nil
}

// ShoppingList aggregates the ingredients of every recipe in the user's cart.
func (s *RelationService) ShoppingList(ctx context.Context, userID int) ([]types.ShoppingListItem, error) {
	items, err := s.relations.ShoppingList(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("shopping list: %w", err)
	}
	return items, nil
}

func (s *RelationService) recipe(ctx context.Context, id int) (types.Recipe, error) {
	recipe, err := s.recipes.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Recipe{}, apperr.NotFound("recipe %d not found", id)
		}
		return types.Recipe{}, fmt.Errorf("get recipe: %w", err)
	}
	return recipe, nil
}

// subscriptionView builds the author view shared by recipe details and
// subscription listings.
func subscriptionView(ctx context.Context, relations RelationRepository, recipes RecipeRepository, author types.User, viewerID int) (types.Subscription, error) {
	sub := types.Subscription{UserProfile: author.Profile()}

	if viewerID > 0 && viewerID != author.ID {
		following, err := relations.IsFollowing(ctx, viewerID, author.ID)
		if err != nil {
			return types.Subscription{}, fmt.Errorf("check follow: %w", err)
		}
		sub.IsSubscribed = following
	}

	count, err := recipes.CountByAuthor(ctx, author.ID)
	if err != nil {
		return types.Subscription{}, fmt.Errorf("count recipes: %w", err)
	}
	sub.RecipesCount = count
	return sub, nil
}
