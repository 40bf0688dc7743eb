package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/foodgram/apiserver/internal/apperr"
	"github.com/foodgram/apiserver/internal/mq"
	"github.com/foodgram/apiserver/internal/storage"
	"github.com/foodgram/apiserver/internal/store"
	"github.com/foodgram/apiserver/types"
	"go.uber.org/zap"
)

// RecipeRepository defines persistence operations for recipes.
type RecipeRepository interface {
	Create(ctx context.Context, recipe types.Recipe, ingredients []types.RecipeIngredient, tagIDs []int) (types.Recipe, error)
	Get(ctx context.Context, id int) (types.Recipe, error)
	List(ctx context.Context, filter types.RecipeFilter) ([]types.Recipe, int, error)
	Tags(ctx context.Context, recipeID int) ([]types.Tag, error)
	Ingredients(ctx context.Context, recipeID int) ([]types.IngredientAmount, error)
	CountByAuthor(ctx context.Context, authorID int) (int, error)
}

// ImageStore persists recipe images. *storage.Storage implements it.
type ImageStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// IngredientRef is an ingredient id and amount inside a recipe payload.
type IngredientRef struct {
	ID     int `json:"id" validate:"gte=1"`
	Amount int `json:"amount" validate:"gte=1,max=32767"`
}

// CreateRecipeInput is the recipe creation payload.
type CreateRecipeInput struct {
	Ingredients []IngredientRef `json:"ingredients" validate:"required,min=1,unique=ID,dive"`
	Tags        []int           `json:"tags" validate:"required,min=1,unique,dive,gte=1"`
	Image       string          `json:"image" validate:"required"`
	Name        string          `json:"name" validate:"required,max=200"`
	Text        string          `json:"text" validate:"required"`
	CookingTime int             `json:"cooking_time" validate:"gte=1,max=32767"`
}

// RecipeQuery selects recipes for a listing. The favorited and cart filters
// apply to the viewer.
type RecipeQuery struct {
	AuthorID      int
	TagSlugs      []string
	OnlyFavorited bool
	OnlyInCart    bool
	Offset        int
	Limit         int
}

// RecipeService creates recipes and assembles recipe read models.
type RecipeService struct {
	recipes   RecipeRepository
	catalog   *CatalogService
	users     UserRepository
	relations RelationRepository
	images    ImageStore
	deps
}

func NewRecipeService(
	recipes RecipeRepository,
	catalog *CatalogService,
	users UserRepository,
	relations RelationRepository,
	images ImageStore,
	opts ...Option,
) *RecipeService {
	return &RecipeService{
		recipes:   recipes,
		catalog:   catalog,
		users:     users,
		relations: relations,
		images:    images,
		deps:      newDeps(opts),
	}
}

// Create validates the payload, stores the image and writes the recipe with
// all its associations in one transaction. The image is removed again when
// the write fails.
func (s *RecipeService) Create(ctx context.Context, author types.User, in CreateRecipeInput) (types.RecipeDetail, error) {
	if err := validateStruct(in); err != nil {
		return types.RecipeDetail{}, err
	}

	img, err := decodeImage(in.Image)
	if err != nil {
		return types.RecipeDetail{}, err
	}

	ingredientIDs := make([]int, len(in.Ingredients))
	for i, ref := range in.Ingredients {
		ingredientIDs[i] = ref.ID
	}
	if _, err := s.catalog.ingredientsByIDs(ctx, ingredientIDs); err != nil {
		return types.RecipeDetail{}, err
	}
	if _, err := s.catalog.tagsByIDs(ctx, in.Tags); err != nil {
		return types.RecipeDetail{}, err
	}

	key := storage.NewImageKey(img.Ext)
	if err := s.images.Put(ctx, key, bytes.NewReader(img.Data), int64(len(img.Data)), img.ContentType); err != nil {
		return types.RecipeDetail{}, fmt.Errorf("store image: %w", err)
	}

	links := make([]types.RecipeIngredient, len(in.Ingredients))
	for i, ref := range in.Ingredients {
		links[i] = types.RecipeIngredient{IngredientID: ref.ID, Amount: ref.Amount}
	}

	recipe, err := s.recipes.Create(ctx, types.Recipe{
		AuthorID:    author.ID,
		Name:        in.Name,
		Image:       s.images.URL(key),
		Text:        in.Text,
		CookingTime: in.CookingTime,
	}, links, in.Tags)
	if err != nil {
		if delErr := s.images.Delete(ctx, key); delErr != nil {
			s.logger.Warn("remove orphaned image failed", zap.String("key", key), zap.Error(delErr))
		}
		switch {
		case errors.Is(err, store.ErrConflict):
			return types.RecipeDetail{}, apperr.NotFound("an ingredient or tag no longer exists")
		case errors.Is(err, store.ErrInvalid):
			return types.RecipeDetail{}, apperr.Validation("recipe violates a value constraint")
		}
		return types.RecipeDetail{}, fmt.Errorf("create recipe: %w", err)
	}

	detail, err := s.detail(ctx, recipe, author.ID, map[int]types.Subscription{})
	if err != nil {
		return types.RecipeDetail{}, err
	}

	s.recorder.RecordRecipeCreated()
	s.logger.Info("recipe created", zap.Int("recipe_id", recipe.ID), zap.Int("author_id", author.ID))
	s.publish(ctx, mq.TopicRecipeCreated, mq.RecipeCreated{
		RecipeID: recipe.ID,
		AuthorID: author.ID,
		Name:     recipe.Name,
		Image:    recipe.Image,
		TagIDs:   in.Tags,
	})
	return detail, nil
}

// Get returns one recipe as seen by viewerID (0 for anonymous).
func (s *RecipeService) Get(ctx context.Context, id, viewerID int) (types.RecipeDetail, error) {
	recipe, err := s.getRecipe(ctx, id)
	if err != nil {
		return types.RecipeDetail{}, err
	}
	return s.detail(ctx, recipe, viewerID, map[int]types.Subscription{})
}

// List returns a page of recipes as seen by viewerID (0 for anonymous).
// Anonymous viewers asking for favorites or cart contents get an empty page.
func (s *RecipeService) List(ctx context.Context, q RecipeQuery, viewerID int) ([]types.RecipeDetail, int, error) {
	if viewerID < 1 && (q.OnlyFavorited || q.OnlyInCart) {
		return []types.RecipeDetail{}, 0, nil
	}

	filter := types.RecipeFilter{
		AuthorID: q.AuthorID,
		TagSlugs: q.TagSlugs,
		Offset:   q.Offset,
		Limit:    q.Limit,
	}
	if q.OnlyFavorited {
		filter.FavoritedBy = viewerID
	}
	if q.OnlyInCart {
		filter.InCartOf = viewerID
	}

	recipes, total, err := s.recipes.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list recipes: %w", err)
	}

	authors := map[int]types.Subscription{}
	details := make([]types.RecipeDetail, 0, len(recipes))
	for _, recipe := range recipes {
		detail, err := s.detail(ctx, recipe, viewerID, authors)
		if err != nil {
			return nil, 0, err
		}
		details = append(details, detail)
	}
	return details, total, nil
}

// GetTag and GetIngredient delegate to the catalog.
func (s *RecipeService) GetTag(ctx context.Context, id int) (types.Tag, error) {
	return s.catalog.GetTag(ctx, id)
}

func (s *RecipeService) GetIngredient(ctx context.Context, id int) (types.Ingredient, error) {
	return s.catalog.GetIngredient(ctx, id)
}

func (s *RecipeService) getRecipe(ctx context.Context, id int) (types.Recipe, error) {
	recipe, err := s.recipes.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Recipe{}, apperr.NotFound("recipe %d not found", id)
		}
		return types.Recipe{}, fmt.Errorf("get recipe: %w", err)
	}
	return recipe, nil
}

// detail assembles the read model. authors caches author views across a listing.
func (s *RecipeService) detail(ctx context.Context, recipe types.Recipe, viewerID int, authors map[int]types.Subscription) (types.RecipeDetail, error) {
	author, ok := authors[recipe.AuthorID]
	if !ok {
		user, err := s.users.GetByID(ctx, recipe.AuthorID)
		if err != nil {
			return types.RecipeDetail{}, fmt.Errorf("get author %d: %w", recipe.AuthorID, err)
		}
		author, err = subscriptionView(ctx, s.relations, s.recipes, user, viewerID)
		if err != nil {
			return types.RecipeDetail{}, err
		}
		authors[recipe.AuthorID] = author
	}

	tags, err := s.recipes.Tags(ctx, recipe.ID)
	if err != nil {
		return types.RecipeDetail{}, fmt.Errorf("get recipe tags: %w", err)
	}
	ingredients, err := s.recipes.Ingredients(ctx, recipe.ID)
	if err != nil {
		return types.RecipeDetail{}, fmt.Errorf("get recipe ingredients: %w", err)
	}

	detail := types.RecipeDetail{
		ID:          recipe.ID,
		Author:      author,
		Name:        recipe.Name,
		Image:       recipe.Image,
		Text:        recipe.Text,
		CookingTime: recipe.CookingTime,
		PubDate:     recipe.PubDate,
		Tags:        tags,
		Ingredients: ingredients,
	}
	if viewerID > 0 {
		if detail.IsFavorited, err = s.relations.IsFavorite(ctx, viewerID, recipe.ID); err != nil {
			return types.RecipeDetail{}, fmt.Errorf("check favorite: %w", err)
		}
		if detail.IsInShoppingCart, err = s.relations.IsPurchase(ctx, viewerID, recipe.ID); err != nil {
			return types.RecipeDetail{}, fmt.Errorf("check cart: %w", err)
		}
	}
	return detail, nil
}
