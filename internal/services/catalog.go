package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/foodgram/apiserver/internal/apperr"
	"github.com/foodgram/apiserver/internal/store"
	"github.com/foodgram/apiserver/types"
	"go.uber.org/zap"
)

// CatalogRepository defines persistence operations for tags and ingredients.
type CatalogRepository interface {
	ListTags(ctx context.Context) ([]types.Tag, error)
	GetTag(ctx context.Context, id int) (types.Tag, error)
	GetTagsByIDs(ctx context.Context, ids []int) ([]types.Tag, error)
	ListIngredients(ctx context.Context, prefix string) ([]types.Ingredient, error)
	GetIngredient(ctx context.Context, id int) (types.Ingredient, error)
	GetIngredientsByIDs(ctx context.Context, ids []int) ([]types.Ingredient, error)
	CreateTags(ctx context.Context, tags []types.Tag) (int, error)
	CreateIngredients(ctx context.Context, ingredients []types.Ingredient) (int, error)
}

type seedTag struct {
	Name  string `json:"name" validate:"required,max=50"`
	Color string `json:"color" validate:"required,max=150"`
	Slug  string `json:"slug" validate:"required,max=50"`
}

type seedIngredient struct {
	Name            string `json:"name" validate:"required,max=150"`
	MeasurementUnit string `json:"measurement_unit" validate:"required,max=10"`
}

// CatalogService exposes the read-only tag and ingredient reference data.
type CatalogService struct {
	repo CatalogRepository
	deps
}

func NewCatalogService(repo CatalogRepository, opts ...Option) *CatalogService {
	return &CatalogService{repo: repo, deps: newDeps(opts)}
}

func (s *CatalogService) ListTags(ctx context.Context) ([]types.Tag, error) {
	tags, err := s.repo.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

func (s *CatalogService) GetTag(ctx context.Context, id int) (types.Tag, error) {
	tag, err := s.repo.GetTag(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Tag{}, apperr.NotFound("tag %d not found", id)
		}
		return types.Tag{}, fmt.Errorf("get tag: %w", err)
	}
	return tag, nil
}

// ListIngredients returns every ingredient, or those whose name starts with
// prefix when it is not empty.
func (s *CatalogService) ListIngredients(ctx context.Context, prefix string) ([]types.Ingredient, error) {
	ingredients, err := s.repo.ListIngredients(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}
	return ingredients, nil
}

func (s *CatalogService) GetIngredient(ctx context.Context, id int) (types.Ingredient, error) {
	ingredient, err := s.repo.GetIngredient(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Ingredient{}, apperr.NotFound("ingredient %d not found", id)
		}
		return types.Ingredient{}, fmt.Errorf("get ingredient: %w", err)
	}
	return ingredient, nil
}

// tagsByIDs resolves every id or fails with NotFound naming the first missing one.
func (s *CatalogService) tagsByIDs(ctx context.Context, ids []int) ([]types.Tag, error) {
	tags, err := s.repo.GetTagsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get tags: %w", err)
	}
	found := make(map[int]types.Tag, len(tags))
	for _, tag := range tags {
		found[tag.ID] = tag
	}
	ordered := make([]types.Tag, 0, len(ids))
	for _, id := range ids {
		tag, ok := found[id]
		if !ok {
			return nil, apperr.NotFound("tag %d not found", id)
		}
		ordered = append(ordered, tag)
	}
	return ordered, nil
}

// ingredientsByIDs resolves every id or fails with NotFound naming the first missing one.
func (s *CatalogService) ingredientsByIDs(ctx context.Context, ids []int) (map[int]types.Ingredient, error) {
	ingredients, err := s.repo.GetIngredientsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get ingredients: %w", err)
	}
	found := make(map[int]types.Ingredient, len(ingredients))
	for _, ingredient := range ingredients {
		found[ingredient.ID] = ingredient
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, apperr.NotFound("ingredient %d not found", id)
		}
	}
	return found, nil
}

// SeedTags validates and inserts tags, skipping ones that already exist.
func (s *CatalogService) SeedTags(ctx context.Context, tags []types.Tag) (int, error) {
	for i, tag := range tags {
		if err := validateStruct(seedTag{Name: tag.Name, Color: tag.Color, Slug: tag.Slug}); err != nil {
			return 0, fmt.Errorf("tag #%d: %w", i, err)
		}
	}
	n, err := s.repo.CreateTags(ctx, tags)
	if err != nil {
		return 0, fmt.Errorf("seed tags: %w", err)
	}
	s.logger.Info("tags seeded", zap.Int("inserted", n), zap.Int("total", len(tags)))
	return n, nil
}

// SeedIngredients validates and inserts ingredients, skipping exact duplicates.
func (s *CatalogService) SeedIngredients(ctx context.Context, ingredients []types.Ingredient) (int, error) {
	for i, ingredient := range ingredients {
		if err := validateStruct(seedIngredient{Name: ingredient.Name, MeasurementUnit: ingredient.MeasurementUnit}); err != nil {
			return 0, fmt.Errorf("ingredient #%d: %w", i, err)
		}
	}
	n, err := s.repo.CreateIngredients(ctx, ingredients)
	if err != nil {
		return 0, fmt.Errorf("seed ingredients: %w", err)
	}
	s.logger.Info("ingredients seeded", zap.Int("inserted", n), zap.Int("total", len(ingredients)))
	return n, nil
}
