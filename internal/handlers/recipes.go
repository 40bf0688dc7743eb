package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/foodgram/apiserver/internal/services"
	"github.com/foodgram/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const shoppingListFilename = "shopping_list.txt"

// RecipeHandler provides recipe, favorite and shopping cart endpoints.
type RecipeHandler struct {
	recipeService   *services.RecipeService
	relationService *services.RelationService
}

func NewRecipeHandler(recipeService *services.RecipeService, relationService *services.RelationService) *RecipeHandler {
	return &RecipeHandler{
		recipeService:   recipeService,
		relationService: relationService,
	}
}

// RecipeRouter registers recipe routes on the given router.
func RecipeRouter(r chi.Router, handler *RecipeHandler, auth *AuthHandler) {
	r.With(auth.OptionalAuth).Get("/", handler.List)
	r.With(auth.RequireAuth).Post("/", handler.Create)
	r.With(auth.RequireAuth).Get("/download_shopping_cart", handler.DownloadShoppingCart)

	r.Route("/{recipeID}", func(r chi.Router) {
		r.With(auth.OptionalAuth).Get("/", handler.Get)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)
			r.Post("/favorite", handler.AddFavorite)
			r.Delete("/favorite", handler.RemoveFavorite)
			r.Post("/shopping_cart", handler.AddToCart)
			r.Delete("/shopping_cart", handler.RemoveFromCart)
		})
	})
}

func (h *RecipeHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	query, err := parseRecipeQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	query.Offset = offset
	query.Limit = limit

	recipes, total, err := h.recipeService.List(r.Context(), query, viewerID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse[types.RecipeDetail]{
		Items: recipes,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *RecipeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.CreateRecipeInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	session, _ := sessionFromContext(r.Context())
	recipe, err := h.recipeService.Create(r.Context(), session.User, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, recipe)
}

func (h *RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "recipeID")
	if err != nil {
		writeError(w, http.StatusNotFound, "recipe not found")
		return
	}

	recipe, err := h.recipeService.Get(r.Context(), id, viewerID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, recipe)
}

func (h *RecipeHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	h.addRelation(w, r, h.relationService.AddFavorite)
}

func (h *RecipeHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	h.removeRelation(w, r, h.relationService.RemoveFavorite)
}

func (h *RecipeHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	h.addRelation(w, r, h.relationService.AddToCart)
}

func (h *RecipeHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	h.removeRelation(w, r, h.relationService.RemoveFromCart)
}

func (h *RecipeHandler) addRelation(
	w http.ResponseWriter,
	r *http.Request,
	add func(ctx context.Context, userID, recipeID int) (types.RecipeShort, error),
) {
	id, err := parseID(r, "recipeID")
	if err != nil {
		writeError(w, http.StatusNotFound, "recipe not found")
		return
	}

	recipe, err := add(r.Context(), viewerID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, recipe)
}

func (h *RecipeHandler) removeRelation(
	w http.ResponseWriter,
	r *http.Request,
	remove func(ctx context.Context, userID, recipeID int) error,
) {
	id, err := parseID(r, "recipeID")
	if err != nil {
		writeError(w, http.StatusNotFound, "recipe not found")
		return
	}

	if err := remove(r.Context(), viewerID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DownloadShoppingCart renders the aggregated shopping list as plain text.
func (h *RecipeHandler) DownloadShoppingCart(w http.ResponseWriter, r *http.Request) {
	items, err := h.relationService.ShoppingList(r.Context(), viewerID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", shoppingListFilename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(renderShoppingList(items)))
}

func renderShoppingList(items []types.ShoppingListItem) string {
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "%s (%s): %d\n", item.Name, item.MeasurementUnit, item.Amount)
	}
	return b.String()
}

// parseRecipeQuery reads the listing filters: author, repeated tags, and the
// is_favorited / is_in_shopping_cart flags.
func parseRecipeQuery(r *http.Request) (services.RecipeQuery, error) {
	var q services.RecipeQuery
	var err error

	if q.AuthorID, err = parseOptionalInt(r, "author"); err != nil {
		return q, err
	}
	for _, slug := range r.URL.Query()["tags"] {
		if slug = strings.TrimSpace(slug); slug != "" {
			q.TagSlugs = append(q.TagSlugs, slug)
		}
	}
	if q.OnlyFavorited, err = parseFlag(r, "is_favorited"); err != nil {
		return q, err
	}
	if q.OnlyInCart, err = parseFlag(r, "is_in_shopping_cart"); err != nil {
		return q, err
	}
	return q, nil
}
