package handlers

import (
	"net/http"

	"github.com/foodgram/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
)

// CatalogHandler serves the tag and ingredient reference data.
type CatalogHandler struct {
	catalogService *services.CatalogService
}

func NewCatalogHandler(catalogService *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// TagRouter registers tag routes on the given router.
func TagRouter(r chi.Router, handler *CatalogHandler) {
	r.Get("/", handler.ListTags)
	r.Get("/{tagID}", handler.GetTag)
}

// IngredientRouter registers ingredient routes on the given router.
func IngredientRouter(r chi.Router, handler *CatalogHandler) {
	r.Get("/", handler.ListIngredients)
	r.Get("/{ingredientID}", handler.GetIngredient)
}

func (h *CatalogHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.catalogService.ListTags(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (h *CatalogHandler) GetTag(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "tagID")
	if err != nil {
		writeError(w, http.StatusNotFound, "tag not found")
		return
	}
	tag, err := h.catalogService.GetTag(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

// ListIngredients supports a case-insensitive name prefix filter via ?name=.
func (h *CatalogHandler) ListIngredients(w http.ResponseWriter, r *http.Request) {
	ingredients, err := h.catalogService.ListIngredients(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingredients)
}

func (h *CatalogHandler) GetIngredient(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "ingredientID")
	if err != nil {
		writeError(w, http.StatusNotFound, "ingredient not found")
		return
	}
	ingredient, err := h.catalogService.GetIngredient(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingredient)
}
