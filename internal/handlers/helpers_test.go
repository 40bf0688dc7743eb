package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/foodgram/apiserver/internal/auth"
	"github.com/foodgram/apiserver/internal/services"
	"github.com/foodgram/apiserver/internal/store/storetest"
	"github.com/foodgram/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

type testAPI struct {
	router   http.Handler
	mem      *storetest.Memory
	denylist *storetest.Denylist
	catalog  *services.CatalogService
	tags     []types.Tag
	ings     []types.Ingredient
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	mem := storetest.NewMemory()
	denylist := storetest.NewDenylist()
	issuer, err := auth.NewIssuer("handler-secret", "HS256", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}

	recipeRepo := mem.Recipes()
	users := services.NewUserService(mem, issuer, denylist)
	catalog := services.NewCatalogService(mem)
	recipes := services.NewRecipeService(recipeRepo, catalog, mem, mem, storetest.NewImages())
	relations := services.NewRelationService(mem, mem, recipeRepo)

	authHandler := NewAuthHandler(users)
	router := chi.NewRouter()
	router.Use(middleware.StripSlashes)
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) { AuthRouter(r, authHandler) })
		r.Route("/users", func(r chi.Router) { UserRouter(r, NewUserHandler(users, relations), authHandler) })
		r.Route("/tags", func(r chi.Router) { TagRouter(r, NewCatalogHandler(catalog)) })
		r.Route("/ingredients", func(r chi.Router) { IngredientRouter(r, NewCatalogHandler(catalog)) })
		r.Route("/recipes", func(r chi.Router) { RecipeRouter(r, NewRecipeHandler(recipes, relations), authHandler) })
	})

	api := &testAPI{router: router, mem: mem, denylist: denylist, catalog: catalog}
	ctx := context.Background()
	if _, err := catalog.SeedTags(ctx, []types.Tag{
		{Name: "Breakfast", Color: "#E26C2D", Slug: "breakfast"},
		{Name: "Dinner", Color: "#8775D2", Slug: "dinner"},
	}); err != nil {
		t.Fatalf("SeedTags() error = %v", err)
	}
	if _, err := catalog.SeedIngredients(ctx, []types.Ingredient{
		{Name: "eggs", MeasurementUnit: "pcs"},
		{Name: "flour", MeasurementUnit: "g"},
	}); err != nil {
		t.Fatalf("SeedIngredients() error = %v", err)
	}
	api.tags, _ = catalog.ListTags(ctx)
	api.ings, _ = catalog.ListIngredients(ctx, "")
	return api
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// signup registers a user and returns their id and access token.
func (a *testAPI) signup(t *testing.T, name string) (int, string) {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/api/users", "", map[string]string{
		"email":      name + "@example.com",
		"username":   name,
		"first_name": "First",
		"last_name":  "Last",
		"password":   "password-" + name,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", name, rec.Code, rec.Body.String())
	}
	var profile types.UserProfile
	decode(t, rec, &profile)

	rec = a.do(t, http.MethodPost, "/api/auth/token/login", "", map[string]string{
		"email":    name + "@example.com",
		"password": "password-" + name,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", name, rec.Code, rec.Body.String())
	}
	var token TokenResponse
	decode(t, rec, &token)
	return profile.ID, token.AuthToken
}

func (a *testAPI) recipePayload(name string) map[string]any {
	return map[string]any{
		"ingredients":  []map[string]int{{"id": a.ings[0].ID, "amount": 2}, {"id": a.ings[1].ID, "amount": 100}},
		"tags":         []int{a.tags[0].ID},
		"image":        "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngPixel),
		"name":         name,
		"text":         "Mix and fry.",
		"cooking_time": 15,
	}
}

func (a *testAPI) createRecipe(t *testing.T, token, name string) types.RecipeDetail {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/recipes", token, a.recipePayload(name))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create recipe: status %d body %s", rec.Code, rec.Body.String())
	}
	var detail types.RecipeDetail
	decode(t, rec, &detail)
	return detail
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}
