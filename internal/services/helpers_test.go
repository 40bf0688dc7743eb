package services

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/foodgram/apiserver/internal/auth"
	"github.com/foodgram/apiserver/internal/store/storetest"
	"github.com/foodgram/apiserver/types"
)

// 1x1 transparent PNG.
var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func pngDataURI() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngPixel)
}

type fakeRecorder struct {
	logins, failedLogins, revoked, registered, recipes int
}

func (f *fakeRecorder) RecordLogin(success bool) {
	if success {
		f.logins++
		return
	}
	f.failedLogins++
}
func (f *fakeRecorder) RecordTokenRevoked()   { f.revoked++ }
func (f *fakeRecorder) RecordUserRegistered() { f.registered++ }
func (f *fakeRecorder) RecordRecipeCreated()  { f.recipes++ }

type env struct {
	mem       *storetest.Memory
	denylist  *storetest.Denylist
	images    *storetest.Images
	events    *storetest.Events
	recorder  *fakeRecorder
	issuer    *auth.Issuer
	now       time.Time
	users     *UserService
	catalog   *CatalogService
	recipes   *RecipeService
	relations *RelationService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		mem:      storetest.NewMemory(),
		denylist: storetest.NewDenylist(),
		images:   storetest.NewImages(),
		events:   &storetest.Events{},
		recorder: &fakeRecorder{},
		now:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	issuer, err := auth.NewIssuer("test-secret", "HS256", 24*time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	e.issuer = issuer.WithClock(func() time.Time { return e.now })
	e.denylist.Now = func() time.Time { return e.now }

	opts := []Option{WithRecorder(e.recorder), WithPublisher(e.events)}
	recipes := e.mem.Recipes()
	e.users = NewUserService(e.mem, e.issuer, e.denylist, opts...)
	e.catalog = NewCatalogService(e.mem, opts...)
	e.recipes = NewRecipeService(recipes, e.catalog, e.mem, e.mem, e.images, opts...)
	e.relations = NewRelationService(e.mem, e.mem, recipes, opts...)
	return e
}

func (e *env) register(t *testing.T, name string) types.User {
	t.Helper()
	user, err := e.users.Register(context.Background(), RegisterInput{
		Email:     name + "@example.com",
		Username:  name,
		FirstName: "First",
		LastName:  "Last",
		Password:  "password-" + name,
	})
	if err != nil {
		t.Fatalf("Register(%s) error = %v", name, err)
	}
	return user
}

func (e *env) seedCatalog(t *testing.T) ([]types.Tag, []types.Ingredient) {
	t.Helper()
	ctx := context.Background()
	if _, err := e.catalog.SeedTags(ctx, []types.Tag{
		{Name: "Breakfast", Color: "#E26C2D", Slug: "breakfast"},
		{Name: "Dinner", Color: "#8775D2", Slug: "dinner"},
	}); err != nil {
		t.Fatalf("SeedTags() error = %v", err)
	}
	if _, err := e.catalog.SeedIngredients(ctx, []types.Ingredient{
		{Name: "eggs", MeasurementUnit: "pcs"},
		{Name: "flour", MeasurementUnit: "g"},
		{Name: "milk", MeasurementUnit: "ml"},
	}); err != nil {
		t.Fatalf("SeedIngredients() error = %v", err)
	}
	tags, _ := e.catalog.ListTags(ctx)
	ingredients, _ := e.catalog.ListIngredients(ctx, "")
	return tags, ingredients
}

func (e *env) createRecipe(t *testing.T, author types.User, name string, tagID int, ingredients ...IngredientRef) types.RecipeDetail {
	t.Helper()
	detail, err := e.recipes.Create(context.Background(), author, CreateRecipeInput{
		Ingredients: ingredients,
		Tags:        []int{tagID},
		Image:       pngDataURI(),
		Name:        name,
		Text:        "Cook it.",
		CookingTime: 10,
	})
	if err != nil {
		t.Fatalf("Create(%s) error = %v", name, err)
	}
	return detail
}
