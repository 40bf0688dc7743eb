package types

import "time"

// Tag is reference data used to label recipes (breakfast, lunch, ...).
type Tag struct {
	ID    int    `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Color string `json:"color" db:"color"`
	Slug  string `json:"slug" db:"slug"`
}

// Ingredient is reference data: a product and the unit it is measured in.
type Ingredient struct {
	ID              int    `json:"id" db:"id"`
	Name            string `json:"name" db:"name"`
	MeasurementUnit string `json:"measurement_unit" db:"measurement_unit"`
}

// Recipe is the stored recipe row. Relations are held as ids; tags and
// ingredients live in their own association rows.
type Recipe struct {
	// ID is the unique identifier of the recipe.
	ID int `json:"id" db:"id"`

	// AuthorID identifies the user who published the recipe.
	AuthorID int `json:"author_id" db:"author_id"`

	// Name is the title of the recipe.
	Name string `json:"name" db:"name"`

	// Image is the public URL of the stored recipe picture.
	Image string `json:"image" db:"image"`

	// Text is the free-form cooking description.
	Text string `json:"text" db:"text"`

	// CookingTime is expressed in minutes and is at least 1.
	CookingTime int `json:"cooking_time" db:"cooking_time"`

	// PubDate is the timestamp at which the recipe was published.
	PubDate time.Time `json:"pub_date" db:"pub_date"`
}

// Short returns the compact projection used in favorites, cart and
// subscription responses.
func (r Recipe) Short() RecipeShort {
	return RecipeShort{
		ID:          r.ID,
		Name:        r.Name,
		Image:       r.Image,
		CookingTime: r.CookingTime,
	}
}

// RecipeShort is the compact recipe projection.
type RecipeShort struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Image       string `json:"image"`
	CookingTime int    `json:"cooking_time"`
}

// RecipeTag links a recipe to a tag.
type RecipeTag struct {
	RecipeID int `json:"recipe_id" db:"recipe_id"`
	TagID    int `json:"tag_id" db:"tag_id"`
}

// RecipeIngredient links a recipe to an ingredient with an amount (at least 1).
type RecipeIngredient struct {
	RecipeID     int `json:"recipe_id" db:"recipe_id"`
	IngredientID int `json:"ingredient_id" db:"ingredient_id"`
	Amount       int `json:"amount" db:"amount"`
}

// IngredientAmount is an ingredient as it appears inside a recipe.
type IngredientAmount struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
	Amount          int    `json:"amount"`
}

// RecipeDetail is the read model returned by the API. It is assembled from
// the recipe row and explicit lookups of its relations.
type RecipeDetail struct {
	ID               int                `json:"id"`
	Author           Subscription       `json:"author"`
	Name             string             `json:"name"`
	Image            string             `json:"image"`
	Text             string             `json:"text"`
	CookingTime      int                `json:"cooking_time"`
	PubDate          time.Time          `json:"pub_date"`
	Tags             []Tag              `json:"tags"`
	Ingredients      []IngredientAmount `json:"ingredients"`
	IsFavorited      bool               `json:"is_favorited"`
	IsInShoppingCart bool               `json:"is_in_shopping_cart"`
}

// RecipeFilter narrows recipe listings. Zero values disable a filter.
type RecipeFilter struct {
	AuthorID    int
	TagSlugs    []string
	FavoritedBy int
	InCartOf    int
	Offset      int
	Limit       int
}

// Favorite marks a recipe as a user's favorite.
type Favorite struct {
	ID       int `json:"id" db:"id"`
	UserID   int `json:"user_id" db:"user_id"`
	RecipeID int `json:"recipe_id" db:"recipe_id"`
}

// Purchase puts a recipe in a user's shopping cart.
type Purchase struct {
	ID       int `json:"id" db:"id"`
	UserID   int `json:"user_id" db:"user_id"`
	RecipeID int `json:"recipe_id" db:"recipe_id"`
}

// ShoppingListItem is one aggregated line of the shopping list.
type ShoppingListItem struct {
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
	Amount          int    `json:"amount"`
}
