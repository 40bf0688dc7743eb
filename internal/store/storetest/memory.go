// Package storetest provides in-memory implementations of the repositories
// and side channels for service and handler tests.
package storetest

import (
	"bytes"
	"context"
	"io"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/foodgram/apiserver/internal/store"
	"github.com/foodgram/apiserver/types"
)

// maxSmallint mirrors the SMALLINT width of cooking_time and amount.
const maxSmallint = 32767

type pair struct{ a, b int }

// Memory is a single in-memory database backing every repository interface.
// It mirrors the constraint behavior of the SQL store.
type Memory struct {
	mu sync.Mutex

	nextID      map[string]int
	users       map[int]types.User
	tags        map[int]types.Tag
	ingredients map[int]types.Ingredient
	recipes     map[int]types.Recipe
	recipeTags  map[int][]int
	recipeIngr  map[int][]types.RecipeIngredient
	follows     map[pair]int
	favorites   map[pair]int
	purchases   map[pair]int

	// Err, when set, is returned by every repository call.
	Err error
}

func NewMemory() *Memory {
	return &Memory{
		nextID:      map[string]int{},
		users:       map[int]types.User{},
		tags:        map[int]types.Tag{},
		ingredients: map[int]types.Ingredient{},
		recipes:     map[int]types.Recipe{},
		recipeTags:  map[int][]int{},
		recipeIngr:  map[int][]types.RecipeIngredient{},
		follows:     map[pair]int{},
		favorites:   map[pair]int{},
		purchases:   map[pair]int{},
	}
}

func (m *Memory) id(kind string) int {
	m.nextID[kind]++
	return m.nextID[kind]
}

func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}
	if offset >= len(items) {
		return []T{}
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Users

func (m *Memory) GetByID(_ context.Context, id int) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return types.User{}, m.Err
	}
	user, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *Memory) findUser(match func(types.User) bool) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return types.User{}, m.Err
	}
	for _, id := range sortedKeys(m.users) {
		if match(m.users[id]) {
			return m.users[id], nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *Memory) GetByEmail(_ context.Context, email string) (types.User, error) {
	return m.findUser(func(u types.User) bool { return u.Email == email })
}

func (m *Memory) GetByUsername(_ context.Context, username string) (types.User, error) {
	return m.findUser(func(u types.User) bool { return u.Username == username })
}

func (m *Memory) List(_ context.Context, offset, limit int) ([]types.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, 0, m.Err
	}
	all := make([]types.User, 0, len(m.users))
	for _, id := range sortedKeys(m.users) {
		all = append(all, m.users[id])
	}
	return slices.Clone(page(all, offset, limit)), len(all), nil
}

func (m *Memory) Create(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return types.User{}, m.Err
	}
	for _, existing := range m.users {
		if existing.Email == user.Email || existing.Username == user.Username {
			return types.User{}, store.ErrConflict
		}
	}
	now := time.Now()
	user.ID = m.id("users")
	user.CreatedAt = now
	user.UpdatedAt = now
	m.users[user.ID] = user
	return user, nil
}

func (m *Memory) UpdatePassword(_ context.Context, id int, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	user, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now()
	m.users[id] = user
	return nil
}

// Catalog

func (m *Memory) ListTags(_ context.Context) ([]types.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	tags := []types.Tag{}
	for _, id := range sortedKeys(m.tags) {
		tags = append(tags, m.tags[id])
	}
	return tags, nil
}

func (m *Memory) GetTag(_ context.Context, id int) (types.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return types.Tag{}, m.Err
	}
	tag, ok := m.tags[id]
	if !ok {
		return types.Tag{}, store.ErrNotFound
	}
	return tag, nil
}

func (m *Memory) GetTagsByIDs(_ context.Context, ids []int) ([]types.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	tags := []types.Tag{}
	for _, id := range sortedKeys(m.tags) {
		if slices.Contains(ids, id) {
			tags = append(tags, m.tags[id])
		}
	}
	return tags, nil
}

func (m *Memory) ListIngredients(_ context.Context, prefix string) ([]types.Ingredient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	items := []types.Ingredient{}
	for _, id := range sortedKeys(m.ingredients) {
		ingredient := m.ingredients[id]
		if strings.HasPrefix(strings.ToLower(ingredient.Name), prefix) {
			items = append(items, ingredient)
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (m *Memory) GetIngredient(_ context.Context, id int) (types.Ingredient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return types.Ingredient{}, m.Err
	}
	ingredient, ok := m.ingredients[id]
	if !ok {
		return types.Ingredient{}, store.ErrNotFound
	}
	return ingredient, nil
}

func (m *Memory) GetIngredientsByIDs(_ context.Context, ids []int) ([]types.Ingredient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	items := []types.Ingredient{}
	for _, id := range sortedKeys(m.ingredients) {
		if slices.Contains(ids, id) {
			items = append(items, m.ingredients[id])
		}
	}
	return items, nil
}

func (m *Memory) CreateTags(_ context.Context, tags []types.Tag) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	inserted := 0
	for _, tag := range tags {
		duplicate := false
		for _, existing := range m.tags {
			if existing.Name == tag.Name || existing.Color == tag.Color || existing.Slug == tag.Slug {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		tag.ID = m.id("tags")
		m.tags[tag.ID] = tag
		inserted++
	}
	return inserted, nil
}

func (m *Memory) CreateIngredients(_ context.Context, ingredients []types.Ingredient) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	inserted := 0
	for _, ingredient := range ingredients {
		duplicate := false
		for _, existing := range m.ingredients {
			if existing.Name == ingredient.Name && existing.MeasurementUnit == ingredient.MeasurementUnit {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		ingredient.ID = m.id("ingredients")
		m.ingredients[ingredient.ID] = ingredient
		inserted++
	}
	return inserted, nil
}

// Recipes

// RecipeStore adapts Memory to the recipe repository interface, whose
// method names overlap with the user repository.
type RecipeStore struct{ m *Memory }

// Recipes returns the recipe repository view of m.
func (m *Memory) Recipes() RecipeStore { return RecipeStore{m: m} }

func (r RecipeStore) Create(_ context.Context, recipe types.Recipe, ingredients []types.RecipeIngredient, tagIDs []int) (types.Recipe, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return types.Recipe{}, m.Err
	}
	if _, ok := m.users[recipe.AuthorID]; !ok {
		return types.Recipe{}, store.ErrConflict
	}
	if recipe.CookingTime < 1 || recipe.CookingTime > maxSmallint {
		return types.Recipe{}, store.ErrInvalid
	}
	seen := map[int]bool{}
	for _, item := range ingredients {
		if _, ok := m.ingredients[item.IngredientID]; !ok || seen[item.IngredientID] {
			return types.Recipe{}, store.ErrConflict
		}
		if item.Amount < 1 || item.Amount > maxSmallint {
			return types.Recipe{}, store.ErrInvalid
		}
		seen[item.IngredientID] = true
	}
	seenTags := map[int]bool{}
	for _, id := range tagIDs {
		if _, ok := m.tags[id]; !ok || seenTags[id] {
			return types.Recipe{}, store.ErrConflict
		}
		seenTags[id] = true
	}

	if recipe.PubDate.IsZero() {
		recipe.PubDate = time.Now()
	}
	recipe.ID = m.id("recipes")
	m.recipes[recipe.ID] = recipe
	links := make([]types.RecipeIngredient, len(ingredients))
	for i, item := range ingredients {
		item.RecipeID = recipe.ID
		links[i] = item
	}
	m.recipeIngr[recipe.ID] = links
	m.recipeTags[recipe.ID] = slices.Clone(tagIDs)
	return recipe, nil
}

func (r RecipeStore) Get(_ context.Context, id int) (types.Recipe, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return types.Recipe{}, m.Err
	}
	recipe, ok := m.recipes[id]
	if !ok {
		return types.Recipe{}, store.ErrNotFound
	}
	return recipe, nil
}

func (r RecipeStore) List(_ context.Context, filter types.RecipeFilter) ([]types.Recipe, int, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, 0, m.Err
	}

	matched := []types.Recipe{}
	for _, id := range sortedKeys(m.recipes) {
		recipe := m.recipes[id]
		if filter.AuthorID > 0 && recipe.AuthorID != filter.AuthorID {
			continue
		}
		if filter.FavoritedBy > 0 {
			if _, ok := m.favorites[pair{filter.FavoritedBy, id}]; !ok {
				continue
			}
		}
		if filter.InCartOf > 0 {
			if _, ok := m.purchases[pair{filter.InCartOf, id}]; !ok {
				continue
			}
		}
		if len(filter.TagSlugs) > 0 && !m.hasAnyTag(id, filter.TagSlugs) {
			continue
		}
		matched = append(matched, recipe)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].PubDate.Equal(matched[j].PubDate) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].PubDate.After(matched[j].PubDate)
	})
	return slices.Clone(page(matched, filter.Offset, filter.Limit)), len(matched), nil
}

func (m *Memory) hasAnyTag(recipeID int, slugs []string) bool {
	for _, tagID := range m.recipeTags[recipeID] {
		if slices.Contains(slugs, m.tags[tagID].Slug) {
			return true
		}
	}
	return false
}

func (r RecipeStore) Tags(_ context.Context, recipeID int) ([]types.Tag, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	tags := []types.Tag{}
	ids := slices.Clone(m.recipeTags[recipeID])
	sort.Ints(ids)
	for _, id := range ids {
		tags = append(tags, m.tags[id])
	}
	return tags, nil
}

func (r RecipeStore) Ingredients(_ context.Context, recipeID int) ([]types.IngredientAmount, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	items := []types.IngredientAmount{}
	for _, link := range m.recipeIngr[recipeID] {
		ingredient := m.ingredients[link.IngredientID]
		items = append(items, types.IngredientAmount{
			ID:              ingredient.ID,
			Name:            ingredient.Name,
			MeasurementUnit: ingredient.MeasurementUnit,
			Amount:          link.Amount,
		})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (r RecipeStore) CountByAuthor(_ context.Context, authorID int) (int, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	count := 0
	for _, recipe := range m.recipes {
		if recipe.AuthorID == authorID {
			count++
		}
	}
	return count, nil
}

// Relations

func (m *Memory) createPair(rows map[pair]int, kind string, p pair, exists func() bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	if _, ok := m.users[p.a]; !ok || !exists() {
		return 0, store.ErrConflict
	}
	if _, ok := rows[p]; ok {
		return 0, store.ErrConflict
	}
	id := m.id(kind)
	rows[p] = id
	return id, nil
}

func (m *Memory) deletePair(rows map[pair]int, p pair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := rows[p]; !ok {
		return store.ErrNotFound
	}
	delete(rows, p)
	return nil
}

func (m *Memory) hasPair(rows map[pair]int, p pair) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	_, ok := rows[p]
	return ok, nil
}

func (m *Memory) userExists(id int) func() bool {
	return func() bool { _, ok := m.users[id]; return ok }
}

func (m *Memory) recipeExists(id int) func() bool {
	return func() bool { _, ok := m.recipes[id]; return ok }
}

func (m *Memory) CreateFollow(_ context.Context, userID, authorID int) (types.Follow, error) {
	id, err := m.createPair(m.follows, "follows", pair{userID, authorID}, m.userExists(authorID))
	if err != nil {
		return types.Follow{}, err
	}
	return types.Follow{ID: id, UserID: userID, AuthorID: authorID}, nil
}

func (m *Memory) DeleteFollow(_ context.Context, userID, authorID int) error {
	return m.deletePair(m.follows, pair{userID, authorID})
}

func (m *Memory) IsFollowing(_ context.Context, userID, authorID int) (bool, error) {
	return m.hasPair(m.follows, pair{userID, authorID})
}

func (m *Memory) ListFollowing(_ context.Context, userID, offset, limit int) ([]types.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, 0, m.Err
	}
	type edge struct{ id, author int }
	var edges []edge
	for p, id := range m.follows {
		if p.a == userID {
			edges = append(edges, edge{id, p.b})
		}
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].id < edges[j].id })
	authors := make([]types.User, 0, len(edges))
	for _, e := range edges {
		authors = append(authors, m.users[e.author])
	}
	return slices.Clone(page(authors, offset, limit)), len(authors), nil
}

func (m *Memory) CreateFavorite(_ context.Context, userID, recipeID int) (types.Favorite, error) {
	id, err := m.createPair(m.favorites, "favorites", pair{userID, recipeID}, m.recipeExists(recipeID))
	if err != nil {
		return types.Favorite{}, err
	}
	return types.Favorite{ID: id, UserID: userID, RecipeID: recipeID}, nil
}

func (m *Memory) DeleteFavorite(_ context.Context, userID, recipeID int) error {
	return m.deletePair(m.favorites, pair{userID, recipeID})
}

func (m *Memory) IsFavorite(_ context.Context, userID, recipeID int) (bool, error) {
	return m.hasPair(m.favorites, pair{userID, recipeID})
}

func (m *Memory) CreatePurchase(_ context.Context, userID, recipeID int) (types.Purchase, error) {
	id, err := m.createPair(m.purchases, "purchases", pair{userID, recipeID}, m.recipeExists(recipeID))
	if err != nil {
		return types.Purchase{}, err
	}
	return types.Purchase{ID: id, UserID: userID, RecipeID: recipeID}, nil
}

func (m *Memory) DeletePurchase(_ context.Context, userID, recipeID int) error {
	return m.deletePair(m.purchases, pair{userID, recipeID})
}

func (m *Memory) IsPurchase(_ context.Context, userID, recipeID int) (bool, error) {
	return m.hasPair(m.purchases, pair{userID, recipeID})
}

func (m *Memory) ShoppingList(_ context.Context, userID int) ([]types.ShoppingListItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	type key struct{ name, unit string }
	totals := map[key]int{}
	for p := range m.purchases {
		if p.a != userID {
			continue
		}
		for _, link := range m.recipeIngr[p.b] {
			ingredient := m.ingredients[link.IngredientID]
			totals[key{ingredient.Name, ingredient.MeasurementUnit}] += link.Amount
		}
	}
	items := make([]types.ShoppingListItem, 0, len(totals))
	for k, amount := range totals {
		items = append(items, types.ShoppingListItem{Name: k.name, MeasurementUnit: k.unit, Amount: amount})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name == items[j].Name {
			return items[i].MeasurementUnit < items[j].MeasurementUnit
		}
		return items[i].Name < items[j].Name
	})
	return items, nil
}

// Denylist is an in-memory token denylist with an injectable clock.
type Denylist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	Now     func() time.Time
	Err     error
}

func NewDenylist() *Denylist {
	return &Denylist{entries: map[string]time.Time{}, Now: time.Now}
}

func (d *Denylist) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	if ttl <= 0 {
		return nil
	}
	d.entries[jti] = d.Now().Add(ttl)
	return nil
}

func (d *Denylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return false, d.Err
	}
	expires, ok := d.entries[jti]
	return ok && d.Now().Before(expires), nil
}

// Len returns the number of stored entries, expired or not.
func (d *Denylist) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Images is an in-memory image store.
type Images struct {
	mu      sync.Mutex
	Objects map[string][]byte
	PutErr  error
}

func NewImages() *Images {
	return &Images{Objects: map[string][]byte{}}
}

func (i *Images) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if i.PutErr != nil {
		return i.PutErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Objects[key] = buf.Bytes()
	return nil
}

func (i *Images) Delete(_ context.Context, key string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.Objects, key)
	return nil
}

func (i *Images) URL(key string) string {
	return "/media/" + key
}

func (i *Images) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.Objects)
}

// Events records published domain events.
type Events struct {
	mu     sync.Mutex
	Topics []string
	Err    error
}

func (e *Events) PublishEvent(_ context.Context, topic string, _ any) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return "", e.Err
	}
	e.Topics = append(e.Topics, topic)
	return topic, nil
}

func (e *Events) Published() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.Topics)
}
