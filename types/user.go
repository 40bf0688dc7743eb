package types

import "time"

// User represents an account in the system.
// It contains identity and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Email is the user's email address. Unique across users and used to sign in.
	Email string `json:"email" db:"email"`

	// Username is the unique public name chosen by the user.
	Username string `json:"username" db:"username"`

	// FirstName is the user's given name.
	FirstName string `json:"first_name" db:"first_name"`

	// LastName is the user's family name.
	LastName string `json:"last_name" db:"last_name"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"-" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"-" db:"updated_at"`
}

// Profile returns the public projection of the user.
func (u User) Profile() UserProfile {
	return UserProfile{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// UserProfile is the public part of a user. It is embedded in access tokens
// and returned by the API.
type UserProfile struct {
	ID        int    `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Follow is a subscription edge: UserID follows AuthorID.
type Follow struct {
	ID       int `json:"id" db:"id"`
	UserID   int `json:"user_id" db:"user_id"`
	AuthorID int `json:"author_id" db:"author_id"`
}

// Subscription describes an author as seen by a viewer: whether the viewer
// follows them, how many recipes they published and, in subscription
// listings, a preview of those recipes.
type Subscription struct {
	UserProfile
	IsSubscribed bool          `json:"is_subscribed"`
	RecipesCount int           `json:"recipes_count"`
	Recipes      []RecipeShort `json:"recipes,omitempty"`
}
