package handlers

import (
	"context"
	"net/http"

	"github.com/foodgram/apiserver/internal/logger"
	"github.com/foodgram/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
)

type contextKey string

const contextSessionKey contextKey = "session"

func withSession(ctx context.Context, session services.Session) context.Context {
	return context.WithValue(ctx, contextSessionKey, session)
}

func sessionFromContext(ctx context.Context) (services.Session, bool) {
	session, ok := ctx.Value(contextSessionKey).(services.Session)
	return session, ok
}

// viewerID returns the authenticated user's id, or 0 for anonymous requests.
func viewerID(r *http.Request) int {
	if session, ok := sessionFromContext(r.Context()); ok {
		return session.User.ID
	}
	return 0
}

// AuthHandler provides token login and logout plus the auth middleware.
type AuthHandler struct {
	userService *services.UserService
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

// AuthRouter registers token routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/token/login", handler.Login)
	r.With(handler.RequireAuth).Delete("/token/logout", handler.Logout)
	r.With(handler.RequireAuth).Post("/token/logout", handler.Logout)
}

// RequireAuth rejects requests without a valid, unrevoked bearer token and
// stores the session in the request context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}

		session, err := h.userService.ResolveToken(r.Context(), token)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		logger.SetUserID(r.Context(), session.User.ID)
		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), session)))
	})
}

// OptionalAuth resolves a bearer token when one is sent. Requests without a
// token continue anonymously; a bad token is still rejected.
func (h *AuthHandler) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			next.ServeHTTP(w, r)
			return
		}
		h.RequireAuth(next).ServeHTTP(w, r)
	})
}

// Login verifies credentials and returns an access token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	token, err := h.userService.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{AuthToken: token})
}

// Logout revokes the token the request was made with.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.userService.Logout(r.Context(), session); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type TokenResponse struct {
	AuthToken string `json:"auth_token"`
}
