package handlers

import (
	"net/http"

	"github.com/foodgram/apiserver/internal/services"
	"github.com/foodgram/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// UserHandler provides account and subscription endpoints.
type UserHandler struct {
	userService     *services.UserService
	relationService *services.RelationService
}

func NewUserHandler(userService *services.UserService, relationService *services.RelationService) *UserHandler {
	return &UserHandler{
		userService:     userService,
		relationService: relationService,
	}
}

// UserRouter registers user routes on the given router.
func UserRouter(r chi.Router, handler *UserHandler, auth *AuthHandler) {
	r.Post("/", handler.Register)
	r.Get("/", handler.List)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Get("/me", handler.Me)
		r.Post("/set_password", handler.SetPassword)
		r.Get("/subscriptions", handler.Subscriptions)
		r.Get("/{userID}", handler.Get)
		r.Post("/{userID}/subscribe", handler.Subscribe)
		r.Delete("/{userID}/subscribe", handler.Unsubscribe)
	})
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	user, err := h.userService.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, user.Profile())
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, total, err := h.userService.List(r.Context(), offset, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	profiles := make([]types.UserProfile, len(users))
	for i, user := range users {
		profiles[i] = user.Profile()
	}
	writeJSON(w, http.StatusOK, ListResponse[types.UserProfile]{
		Items: profiles,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, session.User.Profile())
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user.Profile())
}

func (h *UserHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	var req services.SetPasswordInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	session, _ := sessionFromContext(r.Context())
	if err := h.userService.SetPassword(r.Context(), session.User, req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) Subscriptions(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recipesLimit, err := parseOptionalInt(r, "recipes_limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	subs, total, err := h.relationService.ListSubscriptions(r.Context(), viewerID(r), offset, limit, recipesLimit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse[types.Subscription]{
		Items: subs,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *UserHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	authorID, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	recipesLimit, err := parseOptionalInt(r, "recipes_limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.relationService.Follow(r.Context(), viewerID(r), authorID, recipesLimit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

func (h *UserHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	authorID, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	if err := h.relationService.Unfollow(r.Context(), viewerID(r), authorID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
