package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/zhirschtritt/userposts/internal/domain"
)

type UserRouter struct {
	userService *domain.UserService
	logger      *slog.Logger
}

func NewUserRouter(userService *domain.UserService, logger *slog.Logger) *UserRouter {
	return &UserRouter{
		userService: userService,
		logger:      logger,
	}
}

func (ur *UserRouter) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", ur.listUsers)
	r.Post("/", ur.createUser)
	r.Get("/stats", ur.stats)
	r.Get("/{id:[0-9]+}", ur.getUser)
	r.Put("/{id:[0-9]+}", ur.updateUser)
	r.Delete("/{id:[0-9]+}", ur.deleteUser)
	return r
}

type UserResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	User    *domain.User `json:"user"`
}

type ListUsersResponse struct {
	Success bool          `json:"success"`
	Count   int           `json:"count"`
	Users   []domain.User `json:"users"`
}

type UserStatsResponse struct {
	Success bool              `json:"success"`
	Stats   *domain.UserStats `json:"stats"`
}

func (ur *UserRouter) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := ur.userService.ListUsers(r.Context())
	if err != nil {
		ur.handleError(w, err)
		return
	}
	if users == nil {
		users = []domain.User{}
	}

	writeJSON(w, ur.logger, http.StatusOK, ListUsersResponse{Success: true, Count: len(users), Users: users})
}

func (ur *UserRouter) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, ur.logger, http.StatusNotFound, "User not found")
		return
	}

	user, err := ur.userService.GetUser(r.Context(), id)
	if err != nil {
		ur.handleError(w, err)
		return
	}

	writeJSON(w, ur.logger, http.StatusOK, UserResponse{Success: true, User: user})
}

func (ur *UserRouter) createUser(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		ur.logger.Warn("failed to decode create user request", "error", err)
		writeError(w, ur.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := ur.userService.CreateUser(r.Context(), req)
	if err != nil {
		ur.handleError(w, err)
		return
	}

	writeJSON(w, ur.logger, http.StatusCreated, UserResponse{Success: true, User: user})
}

func (ur *UserRouter) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, ur.logger, http.StatusNotFound, "User not found")
		return
	}

	var req domain.UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		if errors.Is(err, errEmptyBody) {
			writeError(w, ur.logger, http.StatusBadRequest, "No data provided")
			return
		}
		ur.logger.Warn("failed to decode update user request", "error", err)
		writeError(w, ur.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := ur.userService.UpdateUser(r.Context(), id, req)
	if err != nil {
		ur.handleError(w, err)
		return
	}

	writeJSON(w, ur.logger, http.StatusOK, UserResponse{Success: true, User: user})
}

func (ur *UserRouter) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, ur.logger, http.StatusNotFound, "User not found")
		return
	}

	user, err := ur.userService.DeleteUser(r.Context(), id)
	if err != nil {
		ur.handleError(w, err)
		return
	}

	writeJSON(w, ur.logger, http.StatusOK, UserResponse{Success: true, Message: "User deleted", User: user})
}

func (ur *UserRouter) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := ur.userService.Stats(r.Context())
	if err != nil {
		ur.handleError(w, err)
		return
	}

	writeJSON(w, ur.logger, http.StatusOK, UserStatsResponse{Success: true, Stats: stats})
}

func (ur *UserRouter) handleError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, ur.logger, http.StatusBadRequest, verr.Message)
	case errors.Is(err, domain.ErrNoFieldsToUpdate):
		writeError(w, ur.logger, http.StatusBadRequest, "No fields to update")
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, ur.logger, http.StatusNotFound, "User not found")
	case errors.Is(err, domain.ErrEmailAlreadyExists):
		writeError(w, ur.logger, http.StatusConflict, "Email already exists")
	default:
		ur.logger.Error("user request failed", "error", err)
		writeError(w, ur.logger, http.StatusInternalServerError, err.Error())
	}
}
