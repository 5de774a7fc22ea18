package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/zhirschtritt/userposts/internal/domain"
)

type PostRouter struct {
	postService *domain.PostService
	logger      *slog.Logger
}

func NewPostRouter(postService *domain.PostService, logger *slog.Logger) *PostRouter {
	return &PostRouter{
		postService: postService,
		logger:      logger,
	}
}

func (pr *PostRouter) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", pr.listPosts)
	r.Post("/", pr.createPost)
	r.Get("/stats", pr.stats)
	r.Get("/user/{userId:[0-9]+}", pr.listPostsByUser)
	r.Get("/{id:[0-9]+}", pr.getPost)
	r.Put("/{id:[0-9]+}", pr.updatePost)
	r.Delete("/{id:[0-9]+}", pr.deletePost)
	return r
}

type PostResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Post    *domain.Post `json:"post"`
}

type ListPostsResponse struct {
	Success bool                 `json:"success"`
	Count   int                  `json:"count"`
	User    *domain.UserSnapshot `json:"user,omitempty"`
	Posts   []domain.Post        `json:"posts"`
}

type PostStatsResponse struct {
	Success bool              `json:"success"`
	Stats   *domain.PostStats `json:"stats"`
}

func (pr *PostRouter) listPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := pr.postService.ListPosts(r.Context())
	if err != nil {
		pr.handleError(w, err, "Post not found")
		return
	}

	writeJSON(w, pr.logger, http.StatusOK, newListPostsResponse(nil, posts))
}

func (pr *PostRouter) getPost(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, pr.logger, http.StatusNotFound, "Post not found")
		return
	}

	post, err := pr.postService.GetPost(r.Context(), id)
	if err != nil {
		pr.handleError(w, err, "Post not found")
		return
	}

	writeJSON(w, pr.logger, http.StatusOK, PostResponse{Success: true, Post: post})
}

func (pr *PostRouter) listPostsByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(r, "userId")
	if !ok {
		writeError(w, pr.logger, http.StatusNotFound, "User not found")
		return
	}

	author, posts, err := pr.postService.ListPostsByUser(r.Context(), userID)
	if err != nil {
		pr.handleError(w, err, "User not found")
		return
	}

	writeJSON(w, pr.logger, http.StatusOK, newListPostsResponse(author, posts))
}

func (pr *PostRouter) createPost(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePostRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		pr.logger.Warn("failed to decode create post request", "error", err)
		writeError(w, pr.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	post, err := pr.postService.CreatePost(r.Context(), req)
	if err != nil {
		pr.handleError(w, err, fmt.Sprintf("User %d does not exist", req.UserID))
		return
	}

	writeJSON(w, pr.logger, http.StatusCreated, PostResponse{Success: true, Post: post})
}

func (pr *PostRouter) updatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, pr.logger, http.StatusNotFound, "Post not found")
		return
	}

	var req domain.UpdatePostRequest
	if err := decodeJSON(r, &req); err != nil {
		if errors.Is(err, errEmptyBody) {
			writeError(w, pr.logger, http.StatusBadRequest, "No data provided")
			return
		}
		pr.logger.Warn("failed to decode update post request", "error", err)
		writeError(w, pr.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	post, err := pr.postService.UpdatePost(r.Context(), id, req)
	if err != nil {
		pr.handleError(w, err, "Post not found")
		return
	}

	writeJSON(w, pr.logger, http.StatusOK, PostResponse{Success: true, Post: post})
}

func (pr *PostRouter) deletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, pr.logger, http.StatusNotFound, "Post not found")
		return
	}

	post, err := pr.postService.DeletePost(r.Context(), id)
	if err != nil {
		pr.handleError(w, err, "Post not found")
		return
	}

	writeJSON(w, pr.logger, http.StatusOK, PostResponse{Success: true, Message: "Post deleted", Post: post})
}

func (pr *PostRouter) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := pr.postService.Stats(r.Context())
	if err != nil {
		pr.handleError(w, err, "")
		return
	}

	writeJSON(w, pr.logger, http.StatusOK, PostStatsResponse{Success: true, Stats: stats})
}

func newListPostsResponse(author *domain.UserSnapshot, posts []domain.Post) ListPostsResponse {
	if posts == nil {
		posts = []domain.Post{}
	}
	return ListPostsResponse{Success: true, Count: len(posts), User: author, Posts: posts}
}

// handleError maps domain errors to responses. A missing user and an unreachable
// users service both end up as 404 with userMissing as the message.
func (pr *PostRouter) handleError(w http.ResponseWriter, err error, userMissing string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, pr.logger, http.StatusBadRequest, verr.Message)
	case errors.Is(err, domain.ErrNoFieldsToUpdate):
		writeError(w, pr.logger, http.StatusBadRequest, "No fields to update")
	case errors.Is(err, domain.ErrPostNotFound):
		writeError(w, pr.logger, http.StatusNotFound, "Post not found")
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, pr.logger, http.StatusNotFound, userMissing)
	default:
		pr.logger.Error("post request failed", "error", err)
		writeError(w, pr.logger, http.StatusInternalServerError, err.Error())
	}
}
