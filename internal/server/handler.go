package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/zhirschtritt/userposts/internal/config"
	"github.com/zhirschtritt/userposts/internal/domain"
)

type UsersHandlerDeps struct {
	Users     *domain.UserService
	DB        Pinger
	Logger    *slog.Logger
	StartTime time.Time
}

type PostsHandlerDeps struct {
	Posts           *domain.PostService
	DB              Pinger
	UsersService    DependencyChecker
	UsersServiceURL string
	Logger          *slog.Logger
	StartTime       time.Time
}

func NewUsersHandler(d UsersHandlerDeps) http.Handler {
	router := newRouter(d.Logger)

	health := &HealthRouter{
		service:   config.ServiceUsers,
		startTime: d.StartTime,
		db:        d.DB,
		logger:    d.Logger,
		info: InfoResponse{
			Service:     config.ServiceUsers,
			Version:     serviceVersion,
			Description: "Microservice managing users",
			Endpoints: []string{
				"GET /users",
				"GET /users/<id>",
				"POST /users",
				"PUT /users/<id>",
				"DELETE /users/<id>",
				"GET /users/stats",
			},
		},
	}
	health.Register(router)

	router.Mount("/users", NewUserRouter(d.Users, d.Logger).Routes())

	return router
}

func NewPostsHandler(d PostsHandlerDeps) http.Handler {
	router := newRouter(d.Logger)

	health := &HealthRouter{
		service:      config.ServicePosts,
		startTime:    d.StartTime,
		db:           d.DB,
		usersService: d.UsersService,
		logger:       d.Logger,
		info: InfoResponse{
			Service:      config.ServicePosts,
			Version:      serviceVersion,
			Description:  "Microservice managing posts",
			Dependencies: map[string]string{config.ServiceUsers: d.UsersServiceURL},
			Endpoints: []string{
				"GET /posts",
				"GET /posts/<id>",
				"GET /posts/user/<user_id>",
				"POST /posts",
				"PUT /posts/<id>",
				"DELETE /posts/<id>",
				"GET /posts/stats",
			},
		},
	}
	health.Register(router)

	router.Mount("/posts", NewPostRouter(d.Posts, d.Logger).Routes())

	return router
}

func newRouter(logger *slog.Logger) *chi.Mux {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(detachCancellation)

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, logger, http.StatusNotFound, "Not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, logger, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return router
}

// detachCancellation keeps request values but drops the client's cancellation, so a
// disconnecting client does not abort a users service lookup or a database write
// halfway through.
func detachCancellation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(context.WithoutCancel(r.Context())))
	})
}
