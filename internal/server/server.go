package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zhirschtritt/userposts/internal/config"
	"github.com/zhirschtritt/userposts/internal/domain"
	"github.com/zhirschtritt/userposts/internal/events"
	"github.com/zhirschtritt/userposts/internal/migrations"
	"github.com/zhirschtritt/userposts/internal/repository"
	"github.com/zhirschtritt/userposts/internal/userclient"
)

type Server struct {
	logger        *slog.Logger
	startTime     time.Time
	db            *pgxpool.Pool
	config        *config.Config
	migrator      *migrations.Migrator
	eventConsumer events.EventConsumer
	*http.Server
}

// NewServer wires the service named by cfg.Service. On error every resource opened so
// far is released.
func NewServer(cfg *config.Config, logger *slog.Logger) (_ *Server, err error) {
	server := &Server{
		logger:    logger.With("service", cfg.Service),
		startTime: time.Now(),
		config:    cfg,
	}
	defer func() {
		if err != nil {
			server.close()
		}
	}()

	schema, eventsTable := migrations.UsersSchema, repository.UserEventsTable
	if cfg.Service == config.ServicePosts {
		schema, eventsTable = migrations.PostsSchema, repository.PostEventsTable
	}

	if err := server.initDatabase(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := server.initEventConsumer(eventsTable); err != nil {
		return nil, fmt.Errorf("failed to initialize event consumer: %w", err)
	}

	var handler http.Handler
	switch cfg.Service {
	case config.ServiceUsers:
		handler = server.usersHandler()
	case config.ServicePosts:
		handler, err = server.postsHandler()
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown service: %s", cfg.Service)
	}

	server.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	return server, nil
}

func (s *Server) usersHandler() http.Handler {
	userRepo := repository.NewDBUserRepository(s.db)
	userService := domain.NewUserService(userRepo, s.eventConsumer, s.logger)

	return NewUsersHandler(UsersHandlerDeps{
		Users:     userService,
		DB:        s.db,
		Logger:    s.logger,
		StartTime: s.startTime,
	})
}

func (s *Server) postsHandler() (http.Handler, error) {
	users, err := userclient.New(s.config.UsersServiceURL, userclient.Options{
		LookupTimeout: s.config.UserLookupTimeout,
		HealthTimeout: s.config.UsersHealthTimeout,
		Logger:        s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create users service client: %w", err)
	}
	s.logger.Info("users service configured", "url", users.BaseURL())

	postRepo := repository.NewDBPostRepository(s.db)
	postService := domain.NewPostService(postRepo, users, s.eventConsumer, s.logger)

	return NewPostsHandler(PostsHandlerDeps{
		Posts:           postService,
		DB:              s.db,
		UsersService:    users,
		UsersServiceURL: users.BaseURL(),
		Logger:          s.logger,
		StartTime:       s.startTime,
	}), nil
}

func (s *Server) Start() error {
	s.logger.Info("starting server", "port", s.config.Port, "start_time", s.startTime)

	errCh := make(chan error, 1)
	go func() {
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.logger.Info("server is ready to handle requests", "addr", s.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	var serveErr error
	select {
	case sig := <-quit:
		s.logger.Info("server is shutting down", "reason", sig.String())
	case serveErr = <-errCh:
		s.logger.Error("could not listen on", "addr", s.Addr, "error", serveErr)
	}

	s.gracefulShutdown()
	return serveErr
}

func (s *Server) initDatabase(schema migrations.Schema) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	connString := s.config.DB.ConnString()
	s.logger.Info("connecting to database", "host", s.config.DB.Host, "port", s.config.DB.Port, "database", s.config.DB.Name)

	pool, err := repository.NewPool(ctx, connString, repository.PoolOptions{MaxConns: s.config.DB.MaxConns})
	if err != nil {
		return err
	}
	s.db = pool
	s.logger.Info("database connection established successfully")

	if !s.config.RunMigrations {
		return nil
	}

	migrator, err := migrations.NewMigrator(schema, connString, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	s.migrator = migrator

	return migrator.Up()
}

func (s *Server) initEventConsumer(table string) error {
	repo := repository.NewDBEventsRepository(s.db, table)

	switch s.config.EventConsumerType {
	case "gochannel":
		s.eventConsumer = events.NewConsumer(repo, events.ConsumerOptions{
			BufferSize:   1000,
			BatchSize:    100,
			BatchTimeout: 100 * time.Millisecond,
			WorkerCount:  4,
			Logger:       s.logger,
		})
	case "wal":
		walConsumer, err := events.NewWALConsumer(repo, events.WALConsumerOptions{
			BufferSize:       1000,
			BatchSize:        100,
			BatchTimeout:     100 * time.Millisecond,
			WALDir:           s.config.WALDir,
			WALPrefix:        table + "_",
			SegmentThreshold: 1000,
			MaxSegments:      10,
			WorkerCount:      4,
			Logger:           s.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create WAL consumer: %w", err)
		}
		s.eventConsumer = walConsumer
	case "none":
		s.eventConsumer = events.NopConsumer{}
	default:
		return fmt.Errorf("unsupported event consumer type: %s", s.config.EventConsumerType)
	}

	s.eventConsumer.Start(context.Background())
	s.logger.Info("initialized event consumer", "type", s.config.EventConsumerType, "table", table)
	return nil
}

func (s *Server) gracefulShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.SetKeepAlivesEnabled(false)
	if err := s.Shutdown(ctx); err != nil {
		s.logger.Error("could not gracefully shutdown the server", "error", err)
	}

	s.close()
	s.logger.Info("server stopped")
}

// close releases everything except the HTTP server, in dependency order.
func (s *Server) close() {
	if s.eventConsumer != nil {
		s.eventConsumer.Stop()
		s.logger.Info("event consumer stopped")
	}

	if s.migrator != nil {
		if err := s.migrator.Close(); err != nil {
			s.logger.Error("could not close migrator", "error", err)
		}
		s.logger.Info("migrator closed")
	}

	if s.db != nil {
		s.db.Close()
		s.logger.Info("database connection closed")
	}
}
