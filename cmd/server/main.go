package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/parley-chat/parley/internal/config"
	"github.com/parley-chat/parley/internal/database"
	postgresrepo "github.com/parley-chat/parley/internal/repository/postgres"
	"github.com/parley-chat/parley/internal/repository/redispresence"
	"github.com/parley-chat/parley/internal/service"
	"github.com/parley-chat/parley/internal/transport/http/handlers"
	"github.com/parley-chat/parley/internal/transport/http/middleware"
	"github.com/parley-chat/parley/internal/transport/ws"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Info("connected to postgres")

	if err := database.Migrate(ctx, pool); err != nil {
		return err
	}

	rdb, err := database.ConnectRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()
	log.Info("connected to redis")

	// Repositories
	userRepo := postgresrepo.NewUserRepo(pool)
	convRepo := postgresrepo.NewConversationRepo(pool)
	messageRepo := postgresrepo.NewMessageRepo(pool)
	groupRepo := postgresrepo.NewGroupRepo(pool)
	presenceStore := redispresence.NewStore(rdb)

	// Real-time hub
	tracker := service.NewPresenceTracker(userRepo, presenceStore, log)
	hub := ws.NewHub(tracker, log)

	// Services
	authService := service.NewAuthService(userRepo, cfg.JWTSecret)
	chatService := service.NewChatService(messageRepo, convRepo, userRepo, groupRepo, hub)
	groupService := service.NewGroupService(groupRepo, convRepo, userRepo, chatService, log)
	userService := service.NewUserService(userRepo, presenceStore)

	notifier := ws.NewHubNotifier(hub, log)
	chatService.SetNotifier(notifier)
	groupService.SetNotifier(notifier)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, log)
	chatHandler := handlers.NewChatHandler(chatService, log)
	userHandler := handlers.NewUserHandler(userService, log)
	groupHandler := handlers.NewGroupHandler(groupService, log)
	uploadHandler := handlers.NewUploadHandler(cfg.UploadDir, log)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS)

	r.Post("/api/auth/register", authHandler.Register)
	r.Post("/api/auth/login", authHandler.Login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))

		r.Get("/api/users/online", userHandler.Online)
		r.Get("/api/users/search", userHandler.Search)
		r.Post("/api/users/{userID}/block", userHandler.Block)
		r.Delete("/api/users/{userID}/block", userHandler.Unblock)

		r.Get("/api/conversations", chatHandler.ListConversations)
		r.Post("/api/conversations", chatHandler.CreateConversation)
		r.Get("/api/conversations/{conversationID}/messages", chatHandler.Messages)
		r.Delete("/api/conversations/{conversationID}/messages", chatHandler.ClearConversation)

		r.Get("/api/groups", groupHandler.List)
		r.Get("/api/groups/public", groupHandler.ListPublic)
		r.Post("/api/groups", groupHandler.Create)
		r.Post("/api/groups/{groupID}/members/{userID}", groupHandler.AddMember)
		r.Delete("/api/groups/{groupID}/members/{userID}", groupHandler.RemoveMember)
		r.Patch("/api/groups/{groupID}/name", groupHandler.Rename)
		r.Patch("/api/groups/{groupID}/settings", groupHandler.SetAdminOnly)
		r.Post("/api/groups/join/{inviteCode}", groupHandler.Join)

		r.Post("/api/upload", uploadHandler.Upload)
	})

	// WebSocket auth rides on a query param, not a header.
	r.Get("/ws", ws.ServeWS(hub, chatService, userRepo, groupRepo, cfg.JWTSecret, log))

	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "port", cfg.ServerPort)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
