package main

import (
	"context"
	"log"

	"mytodo/internal/infrastructure/postgres"
	"mytodo/internal/infrastructure/postgres/listener"
	"mytodo/internal/infrastructure/storage"
	httphandlers "mytodo/internal/interfaces/http"
	"mytodo/internal/shared/auth"
	"mytodo/internal/shared/config"
	"mytodo/internal/sync"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB   *postgres.DB
	Feed *listener.TodoFeed

	// Handlers
	AuthHandler       *httphandlers.AuthHandler
	TodoHandler       *httphandlers.TodoHandler
	AttachmentHandler *httphandlers.AttachmentHandler
	StreamHandler     *httphandlers.StreamHandler

	// Auth
	JWT *auth.JWT

	// Sync
	Sessions *sync.Manager
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	// Connect to database
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	log.Println("Connected to database")

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db)
	todoRepo := postgres.NewTodoRepository(db)

	// Initialize blob storage
	blobs, err := storage.NewClient(ctx, cfg.Storage.CredentialsFile, cfg.Storage.Bucket)
	if err != nil {
		db.Close()
		return nil, err
	}
	log.Printf("Blob storage ready (bucket=%s)", cfg.Storage.Bucket)

	// Initialize change feed
	feed := listener.NewTodoFeed(cfg.Database.ConnectionString())
	feed.Start(ctx)

	// Initialize session manager
	sessions := sync.NewManager(todoRepo, blobs, feed, cfg.Sync.RefreshInterval)

	// Initialize auth components
	jwt := auth.NewJWT(cfg.JWT.Secret)

	// Initialize handlers
	authHandler := httphandlers.NewAuthHandler(userRepo, jwt)
	todoHandler := httphandlers.NewTodoHandler(sessions)
	attachmentHandler := httphandlers.NewAttachmentHandler(sessions)
	streamHandler := httphandlers.NewStreamHandler(sessions)

	return &Dependencies{
		DB:                db,
		Feed:              feed,
		AuthHandler:       authHandler,
		TodoHandler:       todoHandler,
		AttachmentHandler: attachmentHandler,
		StreamHandler:     streamHandler,
		JWT:               jwt,
		Sessions:          sessions,
	}, nil
}

// Close releases all resources held by dependencies. Sessions are torn down
// before the feed so subscriptions close cleanly, and the database last.
func (d *Dependencies) Close() {
	if d.Sessions != nil {
		d.Sessions.Close()
	}
	if d.Feed != nil {
		d.Feed.Stop()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
