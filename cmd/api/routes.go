package main

import (
	"log"
	"net/http"

	httphandlers "mytodo/internal/interfaces/http"
	"mytodo/internal/shared/config"
	"mytodo/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// Static pages
	mux.HandleFunc("/", httphandlers.HandleIndexPage)
	mux.HandleFunc("/login", httphandlers.HandleLoginPage)

	// Health check
	mux.HandleFunc("/health", httphandlers.HandleHealth)

	// Public auth routes
	mux.HandleFunc("/api/auth/register", deps.AuthHandler.HandleRegister)
	mux.HandleFunc("/api/auth/login", deps.AuthHandler.HandleLogin)
	mux.HandleFunc("/api/auth/logout", deps.AuthHandler.HandleLogout)

	// Protected routes
	authMiddleware := middleware.Auth(deps.JWT)

	mux.Handle("/api/auth/me", authMiddleware(http.HandlerFunc(deps.AuthHandler.HandleMe)))
	mux.Handle("/api/todos", authMiddleware(http.HandlerFunc(deps.TodoHandler.HandleTodos)))
	mux.Handle("/api/todos/{id}", authMiddleware(http.HandlerFunc(deps.TodoHandler.HandleTodoByID)))
	mux.Handle("/api/todos/attachments", authMiddleware(http.HandlerFunc(deps.AttachmentHandler.HandleAttachments)))
	mux.Handle("/api/todos/stream", authMiddleware(http.HandlerFunc(deps.StreamHandler.HandleStream)))

	// Apply global middleware
	handler := middleware.Logging(middleware.CORS(cfg.Server.AllowedHosts)(mux))

	// Apply security middleware when TLS is enabled
	if cfg.TLS.Enabled {
		handler = middleware.HSTS(middleware.SecureCookies(handler))
		log.Println("TLS security middleware enabled (HSTS + SecureCookies)")
	}

	return handler
}
