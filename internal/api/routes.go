// Package api contains the API routes for the Profile API
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/nsvirk/profileapi/internal/api/handlers"
	"github.com/nsvirk/profileapi/internal/api/middleware"
	"github.com/nsvirk/profileapi/internal/config"
	"github.com/nsvirk/profileapi/internal/repository"
	"github.com/nsvirk/profileapi/internal/service"
	"github.com/nsvirk/profileapi/internal/validator"
	"github.com/nsvirk/profileapi/pkg/utils/response"
)

// Dependencies are the stores and services the routes are built on
type Dependencies struct {
	Sessions       repository.SessionStore
	Users          repository.UserStore
	SessionService *service.SessionService
	UserService    *service.UserService
}

// SetupRoutes configures the routes for the API
func SetupRoutes(e *echo.Echo, cfg *config.Config, deps Dependencies) {
	e.HTTPErrorHandler = response.HTTPErrorHandler
	e.Validator = validator.New()

	indexHandler := handlers.NewIndexHandler(cfg)

	// Static and informational routes (outside the auth gate)
	e.Static("/public", cfg.PublicDir)
	e.GET("/status", indexHandler.Status)
	e.GET("/terms", indexHandler.Terms)

	// Every /api route, including unknown ones, passes the auth gate
	authConfig := middleware.AuthConfig{Enabled: cfg.AuthEnabled, Whitelist: cfg.AuthWhitelist}
	api := e.Group("/api",
		middleware.AuthMiddleware(authConfig, deps.Sessions, deps.Users),
		middleware.SessionTouch(deps.Sessions),
	)

	// Index route
	api.GET("/", indexHandler.Index)

	// Auth routes (whitelisted by default, except logout)
	sessionHandler := handlers.NewSessionHandler(deps.SessionService)
	authGroup := api.Group("/auth")
	authGroup.POST("/register", sessionHandler.Register)
	authGroup.POST("/login", sessionHandler.Login)
	authGroup.POST("/logout", sessionHandler.Logout)
	authGroup.POST("/confirm", sessionHandler.ConfirmEmail)
	authGroup.POST("/forgot-password", sessionHandler.ForgotPassword)
	authGroup.POST("/reset-password", sessionHandler.ResetPassword)

	// User routes (protected)
	userHandler := handlers.NewUserHandler(deps.UserService)
	userGroup := api.Group("/user")
	userGroup.GET("", userHandler.GetCurrentUser)
	userGroup.PUT("", userHandler.UpdateProfile)
	userGroup.GET("/search/:search", userHandler.SearchUsers)
	userGroup.GET("/:id", userHandler.GetUser)
	userGroup.POST("/avatar", userHandler.UpdateAvatar)
	userGroup.POST("/changePassword", userHandler.ChangePassword)
	userGroup.POST("/block", userHandler.ToggleBlocked)
}
