package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/userhub/backend/internal/config"
	"github.com/userhub/backend/internal/db"
	"github.com/userhub/backend/internal/handler"
	"github.com/userhub/backend/internal/service"
)

func main() {
	_ = godotenv.Load()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres init failed")
	}
	defer store.Close()

	if err := store.EnsureUserSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema init failed")
	}

	tokenTTL, _ := cfg.Auth.ParseTokenTTL()
	bcryptCost, _ := cfg.Auth.ParseBcryptCost()

	tokens, err := service.NewTokenService(cfg.Auth.JWTSecret, tokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("token service init failed")
	}

	authSvc, err := service.NewAuthService(store, service.NewPasswordHasher(bcryptCost), tokens)
	if err != nil {
		log.Fatal().Err(err).Msg("auth service init failed")
	}

	router := newRouter(log, cfg, store, authSvc)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("server ready")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("received termination signal, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Msg("server stopped")
}

func newRouter(log zerolog.Logger, cfg config.Config, store *db.Postgres, authSvc *service.AuthService) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handler.RequestID())
	router.Use(handler.RequestLogger(log))
	router.Use(handler.CORSMiddleware(cfg.CORS.Origins))

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(authSvc)

	router.GET("/healthz", handler.Healthz(store))

	api := router.Group("/api")
	api.POST("/register", authHandler.Register)
	api.POST("/login", authHandler.Login)
	api.GET("/users", handler.AuthMiddleware(authSvc), userHandler.List)

	return router
}
