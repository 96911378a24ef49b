package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	fbapp "firebase.google.com/go/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"campuslink/internal/adapter/api"
	"campuslink/internal/adapter/api/handler"
	apimiddleware "campuslink/internal/adapter/api/middleware"
	"campuslink/internal/adapter/api/router"
	"campuslink/internal/adapter/repository"
	"campuslink/internal/infrastructure/firebase"
	"campuslink/internal/infrastructure/jwtauth"
	"campuslink/internal/infrastructure/ratelimit"
	"campuslink/internal/infrastructure/websocket"
	"campuslink/internal/usecase"
	"campuslink/pkg/config"
	"campuslink/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	logger.Init(cfg.Environment)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var firebaseApp *fbapp.App
	if cfg.StoreBackend == config.StoreFirestore || cfg.AuthProvider == config.AuthFirebase {
		firebaseApp, err = fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, firebaseOptions(cfg)...)
		if err != nil {
			logger.Error("Failed to initialize Firebase: %v", err)
			os.Exit(1)
		}
	}

	var (
		store    *repository.Store
		devUsers *repository.MemoryUserRepository
	)
	switch cfg.StoreBackend {
	case config.StoreFirestore:
		firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, firebaseOptions(cfg)...)
		if err != nil {
			logger.Error("Failed to create Firestore client: %v", err)
			os.Exit(1)
		}
		defer firestoreClient.Close()
		store = repository.NewFirestoreStore(firestoreClient)

	case config.StoreMongo:
		mongoClient, err := repository.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			logger.Error("Failed to connect to MongoDB: %v", err)
			os.Exit(1)
		}
		defer mongoClient.Disconnect(context.Background()) //nolint:errcheck
		db := mongoClient.Database(cfg.MongoDatabase)
		if err := repository.EnsureMongoIndexes(ctx, db); err != nil {
			logger.Error("Failed to create MongoDB indexes: %v", err)
			os.Exit(1)
		}
		store = repository.NewMongoStore(mongoClient, db)

	default:
		logger.Warn("Using the in-memory store; data is lost on restart")
		devUsers = repository.NewMemoryUserRepository()
		store = repository.NewMemoryStore(devUsers)
	}
	logger.Info("Store backend: %s", cfg.StoreBackend)

	var (
		verifier usecase.TokenVerifier
		tokens   *jwtauth.Manager
	)
	switch cfg.AuthProvider {
	case config.AuthJWT:
		tokens = jwtauth.NewManager(cfg.JWTSecret, store.Users)
		verifier = tokens
	default:
		authClient, err := firebaseApp.Auth(ctx)
		if err != nil {
			logger.Error("Failed to initialize Firebase Auth: %v", err)
			os.Exit(1)
		}
		verifier = firebase.NewFirebaseAuthClient(authClient, store.Users)
	}

	var (
		relay       websocket.Relay
		relayHealth handler.Pinger
	)
	if cfg.RedisURL != "" {
		redisClient, err := websocket.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("Failed to connect to Redis: %v", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		redisRelay := websocket.NewRedisRelay(redisClient)
		relay, relayHealth = redisRelay, redisRelay
		logger.Info("Cross-instance relay enabled")
	}

	var limiter usecase.Limiter
	if cfg.RateLimitEnabled {
		rateLimiter := ratelimit.NewRateLimiter(nil)
		rateLimiter.StartCleanupRoutine(ctx)
		limiter = rateLimiter
	}

	wsManager := websocket.NewManager(websocket.NewLocalRegistry(), relay)

	conversationUseCase := usecase.NewConversationUseCase(store.Conversations, store.Connections, store.Users)
	messageUseCase := usecase.NewMessageUseCase(
		store.Messages,
		store.Connections,
		store.Users,
		conversationUseCase,
		wsManager,
		limiter,
		cfg.HistoryDefaultLimit,
		cfg.HistoryMaxLimit,
	)
	connectionUseCase := usecase.NewConnectionUseCase(store.Connections, store.Users, messageUseCase, wsManager, limiter)

	wsManager.Bind(messageUseCase, limiter)
	wsManager.Start(ctx)

	handlers := &handler.Handlers{
		Connection:   handler.NewConnectionHandler(connectionUseCase),
		Message:      handler.NewMessageHandler(messageUseCase),
		Conversation: handler.NewConversationHandler(conversationUseCase),
		WebSocket:    handler.NewWebSocketHandler(wsManager, verifier, cfg.AllowedOrigins),
		Health:       handler.NewHealthHandler(cfg.StoreBackend, store, relayHealth, wsManager),
	}
	if tokens != nil {
		var seeder handler.DirectorySeeder
		if devUsers != nil {
			seeder = devUsers
		}
		handlers.DevToken = handler.NewDevTokenHandler(tokens, seeder)
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.L().Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins(cfg.AllowedOrigins),
	}))

	authMiddleware := apimiddleware.NewAuthMiddleware(verifier)
	router.Setup(e, handlers, authMiddleware, limiter, cfg.Environment)

	go func() {
		logger.Info("Starting server on port %s...", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed: %v", err)
	}
}

// firebaseOptions prefers inline service account JSON, then a key file, then
// application default credentials.
func firebaseOptions(cfg *config.Config) []option.ClientOption {
	if cfg.FirebaseServiceAccountJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(cfg.FirebaseServiceAccountJSON))}
	}
	if cfg.FirebaseServiceAccountPath != "" {
		return []option.ClientOption{option.WithCredentialsFile(cfg.FirebaseServiceAccountPath)}
	}
	return nil
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
