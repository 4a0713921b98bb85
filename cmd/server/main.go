package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"story-server/internal/auth"
	"story-server/internal/config"
	"story-server/internal/database"
	storyhttp "story-server/internal/delivery/http"
	"story-server/internal/delivery/websocket"
	"story-server/internal/media"
	"story-server/internal/messaging"
	"story-server/internal/pipeline"
	"story-server/internal/ratelimit"
	"story-server/internal/repository"
	"story-server/internal/service"
	"story-server/pkg/logger"
	"story-server/pkg/middleware"
	"story-server/pkg/migration"
	"story-server/pkg/taskmanager"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()
	zap.ReplaceGlobals(zapLogger)

	zapLogger.Info("Starting story server",
		zap.String("env", cfg.AppEnv),
		zap.String("auth_provider", cfg.Auth.Provider),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("rate_limit_store", cfg.RateLimit.Store),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- PostgreSQL ---
	dbPool, err := database.Connect(ctx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()

	if cfg.Database.AutoMigrate {
		migrator := migration.NewMigrator(migration.Config{
			MigrationsPath: database.MigrationsPath,
			MigrationsFS:   database.MigrationsFS(),
		}, dbPool, zapLogger)
		if err := migrator.Up(); err != nil {
			zapLogger.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	storyRepo := repository.NewPgStoryRepository(dbPool, zapLogger)
	userRepo := repository.NewPgUserRepository(dbPool, zapLogger)
	reviewRepo := repository.NewPgReviewRepository(dbPool, zapLogger)
	adminLogRepo := repository.NewPgAdminLogRepository(dbPool, zapLogger)

	// --- Firebase (auth + storage) ---
	var fbApp *firebase.App
	if cfg.UsesFirebase() {
		fbApp, err = auth.NewFirebaseApp(ctx, cfg.Firebase)
		if err != nil {
			zapLogger.Fatal("Failed to initialize Firebase", zap.Error(err))
		}
	}

	verifier, directory, err := buildAuth(ctx, cfg, fbApp, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize token verification", zap.Error(err))
	}

	store, err := buildStore(ctx, cfg, fbApp, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize artifact store", zap.Error(err))
	}

	// --- Messaging ---
	var publisher messaging.EventPublisher = messaging.NewNopPublisher(zapLogger)
	if cfg.RabbitMQ.URL != "" {
		mqConn, err := messaging.Connect(ctx, cfg.RabbitMQ.URL, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer mqConn.Close()
		rabbit, err := messaging.NewRabbitMQPublisher(mqConn, cfg.RabbitMQ.Exchange, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to create story event publisher", zap.Error(err))
		}
		publisher = rabbit
	} else {
		zapLogger.Info("RABBITMQ_URL not set, story events are not published")
	}

	// --- WebSocket + task manager ---
	wsManager := websocket.NewManager(cfg.Server.AllowedOrigins, zapLogger)
	wsCtx, wsCancel := context.WithCancel(context.Background())
	go wsManager.Run(wsCtx)

	tasks := taskmanager.New(taskmanager.Config{MaxActiveTasks: cfg.Pipeline.MaxActiveJobs}, zapLogger)
	tasks.SetNotifier(wsManager)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	go tasks.RunCleanup(cleanupCtx, cfg.Pipeline.TaskRetention)

	// --- Media pipeline ---
	imageAdapter, narrationAdapter, videoAdapter, err := buildMedia(cfg, store, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize media adapters", zap.Error(err))
	}
	orchestrator := pipeline.New(pipeline.Deps{
		Stories:   storyRepo,
		Images:    imageAdapter,
		Narration: narrationAdapter,
		Video:     videoAdapter,
		Tasks:     tasks,
		Publisher: publisher,
		Notifier:  wsManager,
	}, pipeline.Config{
		ImageConcurrency: cfg.Pipeline.ImageConcurrency,
		WorkDir:          cfg.Pipeline.WorkDir,
	}, zapLogger)

	// Задачи прошлого процесса не переживают рестарт.
	if _, err := orchestrator.FailInterrupted(ctx); err != nil {
		zapLogger.Fatal("Failed to reconcile interrupted stories", zap.Error(err))
	}

	// --- Services ---
	storyService := service.NewStoryService(storyRepo, reviewRepo, adminLogRepo, store, orchestrator, zapLogger)
	userService := service.NewUserService(userRepo, zapLogger)
	adminService := service.NewAdminService(userRepo, storyRepo, reviewRepo, adminLogRepo, directory, store, zapLogger)

	// --- Rate limiting ---
	var redisClient redis.UniversalClient
	if cfg.RateLimit.Store == "redis" {
		rc, err := ratelimit.NewRedisClient(ctx, cfg.Redis, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer rc.Close()
		redisClient = rc
	}
	limiterStore, err := ratelimit.NewStore(cfg.RateLimit, redisClient)
	if err != nil {
		zapLogger.Fatal("Failed to create rate limit store", zap.Error(err))
	}
	generateLimiter := ratelimit.Middleware(limiterStore, zapLogger)

	// --- HTTP Server Setup (Gin) ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.AppEnv == "development" {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(middleware.RequestID())
	router.Use(middleware.GinZapLogger(zapLogger))
	router.Use(gin.Recovery())

	// Метрики gin и promauto-метрики конвейера отдаются на /metrics.
	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.HeaderRequestID}
	corsConfig.ExposeHeaders = []string{middleware.HeaderRequestID, "Retry-After"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	if local, ok := store.(*media.LocalStore); ok {
		router.Static("/media", local.Dir())
	}

	handler := storyhttp.NewHandler(storyService, userService, adminService, verifier, zapLogger)
	handler.RegisterRoutes(router, generateLimiter, wsManager.Handler())

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		zapLogger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("HTTP Server listen error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLogger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("HTTP Server forced to shutdown", zap.Error(err))
	}
	// Запущенные задачи не отменяются: ждем их завершения в пределах таймаута.
	if err := tasks.Shutdown(shutdownCtx); err != nil {
		zapLogger.Warn("Story jobs still running at shutdown", zap.Int("active", tasks.ActiveCount()), zap.Error(err))
	}
	cleanupCancel()
	wsCancel()
	if err := publisher.Close(); err != nil {
		zapLogger.Error("Failed to close event publisher", zap.Error(err))
	}

	zapLogger.Info("Server exiting")
}

// buildAuth выбирает верификаторы по AUTH_PROVIDER. При "both" Firebase проверяется первым.
func buildAuth(ctx context.Context, cfg *config.Config, app *firebase.App, logger *zap.Logger) (auth.TokenVerifier, auth.IdentityDirectory, error) {
	var verifiers []auth.TokenVerifier
	var directory auth.IdentityDirectory = auth.NewLocalDirectory(logger)

	if cfg.Auth.Provider == "firebase" || cfg.Auth.Provider == "both" {
		client, err := app.Auth(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("firebase auth client: %w", err)
		}
		verifiers = append(verifiers, auth.NewFirebaseVerifier(client, logger))
		directory = auth.NewFirebaseDirectory(client, logger)
	}
	if cfg.Auth.Provider == "jwt" || cfg.Auth.Provider == "both" {
		jwtVerifier, err := auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, logger)
		if err != nil {
			return nil, nil, err
		}
		verifiers = append(verifiers, jwtVerifier)
	}

	chain, err := auth.NewChainVerifier(logger, verifiers...)
	if err != nil {
		return nil, nil, err
	}
	return chain, directory, nil
}

func buildStore(ctx context.Context, cfg *config.Config, app *firebase.App, logger *zap.Logger) (media.ArtifactStore, error) {
	if cfg.Storage.Backend == "local" {
		store, err := media.NewLocalStore(cfg.Storage.LocalDir, cfg.Storage.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info("Using local artifact store", zap.String("dir", store.Dir()))
		return store, nil
	}

	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase storage client: %w", err)
	}
	bucket, err := client.Bucket(cfg.Firebase.StorageBucket)
	if err != nil {
		return nil, fmt.Errorf("firebase storage bucket %q: %w", cfg.Firebase.StorageBucket, err)
	}
	return media.NewFirebaseStore(bucket, cfg.Firebase.StorageBucket, logger), nil
}

func buildMedia(cfg *config.Config, store media.ArtifactStore, logger *zap.Logger) (*media.ImageAdapter, *media.NarrationAdapter, *media.CompilationAdapter, error) {
	retry := func(timeout time.Duration) media.RetryPolicy {
		return media.RetryPolicy{
			MaxRetries: cfg.Pipeline.StageMaxRetries,
			BaseDelay:  cfg.Pipeline.RetryBaseDelay,
			Timeout:    timeout,
		}
	}
	opts := func(timeout time.Duration) media.StageOptions {
		return media.StageOptions{
			Store:         store,
			Retry:         retry(timeout),
			UploadTimeout: cfg.Storage.UploadTimeout,
			Logger:        logger,
		}
	}

	images := media.NewImageAdapter(
		media.NewTogetherClient(cfg.Image.APIKey, cfg.Image.BaseURL, nil),
		media.ImageSettings{Model: cfg.Image.Model, Size: cfg.Image.Size, StyleSuffix: cfg.Image.StyleSuffix},
		opts(cfg.Image.Timeout),
	)

	narration, err := media.NewNarrationAdapter(
		media.NewTranslateTTSClient(cfg.Speech.BaseURL, nil),
		cfg.Speech.Language,
		opts(cfg.Speech.Timeout),
	)
	if err != nil {
		return nil, nil, nil, err
	}

	renderer := media.NewFFmpegRenderer(cfg.Video.FFmpegPath, cfg.Video.FFprobePath, media.VideoSettings{
		Width:  cfg.Video.Width,
		Height: cfg.Video.Height,
		FPS:    cfg.Video.FPS,
	}, logger)
	video := media.NewCompilationAdapter(renderer, opts(cfg.Video.Timeout))

	return images, narration, video, nil
}
