package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "fupm-backend/cmd/api"
	authRepo "fupm-backend/internal/auth/repository"
	authUsecase "fupm-backend/internal/auth/usecase"
	requestDelivery "fupm-backend/internal/request/delivery"
	requestRepo "fupm-backend/internal/request/repository"
	requestUsecase "fupm-backend/internal/request/usecase"
	"fupm-backend/internal/scheduler"
	"fupm-backend/pkg/ai"
	"fupm-backend/pkg/config"
	"fupm-backend/pkg/database"
	"fupm-backend/pkg/gmail"
	"fupm-backend/pkg/lock"
	"fupm-backend/pkg/logger"
	redisclient "fupm-backend/pkg/redis"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Initialize repositories (dependency injection)
	userRepo := authRepo.NewUserRepository(db)
	requestRepository := requestRepo.NewRequestRepository(db)
	followupRepository := requestRepo.NewFollowupRepository(db)
	voiceRepository := requestRepo.NewVoiceRepository(db)

	seedVoices(cfg, voiceRepository, log)

	// Per-request follow-up lock: redis when configured, in-process otherwise
	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.RedisAddr != "" {
		rdb, err := redisclient.NewRedisClient(context.Background(), cfg)
		if err != nil {
			log.Warn("Redis unavailable, falling back to in-process locks", zap.Error(err))
		} else {
			defer rdb.Close()
			locker = lock.NewRedisLocker(rdb, log)
			log.Info("Using redis follow-up locks", zap.String("addr", cfg.RedisAddr))
		}
	}

	// Mail gateway; refreshed tokens and the label id are written back through the user repository
	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GmailLabelName, userRepo, log)

	// Language model with runtime-adjustable Ollama settings
	api.InitRuntimeConfig(cfg.OllamaBaseURL, cfg.OllamaModel)
	generator, err := ai.NewTextGenerator(ai.Config{
		Provider:         ai.ProviderType(cfg.AIProvider),
		GeminiAPIKey:     cfg.GeminiAPIKey,
		GeminiModel:      cfg.GeminiModel,
		GetOllamaBaseURL: api.GetRuntimeOllamaBaseURL,
		GetOllamaModel:   api.GetRuntimeOllamaModel,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize AI service", zap.Error(err))
	}
	aiService := ai.NewFollowupService(generator, log)
	log.Info("AI service initialized", zap.String("provider", cfg.AIProvider))

	// Initialize use cases (dependency injection)
	voiceResolver := requestUsecase.NewVoiceResolver(voiceRepository, log)
	dispatcher := requestUsecase.NewDispatcher(gmailService, followupRepository, cfg.CollaboratorTimeout, log)
	followupService := requestUsecase.NewFollowupService(
		userRepo, requestRepository, followupRepository,
		voiceResolver, aiService, dispatcher, locker,
		cfg.FollowupLockTTL, cfg.CollaboratorTimeout, log,
	)
	ingestionService := requestUsecase.NewIngestionService(gmailService, aiService, requestRepository, cfg.CollaboratorTimeout, log)
	paymentDetector := requestUsecase.NewPaymentDetector(
		gmailService, aiService, userRepo, requestRepository,
		cfg.PaymentCheckMode, cfg.PaymentCheckInterval, cfg.CollaboratorTimeout, log,
	)
	syncUsecaseInstance := requestUsecase.NewSyncUsecase(userRepo, ingestionService, paymentDetector, followupService, log)
	requestUsecaseInstance := requestUsecase.NewRequestUsecase(userRepo, requestRepository, voiceRepository, voiceResolver)
	authUsecaseInstance := authUsecase.NewAuthUsecase(userRepo, cfg)

	// In-process trigger; deployments with an external cron leave it disabled
	var cronScheduler *scheduler.CronScheduler
	if cfg.SchedulerEnabled {
		cronScheduler = scheduler.NewCronScheduler(syncUsecaseInstance, cfg.SchedulerInterval, cfg.SchedulerInterval, log)
		cronScheduler.Start()
	}

	// Initialize HTTP handler
	requestHandler := requestDelivery.NewRequestHandler(requestUsecaseInstance, followupService, syncUsecaseInstance, log)
	handler := api.NewHandler(authUsecaseInstance, requestHandler, cfg, log)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler.Router(),
	}

	go func() {
		log.Info("Server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	if cronScheduler != nil {
		cronScheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shut down", zap.Error(err))
	}
}

// seedVoices loads the voice catalog file. A missing file only means the
// built-in voices are used.
func seedVoices(cfg *config.Config, repo requestRepo.VoiceRepository, log *zap.Logger) {
	voices, err := requestUsecase.LoadVoiceCatalog(cfg.VoicesFile)
	if err != nil {
		log.Warn("Voice catalog not loaded", zap.String("file", cfg.VoicesFile), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := requestUsecase.SeedVoices(ctx, repo, voices, log); err != nil {
		log.Warn("Failed to seed voices", zap.Error(err))
	}
}
