package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/knowmetools/km-api-sub001/internal/config"
	s3infra "github.com/knowmetools/km-api-sub001/internal/infra/s3"
	pgrepo "github.com/knowmetools/km-api-sub001/internal/repo/postgres"
	redrepo "github.com/knowmetools/km-api-sub001/internal/repo/redis"
	appstoresvc "github.com/knowmetools/km-api-sub001/internal/services/appstore"
	authsvc "github.com/knowmetools/km-api-sub001/internal/services/auth"
	entsvc "github.com/knowmetools/km-api-sub001/internal/services/entitlements"
	journalsvc "github.com/knowmetools/km-api-sub001/internal/services/journal"
	mediasvc "github.com/knowmetools/km-api-sub001/internal/services/media"
	premiumsvc "github.com/knowmetools/km-api-sub001/internal/services/premium"
	profilesvc "github.com/knowmetools/km-api-sub001/internal/services/profiles"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	sessionRepo := redrepo.NewSessionRepo(redisClient)
	userRepo := pgrepo.NewUserRepo(pool)
	receiptRepo := pgrepo.NewReceiptRepo(pool)
	profileRepo := pgrepo.NewProfileRepo(pool)
	accessorRepo := pgrepo.NewAccessorRepo(pool)
	journalRepo := pgrepo.NewJournalRepo(pool)
	mediaRepo := pgrepo.NewMediaRepo(pool)

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	authService := authsvc.NewService(jwtManager, sessionRepo, userRepo, cfg.Auth.RefreshTTL)

	receiptVerifier := appstoresvc.NewVerifier(appstoresvc.VerifierConfig{
		ProductionURL:  cfg.Apple.ProductionURL,
		SandboxURL:     cfg.Apple.SandboxURL,
		SharedSecret:   cfg.Apple.SharedSecret,
		AttemptTimeout: cfg.Apple.AttemptTimeout,
		VerifyBudget:   cfg.Apple.VerifyBudget,
	})
	receiptService := appstoresvc.NewService(receiptVerifier, receiptRepo)
	entitlementService := entsvc.NewService(receiptRepo)
	premiumGate := premiumsvc.NewGate(entitlementService)

	profileService := profilesvc.NewService(profileRepo, accessorRepo, premiumGate)
	journalService := journalsvc.NewService(journalRepo, profileRepo, accessorRepo, premiumGate)

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else {
		s3Client = c
	}

	mediaStorage := mediasvc.NewS3Storage(s3Client, cfg.S3.Bucket)
	mediaService := mediasvc.NewService(mediaRepo, profileRepo, accessorRepo, mediaStorage)

	RegisterRoutes(r, Dependencies{
		AuthService:    authService,
		ReceiptService: receiptService,
		ProfileService: profileService,
		JournalService: journalService,
		MediaService:   mediaService,
		Logger:         log,
		Config:         cfg,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		s3:         s3Client,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
