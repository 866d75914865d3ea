package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auth-vault/internal/config"
	"auth-vault/internal/db"
	"auth-vault/internal/email"
	"auth-vault/internal/fieldcrypt"
	apihttp "auth-vault/internal/http"
	"auth-vault/internal/repository"
	"auth-vault/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	var logger *zap.Logger
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		logger, _ = zap.NewProduction()
	} else {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	codec, err := fieldcrypt.New(fieldcrypt.Options{
		KeyHex:      cfg.EncryptionKey,
		LegacyIVHex: cfg.EncryptionIV,
		LegacyWrite: cfg.EncryptionLegacyWrite,
	})
	if err != nil {
		logger.Fatal("field encryption init", zap.Error(err))
	}

	userRepo := repository.NewPgUserRepository(pool, codec)
	otpRepo := repository.NewPgOTPRepository(pool)

	renderer, err := email.NewRenderer()
	if err != nil {
		logger.Fatal("email templates", zap.Error(err))
	}
	emailSender := email.NewDisabledSender("email sender not configured")
	switch {
	case cfg.SMTPHost != "":
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS, renderer)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	case !cfg.IsProduction():
		logger.Warn("smtp not configured, emails will be logged")
		emailSender = email.NewLogSender(logger, renderer)
	}

	var (
		otpLimiter   = service.NewOTPRateLimiter(cfg.OTPRateWindow, cfg.OTPRateLimit)
		sessionStore = service.NewMemorySessionStore()
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory stores", zap.Error(err))
		} else {
			otpLimiter = service.NewRedisOTPRateLimiter(redisClient, cfg.OTPRateWindow, cfg.OTPRateLimit)
			sessionStore = service.NewRedisSessionStore(redisClient)
		}
		cancel()
	}

	ledger := service.NewOTPLedger(otpRepo)
	janitor := service.NewOTPJanitor(ledger, cfg.OTPJanitorInterval, logger)
	go janitor.Run(ctx)

	sessionSvc := service.NewSessionService(cfg.SessionSecret, cfg.SessionMaxAge, sessionStore)
	authSvc := service.NewAuthService(logger, userRepo, service.NewArgon2Hasher(service.DefaultArgon2Params), ledger, emailSender, otpLimiter, sessionSvc)
	userSvc := service.NewUserService(logger, userRepo)

	cookie := apihttp.SessionCookie{
		Name:   cfg.SessionCookieName,
		Secure: cfg.IsProduction(),
		MaxAge: sessionSvc.TTL(),
	}
	router := apihttp.NewRouter(apihttp.RouterDeps{
		Logger:         logger,
		Sessions:       sessionSvc,
		Cookie:         cookie,
		AuthH:          apihttp.NewAuthHandler(logger, authSvc, cookie),
		UserH:          apihttp.NewUserHandler(logger, userSvc),
		AllowedOrigins: cfg.AllowedOrigins,
		Health: func(ctx context.Context) error {
			return db.Ping(ctx, pool)
		},
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}
