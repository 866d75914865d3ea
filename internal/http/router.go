package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"auth-vault/internal/service"
)

// HealthCheck verifica una dependencia externa (por ejemplo, postgres).
type HealthCheck func(ctx context.Context) error

// RouterDeps agrupa lo necesario para montar el router.
type RouterDeps struct {
	Logger         *zap.Logger
	Sessions       *service.SessionService
	Cookie         SessionCookie
	AuthH          *AuthHandler
	UserH          *UserHandler
	AllowedOrigins []string
	Health         HealthCheck
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(deps RouterDeps) *gin.Engine {
	registerValidators()
	r := gin.New()

	// Middlewares basicos: logging, recovery, CORS y sesion.
	r.Use(
		zapLoggerMiddleware(deps.Logger),
		recoveryMiddleware(deps.Logger),
		corsMiddleware(deps.AllowedOrigins),
		SessionMiddleware(deps.Logger, deps.Sessions, deps.Cookie),
	)
	r.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "Route not found")
	})

	r.GET("/healthz", healthHandler(deps.Health))

	auth := r.Group("/auth")
	auth.POST("/register", deps.AuthH.Register)
	auth.POST("/verify-email", deps.AuthH.VerifyEmail)
	auth.POST("/send-verify-email", deps.AuthH.ResendVerification)
	auth.POST("/login", deps.AuthH.Login)
	auth.POST("/verify-2fa", deps.AuthH.VerifyTwoFactor)
	auth.POST("/logout", deps.AuthH.Logout)

	user := r.Group("/user", RequireSession(deps.Logger))
	user.GET("/me", deps.UserH.Me)
	user.PUT("/profile", deps.UserH.UpdateProfile)
	user.POST("/2fa/enable", deps.UserH.EnableTwoFactor)
	user.POST("/2fa/disable", deps.UserH.DisableTwoFactor)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// recoveryMiddleware convierte panics en un 500 con el envelope estandar.
func recoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
		)
		respondError(c, http.StatusInternalServerError, internalErrorMessage)
	})
}

// corsMiddleware permite credenciales solo para los origenes configurados.
func corsMiddleware(origins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = struct{}{}
		}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if _, ok := allowed[origin]; ok {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func healthHandler(check HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				respondError(c, http.StatusServiceUnavailable, "Database unavailable")
				return
			}
		}
		respond(c, http.StatusOK, "ok", nil)
	}
}
