package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"auth-vault/internal/domain"
	"auth-vault/internal/service"
)

const (
	sessionStateKey = "session_state"
	sessionErrKey   = "session_error"
)

// SessionCookie describe la cookie que transporta el handle de sesion.
type SessionCookie struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// SessionMiddleware resuelve la cookie de sesion y deja el estado en el
// contexto. Una cookie invalida o vencida equivale a no tener sesion. Si el
// store falla se conserva el handle, para que logout intente borrarlo, y el
// error queda en el contexto.
func SessionMiddleware(logger *zap.Logger, sessions *service.SessionService, cookie SessionCookie) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := domain.SessionState{}
		if handle, err := c.Cookie(cookie.Name); err == nil && handle != "" {
			current, err := sessions.Current(c.Request.Context(), handle)
			if err != nil {
				logger.Warn("session lookup failed", zap.Error(err))
				state = domain.SessionState{Handle: handle}
				c.Set(sessionErrKey, err)
			} else {
				state = current
			}
		}
		c.Set(sessionStateKey, state)
		c.Next()
	}
}

// RequireSession corta la request con 401 si no hay identidad, o con 500 si
// no se pudo consultar el store.
func RequireSession(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := sessionLookupError(c); err != nil {
			writeError(c, logger, "load session", err)
			return
		}
		if !GetSessionState(c).Authenticated() {
			respondError(c, http.StatusUnauthorized, "Not authenticated")
			return
		}
		c.Next()
	}
}

// GetSessionState obtiene el estado de sesion desde el contexto.
func GetSessionState(c *gin.Context) domain.SessionState {
	val, ok := c.Get(sessionStateKey)
	if !ok {
		return domain.SessionState{}
	}
	state, _ := val.(domain.SessionState)
	return state
}

func sessionLookupError(c *gin.Context) error {
	val, ok := c.Get(sessionErrKey)
	if !ok {
		return nil
	}
	err, _ := val.(error)
	return err
}

// writeSession persiste el nuevo estado en el contexto y en la cookie.
func writeSession(c *gin.Context, cookie SessionCookie, state domain.SessionState) {
	c.Set(sessionStateKey, state)
	sc := &http.Cookie{
		Name:     cookie.Name,
		Path:     "/",
		HttpOnly: true,
		Secure:   cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if state.Handle == "" {
		sc.MaxAge = -1
	} else {
		sc.Value = state.Handle
		sc.MaxAge = int(cookie.MaxAge / time.Second)
		sc.Expires = time.Now().Add(cookie.MaxAge)
	}
	http.SetCookie(c.Writer, sc)
}
