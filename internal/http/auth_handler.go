package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"auth-vault/internal/service"
)

// AuthHandler expone registro, verificacion, login, 2FA y logout.
type AuthHandler struct {
	logger *zap.Logger
	auth   *service.AuthService
	cookie SessionCookie
}

func NewAuthHandler(logger *zap.Logger, auth *service.AuthService, cookie SessionCookie) *AuthHandler {
	return &AuthHandler{logger: logger, auth: auth, cookie: cookie}
}

type registerRequest struct {
	FirstName string `json:"firstname" binding:"required,min=1"`
	LastName  string `json:"lastname"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,password"`
	Address   string `json:"address"`
}

type otpRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required,len=6,numeric"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,password"`
}

// Register maneja POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if msg, ok := bindJSON(c, &req); !ok {
		respondError(c, http.StatusBadRequest, msg)
		return
	}

	err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Address:   req.Address,
	})
	if err != nil {
		writeError(c, h.logger, "register", err)
		return
	}
	respond(c, http.StatusCreated, "Registration successful. Please verify your email.", nil)
}

// VerifyEmail maneja POST /auth/verify-email.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req otpRequest
	if msg, ok := bindJSON(c, &req); !ok {
		respondError(c, http.StatusBadRequest, msg)
		return
	}

	res, state, err := h.auth.VerifyEmail(c.Request.Context(), GetSessionState(c), req.Email, req.OTP)
	if err != nil {
		writeError(c, h.logger, "verify email", err)
		return
	}
	if res.AlreadyVerified {
		respond(c, http.StatusOK, "Email already verified", nil)
		return
	}
	writeSession(c, h.cookie, state)
	respond(c, http.StatusOK, "Email verified successfully", res.Profile)
}

// ResendVerification maneja POST /auth/send-verify-email.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req emailRequest
	if msg, ok := bindJSON(c, &req); !ok {
		respondError(c, http.StatusBadRequest, msg)
		return
	}

	already, err := h.auth.ResendVerification(c.Request.Context(), req.Email)
	if err != nil {
		writeError(c, h.logger, "resend verification", err)
		return
	}
	if already {
		respond(c, http.StatusOK, "Email already verified", nil)
		return
	}
	respond(c, http.StatusOK, "Verification email sent successfully", nil)
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if msg, ok := bindJSON(c, &req); !ok {
		respondError(c, http.StatusBadRequest, msg)
		return
	}

	res, state, err := h.auth.Login(c.Request.Context(), GetSessionState(c), req.Email, req.Password)
	if err != nil {
		writeError(c, h.logger, "login", err)
		return
	}
	if res.TwoFactorRequired {
		respond(c, http.StatusOK, "Code sent to your email", gin.H{"twoFactorEnabled": true})
		return
	}
	writeSession(c, h.cookie, state)
	respond(c, http.StatusOK, "Login successful", res.Profile)
}

// VerifyTwoFactor maneja POST /auth/verify-2fa.
func (h *AuthHandler) VerifyTwoFactor(c *gin.Context) {
	var req otpRequest
	if msg, ok := bindJSON(c, &req); !ok {
		respondError(c, http.StatusBadRequest, msg)
		return
	}

	profile, state, err := h.auth.VerifyTwoFactor(c.Request.Context(), GetSessionState(c), req.Email, req.OTP)
	if err != nil {
		writeError(c, h.logger, "verify 2fa", err)
		return
	}
	writeSession(c, h.cookie, state)
	respond(c, http.StatusOK, "2FA verified, login successful", profile)
}

// Logout maneja POST /auth/logout. Sin sesion tambien responde 200.
func (h *AuthHandler) Logout(c *gin.Context) {
	current := GetSessionState(c)
	state, err := h.auth.Logout(c.Request.Context(), current)
	if err != nil {
		writeError(c, h.logger, "logout", err)
		return
	}
	writeSession(c, h.cookie, state)
	if !current.Authenticated() {
		respond(c, http.StatusOK, "Logged out", nil)
		return
	}
	respond(c, http.StatusOK, "Logged out successfully", nil)
}
