package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"auth-vault/internal/service"
)

// UserHandler mantiene dependencias para endpoints de usuarios autenticados.
type UserHandler struct {
	logger   *zap.Logger
	userServ *service.UserService
}

// NewUserHandler crea una instancia de UserHandler con dependencias necesarias.
func NewUserHandler(logger *zap.Logger, userServ *service.UserService) *UserHandler {
	return &UserHandler{
		logger:   logger,
		userServ: userServ,
	}
}

type updateProfileRequest struct {
	FirstName *string `json:"firstname" binding:"omitnil,min=1"`
	LastName  *string `json:"lastname"`
	Address   *string `json:"address"`
}

// Me maneja GET /user/me.
func (h *UserHandler) Me(c *gin.Context) {
	profile, err := h.userServ.Me(c.Request.Context(), GetSessionState(c))
	if err != nil {
		writeError(c, h.logger, "get profile", err)
		return
	}
	respond(c, http.StatusOK, "User fetched", profile)
}

// UpdateProfile maneja PUT /user/profile.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if msg, ok := bindJSON(c, &req); !ok {
		respondError(c, http.StatusBadRequest, msg)
		return
	}

	profile, err := h.userServ.UpdateProfile(c.Request.Context(), GetSessionState(c), service.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Address:   req.Address,
	})
	if err != nil {
		writeError(c, h.logger, "update profile", err)
		return
	}
	respond(c, http.StatusOK, "Profile updated", profile)
}

// EnableTwoFactor maneja POST /user/2fa/enable.
func (h *UserHandler) EnableTwoFactor(c *gin.Context) {
	if err := h.userServ.SetTwoFactor(c.Request.Context(), GetSessionState(c), true); err != nil {
		writeError(c, h.logger, "enable 2fa", err)
		return
	}
	respond(c, http.StatusOK, "Two-factor authentication enabled", nil)
}

// DisableTwoFactor maneja POST /user/2fa/disable.
func (h *UserHandler) DisableTwoFactor(c *gin.Context) {
	if err := h.userServ.SetTwoFactor(c.Request.Context(), GetSessionState(c), false); err != nil {
		writeError(c, h.logger, "disable 2fa", err)
		return
	}
	respond(c, http.StatusOK, "Two-factor authentication disabled", nil)
}
