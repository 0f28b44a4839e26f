package api

import (
	"github.com/gin-gonic/gin"

	"knowledge-base/backend/internal/services"
	apperrors "knowledge-base/backend/pkg/errors"
)

type registerRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type passwordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (h *handler) register(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if req.PasswordConfirm != "" && req.PasswordConfirm != req.Password {
		respondError(c, h.logger, apperrors.NewValidationFailed("password_confirm", "does not match password"))
		return
	}
	session, err := h.svc.Auth.Register(c.Request.Context(), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondCreated(c, "registered", session)
}

func (h *handler) login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	session, err := h.svc.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "logged in", session)
}

func (h *handler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if req.Refresh == "" {
		respondError(c, h.logger, apperrors.NewValidationFailed("refresh", "is required"))
		return
	}
	tokens, err := h.svc.Auth.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "refreshed", tokens)
}

func (h *handler) profile(c *gin.Context) {
	user, err := h.svc.Auth.Profile(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "success", user)
}

func (h *handler) updateProfile(c *gin.Context) {
	var req services.ProfileUpdate
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	user, err := h.svc.Auth.UpdateProfile(c.Request.Context(), currentUser(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "updated", user)
}

func (h *handler) changePassword(c *gin.Context) {
	var req passwordRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.svc.Auth.ChangePassword(c.Request.Context(), currentUser(c), req.OldPassword, req.NewPassword); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "password changed", nil)
}
