package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/creditoya/backend/internal/auth"
	"github.com/creditoya/backend/internal/db"
	"github.com/creditoya/backend/internal/http/middleware"
	"github.com/gin-gonic/gin"
)

type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Session, error)
	Login(ctx context.Context, in auth.LoginInput) (*auth.Session, error)
	Me(ctx context.Context, userID int64) (*db.User, error)
}

type AuthHandler struct {
	authService AuthService
	cookieCfg   auth.CookieConfig
	accessTTL   time.Duration
	logger      *slog.Logger
}

type registerRequest struct {
	RUT      string `json:"rut" binding:"required,rut"`
	FullName string `json:"full_name" binding:"required,min=3"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginRequest struct {
	RUT      string `json:"rut" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func NewAuthHandler(authService AuthService, cookieCfg auth.CookieConfig, accessTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, cookieCfg: cookieCfg, accessTTL: accessTTL, logger: logger}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}
	session, err := h.authService.Register(c.Request.Context(), auth.RegisterInput(req))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.writeSession(c, http.StatusCreated, session)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}
	session, err := h.authService.Login(c.Request.Context(), auth.LoginInput(req))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.writeSession(c, http.StatusOK, session)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	auth.ClearAuthCookie(c.Writer, h.cookieCfg)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authService.Me(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *AuthHandler) writeSession(c *gin.Context, status int, s *auth.Session) {
	auth.SetAuthCookie(c.Writer, h.cookieCfg, s.Token, h.accessTTL)
	c.JSON(status, gin.H{
		"token":      s.Token,
		"expires_at": s.ExpiresAt,
		"user_id":    s.User.ID,
		"rut":        s.User.RUT,
		"full_name":  s.User.FullName,
		"email":      s.User.Email,
	})
}
