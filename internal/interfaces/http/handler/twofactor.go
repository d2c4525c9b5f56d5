package handler

import (
	"github.com/gin-gonic/gin"

	twofactorapp "github.com/saaskit/backend/internal/application/twofactor"
	"github.com/saaskit/backend/internal/interfaces/http/middleware"
)

// TwoFactorHandler handles TOTP enrollment and verification
type TwoFactorHandler struct {
	BaseHandler
	twoFactor *twofactorapp.Service
}

// NewTwoFactorHandler creates a new TwoFactorHandler
func NewTwoFactorHandler(twoFactor *twofactorapp.Service) *TwoFactorHandler {
	return &TwoFactorHandler{twoFactor: twoFactor}
}

// CodeRequest carries a TOTP or backup code
type CodeRequest struct {
	Code string `json:"code" binding:"required"`
}

// Setup handles POST /2fa/setup
func (h *TwoFactorHandler) Setup(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	ip, userAgent := clientMeta(c)
	result, err := h.twoFactor.Setup(c.Request.Context(), userID, middleware.GetJWTEmail(c), ip, userAgent)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Enable handles POST /2fa/enable
func (h *TwoFactorHandler) Enable(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req CodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	ip, userAgent := clientMeta(c)
	if err := h.twoFactor.Enable(c.Request.Context(), userID, req.Code, ip, userAgent); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"enabled": true})
}

// Verify handles POST /2fa/verify
func (h *TwoFactorHandler) Verify(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req CodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	ip, userAgent := clientMeta(c)
	if err := h.twoFactor.VerifyCode(c.Request.Context(), userID, req.Code, ip, userAgent); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"valid": true})
}

// VerifyBackup handles POST /2fa/verify-backup
func (h *TwoFactorHandler) VerifyBackup(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req CodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	ip, userAgent := clientMeta(c)
	if err := h.twoFactor.VerifyBackupCode(c.Request.Context(), userID, req.Code, ip, userAgent); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"valid": true})
}

// Disable handles POST /2fa/disable
func (h *TwoFactorHandler) Disable(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	ip, userAgent := clientMeta(c)
	if err := h.twoFactor.Disable(c.Request.Context(), userID, ip, userAgent); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"enabled": false})
}

// Status handles GET /2fa/status
func (h *TwoFactorHandler) Status(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	status, err := h.twoFactor.GetStatus(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}
