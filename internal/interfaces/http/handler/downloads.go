package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	registryapp "github.com/saaskit/backend/internal/application/registry"
	domainregistry "github.com/saaskit/backend/internal/domain/registry"
)

// DownloadHandler handles artifact download tokens and pulls
type DownloadHandler struct {
	BaseHandler
	registry *registryapp.Service
}

// NewDownloadHandler creates a new DownloadHandler
func NewDownloadHandler(registry *registryapp.Service) *DownloadHandler {
	return &DownloadHandler{registry: registry}
}

// TokenRequest asks for a download token
type TokenRequest struct {
	Artifact string `json:"artifact" binding:"required,max=200,artifact"`
	Tag      string `json:"tag" binding:"max=100"`
}

// DownloadLogResponse is one download history entry
type DownloadLogResponse struct {
	Artifact  string `json:"artifact"`
	Action    string `json:"action"`
	IPAddress string `json:"ip_address,omitempty"`
	CreatedAt string `json:"created_at"`
}

// IssueToken handles POST /downloads/token
func (h *DownloadHandler) IssueToken(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	ip, userAgent := clientMeta(c)
	grant, err := h.registry.IssueToken(c.Request.Context(), userID, req.Artifact, req.Tag, ip, userAgent)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, grant)
}

// Pull handles GET /downloads/pull/:token.
// The token is the authentication, so the route skips JWT auth and
// redirects to a short-lived presigned URL.
func (h *DownloadHandler) Pull(c *gin.Context) {
	token := c.Param("token")

	ip, userAgent := clientMeta(c)
	url, err := h.registry.Redeem(c.Request.Context(), token, ip, userAgent)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

// ListArtifacts handles GET /downloads/artifacts
func (h *DownloadHandler) ListArtifacts(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	artifacts, err := h.registry.ListArtifacts(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, artifacts)
}

// History handles GET /downloads/history
func (h *DownloadHandler) History(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	logs, err := h.registry.History(c.Request.Context(), userID, 50)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toDownloadLogResponses(logs))
}

func toDownloadLogResponses(logs []*domainregistry.DownloadLog) []DownloadLogResponse {
	out := make([]DownloadLogResponse, 0, len(logs))
	for _, log := range logs {
		out = append(out, DownloadLogResponse{
			Artifact:  log.Artifact,
			Action:    string(log.Action),
			IPAddress: log.IPAddress,
			CreatedAt: log.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}
