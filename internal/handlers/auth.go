package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Payload for unlocking the settings panel.
type unlockRequest struct {
	Password string `json:"password" binding:"required"`
}

// bindJSONOrBadRequest tries to bind the request body into dst and writes a 400 JSON on failure.
// Returns false if the request was already handled (aborted), true otherwise.
func (h *Handler) bindJSONOrBadRequest(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		// optional structured logging
		if h.log != nil {
			h.log.Infow("bad_request_body", "err", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// @Summary      Unlock settings
// @Description  Exchanges the settings password for a short-lived token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body   object{password=string}  true  "Settings password"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /auth/unlock [post]
func (h *Handler) unlock(c *gin.Context) {
	var input unlockRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	token, err := h.services.Authorization.Unlock(input.Password)
	if err != nil {
		// Never log the submitted password.
		if h.log != nil {
			h.log.Infow("settings_unlock_failed", "err", err)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid password"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
