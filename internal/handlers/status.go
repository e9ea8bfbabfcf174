package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const statusOK = "ok"

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Scale status
// @Description  Serial link state, latest weight sample and stability verdict
// @Tags         scale
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/scale/status [get]
func (h *Handler) scaleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Status.Scale())
}
