package handlers

import (
	"errors"
	"net/http"

	"weigh_station/internal/service"

	"github.com/gin-gonic/gin"
)

const errUpdateSettings = "failed to update settings"

// Request DTO for replacing the station settings.
type settingsRequest struct {
	DeviceNo   string `json:"device_no" binding:"required"`
	APIHost    string `json:"api_host" binding:"required"`
	APIPort    int    `json:"api_port" binding:"required"`
	UserID     string `json:"user_id" binding:"required"`
	SecretKey  string `json:"secret_key" binding:"required"`
	SerialPort string `json:"serial_port"`
}

// UpdateSettingsRequest is an exported model for Swagger docs of the settings payload.
type UpdateSettingsRequest struct {
	DeviceNo   string `json:"device_no" example:"WS-01"`
	APIHost    string `json:"api_host" example:"api.example.com"`
	APIPort    int    `json:"api_port" example:"80"`
	UserID     string `json:"user_id" example:"operator"`
	SecretKey  string `json:"secret_key" example:"s3cret"`
	SerialPort string `json:"serial_port" example:"/dev/ttyUSB0"`
}

// @Summary      Current settings
// @Description  Returns the device settings with the secret key masked
// @Tags         settings
// @Security     ApiKeyAuth
// @Produce      json
// @Success      200  {object}  service.SettingsView
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/settings [get]
func (h *Handler) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Settings.Current())
}

// @Summary      Update settings
// @Description  Replaces the upstream credentials and serial port. The secret key is write-only.
// @Tags         settings
// @Security     ApiKeyAuth
// @Accept       json
// @Produce      json
// @Param        body  body      UpdateSettingsRequest  true  "New settings"
// @Success      200   {object}  service.SettingsView
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/settings [put]
func (h *Handler) updateSettings(c *gin.Context) {
	var req settingsRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}

	view, err := h.services.Settings.Update(c.Request.Context(), service.SettingsParams{
		DeviceNo:   req.DeviceNo,
		APIHost:    req.APIHost,
		APIPort:    req.APIPort,
		UserID:     req.UserID,
		SecretKey:  req.SecretKey,
		SerialPort: req.SerialPort,
	})
	if err != nil {
		if errors.Is(err, service.ErrSettingsIncomplete) || errors.Is(err, service.ErrInvalidPort) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errUpdateSettings, "settings_update_failed", err, "device_no", req.DeviceNo)
		return
	}

	c.JSON(http.StatusOK, view)
}
