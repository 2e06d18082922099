package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradebook/internal/models"
	"github.com/noah-isme/gradebook/pkg/response"
)

type settingsStore interface {
	Settings() models.Settings
	UpdateSettings(patch models.SettingsPatch) (models.Settings, error)
}

// SettingsHandler exposes gradebook preferences.
type SettingsHandler struct {
	store settingsStore
}

// NewSettingsHandler constructs a settings handler.
func NewSettingsHandler(store settingsStore) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// Get godoc
// @Summary Current settings
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings [get]
func (h *SettingsHandler) Get(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.store.Settings())
}

// Patch godoc
// @Summary Update settings
// @Description Only the supplied fields change.
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body models.SettingsPatch true "Settings to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /settings [patch]
func (h *SettingsHandler) Patch(c *gin.Context) {
	var patch models.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	settings, err := h.store.UpdateSettings(patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings)
}
