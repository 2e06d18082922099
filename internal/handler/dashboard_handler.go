package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradebook/internal/models"
	"github.com/noah-isme/gradebook/pkg/response"
)

type dashboardSource interface {
	Dashboard() models.DashboardSummary
}

type syncStatusSource interface {
	Status() models.SyncStatus
}

// DashboardHandler serves headline figures and persistence status.
type DashboardHandler struct {
	store dashboardSource
	sync  syncStatusSource
}

// NewDashboardHandler constructs a dashboard handler.
func NewDashboardHandler(store dashboardSource, sync syncStatusSource) *DashboardHandler {
	return &DashboardHandler{store: store, sync: sync}
}

// Summary godoc
// @Summary Dashboard summary
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.store.Dashboard())
}

// SyncStatus godoc
// @Summary Persistence status
// @Description Reports whether the latest change has been saved.
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sync/status [get]
func (h *DashboardHandler) SyncStatus(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.sync.Status())
}
