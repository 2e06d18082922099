package router

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradebook/internal/handler"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SubjectHandler   *handler.SubjectHandler
	StudentHandler   *handler.StudentHandler
	GradeHandler     *handler.GradeHandler
	SettingsHandler  *handler.SettingsHandler
	ExportHandler    *handler.ExportHandler
	DashboardHandler *handler.DashboardHandler
	MetricsHandler   *handler.MetricsHandler
	EnableMetrics    bool
}

// Register wires the HTTP routes into the gin engine. Probes and metrics live
// at the root; the gradebook API lives under prefix.
func Register(r *gin.Engine, prefix string, deps Dependencies) {
	if deps.MetricsHandler != nil {
		r.GET("/health", deps.MetricsHandler.Health)
		r.GET("/ready", deps.MetricsHandler.Ready)
		if deps.EnableMetrics {
			r.GET("/metrics", deps.MetricsHandler.Prometheus)
		}
	}

	api := r.Group(prefix)

	if h := deps.SubjectHandler; h != nil {
		subjects := api.Group("/subjects")
		subjects.GET("", h.List)
		subjects.POST("", h.Create)
		subjects.GET("/:id", h.Get)
		subjects.PUT("/:id", h.Update)
		subjects.DELETE("/:id", h.Delete)
	}

	if h := deps.GradeHandler; h != nil {
		api.GET("/grades", h.List)
		api.GET("/subjects/:id/grades", h.Sheet)
		api.GET("/subjects/:id/grades/:studentId", h.Get)
		api.PUT("/subjects/:id/grades/:studentId", h.Upsert)
		api.PATCH("/subjects/:id/grades/:studentId/absences", h.Absences)
	}

	if h := deps.ExportHandler; h != nil {
		api.GET("/subjects/:id/export", h.Export)
	}

	if h := deps.StudentHandler; h != nil {
		students := api.Group("/students")
		students.GET("", h.List)
		students.POST("", h.Create)
		students.POST("/import", h.Import)
		students.GET("/:id", h.Get)
		students.PUT("/:id", h.Update)
	}

	if h := deps.SettingsHandler; h != nil {
		api.GET("/settings", h.Get)
		api.PATCH("/settings", h.Patch)
	}

	if h := deps.DashboardHandler; h != nil {
		api.GET("/dashboard", h.Summary)
		api.GET("/sync/status", h.SyncStatus)
	}
}
