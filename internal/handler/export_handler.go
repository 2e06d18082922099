package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradebook/internal/service"
	"github.com/noah-isme/gradebook/pkg/response"
)

type reportRenderer interface {
	Render(ctx context.Context, subjectID string, format service.ExportFormat) (*service.ExportDocument, error)
}

// ExportHandler streams per subject reports.
type ExportHandler struct {
	exporter reportRenderer
}

// NewExportHandler constructs an export handler.
func NewExportHandler(exporter reportRenderer) *ExportHandler {
	return &ExportHandler{exporter: exporter}
}

// Export godoc
// @Summary Download a subject report
// @Tags Exports
// @Produce application/pdf
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Produce text/csv
// @Param id path string true "Subject ID"
// @Param format query string false "pdf (default), xlsx or csv"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /subjects/{id}/export [get]
func (h *ExportHandler) Export(c *gin.Context) {
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	doc, err := h.exporter.Render(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, doc.ContentType, doc.Body)
}
