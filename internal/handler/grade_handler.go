package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradebook/internal/dto"
	"github.com/noah-isme/gradebook/internal/models"
	"github.com/noah-isme/gradebook/pkg/response"
)

type gradeStore interface {
	GradeSheet(subjectID string) (models.GradeSheet, error)
	GradeFor(subjectID, studentID string) models.GradeRecord
	ListGrades(subjectID string) []models.GradeRecord
	UpsertGradeRecord(record models.GradeRecord) (models.GradeRecord, error)
	UpdateAbsences(subjectID, studentID string, add *models.AbsenceEntry, remove string) (models.GradeRecord, error)
}

// GradeHandler handles grade record and attendance endpoints.
type GradeHandler struct {
	store gradeStore
}

// NewGradeHandler constructs a grade handler.
func NewGradeHandler(store gradeStore) *GradeHandler {
	return &GradeHandler{store: store}
}

// Sheet godoc
// @Summary Grade sheet of a subject
// @Description Every student's scores with percent, pass flag and absence severity.
// @Tags Grades
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /subjects/{id}/grades [get]
func (h *GradeHandler) Sheet(c *gin.Context) {
	sheet, err := h.store.GradeSheet(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet)
}

// List godoc
// @Summary List stored grade records
// @Tags Grades
// @Produce json
// @Param subject_id query string false "Only records of this subject"
// @Success 200 {object} response.Envelope
// @Router /grades [get]
func (h *GradeHandler) List(c *gin.Context) {
	grades := h.store.ListGrades(c.Query("subject_id"))
	response.JSON(c, http.StatusOK, grades, map[string]interface{}{"total": len(grades)})
}

// Get godoc
// @Summary Grade record of a student in a subject
// @Description Returns an empty record when nothing was entered yet.
// @Tags Grades
// @Produce json
// @Param id path string true "Subject ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id}/grades/{studentId} [get]
func (h *GradeHandler) Get(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.store.GradeFor(c.Param("id"), c.Param("studentId")))
}

// Upsert godoc
// @Summary Save a grade record
// @Description The total is recomputed from the four component scores.
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Subject ID"
// @Param studentId path string true "Student ID"
// @Param payload body dto.GradeRecordRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /subjects/{id}/grades/{studentId} [put]
func (h *GradeHandler) Upsert(c *gin.Context) {
	var req dto.GradeRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	record, err := h.store.UpsertGradeRecord(req.ToModel(c.Param("id"), c.Param("studentId")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// Absences godoc
// @Summary Add or remove an absence date
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Subject ID"
// @Param studentId path string true "Student ID"
// @Param payload body dto.AbsenceUpdateRequest true "Absence change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /subjects/{id}/grades/{studentId}/absences [patch]
func (h *GradeHandler) Absences(c *gin.Context) {
	var req dto.AbsenceUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	record, err := h.store.UpdateAbsences(c.Param("id"), c.Param("studentId"), req.Add, req.Remove)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}
