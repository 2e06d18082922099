package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradebook/internal/dto"
	"github.com/noah-isme/gradebook/internal/models"
	"github.com/noah-isme/gradebook/internal/service"
	appErrors "github.com/noah-isme/gradebook/pkg/errors"
	"github.com/noah-isme/gradebook/pkg/response"
)

type studentStore interface {
	ListStudents(search string) []models.Student
	GetStudent(id string) (models.Student, error)
	AddStudent(student models.Student) (models.Student, error)
	UpdateStudent(student models.Student) (models.Student, error)
}

type studentFileImporter interface {
	ImportFile(ctx context.Context, filename string, r io.Reader) (*service.ImportResult, error)
}

// StudentHandler handles student endpoints including spreadsheet import.
type StudentHandler struct {
	store    studentStore
	importer studentFileImporter
}

// NewStudentHandler constructs a student handler.
func NewStudentHandler(store studentStore, importer studentFileImporter) *StudentHandler {
	return &StudentHandler{store: store, importer: importer}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param search query string false "Case-insensitive match on name or username"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	students := h.store.ListStudents(strings.TrimSpace(c.Query("search")))
	response.JSON(c, http.StatusOK, students, map[string]interface{}{"total": len(students)})
}

// Get godoc
// @Summary Get student by id
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.store.GetStudent(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student)
}

// Create godoc
// @Summary Create student
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body dto.StudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req dto.StudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	student, err := h.store.AddStudent(req.ToModel(""))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Update godoc
// @Summary Update student
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.StudentRequest true "Student payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	var req dto.StudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	student, err := h.store.UpdateStudent(req.ToModel(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student)
}

// Import godoc
// @Summary Import students from a spreadsheet
// @Description Accepts XLSX or CSV. Rows whose username already exists are skipped.
// @Tags Students
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "XLSX or CSV file"
// @Success 200 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /students/import [post]
func (h *StudentHandler) Import(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	result, err := h.importer.ImportFile(c.Request.Context(), header.Filename, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, map[string]interface{}{
		"added":   result.AddedCount(),
		"skipped": len(result.Skipped),
	})
}
