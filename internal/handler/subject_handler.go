package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradebook/internal/dto"
	"github.com/noah-isme/gradebook/internal/models"
	appErrors "github.com/noah-isme/gradebook/pkg/errors"
	"github.com/noah-isme/gradebook/pkg/response"
)

type subjectStore interface {
	ListSubjects() []models.Subject
	GetSubject(id string) (models.Subject, error)
	AddSubject(subject models.Subject) (models.Subject, error)
	UpdateSubject(subject models.Subject) (models.Subject, error)
	DeleteSubject(id string) error
}

// SubjectHandler handles subject endpoints.
type SubjectHandler struct {
	store subjectStore
}

// NewSubjectHandler constructs a subject handler.
func NewSubjectHandler(store subjectStore) *SubjectHandler {
	return &SubjectHandler{store: store}
}

// List godoc
// @Summary List subjects
// @Tags Subjects
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /subjects [get]
func (h *SubjectHandler) List(c *gin.Context) {
	subjects := h.store.ListSubjects()
	response.JSON(c, http.StatusOK, subjects, map[string]interface{}{"total": len(subjects)})
}

// Get godoc
// @Summary Get subject by id
// @Tags Subjects
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /subjects/{id} [get]
func (h *SubjectHandler) Get(c *gin.Context) {
	subject, err := h.store.GetSubject(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject)
}

// Create godoc
// @Summary Create subject
// @Tags Subjects
// @Accept json
// @Produce json
// @Param payload body dto.SubjectRequest true "Subject payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /subjects [post]
func (h *SubjectHandler) Create(c *gin.Context) {
	var req dto.SubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	subject, err := h.store.AddSubject(req.ToModel(""))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, subject)
}

// Update godoc
// @Summary Update subject
// @Tags Subjects
// @Accept json
// @Produce json
// @Param id path string true "Subject ID"
// @Param payload body dto.SubjectRequest true "Subject payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /subjects/{id} [put]
func (h *SubjectHandler) Update(c *gin.Context) {
	var req dto.SubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	subject, err := h.store.UpdateSubject(req.ToModel(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject)
}

// Delete godoc
// @Summary Delete subject
// @Description Grade records of the subject are kept.
// @Tags Subjects
// @Param id path string true "Subject ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /subjects/{id} [delete]
func (h *SubjectHandler) Delete(c *gin.Context) {
	if err := h.store.DeleteSubject(c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func invalidPayload(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload")
}
