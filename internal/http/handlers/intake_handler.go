package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/client-intake/internal/http/response"
	"github.com/ignatzorin/client-intake/internal/labels"
	"github.com/ignatzorin/client-intake/internal/pkg/apperror"
	"github.com/ignatzorin/client-intake/internal/service"
)

// IntakeHandler HTTP слой многошаговой формы клиента.
type IntakeHandler struct {
	forms          *service.FormService
	maxUploadBytes int64
}

// NewIntakeHandler создаёт хэндлер формы.
func NewIntakeHandler(forms *service.FormService, maxUploadBytes int64) *IntakeHandler {
	return &IntakeHandler{forms: forms, maxUploadBytes: maxUploadBytes}
}

// Options обрабатывает GET /intake/options: варианты выбора для всех полей формы.
func (h *IntakeHandler) Options(c *gin.Context) {
	options := make(map[labels.Category][]labels.Label)
	for _, cat := range labels.Categories() {
		options[cat] = labels.Options(cat)
	}
	response.Success(c, options)
}

// Open обрабатывает POST /intake/sessions.
func (h *IntakeHandler) Open(c *gin.Context) {
	var req struct {
		DraftID string `json:"draft_id"`
	}
	if c.Request.ContentLength > 0 {
		if err := bindJSON(c, &req); err != nil {
			fail(c, err)
			return
		}
	}

	view, err := h.forms.Open(c.Request.Context(), req.DraftID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, view)
}

// Get обрабатывает GET /intake/sessions/:id.
func (h *IntakeHandler) Get(c *gin.Context) {
	view, err := h.forms.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, view)
}

// Edit обрабатывает PUT /intake/sessions/:id/fields.
func (h *IntakeHandler) Edit(c *gin.Context) {
	var fields service.StepFields
	if err := bindJSON(c, &fields); err != nil {
		fail(c, err)
		return
	}
	view, err := h.forms.Edit(c.Request.Context(), c.Param("id"), fields)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, view)
}

// Advance обрабатывает POST /intake/sessions/:id/advance.
// Тело необязательно: поля текущего шага можно передать вместе с переходом.
func (h *IntakeHandler) Advance(c *gin.Context) {
	var fields service.StepFields
	if c.Request.ContentLength > 0 {
		if err := bindJSON(c, &fields); err != nil {
			fail(c, err)
			return
		}
	}
	view, err := h.forms.Advance(c.Request.Context(), c.Param("id"), fields)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, view)
}

// Retreat обрабатывает POST /intake/sessions/:id/retreat.
func (h *IntakeHandler) Retreat(c *gin.Context) {
	view, err := h.forms.Retreat(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, view)
}

// Resume обрабатывает POST /intake/sessions/:id/resume.
func (h *IntakeHandler) Resume(c *gin.Context) {
	var req struct {
		Accept *bool `json:"accept" binding:"required"`
	}
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	view, err := h.forms.Resume(c.Request.Context(), c.Param("id"), *req.Accept)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, view)
}

// SaveDraft обрабатывает POST /intake/sessions/:id/draft.
func (h *IntakeHandler) SaveDraft(c *gin.Context) {
	view, err := h.forms.SaveDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, view)
}

// UploadAsset обрабатывает POST /intake/sessions/:id/assets (multipart, поле file).
func (h *IntakeHandler) UploadAsset(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1024*1024)
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "файл обязателен")
		return
	}
	if h.maxUploadBytes > 0 && fileHeader.Size > h.maxUploadBytes {
		response.Error(c, apperror.ErrAssetTooLarge)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		fail(c, err)
		return
	}
	defer file.Close()

	view, err := h.forms.AddAsset(c.Request.Context(), c.Param("id"), fileHeader.Filename, file)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, view)
}

// Review обрабатывает GET /intake/sessions/:id/review.
func (h *IntakeHandler) Review(c *gin.Context) {
	review, err := h.forms.Review(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, review)
}

// Submit обрабатывает POST /intake/sessions/:id/submit.
func (h *IntakeHandler) Submit(c *gin.Context) {
	var req struct {
		TermsAccepted   bool    `json:"terms_accepted"`
		AdditionalNotes *string `json:"additional_notes"`
	}
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}

	submission, err := h.forms.Submit(c.Request.Context(), c.Param("id"), service.SubmitInput{
		TermsAccepted:   req.TermsAccepted,
		AdditionalNotes: req.AdditionalNotes,
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, submission)
}

// Close обрабатывает DELETE /intake/sessions/:id.
func (h *IntakeHandler) Close(c *gin.Context) {
	if err := h.forms.Close(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
