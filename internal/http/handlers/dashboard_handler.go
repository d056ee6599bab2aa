package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/client-intake/internal/http/response"
	"github.com/ignatzorin/client-intake/internal/labels"
	"github.com/ignatzorin/client-intake/internal/models"
	"github.com/ignatzorin/client-intake/internal/pkg/apperror"
	"github.com/ignatzorin/client-intake/internal/service"
)

// DashboardHandler HTTP слой дашборда заявок.
// Состояние списка (фильтр, страница, открытая заявка) хранится отдельно для каждой сессии оператора.
type DashboardHandler struct {
	dashboard      *service.DashboardService
	transfer       *service.TransferService
	states         *dashboardStates
	maxImportBytes int64
}

// NewDashboardHandler создаёт хэндлер дашборда.
func NewDashboardHandler(dashboard *service.DashboardService, transfer *service.TransferService, maxImportBytes int64) *DashboardHandler {
	return &DashboardHandler{
		dashboard:      dashboard,
		transfer:       transfer,
		states:         newDashboardStates(),
		maxImportBytes: maxImportBytes,
	}
}

// EndSession забывает состояние дашборда сессии.
func (h *DashboardHandler) EndSession(sessionID string) {
	h.states.drop(sessionID)
}

// ActiveSessions число сессий операторов с загруженным состоянием.
func (h *DashboardHandler) ActiveSessions() int {
	return h.states.len()
}

// DetailView карточка заявки с подписями выбранных вариантов.
type DetailView struct {
	Index   int                 `json:"index"`
	HasPrev bool                `json:"has_prev"`
	HasNext bool                `json:"has_next"`
	Request *models.Submission  `json:"request"`
	Labels  map[string][]string `json:"labels"`
	Changed bool                `json:"changed"`
}

func detailView(st service.DashboardState, changed bool) *DetailView {
	sub := st.Selected()
	if sub == nil {
		return &DetailView{Index: service.NoSelection, Changed: changed}
	}
	return &DetailView{
		Index:   st.Current,
		HasPrev: st.Current > 0,
		HasNext: st.Current < len(st.Filtered)-1,
		Request: sub,
		Labels:  submissionLabels(sub),
		Changed: changed,
	}
}

func submissionLabels(s *models.Submission) map[string][]string {
	one := func(cat labels.Category, code string) []string {
		return []string{labels.Resolve(cat, code)}
	}
	return map[string][]string{
		"businessType":      one(labels.BusinessType, s.Client.BusinessType),
		"websiteType":       labels.ResolveAll(labels.WebsiteType, s.Project.WebsiteType),
		"features":          labels.ResolveAll(labels.Feature, s.Project.Features),
		"designStyle":       one(labels.DesignStyle, s.Design.DesignStyle),
		"timeline":          one(labels.Timeline, s.Timeline.Timeline),
		"budget":            one(labels.Budget, s.Timeline.Budget),
		"paymentPreference": one(labels.PaymentPreference, s.Timeline.PaymentPreference),
		"contentMaterials":  one(labels.ContentMaterials, s.Timeline.ContentMaterials),
		"status":            one(labels.Status, s.Status),
	}
}

// state возвращает состояние текущей сессии оператора.
func (h *DashboardHandler) state(c *gin.Context) (string, service.DashboardState, bool) {
	sessionID, err := currentSessionID(c)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return "", service.DashboardState{}, false
	}
	st, err := h.states.get(c.Request.Context(), sessionID, h.dashboard.Load)
	if err != nil {
		fail(c, err)
		return "", service.DashboardState{}, false
	}
	return sessionID, st, true
}

func (h *DashboardHandler) respondPage(c *gin.Context, st service.DashboardState) {
	view := st.View()
	response.Paginated(c, view, view.Count, view.Page, view.PageSize, view.TotalPages)
}

// Get обрабатывает GET /dashboard.
func (h *DashboardHandler) Get(c *gin.Context) {
	_, st, ok := h.state(c)
	if !ok {
		return
	}
	h.respondPage(c, st)
}

// Refresh обрабатывает POST /dashboard/refresh.
func (h *DashboardHandler) Refresh(c *gin.Context) {
	sessionID, st, ok := h.state(c)
	if !ok {
		return
	}
	st, err := h.dashboard.Refresh(c.Request.Context(), st)
	if err != nil {
		fail(c, err)
		return
	}
	h.states.put(sessionID, st)
	h.respondPage(c, st)
}

// ApplyFilter обрабатывает POST /dashboard/filters.
func (h *DashboardHandler) ApplyFilter(c *gin.Context) {
	var f service.Filter
	if err := bindJSON(c, &f); err != nil {
		fail(c, err)
		return
	}
	sessionID, st, ok := h.state(c)
	if !ok {
		return
	}
	st = h.dashboard.ApplyFilter(st, f)
	h.states.put(sessionID, st)
	h.respondPage(c, st)
}

// ClearFilter обрабатывает DELETE /dashboard/filters.
func (h *DashboardHandler) ClearFilter(c *gin.Context) {
	sessionID, st, ok := h.state(c)
	if !ok {
		return
	}
	st = h.dashboard.ClearFilter(st)
	h.states.put(sessionID, st)
	h.respondPage(c, st)
}

// ChangePage обрабатывает PUT /dashboard/page/:page. Страница вне диапазона игнорируется.
func (h *DashboardHandler) ChangePage(c *gin.Context) {
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil {
		response.BadRequest(c, "номер страницы должен быть целым числом")
		return
	}
	sessionID, st, ok := h.state(c)
	if !ok {
		return
	}
	st, _ = h.dashboard.ChangePage(st, page)
	h.states.put(sessionID, st)
	h.respondPage(c, st)
}

// View обрабатывает GET /dashboard/requests/:index.
func (h *DashboardHandler) View(c *gin.Context) {
	sessionID, st, ok := h.state(c)
	if !ok {
		return
	}
	st, _, changed := h.dashboard.View(st, indexParam(c, "index"))
	h.states.put(sessionID, st)
	response.Success(c, detailView(st, changed))
}

// Next обрабатывает POST /dashboard/detail/next.
func (h *DashboardHandler) Next(c *gin.Context) {
	sessionID, st, ok := h.state(c)
	if !ok {
		return
	}
	st, _, changed := h.dashboard.Next(st)
	h.states.put(sessionID, st)
	response.Success(c, detailView(st, changed))
}

// Prev обрабатывает POST /dashboard/detail/prev.
func (h *DashboardHandler) Prev(c *gin.Context) {
	sessionID, st, ok := h.state(c)
	if !ok {
		return
	}
	st, _, changed := h.dashboard.Prev(st)
	h.states.put(sessionID, st)
	response.Success(c, detailView(st, changed))
}

// SaveStatus обрабатывает PUT /dashboard/detail/status.
func (h *DashboardHandler) SaveStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	sessionID, st, ok := h.state(c)
	if !ok {
		return
	}
	st, changed, err := h.dashboard.SaveStatus(c.Request.Context(), st, req.Status)
	if err != nil {
		fail(c, err)
		return
	}
	h.states.put(sessionID, st)
	response.Message(c, "статус обновлён", detailView(st, changed))
}

// EditNotes обрабатывает GET /dashboard/requests/:index/notes.
func (h *DashboardHandler) EditNotes(c *gin.Context) {
	sessionID, st, ok := h.state(c)
	if !ok {
		return
	}
	st, notes, found := h.dashboard.EditNotes(st, indexParam(c, "index"))
	h.states.put(sessionID, st)
	response.Success(c, gin.H{"index": st.Current, "notes": notes, "found": found})
}

// SaveNotes обрабатывает PUT /dashboard/detail/notes.
func (h *DashboardHandler) SaveNotes(c *gin.Context) {
	var req struct {
		Notes string `json:"notes"`
	}
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	sessionID, st, ok := h.state(c)
	if !ok {
		return
	}
	st, changed, err := h.dashboard.SaveNotes(c.Request.Context(), st, req.Notes)
	if err != nil {
		fail(c, err)
		return
	}
	h.states.put(sessionID, st)
	response.Message(c, "заметки сохранены", detailView(st, changed))
}

// Delete обрабатывает DELETE /dashboard/requests/:index?confirm=true.
func (h *DashboardHandler) Delete(c *gin.Context) {
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))
	sessionID, st, ok := h.state(c)
	if !ok {
		return
	}
	st, deleted, err := h.dashboard.Delete(c.Request.Context(), st, indexParam(c, "index"), confirmed)
	if err != nil {
		fail(c, err)
		return
	}
	h.states.put(sessionID, st)

	message := "заявка удалена"
	if !confirmed {
		message = "удаление требует подтверждения"
	} else if !deleted {
		message = "заявка уже удалена"
	}
	view := st.View()
	c.JSON(http.StatusOK, response.Response{
		Success: true,
		Message: message,
		Data:    gin.H{"deleted": deleted, "page": view},
	})
}

// UpdateProgress обрабатывает PUT /dashboard/projects/:id/progress.
func (h *DashboardHandler) UpdateProgress(c *gin.Context) {
	var req struct {
		Progress *int `json:"progress" binding:"required"`
	}
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	sessionID, st, ok := h.state(c)
	if !ok {
		return
	}
	st, changed, err := h.dashboard.UpdateProgress(c.Request.Context(), st, c.Param("id"), *req.Progress)
	if err != nil {
		fail(c, err)
		return
	}
	h.states.put(sessionID, st)
	response.Message(c, "прогресс обновлён", gin.H{"changed": changed})
}

// Stats обрабатывает GET /dashboard/stats.
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.dashboard.Stats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, stats)
}

// Projects обрабатывает GET /dashboard/projects.
func (h *DashboardHandler) Projects(c *gin.Context) {
	projects, err := h.dashboard.Projects(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, projects)
}

// Clients обрабатывает GET /dashboard/clients.
func (h *DashboardHandler) Clients(c *gin.Context) {
	clients, err := h.dashboard.Clients(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, clients)
}

// AddProject обрабатывает POST /dashboard/projects.
func (h *DashboardHandler) AddProject(c *gin.Context) {
	fail(c, h.dashboard.AddProject(c.Request.Context()))
}

// Settings обрабатывает GET /dashboard/settings.
func (h *DashboardHandler) Settings(c *gin.Context) {
	fail(c, h.dashboard.Settings(c.Request.Context()))
}

// Export обрабатывает GET /dashboard/export?scope=filtered|all&format=csv|json.
func (h *DashboardHandler) Export(c *gin.Context) {
	scope := c.DefaultQuery("scope", "filtered")
	format := c.DefaultQuery("format", service.FormatCSV)

	var (
		exp *service.Export
		err error
	)
	switch scope {
	case "filtered":
		if format != service.FormatCSV {
			response.BadRequest(c, "текущий список выгружается только в CSV")
			return
		}
		_, st, ok := h.state(c)
		if !ok {
			return
		}
		exp, err = h.transfer.ExportFiltered(st.Filtered)
	case "all":
		if _, _, ok := h.state(c); !ok {
			return
		}
		exp, err = h.transfer.ExportAll(c.Request.Context(), format)
	default:
		response.BadRequest(c, "scope должен быть filtered или all")
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	response.Attachment(c, exp.FileName, exp.ContentType, exp.Data)
}

// Import обрабатывает POST /dashboard/import (multipart, поле file).
func (h *DashboardHandler) Import(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "файл обязателен")
		return
	}
	if h.maxImportBytes > 0 && fileHeader.Size > h.maxImportBytes {
		fail(c, apperror.New(apperror.ErrCodeTooLarge, "файл импорта слишком большой"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		fail(c, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		fail(c, err)
		return
	}

	result, err := h.transfer.Import(c.Request.Context(), fileHeader.Filename, data)
	if err != nil {
		fail(c, err)
		return
	}

	sessionID, st, ok := h.state(c)
	if !ok {
		return
	}
	st, err = h.dashboard.Refresh(c.Request.Context(), st)
	if err != nil {
		fail(c, err)
		return
	}
	h.states.put(sessionID, st)

	response.Message(c, strconv.Itoa(result.Added)+" записей импортировано", result)
}
