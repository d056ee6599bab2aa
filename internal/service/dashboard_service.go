package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/client-intake/internal/logger"
	"github.com/ignatzorin/client-intake/internal/models"
	"github.com/ignatzorin/client-intake/internal/pkg/apperror"
	"github.com/ignatzorin/client-intake/internal/validation"
)

// NoSelection значение Current, когда карточка заявки не открыта.
const NoSelection = -1

// DefaultPageSize размер страницы списка заявок.
const DefaultPageSize = 10

// DashboardState состояние дашборда одного оператора.
// Каждая операция принимает состояние и возвращает новое.
type DashboardState struct {
	All      []models.Submission `json:"-"`
	Filtered []models.Submission `json:"-"`
	Filter   Filter              `json:"filter"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
	Current  int                 `json:"current"`
}

// TotalPages число страниц отфильтрованного списка.
func (st DashboardState) TotalPages() int {
	return TotalPages(len(st.Filtered), st.PageSize)
}

// PageItems заявки текущей страницы.
func (st DashboardState) PageItems() []models.Submission {
	return Paginate(st.Filtered, st.Page, st.PageSize)
}

// Selected открытая заявка или nil.
func (st DashboardState) Selected() *models.Submission {
	if st.Current < 0 || st.Current >= len(st.Filtered) {
		return nil
	}
	s := st.Filtered[st.Current].Clone()
	return &s
}

// PageRow строка таблицы заявок с индексом в отфильтрованном списке.
type PageRow struct {
	Index int `json:"index"`
	models.Submission
}

// PageView страница таблицы заявок.
type PageView struct {
	Items      []PageRow `json:"items"`
	Filter     Filter    `json:"filter"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalPages int       `json:"total_pages"`
	Count      int       `json:"count"`
	Total      int       `json:"total"`
}

// View собирает страницу таблицы из состояния.
func (st DashboardState) View() PageView {
	items := st.PageItems()
	offset := (st.Page - 1) * st.PageSize
	rows := make([]PageRow, len(items))
	for i := range items {
		rows[i] = PageRow{Index: offset + i, Submission: items[i]}
	}
	return PageView{
		Items:      rows,
		Filter:     st.Filter,
		Page:       st.Page,
		PageSize:   st.PageSize,
		TotalPages: st.TotalPages(),
		Count:      len(st.Filtered),
		Total:      len(st.All),
	}
}

func (st DashboardState) clampPage() DashboardState {
	total := st.TotalPages()
	if st.Page > total {
		st.Page = total
	}
	if st.Page < 1 {
		st.Page = 1
	}
	return st
}

// replace обновляет копию заявки в обоих списках состояния.
func (st DashboardState) replace(updated models.Submission) DashboardState {
	st.All = replaceByID(st.All, updated)
	st.Filtered = replaceByID(st.Filtered, updated)
	return st
}

func replaceByID(list []models.Submission, updated models.Submission) []models.Submission {
	out := make([]models.Submission, len(list))
	copy(out, list)
	for i := range out {
		if out[i].ID == updated.ID {
			out[i] = updated.Clone()
		}
	}
	return out
}

func removeByID(list []models.Submission, id string) []models.Submission {
	out := make([]models.Submission, 0, len(list))
	for i := range list {
		if list[i].ID != id {
			out = append(out, list[i])
		}
	}
	return out
}

// DashboardService операции дашборда над хранилищем заявок.
type DashboardService struct {
	store    SubmissionStore
	seeder   *SeedService
	cache    *CacheService
	notifier *ChangeNotifier
	pageSize int
	now      func() time.Time
}

// NewDashboardService создаёт сервис дашборда. cache может быть nil.
func NewDashboardService(store SubmissionStore, seeder *SeedService, cache *CacheService, notifier *ChangeNotifier, pageSize int) *DashboardService {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &DashboardService{
		store:    store,
		seeder:   seeder,
		cache:    cache,
		notifier: notifier,
		pageSize: pageSize,
		now:      time.Now,
	}
}

func (s *DashboardService) log() *logrus.Entry {
	return logger.WithComponent("dashboard")
}

// Load читает хранилище и строит начальное состояние.
// Пустое хранилище заполняется демо-заявками.
func (s *DashboardService) Load(ctx context.Context) (DashboardState, error) {
	all, err := s.ensureLoaded(ctx)
	if err != nil {
		return DashboardState{}, err
	}
	return DashboardState{
		All:      all,
		Filtered: FilterSubmissions(all, AllFilter()),
		Filter:   AllFilter(),
		Page:     1,
		PageSize: s.pageSize,
		Current:  NoSelection,
	}, nil
}

// ensureLoaded читает хранилище и заполняет пустое демо-заявками.
// Через него проходят все входы панели, читающие полный список.
func (s *DashboardService) ensureLoaded(ctx context.Context) ([]models.Submission, error) {
	all, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashboard service: %w", err)
	}
	if len(all) == 0 && s.seeder != nil {
		all, _, err = s.seeder.SeedIfEmpty(ctx)
		if err != nil {
			return nil, fmt.Errorf("dashboard service: %w", err)
		}
	}
	return all, nil
}

// Refresh перечитывает хранилище, сохраняя фильтр; страница ограничивается новым числом страниц.
func (s *DashboardService) Refresh(ctx context.Context, st DashboardState) (DashboardState, error) {
	all, err := s.store.Load(ctx)
	if err != nil {
		return st, fmt.Errorf("dashboard service: %w", err)
	}
	if st.PageSize <= 0 {
		st.PageSize = s.pageSize
	}
	st.All = all
	st.Filter = st.Filter.Normalize()
	st.Filtered = FilterSubmissions(all, st.Filter)
	st.Current = NoSelection
	return st.clampPage(), nil
}

// ApplyFilter применяет фильтр и возвращает на первую страницу.
func (s *DashboardService) ApplyFilter(st DashboardState, f Filter) DashboardState {
	st.Filter = f.Normalize()
	st.Filtered = FilterSubmissions(st.All, st.Filter)
	st.Page = 1
	st.Current = NoSelection
	return st
}

// ClearFilter сбрасывает фильтр.
func (s *DashboardService) ClearFilter(st DashboardState) DashboardState {
	return s.ApplyFilter(st, AllFilter())
}

// ChangePage переходит на страницу page; вне диапазона состояние не меняется.
func (s *DashboardService) ChangePage(st DashboardState, page int) (DashboardState, bool) {
	if page < 1 || page > st.TotalPages() {
		return st, false
	}
	st.Page = page
	return st, true
}

// View открывает карточку заявки по индексу в отфильтрованном списке.
func (s *DashboardService) View(st DashboardState, index int) (DashboardState, *models.Submission, bool) {
	if index < 0 || index >= len(st.Filtered) {
		return st, nil, false
	}
	st.Current = index
	return st, st.Selected(), true
}

// Next открывает следующую заявку; на последней ничего не происходит.
func (s *DashboardService) Next(st DashboardState) (DashboardState, *models.Submission, bool) {
	if st.Current < 0 || st.Current >= len(st.Filtered)-1 {
		return st, st.Selected(), false
	}
	return s.View(st, st.Current+1)
}

// Prev открывает предыдущую заявку; на первой ничего не происходит.
func (s *DashboardService) Prev(st DashboardState) (DashboardState, *models.Submission, bool) {
	if st.Current <= 0 || st.Current >= len(st.Filtered) {
		return st, st.Selected(), false
	}
	return s.View(st, st.Current-1)
}

// SaveStatus меняет статус открытой заявки. Неизвестный статус отклоняется.
func (s *DashboardService) SaveStatus(ctx context.Context, st DashboardState, status string) (DashboardState, bool, error) {
	if !models.IsValidStatus(status) {
		return st, false, apperror.Validation("неизвестный статус", map[string]string{"status": status})
	}
	current := st.Selected()
	if current == nil {
		return st, false, nil
	}
	return s.patch(ctx, st, current.ID, "status", func(sub *models.Submission) {
		sub.Status = status
	})
}

// EditNotes открывает заметки заявки по индексу.
func (s *DashboardService) EditNotes(st DashboardState, index int) (DashboardState, string, bool) {
	st, sub, ok := s.View(st, index)
	if !ok {
		return st, "", false
	}
	return st, sub.Notes, true
}

// SaveNotes сохраняет заметки открытой заявки.
func (s *DashboardService) SaveNotes(ctx context.Context, st DashboardState, notes string) (DashboardState, bool, error) {
	current := st.Selected()
	if current == nil {
		return st, false, nil
	}
	notes = strings.TrimSpace(notes)
	return s.patch(ctx, st, current.ID, "notes", func(sub *models.Submission) {
		sub.Notes = notes
	})
}

// UpdateProgress выставляет прогресс проекта; 100% переводит заявку в completed.
func (s *DashboardService) UpdateProgress(ctx context.Context, st DashboardState, id string, progress int) (DashboardState, bool, error) {
	if err := validation.ValidateProgress(progress); err != nil {
		return st, false, apperror.Validation(err.Error(), map[string]string{"progress": err.Error()})
	}
	return s.patch(ctx, st, id, "progress", func(sub *models.Submission) {
		sub.SetProgress(progress)
	})
}

func (s *DashboardService) patch(ctx context.Context, st DashboardState, id, reason string, fn func(*models.Submission)) (DashboardState, bool, error) {
	var updated models.Submission
	found, err := s.store.Update(ctx, id, func(sub *models.Submission) {
		fn(sub)
		updated = sub.Clone()
	})
	if err != nil {
		return st, false, fmt.Errorf("dashboard service: %w", err)
	}
	if !found {
		return st, false, nil
	}
	s.notifier.StoreChanged(StoreChange{Reason: reason, ID: id})
	s.log().WithFields(logrus.Fields{"id": id, "change": reason}).Info("заявка обновлена")
	return st.replace(updated), true, nil
}

// Delete удаляет заявку по индексу в отфильтрованном списке; без подтверждения ничего не делает.
func (s *DashboardService) Delete(ctx context.Context, st DashboardState, index int, confirmed bool) (DashboardState, bool, error) {
	if !confirmed || index < 0 || index >= len(st.Filtered) {
		return st, false, nil
	}
	return s.DeleteByID(ctx, st, st.Filtered[index].ID)
}

// DeleteByID удаляет заявку из хранилища и из обоих списков состояния.
func (s *DashboardService) DeleteByID(ctx context.Context, st DashboardState, id string) (DashboardState, bool, error) {
	found, err := s.store.Remove(ctx, id)
	if err != nil {
		return st, false, fmt.Errorf("dashboard service: %w", err)
	}
	if !found {
		return st, false, nil
	}
	st.All = removeByID(st.All, id)
	st.Filtered = removeByID(st.Filtered, id)
	st.Current = NoSelection
	st = st.clampPage()

	s.notifier.StoreChanged(StoreChange{Reason: "deleted", ID: id})
	s.log().WithField("id", id).Info("заявка удалена")
	return st, true, nil
}

// Stats агрегаты по всему хранилищу; результат кэшируется до следующего изменения.
func (s *DashboardService) Stats(ctx context.Context) (*Stats, error) {
	compute := func() (interface{}, error) {
		all, err := s.ensureLoaded(ctx)
		if err != nil {
			return nil, err
		}
		return ComputeStats(all, s.now()), nil
	}
	if s.cache == nil {
		v, err := compute()
		if err != nil {
			return nil, err
		}
		return v.(*Stats), nil
	}
	v, err := s.cache.GetOrSet(ctx, StatsCacheKey(), time.Minute, compute)
	if err != nil {
		return nil, err
	}
	return v.(*Stats), nil
}

// Projects активные проекты: принятые и в работе.
func (s *DashboardService) Projects(ctx context.Context) ([]Project, error) {
	all, err := s.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	return ActiveProjects(all), nil
}

// Clients заявки, сгруппированные по email клиента.
func (s *DashboardService) Clients(ctx context.Context) ([]Client, error) {
	all, err := s.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	return GroupClients(all), nil
}

// AddProject пока не реализовано.
func (s *DashboardService) AddProject(ctx context.Context) error {
	return apperror.ErrNextVersion
}

// Settings пока не реализовано.
func (s *DashboardService) Settings(ctx context.Context) error {
	return apperror.New(apperror.ErrCodeNotImplemented, "настройки появятся в следующей версии")
}
