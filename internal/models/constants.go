package models

// Статусы заявки в дашборде.
const (
	StatusNew        = "new"
	StatusContacted  = "contacted"
	StatusQuoted     = "quoted"
	StatusAccepted   = "accepted"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusArchived   = "archived"
)

// FilterAll означает отсутствие фильтра по полю.
const FilterAll = "all"

// Границы слайдера количества страниц.
const (
	MinPages     = 1
	MaxPages     = 20
	DefaultPages = 5
)

// Границы прогресса проекта в процентах.
const (
	MinProgress = 0
	MaxProgress = 100
)

// DefaultBusinessType подставляется при импорте записи без типа бизнеса.
const DefaultBusinessType = "other"

// Ключи key/value хранилища.
const (
	KeyLoginTime    = "dashboardLoginTime"
	KeySubmissions  = "clientSubmissions"
	KeyDraftPrefix  = "formDataDraft:"
	KeyDraftStepPfx = "currentStep:"
)

// Statuses список статусов в порядке отображения.
var Statuses = []string{
	StatusNew,
	StatusContacted,
	StatusQuoted,
	StatusAccepted,
	StatusInProgress,
	StatusCompleted,
	StatusArchived,
}

// ValidStatuses список валидных статусов заявки.
var ValidStatuses = map[string]struct{}{
	StatusNew:        {},
	StatusContacted:  {},
	StatusQuoted:     {},
	StatusAccepted:   {},
	StatusInProgress: {},
	StatusCompleted:  {},
	StatusArchived:   {},
}

// IsValidStatus проверяет, что статус входит в известный набор.
func IsValidStatus(status string) bool {
	_, ok := ValidStatuses[status]
	return ok
}
