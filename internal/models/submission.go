package models

import (
	"strconv"
	"sync"
	"time"
)

// ClientInfo шаг 1 формы: контактные данные и описание бизнеса.
type ClientInfo struct {
	FullName            string `json:"fullName"`
	Email               string `json:"email"`
	Phone               string `json:"phone"`
	BusinessName        string `json:"businessName"`
	BusinessType        string `json:"businessType"`
	BusinessDescription string `json:"businessDescription"`
}

// ProjectInfo шаг 2 формы: тип сайта, объём и функции.
type ProjectInfo struct {
	WebsiteType      []string `json:"websiteType"`
	Pages            int      `json:"pages"`
	Features         []string `json:"features"`
	SpecificFeatures string   `json:"specificFeatures"`
}

// DesignInfo шаг 3 формы: дизайн-предпочтения.
type DesignInfo struct {
	ColorPreference string `json:"colorPreference"`
	WebsiteExamples string `json:"websiteExamples"`
	DesignStyle     string `json:"designStyle"`
	DesignNotes     string `json:"designNotes"`
}

// TimelineInfo шаг 4 формы: сроки, бюджет и материалы.
// Assets живут только в рамках сессии формы и в хранилище всегда пусты.
type TimelineInfo struct {
	Timeline          string   `json:"timeline"`
	Budget            string   `json:"budget"`
	PaymentPreference string   `json:"paymentPreference"`
	ContentMaterials  string   `json:"contentMaterials"`
	Assets            []string `json:"assets"`
}

// AdditionalInfo свободный комментарий клиента.
type AdditionalInfo struct {
	Notes string `json:"notes"`
}

// FormData содержимое формы, общее для черновика и заявки.
type FormData struct {
	Client     ClientInfo     `json:"client"`
	Project    ProjectInfo    `json:"project"`
	Design     DesignInfo     `json:"design"`
	Timeline   TimelineInfo   `json:"timeline"`
	Additional AdditionalInfo `json:"additional"`
}

// NewFormData возвращает пустую форму со значениями по умолчанию.
func NewFormData() FormData {
	return FormData{
		Project: ProjectInfo{
			WebsiteType: []string{},
			Pages:       DefaultPages,
			Features:    []string{},
		},
		Timeline: TimelineInfo{Assets: []string{}},
	}
}

// Clone возвращает глубокую копию формы.
func (f FormData) Clone() FormData {
	out := f
	out.Project.WebsiteType = cloneStrings(f.Project.WebsiteType)
	out.Project.Features = cloneStrings(f.Project.Features)
	out.Timeline.Assets = cloneStrings(f.Timeline.Assets)
	return out
}

// Submission одна заявка клиента.
type Submission struct {
	ID     string `json:"id"`
	Date   string `json:"date"`
	Status string `json:"status"`
	FormData
	Notes    string   `json:"notes"`
	Progress *int     `json:"progress,omitempty"`
	Revenue  *float64 `json:"revenue,omitempty"`
}

// CreatedAt разбирает дату создания; false если дата не в ISO-8601.
func (s *Submission) CreatedAt() (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, s.Date)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ProgressValue возвращает прогресс или 0, если он не задан.
func (s *Submission) ProgressValue() int {
	if s.Progress == nil {
		return 0
	}
	return *s.Progress
}

// SetProgress выставляет прогресс; 100% переводит заявку в completed.
func (s *Submission) SetProgress(progress int) {
	p := progress
	s.Progress = &p
	if progress == MaxProgress {
		s.Status = StatusCompleted
	}
}

// Clone возвращает глубокую копию заявки.
func (s Submission) Clone() Submission {
	out := s
	out.FormData = s.FormData.Clone()
	if s.Progress != nil {
		p := *s.Progress
		out.Progress = &p
	}
	if s.Revenue != nil {
		r := *s.Revenue
		out.Revenue = &r
	}
	return out
}

// Draft черновик формы с номером текущего шага.
type Draft struct {
	Data FormData `json:"data"`
	Step int      `json:"step"`
}

var (
	idMu   sync.Mutex
	lastID int64
)

// NewSubmissionID выдаёт идентификатор на основе времени в миллисекундах.
// Идентификаторы строго возрастают в пределах процесса.
func NewSubmissionID(now time.Time) string {
	idMu.Lock()
	defer idMu.Unlock()

	id := now.UnixMilli()
	if id <= lastID {
		id = lastID + 1
	}
	lastID = id
	return strconv.FormatInt(id, 10)
}

// FormatDate форматирует дату заявки в ISO-8601.
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
