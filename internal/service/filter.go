package service

import (
	"strings"

	"github.com/ignatzorin/client-intake/internal/models"
)

// Filter условия отбора заявок в дашборде.
type Filter struct {
	Status string `json:"status"`
	Budget string `json:"budget"`
	Search string `json:"search"`
}

// AllFilter фильтр без ограничений.
func AllFilter() Filter {
	return Filter{Status: models.FilterAll, Budget: models.FilterAll}
}

// Normalize подставляет "all" вместо пустых значений.
func (f Filter) Normalize() Filter {
	if strings.TrimSpace(f.Status) == "" {
		f.Status = models.FilterAll
	}
	if strings.TrimSpace(f.Budget) == "" {
		f.Budget = models.FilterAll
	}
	return f
}

// Matches проверяет заявку на соответствие фильтру.
func (f Filter) Matches(s *models.Submission) bool {
	if f.Status != "" && f.Status != models.FilterAll && s.Status != f.Status {
		return false
	}
	if f.Budget != "" && f.Budget != models.FilterAll && s.Timeline.Budget != f.Budget {
		return false
	}
	search := strings.ToLower(f.Search)
	if search == "" {
		return true
	}
	return strings.Contains(searchText(s), search)
}

func searchText(s *models.Submission) string {
	return strings.ToLower(strings.Join([]string{
		s.Client.FullName,
		s.Client.Email,
		s.Client.BusinessName,
		s.Client.BusinessDescription,
		s.Project.SpecificFeatures,
		s.Additional.Notes,
	}, "\n"))
}

// FilterSubmissions возвращает заявки, подходящие под фильтр, в исходном порядке.
func FilterSubmissions(all []models.Submission, f Filter) []models.Submission {
	out := make([]models.Submission, 0, len(all))
	for i := range all {
		if f.Matches(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out
}

// TotalPages число страниц; для пустого списка 0.
func TotalPages(count, size int) int {
	if size <= 0 || count <= 0 {
		return 0
	}
	return (count + size - 1) / size
}

// Paginate возвращает срез [(page-1)*size, page*size), обрезанный по длине списка.
func Paginate(list []models.Submission, page, size int) []models.Submission {
	if page < 1 || size <= 0 {
		return []models.Submission{}
	}
	start := (page - 1) * size
	if start >= len(list) {
		return []models.Submission{}
	}
	end := start + size
	if end > len(list) {
		end = len(list)
	}
	return list[start:end]
}
