package service

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/ignatzorin/client-intake/internal/labels"
	"github.com/ignatzorin/client-intake/internal/models"
)

// budgetRevenue оценка выручки по бюджетному диапазону.
var budgetRevenue = map[string]int{
	"300-500":   400,
	"500-800":   650,
	"800-1200":  1000,
	"1200-2000": 1600,
	"2000+":     2500,
}

const (
	recentActivityLimit = 5
	projectDueAfter     = 14 * 24 * time.Hour
)

// EstimatedRevenue оценка выручки заявки по бюджету; 0 для неизвестного диапазона.
func EstimatedRevenue(budget string) int {
	return budgetRevenue[budget]
}

// StatusCount число заявок в статусе для диаграммы.
type StatusCount struct {
	Status string `json:"status"`
	Label  string `json:"label"`
	Count  int    `json:"count"`
}

// Activity элемент ленты последних заявок.
type Activity struct {
	ID           string `json:"id"`
	BusinessName string `json:"business_name"`
	Description  string `json:"description"`
	Status       string `json:"status"`
	TimeAgo      string `json:"time_ago"`
}

// Stats агрегаты главной страницы дашборда.
type Stats struct {
	Total        int           `json:"total"`
	New          int           `json:"new"`
	Active       int           `json:"active"`
	Revenue      int           `json:"revenue"`
	StatusCounts []StatusCount `json:"status_counts"`
	Activity     []Activity    `json:"activity"`
}

// ComputeStats считает агрегаты по списку заявок.
func ComputeStats(all []models.Submission, now time.Time) *Stats {
	stats := &Stats{
		Total:        len(all),
		StatusCounts: []StatusCount{},
		Activity:     []Activity{},
	}

	counts := make(map[string]int, len(models.Statuses))
	for i := range all {
		s := &all[i]
		counts[s.Status]++
		switch s.Status {
		case models.StatusNew:
			stats.New++
		case models.StatusInProgress:
			stats.Active++
		case models.StatusCompleted:
			stats.Revenue += EstimatedRevenue(s.Timeline.Budget)
		}
	}
	for _, status := range models.Statuses {
		if counts[status] == 0 {
			continue
		}
		stats.StatusCounts = append(stats.StatusCounts, StatusCount{
			Status: status,
			Label:  labels.Resolve(labels.Status, status),
			Count:  counts[status],
		})
	}

	for _, s := range recent(all, recentActivityLimit) {
		websiteType := ""
		if len(s.Project.WebsiteType) > 0 {
			websiteType = labels.Resolve(labels.WebsiteType, s.Project.WebsiteType[0])
		}
		created, _ := s.CreatedAt()
		stats.Activity = append(stats.Activity, Activity{
			ID:           s.ID,
			BusinessName: s.Client.BusinessName,
			Description:  fmt.Sprintf("New %s request", websiteType),
			Status:       s.Status,
			TimeAgo:      TimeAgo(now, created),
		})
	}
	return stats
}

// recent до limit самых свежих заявок; заявки с неразборчивой датой идут последними.
func recent(all []models.Submission, limit int) []models.Submission {
	sorted := make([]models.Submission, len(all))
	copy(sorted, all)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, okI := sorted[i].CreatedAt()
		tj, okJ := sorted[j].CreatedAt()
		if okI != okJ {
			return okI
		}
		return ti.After(tj)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// TimeAgo относительное время: минуты, часы, дни до недели, затем дата вида "Jan 2".
func TimeAgo(now, t time.Time) string {
	if t.IsZero() {
		return ""
	}
	diff := now.Sub(t)
	minutes := int(diff / time.Minute)
	hours := int(diff / time.Hour)
	days := int(diff / (24 * time.Hour))

	switch {
	case minutes < 60:
		return plural(minutes, "minute") + " ago"
	case hours < 24:
		return plural(hours, "hour") + " ago"
	case days < 7:
		return plural(days, "day") + " ago"
	default:
		return t.Format("Jan 2")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// Project активный проект в дашборде.
type Project struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ClientName   string `json:"client_name"`
	Status       string `json:"status"`
	Budget       string `json:"budget"`
	BudgetLabel  string `json:"budget_label"`
	Timeline     string `json:"timeline"`
	Pages        int    `json:"pages"`
	Progress     int    `json:"progress"`
	DueDate      string `json:"due_date"`
	DueDateLabel string `json:"due_date_label"`
}

// ActiveProjects принятые заявки и заявки в работе.
// Без заданного прогресса принятым выставляется 10%, остальным 30%.
func ActiveProjects(all []models.Submission) []Project {
	out := []Project{}
	for i := range all {
		s := &all[i]
		if s.Status != models.StatusAccepted && s.Status != models.StatusInProgress {
			continue
		}
		progress := s.ProgressValue()
		if progress == 0 {
			progress = 30
			if s.Status == models.StatusAccepted {
				progress = 10
			}
		}
		p := Project{
			ID:          s.ID,
			Title:       s.Client.BusinessName + " Website",
			ClientName:  s.Client.FullName,
			Status:      s.Status,
			Budget:      s.Timeline.Budget,
			BudgetLabel: labels.Resolve(labels.Budget, s.Timeline.Budget),
			Timeline:    labels.Resolve(labels.Timeline, s.Timeline.Timeline),
			Pages:       s.Project.Pages,
			Progress:    progress,
		}
		if created, ok := s.CreatedAt(); ok {
			due := created.Add(projectDueAfter)
			p.DueDate = models.FormatDate(due)
			p.DueDateLabel = due.Format("Jan 2")
		}
		out = append(out, p)
	}
	return out
}

// Client клиент и его заявки.
type Client struct {
	Name         string   `json:"name"`
	Business     string   `json:"business"`
	Email        string   `json:"email"`
	Phone        string   `json:"phone"`
	Initials     string   `json:"initials"`
	ProjectIDs   []string `json:"project_ids"`
	ProjectCount int      `json:"project_count"`
	TotalRevenue int      `json:"total_revenue"`
}

// GroupClients группирует заявки по email в порядке первого появления.
// Имя и бизнес берутся из первой заявки клиента.
func GroupClients(all []models.Submission) []Client {
	index := make(map[string]int)
	out := []Client{}
	for i := range all {
		s := &all[i]
		pos, ok := index[s.Client.Email]
		if !ok {
			pos = len(out)
			index[s.Client.Email] = pos
			out = append(out, Client{
				Name:       s.Client.FullName,
				Business:   s.Client.BusinessName,
				Email:      s.Client.Email,
				Phone:      s.Client.Phone,
				Initials:   Initials(s.Client.FullName),
				ProjectIDs: []string{},
			})
		}
		c := &out[pos]
		c.ProjectIDs = append(c.ProjectIDs, s.ID)
		c.ProjectCount++
		if s.Status == models.StatusCompleted {
			c.TotalRevenue += EstimatedRevenue(s.Timeline.Budget)
		}
	}
	return out
}

// Initials первые буквы первых двух слов имени в верхнем регистре.
func Initials(name string) string {
	var b strings.Builder
	n := 0
	for _, word := range strings.Fields(name) {
		if n == 2 {
			break
		}
		r, _ := utf8.DecodeRuneInString(word)
		b.WriteRune(unicode.ToUpper(r))
		n++
	}
	return b.String()
}
