package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ignatzorin/client-intake/internal/labels"
	"github.com/ignatzorin/client-intake/internal/models"
)

// ReviewItem строка обзора заявки.
type ReviewItem struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ReviewSection раздел обзора заявки.
type ReviewSection struct {
	Title string       `json:"title"`
	Items []ReviewItem `json:"items"`
}

// Review обзор заявки перед отправкой: разделы и их текстовая версия.
type Review struct {
	Sections []ReviewSection `json:"sections"`
	Text     string          `json:"formatted_review"`
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// BuildReview собирает обзор формы с подписями вместо кодов.
func BuildReview(data models.FormData) Review {
	c, p, d, t := data.Client, data.Project, data.Design, data.Timeline

	sections := []ReviewSection{
		{Title: "CLIENT INFORMATION", Items: []ReviewItem{
			{"Name", c.FullName},
			{"Email", c.Email},
			{"Phone", orDefault(c.Phone, "Not provided")},
			{"Business", c.BusinessName},
			{"Business Type", labels.Resolve(labels.BusinessType, c.BusinessType)},
			{"Description", c.BusinessDescription},
		}},
		{Title: "PROJECT DETAILS", Items: []ReviewItem{
			{"Website Type", strings.Join(labels.ResolveAll(labels.WebsiteType, p.WebsiteType), ", ")},
			{"Number of Pages", strconv.Itoa(p.Pages)},
			{"Features", strings.Join(labels.ResolveAll(labels.Feature, p.Features), ", ")},
			{"Specific Requirements", p.SpecificFeatures},
		}},
		{Title: "DESIGN PREFERENCES", Items: []ReviewItem{
			{"Color Preference", d.ColorPreference},
			{"Design Style", labels.Resolve(labels.DesignStyle, d.DesignStyle)},
			{"Website Examples", orDefault(d.WebsiteExamples, "Not provided")},
			{"Design Notes", orDefault(d.DesignNotes, "Not provided")},
		}},
		{Title: "TIMELINE & BUDGET", Items: []ReviewItem{
			{"Timeline", labels.Resolve(labels.Timeline, t.Timeline)},
			{"Budget", labels.Resolve(labels.Budget, t.Budget)},
			{"Payment Preference", orDefault(labels.Resolve(labels.PaymentPreference, t.PaymentPreference), "Not specified")},
			{"Content Materials", labels.Resolve(labels.ContentMaterials, t.ContentMaterials)},
			{"Files Uploaded", fmt.Sprintf("%d file(s)", len(t.Assets))},
		}},
	}

	var b strings.Builder
	for _, s := range sections {
		b.WriteString(s.Title)
		b.WriteString(":\n")
		for _, item := range s.Items {
			b.WriteString(item.Label)
			b.WriteString(": ")
			b.WriteString(item.Value)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("ADDITIONAL NOTES:\n")
	b.WriteString(orDefault(data.Additional.Notes, "None"))

	sections = append(sections, ReviewSection{Title: "ADDITIONAL NOTES", Items: []ReviewItem{
		{"Notes", orDefault(data.Additional.Notes, "None")},
	}})

	return Review{Sections: sections, Text: strings.TrimSpace(b.String())}
}
