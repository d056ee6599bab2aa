package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ignatzorin/client-intake/internal/models"
)

// SeedService заполняет пустое хранилище демонстрационными заявками.
type SeedService struct {
	store    SubmissionStore
	notifier *ChangeNotifier
	now      func() time.Time
}

// NewSeedService создаёт сервис демо-данных.
func NewSeedService(store SubmissionStore, notifier *ChangeNotifier) *SeedService {
	return &SeedService{store: store, notifier: notifier, now: time.Now}
}

// SeedIfEmpty записывает демо-заявки, только если хранилище пусто.
// Возвращает итоговый список и признак того, что данные были добавлены.
func (s *SeedService) SeedIfEmpty(ctx context.Context) ([]models.Submission, bool, error) {
	var (
		seeded bool
		result []models.Submission
	)
	err := s.store.Mutate(ctx, func(list []models.Submission) ([]models.Submission, bool) {
		if len(list) > 0 {
			result = list
			return list, false
		}
		result = SampleSubmissions(s.now())
		seeded = true
		return result, true
	})
	if err != nil {
		return nil, false, fmt.Errorf("seed service: %w", err)
	}
	if seeded {
		s.notifier.StoreChanged(StoreChange{Reason: "seeded", Count: len(result)})
	}
	return result, seeded, nil
}

// Reset заменяет содержимое хранилища демо-заявками.
func (s *SeedService) Reset(ctx context.Context) ([]models.Submission, error) {
	list := SampleSubmissions(s.now())
	if err := s.store.Save(ctx, list); err != nil {
		return nil, fmt.Errorf("seed service: %w", err)
	}
	s.notifier.StoreChanged(StoreChange{Reason: "seeded", Count: len(list)})
	return list, nil
}

// SampleSubmissions четыре демонстрационные заявки с датами относительно now.
func SampleSubmissions(now time.Time) []models.Submission {
	daysAgo := func(n int) string {
		return models.FormatDate(now.Add(-time.Duration(n) * 24 * time.Hour))
	}
	intPtr := func(v int) *int { return &v }
	floatPtr := func(v float64) *float64 { return &v }

	return []models.Submission{
		{
			ID:     "1",
			Date:   daysAgo(2),
			Status: models.StatusNew,
			FormData: models.FormData{
				Client: models.ClientInfo{
					FullName:            "Sarah Johnson",
					Email:               "sarah@example.com",
					Phone:               "(555) 123-4567",
					BusinessName:        "Sarah's Bakery",
					BusinessType:        "restaurant",
					BusinessDescription: "Artisan bakery specializing in custom cakes and pastries.",
				},
				Project: models.ProjectInfo{
					WebsiteType:      []string{"informational", "ecommerce"},
					Pages:            7,
					Features:         []string{"responsive", "contact-form", "seo", "gallery"},
					SpecificFeatures: "Online ordering system, photo gallery of cakes, customer reviews",
				},
				Design: models.DesignInfo{
					ColorPreference: "#ec4899",
					WebsiteExamples: "https://sprinkles.com, https://magnoliabakery.com",
					DesignStyle:     "creative",
					DesignNotes:     "Sweet and playful design with lots of pink",
				},
				Timeline: models.TimelineInfo{
					Timeline:          "asap",
					Budget:            "500-800",
					PaymentPreference: "50-50",
					ContentMaterials:  "all-ready",
					Assets:            []string{},
				},
				Additional: models.AdditionalInfo{Notes: "Need website before holiday season"},
			},
			Notes: "Sample client - interested in quick turnaround",
		},
		{
			ID:     "2",
			Date:   daysAgo(5),
			Status: models.StatusContacted,
			FormData: models.FormData{
				Client: models.ClientInfo{
					FullName:            "Michael Chen",
					Email:               "michael@techsolutions.com",
					Phone:               "(555) 987-6543",
					BusinessName:        "Tech Solutions Inc.",
					BusinessType:        "professional",
					BusinessDescription: "IT consulting and software development services.",
				},
				Project: models.ProjectInfo{
					WebsiteType:      []string{"portfolio", "blog"},
					Pages:            5,
					Features:         []string{"responsive", "contact-form", "seo", "analytics", "blog"},
					SpecificFeatures: "Project portfolio, blog section, team profiles",
				},
				Design: models.DesignInfo{
					ColorPreference: "#3b82f6",
					WebsiteExamples: "https://ibm.com, https://microsoft.com",
					DesignStyle:     "corporate",
					DesignNotes:     "Professional and trustworthy design",
				},
				Timeline: models.TimelineInfo{
					Timeline:          "1-month",
					Budget:            "800-1200",
					PaymentPreference: "milestones",
					ContentMaterials:  "partial",
					Assets:            []string{},
				},
				Additional: models.AdditionalInfo{Notes: "Looking for long-term partnership"},
			},
			Notes: "Sent initial quote, waiting for response",
		},
		{
			ID:     "3",
			Date:   daysAgo(10),
			Status: models.StatusInProgress,
			FormData: models.FormData{
				Client: models.ClientInfo{
					FullName:            "Emma Rodriguez",
					Email:               "emma@greenliving.com",
					Phone:               "(555) 456-7890",
					BusinessName:        "Green Living",
					BusinessType:        "small-business",
					BusinessDescription: "Eco-friendly products and sustainability consulting.",
				},
				Project: models.ProjectInfo{
					WebsiteType:      []string{"ecommerce"},
					Pages:            8,
					Features:         []string{"responsive", "contact-form", "seo", "analytics", "social-media", "blog"},
					SpecificFeatures: "Online store, blog about sustainability, product reviews",
				},
				Design: models.DesignInfo{
					ColorPreference: "#10b981",
					WebsiteExamples: "https://patagonia.com, https://tentree.com",
					DesignStyle:     "modern",
					DesignNotes:     "Clean, nature-inspired design",
				},
				Timeline: models.TimelineInfo{
					Timeline:          "1-3-months",
					Budget:            "1200-2000",
					PaymentPreference: "50-50",
					ContentMaterials:  "none",
					Assets:            []string{},
				},
				Additional: models.AdditionalInfo{Notes: "Excited about this project!"},
			},
			Notes:    "50% deposit received, working on design mockups",
			Progress: intPtr(30),
		},
		{
			ID:     "4",
			Date:   daysAgo(20),
			Status: models.StatusCompleted,
			FormData: models.FormData{
				Client: models.ClientInfo{
					FullName:            "David Wilson",
					Email:               "david@lawfirm.com",
					Phone:               "(555) 789-0123",
					BusinessName:        "Wilson & Associates",
					BusinessType:        "professional",
					BusinessDescription: "Legal services specializing in business law.",
				},
				Project: models.ProjectInfo{
					WebsiteType:      []string{"informational"},
					Pages:            6,
					Features:         []string{"responsive", "contact-form", "seo"},
					SpecificFeatures: "Attorney profiles, service pages, contact forms",
				},
				Design: models.DesignInfo{
					ColorPreference: "#000000",
					DesignStyle:     "elegant",
					DesignNotes:     "Professional, authoritative design",
				},
				Timeline: models.TimelineInfo{
					Timeline:          "asap",
					Budget:            "800-1200",
					PaymentPreference: "full-on-completion",
					ContentMaterials:  "all-ready",
					Assets:            []string{},
				},
				Additional: models.AdditionalInfo{Notes: "Need website to be very professional"},
			},
			Notes:    "Project completed successfully, client very happy",
			Progress: intPtr(100),
			Revenue:  floatPtr(950),
		},
	}
}
