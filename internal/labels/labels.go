// Package labels переводит коды значений формы в подписи для людей.
package labels

// Category категория справочника.
type Category string

const (
	BusinessType      Category = "businessType"
	WebsiteType       Category = "websiteType"
	Feature           Category = "feature"
	DesignStyle       Category = "designStyle"
	Timeline          Category = "timeline"
	Budget            Category = "budget"
	ContentMaterials  Category = "contentMaterials"
	PaymentPreference Category = "paymentPreference"
	Status            Category = "status"
)

// Label результат поиска кода в справочнике.
// Known=false означает неизвестный код: Text совпадает с Code.
type Label struct {
	Code  string `json:"code"`
	Text  string `json:"text"`
	Known bool   `json:"known"`
}

type entry struct {
	code string
	text string
}

// catalog хранит справочники в порядке отображения.
var catalog = map[Category][]entry{
	BusinessType: {
		{"personal", "Personal/Blog"},
		{"small-business", "Small Business"},
		{"restaurant", "Restaurant/Food"},
		{"retail", "Retail/E-commerce"},
		{"professional", "Professional Services"},
		{"nonprofit", "Non-profit/Organization"},
		{"portfolio", "Portfolio/Showcase"},
		{"other", "Other"},
	},
	WebsiteType: {
		{"informational", "Informational/Brochure Site"},
		{"portfolio", "Portfolio/Showcase Site"},
		{"blog", "Blog/Content Site"},
		{"ecommerce", "E-commerce/Online Store"},
		{"booking", "Booking/Appointment System"},
		{"other", "Other"},
	},
	Feature: {
		{"responsive", "Mobile Responsive"},
		{"contact-form", "Contact Form"},
		{"seo", "SEO Optimization"},
		{"analytics", "Google Analytics"},
		{"social-media", "Social Media Integration"},
		{"blog", "Blog/News Section"},
		{"gallery", "Photo/Video Gallery"},
		{"multilingual", "Multilingual Support"},
	},
	DesignStyle: {
		{"modern", "Modern & Minimal"},
		{"corporate", "Corporate & Professional"},
		{"creative", "Creative & Bold"},
		{"elegant", "Elegant & Luxurious"},
	},
	Timeline: {
		{"asap", "ASAP (1-2 weeks)"},
		{"1-month", "Within 1 month"},
		{"1-3-months", "1-3 months"},
		{"flexible", "Flexible/No rush"},
	},
	Budget: {
		{"300-500", "$300 - $500"},
		{"500-800", "$500 - $800"},
		{"800-1200", "$800 - $1,200"},
		{"1200-2000", "$1,200 - $2,000"},
		{"2000+", "$2,000+"},
		{"not-sure", "Not sure/Need quote"},
	},
	ContentMaterials: {
		{"all-ready", "All content ready"},
		{"partial", "Some materials ready"},
		{"none", "Need help creating content"},
	},
	PaymentPreference: {
		{"50-50", "50% upfront, 50% on completion"},
		{"milestones", "Milestone-based payments"},
		{"full-on-completion", "Full payment on completion"},
	},
	Status: {
		{"new", "New"},
		{"contacted", "Contacted"},
		{"quoted", "Quoted"},
		{"accepted", "Accepted"},
		{"in-progress", "In progress"},
		{"completed", "Completed"},
		{"archived", "Archived"},
	},
}

var index = buildIndex()

func buildIndex() map[Category]map[string]string {
	idx := make(map[Category]map[string]string, len(catalog))
	for cat, entries := range catalog {
		m := make(map[string]string, len(entries))
		for _, e := range entries {
			m[e.code] = e.text
		}
		idx[cat] = m
	}
	return idx
}

// Lookup ищет код в справочнике категории.
func Lookup(cat Category, code string) Label {
	if text, ok := index[cat][code]; ok {
		return Label{Code: code, Text: text, Known: true}
	}
	return Label{Code: code, Text: code}
}

// Resolve возвращает подпись кода или сам код, если он неизвестен.
func Resolve(cat Category, code string) string {
	return Lookup(cat, code).Text
}

// ResolveAll переводит список кодов.
func ResolveAll(cat Category, codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		out = append(out, Resolve(cat, code))
	}
	return out
}

// IsKnown сообщает, есть ли код в справочнике.
func IsKnown(cat Category, code string) bool {
	_, ok := index[cat][code]
	return ok
}

// Options возвращает известные значения категории в порядке отображения.
func Options(cat Category) []Label {
	entries := catalog[cat]
	out := make([]Label, 0, len(entries))
	for _, e := range entries {
		out = append(out, Label{Code: e.code, Text: e.text, Known: true})
	}
	return out
}

// Categories перечисляет все категории справочников.
func Categories() []Category {
	return []Category{
		BusinessType,
		WebsiteType,
		Feature,
		DesignStyle,
		Timeline,
		Budget,
		ContentMaterials,
		PaymentPreference,
		Status,
	}
}
