package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ignatzorin/client-intake/internal/models"
)

// Ограничения полей формы.
const (
	MaxShortFieldLength = 200
	MaxLongFieldLength  = 5000
	MaxNotesLength      = 5000
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// FieldErrors ошибки валидации по полям формы: поле -> сообщение.
type FieldErrors map[string]string

// Add добавляет ошибку поля, если её ещё нет.
func (f FieldErrors) Add(field string, err error) {
	if err == nil {
		return
	}
	if _, exists := f[field]; !exists {
		f[field] = err.Error()
	}
}

// Empty сообщает, что ошибок нет.
func (f FieldErrors) Empty() bool {
	return len(f) == 0
}

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email обязателен")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("некорректный формат email")
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateSelection проверяет, что выбран хотя бы один вариант.
func ValidateSelection(fieldName string, values []string) error {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return nil
		}
	}
	return fmt.Errorf("%s: выберите хотя бы один вариант", fieldName)
}

// ValidatePages проверяет количество страниц.
func ValidatePages(pages int) error {
	if pages < models.MinPages || pages > models.MaxPages {
		return fmt.Errorf("количество страниц должно быть от %d до %d", models.MinPages, models.MaxPages)
	}
	return nil
}

// ValidateProgress проверяет прогресс проекта в процентах.
func ValidateProgress(progress int) error {
	if progress < models.MinProgress || progress > models.MaxProgress {
		return fmt.Errorf("прогресс должен быть от %d до %d", models.MinProgress, models.MaxProgress)
	}
	return nil
}

// ValidateClientStep проверяет шаг 1: контакты и бизнес.
func ValidateClientStep(c models.ClientInfo) FieldErrors {
	errs := FieldErrors{}
	errs.Add("fullName", ValidateNonEmpty("имя", c.FullName))
	errs.Add("fullName", ValidateLength("имя", c.FullName, 0, MaxShortFieldLength))
	errs.Add("email", ValidateEmail(c.Email))
	errs.Add("businessName", ValidateNonEmpty("название бизнеса", c.BusinessName))
	errs.Add("businessName", ValidateLength("название бизнеса", c.BusinessName, 0, MaxShortFieldLength))
	errs.Add("businessType", ValidateNonEmpty("тип бизнеса", c.BusinessType))
	errs.Add("businessDescription", ValidateNonEmpty("описание бизнеса", c.BusinessDescription))
	errs.Add("businessDescription", ValidateLength("описание бизнеса", c.BusinessDescription, 0, MaxLongFieldLength))
	return errs
}

// ValidateProjectStep проверяет шаг 2: тип сайта, функции, объём.
func ValidateProjectStep(p models.ProjectInfo) FieldErrors {
	errs := FieldErrors{}
	errs.Add("websiteType", ValidateSelection("тип сайта", p.WebsiteType))
	errs.Add("features", ValidateSelection("функции", p.Features))
	errs.Add("specificFeatures", ValidateNonEmpty("описание функций", p.SpecificFeatures))
	errs.Add("pages", ValidatePages(p.Pages))
	return errs
}

// ValidateDesignStep проверяет шаг 3: стиль дизайна.
func ValidateDesignStep(d models.DesignInfo) FieldErrors {
	errs := FieldErrors{}
	errs.Add("designStyle", ValidateNonEmpty("стиль дизайна", d.DesignStyle))
	return errs
}

// ValidateTimelineStep проверяет шаг 4: сроки, бюджет, материалы.
func ValidateTimelineStep(t models.TimelineInfo) FieldErrors {
	errs := FieldErrors{}
	errs.Add("timeline", ValidateNonEmpty("сроки", t.Timeline))
	errs.Add("budget", ValidateNonEmpty("бюджет", t.Budget))
	errs.Add("contentMaterials", ValidateNonEmpty("материалы", t.ContentMaterials))
	return errs
}

// ValidateStep проверяет поля указанного шага формы.
// Для шага обзора ошибок нет: он проверяется при отправке.
func ValidateStep(step int, data models.FormData) FieldErrors {
	switch step {
	case 1:
		return ValidateClientStep(data.Client)
	case 2:
		return ValidateProjectStep(data.Project)
	case 3:
		return ValidateDesignStep(data.Design)
	case 4:
		return ValidateTimelineStep(data.Timeline)
	default:
		return FieldErrors{}
	}
}

// ValidateSubmission проверяет шаги 1-4 и согласие с условиями.
func ValidateSubmission(data models.FormData, termsAccepted bool) FieldErrors {
	errs := FieldErrors{}
	for step := 1; step <= 4; step++ {
		for field, msg := range ValidateStep(step, data) {
			errs[field] = msg
		}
	}
	errs.Add("additionalNotes", ValidateLength("комментарий", data.Additional.Notes, 0, MaxNotesLength))
	if !termsAccepted {
		errs["terms"] = "необходимо принять условия"
	}
	return errs
}
