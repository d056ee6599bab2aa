package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/client-intake/internal/csvio"
	"github.com/ignatzorin/client-intake/internal/labels"
	"github.com/ignatzorin/client-intake/internal/logger"
	"github.com/ignatzorin/client-intake/internal/models"
	"github.com/ignatzorin/client-intake/internal/pkg/apperror"
	"github.com/ignatzorin/client-intake/internal/storage"
)

// Форматы выгрузки.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Колонки выгрузки.
const (
	ColID                  = "ID"
	ColDate                = "Date"
	ColStatus              = "Status"
	ColClientName          = "Client Name"
	ColClientEmail         = "Client Email"
	ColClientPhone         = "Client Phone"
	ColBusinessName        = "Business Name"
	ColBusinessType        = "Business Type"
	ColBusinessDescription = "Business Description"
	ColWebsiteType         = "Website Type"
	ColPages               = "Pages"
	ColFeatures            = "Features"
	ColSpecificFeatures    = "Specific Features"
	ColColorPreference     = "Color Preference"
	ColDesignStyle         = "Design Style"
	ColWebsiteExamples     = "Website Examples"
	ColDesignNotes         = "Design Notes"
	ColTimeline            = "Timeline"
	ColBudget              = "Budget"
	ColPaymentPreference   = "Payment Preference"
	ColContentMaterials    = "Content Materials"
	ColAdditionalNotes     = "Additional Notes"
	ColYourNotes           = "Your Notes"
	ColProgress            = "Progress"
	ColRevenue             = "Revenue"
)

// FilteredColumns колонки выгрузки текущего списка с подписями вместо кодов.
var FilteredColumns = []string{
	ColID, ColDate, ColStatus, ColClientName, ColClientEmail, ColBusinessName,
	ColBusinessType, ColWebsiteType, ColPages, ColBudget, ColTimeline, ColYourNotes,
}

// FullColumns колонки полной выгрузки с кодами.
var FullColumns = []string{
	ColID, ColDate, ColStatus, ColClientName, ColClientEmail, ColClientPhone,
	ColBusinessName, ColBusinessType, ColBusinessDescription, ColWebsiteType, ColPages,
	ColFeatures, ColSpecificFeatures, ColColorPreference, ColDesignStyle, ColWebsiteExamples,
	ColDesignNotes, ColTimeline, ColBudget, ColPaymentPreference, ColContentMaterials,
	ColAdditionalNotes, ColYourNotes, ColProgress, ColRevenue,
}

const shortDateLayout = "1/2/2006"

// Export готовый к скачиванию файл.
type Export struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ImportResult итог импорта.
type ImportResult struct {
	Parsed  int `json:"parsed"`
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
	Total   int `json:"total"`
}

// TransferService выгрузка и загрузка заявок в CSV и JSON.
type TransferService struct {
	store    SubmissionStore
	notifier *ChangeNotifier
	now      func() time.Time
}

// NewTransferService создаёт сервис импорта и экспорта.
func NewTransferService(store SubmissionStore, notifier *ChangeNotifier) *TransferService {
	return &TransferService{store: store, notifier: notifier, now: time.Now}
}

// ExportFiltered выгружает текущий отфильтрованный список с подписями.
func (s *TransferService) ExportFiltered(list []models.Submission) (*Export, error) {
	if len(list) == 0 {
		return nil, apperror.ErrNoDataToExport
	}
	rows := make([][]string, 0, len(list))
	for i := range list {
		rows = append(rows, filteredRow(&list[i]))
	}
	data, err := csvio.Bytes(csvio.Table{Headers: FilteredColumns, Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("transfer service: %w", err)
	}
	return &Export{
		FileName:    s.fileName("client-requests", FormatCSV),
		ContentType: "text/csv; charset=utf-8",
		Data:        data,
	}, nil
}

// ExportAll выгружает всё хранилище: CSV со всеми полями или JSON.
func (s *TransferService) ExportAll(ctx context.Context, format string) (*Export, error) {
	list, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("transfer service: %w", err)
	}
	if len(list) == 0 {
		return nil, apperror.ErrNoDataToExport
	}

	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(list, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("transfer service: %w", err)
		}
		return &Export{
			FileName:    s.fileName("all-client-data", FormatJSON),
			ContentType: "application/json",
			Data:        data,
		}, nil
	case FormatCSV, "":
		rows := make([][]string, 0, len(list))
		for i := range list {
			rows = append(rows, fullRow(&list[i]))
		}
		data, err := csvio.Bytes(csvio.Table{Headers: FullColumns, Rows: rows})
		if err != nil {
			return nil, fmt.Errorf("transfer service: %w", err)
		}
		return &Export{
			FileName:    s.fileName("all-client-data", FormatCSV),
			ContentType: "text/csv; charset=utf-8",
			Data:        data,
		}, nil
	default:
		return nil, apperror.New(apperror.ErrCodeBadRequest, "неизвестный формат выгрузки: "+format)
	}
}

func (s *TransferService) fileName(prefix, ext string) string {
	return fmt.Sprintf("%s-%s.%s", prefix, s.now().UTC().Format("2006-01-02"), ext)
}

func filteredRow(r *models.Submission) []string {
	return []string{
		r.ID,
		shortDate(r),
		r.Status,
		r.Client.FullName,
		r.Client.Email,
		r.Client.BusinessName,
		labels.Resolve(labels.BusinessType, r.Client.BusinessType),
		strings.Join(labels.ResolveAll(labels.WebsiteType, r.Project.WebsiteType), ", "),
		strconv.Itoa(r.Project.Pages),
		labels.Resolve(labels.Budget, r.Timeline.Budget),
		labels.Resolve(labels.Timeline, r.Timeline.Timeline),
		r.Notes,
	}
}

func fullRow(r *models.Submission) []string {
	date := r.Date
	if t, ok := r.CreatedAt(); ok {
		date = models.FormatDate(t)
	}
	return []string{
		r.ID,
		date,
		r.Status,
		r.Client.FullName,
		r.Client.Email,
		r.Client.Phone,
		r.Client.BusinessName,
		r.Client.BusinessType,
		r.Client.BusinessDescription,
		strings.Join(r.Project.WebsiteType, ","),
		strconv.Itoa(r.Project.Pages),
		strings.Join(r.Project.Features, ","),
		r.Project.SpecificFeatures,
		r.Design.ColorPreference,
		r.Design.DesignStyle,
		r.Design.WebsiteExamples,
		r.Design.DesignNotes,
		r.Timeline.Timeline,
		r.Timeline.Budget,
		r.Timeline.PaymentPreference,
		r.Timeline.ContentMaterials,
		r.Additional.Notes,
		r.Notes,
		strconv.Itoa(r.ProgressValue()),
		formatRevenue(r.Revenue),
	}
}

func formatRevenue(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func shortDate(r *models.Submission) string {
	t, ok := r.CreatedAt()
	if !ok {
		return r.Date
	}
	return t.UTC().Format(shortDateLayout)
}

// Import разбирает файл и дописывает заявки в конец хранилища.
// Повторяющиеся id отбрасываются, побеждает первое вхождение.
// Любая ошибка разбора отменяет весь импорт; хранилище не меняется.
func (s *TransferService) Import(ctx context.Context, fileName string, data []byte) (*ImportResult, error) {
	head := data
	if len(head) > 262 {
		head = head[:262]
	}
	if storage.IsBinary(head) {
		return nil, importError("файл не является CSV или JSON", nil)
	}

	var (
		incoming []models.Submission
		err      error
	)
	if isJSON(fileName, data) {
		incoming, err = s.parseJSON(data)
	} else {
		incoming, err = s.parseCSV(data)
	}
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Parsed: len(incoming)}
	err = s.store.Mutate(ctx, func(list []models.Submission) ([]models.Submission, bool) {
		before := len(list)
		merged := Dedup(append(list, incoming...))
		result.Added = len(merged) - before
		result.Skipped = len(incoming) - result.Added
		result.Total = len(merged)
		return merged, result.Added > 0
	})
	if err != nil {
		return nil, fmt.Errorf("transfer service: %w", err)
	}

	if result.Added > 0 {
		s.notifier.StoreChanged(StoreChange{Reason: "imported", Count: result.Added})
	}
	logger.Log.WithFields(logrus.Fields{
		"component": "transfer",
		"file":      fileName,
		"parsed":    result.Parsed,
		"added":     result.Added,
	}).Info("импорт завершён")
	return result, nil
}

// Dedup оставляет первое вхождение каждого id.
func Dedup(list []models.Submission) []models.Submission {
	seen := make(map[string]struct{}, len(list))
	out := make([]models.Submission, 0, len(list))
	for _, s := range list {
		if _, ok := seen[s.ID]; ok {
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}
	return out
}

func importError(msg string, cause error) error {
	if cause == nil {
		return apperror.New(apperror.ErrCodeImportFormat, "ошибка импорта: "+msg)
	}
	return apperror.Wrap(cause, apperror.ErrCodeImportFormat, "ошибка импорта: "+msg)
}

func isJSON(fileName string, data []byte) bool {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".json":
		return true
	case ".csv":
		return false
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
	return len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{')
}

func (s *TransferService) parseCSV(data []byte) ([]models.Submission, error) {
	headers, records, err := csvio.Read(bytes.NewReader(data))
	if err != nil {
		return nil, importError("не удалось разобрать CSV", err)
	}
	if !hasKnownColumn(headers) {
		return nil, importError("не найдена строка заголовков", nil)
	}
	out := make([]models.Submission, 0, len(records))
	for _, rec := range records {
		out = append(out, s.fromRecord(rec))
	}
	return out, nil
}

func hasKnownColumn(headers []string) bool {
	for _, h := range headers {
		for _, c := range FullColumns {
			if h == c {
				return true
			}
		}
	}
	return false
}

func (s *TransferService) parseJSON(data []byte) ([]models.Submission, error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, importError("ожидается JSON-массив", err)
	}

	out := make([]models.Submission, 0, len(items))
	for i, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil {
			return nil, importError(fmt.Sprintf("элемент %d не является объектом", i+1), err)
		}
		_, hasID := fields["id"]
		_, hasClient := fields["client"]
		if hasID || hasClient {
			var sub models.Submission
			if err := json.Unmarshal(item, &sub); err != nil {
				return nil, importError(fmt.Sprintf("элемент %d", i+1), err)
			}
			out = append(out, s.withDefaults(sub))
			continue
		}

		rec := make(csvio.Record, len(fields))
		for k, v := range fields {
			rec[k] = jsonScalar(v)
		}
		out = append(out, s.fromRecord(rec))
	}
	return out, nil
}

// jsonScalar приводит значение плоского объекта к строке колонки.
func jsonScalar(v json.RawMessage) string {
	var str string
	if err := json.Unmarshal(v, &str); err == nil {
		return strings.TrimSpace(str)
	}
	trimmed := strings.TrimSpace(string(v))
	if trimmed == "null" {
		return ""
	}
	return trimmed
}

// withDefaults дополняет заявку из JSON значениями по умолчанию.
func (s *TransferService) withDefaults(sub models.Submission) models.Submission {
	now := s.now()
	if sub.ID == "" {
		sub.ID = models.NewSubmissionID(now)
	}
	if sub.Date == "" {
		sub.Date = models.FormatDate(now)
	}
	if sub.Status == "" {
		sub.Status = models.StatusNew
	}
	if sub.Client.BusinessType == "" {
		sub.Client.BusinessType = models.DefaultBusinessType
	}
	if sub.Project.Pages < models.MinPages {
		sub.Project.Pages = models.DefaultPages
	}
	sub.FormData = sub.FormData.Clone()
	sub.Timeline.Assets = []string{}
	return sub
}

// fromRecord строит заявку из строки выгрузки.
func (s *TransferService) fromRecord(rec csvio.Record) models.Submission {
	now := s.now()
	get := func(col string) string { return strings.TrimSpace(rec[col]) }
	or := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}

	pages, err := strconv.Atoi(get(ColPages))
	if err != nil || pages == 0 {
		pages = models.DefaultPages
	}
	progress, err := strconv.Atoi(get(ColProgress))
	if err != nil {
		progress = 0
	}

	var revenue *float64
	if v, err := strconv.ParseFloat(get(ColRevenue), 64); err == nil {
		revenue = &v
	}

	id := get(ColID)
	if id == "" {
		id = models.NewSubmissionID(now)
	}

	return models.Submission{
		ID:     id,
		Date:   importDate(get(ColDate), now),
		Status: or(get(ColStatus), models.StatusNew),
		FormData: models.FormData{
			Client: models.ClientInfo{
				FullName:            get(ColClientName),
				Email:               get(ColClientEmail),
				Phone:               get(ColClientPhone),
				BusinessName:        get(ColBusinessName),
				BusinessType:        or(get(ColBusinessType), models.DefaultBusinessType),
				BusinessDescription: get(ColBusinessDescription),
			},
			Project: models.ProjectInfo{
				WebsiteType:      splitList(get(ColWebsiteType)),
				Pages:            pages,
				Features:         splitList(get(ColFeatures)),
				SpecificFeatures: get(ColSpecificFeatures),
			},
			Design: models.DesignInfo{
				ColorPreference: get(ColColorPreference),
				WebsiteExamples: get(ColWebsiteExamples),
				DesignStyle:     get(ColDesignStyle),
				DesignNotes:     get(ColDesignNotes),
			},
			Timeline: models.TimelineInfo{
				Timeline:          get(ColTimeline),
				Budget:            get(ColBudget),
				PaymentPreference: get(ColPaymentPreference),
				ContentMaterials:  get(ColContentMaterials),
				Assets:            []string{},
			},
			Additional: models.AdditionalInfo{Notes: get(ColAdditionalNotes)},
		},
		Notes:    get(ColYourNotes),
		Progress: &progress,
		Revenue:  revenue,
	}
}

// importDate приводит дату к ISO-8601; нераспознанная дата сохраняется как есть.
func importDate(raw string, now time.Time) string {
	if raw == "" {
		return models.FormatDate(now)
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return models.FormatDate(t)
	}
	if t, err := time.Parse(shortDateLayout, raw); err == nil {
		return models.FormatDate(t)
	}
	return raw
}

func splitList(v string) []string {
	out := []string{}
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
