package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/client-intake/internal/goroutine"
	"github.com/ignatzorin/client-intake/internal/intake"
	"github.com/ignatzorin/client-intake/internal/logger"
	"github.com/ignatzorin/client-intake/internal/models"
	"github.com/ignatzorin/client-intake/internal/pkg/apperror"
	"github.com/ignatzorin/client-intake/internal/storage"
	"github.com/ignatzorin/client-intake/internal/validation"
)

// Step шаг формы.
type Step int

const (
	StepClient Step = iota + 1
	StepProject
	StepDesign
	StepTimeline
	StepReview
)

func (s Step) String() string {
	switch s {
	case StepClient:
		return "client"
	case StepProject:
		return "project"
	case StepDesign:
		return "design"
	case StepTimeline:
		return "timeline"
	case StepReview:
		return "review"
	default:
		return "unknown"
	}
}

func clampStep(n int) Step {
	if n < int(StepClient) {
		return StepClient
	}
	if n > int(StepReview) {
		return StepReview
	}
	return Step(n)
}

// FormState состояние сессии формы.
type FormState string

const (
	FormEditing    FormState = "editing"
	FormSubmitting FormState = "submitting"
	FormSubmitted  FormState = "submitted"
)

// SubmissionStore описывает зависимости от хранилища заявок.
type SubmissionStore interface {
	Load(ctx context.Context) ([]models.Submission, error)
	Save(ctx context.Context, list []models.Submission) error
	Prepend(ctx context.Context, s models.Submission) error
	Update(ctx context.Context, id string, patch func(*models.Submission)) (bool, error)
	Remove(ctx context.Context, id string) (bool, error)
	Mutate(ctx context.Context, fn func([]models.Submission) ([]models.Submission, bool)) error
}

// DraftStore описывает хранилище черновиков.
type DraftStore interface {
	Save(ctx context.Context, draftID string, draft models.Draft) error
	Load(ctx context.Context, draftID string) (*models.Draft, error)
	Delete(ctx context.Context, draftID string) error
}

// Deliverer отправляет заявку во внешний сервис приёма форм.
type Deliverer interface {
	Deliver(ctx context.Context, payload intake.Payload) error
}

// AssetStore временное хранилище файлов сессии.
type AssetStore interface {
	Save(ctx context.Context, sessionID, originalName string, r io.Reader) (*storage.Asset, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// StepFields значения полей, введённые посетителем.
// Каждый раздел применяется поверх видимых значений; учитывается только раздел текущего шага.
type StepFields struct {
	Client     json.RawMessage `json:"client,omitempty"`
	Project    json.RawMessage `json:"project,omitempty"`
	Design     json.RawMessage `json:"design,omitempty"`
	Timeline   json.RawMessage `json:"timeline,omitempty"`
	Additional json.RawMessage `json:"additional,omitempty"`
}

// SubmitInput данные финального шага.
type SubmitInput struct {
	TermsAccepted   bool
	AdditionalNotes *string
}

// FormConfig параметры сессий формы.
type FormConfig struct {
	AutosavePeriod time.Duration
	IdleTTL        time.Duration
	MaxAssets      int
}

// SessionView снимок сессии формы для клиента.
type SessionView struct {
	ID             string          `json:"id"`
	DraftID        string          `json:"draft_id"`
	Step           Step            `json:"step"`
	StepName       string          `json:"step_name"`
	State          FormState       `json:"state"`
	DraftAvailable bool            `json:"draft_available"`
	Data           models.FormData `json:"data"`
	Assets         []storage.Asset `json:"assets"`
	LastSavedAt    *time.Time      `json:"last_saved_at,omitempty"`
}

// FormSession серверная сессия многошаговой формы.
// visible хранит введённые значения, committed значения, принятые при переходе между шагами.
type FormSession struct {
	id      string
	draftID string

	mu             sync.Mutex
	step           Step
	state          FormState
	visible        models.FormData
	committed      models.FormData
	draftAvailable bool
	assets         []storage.Asset
	lastActive     time.Time
	lastSaved      *time.Time

	cancel context.CancelFunc
	done   <-chan struct{}
}

func (s *FormSession) view() *SessionView {
	assets := make([]storage.Asset, len(s.assets))
	copy(assets, s.assets)
	return &SessionView{
		ID:             s.id,
		DraftID:        s.draftID,
		Step:           s.step,
		StepName:       s.step.String(),
		State:          s.state,
		DraftAvailable: s.draftAvailable,
		Data:           s.visible.Clone(),
		Assets:         assets,
		LastSavedAt:    s.lastSaved,
	}
}

func (s *FormSession) setState(state FormState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *FormSession) editable() error {
	if s.state != FormEditing {
		return apperror.ErrAlreadySubmitted
	}
	if s.draftAvailable {
		return apperror.ErrDraftPending
	}
	return nil
}

// apply накладывает раздел текущего шага на видимые значения.
func (s *FormSession) apply(fields StepFields) error {
	var (
		raw    json.RawMessage
		target interface{}
	)
	next := s.visible.Clone()
	switch s.step {
	case StepClient:
		raw, target = fields.Client, &next.Client
	case StepProject:
		raw, target = fields.Project, &next.Project
	case StepDesign:
		raw, target = fields.Design, &next.Design
	case StepTimeline:
		raw, target = fields.Timeline, &next.Timeline
	case StepReview:
		raw, target = fields.Additional, &next.Additional
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeBadRequest, "некорректные значения полей")
	}
	// Список файлов меняется только загрузкой.
	next.Timeline.Assets = s.visible.Timeline.Assets
	if next.Project.WebsiteType == nil {
		next.Project.WebsiteType = []string{}
	}
	if next.Project.Features == nil {
		next.Project.Features = []string{}
	}
	s.visible = next
	return nil
}

// commitCurrent переносит видимые значения текущего шага в принятые.
func (s *FormSession) commitCurrent() {
	v := s.visible.Clone()
	switch s.step {
	case StepClient:
		s.committed.Client = v.Client
	case StepProject:
		s.committed.Project = v.Project
	case StepDesign:
		s.committed.Design = v.Design
	case StepTimeline:
		s.committed.Timeline = v.Timeline
	case StepReview:
		s.committed.Additional = v.Additional
	}
}

// FormService ведёт сессии формы: шаги, валидацию, автосохранение и отправку.
type FormService struct {
	mu       sync.RWMutex
	sessions map[string]*FormSession

	drafts    DraftStore
	store     SubmissionStore
	deliverer Deliverer
	assets    AssetStore
	notifier  *ChangeNotifier

	cfg     FormConfig
	baseCtx context.Context
	now     func() time.Time
}

// NewFormService создаёт сервис формы.
// Горутины автосохранения живут не дольше ctx.
func NewFormService(
	ctx context.Context,
	drafts DraftStore,
	store SubmissionStore,
	deliverer Deliverer,
	assets AssetStore,
	notifier *ChangeNotifier,
	cfg FormConfig,
) *FormService {
	if cfg.AutosavePeriod <= 0 {
		cfg.AutosavePeriod = 30 * time.Second
	}
	if cfg.MaxAssets <= 0 {
		cfg.MaxAssets = 5
	}
	return &FormService{
		sessions:  make(map[string]*FormSession),
		drafts:    drafts,
		store:     store,
		deliverer: deliverer,
		assets:    assets,
		notifier:  notifier,
		cfg:       cfg,
		baseCtx:   ctx,
		now:       time.Now,
	}
}

func (f *FormService) log(sess *FormSession) *logrus.Entry {
	return logger.Log.WithFields(logrus.Fields{
		"component": "form",
		"session":   sess.id,
		"draft":     sess.draftID,
	})
}

func (f *FormService) session(id string) (*FormSession, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	sess, ok := f.sessions[id]
	if !ok {
		return nil, apperror.ErrSessionNotFound
	}
	return sess, nil
}

// Open открывает сессию формы и запускает автосохранение.
// Если для draftID есть черновик, сессия ждёт решения Resume.
func (f *FormService) Open(ctx context.Context, draftID string) (*SessionView, error) {
	draftAvailable := false
	if draftID == "" {
		draftID = uuid.NewString()
	} else {
		draft, err := f.drafts.Load(ctx, draftID)
		if err != nil {
			return nil, fmt.Errorf("form service: %w", err)
		}
		draftAvailable = draft != nil
	}

	sessCtx, cancel := context.WithCancel(f.baseCtx)
	sess := &FormSession{
		id:             uuid.NewString(),
		draftID:        draftID,
		step:           StepClient,
		state:          FormEditing,
		visible:        models.NewFormData(),
		committed:      models.NewFormData(),
		draftAvailable: draftAvailable,
		lastActive:     f.now(),
		cancel:         cancel,
	}
	sess.done = goroutine.GoWithContext(sessCtx, "autosave", func(ctx context.Context) {
		f.runAutosave(ctx, sess)
	})

	f.mu.Lock()
	f.sessions[sess.id] = sess
	f.mu.Unlock()

	f.log(sess).WithField("draft_available", draftAvailable).Info("сессия формы открыта")

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

// Get возвращает текущее состояние сессии.
func (f *FormService) Get(ctx context.Context, id string) (*SessionView, error) {
	sess, err := f.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

// Edit обновляет видимые значения текущего шага без проверки и без фиксации.
func (f *FormService) Edit(ctx context.Context, id string, fields StepFields) (*SessionView, error) {
	sess, err := f.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.editable(); err != nil {
		return nil, err
	}
	if err := sess.apply(fields); err != nil {
		return nil, err
	}
	sess.lastActive = f.now()
	return sess.view(), nil
}

// Advance проверяет текущий шаг, фиксирует его значения и переходит к следующему.
// При ошибках валидации шаг не меняется, сессия остаётся рабочей.
func (f *FormService) Advance(ctx context.Context, id string, fields StepFields) (*SessionView, error) {
	sess, err := f.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.editable(); err != nil {
		return nil, err
	}
	if sess.step == StepReview {
		return nil, apperror.ErrLastStep
	}
	if err := sess.apply(fields); err != nil {
		return nil, err
	}
	sess.lastActive = f.now()

	if errs := validation.ValidateStep(int(sess.step), sess.visible); !errs.Empty() {
		return nil, apperror.Validation("проверьте заполнение полей", errs)
	}

	sess.commitCurrent()
	sess.step++
	return sess.view(), nil
}

// Retreat возвращает на предыдущий шаг без фиксации значений.
func (f *FormService) Retreat(ctx context.Context, id string) (*SessionView, error) {
	sess, err := f.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.editable(); err != nil {
		return nil, err
	}
	if sess.step > StepClient {
		sess.step--
	}
	sess.lastActive = f.now()
	return sess.view(), nil
}

// Resume восстанавливает черновик (accept=true) или удаляет его.
func (f *FormService) Resume(ctx context.Context, id string, accept bool) (*SessionView, error) {
	sess, err := f.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.lastActive = f.now()
	if !sess.draftAvailable {
		return sess.view(), nil
	}

	if !accept {
		if err := f.drafts.Delete(ctx, sess.draftID); err != nil {
			return nil, fmt.Errorf("form service: %w", err)
		}
		sess.draftAvailable = false
		f.log(sess).Info("черновик отклонён и удалён")
		return sess.view(), nil
	}

	draft, err := f.drafts.Load(ctx, sess.draftID)
	if err != nil {
		return nil, fmt.Errorf("form service: %w", err)
	}
	if draft != nil {
		data := draft.Data.Clone()
		data.Timeline.Assets = []string{}
		sess.visible = data
		sess.committed = data.Clone()
		sess.step = clampStep(draft.Step)
	}
	sess.draftAvailable = false
	f.log(sess).WithField("step", sess.step).Info("черновик восстановлен")
	return sess.view(), nil
}

// AddAsset сохраняет файл клиента на шаге сроков и бюджета.
func (f *FormService) AddAsset(ctx context.Context, id, name string, r io.Reader) (*SessionView, error) {
	sess, err := f.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.editable(); err != nil {
		return nil, err
	}
	if sess.step != StepTimeline {
		return nil, apperror.New(apperror.ErrCodeBadRequest, "файлы загружаются на шаге сроков и бюджета")
	}
	if len(sess.assets) >= f.cfg.MaxAssets {
		return nil, apperror.ErrTooManyAssets
	}

	asset, err := f.assets.Save(ctx, sess.id, name, r)
	if err != nil {
		return nil, err
	}
	sess.assets = append(sess.assets, *asset)
	sess.visible.Timeline.Assets = append(sess.visible.Timeline.Assets, asset.Name)
	sess.lastActive = f.now()
	return sess.view(), nil
}

// Review возвращает обзор принятых значений с подписями.
func (f *FormService) Review(ctx context.Context, id string) (*Review, error) {
	sess, err := f.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	data := sess.committed.Clone()
	data.Additional = sess.visible.Additional
	data.Timeline.Assets = sess.visible.Timeline.Assets
	review := BuildReview(data)
	return &review, nil
}

// Submit проверяет форму, отправляет заявку во внешний сервис и при успехе
// добавляет её в начало хранилища и удаляет черновик.
// При ошибке доставки форма остаётся заполненной для повторной попытки.
func (f *FormService) Submit(ctx context.Context, id string, in SubmitInput) (*models.Submission, error) {
	sess, err := f.session(id)
	if err != nil {
		return nil, err
	}
	payload, err := f.beginSubmit(sess, in)
	if err != nil {
		return nil, err
	}

	// Сессия не заблокирована на время доставки; правки отклоняет FormSubmitting.
	if err := f.deliverer.Deliver(ctx, payload); err != nil {
		sess.setState(FormEditing)
		f.log(sess).WithError(err).Warn("заявка не доставлена")
		return nil, apperror.Wrap(err, apperror.ErrCodeDelivery, "не удалось отправить заявку, попробуйте ещё раз")
	}

	stored := payload.Submission.Clone()
	stored.Timeline.Assets = []string{}
	if err := f.store.Prepend(ctx, stored); err != nil {
		sess.setState(FormEditing)
		return nil, fmt.Errorf("form service: заявка доставлена, но не сохранена: %w", err)
	}

	if err := f.drafts.Delete(ctx, sess.draftID); err != nil {
		f.log(sess).WithError(err).Warn("не удалось удалить черновик")
	}
	sess.setState(FormSubmitted)
	sess.cancel()

	f.notifier.StoreChanged(StoreChange{Reason: "submitted", ID: stored.ID})
	f.log(sess).WithField("submission_id", stored.ID).Info("заявка отправлена")

	return &stored, nil
}

// beginSubmit проверяет форму под блокировкой сессии, собирает заявку
// и переводит сессию в FormSubmitting.
func (f *FormService) beginSubmit(sess *FormSession, in SubmitInput) (intake.Payload, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.editable(); err != nil {
		return intake.Payload{}, err
	}
	if sess.step != StepReview {
		return intake.Payload{}, apperror.ErrNotReviewStep
	}
	sess.lastActive = f.now()

	if in.AdditionalNotes != nil {
		sess.visible.Additional.Notes = *in.AdditionalNotes
	}
	sess.commitCurrent()

	if errs := validation.ValidateSubmission(sess.committed, in.TermsAccepted); !errs.Empty() {
		return intake.Payload{}, apperror.Validation("проверьте заполнение формы", errs)
	}

	now := f.now()
	submission := models.Submission{
		ID:       models.NewSubmissionID(now),
		Date:     models.FormatDate(now),
		Status:   models.StatusNew,
		FormData: sess.committed.Clone(),
	}
	submission.Timeline.Assets = append([]string{}, sess.visible.Timeline.Assets...)

	sess.state = FormSubmitting
	return intake.Payload{
		Submission:      submission,
		TermsAccepted:   in.TermsAccepted,
		FormattedReview: BuildReview(submission.FormData).Text,
	}, nil
}

// Close завершает сессию: останавливает автосохранение, сохраняет черновик и удаляет файлы.
func (f *FormService) Close(ctx context.Context, id string) error {
	f.mu.Lock()
	sess, ok := f.sessions[id]
	delete(f.sessions, id)
	f.mu.Unlock()
	if !ok {
		return apperror.ErrSessionNotFound
	}
	return f.teardown(ctx, sess)
}

func (f *FormService) teardown(ctx context.Context, sess *FormSession) error {
	sess.cancel()
	<-sess.done

	if err := f.saveDraft(ctx, sess); err != nil {
		f.log(sess).WithError(err).Warn("не удалось сохранить черновик при закрытии")
	}
	if err := f.assets.DeleteSession(ctx, sess.id); err != nil {
		return fmt.Errorf("form service: %w", err)
	}
	f.log(sess).Info("сессия формы закрыта")
	return nil
}

// Shutdown закрывает все сессии, сохраняя черновики.
func (f *FormService) Shutdown(ctx context.Context) {
	f.mu.Lock()
	sessions := make([]*FormSession, 0, len(f.sessions))
	for id, sess := range f.sessions {
		sessions = append(sessions, sess)
		delete(f.sessions, id)
	}
	f.mu.Unlock()

	for _, sess := range sessions {
		if err := f.teardown(ctx, sess); err != nil {
			f.log(sess).WithError(err).Warn("ошибка при остановке сессии")
		}
	}
}

// ActiveSessions число открытых сессий.
func (f *FormService) ActiveSessions() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sessions)
}
