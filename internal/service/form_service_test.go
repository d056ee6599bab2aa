package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/ignatzorin/client-intake/internal/models"
	"github.com/ignatzorin/client-intake/internal/pkg/apperror"
)

type formFixture struct {
	svc       *FormService
	store     *memoryStore
	drafts    *memoryDrafts
	deliverer *fakeDeliverer
	assets    *fakeAssets
	publisher *recordingPublisher
	cancel    context.CancelFunc
}

func newFormFixture(t *testing.T, period time.Duration) *formFixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	fx := &formFixture{
		store:     newMemoryStore(),
		drafts:    newMemoryDrafts(),
		deliverer: &fakeDeliverer{},
		assets:    newFakeAssets(),
		publisher: &recordingPublisher{},
		cancel:    cancel,
	}
	fx.svc = NewFormService(ctx, fx.drafts, fx.store, fx.deliverer, fx.assets,
		NewChangeNotifier(nil, fx.publisher),
		FormConfig{AutosavePeriod: period, IdleTTL: time.Hour, MaxAssets: 2})
	return fx
}

func (fx *formFixture) close(t *testing.T) {
	t.Helper()
	fx.svc.Shutdown(context.Background())
	fx.cancel()
}

func raw(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func clientFields(t *testing.T) StepFields {
	return StepFields{Client: raw(t, map[string]string{
		"fullName":            "Sarah Johnson",
		"email":               "sarah@bakery.com",
		"phone":               "555-0101",
		"businessName":        "Sweet Treats Bakery",
		"businessType":        "restaurant",
		"businessDescription": "Local bakery specializing in custom cakes",
	})}
}

func projectFields(t *testing.T) StepFields {
	return StepFields{Project: raw(t, map[string]interface{}{
		"websiteType":      []string{"informational", "ecommerce"},
		"pages":            7,
		"features":         []string{"responsive", "contact-form"},
		"specificFeatures": "Online ordering",
	})}
}

func designFields(t *testing.T) StepFields {
	return StepFields{Design: raw(t, map[string]string{
		"colorPreference": "#f4a261",
		"designStyle":     "modern",
	})}
}

func timelineFields(t *testing.T) StepFields {
	return StepFields{Timeline: raw(t, map[string]string{
		"timeline":          "1-month",
		"budget":            "500-800",
		"paymentPreference": "50-50",
		"contentMaterials":  "partial",
	})}
}

func advanceAll(t *testing.T, fx *formFixture, id string) {
	t.Helper()
	ctx := context.Background()
	for i, fields := range []StepFields{clientFields(t), projectFields(t), designFields(t), timelineFields(t)} {
		if _, err := fx.svc.Advance(ctx, id, fields); err != nil {
			t.Fatalf("шаг %d: Advance вернул ошибку: %v", i+1, err)
		}
	}
}

func TestFormService_CompleteSubmission(t *testing.T) {
	defer goleak.VerifyNone(t)
	fx := newFormFixture(t, time.Hour)
	defer fx.close(t)
	ctx := context.Background()

	view, err := fx.svc.Open(ctx, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if view.Step != StepClient || view.DraftAvailable {
		t.Fatalf("неожиданное начальное состояние: %+v", view)
	}

	advanceAll(t, fx, view.ID)

	notes := "Please call after 5pm"
	sub, err := fx.svc.Submit(ctx, view.ID, SubmitInput{TermsAccepted: true, AdditionalNotes: &notes})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if sub.Status != models.StatusNew || sub.ID == "" {
		t.Fatalf("неожиданная заявка: %+v", sub)
	}
	if _, ok := sub.CreatedAt(); !ok {
		t.Fatalf("дата не в ISO-8601: %s", sub.Date)
	}
	if sub.Client.FullName != "Sarah Johnson" || sub.Project.Pages != 7 || sub.Design.DesignStyle != "modern" {
		t.Fatalf("поля заявки не совпадают с введёнными: %+v", sub)
	}
	if sub.Timeline.Budget != "500-800" || sub.Additional.Notes != notes {
		t.Fatalf("поля бюджета или комментария не совпадают: %+v", sub)
	}

	stored := fx.store.snapshot()
	if len(stored) != 1 || stored[0].ID != sub.ID {
		t.Fatalf("заявка не сохранена: %+v", stored)
	}
	if len(fx.deliverer.delivered) != 1 {
		t.Fatalf("ожидалась одна доставка, получено %d", len(fx.deliverer.delivered))
	}
	if !strings.Contains(fx.deliverer.delivered[0].FormattedReview, "Budget: $500 - $800") {
		t.Fatalf("обзор без подписи бюджета: %s", fx.deliverer.delivered[0].FormattedReview)
	}
	if _, ok := fx.drafts.get(view.DraftID); ok {
		t.Fatal("черновик не удалён после отправки")
	}
	if fx.publisher.count() != 1 {
		t.Fatalf("ожидалось одно событие store_changed, получено %d", fx.publisher.count())
	}

	if _, err := fx.svc.Submit(ctx, view.ID, SubmitInput{TermsAccepted: true}); err != apperror.ErrAlreadySubmitted {
		t.Fatalf("повторная отправка должна быть отклонена, получено %v", err)
	}
}

func TestFormService_InvalidStepBlocksAdvance(t *testing.T) {
	defer goleak.VerifyNone(t)
	fx := newFormFixture(t, time.Hour)
	defer fx.close(t)
	ctx := context.Background()

	view, _ := fx.svc.Open(ctx, "")
	bad := StepFields{Client: raw(t, map[string]string{
		"fullName":     "Sarah Johnson",
		"email":        "not-an-email",
		"businessName": "   ",
	})}

	_, err := fx.svc.Advance(ctx, view.ID, bad)
	appErr, ok := apperror.As(err)
	if !ok || appErr.Code != apperror.ErrCodeValidation {
		t.Fatalf("ожидалась ошибка валидации, получено %v", err)
	}
	for _, field := range []string{"email", "businessName", "businessType", "businessDescription"} {
		if _, ok := appErr.Fields[field]; !ok {
			t.Fatalf("нет ошибки для поля %s: %v", field, appErr.Fields)
		}
	}

	got, _ := fx.svc.Get(ctx, view.ID)
	if got.Step != StepClient {
		t.Fatalf("шаг изменился после ошибки: %v", got.Step)
	}
	if got.Data.Client.FullName != "Sarah Johnson" {
		t.Fatal("видимые значения потеряны после ошибки валидации")
	}
	if len(fx.store.snapshot()) != 0 {
		t.Fatal("хранилище изменилось")
	}
}

func TestFormService_RetreatDoesNotCommit(t *testing.T) {
	defer goleak.VerifyNone(t)
	fx := newFormFixture(t, time.Hour)
	defer fx.close(t)
	ctx := context.Background()

	view, _ := fx.svc.Open(ctx, "")
	if _, err := fx.svc.Advance(ctx, view.ID, clientFields(t)); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if _, err := fx.svc.Edit(ctx, view.ID, StepFields{Project: raw(t, map[string]string{"specificFeatures": "draft text"})}); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	back, err := fx.svc.Retreat(ctx, view.ID)
	if err != nil {
		t.Fatalf("Retreat: %v", err)
	}
	if back.Step != StepClient {
		t.Fatalf("ожидался шаг 1, получено %v", back.Step)
	}
	if back.Data.Project.SpecificFeatures != "draft text" {
		t.Fatal("видимые значения шага 2 должны сохраниться")
	}

	back, _ = fx.svc.Retreat(ctx, view.ID)
	if back.Step != StepClient {
		t.Fatal("шаг не может быть меньше первого")
	}

	fx.svc.mu.RLock()
	sess := fx.svc.sessions[view.ID]
	fx.svc.mu.RUnlock()
	sess.mu.Lock()
	committed := sess.committed.Project.SpecificFeatures
	sess.mu.Unlock()
	if committed != "" {
		t.Fatalf("возврат не должен фиксировать шаг 2, зафиксировано %q", committed)
	}
}

func TestFormService_SubmitRequiresTerms(t *testing.T) {
	defer goleak.VerifyNone(t)
	fx := newFormFixture(t, time.Hour)
	defer fx.close(t)
	ctx := context.Background()

	view, _ := fx.svc.Open(ctx, "")
	advanceAll(t, fx, view.ID)

	_, err := fx.svc.Submit(ctx, view.ID, SubmitInput{TermsAccepted: false})
	if !apperror.IsValidation(err) {
		t.Fatalf("ожидалась ошибка валидации, получено %v", err)
	}
	if len(fx.store.snapshot()) != 0 || len(fx.deliverer.delivered) != 0 {
		t.Fatal("заявка не должна отправляться без согласия")
	}
}

func TestFormService_DeliveryFailureKeepsForm(t *testing.T) {
	defer goleak.VerifyNone(t)
	fx := newFormFixture(t, time.Hour)
	defer fx.close(t)
	ctx := context.Background()

	view, _ := fx.svc.Open(ctx, "")
	advanceAll(t, fx, view.ID)

	fx.deliverer.fail = true
	_, err := fx.svc.Submit(ctx, view.ID, SubmitInput{TermsAccepted: true})
	if !apperror.IsDelivery(err) {
		t.Fatalf("ожидалась ошибка доставки, получено %v", err)
	}
	if len(fx.store.snapshot()) != 0 {
		t.Fatal("хранилище не должно меняться при ошибке доставки")
	}

	got, _ := fx.svc.Get(ctx, view.ID)
	if got.State != FormEditing || got.Data.Client.Email != "sarah@bakery.com" {
		t.Fatalf("форма должна остаться заполненной: %+v", got)
	}

	fx.deliverer.fail = false
	if _, err := fx.svc.Submit(ctx, view.ID, SubmitInput{TermsAccepted: true}); err != nil {
		t.Fatalf("повторная отправка: %v", err)
	}
	if len(fx.store.snapshot()) != 1 {
		t.Fatal("заявка должна сохраниться после повторной отправки")
	}
}

func TestFormService_SubmitPrependsMostRecentFirst(t *testing.T) {
	defer goleak.VerifyNone(t)
	fx := newFormFixture(t, time.Hour)
	defer fx.close(t)
	ctx := context.Background()

	existing := models.Submission{ID: "1", Date: "2024-01-15T10:30:00.000Z", Status: models.StatusNew, FormData: models.NewFormData()}
	fx.store = newMemoryStore(existing)
	fx.svc.store = fx.store

	view, _ := fx.svc.Open(ctx, "")
	advanceAll(t, fx, view.ID)
	sub, err := fx.svc.Submit(ctx, view.ID, SubmitInput{TermsAccepted: true})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	list := fx.store.snapshot()
	if len(list) != 2 || list[0].ID != sub.ID || list[1].ID != "1" {
		t.Fatalf("новая заявка должна быть первой: %v", ids(list))
	}
}

func TestFormService_ResumeDraft(t *testing.T) {
	defer goleak.VerifyNone(t)
	fx := newFormFixture(t, time.Hour)
	defer fx.close(t)
	ctx := context.Background()

	data := models.NewFormData()
	data.Client.FullName = "Emma Rodriguez"
	_ = fx.drafts.Save(ctx, "visitor-1", models.Draft{Data: data, Step: 3})

	view, err := fx.svc.Open(ctx, "visitor-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !view.DraftAvailable {
		t.Fatal("ожидалось предложение восстановить черновик")
	}
	if _, err := fx.svc.Advance(ctx, view.ID, clientFields(t)); err != apperror.ErrDraftPending {
		t.Fatalf("до решения по черновику форма заблокирована, получено %v", err)
	}

	resumed, err := fx.svc.Resume(ctx, view.ID, true)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed.Step != StepDesign || resumed.Data.Client.FullName != "Emma Rodriguez" {
		t.Fatalf("черновик не восстановлен: %+v", resumed)
	}
}

func TestFormService_DeclineDraftDeletesIt(t *testing.T) {
	defer goleak.VerifyNone(t)
	fx := newFormFixture(t, time.Hour)
	defer fx.close(t)
	ctx := context.Background()

	_ = fx.drafts.Save(ctx, "visitor-2", models.Draft{Data: models.NewFormData(), Step: 2})

	view, _ := fx.svc.Open(ctx, "visitor-2")
	declined, err := fx.svc.Resume(ctx, view.ID, false)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if declined.Step != StepClient || declined.DraftAvailable {
		t.Fatalf("неожиданное состояние после отказа: %+v", declined)
	}
	if _, ok := fx.drafts.get("visitor-2"); ok {
		t.Fatal("черновик должен быть удалён")
	}
}

func TestFormService_AutosaveCommitsCurrentStep(t *testing.T) {
	defer goleak.VerifyNone(t)
	fx := newFormFixture(t, 10*time.Millisecond)
	ctx := context.Background()

	view, _ := fx.svc.Open(ctx, "visitor-3")
	if _, err := fx.svc.Edit(ctx, view.ID, StepFields{Client: raw(t, map[string]string{"fullName": "Michael"})}); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if d, ok := fx.drafts.get("visitor-3"); ok && d.Data.Client.FullName == "Michael" {
			if d.Step != int(StepClient) {
				t.Fatalf("ожидался шаг 1 в черновике, получено %d", d.Step)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("автосохранение не сработало")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := fx.svc.Close(ctx, view.ID); err != nil {
		t.Fatalf("Close: %v", err)
	}
	saves := fx.drafts.saveCount()
	time.Sleep(30 * time.Millisecond)
	if fx.drafts.saveCount() != saves {
		t.Fatal("автосохранение продолжается после закрытия сессии")
	}
	fx.cancel()
}

func TestFormService_AutosaveSkipsPendingDraft(t *testing.T) {
	defer goleak.VerifyNone(t)
	fx := newFormFixture(t, time.Hour)
	defer fx.close(t)
	ctx := context.Background()

	data := models.NewFormData()
	data.Client.FullName = "David Wilson"
	_ = fx.drafts.Save(ctx, "visitor-4", models.Draft{Data: data, Step: 4})

	view, _ := fx.svc.Open(ctx, "visitor-4")
	if _, err := fx.svc.SaveDraft(ctx, view.ID); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	d, _ := fx.drafts.get("visitor-4")
	if d.Data.Client.FullName != "David Wilson" || d.Step != 4 {
		t.Fatal("нерешённый черновик не должен перезаписываться")
	}
}

func TestFormService_AssetsLimitAndNotPersisted(t *testing.T) {
	defer goleak.VerifyNone(t)
	fx := newFormFixture(t, time.Hour)
	defer fx.close(t)
	ctx := context.Background()

	view, _ := fx.svc.Open(ctx, "")
	if _, err := fx.svc.AddAsset(ctx, view.ID, "logo.png", strings.NewReader("x")); err == nil {
		t.Fatal("загрузка до шага сроков должна быть отклонена")
	}
	for _, fields := range []StepFields{clientFields(t), projectFields(t), designFields(t)} {
		if _, err := fx.svc.Advance(ctx, view.ID, fields); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}

	for _, name := range []string{"logo.png", "menu.png"} {
		if _, err := fx.svc.AddAsset(ctx, view.ID, name, strings.NewReader("data")); err != nil {
			t.Fatalf("AddAsset %s: %v", name, err)
		}
	}
	if _, err := fx.svc.AddAsset(ctx, view.ID, "extra.png", strings.NewReader("data")); err != apperror.ErrTooManyAssets {
		t.Fatalf("ожидалась ErrTooManyAssets, получено %v", err)
	}

	if _, err := fx.svc.Advance(ctx, view.ID, timelineFields(t)); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	review, err := fx.svc.Review(ctx, view.ID)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if !strings.Contains(review.Text, "Files Uploaded: 2 file(s)") {
		t.Fatalf("обзор без числа файлов: %s", review.Text)
	}

	sub, err := fx.svc.Submit(ctx, view.ID, SubmitInput{TermsAccepted: true})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(sub.Timeline.Assets) != 0 || len(fx.store.snapshot()[0].Timeline.Assets) != 0 {
		t.Fatal("файлы не должны попадать в хранилище")
	}
	if len(fx.deliverer.delivered[0].Timeline.Assets) != 2 {
		t.Fatal("имена файлов должны уходить во внешний сервис")
	}
}

func TestFormService_SweepIdle(t *testing.T) {
	defer goleak.VerifyNone(t)
	fx := newFormFixture(t, time.Hour)
	defer fx.close(t)
	ctx := context.Background()

	view, _ := fx.svc.Open(ctx, "visitor-5")
	_, _ = fx.svc.Edit(ctx, view.ID, StepFields{Client: raw(t, map[string]string{"fullName": "Idle Visitor"})})

	fx.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if n := fx.svc.SweepIdle(ctx); n != 1 {
		t.Fatalf("ожидалась одна закрытая сессия, получено %d", n)
	}
	if fx.svc.ActiveSessions() != 0 {
		t.Fatal("сессия не удалена")
	}
	if d, ok := fx.drafts.get("visitor-5"); !ok || d.Data.Client.FullName != "Idle Visitor" {
		t.Fatal("черновик должен сохраниться при закрытии неактивной сессии")
	}
	if _, err := fx.svc.Get(ctx, view.ID); err != apperror.ErrSessionNotFound {
		t.Fatalf("ожидалась ErrSessionNotFound, получено %v", err)
	}
}

func TestFormService_SlowDeliveryDoesNotBlockOtherSessions(t *testing.T) {
	defer goleak.VerifyNone(t)
	fx := newFormFixture(t, time.Hour)
	defer fx.close(t)
	ctx := context.Background()

	fx.deliverer.started = make(chan struct{}, 1)
	fx.deliverer.release = make(chan struct{})

	slow, _ := fx.svc.Open(ctx, "")
	advanceAll(t, fx, slow.ID)
	other, _ := fx.svc.Open(ctx, "")

	submitted := make(chan error, 1)
	go func() {
		_, err := fx.svc.Submit(ctx, slow.ID, SubmitInput{TermsAccepted: true})
		submitted <- err
	}()
	<-fx.deliverer.started

	done := make(chan struct{})
	go func() {
		defer close(done)
		fx.svc.SweepIdle(ctx)
		if _, err := fx.svc.Get(ctx, other.ID); err != nil {
			t.Errorf("Get: %v", err)
		}
		if _, err := fx.svc.Get(ctx, slow.ID); err != nil {
			t.Errorf("Get во время доставки: %v", err)
		}
		if _, err := fx.svc.Edit(ctx, slow.ID, StepFields{}); err != apperror.ErrAlreadySubmitted {
			t.Errorf("правка во время доставки должна отклоняться, получено %v", err)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		close(fx.deliverer.release)
		t.Fatal("операции других сессий ждут завершения доставки")
	}

	close(fx.deliverer.release)
	if err := <-submitted; err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(fx.store.snapshot()) != 1 {
		t.Fatal("заявка должна попасть в хранилище после доставки")
	}
}

func ids(list []models.Submission) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, s.ID)
	}
	return out
}
