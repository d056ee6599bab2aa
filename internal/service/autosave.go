package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ignatzorin/client-intake/internal/logger"
	"github.com/ignatzorin/client-intake/internal/models"
)

// runAutosave периодически фиксирует текущий шаг и сохраняет черновик до отмены ctx.
func (f *FormService) runAutosave(ctx context.Context, sess *FormSession) {
	ticker := time.NewTicker(f.cfg.AutosavePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.saveDraft(ctx, sess); err != nil && ctx.Err() == nil {
				f.log(sess).WithError(err).Warn("автосохранение не удалось")
			}
		}
	}
}

// saveDraft без проверки фиксирует видимые значения текущего шага
// и сохраняет весь черновик с номером шага.
// Пока посетитель не ответил на предложение восстановить черновик, ничего не пишется.
func (f *FormService) saveDraft(ctx context.Context, sess *FormSession) error {
	sess.mu.Lock()
	if sess.state != FormEditing || sess.draftAvailable {
		sess.mu.Unlock()
		return nil
	}
	sess.commitCurrent()
	draft := models.Draft{Data: sess.committed.Clone(), Step: int(sess.step)}
	sess.mu.Unlock()

	if err := f.drafts.Save(ctx, sess.draftID, draft); err != nil {
		return fmt.Errorf("form service: %w", err)
	}

	saved := f.now()
	sess.mu.Lock()
	sess.lastSaved = &saved
	sess.mu.Unlock()
	return nil
}

// SaveDraft сохраняет черновик сессии немедленно.
func (f *FormService) SaveDraft(ctx context.Context, id string) (*SessionView, error) {
	sess, err := f.session(id)
	if err != nil {
		return nil, err
	}
	if err := f.saveDraft(ctx, sess); err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

// SweepIdle закрывает сессии без активности дольше IdleTTL; возвращает число закрытых.
func (f *FormService) SweepIdle(ctx context.Context) int {
	if f.cfg.IdleTTL <= 0 {
		return 0
	}
	deadline := f.now().Add(-f.cfg.IdleTTL)

	f.mu.RLock()
	candidates := make([]*FormSession, 0, len(f.sessions))
	for _, sess := range f.sessions {
		candidates = append(candidates, sess)
	}
	f.mu.RUnlock()

	var idle []*FormSession
	for _, sess := range candidates {
		sess.mu.Lock()
		expired := sess.state != FormSubmitting && sess.lastActive.Before(deadline)
		sess.mu.Unlock()
		if !expired {
			continue
		}
		f.mu.Lock()
		if f.sessions[sess.id] == sess {
			delete(f.sessions, sess.id)
			idle = append(idle, sess)
		}
		f.mu.Unlock()
	}

	for _, sess := range idle {
		if err := f.teardown(ctx, sess); err != nil {
			f.log(sess).WithError(err).Warn("ошибка при закрытии неактивной сессии")
		}
	}
	return len(idle)
}

// RunSweeper периодически закрывает неактивные сессии до отмены ctx.
func (f *FormService) RunSweeper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := f.SweepIdle(ctx); n > 0 {
				logger.Log.WithField("closed", n).Info("закрыты неактивные сессии формы")
			}
		}
	}
}
