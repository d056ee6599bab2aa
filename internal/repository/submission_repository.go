package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/ignatzorin/client-intake/internal/models"
)

// SubmissionRepository хранит список заявок одним JSON массивом под ключом clientSubmissions.
// Последовательности load-mutate-save внутри процесса сериализуются мьютексом;
// между процессами действует правило "последняя запись побеждает".
type SubmissionRepository struct {
	kv *KVRepository
	mu sync.Mutex
}

// NewSubmissionRepository создаёт репозиторий заявок.
func NewSubmissionRepository(kv *KVRepository) *SubmissionRepository {
	return &SubmissionRepository{kv: kv}
}

// Load возвращает сохранённый список или пустой список.
func (r *SubmissionRepository) Load(ctx context.Context) ([]models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

// Save перезаписывает список целиком.
func (r *SubmissionRepository) Save(ctx context.Context, list []models.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(ctx, list)
}

// Append добавляет заявку в конец списка.
func (r *SubmissionRepository) Append(ctx context.Context, s models.Submission) error {
	return r.Mutate(ctx, func(list []models.Submission) ([]models.Submission, bool) {
		return append(list, s), true
	})
}

// Prepend добавляет заявку в начало списка (новые сверху).
func (r *SubmissionRepository) Prepend(ctx context.Context, s models.Submission) error {
	return r.Mutate(ctx, func(list []models.Submission) ([]models.Submission, bool) {
		return append([]models.Submission{s}, list...), true
	})
}

// Update применяет patch к заявке с указанным id.
// Неизвестный id не ошибка: возвращается false, хранилище не меняется.
func (r *SubmissionRepository) Update(ctx context.Context, id string, patch func(*models.Submission)) (bool, error) {
	found := false
	err := r.Mutate(ctx, func(list []models.Submission) ([]models.Submission, bool) {
		for i := range list {
			if list[i].ID == id {
				patch(&list[i])
				found = true
				return list, true
			}
		}
		return list, false
	})
	return found, err
}

// Remove удаляет заявку с указанным id; false если её нет.
func (r *SubmissionRepository) Remove(ctx context.Context, id string) (bool, error) {
	found := false
	err := r.Mutate(ctx, func(list []models.Submission) ([]models.Submission, bool) {
		for i := range list {
			if list[i].ID == id {
				found = true
				return append(list[:i], list[i+1:]...), true
			}
		}
		return list, false
	})
	return found, err
}

// Mutate загружает список, применяет fn и сохраняет результат, если fn сообщил об изменении.
func (r *SubmissionRepository) Mutate(ctx context.Context, fn func([]models.Submission) ([]models.Submission, bool)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.load(ctx)
	if err != nil {
		return err
	}
	next, changed := fn(list)
	if !changed {
		return nil
	}
	return r.save(ctx, next)
}

func (r *SubmissionRepository) load(ctx context.Context) ([]models.Submission, error) {
	var list []models.Submission
	if _, err := r.kv.GetJSON(ctx, models.KeySubmissions, &list); err != nil {
		return nil, fmt.Errorf("submission repository: %w", err)
	}
	if list == nil {
		list = []models.Submission{}
	}
	return list, nil
}

func (r *SubmissionRepository) save(ctx context.Context, list []models.Submission) error {
	if list == nil {
		list = []models.Submission{}
	}
	for i := range list {
		// Файлы живут только в сессии формы.
		list[i].Timeline.Assets = []string{}
	}
	if err := r.kv.SetJSON(ctx, models.KeySubmissions, list); err != nil {
		return fmt.Errorf("submission repository: %w", err)
	}
	return nil
}
