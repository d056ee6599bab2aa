package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ignatzorin/client-intake/internal/models"
)

// DraftRepository хранит черновики формы под двумя ключами на посетителя:
// formDataDraft:<id> с данными и currentStep:<id> с номером шага.
type DraftRepository struct {
	kv *KVRepository
}

// NewDraftRepository создаёт репозиторий черновиков.
func NewDraftRepository(kv *KVRepository) *DraftRepository {
	return &DraftRepository{kv: kv}
}

func draftKeys(draftID string) (string, string) {
	return models.KeyDraftPrefix + draftID, models.KeyDraftStepPfx + draftID
}

// Save сохраняет данные черновика и шаг одной транзакцией.
func (r *DraftRepository) Save(ctx context.Context, draftID string, draft models.Draft) error {
	data := draft.Data.Clone()
	data.Timeline.Assets = []string{}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("draft repository: не удалось сериализовать черновик: %w", err)
	}

	dataKey, stepKey := draftKeys(draftID)
	if err := r.kv.SetMany(ctx, map[string]string{
		dataKey: string(raw),
		stepKey: strconv.Itoa(draft.Step),
	}); err != nil {
		return fmt.Errorf("draft repository: %w", err)
	}
	return nil
}

// Load возвращает черновик или nil, если его нет.
// Без сохранённого шага черновик открывается с первого шага.
func (r *DraftRepository) Load(ctx context.Context, draftID string) (*models.Draft, error) {
	dataKey, stepKey := draftKeys(draftID)

	data := models.NewFormData()
	ok, err := r.kv.GetJSON(ctx, dataKey, &data)
	if err != nil {
		return nil, fmt.Errorf("draft repository: %w", err)
	}
	if !ok {
		return nil, nil
	}

	step := 1
	rawStep, ok, err := r.kv.Get(ctx, stepKey)
	if err != nil {
		return nil, fmt.Errorf("draft repository: %w", err)
	}
	if ok {
		if n, convErr := strconv.Atoi(rawStep); convErr == nil {
			step = n
		}
	}

	return &models.Draft{Data: data.Clone(), Step: step}, nil
}

// Delete удаляет оба ключа черновика.
func (r *DraftRepository) Delete(ctx context.Context, draftID string) error {
	dataKey, stepKey := draftKeys(draftID)
	if err := r.kv.Delete(ctx, dataKey, stepKey); err != nil {
		return fmt.Errorf("draft repository: %w", err)
	}
	return nil
}
