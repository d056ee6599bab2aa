package service

import (
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/client-intake/internal/logger"
	"github.com/ignatzorin/client-intake/internal/ws"
)

// EventPublisher рассылает события подключённым операторам.
type EventPublisher interface {
	Publish(event string, data any)
}

// StoreChange описание изменения хранилища заявок.
type StoreChange struct {
	Reason string `json:"reason"`
	ID     string `json:"id,omitempty"`
	Count  int    `json:"count,omitempty"`
}

// ChangeNotifier сбрасывает производные кэши и оповещает дашборд после записи в хранилище.
type ChangeNotifier struct {
	cache     *CacheService
	publisher EventPublisher
}

// NewChangeNotifier создаёт нотификатор; любая зависимость может быть nil.
func NewChangeNotifier(cache *CacheService, publisher EventPublisher) *ChangeNotifier {
	return &ChangeNotifier{cache: cache, publisher: publisher}
}

// StoreChanged вызывается после каждой успешной записи в хранилище.
func (n *ChangeNotifier) StoreChanged(change StoreChange) {
	if n == nil {
		return
	}
	if n.cache != nil {
		n.cache.InvalidateStoreCache()
	}
	if n.publisher != nil {
		n.publisher.Publish(ws.EventStoreChanged, change)
	}
	logger.Log.WithFields(logrus.Fields{
		"component": "store",
		"reason":    change.Reason,
		"id":        change.ID,
	}).Debug("хранилище заявок изменено")
}
