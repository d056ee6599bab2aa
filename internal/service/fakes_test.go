package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/ignatzorin/client-intake/internal/intake"
	"github.com/ignatzorin/client-intake/internal/models"
	"github.com/ignatzorin/client-intake/internal/storage"
)

// memoryStore реализует SubmissionStore для тестов.
type memoryStore struct {
	mu    sync.Mutex
	list  []models.Submission
	saves int
}

func newMemoryStore(list ...models.Submission) *memoryStore {
	return &memoryStore{list: append([]models.Submission{}, list...)}
}

func (m *memoryStore) snapshot() []models.Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Submission, len(m.list))
	for i := range m.list {
		out[i] = m.list[i].Clone()
	}
	return out
}

func (m *memoryStore) Load(ctx context.Context) ([]models.Submission, error) {
	return m.snapshot(), nil
}

func (m *memoryStore) Save(ctx context.Context, list []models.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = make([]models.Submission, len(list))
	for i := range list {
		m.list[i] = list[i].Clone()
	}
	m.saves++
	return nil
}

func (m *memoryStore) Prepend(ctx context.Context, s models.Submission) error {
	return m.Mutate(ctx, func(list []models.Submission) ([]models.Submission, bool) {
		return append([]models.Submission{s}, list...), true
	})
}

func (m *memoryStore) Update(ctx context.Context, id string, patch func(*models.Submission)) (bool, error) {
	found := false
	err := m.Mutate(ctx, func(list []models.Submission) ([]models.Submission, bool) {
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

func (m *memoryStore) Remove(ctx context.Context, id string) (bool, error) {
	found := false
	err := m.Mutate(ctx, func(list []models.Submission) ([]models.Submission, bool) {
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

func (m *memoryStore) Mutate(ctx context.Context, fn func([]models.Submission) ([]models.Submission, bool)) error {
	next, changed := fn(m.snapshot())
	if !changed {
		return nil
	}
	return m.Save(ctx, next)
}

// memoryDrafts реализует DraftStore для тестов.
type memoryDrafts struct {
	mu     sync.Mutex
	drafts map[string]models.Draft
	saves  int
}

func newMemoryDrafts() *memoryDrafts {
	return &memoryDrafts{drafts: make(map[string]models.Draft)}
}

func (m *memoryDrafts) Save(ctx context.Context, draftID string, draft models.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[draftID] = models.Draft{Data: draft.Data.Clone(), Step: draft.Step}
	m.saves++
	return nil
}

func (m *memoryDrafts) Load(ctx context.Context, draftID string) (*models.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[draftID]
	if !ok {
		return nil, nil
	}
	return &models.Draft{Data: d.Data.Clone(), Step: d.Step}, nil
}

func (m *memoryDrafts) Delete(ctx context.Context, draftID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, draftID)
	return nil
}

func (m *memoryDrafts) get(draftID string) (models.Draft, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[draftID]
	return d, ok
}

func (m *memoryDrafts) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// fakeDeliverer запоминает отправленные заявки и может вернуть ошибку.
type fakeDeliverer struct {
	mu        sync.Mutex
	fail      bool
	delivered []intake.Payload

	// started и release задерживают доставку, если release не nil.
	started chan struct{}
	release chan struct{}
}

func (d *fakeDeliverer) Deliver(ctx context.Context, payload intake.Payload) error {
	if d.release != nil {
		d.started <- struct{}{}
		<-d.release
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return errors.New("endpoint недоступен")
	}
	d.delivered = append(d.delivered, payload)
	return nil
}

// fakeAssets хранит файлы в памяти.
type fakeAssets struct {
	mu      sync.Mutex
	files   map[string][]string
	deleted []string
}

func newFakeAssets() *fakeAssets {
	return &fakeAssets{files: make(map[string][]string)}
}

func (a *fakeAssets) Save(ctx context.Context, sessionID, name string, r io.Reader) (*storage.Asset, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.files[sessionID] = append(a.files[sessionID], name)
	return &storage.Asset{Name: name, Path: sessionID + "/" + name, Size: n, MIME: "image/png"}, nil
}

func (a *fakeAssets) DeleteSession(ctx context.Context, sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.files, sessionID)
	a.deleted = append(a.deleted, sessionID)
	return nil
}

// recordingPublisher запоминает опубликованные события.
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(event string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}
