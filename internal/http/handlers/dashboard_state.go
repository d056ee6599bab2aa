package handlers

import (
	"context"
	"sync"

	"github.com/ignatzorin/client-intake/internal/service"
)

// dashboardStates хранит состояние дашборда для каждой сессии оператора.
type dashboardStates struct {
	mu     sync.Mutex
	states map[string]service.DashboardState
}

func newDashboardStates() *dashboardStates {
	return &dashboardStates{states: make(map[string]service.DashboardState)}
}

// get возвращает состояние сессии, при первом обращении загружая его через load.
func (s *dashboardStates) get(ctx context.Context, sessionID string, load func(context.Context) (service.DashboardState, error)) (service.DashboardState, error) {
	s.mu.Lock()
	st, ok := s.states[sessionID]
	s.mu.Unlock()
	if ok {
		return st, nil
	}

	st, err := load(ctx)
	if err != nil {
		return service.DashboardState{}, err
	}
	s.put(sessionID, st)
	return st, nil
}

func (s *dashboardStates) put(sessionID string, st service.DashboardState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[sessionID] = st
}

func (s *dashboardStates) drop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, sessionID)
}

func (s *dashboardStates) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}
