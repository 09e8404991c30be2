package journal

import (
	"context"
	"sync"

	"github.com/sir_venger/girder_uploader/internal/models"
)

// MemoryStore хранит журнал только в оперативной памяти; удобно для тестов.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.UploadSession
}

// NewMemoryStore создаёт пустой in-memory журнал.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]models.UploadSession{}}
}

// Get возвращает сессию по ключу или models.ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, key string) (models.UploadSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[key]
	if !ok {
		return models.UploadSession{}, models.ErrNotFound
	}
	return sess, nil
}

// Save записывает (или обновляет) сессию целиком.
func (s *MemoryStore) Save(_ context.Context, key string, sess models.UploadSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = sess
	return nil
}

// Delete убирает запись; отсутствие записи не ошибка.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}

// Len возвращает число записей.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close ничего не делает, нужен для единого интерфейса.
func (s *MemoryStore) Close() {}
