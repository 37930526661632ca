package storage

import (
	"context"
	"sync"

	"textile-vision/internal/domain/entity"
	"textile-vision/internal/domain/port"
)

// MemoryUserRepository хранит пользователей бота в памяти процесса
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[int64]*entity.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[int64]*entity.User),
	}
}

// Get возвращает копию пользователя, при первом обращении создаёт его
func (r *MemoryUserRepository) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	r.mu.RLock()
	user, exists := r.users[userID]
	r.mu.RUnlock()
	if exists {
		u := *user
		return &u, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Пока ждали блокировку, пользователя мог создать другой апдейт.
	if user, exists = r.users[userID]; !exists {
		user = entity.NewUser(userID, chatID)
		r.users[userID] = user
	}
	u := *user
	return &u, nil
}

func (r *MemoryUserRepository) Save(ctx context.Context, user *entity.User) error {
	u := *user
	r.mu.Lock()
	r.users[user.ID] = &u
	r.mu.Unlock()
	return nil
}

func (r *MemoryUserRepository) RecordResult(ctx context.Context, userID int64, label entity.Label) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user, exists := r.users[userID]; exists {
		user.LastLabel = label
		user.SetState(entity.StateMainMenu)
	}
	return nil
}

var _ port.UserRepository = (*MemoryUserRepository)(nil)
