package port

import (
	"context"

	"textile-vision/internal/domain/entity"
)

// UserRepository хранит состояние диалога пользователей бота
type UserRepository interface {
	// Get возвращает пользователя, создаёт нового если не найден
	Get(ctx context.Context, userID, chatID int64) (*entity.User, error)

	Save(ctx context.Context, user *entity.User) error

	// RecordResult запоминает последний класс и возвращает пользователя в меню
	RecordResult(ctx context.Context, userID int64, label entity.Label) error
}
