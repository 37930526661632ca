package app

import (
	"context"
	"errors"

	"textile-vision/internal/domain/entity"
)

// PhotoService сценарий проверки фото в чате:
// фото -> классификация -> результат -> главное меню
type PhotoService struct {
	users      *UserService
	classifier *Classifier
}

func NewPhotoService(users *UserService, classifier *Classifier) *PhotoService {
	return &PhotoService{
		users:      users,
		classifier: classifier,
	}
}

// Classify классифицирует присланное фото. При любом исходе пользователь
// возвращается в главное меню.
func (s *PhotoService) Classify(ctx context.Context, userID, chatID int64, photo []byte) (*entity.Prediction, error) {
	if s.classifier == nil {
		return nil, errors.New("classifier is not configured")
	}

	if _, err := s.users.SetState(ctx, userID, chatID, entity.StateProcessing); err != nil {
		return nil, err
	}

	p, err := s.classifier.PredictBytes(ctx, photo)
	if err != nil {
		if _, cerr := s.users.Cancel(ctx, userID, chatID); cerr != nil {
			return nil, errors.Join(err, cerr)
		}
		return nil, err
	}

	if _, err := s.users.Finish(ctx, userID, chatID, p.Label); err != nil {
		return nil, err
	}
	return p, nil
}
