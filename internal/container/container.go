package container

import (
	"go.uber.org/zap"

	app "textile-vision/internal/application"
	"textile-vision/internal/domain/entity"
	"textile-vision/internal/domain/port"
)

type Container struct {
	Classifier    *app.Classifier
	StreamService *app.StreamService
	LiveService   *app.LiveService
	UserService   *app.UserService
	PhotoService  *app.PhotoService
}

// Deps адаптеры инфраструктуры, из которых собираются сервисы
type Deps struct {
	Model        port.Model
	Preprocessor port.Preprocessor
	Decoder      port.ImageDecoder
	Sources      port.FrameSourceFactory
	Annotator    port.FrameAnnotator
	Users        port.UserRepository
	Labels       []entity.Label
}

func New(deps Deps, log *zap.SugaredLogger) (*Container, error) {
	labels := deps.Labels
	if labels == nil {
		labels = entity.Labels
	}

	classifier, err := app.NewClassifier(deps.Model, deps.Preprocessor, deps.Decoder, labels, log)
	if err != nil {
		return nil, err
	}
	streamService := app.NewStreamService(classifier, deps.Sources, log)
	liveService := app.NewLiveService(streamService, deps.Sources, deps.Annotator, log)
	userService := app.NewUserService(deps.Users)
	photoService := app.NewPhotoService(userService, classifier)

	return &Container{
		Classifier:    classifier,
		StreamService: streamService,
		LiveService:   liveService,
		UserService:   userService,
		PhotoService:  photoService,
	}, nil
}
