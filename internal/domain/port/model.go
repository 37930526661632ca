package port

import (
	"context"
	"image"

	"textile-vision/internal/domain/entity"
)

// Model загруженная при старте модель классификации
type Model interface {
	// InputShape форма входного тензора; измерения <= 0 динамические
	InputShape() []int64

	// OutputSize длина вектора оценок
	OutputSize() int

	// Forward выполняет один прямой проход. Должен быть безопасен
	// для одновременных вызовов из нескольких горутин.
	Forward(ctx context.Context, input *entity.Tensor) ([]float32, error)
}

// Preprocessor приводит изображение к входу модели
type Preprocessor interface {
	Prepare(img image.Image) (*entity.Tensor, error)
}

// ImageDecoder декодирует загруженные файлы
type ImageDecoder interface {
	Decode(data []byte) (image.Image, error)
	DecodeFile(path string) (image.Image, error)
}
