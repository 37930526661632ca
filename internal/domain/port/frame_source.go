package port

import (
	"context"
	"image"
	"io"
)

// FrameSource последовательный источник кадров (камера, видеофайл)
type FrameSource interface {
	// Next возвращает следующий кадр; io.EOF когда кадры закончились
	Next(ctx context.Context) (image.Image, error)

	Close() error
}

// FrameSourceFactory открывает источники кадров
type FrameSourceFactory interface {
	OpenCamera(device int) (FrameSource, error)
	OpenVideo(path string) (FrameSource, error)
}

// FrameAnnotator рисует результат поверх кадра и кодирует его в JPEG
type FrameAnnotator interface {
	Annotate(frame image.Image, text string) ([]byte, error)
}

// UploadStore временное хранилище загруженных файлов
type UploadStore interface {
	Save(name string, r io.Reader) (string, error)
	Remove(path string) error
}
