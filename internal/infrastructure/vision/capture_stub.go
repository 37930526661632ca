//go:build !gocv
// +build !gocv

package vision

import (
	"fmt"
	"image"

	"textile-vision/internal/domain/entity"
	"textile-vision/internal/domain/port"
)

// CaptureFactory заглушка: без тега gocv камера и видео недоступны
type CaptureFactory struct{}

func NewCaptureFactory() *CaptureFactory {
	return &CaptureFactory{}
}

func (f *CaptureFactory) OpenCamera(device int) (port.FrameSource, error) {
	return nil, fmt.Errorf("%w: camera %d: gocv build tag is not enabled", entity.ErrSourceUnavailable, device)
}

func (f *CaptureFactory) OpenVideo(path string) (port.FrameSource, error) {
	_ = path
	return nil, fmt.Errorf("%w: video: gocv build tag is not enabled", entity.ErrSourceUnavailable)
}

// Annotator без OpenCV текст не рисуется, кадр только кодируется в JPEG
type Annotator struct {
	Quality int
}

func NewAnnotator() *Annotator {
	return &Annotator{Quality: 80}
}

func (a *Annotator) Annotate(frame image.Image, text string) ([]byte, error) {
	_ = text
	return EncodeJPEG(frame, a.Quality)
}

var (
	_ port.FrameSourceFactory = (*CaptureFactory)(nil)
	_ port.FrameAnnotator     = (*Annotator)(nil)
)
