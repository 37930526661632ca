//go:build gocv
// +build gocv

package vision

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"

	"gocv.io/x/gocv"

	"textile-vision/internal/domain/entity"
	"textile-vision/internal/domain/port"
)

// CaptureFactory открывает камеру и видеофайлы через OpenCV
type CaptureFactory struct{}

func NewCaptureFactory() *CaptureFactory {
	return &CaptureFactory{}
}

// OpenCamera открывает веб-камеру по номеру устройства
func (f *CaptureFactory) OpenCamera(device int) (port.FrameSource, error) {
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("%w: open camera %d: %v", entity.ErrSourceUnavailable, device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: camera %d is not opened", entity.ErrSourceUnavailable, device)
	}
	return &captureSource{capture: capture, mat: gocv.NewMat(), live: true}, nil
}

// OpenVideo открывает видеофайл
func (f *CaptureFactory) OpenVideo(path string) (port.FrameSource, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open video: %v", entity.ErrSourceUnavailable, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: video %s cannot be opened", entity.ErrSourceUnavailable, path)
	}
	return &captureSource{capture: capture, mat: gocv.NewMat()}, nil
}

type captureSource struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
	live    bool
}

// Next читает кадр. Для файла конец потока: io.EOF,
// для камеры пустой кадр означает потерю устройства.
func (s *captureSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ok := s.capture.Read(&s.mat); !ok || s.mat.Empty() {
		if s.live {
			return nil, fmt.Errorf("%w: failed to capture video", entity.ErrSourceUnavailable)
		}
		return nil, io.EOF
	}
	// ToImage копирует данные, mat переиспользуется на следующем кадре
	img, err := s.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: frame to image: %v", entity.ErrDecode, err)
	}
	return img, nil
}

func (s *captureSource) Close() error {
	s.mat.Close()
	return s.capture.Close()
}

// Annotator пишет текст результата поверх кадра, как cv2.putText
type Annotator struct {
	Quality int
}

func NewAnnotator() *Annotator {
	return &Annotator{Quality: 80}
}

func (a *Annotator) Annotate(frame image.Image, text string) ([]byte, error) {
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return nil, fmt.Errorf("image to mat: %w", err)
	}
	defer mat.Close()

	green := color.RGBA{G: 255, A: 255}
	gocv.PutText(&mat, text, image.Pt(20, 50), gocv.FontHersheySimplex, 1, green, 2)

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, a.Quality})
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

var (
	_ port.FrameSourceFactory = (*CaptureFactory)(nil)
	_ port.FrameAnnotator     = (*Annotator)(nil)
)
