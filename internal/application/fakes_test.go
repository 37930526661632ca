package app

import (
	"context"
	"image"
	"image/color"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"textile-vision/internal/domain/entity"
	"textile-vision/internal/domain/port"
	"textile-vision/internal/infrastructure/vision"
)

// brightnessModel детерминированная модель: тёмная ткань даёт "Hole",
// светлая "Good". Оценки суммируются в 1.
type brightnessModel struct {
	shape []int64
	out   int
	calls atomic.Int64
}

func newBrightnessModel() *brightnessModel {
	return &brightnessModel{shape: []int64{1, 64, 64, 3}, out: len(entity.Labels)}
}

func (m *brightnessModel) InputShape() []int64 { return m.shape }
func (m *brightnessModel) OutputSize() int     { return len(entity.Labels) }

func (m *brightnessModel) Forward(ctx context.Context, input *entity.Tensor) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.calls.Add(1)

	var sum float64
	for _, v := range input.Data {
		sum += float64(v)
	}
	// caffe-нормализация: у чёрного пикселя среднее около -115
	mean := sum / float64(len(input.Data))

	scores := make([]float32, m.out)
	for i := range scores {
		scores[i] = 0.05
	}
	if mean < -60 {
		scores[1] = 1 - 0.05*float32(m.out-1)
	} else {
		scores[0] = 1 - 0.05*float32(m.out-1)
	}
	return scores, nil
}

func newTestClassifier(t *testing.T, model port.Model) *Classifier {
	t.Helper()
	pre, err := vision.NewPreprocessor(vision.DefaultPreprocessConfig())
	require.NoError(t, err)
	c, err := NewClassifier(model, pre, vision.NewDecoder(), entity.Labels, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	return c
}

func fabric(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

var (
	darkFabric  = color.RGBA{R: 5, G: 5, B: 5, A: 255}
	lightFabric = color.RGBA{R: 230, G: 225, B: 220, A: 255}
)

// frameStep один шаг источника: кадр или ошибка
type frameStep struct {
	img image.Image
	err error
}

// sliceSource отдаёт заранее заданные кадры, затем io.EOF
type sliceSource struct {
	steps  []frameStep
	pos    int
	closed bool
}

func (s *sliceSource) Next(ctx context.Context) (image.Image, error) {
	if s.pos >= len(s.steps) {
		return nil, io.EOF
	}
	st := s.steps[s.pos]
	s.pos++
	return st.img, st.err
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

// endlessSource отдаёт один и тот же кадр, пока не отменят ctx
type endlessSource struct {
	img    image.Image
	mu     sync.Mutex
	closed bool
}

func (s *endlessSource) Next(ctx context.Context) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Millisecond):
		return s.img, nil
	}
}

func (s *endlessSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *endlessSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeFactory struct {
	camera    port.FrameSource
	video     port.FrameSource
	openErr   error
	openCalls atomic.Int64
}

func (f *fakeFactory) OpenCamera(device int) (port.FrameSource, error) {
	f.openCalls.Add(1)
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.camera, nil
}

func (f *fakeFactory) OpenVideo(path string) (port.FrameSource, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.video, nil
}
