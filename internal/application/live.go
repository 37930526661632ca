package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"

	"textile-vision/internal/domain/entity"
	"textile-vision/internal/domain/port"
)

// LiveStatus снимок состояния живой классификации
type LiveStatus struct {
	Running   bool
	Device    int
	StartedAt time.Time
	Latest    *entity.FrameResult
	Summary   entity.StreamSummary
	LastError error
}

// LiveService классифицирует кадры камеры в фоне, пока его не остановят.
// Одновременно открыта только одна камера.
type LiveService struct {
	stream    *StreamService
	sources   port.FrameSourceFactory
	annotator port.FrameAnnotator
	log       *zap.SugaredLogger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	device    int
	startedAt time.Time
	latest    *entity.FrameResult
	frame     []byte
	summary   entity.StreamSummary
	lastErr   error
}

func NewLiveService(stream *StreamService, sources port.FrameSourceFactory, annotator port.FrameAnnotator, log *zap.SugaredLogger) *LiveService {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &LiveService{
		stream:    stream,
		sources:   sources,
		annotator: annotator,
		log:       log,
		summary:   entity.NewStreamSummary(),
	}
}

// Start открывает камеру и запускает цикл. Повторный Start без Stop ничего не делает.
func (s *LiveService) Start(device int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return nil
	}

	src, err := s.sources.OpenCamera(device)
	if err != nil {
		s.lastErr = err
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.device = device
	s.startedAt = time.Now()
	s.latest = nil
	s.frame = nil
	s.summary = entity.NewStreamSummary()
	s.lastErr = nil

	go s.loop(ctx, cancel, src, s.done)

	s.log.Infow("live classification started", "device", device)
	return nil
}

func (s *LiveService) loop(ctx context.Context, cancel context.CancelFunc, src port.FrameSource, done chan struct{}) {
	defer close(done)
	defer cancel()

	summary, err := s.stream.Run(ctx, src, 1, s.onFrame)
	// камеру закрываем до сброса cancel, чтобы новый Start мог её открыть
	if cerr := src.Close(); cerr != nil {
		s.log.Warnw("close camera", "error", cerr)
	}

	s.mu.Lock()
	s.summary = summary
	if err != nil && !errors.Is(err, context.Canceled) {
		s.lastErr = err
		s.log.Errorw("live classification stopped", "error", err)
	}
	s.cancel = nil
	s.mu.Unlock()
}

func (s *LiveService) onFrame(img image.Image, r entity.FrameResult) {
	var jpeg []byte
	if img != nil && s.annotator != nil {
		var err error
		if jpeg, err = s.annotator.Annotate(img, overlayText(r)); err != nil {
			s.log.Warnw("annotate frame", "frame", r.Frame, "error", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &r
	s.summary.Add(r)
	s.summary.Frames = r.Frame + 1
	if jpeg != nil {
		s.frame = jpeg
	}
}

// Stop останавливает цикл и ждёт завершения текущего кадра
func (s *LiveService) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Infow("live classification stopped")
}

// Running запущен ли цикл
func (s *LiveService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Status текущее состояние
func (s *LiveService) Status() LiveStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := LiveStatus{
		Running:   s.cancel != nil,
		Device:    s.device,
		StartedAt: s.startedAt,
		Summary:   copySummary(s.summary),
		LastError: s.lastErr,
	}
	if s.latest != nil {
		latest := *s.latest
		st.Latest = &latest
	}
	return st
}

// LatestFrame последний кадр с подписью в JPEG
func (s *LiveService) LatestFrame() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return nil, false
	}
	return s.frame, true
}

func overlayText(r entity.FrameResult) string {
	if r.Err != nil {
		return "error"
	}
	return fmt.Sprintf("%s (%.2f)", r.Prediction.Label, r.Prediction.Confidence)
}

func copySummary(s entity.StreamSummary) entity.StreamSummary {
	out := s
	out.Counts = make(map[entity.Label]int, len(s.Counts))
	for k, v := range s.Counts {
		out.Counts[k] = v
	}
	return out
}
