package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"go.uber.org/zap"

	"textile-vision/internal/domain/entity"
	"textile-vision/internal/domain/port"
)

// FrameHandler получает кадр и результат его классификации.
// img равен nil, если кадр не удалось прочитать.
type FrameHandler func(img image.Image, r entity.FrameResult)

// VideoReport результаты по всем обработанным кадрам видео
type VideoReport struct {
	Frames  []entity.FrameResult
	Summary entity.StreamSummary
}

// StreamService прогоняет кадры через классификатор строго по одному
type StreamService struct {
	classifier *Classifier
	sources    port.FrameSourceFactory
	log        *zap.SugaredLogger
}

func NewStreamService(classifier *Classifier, sources port.FrameSourceFactory, log *zap.SugaredLogger) *StreamService {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &StreamService{classifier: classifier, sources: sources, log: log}
}

// Run читает кадры до io.EOF или отмены ctx. every > 1 классифицирует
// только каждый every-й кадр. Ошибка одного кадра записывается в его
// результат и не останавливает цикл; ошибка самого источника останавливает.
func (s *StreamService) Run(ctx context.Context, src port.FrameSource, every int, onFrame FrameHandler) (entity.StreamSummary, error) {
	if every < 1 {
		every = 1
	}
	summary := entity.NewStreamSummary()

	for idx := 0; ; idx++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		frame, err := src.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			return summary, nil
		case errors.Is(err, entity.ErrDecode):
			summary.Frames++
			s.handle(&summary, nil, entity.FrameResult{Frame: idx, Err: err}, onFrame)
			continue
		case err != nil:
			return summary, err
		}

		summary.Frames++
		if idx%every != 0 {
			continue
		}

		p, err := s.classifier.Predict(ctx, frame)
		if err != nil && ctx.Err() != nil {
			return summary, ctx.Err()
		}
		s.handle(&summary, frame, entity.FrameResult{Frame: idx, Prediction: p, Err: err}, onFrame)
	}
}

func (s *StreamService) handle(summary *entity.StreamSummary, frame image.Image, r entity.FrameResult, onFrame FrameHandler) {
	switch {
	case errors.Is(r.Err, entity.ErrInputShape):
		s.log.Errorw("frame skipped: preprocessing does not match model", "frame", r.Frame, "error", r.Err)
	case r.Err != nil:
		s.log.Warnw("frame skipped", "frame", r.Frame, "error", r.Err)
	}
	summary.Add(r)
	if onFrame != nil {
		onFrame(frame, r)
	}
}

// ClassifyVideo открывает видеофайл и классифицирует его кадры
func (s *StreamService) ClassifyVideo(ctx context.Context, path string, every int) (*VideoReport, error) {
	src, err := s.sources.OpenVideo(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	report := &VideoReport{}
	summary, err := s.Run(ctx, src, every, func(_ image.Image, r entity.FrameResult) {
		report.Frames = append(report.Frames, r)
	})
	report.Summary = summary
	if err != nil {
		return report, fmt.Errorf("video stopped at frame %d: %w", summary.Frames, err)
	}
	return report, nil
}
