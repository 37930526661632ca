package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"textile-vision/internal/domain/entity"
)

func newTestStream(t *testing.T, factory *fakeFactory) *StreamService {
	t.Helper()
	return NewStreamService(newTestClassifier(t, newBrightnessModel()), factory, zaptest.NewLogger(t).Sugar())
}

func TestStreamService_TenFramesSequential(t *testing.T) {
	s := newTestStream(t, &fakeFactory{})

	steps := make([]frameStep, 10)
	for i := range steps {
		steps[i] = frameStep{img: fabric(320, 240, lightFabric)}
	}
	src := &sliceSource{steps: steps}

	const perFrameBudget = 200 * time.Millisecond
	var order []int
	start := time.Now()
	summary, err := s.Run(context.Background(), src, 1, func(_ image.Image, r entity.FrameResult) {
		require.NoError(t, r.Err)
		order = append(order, r.Frame)
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
	require.Equal(t, 10, summary.Frames)
	require.Equal(t, 10, summary.Classified)
	require.Equal(t, 10, summary.Counts[entity.LabelGood])
	require.Less(t, elapsed, 10*perFrameBudget)
}

func TestStreamService_BadFrameDoesNotStopStream(t *testing.T) {
	s := newTestStream(t, &fakeFactory{})

	src := &sliceSource{steps: []frameStep{
		{img: fabric(64, 64, darkFabric)},
		{err: fmt.Errorf("%w: corrupt frame", entity.ErrDecode)},
		{img: nil},
		{img: fabric(64, 64, lightFabric)},
	}}

	var results []entity.FrameResult
	summary, err := s.Run(context.Background(), src, 1, func(_ image.Image, r entity.FrameResult) {
		results = append(results, r)
	})
	require.NoError(t, err)
	require.Len(t, results, 4)

	require.Equal(t, entity.LabelHole, results[0].Prediction.Label)
	require.ErrorIs(t, results[1].Err, entity.ErrDecode)
	require.Nil(t, results[1].Prediction)
	require.ErrorIs(t, results[2].Err, entity.ErrDecode)
	require.Equal(t, entity.LabelGood, results[3].Prediction.Label)

	require.Equal(t, 4, summary.Frames)
	require.Equal(t, 2, summary.Classified)
	require.Equal(t, 2, summary.Failed)
}

func TestStreamService_EveryNthFrame(t *testing.T) {
	s := newTestStream(t, &fakeFactory{})

	steps := make([]frameStep, 10)
	for i := range steps {
		steps[i] = frameStep{img: fabric(8, 8, lightFabric)}
	}

	var frames []int
	summary, err := s.Run(context.Background(), &sliceSource{steps: steps}, 3, func(_ image.Image, r entity.FrameResult) {
		frames = append(frames, r.Frame)
	})
	require.NoError(t, err)
	require.Equal(t, []int{0, 3, 6, 9}, frames)
	require.Equal(t, 10, summary.Frames)
	require.Equal(t, 4, summary.Classified)
}

func TestStreamService_CancelBetweenFrames(t *testing.T) {
	s := newTestStream(t, &fakeFactory{})

	steps := make([]frameStep, 10)
	for i := range steps {
		steps[i] = frameStep{img: fabric(8, 8, lightFabric)}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	summary, err := s.Run(ctx, &sliceSource{steps: steps}, 1, func(_ image.Image, r entity.FrameResult) {
		if r.Frame == 2 {
			cancel()
		}
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 3, summary.Classified)
}

func TestStreamService_SourceFailureStops(t *testing.T) {
	s := newTestStream(t, &fakeFactory{})

	src := &sliceSource{steps: []frameStep{
		{img: fabric(8, 8, lightFabric)},
		{err: fmt.Errorf("%w: failed to capture video", entity.ErrSourceUnavailable)},
		{img: fabric(8, 8, lightFabric)},
	}}

	summary, err := s.Run(context.Background(), src, 1, nil)
	require.ErrorIs(t, err, entity.ErrSourceUnavailable)
	require.Equal(t, 1, summary.Classified)
}

func TestStreamService_ClassifyVideo(t *testing.T) {
	src := &sliceSource{steps: []frameStep{
		{img: fabric(8, 8, darkFabric)},
		{img: fabric(8, 8, darkFabric)},
		{img: fabric(8, 8, lightFabric)},
	}}
	s := newTestStream(t, &fakeFactory{video: src})

	report, err := s.ClassifyVideo(context.Background(), "clip.mp4", 1)
	require.NoError(t, err)
	require.Len(t, report.Frames, 3)
	require.True(t, src.closed)

	dominant, ok := report.Summary.Dominant(entity.Labels)
	require.True(t, ok)
	require.Equal(t, entity.LabelHole, dominant)
}

func TestStreamService_ClassifyVideoUnavailable(t *testing.T) {
	s := newTestStream(t, &fakeFactory{openErr: entity.ErrSourceUnavailable})

	_, err := s.ClassifyVideo(context.Background(), "clip.mp4", 1)
	require.True(t, errors.Is(err, entity.ErrSourceUnavailable))
}
