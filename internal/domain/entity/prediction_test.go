package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArgMax(t *testing.T) {
	tests := []struct {
		name   string
		scores []float32
		want   int
	}{
		{"empty", nil, -1},
		{"single", []float32{0.3}, 0},
		{"max in middle", []float32{0.1, 0.7, 0.2}, 1},
		{"max last", []float32{0.1, 0.2, 0.7}, 2},
		{"tie first wins", []float32{0.4, 0.4, 0.2}, 0},
		{"tie after first", []float32{0.1, 0.45, 0.45}, 1},
		{"negative logits", []float32{-3, -1, -2}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ArgMax(tt.scores))
		})
	}
}

func TestPredictionScoreFor(t *testing.T) {
	p := &Prediction{Scores: []float32{0.1, 0.6, 0.1, 0.1, 0.1}}

	s, ok := p.ScoreFor(Labels, LabelHole)
	require.True(t, ok)
	require.InDelta(t, 0.6, s, 1e-6)

	_, ok = p.ScoreFor(Labels, Label("Stain"))
	require.False(t, ok)
}

func TestLabels(t *testing.T) {
	require.Len(t, Labels, 5)
	require.Equal(t, 1, IndexOf(Labels, LabelHole))
	require.Equal(t, -1, IndexOf(Labels, Label("hole")))

	l, ok := LabelAt(Labels, 3)
	require.True(t, ok)
	require.Equal(t, LabelOilSpot, l)

	_, ok = LabelAt(Labels, 5)
	require.False(t, ok)

	require.Equal(t, "#2ECC71", LabelGood.Color())
	require.Equal(t, "#3498DB", Label("unknown").Color())
	require.False(t, LabelGood.IsDefect())
	require.True(t, LabelThreadError.IsDefect())
}

func TestTensorMatches(t *testing.T) {
	tensor := NewImageTensor(64, 64, 3)
	require.Equal(t, 64*64*3, tensor.Len())
	require.True(t, tensor.Matches([]int64{1, 64, 64, 3}))
	require.True(t, tensor.Matches([]int64{-1, 64, 64, 3}))
	require.False(t, tensor.Matches([]int64{1, 3, 64, 64}))
	require.False(t, tensor.Matches([]int64{1, 224, 224, 3}))
	require.False(t, tensor.Matches([]int64{64, 64, 3}))

	tensor.Data = tensor.Data[:10]
	require.False(t, tensor.Matches([]int64{1, 64, 64, 3}))
}

func TestStreamSummary(t *testing.T) {
	s := NewStreamSummary()
	s.Add(FrameResult{Frame: 0, Prediction: &Prediction{Label: LabelHole}})
	s.Add(FrameResult{Frame: 1, Prediction: &Prediction{Label: LabelGood}})
	s.Add(FrameResult{Frame: 2, Prediction: &Prediction{Label: LabelHole}})
	s.Add(FrameResult{Frame: 3, Err: ErrDecode})

	require.Equal(t, 3, s.Classified)
	require.Equal(t, 1, s.Failed)

	l, ok := s.Dominant(Labels)
	require.True(t, ok)
	require.Equal(t, LabelHole, l)

	empty := NewStreamSummary()
	_, ok = empty.Dominant(Labels)
	require.False(t, ok)
}
