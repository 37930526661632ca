package entity

import "time"

// Prediction результат классификации одного изображения или кадра.
// Scores идут в том же порядке, что и таблица меток.
type Prediction struct {
	Label      Label
	Index      int
	Confidence float32
	Scores     []float32
	Timings    Timings
}

// Timings длительности этапов обработки
type Timings struct {
	Decode     time.Duration
	Preprocess time.Duration
	Inference  time.Duration
	Total      time.Duration
}

// ScoreFor возвращает оценку для метки
func (p *Prediction) ScoreFor(labels []Label, label Label) (float32, bool) {
	idx := IndexOf(labels, label)
	if idx < 0 || idx >= len(p.Scores) {
		return 0, false
	}
	return p.Scores[idx], true
}

// ArgMax индекс максимального значения. При равенстве побеждает первый индекс.
// Для пустого вектора возвращает -1.
func ArgMax(scores []float32) int {
	if len(scores) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}
