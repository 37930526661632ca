package entity

// FrameResult итог обработки одного кадра видео или камеры.
// Ровно одно из Prediction/Err заполнено.
type FrameResult struct {
	Frame      int
	Prediction *Prediction
	Err        error
}

// StreamSummary сводка по потоку кадров
type StreamSummary struct {
	Frames     int           // прочитано кадров
	Classified int           // успешно классифицировано
	Failed     int           // кадров с ошибкой
	Counts     map[Label]int // сколько кадров получило каждую метку
}

// NewStreamSummary создаёт пустую сводку
func NewStreamSummary() StreamSummary {
	return StreamSummary{Counts: make(map[Label]int)}
}

// Add учитывает результат кадра
func (s *StreamSummary) Add(r FrameResult) {
	if r.Err != nil {
		s.Failed++
		return
	}
	s.Classified++
	s.Counts[r.Prediction.Label]++
}

// Dominant метка, встреченная чаще всего. При равенстве первая по таблице.
func (s *StreamSummary) Dominant(labels []Label) (Label, bool) {
	var (
		best  Label
		count int
	)
	for _, l := range labels {
		if c := s.Counts[l]; c > count {
			best, count = l, c
		}
	}
	return best, count > 0
}
