package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"textile-vision/internal/domain/entity"
	"textile-vision/internal/domain/port"
)

// Classifier предобработка -> прямой проход -> arg-max -> метка.
// Модель разделяется между всеми вызовами и не изменяется.
type Classifier struct {
	model   port.Model
	pre     port.Preprocessor
	decoder port.ImageDecoder
	labels  []entity.Label
	log     *zap.SugaredLogger
}

// NewClassifier проверяет, что таблица меток совпадает с выходом модели.
// Несовпадение: ошибка конфигурации при старте.
func NewClassifier(model port.Model, pre port.Preprocessor, decoder port.ImageDecoder, labels []entity.Label, log *zap.SugaredLogger) (*Classifier, error) {
	if model == nil || pre == nil || decoder == nil {
		return nil, errors.New("classifier dependencies are not configured")
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: empty label table", entity.ErrModelLoad)
	}
	if n := model.OutputSize(); n != len(labels) {
		return nil, fmt.Errorf("%w: model outputs %d scores, label table has %d entries", entity.ErrModelLoad, n, len(labels))
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Classifier{
		model:   model,
		pre:     pre,
		decoder: decoder,
		labels:  append([]entity.Label(nil), labels...),
		log:     log,
	}, nil
}

// Labels таблица меток в порядке выхода модели
func (c *Classifier) Labels() []entity.Label {
	return append([]entity.Label(nil), c.labels...)
}

// Predict классифицирует уже декодированное изображение или кадр
func (c *Classifier) Predict(ctx context.Context, img image.Image) (*entity.Prediction, error) {
	start := time.Now()
	p, err := c.predict(ctx, img)
	if err != nil {
		return nil, err
	}
	p.Timings.Total = time.Since(start)
	c.logTimings(p)
	return p, nil
}

// PredictBytes декодирует загрузку и классифицирует её
func (c *Classifier) PredictBytes(ctx context.Context, data []byte) (*entity.Prediction, error) {
	start := time.Now()
	img, err := c.decoder.Decode(data)
	if err != nil {
		return nil, err
	}
	decoded := time.Since(start)

	p, err := c.predict(ctx, img)
	if err != nil {
		return nil, err
	}
	p.Timings.Decode = decoded
	p.Timings.Total = time.Since(start)
	c.logTimings(p)
	return p, nil
}

// PredictFile классифицирует файл на диске
func (c *Classifier) PredictFile(ctx context.Context, path string) (*entity.Prediction, error) {
	start := time.Now()
	img, err := c.decoder.DecodeFile(path)
	if err != nil {
		return nil, err
	}
	decoded := time.Since(start)

	p, err := c.predict(ctx, img)
	if err != nil {
		return nil, err
	}
	p.Timings.Decode = decoded
	p.Timings.Total = time.Since(start)
	c.logTimings(p)
	return p, nil
}

func (c *Classifier) predict(ctx context.Context, img image.Image) (*entity.Prediction, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", entity.ErrDecode)
	}

	prepStart := time.Now()
	input, err := c.pre.Prepare(img)
	if err != nil {
		return nil, err
	}
	expected := c.model.InputShape()
	if !input.Matches(expected) {
		return nil, fmt.Errorf("%w: tensor %v (%d values), model expects %v",
			entity.ErrInputShape, input.Shape, len(input.Data), expected)
	}
	prep := time.Since(prepStart)

	inferStart := time.Now()
	scores, err := c.model.Forward(ctx, input)
	if err != nil {
		return nil, err
	}
	infer := time.Since(inferStart)

	if len(scores) != len(c.labels) {
		return nil, fmt.Errorf("%w: got %d scores for %d labels", entity.ErrInference, len(scores), len(c.labels))
	}

	idx := entity.ArgMax(scores)
	return &entity.Prediction{
		Label:      c.labels[idx],
		Index:      idx,
		Confidence: scores[idx],
		Scores:     scores,
		Timings: entity.Timings{
			Preprocess: prep,
			Inference:  infer,
		},
	}, nil
}

func (c *Classifier) logTimings(p *entity.Prediction) {
	c.log.Debugw("classified",
		"label", p.Label,
		"confidence", p.Confidence,
		"decode", p.Timings.Decode,
		"preprocess", p.Timings.Preprocess,
		"inference", p.Timings.Inference,
		"total", p.Timings.Total,
	)
}
