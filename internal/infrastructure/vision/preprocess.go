package vision

import (
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"textile-vision/internal/domain/entity"
	"textile-vision/internal/domain/port"
)

// Normalization схема нормализации каналов, с которой обучалась модель
type Normalization string

const (
	// NormCaffe как keras vgg16.preprocess_input: RGB->BGR и вычитание средних ImageNet
	NormCaffe Normalization = "caffe"
	// NormTF масштаб в [-1, 1]
	NormTF Normalization = "tf"
	// NormTorch [0, 1] и стандартизация по mean/std ImageNet
	NormTorch Normalization = "torch"
	// NormRaw значения 0..255 без изменений
	NormRaw Normalization = "raw"
)

var (
	caffeMeanBGR = [3]float32{103.939, 116.779, 123.68}
	torchMean    = [3]float32{0.485, 0.456, 0.406}
	torchStd     = [3]float32{0.229, 0.224, 0.225}
)

var filters = map[string]imaging.ResampleFilter{
	"nearest": imaging.NearestNeighbor,
	"box":     imaging.Box,
	"linear":  imaging.Linear,
	"lanczos": imaging.Lanczos,
}

// PreprocessConfig параметры приведения изображения ко входу модели
type PreprocessConfig struct {
	Width         int
	Height        int
	Normalization Normalization
	Filter        string
}

// DefaultPreprocessConfig 64x64, caffe, nearest, как в keras load_img + vgg16
func DefaultPreprocessConfig() PreprocessConfig {
	return PreprocessConfig{
		Width:         64,
		Height:        64,
		Normalization: NormCaffe,
		Filter:        "nearest",
	}
}

// Preprocessor собирает NHWC-тензор (1, H, W, 3) из произвольного изображения
type Preprocessor struct {
	cfg    PreprocessConfig
	filter imaging.ResampleFilter
}

func NewPreprocessor(cfg PreprocessConfig) (*Preprocessor, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid input size %dx%d", cfg.Width, cfg.Height)
	}
	switch cfg.Normalization {
	case NormCaffe, NormTF, NormTorch, NormRaw:
	default:
		return nil, fmt.Errorf("unknown normalization %q", cfg.Normalization)
	}
	filter, ok := filters[strings.ToLower(cfg.Filter)]
	if !ok {
		return nil, fmt.Errorf("unknown resize filter %q", cfg.Filter)
	}
	return &Preprocessor{cfg: cfg, filter: filter}, nil
}

// Config текущие параметры
func (p *Preprocessor) Config() PreprocessConfig {
	return p.cfg
}

// Prepare меняет размер без сохранения пропорций и нормализует каналы
func (p *Preprocessor) Prepare(img image.Image) (*entity.Tensor, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", entity.ErrDecode)
	}

	w, h := p.cfg.Width, p.cfg.Height
	resized := imaging.Resize(img, w, h, p.filter)
	if b := resized.Bounds(); b.Dx() != w || b.Dy() != h {
		return nil, fmt.Errorf("%w: resized to %dx%d, want %dx%d", entity.ErrInputShape, b.Dx(), b.Dy(), w, h)
	}

	t := entity.NewImageTensor(h, w, 3)
	for y := 0; y < h; y++ {
		row := resized.Pix[y*resized.Stride : y*resized.Stride+w*4]
		for x := 0; x < w; x++ {
			r := float32(row[x*4])
			g := float32(row[x*4+1])
			b := float32(row[x*4+2])
			p.normalize(t.Data[(y*w+x)*3:(y*w+x)*3+3], r, g, b)
		}
	}
	return t, nil
}

func (p *Preprocessor) normalize(dst []float32, r, g, b float32) {
	switch p.cfg.Normalization {
	case NormCaffe:
		dst[0] = b - caffeMeanBGR[0]
		dst[1] = g - caffeMeanBGR[1]
		dst[2] = r - caffeMeanBGR[2]
	case NormTF:
		dst[0] = r/127.5 - 1
		dst[1] = g/127.5 - 1
		dst[2] = b/127.5 - 1
	case NormTorch:
		dst[0] = (r/255 - torchMean[0]) / torchStd[0]
		dst[1] = (g/255 - torchMean[1]) / torchStd[1]
		dst[2] = (b/255 - torchMean[2]) / torchStd[2]
	default:
		dst[0], dst[1], dst[2] = r, g, b
	}
}

var _ port.Preprocessor = (*Preprocessor)(nil)
