package vision

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"textile-vision/internal/domain/entity"
	"textile-vision/internal/domain/port"
)

// DefaultMaxPixels защита от "бомб", огромных изображений в маленьком файле
const DefaultMaxPixels = 40_000_000

// Decoder декодирует jpeg, png, gif, bmp, tiff и webp
type Decoder struct {
	MaxPixels int
}

func NewDecoder() *Decoder {
	return &Decoder{MaxPixels: DefaultMaxPixels}
}

// Decode любая ошибка оборачивается в entity.ErrDecode
func (d *Decoder) Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty data", entity.ErrDecode)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: %s image has no pixels", entity.ErrDecode, format)
	}
	if d.MaxPixels > 0 && cfg.Width*cfg.Height > d.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", entity.ErrDecode, cfg.Width, cfg.Height, d.MaxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", entity.ErrDecode, format, err)
	}
	return img, nil
}

// DecodeFile читает и декодирует файл с диска
func (d *Decoder) DecodeFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrDecode, err)
	}
	return d.Decode(data)
}

// EncodeJPEG кодирует кадр для отдачи в браузер или в чат
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

var _ port.ImageDecoder = (*Decoder)(nil)
