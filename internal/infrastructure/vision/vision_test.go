package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"textile-vision/internal/domain/entity"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPreprocessor_ShapeForAnyResolution(t *testing.T) {
	p, err := NewPreprocessor(DefaultPreprocessConfig())
	require.NoError(t, err)

	sizes := [][2]int{{64, 64}, {640, 480}, {1, 1000}, {1000, 1}, {3, 7}}
	for _, s := range sizes {
		tensor, err := p.Prepare(solid(s[0], s[1], color.RGBA{R: 10, G: 20, B: 30, A: 255}))
		require.NoError(t, err, "size %v", s)
		require.Equal(t, []int64{1, 64, 64, 3}, tensor.Shape)
		require.Len(t, tensor.Data, 64*64*3)
		require.True(t, tensor.Matches([]int64{1, 64, 64, 3}))
	}
}

func TestPreprocessor_CaffeNormalization(t *testing.T) {
	p, err := NewPreprocessor(DefaultPreprocessConfig())
	require.NoError(t, err)

	tensor, err := p.Prepare(solid(8, 8, color.RGBA{R: 200, G: 100, B: 50, A: 255}))
	require.NoError(t, err)

	// BGR порядок, вычитание средних ImageNet
	require.InDelta(t, 50-103.939, tensor.Data[0], 1e-3)
	require.InDelta(t, 100-116.779, tensor.Data[1], 1e-3)
	require.InDelta(t, 200-123.68, tensor.Data[2], 1e-3)

	last := len(tensor.Data) - 3
	require.Equal(t, tensor.Data[:3], tensor.Data[last:])
}

func TestPreprocessor_OtherNormalizations(t *testing.T) {
	px := color.RGBA{R: 255, G: 0, B: 51, A: 255}

	tests := []struct {
		norm Normalization
		want [3]float32
	}{
		{NormTF, [3]float32{1, -1, 51/127.5 - 1}},
		{NormTorch, [3]float32{(1 - 0.485) / 0.229, (0 - 0.456) / 0.224, (0.2 - 0.406) / 0.225}},
		{NormRaw, [3]float32{255, 0, 51}},
	}

	for _, tt := range tests {
		t.Run(string(tt.norm), func(t *testing.T) {
			cfg := DefaultPreprocessConfig()
			cfg.Normalization = tt.norm
			p, err := NewPreprocessor(cfg)
			require.NoError(t, err)

			tensor, err := p.Prepare(solid(4, 4, px))
			require.NoError(t, err)
			for c := 0; c < 3; c++ {
				require.InDelta(t, tt.want[c], tensor.Data[c], 1e-4)
			}
		})
	}
}

func TestPreprocessor_GrayscaleBecomesThreeChannels(t *testing.T) {
	cfg := DefaultPreprocessConfig()
	cfg.Normalization = NormRaw
	p, err := NewPreprocessor(cfg)
	require.NoError(t, err)

	gray := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range gray.Pix {
		gray.Pix[i] = 90
	}

	tensor, err := p.Prepare(gray)
	require.NoError(t, err)
	require.Equal(t, []float32{90, 90, 90}, tensor.Data[:3])
}

func TestPreprocessor_Errors(t *testing.T) {
	p, err := NewPreprocessor(DefaultPreprocessConfig())
	require.NoError(t, err)

	_, err = p.Prepare(nil)
	require.ErrorIs(t, err, entity.ErrDecode)

	_, err = p.Prepare(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	require.ErrorIs(t, err, entity.ErrDecode)

	_, err = NewPreprocessor(PreprocessConfig{Width: 0, Height: 64, Normalization: NormCaffe, Filter: "nearest"})
	require.Error(t, err)

	_, err = NewPreprocessor(PreprocessConfig{Width: 64, Height: 64, Normalization: "vgg", Filter: "nearest"})
	require.Error(t, err)

	_, err = NewPreprocessor(PreprocessConfig{Width: 64, Height: 64, Normalization: NormCaffe, Filter: "bicubic"})
	require.Error(t, err)
}

func TestPreprocessor_Deterministic(t *testing.T) {
	p, err := NewPreprocessor(DefaultPreprocessConfig())
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 97, 53))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}

	a, err := p.Prepare(img)
	require.NoError(t, err)
	b, err := p.Prepare(img)
	require.NoError(t, err)
	require.Equal(t, a.Data, b.Data)
}

func TestDecoder(t *testing.T) {
	d := NewDecoder()

	img, err := d.Decode(pngBytes(t, solid(5, 3, color.White)))
	require.NoError(t, err)
	require.Equal(t, 5, img.Bounds().Dx())
	require.Equal(t, 3, img.Bounds().Dy())

	_, err = d.Decode(nil)
	require.ErrorIs(t, err, entity.ErrDecode)

	_, err = d.Decode([]byte{0x00, 0x01, 0x02})
	require.ErrorIs(t, err, entity.ErrDecode)

	// обрезанный png: заголовок читается, данные нет
	full := pngBytes(t, solid(50, 50, color.Black))
	_, err = d.Decode(full[:40])
	require.ErrorIs(t, err, entity.ErrDecode)
}

func TestDecoder_MaxPixels(t *testing.T) {
	d := &Decoder{MaxPixels: 100}
	_, err := d.Decode(pngBytes(t, solid(20, 20, color.White)))
	require.ErrorIs(t, err, entity.ErrDecode)
}

func TestDecoder_DecodeFile(t *testing.T) {
	d := NewDecoder()
	dir := t.TempDir()

	path := filepath.Join(dir, "fabric.png")
	require.NoError(t, os.WriteFile(path, pngBytes(t, solid(4, 4, color.White)), 0o600))

	_, err := d.DecodeFile(path)
	require.NoError(t, err)

	_, err = d.DecodeFile(filepath.Join(dir, "missing.png"))
	require.ErrorIs(t, err, entity.ErrDecode)
}

func TestEncodeJPEG(t *testing.T) {
	data, err := EncodeJPEG(solid(16, 16, color.White), 80)
	require.NoError(t, err)

	img, err := NewDecoder().Decode(data)
	require.NoError(t, err)
	require.Equal(t, 16, img.Bounds().Dx())
}
