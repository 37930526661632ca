// Package onnx загружает обученную модель классификации через ONNX Runtime.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"os"

	ort "github.com/yalue/onnxruntime_go"

	"textile-vision/internal/domain/entity"
	"textile-vision/internal/domain/port"
)

// Config параметры загрузки модели
type Config struct {
	ModelPath   string
	LibraryPath string // путь к libonnxruntime; пусто: искать по умолчанию
	InputName   string // пусто: единственный вход модели
	OutputName  string // пусто: единственный выход модели
	InputSize   int    // ожидаемые H и W входа
	NumClasses  int    // длина таблицы меток
	IntraOp     int    // потоки внутри оператора; 0: решает рантайм
}

// Model сессия ONNX Runtime. Входной и выходной тензоры создаются на каждый
// вызов, поэтому Forward можно вызывать из нескольких горутин.
type Model struct {
	session    *ort.DynamicAdvancedSession
	inputShape []int64
	outputSize int
}

// Load инициализирует рантайм и создаёт сессию. Любая ошибка оборачивает
// entity.ErrModelLoad: без модели приложение не может работать.
func Load(cfg Config) (*Model, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("%w: empty model path", entity.ErrModelLoad)
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrModelLoad, err)
	}

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("%w: initialize onnx environment: %v", entity.ErrModelLoad, err)
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read model io: %v", entity.ErrModelLoad, err)
	}
	in, out, err := selectIO(inputs, outputs, cfg.InputName, cfg.OutputName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrModelLoad, err)
	}
	inputShape, outputSize, err := validateIO(in, out, cfg.InputSize, cfg.NumClasses)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrModelLoad, err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: session options: %v", entity.ErrModelLoad, err)
	}
	defer options.Destroy()
	if cfg.IntraOp > 0 {
		if err := options.SetIntraOpNumThreads(cfg.IntraOp); err != nil {
			return nil, fmt.Errorf("%w: intra op threads: %v", entity.ErrModelLoad, err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{in.Name}, []string{out.Name}, options)
	if err != nil {
		return nil, fmt.Errorf("%w: create session: %v", entity.ErrModelLoad, err)
	}

	return &Model{
		session:    session,
		inputShape: inputShape,
		outputSize: outputSize,
	}, nil
}

func (m *Model) InputShape() []int64 {
	return append([]int64(nil), m.inputShape...)
}

func (m *Model) OutputSize() int {
	return m.outputSize
}

// Forward выполняет прямой проход. Отмена ctx учитывается только до запуска:
// начатый проход прервать нельзя.
func (m *Model) Forward(ctx context.Context, input *entity.Tensor) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	in, err := ort.NewTensor(ort.NewShape(input.Shape...), input.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: input tensor: %v", entity.ErrInputShape, err)
	}
	defer in.Destroy()

	outputs := []ort.Value{nil}
	if err := m.session.Run([]ort.Value{in}, outputs); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInference, err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	t, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("%w: unexpected output type %T", entity.ErrInference, outputs[0])
	}

	// GetData указывает в память рантайма, после Destroy она недействительна
	scores := make([]float32, len(t.GetData()))
	copy(scores, t.GetData())
	return scores, nil
}

// Close освобождает сессию и окружение рантайма
func (m *Model) Close() error {
	var errs []error
	if m.session != nil {
		errs = append(errs, m.session.Destroy())
		m.session = nil
	}
	errs = append(errs, ort.DestroyEnvironment())
	return errors.Join(errs...)
}

func selectIO(inputs, outputs []ort.InputOutputInfo, inputName, outputName string) (ort.InputOutputInfo, ort.InputOutputInfo, error) {
	in, err := pick(inputs, inputName, "input")
	if err != nil {
		return ort.InputOutputInfo{}, ort.InputOutputInfo{}, err
	}
	out, err := pick(outputs, outputName, "output")
	if err != nil {
		return ort.InputOutputInfo{}, ort.InputOutputInfo{}, err
	}
	return in, out, nil
}

func pick(infos []ort.InputOutputInfo, name, kind string) (ort.InputOutputInfo, error) {
	if name == "" {
		if len(infos) != 1 {
			return ort.InputOutputInfo{}, fmt.Errorf("model has %d %ss, set the %s name explicitly", len(infos), kind, kind)
		}
		return infos[0], nil
	}
	for _, info := range infos {
		if info.Name == name {
			return info, nil
		}
	}
	return ort.InputOutputInfo{}, fmt.Errorf("model has no %s named %q", kind, name)
}

// validateIO проверяет вход (N, H, W, 3) и длину выхода против таблицы меток.
// Измерения <= 0 у модели динамические.
func validateIO(in, out ort.InputOutputInfo, size, numClasses int) ([]int64, int, error) {
	dims := in.Dimensions
	if len(dims) != 4 {
		return nil, 0, fmt.Errorf("expected 4D NHWC input, got %dD %v", len(dims), dims)
	}
	if dims[3] > 0 && dims[3] != 3 {
		return nil, 0, fmt.Errorf("expected 3 channels last, got input %v", dims)
	}
	for _, d := range dims[1:3] {
		if d > 0 && int(d) != size {
			return nil, 0, fmt.Errorf("model input %v does not match configured size %d", dims, size)
		}
	}
	if dims[0] > 1 {
		return nil, 0, fmt.Errorf("model expects batch %d, only batch 1 is supported", dims[0])
	}

	if len(out.Dimensions) == 0 {
		return nil, 0, fmt.Errorf("model output %q has no dimensions", out.Name)
	}
	outputSize := numClasses
	if last := out.Dimensions[len(out.Dimensions)-1]; last > 0 {
		outputSize = int(last)
	}
	if outputSize != numClasses {
		return nil, 0, fmt.Errorf("model outputs %d scores, label table has %d entries", outputSize, numClasses)
	}

	shape := []int64{1, int64(size), int64(size), 3}
	if dims[0] <= 0 {
		shape[0] = -1
	}
	return shape, outputSize, nil
}

var _ port.Model = (*Model)(nil)
