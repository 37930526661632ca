package entity

// Tensor плоский float32-буфер с формой (NHWC для изображений)
type Tensor struct {
	Shape []int64
	Data  []float32
}

// NewImageTensor создаёт пустой тензор формы (1, height, width, channels)
func NewImageTensor(height, width, channels int) *Tensor {
	return &Tensor{
		Shape: []int64{1, int64(height), int64(width), int64(channels)},
		Data:  make([]float32, height*width*channels),
	}
}

// Len число элементов, которое следует из формы
func (t *Tensor) Len() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Shape {
		n *= int(d)
	}
	return n
}

// Matches проверяет форму тензора против ожидаемой формы модели.
// Измерения <= 0 в expected считаются динамическими и совпадают с любым значением.
func (t *Tensor) Matches(expected []int64) bool {
	if len(t.Shape) != len(expected) {
		return false
	}
	for i, d := range expected {
		if d > 0 && t.Shape[i] != d {
			return false
		}
	}
	return len(t.Data) == t.Len()
}
