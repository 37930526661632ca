package entity

// Label класс дефекта ткани
type Label string

const (
	LabelGood        Label = "Good"
	LabelHole        Label = "Hole"
	LabelObjects     Label = "Objects"
	LabelOilSpot     Label = "Oil Spot"
	LabelThreadError Label = "Thread Error"
)

// Labels порядок классов на выходе модели. Должен совпадать с порядком,
// в котором модель обучалась.
var Labels = []Label{
	LabelGood,
	LabelHole,
	LabelObjects,
	LabelOilSpot,
	LabelThreadError,
}

const defaultLabelColor = "#3498DB"

var labelColors = map[Label]string{
	LabelGood:        "#2ECC71",
	LabelHole:        "#F1C40F",
	LabelObjects:     "#E67E22",
	LabelOilSpot:     "#E74C3C",
	LabelThreadError: "#9B59B6",
}

// Color возвращает цвет плашки с результатом для класса
func (l Label) Color() string {
	if c, ok := labelColors[l]; ok {
		return c
	}
	return defaultLabelColor
}

// IsDefect сообщает, является ли класс дефектом
func (l Label) IsDefect() bool {
	return l != LabelGood
}

// LabelAt возвращает метку по индексу выхода модели
func LabelAt(labels []Label, idx int) (Label, bool) {
	if idx < 0 || idx >= len(labels) {
		return "", false
	}
	return labels[idx], true
}

// IndexOf возвращает позицию метки в таблице или -1
func IndexOf(labels []Label, label Label) int {
	for i, l := range labels {
		if l == label {
			return i
		}
	}
	return -1
}
