package dxf

import "strings"

// ============================================================
// Document model
// ============================================================

// ModelSpace - имя контейнера основного пространства чертежа.
const ModelSpace = "*Model_Space"

// Vec - точка на плоскости в единицах чертежа.
type Vec struct {
	X float64
	Y float64
}

// NoTrueColor помечает слой без 24-битного цвета (группа 420).
const NoTrueColor = -1

type Layer struct {
	Name      string
	Color     int // индекс ACI, отрицательный у выключенного слоя
	TrueColor int // 0xRRGGBB или NoTrueColor
	Linetype  string
}

// RGB возвращает цвет слоя, true color важнее индекса.
func (l *Layer) RGB() int {
	if l.TrueColor != NoTrueColor {
		return l.TrueColor
	}
	return ACIToRGB(l.Color)
}

// Continuous сообщает, сплошной ли тип линии у слоя.
func (l *Layer) Continuous() bool {
	switch strings.ToUpper(l.Linetype) {
	case "", "CONTINUOUS", "BYLAYER", "BYBLOCK":
		return true
	}
	return false
}

type Block struct {
	Name     string
	Base     Vec
	Layer    string
	Entities []Entity
}

type Document struct {
	Layers   []*Layer
	Blocks   []*Block
	Entities []Entity // пространство модели
	GeoData  *GeoData
}

// Layer ищет слой в таблице по имени без учёта регистра.
func (d *Document) Layer(name string) *Layer {
	for _, l := range d.Layers {
		if strings.EqualFold(l.Name, name) {
			return l
		}
	}
	return nil
}

// Block ищет определение блока по имени без учёта регистра.
func (d *Document) Block(name string) *Block {
	for _, b := range d.Blocks {
		if strings.EqualFold(b.Name, name) {
			return b
		}
	}
	return nil
}

// Container возвращает сущности пространства модели или блока с именем name.
func (d *Document) Container(name string) []Entity {
	if strings.EqualFold(name, ModelSpace) {
		return d.Entities
	}
	if b := d.Block(name); b != nil {
		return b.Entities
	}
	return nil
}

// Query возвращает сущности заданного типа внутри контейнера.
func (d *Document) Query(container, typ string) []Entity {
	var out []Entity
	for _, e := range d.Container(container) {
		if e.Type() == typ {
			out = append(out, e)
		}
	}
	return out
}

// Inserts возвращает вставки блоков из пространства модели.
func (d *Document) Inserts() []*Insert {
	var out []*Insert
	for _, e := range d.Entities {
		if ins, ok := e.(*Insert); ok {
			out = append(out, ins)
		}
	}
	return out
}
