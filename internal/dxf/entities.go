package dxf

// ============================================================
// Entities
// ============================================================

const (
	TypePoint      = "POINT"
	TypeLine       = "LINE"
	TypeLWPolyline = "LWPOLYLINE"
	TypePolyline   = "POLYLINE"
	Type3DFace     = "3DFACE"
	TypeCircle     = "CIRCLE"
	TypeArc        = "ARC"
	TypeEllipse    = "ELLIPSE"
	TypeSpline     = "SPLINE"
	TypeHatch      = "HATCH"
	TypeInsert     = "INSERT"
)

// Entity - любая рисуемая запись пространства модели или блока.
type Entity interface {
	Type() string
	LayerName() string
}

type base struct {
	Layer string
}

func (b base) LayerName() string {
	if b.Layer == "" {
		return "0"
	}
	return b.Layer
}

type Point struct {
	base
	At Vec
}

func (*Point) Type() string { return TypePoint }

type Line struct {
	base
	Start Vec
	End   Vec
}

func (*Line) Type() string { return TypeLine }

// Polyline покрывает LWPOLYLINE и старую форму POLYLINE/VERTEX.
// Bulges[i] задаёт дугу от Vertices[i] до следующей вершины.
type Polyline struct {
	base
	Vertices []Vec
	Bulges   []float64
	Closed   bool
	Legacy   bool
}

func (p *Polyline) Type() string {
	if p.Legacy {
		return TypePolyline
	}
	return TypeLWPolyline
}

func (p *Polyline) hasBulges() bool {
	for _, b := range p.Bulges {
		if b != 0 {
			return true
		}
	}
	return false
}

type Face3D struct {
	base
	Corners [4]Vec
}

func (*Face3D) Type() string { return Type3DFace }

type Circle struct {
	base
	Center Vec
	Radius float64
}

func (*Circle) Type() string { return TypeCircle }

// Углы дуги в градусах, против часовой от Start к End.
type Arc struct {
	base
	Center Vec
	Radius float64
	Start  float64
	End    float64
}

func (*Arc) Type() string { return TypeArc }

// Параметры эллипса в радианах, Major задан относительно Center.
type Ellipse struct {
	base
	Center Vec
	Major  Vec
	Ratio  float64
	Start  float64
	End    float64
}

func (*Ellipse) Type() string { return TypeEllipse }

type Spline struct {
	base
	Degree  int
	Closed  bool
	Knots   []float64
	Weights []float64
	Control []Vec
	Fit     []Vec
}

func (*Spline) Type() string { return TypeSpline }

// Hatch хранит контуры уже развёрнутыми, каждый контур неявно замкнут.
type Hatch struct {
	base
	Pattern string
	Solid   bool
	Paths   [][]Vec
}

func (*Hatch) Type() string { return TypeHatch }

// Insert - ссылка на блок, Rotation в градусах.
type Insert struct {
	base
	Block    string
	At       Vec
	XScale   float64
	YScale   float64
	Rotation float64
}

func (*Insert) Type() string { return TypeInsert }

// NewPoint и соседние конструкторы создают сущности на слое для записи.
func NewPoint(layer string, at Vec) *Point {
	return &Point{base: base{Layer: layer}, At: at}
}

func NewPolyline(layer string, vertices []Vec, closed bool) *Polyline {
	return &Polyline{base: base{Layer: layer}, Vertices: vertices, Closed: closed}
}

func NewHatch(layer string, paths [][]Vec) *Hatch {
	return &Hatch{base: base{Layer: layer}, Pattern: "SOLID", Solid: true, Paths: paths}
}

func NewInsert(layer, block string, at Vec, rotation, xscale, yscale float64) *Insert {
	return &Insert{
		base:     base{Layer: layer},
		Block:    block,
		At:       at,
		XScale:   xscale,
		YScale:   yscale,
		Rotation: rotation,
	}
}
