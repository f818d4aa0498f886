package dxf

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// ============================================================
// Document building
// ============================================================

// New возвращает пустой документ.
func New() *Document {
	return &Document{}
}

// AddLayer добавляет слой в таблицу с 24-битным цветом rgb.
func (d *Document) AddLayer(name string, rgb int, linetype string) *Layer {
	if linetype == "" {
		linetype = "CONTINUOUS"
	}
	l := &Layer{Name: name, Color: RGBToACI(rgb), TrueColor: rgb & 0xFFFFFF, Linetype: linetype}
	d.Layers = append(d.Layers, l)
	return l
}

// AddBlock добавляет пустое определение блока.
func (d *Document) AddBlock(name string, base Vec) *Block {
	b := &Block{Name: name, Base: base, Layer: "0"}
	d.Blocks = append(d.Blocks, b)
	return b
}

// Add добавляет сущности в пространство модели.
func (d *Document) Add(es ...Entity) {
	d.Entities = append(d.Entities, es...)
}

// Add добавляет сущности в блок.
func (b *Block) Add(es ...Entity) {
	b.Entities = append(b.Entities, es...)
}

// ============================================================
// Writer
// ============================================================

type tagWriter struct {
	w   *bufio.Writer
	n   int64
	err error
}

func (tw *tagWriter) tag(code int, value string) {
	if tw.err != nil {
		return
	}
	var n int
	n, tw.err = tw.w.WriteString(strconv.Itoa(code) + "\n" + value + "\n")
	tw.n += int64(n)
}

func (tw *tagWriter) str(code int, s string) { tw.tag(code, s) }
func (tw *tagWriter) num(code, v int) { tw.tag(code, strconv.Itoa(v)) }

func (tw *tagWriter) float(code int, v float64) {
	tw.tag(code, strconv.FormatFloat(v, 'f', -1, 64))
}

func (tw *tagWriter) vec(code int, v Vec) {
	tw.float(code, v.X)
	tw.float(code+10, v.Y)
}

// WriteTo сериализует документ в ASCII DXF.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	tw := &tagWriter{w: bufio.NewWriter(w)}

	tw.section("HEADER", func() {
		tw.str(9, "$ACADVER")
		tw.str(1, "AC1027")
		tw.str(9, "$INSUNITS")
		tw.num(70, 6)
	})
	tw.section("TABLES", func() { d.writeTables(tw) })
	tw.section("BLOCKS", func() { d.writeBlocks(tw) })
	tw.section("ENTITIES", func() {
		for _, e := range d.Entities {
			writeEntity(tw, e)
		}
	})
	tw.section("OBJECTS", func() {
		if d.GeoData != nil {
			d.GeoData.write(tw)
		}
	})
	tw.str(0, "EOF")

	if tw.err == nil {
		tw.err = tw.w.Flush()
	}
	return tw.n, tw.err
}

func (tw *tagWriter) section(name string, body func()) {
	tw.str(0, "SECTION")
	tw.str(2, name)
	body()
	tw.str(0, "ENDSEC")
}

func (d *Document) writeTables(tw *tagWriter) {
	tw.str(0, "TABLE")
	tw.str(2, "LTYPE")
	tw.num(70, 2)
	for _, lt := range []struct {
		name, desc string
		pattern    []float64
	}{
		{"CONTINUOUS", "Solid line", nil},
		{"DASHED", "Dashed __ __ __", []float64{0.5, -0.25}},
	} {
		tw.str(0, "LTYPE")
		tw.str(2, lt.name)
		tw.num(70, 0)
		tw.str(3, lt.desc)
		tw.num(72, 65)
		tw.num(73, len(lt.pattern))
		total := 0.0
		for _, p := range lt.pattern {
			if p < 0 {
				total -= p
			} else {
				total += p
			}
		}
		tw.float(40, total)
		for _, p := range lt.pattern {
			tw.float(49, p)
		}
	}
	tw.str(0, "ENDTAB")

	tw.str(0, "TABLE")
	tw.str(2, "LAYER")
	tw.num(70, len(d.Layers))
	for _, l := range d.Layers {
		tw.str(0, "LAYER")
		tw.str(2, l.Name)
		tw.num(70, 0)
		tw.num(62, l.Color)
		if l.TrueColor != NoTrueColor {
			tw.num(420, l.TrueColor)
		}
		lt := l.Linetype
		if lt == "" {
			lt = "CONTINUOUS"
		}
		tw.str(6, lt)
	}
	tw.str(0, "ENDTAB")
}

func (d *Document) writeBlocks(tw *tagWriter) {
	for _, b := range d.Blocks {
		tw.str(0, "BLOCK")
		layer := b.Layer
		if layer == "" {
			layer = "0"
		}
		tw.str(8, layer)
		tw.str(2, b.Name)
		tw.num(70, 0)
		tw.vec(10, b.Base)
		tw.str(3, b.Name)
		for _, e := range b.Entities {
			writeEntity(tw, e)
		}
		tw.str(0, "ENDBLK")
		tw.str(8, layer)
	}
}

func writeEntity(tw *tagWriter, e Entity) {
	switch e := e.(type) {
	case *Point:
		tw.head(TypePoint, e.LayerName())
		tw.vec(10, e.At)
	case *Line:
		tw.head(TypeLine, e.LayerName())
		tw.vec(10, e.Start)
		tw.vec(11, e.End)
	case *Polyline:
		tw.head(TypeLWPolyline, e.LayerName())
		tw.num(90, len(e.Vertices))
		flags := 0
		if e.Closed {
			flags = 1
		}
		tw.num(70, flags)
		for i, v := range e.Vertices {
			tw.vec(10, v)
			if i < len(e.Bulges) && e.Bulges[i] != 0 {
				tw.float(42, e.Bulges[i])
			}
		}
	case *Face3D:
		tw.head(Type3DFace, e.LayerName())
		for i, c := range e.Corners {
			tw.vec(10+i, c)
		}
	case *Circle:
		tw.head(TypeCircle, e.LayerName())
		tw.vec(10, e.Center)
		tw.float(40, e.Radius)
	case *Arc:
		tw.head(TypeArc, e.LayerName())
		tw.vec(10, e.Center)
		tw.float(40, e.Radius)
		tw.float(50, e.Start)
		tw.float(51, e.End)
	case *Ellipse:
		tw.head(TypeEllipse, e.LayerName())
		tw.vec(10, e.Center)
		tw.vec(11, e.Major)
		tw.float(40, e.Ratio)
		tw.float(41, e.Start)
		tw.float(42, e.End)
	case *Spline:
		tw.head(TypeSpline, e.LayerName())
		flags := 0
		if e.Closed {
			flags = 1
		}
		if len(e.Weights) > 0 {
			flags |= 4
		}
		tw.num(70, flags)
		tw.num(71, e.Degree)
		tw.num(72, len(e.Knots))
		tw.num(73, len(e.Control))
		tw.num(74, len(e.Fit))
		for _, k := range e.Knots {
			tw.float(40, k)
		}
		for _, w := range e.Weights {
			tw.float(41, w)
		}
		for _, c := range e.Control {
			tw.vec(10, c)
		}
		for _, f := range e.Fit {
			tw.vec(11, f)
		}
	case *Hatch:
		tw.head(TypeHatch, e.LayerName())
		pattern := e.Pattern
		if pattern == "" {
			pattern = "SOLID"
		}
		tw.str(2, pattern)
		solid := 0
		if e.Solid || strings.EqualFold(pattern, "SOLID") {
			solid = 1
		}
		tw.num(70, solid)
		tw.num(71, 0)
		tw.num(91, len(e.Paths))
		for _, p := range e.Paths {
			tw.num(92, 2)
			tw.num(72, 0)
			tw.num(73, 1)
			tw.num(93, len(p))
			for _, v := range p {
				tw.vec(10, v)
			}
			tw.num(97, 0)
		}
		tw.num(75, 0)
		tw.num(76, 1)
		tw.num(98, 0)
	case *Insert:
		tw.head(TypeInsert, e.LayerName())
		tw.str(2, e.Block)
		tw.vec(10, e.At)
		tw.float(41, scaleOrOne(e.XScale))
		tw.float(42, scaleOrOne(e.YScale))
		tw.float(50, e.Rotation)
	}
}

func (tw *tagWriter) head(kind, layer string) {
	tw.str(0, kind)
	tw.str(8, layer)
}

func (g *GeoData) write(tw *tagWriter) {
	tw.str(0, "GEODATA")
	tw.num(90, 2)
	tw.num(70, 2) // локальная сетка
	tw.vec(10, g.Design)
	tw.vec(11, g.Reference)
	tw.vec(12, g.North)
	// описания длиннее 255 символов продолжаются в группе 303
	def := g.CRS
	first := true
	for len(def) > 0 {
		n := min(255, len(def))
		if first {
			tw.str(301, def[:n])
			first = false
		} else {
			tw.str(303, def[:n])
		}
		def = def[n:]
	}
}
