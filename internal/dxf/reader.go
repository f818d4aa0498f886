package dxf

import (
	"bytes"
	"errors"
	"io"
	"math"
	"strings"
)

// ============================================================
// Reader
// ============================================================

// ErrNoSections возвращается, если во входе нет ни одной секции DXF.
var ErrNoSections = errors.New("dxf: no sections found")

// record - объект с группой 0 вместе с его тегами.
type record struct {
	kind string
	tags []Tag
}

// Parse читает документ из памяти.
func Parse(data []byte) (*Document, error) {
	return Read(bytes.NewReader(data))
}

// Read разбирает поток ASCII DXF.
func Read(r io.Reader) (*Document, error) {
	s := NewScanner(r)
	doc := &Document{}
	sections := 0

	for s.Next() {
		t := s.LastTag
		if t.Code != 0 {
			continue
		}
		if t.Value == "EOF" {
			break
		}
		if t.Value != "SECTION" {
			continue
		}
		if !s.Next() || s.LastTag.Code != 2 {
			break
		}
		sections++

		name := strings.ToUpper(s.LastTag.Value)
		records := readSection(s)
		switch name {
		case "TABLES":
			doc.Layers = parseTables(records)
		case "BLOCKS":
			doc.Blocks = parseBlocks(records)
		case "ENTITIES":
			doc.Entities = parseEntities(records)
		case "OBJECTS":
			doc.GeoData = parseObjects(records)
		}
	}

	if err := s.Err(); err != nil {
		return nil, err
	}
	if sections == 0 {
		return nil, ErrNoSections
	}
	return doc, nil
}

// readSection собирает записи до ENDSEC.
func readSection(s *Scanner) []record {
	var out []record
	var cur *record

	for s.Next() {
		t := s.LastTag
		if t.Code == 0 {
			if cur != nil {
				out = append(out, *cur)
				cur = nil
			}
			if t.Value == "ENDSEC" || t.Value == "EOF" {
				break
			}
			cur = &record{kind: strings.ToUpper(t.Value)}
			continue
		}
		if cur != nil {
			cur.tags = append(cur.tags, t)
		}
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out
}

// ============================================================
// TABLES
// ============================================================

func parseTables(records []record) []*Layer {
	var layers []*Layer
	for _, rec := range records {
		if rec.kind != "LAYER" {
			continue
		}
		l := &Layer{Color: 7, TrueColor: NoTrueColor}
		for _, t := range rec.tags {
			switch t.Code {
			case 2:
				l.Name = t.AsString()
			case 62:
				l.Color = t.AsInt()
			case 420:
				l.TrueColor = t.AsInt() & 0xFFFFFF
			case 6:
				l.Linetype = t.AsString()
			}
		}
		if l.Name != "" {
			layers = append(layers, l)
		}
	}
	return layers
}

// ============================================================
// BLOCKS
// ============================================================

func parseBlocks(records []record) []*Block {
	var blocks []*Block
	var cur *Block
	var body []record

	for _, rec := range records {
		switch rec.kind {
		case "BLOCK":
			cur = &Block{}
			for _, t := range rec.tags {
				switch t.Code {
				case 2:
					cur.Name = t.AsString()
				case 8:
					cur.Layer = t.AsString()
				case 10:
					cur.Base.X = t.AsFloat()
				case 20:
					cur.Base.Y = t.AsFloat()
				}
			}
			body = body[:0]
		case "ENDBLK":
			if cur != nil {
				cur.Entities = parseEntities(body)
				blocks = append(blocks, cur)
			}
			cur = nil
			body = body[:0]
		default:
			if cur != nil {
				body = append(body, rec)
			}
		}
	}
	return blocks
}

// ============================================================
// ENTITIES
// ============================================================

func parseEntities(records []record) []Entity {
	var out []Entity
	var poly *Polyline
	inSeq := false

	for _, rec := range records {
		if inSeq {
			switch rec.kind {
			case "VERTEX":
				if poly != nil {
					if v, bulge, skip := parseVertex(rec.tags); !skip {
						poly.Vertices = append(poly.Vertices, v)
						poly.Bulges = append(poly.Bulges, bulge)
					}
				}
				continue
			case "SEQEND":
				if poly != nil {
					out = append(out, poly)
				}
				poly, inSeq = nil, false
				continue
			}
			// POLYLINE без SEQEND
			if poly != nil {
				out = append(out, poly)
			}
			poly, inSeq = nil, false
		}

		switch rec.kind {
		case TypePolyline:
			// сетки дают nil, но их вершины всё равно поглощаются
			poly = parseLegacyPolyline(rec.tags)
			inSeq = true
		case "ATTRIB", "SEQEND", "VERTEX":
			// атрибуты INSERT или остатки оборванной последовательности
		default:
			if e := parseEntity(rec); e != nil {
				out = append(out, e)
			}
		}
	}
	if poly != nil {
		out = append(out, poly)
	}
	return out
}

func parseEntity(rec record) Entity {
	switch rec.kind {
	case TypePoint:
		return parsePoint(rec.tags)
	case TypeLine:
		return parseLine(rec.tags)
	case TypeLWPolyline:
		return parseLWPolyline(rec.tags)
	case Type3DFace:
		return parseFace(rec.tags)
	case TypeCircle:
		return parseCircle(rec.tags)
	case TypeArc:
		return parseArc(rec.tags)
	case TypeEllipse:
		return parseEllipse(rec.tags)
	case TypeSpline:
		return parseSpline(rec.tags)
	case TypeHatch:
		return parseHatch(rec.tags)
	case TypeInsert:
		return parseInsert(rec.tags)
	}
	return nil
}

func parsePoint(tags []Tag) *Point {
	p := &Point{}
	for _, t := range tags {
		switch t.Code {
		case 8:
			p.Layer = t.AsString()
		case 10:
			p.At.X = t.AsFloat()
		case 20:
			p.At.Y = t.AsFloat()
		}
	}
	return p
}

func parseLine(tags []Tag) *Line {
	l := &Line{}
	for _, t := range tags {
		switch t.Code {
		case 8:
			l.Layer = t.AsString()
		case 10:
			l.Start.X = t.AsFloat()
		case 20:
			l.Start.Y = t.AsFloat()
		case 11:
			l.End.X = t.AsFloat()
		case 21:
			l.End.Y = t.AsFloat()
		}
	}
	return l
}

func parseLWPolyline(tags []Tag) *Polyline {
	p := &Polyline{}
	for _, t := range tags {
		switch t.Code {
		case 8:
			p.Layer = t.AsString()
		case 70:
			p.Closed = t.AsInt()&1 == 1
		case 10:
			p.Vertices = append(p.Vertices, Vec{X: t.AsFloat()})
			p.Bulges = append(p.Bulges, 0)
		case 20:
			if n := len(p.Vertices); n > 0 {
				p.Vertices[n-1].Y = t.AsFloat()
			}
		case 42:
			if n := len(p.Bulges); n > 0 {
				p.Bulges[n-1] = t.AsFloat()
			}
		}
	}
	return p
}

// parseLegacyPolyline читает заголовок POLYLINE; сетки и polyface возвращают nil.
func parseLegacyPolyline(tags []Tag) *Polyline {
	p := &Polyline{Legacy: true}
	for _, t := range tags {
		switch t.Code {
		case 8:
			p.Layer = t.AsString()
		case 70:
			flags := t.AsInt()
			if flags&(16|64) != 0 {
				return nil
			}
			p.Closed = flags&1 == 1
		}
	}
	return p
}

func parseVertex(tags []Tag) (Vec, float64, bool) {
	var v Vec
	var bulge float64
	for _, t := range tags {
		switch t.Code {
		case 10:
			v.X = t.AsFloat()
		case 20:
			v.Y = t.AsFloat()
		case 42:
			bulge = t.AsFloat()
		case 70:
			// управляющие точки сплайновой рамки не входят в контур
			if t.AsInt()&16 != 0 {
				return v, 0, true
			}
		}
	}
	return v, bulge, false
}

func parseFace(tags []Tag) *Face3D {
	f := &Face3D{}
	for _, t := range tags {
		switch t.Code {
		case 8:
			f.Layer = t.AsString()
		case 10, 11, 12, 13:
			f.Corners[t.Code-10].X = t.AsFloat()
		case 20, 21, 22, 23:
			f.Corners[t.Code-20].Y = t.AsFloat()
		}
	}
	return f
}

func parseCircle(tags []Tag) *Circle {
	c := &Circle{}
	for _, t := range tags {
		switch t.Code {
		case 8:
			c.Layer = t.AsString()
		case 10:
			c.Center.X = t.AsFloat()
		case 20:
			c.Center.Y = t.AsFloat()
		case 40:
			c.Radius = t.AsFloat()
		}
	}
	return c
}

func parseArc(tags []Tag) *Arc {
	a := &Arc{}
	for _, t := range tags {
		switch t.Code {
		case 8:
			a.Layer = t.AsString()
		case 10:
			a.Center.X = t.AsFloat()
		case 20:
			a.Center.Y = t.AsFloat()
		case 40:
			a.Radius = t.AsFloat()
		case 50:
			a.Start = t.AsFloat()
		case 51:
			a.End = t.AsFloat()
		}
	}
	return a
}

func parseEllipse(tags []Tag) *Ellipse {
	e := &Ellipse{Ratio: 1, End: 2 * math.Pi}
	for _, t := range tags {
		switch t.Code {
		case 8:
			e.Layer = t.AsString()
		case 10:
			e.Center.X = t.AsFloat()
		case 20:
			e.Center.Y = t.AsFloat()
		case 11:
			e.Major.X = t.AsFloat()
		case 21:
			e.Major.Y = t.AsFloat()
		case 40:
			e.Ratio = t.AsFloat()
		case 41:
			e.Start = t.AsFloat()
		case 42:
			e.End = t.AsFloat()
		}
	}
	return e
}

func parseSpline(tags []Tag) *Spline {
	sp := &Spline{Degree: 3}
	for _, t := range tags {
		switch t.Code {
		case 8:
			sp.Layer = t.AsString()
		case 70:
			sp.Closed = t.AsInt()&(1|2) != 0
		case 71:
			sp.Degree = t.AsInt()
		case 40:
			sp.Knots = append(sp.Knots, t.AsFloat())
		case 41:
			sp.Weights = append(sp.Weights, t.AsFloat())
		case 10:
			sp.Control = append(sp.Control, Vec{X: t.AsFloat()})
		case 20:
			if n := len(sp.Control); n > 0 {
				sp.Control[n-1].Y = t.AsFloat()
			}
		case 11:
			sp.Fit = append(sp.Fit, Vec{X: t.AsFloat()})
		case 21:
			if n := len(sp.Fit); n > 0 {
				sp.Fit[n-1].Y = t.AsFloat()
			}
		}
	}
	return sp
}

func parseInsert(tags []Tag) *Insert {
	ins := &Insert{XScale: 1, YScale: 1}
	for _, t := range tags {
		switch t.Code {
		case 8:
			ins.Layer = t.AsString()
		case 2:
			ins.Block = t.AsString()
		case 10:
			ins.At.X = t.AsFloat()
		case 20:
			ins.At.Y = t.AsFloat()
		case 41:
			ins.XScale = t.AsFloat()
		case 42:
			ins.YScale = t.AsFloat()
		case 50:
			ins.Rotation = t.AsFloat()
		}
	}
	return ins
}

// ============================================================
// HATCH
// ============================================================

// cursor проходит по списку тегов с заглядыванием на один тег.
type cursor struct {
	tags []Tag
	i    int
}

func (c *cursor) done() bool { return c.i >= len(c.tags) }

func (c *cursor) peek() Tag {
	if c.done() {
		return Tag{Code: -1}
	}
	return c.tags[c.i]
}

func (c *cursor) next() Tag {
	t := c.peek()
	c.i++
	return t
}

// expect забирает следующий тег, если у него код code, иначе false.
func (c *cursor) expect(code int) (Tag, bool) {
	if c.peek().Code != code {
		return Tag{}, false
	}
	return c.next(), true
}

func (c *cursor) float(code int) float64 {
	t, _ := c.expect(code)
	return t.AsFloat()
}

func (c *cursor) vec(xcode int) Vec {
	return Vec{X: c.float(xcode), Y: c.float(xcode + 10)}
}

func parseHatch(tags []Tag) *Hatch {
	h := &Hatch{}
	c := &cursor{tags: tags}

	for !c.done() {
		t := c.next()
		switch t.Code {
		case 8:
			h.Layer = t.AsString()
		case 2:
			h.Pattern = t.AsString()
		case 70:
			h.Solid = t.AsInt() == 1
		case 91:
			n := t.AsInt()
			for i := 0; i < n && !c.done(); i++ {
				if path := parseBoundaryPath(c); len(path) > 0 {
					h.Paths = append(h.Paths, path)
				}
			}
			return h
		}
	}
	return h
}

func parseBoundaryPath(c *cursor) []Vec {
	flagTag, ok := c.expect(92)
	if !ok {
		// синхронизация по следующему контуру
		for !c.done() && c.peek().Code != 92 {
			c.next()
		}
		flagTag, ok = c.expect(92)
		if !ok {
			return nil
		}
	}

	var path []Vec
	if flagTag.AsInt()&2 != 0 {
		path = parsePolylinePath(c)
	} else {
		path = parseEdgePath(c)
	}

	// ссылки на исходные объекты контура
	if t, ok := c.expect(97); ok {
		for i := 0; i < t.AsInt(); i++ {
			c.expect(330)
		}
	}
	return path
}

func parsePolylinePath(c *cursor) []Vec {
	hasBulge := false
	if t, ok := c.expect(72); ok {
		hasBulge = t.AsInt() != 0
	}
	c.expect(73)
	count, _ := c.expect(93)

	p := &Polyline{Closed: true}
	for i := 0; i < count.AsInt(); i++ {
		p.Vertices = append(p.Vertices, c.vec(10))
		bulge := 0.0
		if hasBulge {
			if t, ok := c.expect(42); ok {
				bulge = t.AsFloat()
			}
		}
		p.Bulges = append(p.Bulges, bulge)
	}
	return openRing(polylinePoints(p, DefaultTolerance))
}

func parseEdgePath(c *cursor) []Vec {
	count, _ := c.expect(93)
	var path []Vec

	for i := 0; i < count.AsInt() && !c.done(); i++ {
		edgeType, ok := c.expect(72)
		if !ok {
			break
		}
		var pts []Vec
		switch edgeType.AsInt() {
		case 1:
			pts = []Vec{c.vec(10), c.vec(11)}
		case 2:
			center := c.vec(10)
			radius := c.float(40)
			start := c.float(50)
			end := c.float(51)
			ccw := true
			if t, ok := c.expect(73); ok {
				ccw = t.AsInt() != 0
			}
			pts = arcEdgePoints(center, Vec{X: radius}, 1, start, end, ccw)
		case 3:
			center := c.vec(10)
			major := c.vec(11)
			ratio := c.float(40)
			start := c.float(50)
			end := c.float(51)
			ccw := true
			if t, ok := c.expect(73); ok {
				ccw = t.AsInt() != 0
			}
			pts = arcEdgePoints(center, major, ratio, start, end, ccw)
		case 4:
			pts = parseSplineEdge(c)
		}
		path = appendJoined(path, pts)
	}
	return openRing(path)
}

// arcEdgePoints разворачивает дуговое или эллиптическое ребро штриховки.
// У рёбер по часовой углы хранятся зеркально, так их пишет AutoCAD.
func arcEdgePoints(center, major Vec, ratio, startDeg, endDeg float64, ccw bool) []Vec {
	start := startDeg * math.Pi / 180
	end := endDeg * math.Pi / 180
	if !ccw {
		start, end = -start, -end
	}
	sweep := end - start
	if ccw {
		for sweep <= 0 {
			sweep += 2 * math.Pi
		}
	} else {
		for sweep >= 0 {
			sweep -= 2 * math.Pi
		}
	}
	return ellipsePoints(center, major, ratio, start, sweep, DefaultTolerance)
}

func parseSplineEdge(c *cursor) []Vec {
	sp := &Spline{}
	if t, ok := c.expect(94); ok {
		sp.Degree = t.AsInt()
	}
	rational := false
	if t, ok := c.expect(73); ok {
		rational = t.AsInt() != 0
	}
	c.expect(74)
	nKnots, _ := c.expect(95)
	nCtrl, _ := c.expect(96)

	for i := 0; i < nKnots.AsInt(); i++ {
		sp.Knots = append(sp.Knots, c.float(40))
	}
	for i := 0; i < nCtrl.AsInt(); i++ {
		sp.Control = append(sp.Control, c.vec(10))
		if rational {
			sp.Weights = append(sp.Weights, c.float(42))
		}
	}
	// данные аппроксимации есть только вместе с точками аппроксимации
	if c.peek().Code == 97 && c.i+1 < len(c.tags) && c.tags[c.i+1].Code == 11 {
		n := c.next().AsInt()
		for i := 0; i < n; i++ {
			sp.Fit = append(sp.Fit, c.vec(11))
		}
		c.expect(12)
		c.expect(22)
		c.expect(13)
		c.expect(23)
	}
	return splinePoints(sp, DefaultTolerance)
}

// appendJoined добавляет pts, пропуская первую точку, равную текущему концу.
func appendJoined(path, pts []Vec) []Vec {
	if len(path) > 0 && len(pts) > 0 && samePoint(path[len(path)-1], pts[0]) {
		pts = pts[1:]
	}
	return append(path, pts...)
}

// openRing убирает повторённую замыкающую вершину.
func openRing(pts []Vec) []Vec {
	for len(pts) > 1 && samePoint(pts[0], pts[len(pts)-1]) {
		pts = pts[:len(pts)-1]
	}
	return pts
}

func samePoint(a, b Vec) bool {
	return math.Abs(a.X-b.X) < 1e-9 && math.Abs(a.Y-b.Y) < 1e-9
}

// ============================================================
// OBJECTS
// ============================================================

func parseObjects(records []record) *GeoData {
	for _, rec := range records {
		if rec.kind == "GEODATA" {
			return parseGeoData(rec.tags)
		}
	}
	return nil
}
