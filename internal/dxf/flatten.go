package dxf

import (
	"math"
)

// ============================================================
// Flattening
// ============================================================

// DefaultTolerance - наибольшее отклонение хорды в единицах чертежа
// при развёртке кривых в ломаные.
const DefaultTolerance = 0.01

const (
	minCircleSegments = 8
	maxCurveSegments  = 1024
)

type ShapeKind int

const (
	ShapePoint ShapeKind = iota
	ShapeLine
	ShapePolygon
)

// Shape - нормализованный примитив сущности. Кольца полигона открыты,
// замыкающая вершина подразумевается.
type Shape struct {
	Kind  ShapeKind
	Rings [][]Vec
}

// Flatten разворачивает сущность в примитивы. INSERT и неизвестные типы дают nil.
func Flatten(e Entity, tol float64) []Shape {
	if tol <= 0 {
		tol = DefaultTolerance
	}

	switch e := e.(type) {
	case *Point:
		return []Shape{{Kind: ShapePoint, Rings: [][]Vec{{e.At}}}}
	case *Line:
		return []Shape{{Kind: ShapeLine, Rings: [][]Vec{{e.Start, e.End}}}}
	case *Polyline:
		pts := polylinePoints(e, tol)
		if e.Closed {
			return []Shape{{Kind: ShapePolygon, Rings: [][]Vec{openRing(pts)}}}
		}
		return []Shape{{Kind: ShapeLine, Rings: [][]Vec{pts}}}
	case *Face3D:
		return []Shape{{Kind: ShapePolygon, Rings: [][]Vec{faceRing(e)}}}
	case *Circle:
		pts := ellipsePoints(e.Center, Vec{X: e.Radius}, 1, 0, 2*math.Pi, tol)
		return []Shape{{Kind: ShapePolygon, Rings: [][]Vec{openRing(pts)}}}
	case *Arc:
		start := e.Start * math.Pi / 180
		sweep := e.End*math.Pi/180 - start
		for sweep <= 0 {
			sweep += 2 * math.Pi
		}
		pts := ellipsePoints(e.Center, Vec{X: e.Radius}, 1, start, sweep, tol)
		return []Shape{{Kind: ShapeLine, Rings: [][]Vec{pts}}}
	case *Ellipse:
		sweep := e.End - e.Start
		for sweep <= 0 {
			sweep += 2 * math.Pi
		}
		pts := ellipsePoints(e.Center, e.Major, e.Ratio, e.Start, sweep, tol)
		if sweep >= 2*math.Pi-1e-9 {
			return []Shape{{Kind: ShapePolygon, Rings: [][]Vec{openRing(pts)}}}
		}
		return []Shape{{Kind: ShapeLine, Rings: [][]Vec{pts}}}
	case *Spline:
		pts := splinePoints(e, tol)
		if e.Closed {
			return []Shape{{Kind: ShapePolygon, Rings: [][]Vec{openRing(pts)}}}
		}
		return []Shape{{Kind: ShapeLine, Rings: [][]Vec{pts}}}
	case *Hatch:
		if len(e.Paths) == 0 {
			return nil
		}
		rings := make([][]Vec, len(e.Paths))
		for i, p := range e.Paths {
			rings[i] = append([]Vec(nil), p...)
		}
		return []Shape{{Kind: ShapePolygon, Rings: rings}}
	}
	return nil
}

func faceRing(f *Face3D) []Vec {
	ring := []Vec{f.Corners[0]}
	for _, c := range f.Corners[1:] {
		if !samePoint(c, ring[len(ring)-1]) {
			ring = append(ring, c)
		}
	}
	return openRing(ring)
}

// segmentsFor считает, сколько хорд нужно для дуги радиуса radius,
// чтобы уложиться в tol.
func segmentsFor(radius, sweep, tol float64) int {
	radius = math.Abs(radius)
	sweep = math.Abs(sweep)
	n := minCircleSegments
	if radius > tol {
		step := 2 * math.Acos(1-tol/radius)
		n = int(math.Ceil(sweep / step))
	} else {
		n = int(math.Ceil(float64(minCircleSegments) * sweep / (2 * math.Pi)))
	}
	if sweep >= 2*math.Pi-1e-9 && n < minCircleSegments {
		n = minCircleSegments
	}
	if n < 1 {
		n = 1
	}
	if n > maxCurveSegments {
		n = maxCurveSegments
	}
	return n
}

// ellipsePoints берёт точки center + cos(t)·major + sin(t)·minor для t
// из [start, start+sweep]; minor - это major, повёрнутый на 90° и умноженный на ratio.
func ellipsePoints(center, major Vec, ratio, start, sweep, tol float64) []Vec {
	radius := math.Hypot(major.X, major.Y)
	n := segmentsFor(radius, sweep, tol)
	minor := Vec{X: -major.Y * ratio, Y: major.X * ratio}

	pts := make([]Vec, 0, n+1)
	for i := 0; i <= n; i++ {
		t := start + sweep*float64(i)/float64(n)
		c, s := math.Cos(t), math.Sin(t)
		pts = append(pts, Vec{
			X: center.X + c*major.X + s*minor.X,
			Y: center.Y + c*major.Y + s*minor.Y,
		})
	}
	return pts
}

// polylinePoints раскрывает сегменты с bulge в дуги.
func polylinePoints(p *Polyline, tol float64) []Vec {
	if !p.hasBulges() {
		return append([]Vec(nil), p.Vertices...)
	}

	n := len(p.Vertices)
	var out []Vec
	for i := 0; i < n; i++ {
		a := p.Vertices[i]
		out = appendJoined(out, []Vec{a})
		if i == n-1 && !p.Closed {
			break
		}
		b := p.Vertices[(i+1)%n]
		if i < len(p.Bulges) && p.Bulges[i] != 0 {
			out = appendJoined(out, bulgePoints(a, b, p.Bulges[i], tol))
		}
	}
	if p.Closed {
		out = appendJoined(out, []Vec{p.Vertices[0]})
	}
	return out
}

// bulgePoints возвращает дугу от a до b; bulge = tan(угол/4),
// положительный означает против часовой.
func bulgePoints(a, b Vec, bulge, tol float64) []Vec {
	chord := math.Hypot(b.X-a.X, b.Y-a.Y)
	if chord == 0 {
		return nil
	}
	theta := 4 * math.Atan(bulge)
	radius := chord / (2 * math.Sin(theta/2))

	// центр лежит на серединном перпендикуляре к хорде
	mx, my := (a.X+b.X)/2, (a.Y+b.Y)/2
	h := radius * math.Cos(theta/2)
	nx, ny := -(b.Y-a.Y)/chord, (b.X-a.X)/chord
	center := Vec{X: mx + nx*h, Y: my + ny*h}

	start := math.Atan2(a.Y-center.Y, a.X-center.X)
	r := math.Abs(radius)
	pts := ellipsePoints(center, Vec{X: r}, 1, start, theta, tol)
	pts[len(pts)-1] = b
	return pts
}

// splinePoints вычисляет (рациональный) B-сплайн; сплайн без
// пригодных управляющих точек заменяется точками аппроксимации.
func splinePoints(sp *Spline, tol float64) []Vec {
	k := sp.Degree
	nc := len(sp.Control)
	if k < 1 || nc <= k {
		if len(sp.Fit) > 0 {
			return append([]Vec(nil), sp.Fit...)
		}
		return append([]Vec(nil), sp.Control...)
	}

	knots := sp.Knots
	if len(knots) != nc+k+1 {
		knots = clampedKnots(nc, k)
	}
	weights := sp.Weights
	if len(weights) != nc {
		weights = nil
	}

	// плотность выборки по длине управляющего многоугольника
	length := 0.0
	for i := 1; i < nc; i++ {
		length += math.Hypot(sp.Control[i].X-sp.Control[i-1].X, sp.Control[i].Y-sp.Control[i-1].Y)
	}
	n := 8 * (nc - 1)
	if tol > 0 {
		if byLen := int(math.Ceil(math.Sqrt(length / tol))); byLen > n {
			n = byLen
		}
	}
	if n > maxCurveSegments {
		n = maxCurveSegments
	}

	t0, t1 := knots[k], knots[nc]
	pts := make([]Vec, 0, n+1)
	for i := 0; i <= n; i++ {
		t := t0 + (t1-t0)*float64(i)/float64(n)
		pts = append(pts, deBoor(t, k, knots, sp.Control, weights))
	}
	return pts
}

func clampedKnots(nc, k int) []float64 {
	knots := make([]float64, nc+k+1)
	inner := nc - k
	for i := range knots {
		switch {
		case i <= k:
			knots[i] = 0
		case i >= nc:
			knots[i] = 1
		default:
			knots[i] = float64(i-k) / float64(inner)
		}
	}
	return knots
}

// deBoor вычисляет сплайн в t в однородных координатах.
func deBoor(t float64, k int, knots []float64, ctrl []Vec, weights []float64) Vec {
	nc := len(ctrl)
	span := k
	for span < nc-1 && t >= knots[span+1] {
		span++
	}

	type hp struct{ x, y, w float64 }
	d := make([]hp, k+1)
	for j := 0; j <= k; j++ {
		c := ctrl[span-k+j]
		w := 1.0
		if weights != nil {
			w = weights[span-k+j]
		}
		d[j] = hp{c.X * w, c.Y * w, w}
	}

	for r := 1; r <= k; r++ {
		for j := k; j >= r; j-- {
			i := span - k + j
			den := knots[i+k-r+1] - knots[i]
			alpha := 0.0
			if den != 0 {
				alpha = (t - knots[i]) / den
			}
			d[j] = hp{
				x: (1-alpha)*d[j-1].x + alpha*d[j].x,
				y: (1-alpha)*d[j-1].y + alpha*d[j].y,
				w: (1-alpha)*d[j-1].w + alpha*d[j].w,
			}
		}
	}

	if d[k].w == 0 {
		return Vec{X: d[k].x, Y: d[k].y}
	}
	return Vec{X: d[k].x / d[k].w, Y: d[k].y / d[k].w}
}
