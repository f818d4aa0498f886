package dxf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenPrimitives(t *testing.T) {
	shapes := Flatten(NewPoint("a", Vec{1, 2}), 0)
	require.Len(t, shapes, 1)
	assert.Equal(t, ShapePoint, shapes[0].Kind)

	shapes = Flatten(&Line{Start: Vec{0, 0}, End: Vec{1, 1}}, 0)
	require.Len(t, shapes, 1)
	assert.Equal(t, ShapeLine, shapes[0].Kind)

	// повторённая в исходнике замыкающая вершина отбрасывается
	shapes = Flatten(NewPolyline("a", []Vec{{0, 0}, {1, 0}, {1, 1}, {0, 0}}, true), 0)
	require.Len(t, shapes, 1)
	assert.Equal(t, ShapePolygon, shapes[0].Kind)
	assert.Len(t, shapes[0].Rings[0], 3)

	assert.Nil(t, Flatten(NewInsert("a", "b", Vec{}, 0, 1, 1), 0))
}

func TestFlattenCircleWithinTolerance(t *testing.T) {
	c := &Circle{Center: Vec{10, -5}, Radius: 3}
	shapes := Flatten(c, 0.01)
	require.Len(t, shapes, 1)
	ring := shapes[0].Rings[0]
	assert.GreaterOrEqual(t, len(ring), minCircleSegments)

	for _, p := range ring {
		assert.InDelta(t, 3, math.Hypot(p.X-10, p.Y+5), 1e-9)
	}
	// середины хорд не дальше допуска от окружности
	for i := range ring {
		a, b := ring[i], ring[(i+1)%len(ring)]
		mid := Vec{(a.X + b.X) / 2, (a.Y + b.Y) / 2}
		assert.LessOrEqual(t, 3-math.Hypot(mid.X-10, mid.Y+5), 0.01+1e-12)
	}
}

func TestFlattenTinyCircleKeepsMinimumSegments(t *testing.T) {
	shapes := Flatten(&Circle{Radius: 0.001}, 0.01)
	assert.Len(t, shapes[0].Rings[0], minCircleSegments)
}

func TestFlattenArcEndpoints(t *testing.T) {
	a := &Arc{Center: Vec{0, 0}, Radius: 1, Start: 0, End: 90}
	shapes := Flatten(a, 0.001)
	require.Len(t, shapes, 1)
	assert.Equal(t, ShapeLine, shapes[0].Kind)
	pts := shapes[0].Rings[0]
	assert.InDelta(t, 1, pts[0].X, 1e-12)
	assert.InDelta(t, 0, pts[0].Y, 1e-12)
	assert.InDelta(t, 0, pts[len(pts)-1].X, 1e-12)
	assert.InDelta(t, 1, pts[len(pts)-1].Y, 1e-12)

	// дуга через ноль градусов идёт против часовой
	a = &Arc{Radius: 1, Start: 350, End: 10}
	pts = Flatten(a, 0.001)[0].Rings[0]
	for _, p := range pts {
		assert.Greater(t, p.X, 0.98)
	}
}

func TestFlattenBulgeSemicircle(t *testing.T) {
	// bulge 1 - полуокружность против часовой от (0,0) до (2,0)
	p := &Polyline{Vertices: []Vec{{0, 0}, {2, 0}}, Bulges: []float64{1, 0}}
	pts := Flatten(p, 0.001)[0].Rings[0]
	assert.Equal(t, Vec{0, 0}, pts[0])
	assert.Equal(t, Vec{2, 0}, pts[len(pts)-1])
	for _, v := range pts {
		assert.InDelta(t, 1, math.Hypot(v.X-1, v.Y), 1e-9)
		assert.LessOrEqual(t, v.Y, 1e-9)
	}
}

func TestFlattenFullEllipseIsPolygon(t *testing.T) {
	e := &Ellipse{Center: Vec{0, 0}, Major: Vec{2, 0}, Ratio: 0.5, Start: 0, End: 2 * math.Pi}
	shapes := Flatten(e, 0.01)
	assert.Equal(t, ShapePolygon, shapes[0].Kind)
	for _, p := range shapes[0].Rings[0] {
		assert.InDelta(t, 1, p.X*p.X/4+p.Y*p.Y, 1e-9)
	}
}

func TestFlattenSpline(t *testing.T) {
	// квадратичный зажатый сплайн проходит через крайние управляющие точки
	sp := &Spline{Degree: 2, Control: []Vec{{0, 0}, {1, 2}, {2, 0}}}
	pts := Flatten(sp, 0.01)[0].Rings[0]
	assert.InDelta(t, 0, pts[0].X, 1e-12)
	assert.InDelta(t, 2, pts[len(pts)-1].X, 1e-12)
	assert.InDelta(t, 0, pts[len(pts)-1].Y, 1e-12)

	// середина параметра этой кривой Безье - (1, 1)
	mid := deBoor(0.5, 2, clampedKnots(3, 2), sp.Control, nil)
	assert.InDelta(t, 1, mid.X, 1e-12)
	assert.InDelta(t, 1, mid.Y, 1e-12)

	// только точки аппроксимации
	fit := &Spline{Degree: 3, Fit: []Vec{{0, 0}, {1, 1}, {2, 0}}}
	assert.Equal(t, fit.Fit, Flatten(fit, 0.01)[0].Rings[0])
}

func TestFlattenFace(t *testing.T) {
	f := &Face3D{Corners: [4]Vec{{0, 0}, {1, 0}, {1, 1}, {1, 1}}}
	shapes := Flatten(f, 0)
	assert.Equal(t, []Vec{{0, 0}, {1, 0}, {1, 1}}, shapes[0].Rings[0])
}
