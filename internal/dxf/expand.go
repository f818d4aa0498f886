package dxf

import (
	"seehuhn.de/go/geom/matrix"
)

// ============================================================
// Block expansion
// ============================================================

// InsertMatrix переводит координаты блока в координаты контейнера,
// где стоит ins: базовая точка уходит в ноль, затем применяются масштаб,
// поворот и положение вставки.
func InsertMatrix(ins *Insert, blk *Block) matrix.Matrix {
	var base Vec
	if blk != nil {
		base = blk.Base
	}
	return matrix.Translate(-base.X, -base.Y).
		Mul(Placement(ins.At, ins.Rotation, scaleOrOne(ins.XScale), scaleOrOne(ins.YScale)))
}

// Placement масштабирует, поворачивает на rotDeg градусов против часовой
// стрелки и переносит в at.
func Placement(at Vec, rotDeg, sx, sy float64) matrix.Matrix {
	return matrix.Scale(sx, sy).Mul(matrix.RotateDeg(rotDeg)).Mul(matrix.Translate(at.X, at.Y))
}

func scaleOrOne(s float64) float64 {
	if s == 0 {
		return 1
	}
	return s
}

// Expand возвращает сущности blk в том виде, как их размещает ins.
// Вложенные INSERT не раскрываются.
func Expand(ins *Insert, blk *Block, tol float64) []Entity {
	if blk == nil {
		return nil
	}
	m := InsertMatrix(ins, blk)
	out := make([]Entity, 0, len(blk.Entities))
	for _, e := range blk.Entities {
		if t := Transform(e, m, tol); t != nil {
			out = append(out, t)
		}
	}
	return out
}

// Transform переводит сущность через m. Кривые сначала разворачиваются,
// поэтому результат всегда Point, Line, Polyline или Hatch.
func Transform(e Entity, m matrix.Matrix, tol float64) Entity {
	apply := func(v Vec) Vec {
		x, y := m.Apply(v.X, v.Y)
		return Vec{X: x, Y: y}
	}
	mapAll := func(pts []Vec) []Vec {
		out := make([]Vec, len(pts))
		for i, p := range pts {
			out[i] = apply(p)
		}
		return out
	}
	layer := base{Layer: e.LayerName()}

	switch e := e.(type) {
	case *Insert:
		return nil
	case *Point:
		return &Point{base: layer, At: apply(e.At)}
	case *Line:
		return &Line{base: layer, Start: apply(e.Start), End: apply(e.End)}
	case *Hatch:
		h := &Hatch{base: layer, Pattern: e.Pattern, Solid: e.Solid}
		for _, p := range e.Paths {
			h.Paths = append(h.Paths, mapAll(p))
		}
		return h
	case *Polyline:
		if !e.hasBulges() {
			return &Polyline{base: layer, Vertices: mapAll(e.Vertices), Closed: e.Closed, Legacy: e.Legacy}
		}
	}

	shapes := Flatten(e, tol)
	if len(shapes) == 0 || len(shapes[0].Rings) == 0 {
		return nil
	}
	s := shapes[0]
	return &Polyline{base: layer, Vertices: mapAll(s.Rings[0]), Closed: s.Kind == ShapePolygon}
}
