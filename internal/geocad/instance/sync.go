package instance

import (
	"github.com/paulmach/orb"

	"geocad/internal/dxf"
	"geocad/internal/geocad/geometry"
	"geocad/internal/geocad/models"
	"geocad/internal/geocad/transform"
)

// ============================================================
// Instance Synchronizer
// ============================================================

// Resync размещает геометрию блока по p и возвращает кэш геометрии
// вставки. Масштаб и поворот применяются в локальной системе чертежа:
// форма блока -> масштаб -> поворот -> перенос в локальную позицию p.Point
// -> lon/lat.
func Resync(block geometry.Collection, p models.Placement, tr *transform.Transform) geometry.Collection {
	p = p.Normalized()
	origin := transform.Origin()
	at := tr.ToLocal(p.Point)
	m := dxf.Placement(dxf.Vec{X: at[0], Y: at[1]}, p.Rotation, p.XScale, p.YScale)

	return block.Map(func(g orb.Point) orb.Point {
		l := origin.ToLocal(g)
		x, y := m.Apply(l[0], l[1])
		return tr.ToGeo(orb.Point{x, y})
	})
}

// Changed сообщает, нужен ли пересчёт при переходе от old к cur.
func Changed(old, cur models.Placement) bool {
	old, cur = old.Normalized(), cur.Normalized()
	return old.Point != cur.Point ||
		old.Rotation != cur.Rotation ||
		old.XScale != cur.XScale ||
		old.YScale != cur.YScale
}
