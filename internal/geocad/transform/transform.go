package transform

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"seehuhn.de/go/geom/matrix"

	"geocad/internal/dxf"
	"geocad/internal/geocad/geodesy"
	"geocad/internal/geocad/models"
)

// ============================================================
// Transform Pipeline
// ============================================================

// EarthRadius - средний радиус для приближения касательной плоскостью.
const EarthRadius = 6371000.0

// Transform переводит локальные координаты CAD чертежа в географические
// (lon, lat) градусы и обратно.
type Transform struct {
	ToGeo   orb.Projection
	ToLocal orb.Projection

	Rotation  float64   // радианы, против часовой
	EPSG      int       // 0 для касательной плоскости
	Reference orb.Point // якорь в единицах CRS или lon/lat для касательной плоскости
	Design    orb.Point
}

// Exact сообщает, идёт ли преобразование через проекционную CRS.
func (t *Transform) Exact() bool {
	return t.EPSG != 0
}

// Build возвращает преобразование d. Чертежи с определённым EPSG
// проецируются точно, остальные используют касательную плоскость в якоре.
func Build(d *models.Drawing, p geodesy.Provider) (*Transform, error) {
	if d.Anchor == nil {
		return nil, fmt.Errorf("drawing %s has no anchor: %w", d.ID, models.ErrUnresolvableReferenceSystem)
	}
	rot := d.Rotation * math.Pi / 180
	design := orb.Point{d.DesignX, d.DesignY}

	if d.EPSG == 0 {
		return tangent(d.Anchor.Point(), design, rot), nil
	}

	fwd, err := p.Forward(d.EPSG)
	if err != nil {
		return nil, fmt.Errorf("forward EPSG:%d: %w", d.EPSG, err)
	}
	inv, err := p.Inverse(d.EPSG)
	if err != nil {
		return nil, fmt.Errorf("inverse EPSG:%d: %w", d.EPSG, err)
	}
	ref := fwd(d.Anchor.Point())

	// проекция -> локальные
	m := matrix.Translate(-ref[0], -ref[1]).
		Mul(matrix.Rotate(-rot)).
		Mul(matrix.Translate(design[0], design[1]))
	mi := m.Inv()

	return &Transform{
		ToLocal: func(g orb.Point) orb.Point {
			xy := fwd(g)
			x, y := m.Apply(xy[0], xy[1])
			return orb.Point{x, y}
		},
		ToGeo: func(l orb.Point) orb.Point {
			x, y := mi.Apply(l[0], l[1])
			return inv(orb.Point{x, y})
		},
		Rotation:  rot,
		EPSG:      d.EPSG,
		Reference: ref,
		Design:    design,
	}, nil
}

// Origin - касательная плоскость в (0°, 0°) без поворота. Через неё
// хранятся определения блоков, чтобы не зависеть от якоря.
func Origin() *Transform {
	return tangent(orb.Point{0, 0}, orb.Point{0, 0}, 0)
}

// tangent приближает Землю плоскостью, касающейся её в якоре: x метров
// на восток - это x / (R·|cos lat0|) радиан долготы, y метров на север -
// это y / R радиан широты.
func tangent(anchor, design orb.Point, rot float64) *Transform {
	lat0 := anchor[1] * math.Pi / 180
	gx := 1 / (EarthRadius * math.Abs(math.Cos(lat0)))
	gy := 1 / EarthRadius

	// локальные -> метры на восток и север от якоря
	m := matrix.Translate(-design[0], -design[1]).Mul(matrix.Rotate(rot))
	mi := m.Inv()

	return &Transform{
		ToGeo: func(l orb.Point) orb.Point {
			x, y := m.Apply(l[0], l[1])
			return orb.Point{
				anchor[0] + x*gx*180/math.Pi,
				anchor[1] + y*gy*180/math.Pi,
			}
		},
		ToLocal: func(g orb.Point) orb.Point {
			x := (g[0] - anchor[0]) * math.Pi / 180 / gx
			y := (g[1] - anchor[1]) * math.Pi / 180 / gy
			lx, ly := mi.Apply(x, y)
			return orb.Point{lx, ly}
		},
		Rotation:  rot,
		Reference: anchor,
		Design:    design,
	}
}

// ============================================================
// Reference system resolution
// ============================================================

// Resolve один раз определяет EPSG чертежа. GEODATA в файле важнее якоря:
// при ненулевом векторе севера чертёж берёт из неё CRS, точку привязки,
// поворот и якорь. GEODATA с CRS, которую не умеет провайдер, даёт
// ErrUnresolvableReferenceSystem, а не тихий откат на UTM. Без GEODATA
// берётся зона UTM якоря. Уже определённый EPSG не меняется.
func Resolve(d *models.Drawing, doc *dxf.Document, p geodesy.Provider) error {
	if d.EPSG != 0 {
		return nil
	}

	if g := doc.GeoData; g != nil && g.EPSG != 0 && (g.North.X != 0 || g.North.Y != 0) {
		inv, err := p.Inverse(g.EPSG)
		if err != nil {
			return fmt.Errorf("%w: embedded geodata: %w", models.ErrUnresolvableReferenceSystem, err)
		}
		anchor := inv(orb.Point{g.Reference.X, g.Reference.Y})
		d.EPSG = g.EPSG
		d.Anchor = &models.LonLat{Lon: anchor[0], Lat: anchor[1]}
		d.DesignX, d.DesignY = g.Design.X, g.Design.Y
		d.Rotation = g.Rotation()
		return nil
	}

	if d.Anchor == nil {
		return models.ErrUnresolvableReferenceSystem
	}
	epsg, err := p.UTMZone(d.Anchor.Point())
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrUnresolvableReferenceSystem, err)
	}
	d.EPSG = epsg
	return nil
}
