package mapper

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/rs/zerolog"

	"geocad/internal/dxf"
	"geocad/internal/geocad/geometry"
	"geocad/internal/geocad/models"
	"geocad/internal/geocad/transform"
)

// ============================================================
// Extractor
// ============================================================

// DefaultEntityCap ограничивает число сущностей одного типа на одном слое,
// извлекаемых из контейнера публичного чертежа.
const DefaultEntityCap = 20

const whiteHex = "#FFFFFF"

type Extractor struct {
	Cap       int
	Tolerance float64
	log       zerolog.Logger
}

func NewExtractor(limit int, log zerolog.Logger) *Extractor {
	return &Extractor{Cap: limit, Tolerance: dxf.DefaultTolerance, log: log}
}

// Result - записи одного извлечения. У Layers и Blocks id назначены
// заранее, чтобы Insertions ссылались на них до сохранения.
type Result struct {
	Layers     []*models.Layer
	Blocks     []*models.Layer
	Insertions []*models.Insertion
	Skipped    int
}

// layerSet хранит слои в порядке создания с поиском без учёта регистра.
type layerSet struct {
	order  []*models.Layer
	byName map[string]*models.Layer
}

func newLayerSet() *layerSet {
	return &layerSet{byName: make(map[string]*models.Layer)}
}

func (s *layerSet) get(name string) *models.Layer {
	return s.byName[strings.ToLower(name)]
}

func (s *layerSet) add(l *models.Layer) *models.Layer {
	s.order = append(s.order, l)
	s.byName[strings.ToLower(l.Name)] = l
	return l
}

// Extract превращает документ в записи слоёв, блоков и вставок d.
// Геометрия переводится в lon/lat через tr, геометрия блоков идёт через
// transform.Origin.
func (x *Extractor) Extract(d *models.Drawing, doc *dxf.Document, tr *transform.Transform) (*Result, error) {
	if doc == nil || tr == nil {
		return nil, fmt.Errorf("extract drawing %s: missing document or transform", d.ID)
	}
	limit := x.Cap
	if d.Private {
		limit = 0
	}
	log := x.log.With().Str("drawing_id", d.ID).Logger()
	res := &Result{}

	// Слои из таблицы
	layers := newLayerSet()
	for _, l := range doc.Layers {
		if models.Blacklisted(l.Name) || layers.get(l.Name) != nil {
			continue
		}
		layers.add(&models.Layer{
			ID:         uuid.NewString(),
			DrawingID:  d.ID,
			Name:       l.Name,
			Color:      dxf.FormatHex(l.RGB()),
			Continuous: l.Continuous(),
			Geometry:   geometry.Collection{},
		})
	}
	if layers.get(models.DefaultLayer) == nil {
		layers.add(x.newLayer(d, models.DefaultLayer))
	}

	// Пространство модели
	var inserts []*dxf.Insert
	budget := newEntityCap(limit)
	for _, e := range doc.Entities {
		name := e.LayerName()
		if models.Blacklisted(name) {
			continue
		}
		if !budget.take(e.Type(), name) {
			continue
		}
		if ins, ok := e.(*dxf.Insert); ok {
			inserts = append(inserts, ins)
			continue
		}
		geoms, err := x.convert(e, tr.ToGeo)
		if err != nil {
			res.Skipped++
			log.Debug().Err(err).Str("type", e.Type()).Str("layer", name).Msg("entity skipped")
			continue
		}
		l := layers.get(name)
		if l == nil {
			l = layers.add(x.newLayer(d, name))
		}
		l.Geometry = l.Geometry.Append(geoms...)
	}

	// Определения блоков, только форма в географическом начале
	origin := transform.Origin()
	blocks := newLayerSet()
	cappedBlocks := make(map[string]*dxf.Block)
	for _, b := range doc.Blocks {
		if models.Blacklisted(b.Name) || b.Name == models.DefaultLayer || blocks.get(b.Name) != nil {
			continue
		}
		cb := &dxf.Block{Name: b.Name, Base: b.Base, Layer: b.Layer}
		blockBudget := newEntityCap(limit)
		for _, e := range b.Entities {
			if blockBudget.take(e.Type(), e.LayerName()) {
				cb.Entities = append(cb.Entities, e)
			}
		}
		toGeo := func(p orb.Point) orb.Point {
			return origin.ToGeo(orb.Point{p[0] - b.Base.X, p[1] - b.Base.Y})
		}

		var coll geometry.Collection
		for _, e := range cb.Entities {
			if _, nested := e.(*dxf.Insert); nested {
				log.Debug().Str("block", b.Name).Msg("nested block reference ignored")
				continue
			}
			geoms, err := x.convert(e, toGeo)
			if err != nil {
				res.Skipped++
				log.Debug().Err(err).Str("type", e.Type()).Str("block", b.Name).Msg("block entity skipped")
				continue
			}
			coll = coll.Append(geoms...)
		}
		if coll.IsEmpty() {
			continue
		}

		color := whiteHex
		if l := doc.Layer(b.Layer); l != nil {
			color = dxf.FormatHex(l.RGB())
		}
		blocks.add(&models.Layer{
			ID:         uuid.NewString(),
			DrawingID:  d.ID,
			Name:       b.Name,
			Color:      color,
			Continuous: true,
			IsBlock:    true,
			Geometry:   coll,
		})
		cappedBlocks[strings.ToLower(b.Name)] = cb
	}

	// Вставки, когда все слои и блоки уже есть
	hosts := make(map[string]bool)
	for _, ins := range inserts {
		if models.Blacklisted(ins.Block) {
			continue
		}
		layer := layers.get(ins.LayerName())
		block := blocks.get(ins.Block)
		if layer == nil || block == nil {
			log.Warn().Err(models.ErrDanglingBlockReference).
				Str("block", ins.Block).Str("layer", ins.LayerName()).Msg("insertion skipped")
			continue
		}

		var cached geometry.Collection
		for _, e := range dxf.Expand(ins, cappedBlocks[strings.ToLower(ins.Block)], x.tolerance()) {
			geoms, err := x.convert(e, tr.ToGeo)
			if err != nil {
				res.Skipped++
				continue
			}
			cached = cached.Append(geoms...)
		}

		res.Insertions = append(res.Insertions, &models.Insertion{
			ID:        uuid.NewString(),
			DrawingID: d.ID,
			BlockID:   block.ID,
			LayerID:   layer.ID,
			Placement: models.Placement{
				Point:    tr.ToGeo(orb.Point{ins.At.X, ins.At.Y}),
				Rotation: ins.Rotation,
				XScale:   ins.XScale,
				YScale:   ins.YScale,
			}.Normalized(),
			Geometry: cached,
		})
		hosts[layer.ID] = true
	}

	for _, l := range layers.order {
		if !l.Geometry.IsEmpty() || l.IsDefault() || hosts[l.ID] {
			res.Layers = append(res.Layers, l)
		}
	}
	res.Blocks = blocks.order

	log.Info().
		Int("layers", len(res.Layers)).
		Int("blocks", len(res.Blocks)).
		Int("insertions", len(res.Insertions)).
		Int("skipped", res.Skipped).
		Msg("drawing extracted")
	return res, nil
}

func (x *Extractor) newLayer(d *models.Drawing, name string) *models.Layer {
	return &models.Layer{
		ID:         uuid.NewString(),
		DrawingID:  d.ID,
		Name:       name,
		Color:      whiteHex,
		Continuous: true,
		Geometry:   geometry.Collection{},
	}
}

func (x *Extractor) tolerance() float64 {
	if x.Tolerance <= 0 {
		return dxf.DefaultTolerance
	}
	return x.Tolerance
}

// entityCap считает сущности по паре (тип, слой) внутри одного контейнера.
// Счётчик растёт до проверки, поэтому проходит limit-1 сущностей пары.
// Нулевой limit пропускает всё.
type entityCap struct {
	limit  int
	counts map[string]int
}

func newEntityCap(limit int) *entityCap {
	return &entityCap{limit: limit, counts: make(map[string]int)}
}

func (c *entityCap) take(typ, layer string) bool {
	if c.limit <= 0 {
		return true
	}
	key := typ + "\x00" + strings.ToLower(layer)
	c.counts[key]++
	return c.counts[key] < c.limit
}

// ============================================================
// Entity conversion
// ============================================================

// convert разворачивает e и переводит каждую вершину через proj.
func (x *Extractor) convert(e dxf.Entity, proj orb.Projection) ([]orb.Geometry, error) {
	shapes := dxf.Flatten(e, x.tolerance())
	if len(shapes) == 0 {
		return nil, fmt.Errorf("%s: %w", e.Type(), models.ErrInvalidPolygon)
	}

	var out []orb.Geometry
	for _, s := range shapes {
		g, err := shapeGeometry(s, proj)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Type(), err)
		}
		out = append(out, g)
	}
	return out, nil
}

func shapeGeometry(s dxf.Shape, proj orb.Projection) (orb.Geometry, error) {
	switch s.Kind {
	case dxf.ShapePoint:
		v := s.Rings[0][0]
		return proj(orb.Point{v.X, v.Y}), nil

	case dxf.ShapeLine:
		pts := dedupe(s.Rings[0], false)
		if len(pts) < 2 {
			return nil, models.ErrInvalidPolygon
		}
		ls := make(orb.LineString, len(pts))
		for i, v := range pts {
			ls[i] = proj(orb.Point{v.X, v.Y})
		}
		return ls, nil

	case dxf.ShapePolygon:
		var poly orb.Polygon
		for i, ring := range s.Rings {
			pts := dedupe(ring, true)
			if len(pts) < 3 || planar.Area(localRing(pts)) == 0 {
				if i == 0 {
					return nil, models.ErrInvalidPolygon
				}
				continue
			}
			r := make(orb.Ring, 0, len(pts)+1)
			for _, v := range pts {
				r = append(r, proj(orb.Point{v.X, v.Y}))
			}
			poly = append(poly, append(r, r[0]))
		}
		return poly, nil
	}
	return nil, models.ErrInvalidPolygon
}

func localRing(pts []dxf.Vec) orb.Ring {
	r := make(orb.Ring, 0, len(pts)+1)
	for _, v := range pts {
		r = append(r, orb.Point{v.X, v.Y})
	}
	return append(r, r[0])
}

// dedupe убирает подряд идущие дубли, у колец ещё и замыкающую вершину.
func dedupe(pts []dxf.Vec, ring bool) []dxf.Vec {
	out := make([]dxf.Vec, 0, len(pts))
	for _, p := range pts {
		if n := len(out); n > 0 && out[n-1] == p {
			continue
		}
		out = append(out, p)
	}
	if n := len(out); ring && n > 2 && out[0] == out[n-1] {
		out = out[:n-1]
	}
	return out
}
