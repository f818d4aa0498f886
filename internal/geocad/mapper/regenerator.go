package mapper

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"geocad/internal/dxf"
	"geocad/internal/geocad/models"
	"geocad/internal/geocad/transform"
)

// ============================================================
// Regenerator
// ============================================================

type Regenerator struct {
	log zerolog.Logger
}

func NewRegenerator(log zerolog.Logger) *Regenerator {
	return &Regenerator{log: log}
}

// Regenerate собирает CAD-документ из сохранённых записей: слои в
// локальных координатах, блоки в начале и по одному INSERT на вставку.
// GEODATA пишется, если у чертежа проекционная CRS, поэтому повторное
// чтение результата даёт то же преобразование.
func (r *Regenerator) Regenerate(d *models.Drawing, layers []*models.Layer, insertions []*models.Insertion, tr *transform.Transform) (*dxf.Document, error) {
	if tr == nil {
		return nil, fmt.Errorf("regenerate drawing %s: missing transform", d.ID)
	}
	log := r.log.With().Str("drawing_id", d.ID).Logger()
	doc := dxf.New()

	byID := make(map[string]*models.Layer, len(layers))
	hasDefault := false
	for _, l := range layers {
		byID[l.ID] = l
		if !l.IsBlock && l.IsDefault() {
			hasDefault = true
		}
	}
	if !hasDefault {
		doc.AddLayer(models.DefaultLayer, 0xFFFFFF, "")
	}

	// Слои
	for _, l := range layers {
		if l.IsBlock {
			continue
		}
		doc.AddLayer(l.Name, parseColor(l.Color), linetype(l.Continuous))
		doc.Add(entities(l.Name, l.Geometry.Map(tr.ToLocal))...)
	}

	// Блоки
	origin := transform.Origin()
	for _, l := range layers {
		if !l.IsBlock {
			continue
		}
		blk := doc.AddBlock(l.Name, dxf.Vec{})
		blk.Add(entities(models.DefaultLayer, l.Geometry.Map(origin.ToLocal))...)
	}

	// Вставки
	for _, ins := range insertions {
		layer, block := byID[ins.LayerID], byID[ins.BlockID]
		if layer == nil || block == nil || !block.IsBlock {
			log.Warn().Err(models.ErrDanglingBlockReference).Str("insertion_id", ins.ID).Msg("insertion not written")
			continue
		}
		p := ins.Placement.Normalized()
		at := tr.ToLocal(p.Point)
		doc.Add(dxf.NewInsert(layer.Name, block.Name, dxf.Vec{X: at[0], Y: at[1]}, p.Rotation, p.XScale, p.YScale))
	}

	if tr.Exact() {
		doc.GeoData = dxf.NewGeoData(
			dxf.Vec{X: tr.Design[0], Y: tr.Design[1]},
			dxf.Vec{X: tr.Reference[0], Y: tr.Reference[1]},
			tr.Rotation*180/math.Pi,
			tr.EPSG,
		)
	}
	return doc, nil
}

// entities превращает примитивы в локальных координатах в сущности CAD.
// Полигоны из одного кольца становятся замкнутыми полилиниями, с дырами - штриховками.
func entities(layer string, local []orb.Geometry) []dxf.Entity {
	var out []dxf.Entity
	for _, g := range local {
		switch g := g.(type) {
		case orb.Point:
			out = append(out, dxf.NewPoint(layer, dxf.Vec{X: g[0], Y: g[1]}))
		case orb.LineString:
			out = append(out, dxf.NewPolyline(layer, vecs(g), false))
		case orb.Polygon:
			if len(g) == 0 {
				continue
			}
			if len(g) == 1 {
				out = append(out, dxf.NewPolyline(layer, openVecs(g[0]), true))
				continue
			}
			paths := make([][]dxf.Vec, 0, len(g))
			for _, ring := range g {
				paths = append(paths, openVecs(ring))
			}
			out = append(out, dxf.NewHatch(layer, paths))
		}
	}
	return out
}

func vecs(pts []orb.Point) []dxf.Vec {
	out := make([]dxf.Vec, len(pts))
	for i, p := range pts {
		out[i] = dxf.Vec{X: p[0], Y: p[1]}
	}
	return out
}

// openVecs отбрасывает замыкающую вершину кольца.
func openVecs(r orb.Ring) []dxf.Vec {
	v := vecs(r)
	if n := len(v); n > 1 && v[0] == v[n-1] {
		v = v[:n-1]
	}
	return v
}

func parseColor(hex string) int {
	rgb, err := dxf.ParseHex(hex)
	if err != nil {
		return 0xFFFFFF
	}
	return rgb
}

func linetype(continuous bool) string {
	if continuous {
		return "CONTINUOUS"
	}
	return "DASHED"
}
