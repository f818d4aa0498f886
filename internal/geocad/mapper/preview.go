package mapper

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"geocad/internal/geocad/geometry"
	"geocad/internal/geocad/models"
)

// ============================================================
// Preview
// ============================================================

// Preview рисует видимые слои и кэш геометрии вставок чертежа в SVG
// в проекции Web Mercator шириной width пикселей. Блоки отдельно не
// рисуются, они существуют только в начале координат.
func Preview(layers []*models.Layer, insertions []*models.Insertion, width float64) []byte {
	if width <= 0 {
		width = 800
	}

	byID := make(map[string]*models.Layer, len(layers))
	var bound orb.Bound
	seeded := false
	extend := func(c geometry.Collection) {
		for _, g := range c {
			b := project.Geometry(orb.Clone(g), project.WGS84.ToMercator).Bound()
			if !seeded {
				bound, seeded = b, true
				continue
			}
			bound = bound.Union(b)
		}
	}
	for _, l := range layers {
		byID[l.ID] = l
		if !l.IsBlock {
			extend(l.Geometry)
		}
	}
	for _, ins := range insertions {
		extend(ins.Geometry)
	}

	dx, dy := bound.Max[0]-bound.Min[0], bound.Max[1]-bound.Min[1]
	span := math.Max(dx, dy)
	if span == 0 {
		span = 1
	}
	scale := width / span
	height := math.Max(dy*scale, 1)
	toPixel := func(p orb.Point) orb.Point {
		m := project.WGS84.ToMercator(p)
		return orb.Point{(m[0] - bound.Min[0]) * scale, (bound.Max[1] - m[1]) * scale}
	}

	var out strings.Builder
	fmt.Fprintf(&out, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`,
		formatFloat(width), formatFloat(height), formatFloat(width), formatFloat(height))
	out.WriteString("\n")

	for _, l := range layers {
		if l.IsBlock || l.Geometry.IsEmpty() {
			continue
		}
		writeGroup(&out, l.Name, l.Color, l.Continuous, l.Geometry.Map(toPixel))
	}
	for _, ins := range insertions {
		l := byID[ins.LayerID]
		if l == nil || ins.Geometry.IsEmpty() {
			continue
		}
		writeGroup(&out, l.Name, l.Color, l.Continuous, ins.Geometry.Map(toPixel))
	}
	out.WriteString("</svg>\n")
	return []byte(out.String())
}

func writeGroup(out *strings.Builder, name, color string, continuous bool, c geometry.Collection) {
	dash := ""
	if !continuous {
		dash = ` stroke-dasharray="4 2"`
	}
	fmt.Fprintf(out, `<g data-layer="%s" stroke="%s" fill="none"%s>`, escape(name), color, dash)
	for _, g := range c {
		switch v := g.(type) {
		case orb.Point:
			fmt.Fprintf(out, `<circle cx="%s" cy="%s" r="2" fill="%s" />`, formatFloat(v[0]), formatFloat(v[1]), color)
		case orb.LineString:
			fmt.Fprintf(out, `<polyline points="%s" />`, formatPoints(v))
		case orb.Polygon:
			var d strings.Builder
			for _, ring := range v {
				for i, p := range ring {
					if i == 0 {
						d.WriteString("M ")
					} else {
						d.WriteString(" L ")
					}
					d.WriteString(formatPoint(p))
				}
				d.WriteString(" Z ")
			}
			fmt.Fprintf(out, `<path d="%s" fill-opacity="0.2" fill="%s" />`, strings.TrimSpace(d.String()), color)
		}
	}
	out.WriteString("</g>\n")
}

func escape(s string) string {
	return strings.NewReplacer("&", "&amp;", `"`, "&quot;", "<", "&lt;", ">", "&gt;").Replace(s)
}

func formatPoints(ls orb.LineString) string {
	parts := make([]string, len(ls))
	for i, p := range ls {
		parts[i] = formatFloat(p[0]) + "," + formatFloat(p[1])
	}
	return strings.Join(parts, " ")
}

func formatFloat(val float64) string {
	return strconv.FormatFloat(math.Round(val*100)/100, 'f', -1, 64)
}

func formatPoint(p orb.Point) string {
	return formatFloat(p[0]) + " " + formatFloat(p[1])
}
