package dxf

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ============================================================
// GEODATA
// ============================================================

// GeoData - объект географической привязки чертежа. Reference задан
// в единицах системы координат с кодом EPSG.
type GeoData struct {
	Design    Vec
	Reference Vec
	North     Vec // единичный вектор истинного севера в координатах чертежа
	EPSG      int
	CRS       string // исходное описание системы координат (XML)
}

var (
	epsgAliasRe = regexp.MustCompile(`<Alias id="(\d+)" type="CoordinateSystem">`)
	epsgCodeRe  = regexp.MustCompile(`EPSG:(\d+)`)
)

func parseGeoData(tags []Tag) *GeoData {
	g := &GeoData{North: Vec{Y: 1}}
	var crs strings.Builder
	for _, t := range tags {
		switch t.Code {
		case 10:
			g.Design.X = t.AsFloat()
		case 20:
			g.Design.Y = t.AsFloat()
		case 11:
			g.Reference.X = t.AsFloat()
		case 21:
			g.Reference.Y = t.AsFloat()
		case 12:
			g.North.X = t.AsFloat()
		case 22:
			g.North.Y = t.AsFloat()
		case 301, 303:
			crs.WriteString(t.Value)
		}
	}
	g.CRS = crs.String()
	g.EPSG = ParseEPSG(g.CRS)
	return g
}

// ParseEPSG достаёт код EPSG из описания системы координат, 0 если
// кода нет.
func ParseEPSG(def string) int {
	for _, re := range []*regexp.Regexp{epsgAliasRe, epsgCodeRe} {
		if m := re.FindStringSubmatch(def); m != nil {
			if code, err := strconv.Atoi(m[1]); err == nil {
				return code
			}
		}
	}
	return 0
}

// Rotation возвращает угол по часовой в градусах от оси +Y чертежа до
// истинного севера.
func (g *GeoData) Rotation() float64 {
	if g.North.X == 0 && g.North.Y == 0 {
		return 0
	}
	return math.Atan2(g.North.X, g.North.Y) * 180 / math.Pi
}

// NewGeoData собирает объект, который пишется при экспорте.
func NewGeoData(design, reference Vec, rotationDeg float64, epsg int) *GeoData {
	r := rotationDeg * math.Pi / 180
	return &GeoData{
		Design:    design,
		Reference: reference,
		North:     Vec{X: math.Sin(r), Y: math.Cos(r)},
		EPSG:      epsg,
		CRS:       crsDefinition(epsg),
	}
}

func crsDefinition(epsg int) string {
	if epsg == 0 {
		return ""
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-16" standalone="no" ?>`+
		`<Dictionary version="1.0" xmlns="http://www.osgeo.org/mapguide/coordinatesystem">`+
		`<Alias id="%d" type="CoordinateSystem"><ObjectId>EPSG:%d</ObjectId><Namespace>EPSG Code</Namespace></Alias>`+
		`</Dictionary>`, epsg, epsg)
}
