package transform

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geocad/internal/dxf"
	"geocad/internal/geocad/geodesy"
	"geocad/internal/geocad/models"
)

func romeDrawing() *models.Drawing {
	return &models.Drawing{ID: "d1", Anchor: &models.LonLat{Lon: 12.4937, Lat: 41.8663}}
}

func TestRomeAnchorScenario(t *testing.T) {
	p := geodesy.NewProjections()
	d := romeDrawing()

	require.NoError(t, Resolve(d, &dxf.Document{}, p))
	assert.Equal(t, 32633, d.EPSG)

	tr, err := Build(d, p)
	require.NoError(t, err)
	assert.True(t, tr.Exact())

	start := tr.ToGeo(orb.Point{0, 0})
	end := tr.ToGeo(orb.Point{10, 0})
	assert.InDelta(t, 12.4937, start[0], 1e-9)
	assert.InDelta(t, 41.8663, start[1], 1e-9)

	assert.Greater(t, end[0]-start[0], 0.0)
	assert.InDelta(t, 10/(111320*math.Cos(41.8663*math.Pi/180)), end[0]-start[0], 2e-6)
	assert.Less(t, math.Abs(end[1]-start[1]), 1e-5)
	assert.InDelta(t, 10, geo.Distance(start, end), 0.05)
}

func TestExactRoundTrip(t *testing.T) {
	p := geodesy.NewProjections()
	d := romeDrawing()
	d.EPSG = 32633
	d.Rotation = 37.5
	d.DesignX, d.DesignY = 1200, -340

	tr, err := Build(d, p)
	require.NoError(t, err)

	for _, l := range []orb.Point{{0, 0}, {1200, -340}, {5000, 2500}, {-750.25, 80.5}} {
		back := tr.ToLocal(tr.ToGeo(l))
		assert.InDelta(t, l[0], back[0], 1e-6)
		assert.InDelta(t, l[1], back[1], 1e-6)
	}

	// точка привязки совпадает с якорем
	g := tr.ToGeo(orb.Point{1200, -340})
	assert.InDelta(t, 12.4937, g[0], 1e-9)
	assert.InDelta(t, 41.8663, g[1], 1e-9)
}

func TestRotationTurnsLocalNorth(t *testing.T) {
	p := geodesy.NewProjections()
	d := romeDrawing()
	d.EPSG = 32633
	d.Rotation = 90

	tr, err := Build(d, p)
	require.NoError(t, err)

	// при повороте на 90° против часовой локальная +Y смотрит на запад
	g := tr.ToGeo(orb.Point{0, 10})
	assert.Less(t, g[0], 12.4937)
	assert.InDelta(t, 10, geo.Distance(g, d.Anchor.Point()), 0.05)
}

func TestTangentFallback(t *testing.T) {
	d := &models.Drawing{Anchor: &models.LonLat{Lon: 10, Lat: 60}, DesignX: 5, DesignY: 5}

	tr, err := Build(d, geodesy.NewProjections())
	require.NoError(t, err)
	assert.False(t, tr.Exact())

	metresPerDegree := EarthRadius * math.Pi / 180
	g := tr.ToGeo(orb.Point{5 + metresPerDegree*0.5, 5 + metresPerDegree})
	assert.InDelta(t, 11, g[0], 1e-9) // cos 60° удваивает шаг по долготе
	assert.InDelta(t, 61, g[1], 1e-9)

	l := tr.ToLocal(g)
	assert.InDelta(t, 5+metresPerDegree*0.5, l[0], 1e-6)
	assert.InDelta(t, 5+metresPerDegree, l[1], 1e-6)
}

func TestTangentRotation(t *testing.T) {
	d := &models.Drawing{Anchor: &models.LonLat{Lon: 0, Lat: 0}, Rotation: 90}
	tr, err := Build(d, geodesy.NewProjections())
	require.NoError(t, err)

	g := tr.ToGeo(orb.Point{0, 1000})
	assert.Less(t, g[0], 0.0)
	assert.InDelta(t, 0, g[1], 1e-12)
}

func TestOrigin(t *testing.T) {
	o := Origin()
	metresPerDegree := EarthRadius * math.Pi / 180

	g := o.ToGeo(orb.Point{metresPerDegree, -metresPerDegree})
	assert.InDelta(t, 1, g[0], 1e-12)
	assert.InDelta(t, -1, g[1], 1e-12)

	l := o.ToLocal(orb.Point{0.25, 0.5})
	assert.InDelta(t, 0.25*metresPerDegree, l[0], 1e-6)
	assert.InDelta(t, 0.5*metresPerDegree, l[1], 1e-6)
}

func TestResolveFromGeoData(t *testing.T) {
	p := geodesy.NewProjections()
	fwd, err := p.Forward(32633)
	require.NoError(t, err)
	ref := fwd(orb.Point{12.4937, 41.8663})

	doc := &dxf.Document{GeoData: dxf.NewGeoData(dxf.Vec{X: 100, Y: 200}, dxf.Vec{X: ref[0], Y: ref[1]}, 30, 32633)}
	d := &models.Drawing{}

	require.NoError(t, Resolve(d, doc, p))
	assert.Equal(t, 32633, d.EPSG)
	assert.InDelta(t, 30, d.Rotation, 1e-9)
	assert.Equal(t, 100.0, d.DesignX)
	assert.Equal(t, 200.0, d.DesignY)
	require.NotNil(t, d.Anchor)
	assert.InDelta(t, 12.4937, d.Anchor.Lon, 1e-9)
	assert.InDelta(t, 41.8663, d.Anchor.Lat, 1e-9)
}

func TestResolveRejectsUnsupportedGeoData(t *testing.T) {
	p := geodesy.NewProjections()

	// швейцарская LV95 провайдеру неизвестна, откат на зону якоря недопустим
	doc := &dxf.Document{GeoData: &dxf.GeoData{EPSG: 2056, North: dxf.Vec{Y: 1}}}
	d := romeDrawing()
	err := Resolve(d, doc, p)
	assert.ErrorIs(t, err, models.ErrUnresolvableReferenceSystem)
	assert.ErrorIs(t, err, geodesy.ErrUnsupportedCRS)
	assert.Equal(t, 0, d.EPSG)
	assert.Equal(t, 12.4937, d.Anchor.Lon)

	// вырожденный вектор севера: GEODATA не используется
	doc = &dxf.Document{GeoData: &dxf.GeoData{EPSG: 32632}}
	d = romeDrawing()
	require.NoError(t, Resolve(d, doc, p))
	assert.Equal(t, 32633, d.EPSG)
}

func TestResolveFromGaussBoagaGeoData(t *testing.T) {
	p := geodesy.NewProjections()
	fwd, err := p.Forward(3004)
	require.NoError(t, err)
	ref := fwd(orb.Point{12.4937, 41.8663})

	doc := &dxf.Document{GeoData: dxf.NewGeoData(dxf.Vec{X: 100, Y: 50}, dxf.Vec{X: ref[0], Y: ref[1]}, 30, 3004)}
	d := &models.Drawing{}
	require.NoError(t, Resolve(d, doc, p))
	assert.Equal(t, 3004, d.EPSG)
	assert.InDelta(t, 30, d.Rotation, 1e-9)
	require.NotNil(t, d.Anchor)
	assert.InDelta(t, 12.4937, d.Anchor.Lon, 1e-8)
	assert.InDelta(t, 41.8663, d.Anchor.Lat, 1e-8)

	tr, err := Build(d, p)
	require.NoError(t, err)
	assert.True(t, tr.Exact())
	g := tr.ToGeo(orb.Point{100, 50})
	assert.InDelta(t, 12.4937, g[0], 1e-8)
	assert.InDelta(t, 41.8663, g[1], 1e-8)
	back := tr.ToLocal(tr.ToGeo(orb.Point{400, -250}))
	assert.InDelta(t, 400, back[0], 1e-6)
	assert.InDelta(t, -250, back[1], 1e-6)
}

func TestResolveOnce(t *testing.T) {
	p := geodesy.NewProjections()
	d := romeDrawing()
	d.EPSG = 32632

	require.NoError(t, Resolve(d, &dxf.Document{}, p))
	assert.Equal(t, 32632, d.EPSG)
}

func TestResolveWithoutAnchor(t *testing.T) {
	d := &models.Drawing{}
	err := Resolve(d, &dxf.Document{}, geodesy.NewProjections())
	assert.ErrorIs(t, err, models.ErrUnresolvableReferenceSystem)

	_, err = Build(d, geodesy.NewProjections())
	assert.ErrorIs(t, err, models.ErrUnresolvableReferenceSystem)

	d.Anchor = &models.LonLat{Lon: 0, Lat: 89}
	err = Resolve(d, &dxf.Document{}, geodesy.NewProjections())
	assert.ErrorIs(t, err, models.ErrUnresolvableReferenceSystem)
}
