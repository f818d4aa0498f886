package instance

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geocad/internal/geocad/geodesy"
	"geocad/internal/geocad/geometry"
	"geocad/internal/geocad/models"
	"geocad/internal/geocad/transform"
)

func buildTransform(t *testing.T) *transform.Transform {
	t.Helper()
	d := &models.Drawing{ID: "d", Anchor: &models.LonLat{Lon: 12.4937, Lat: 41.8663}, EPSG: 32633, Rotation: 15}
	tr, err := transform.Build(d, geodesy.NewProjections())
	require.NoError(t, err)
	return tr
}

func blockB() geometry.Collection {
	o := transform.Origin()
	return geometry.Collection{orb.LineString{o.ToGeo(orb.Point{0, 0}), o.ToGeo(orb.Point{1, 0})}}
}

func TestResyncBlockScenario(t *testing.T) {
	tr := buildTransform(t)
	local := orb.Point{250, -40}
	p := models.Placement{Point: tr.ToGeo(local), Rotation: 90, XScale: 2, YScale: 1}

	got := Resync(blockB(), p, tr)
	require.Len(t, got, 1)
	ls, ok := got[0].(orb.LineString)
	require.True(t, ok)
	require.Len(t, ls, 2)

	want := geometry.Collection{orb.LineString{
		tr.ToGeo(local),
		tr.ToGeo(orb.Point{local[0], local[1] + 2}),
	}}
	assert.True(t, want.Equal(got, 1e-9), "got %v want %v", got, want)
}

func TestResyncIdempotent(t *testing.T) {
	tr := buildTransform(t)
	p := models.Placement{Point: tr.ToGeo(orb.Point{10, 10}), Rotation: 33, XScale: 1.5, YScale: -1}
	block := blockB().Append(orb.Polygon{{
		{0, 0}, {0.0001, 0}, {0.0001, 0.0001}, {0, 0},
	}})

	first := Resync(block, p, tr)
	second := Resync(block, p, tr)
	assert.True(t, first.Equal(second, 0))

	// сам блок не меняется
	assert.True(t, block.Equal(blockB().Append(orb.Polygon{{{0, 0}, {0.0001, 0}, {0.0001, 0.0001}, {0, 0}}}), 0))
}

func TestResyncZeroScaleMeansOne(t *testing.T) {
	tr := buildTransform(t)
	p := models.Placement{Point: tr.ToGeo(orb.Point{0, 0})}
	q := p
	q.XScale, q.YScale = 1, 1
	assert.True(t, Resync(blockB(), p, tr).Equal(Resync(blockB(), q, tr), 0))
}

func TestChanged(t *testing.T) {
	base := models.Placement{Point: orb.Point{12, 41}, Rotation: 10, XScale: 1, YScale: 1}

	assert.False(t, Changed(base, base))
	assert.False(t, Changed(base, models.Placement{Point: orb.Point{12, 41}, Rotation: 370}))

	moved := base
	moved.Point = orb.Point{12, 41.0001}
	assert.True(t, Changed(base, moved))

	turned := base
	turned.Rotation = 11
	assert.True(t, Changed(base, turned))

	scaled := base
	scaled.YScale = 2
	assert.True(t, Changed(base, scaled))
}
