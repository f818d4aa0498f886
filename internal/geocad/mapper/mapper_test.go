package mapper

import (
	"bytes"
	"testing"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geocad/internal/dxf"
	"geocad/internal/geocad/geodesy"
	"geocad/internal/geocad/geometry"
	"geocad/internal/geocad/instance"
	"geocad/internal/geocad/models"
	"geocad/internal/geocad/transform"
)

func romeDrawing() *models.Drawing {
	return &models.Drawing{ID: "d1", Anchor: &models.LonLat{Lon: 12.4937, Lat: 41.8663}, EPSG: 32633, Rotation: 12}
}

func build(t *testing.T, d *models.Drawing) *transform.Transform {
	t.Helper()
	tr, err := transform.Build(d, geodesy.NewProjections())
	require.NoError(t, err)
	return tr
}

func layerByName(layers []*models.Layer, name string) *models.Layer {
	for _, l := range layers {
		if l.Name == name {
			return l
		}
	}
	return nil
}

func TestExtractEntityCap(t *testing.T) {
	doc := dxf.New()
	doc.AddLayer("lines", 0xFF0000, "")
	for i := 0; i < 50; i++ {
		doc.Add(&dxf.Line{Start: dxf.Vec{X: float64(i)}, End: dxf.Vec{X: float64(i), Y: 1}})
	}
	for i := range doc.Entities {
		doc.Entities[i].(*dxf.Line).Layer = "lines"
	}
	d := romeDrawing()
	tr := build(t, d)

	res, err := NewExtractor(20, zerolog.Nop()).Extract(d, doc, tr)
	require.NoError(t, err)
	l := layerByName(res.Layers, "lines")
	require.NotNil(t, l)
	assert.Len(t, l.Geometry, 19)

	d.Private = true
	res, err = NewExtractor(20, zerolog.Nop()).Extract(d, doc, tr)
	require.NoError(t, err)
	assert.Len(t, layerByName(res.Layers, "lines").Geometry, 50)
}

func TestExtractCapIsPerTypeAndContainer(t *testing.T) {
	doc := dxf.New()
	for i := 0; i < 5; i++ {
		doc.Add(dxf.NewPoint("a", dxf.Vec{X: float64(i)}))
		doc.Add(dxf.NewPolyline("a", []dxf.Vec{{X: 0}, {X: float64(i + 1)}}, false))
	}
	blk := doc.AddBlock("B", dxf.Vec{})
	for i := 0; i < 5; i++ {
		blk.Add(dxf.NewPoint("0", dxf.Vec{Y: float64(i)}))
	}
	d := romeDrawing()

	res, err := NewExtractor(3, zerolog.Nop()).Extract(d, doc, build(t, d))
	require.NoError(t, err)
	assert.Len(t, layerByName(res.Layers, "a").Geometry, 4) // 2 точки + 2 полилинии
	require.Len(t, res.Blocks, 1)
	assert.Len(t, res.Blocks[0].Geometry, 2)
}

func TestExtractCapIsPerLayer(t *testing.T) {
	doc := dxf.New()
	line := func(layer string, i int) *dxf.Line {
		l := &dxf.Line{Start: dxf.Vec{X: float64(i)}, End: dxf.Vec{X: float64(i), Y: 1}}
		l.Layer = layer
		return l
	}
	// служебный слой идёт первым и не должен съедать лимит
	for i := 0; i < 19; i++ {
		doc.Add(line("Defpoints", i))
	}
	for i := 0; i < 10; i++ {
		doc.Add(line("A", i), line("B", i))
	}
	for i := 0; i < 30; i++ {
		doc.Add(line("C", i))
	}
	blk := doc.AddBlock("door", dxf.Vec{})
	blk.Add(dxf.NewPoint("0", dxf.Vec{}))
	for i := 0; i < 25; i++ {
		doc.Add(dxf.NewInsert("A", "door", dxf.Vec{X: float64(i)}, 0, 1, 1))
	}
	d := romeDrawing()

	res, err := NewExtractor(20, zerolog.Nop()).Extract(d, doc, build(t, d))
	require.NoError(t, err)

	a := layerByName(res.Layers, "A")
	require.NotNil(t, a)
	assert.Len(t, a.Geometry, 10)
	b := layerByName(res.Layers, "B")
	require.NotNil(t, b)
	assert.Len(t, b.Geometry, 10)
	assert.Len(t, layerByName(res.Layers, "C").Geometry, 19)
	assert.Nil(t, layerByName(res.Layers, "Defpoints"))

	// вставки считаются отдельно от линий того же слоя
	assert.Len(t, res.Insertions, 19)
}

func TestExtractCapLayerNamesIgnoreCase(t *testing.T) {
	doc := dxf.New()
	for i := 0; i < 3; i++ {
		doc.Add(dxf.NewPoint("walls", dxf.Vec{X: float64(i)}), dxf.NewPoint("WALLS", dxf.Vec{Y: float64(i)}))
	}
	d := romeDrawing()

	res, err := NewExtractor(4, zerolog.Nop()).Extract(d, doc, build(t, d))
	require.NoError(t, err)
	assert.Len(t, layerByName(res.Layers, "walls").Geometry, 3)
}

func TestExtractLayers(t *testing.T) {
	doc := dxf.New()
	doc.AddLayer("walls", 0x00FF00, "DASHED")
	doc.AddLayer("empty", 0x0000FF, "")
	doc.AddLayer("Defpoints", 0xFFFFFF, "")
	doc.Add(
		dxf.NewPolyline("walls", []dxf.Vec{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}, true),
		dxf.NewPoint("defpoints", dxf.Vec{X: 1, Y: 1}),
		dxf.NewPoint("adhoc", dxf.Vec{X: 2, Y: 2}),
		// вырожденный полигон пропускается
		dxf.NewPolyline("walls", []dxf.Vec{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 0}}, true),
	)
	d := romeDrawing()

	res, err := NewExtractor(0, zerolog.Nop()).Extract(d, doc, build(t, d))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)

	def := layerByName(res.Layers, "0")
	require.NotNil(t, def)
	assert.False(t, def.IsBlock)
	assert.True(t, def.Geometry.IsEmpty())

	walls := layerByName(res.Layers, "walls")
	require.NotNil(t, walls)
	assert.Equal(t, "#00FF00", walls.Color)
	assert.False(t, walls.Continuous)
	require.Len(t, walls.Geometry, 1)
	poly := walls.Geometry[0].(orb.Polygon)
	assert.Len(t, poly[0], 4)
	assert.Equal(t, poly[0][0], poly[0][3])

	adhoc := layerByName(res.Layers, "adhoc")
	require.NotNil(t, adhoc)
	assert.Equal(t, "#FFFFFF", adhoc.Color)

	assert.Nil(t, layerByName(res.Layers, "empty"))
	assert.Nil(t, layerByName(res.Layers, "Defpoints"))
	for _, l := range res.Layers {
		assert.Equal(t, "d1", l.DrawingID)
		assert.NotEmpty(t, l.ID)
	}
}

func TestExtractInsertions(t *testing.T) {
	doc := dxf.New()
	doc.AddLayer("furniture", 0x123456, "")
	blk := doc.AddBlock("B", dxf.Vec{X: 1, Y: 1})
	blk.Add(dxf.NewPolyline("0", []dxf.Vec{{X: 1, Y: 1}, {X: 2, Y: 1}}, false))
	doc.AddBlock("EMPTY", dxf.Vec{})
	doc.AddBlock("*Paper_Space", dxf.Vec{}).Add(dxf.NewPoint("0", dxf.Vec{}))
	doc.Add(
		dxf.NewInsert("furniture", "B", dxf.Vec{X: 100, Y: 50}, 90, 2, 1),
		dxf.NewInsert("furniture", "missing", dxf.Vec{}, 0, 1, 1),
		dxf.NewInsert("furniture", "EMPTY", dxf.Vec{}, 0, 1, 1),
		dxf.NewInsert("nolayer", "B", dxf.Vec{}, 0, 1, 1),
	)
	d := romeDrawing()
	tr := build(t, d)

	res, err := NewExtractor(0, zerolog.Nop()).Extract(d, doc, tr)
	require.NoError(t, err)

	require.Len(t, res.Blocks, 1)
	b := res.Blocks[0]
	assert.Equal(t, "B", b.Name)
	assert.True(t, b.IsBlock)

	// у геометрии блока убрана базовая точка, она лежит в начале
	local := b.Geometry.Map(transform.Origin().ToLocal)
	want := geometry.Collection{orb.LineString{{0, 0}, {1, 0}}}
	assert.True(t, want.Equal(local, 1e-9))

	// слой furniture остаётся, потому что на нём есть вставка
	furniture := layerByName(res.Layers, "furniture")
	require.NotNil(t, furniture)
	assert.True(t, furniture.Geometry.IsEmpty())

	require.Len(t, res.Insertions, 1)
	ins := res.Insertions[0]
	assert.Equal(t, b.ID, ins.BlockID)
	assert.Equal(t, furniture.ID, ins.LayerID)
	assert.Equal(t, 90.0, ins.Rotation)
	assert.Equal(t, 2.0, ins.XScale)

	at := tr.ToLocal(ins.Point)
	assert.InDelta(t, 100, at[0], 1e-6)
	assert.InDelta(t, 50, at[1], 1e-6)

	expected := geometry.Collection{orb.LineString{
		tr.ToGeo(orb.Point{100, 50}),
		tr.ToGeo(orb.Point{100, 52}),
	}}
	assert.True(t, expected.Equal(ins.Geometry, 1e-9))

	// кэш совпадает с тем, что даст пересчёт
	assert.True(t, instance.Resync(b.Geometry, ins.Placement, tr).Equal(ins.Geometry, 1e-9))
}

func TestExtractRequiresTransform(t *testing.T) {
	_, err := NewExtractor(0, zerolog.Nop()).Extract(romeDrawing(), dxf.New(), nil)
	assert.Error(t, err)
}

func TestRegenerateRoundTrip(t *testing.T) {
	src := dxf.New()
	src.AddLayer("walls", 0xAA5500, "")
	src.AddLayer("doors", 0x00AAFF, "DASHED")
	src.Add(
		dxf.NewPolyline("walls", []dxf.Vec{{X: 0, Y: 0}, {X: 20, Y: 0}, {X: 20, Y: 12}, {X: 0, Y: 12}}, true),
		dxf.NewPolyline("walls", []dxf.Vec{{X: -5, Y: 3}, {X: 40, Y: 8}}, false),
		dxf.NewPoint("doors", dxf.Vec{X: 3.25, Y: 7.5}),
		&dxf.Circle{Center: dxf.Vec{X: 30, Y: 30}, Radius: 4},
		dxf.NewHatch("doors", [][]dxf.Vec{
			{{X: 50, Y: 50}, {X: 60, Y: 50}, {X: 60, Y: 60}, {X: 50, Y: 60}},
			{{X: 52, Y: 52}, {X: 54, Y: 52}, {X: 54, Y: 54}},
		}),
	)
	blk := src.AddBlock("chair", dxf.Vec{X: 0.5, Y: 0.5})
	blk.Add(dxf.NewPolyline("0", []dxf.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}, true))
	src.Add(dxf.NewInsert("doors", "chair", dxf.Vec{X: 10, Y: 5}, 30, 1.5, 1.5))

	d := romeDrawing()
	d.Private = true
	tr := build(t, d)
	x := NewExtractor(DefaultEntityCap, zerolog.Nop())

	first, err := x.Extract(d, src, tr)
	require.NoError(t, err)

	all := append(append([]*models.Layer{}, first.Layers...), first.Blocks...)
	out, err := NewRegenerator(zerolog.Nop()).Regenerate(d, all, first.Insertions, tr)
	require.NoError(t, err)
	require.NotNil(t, out.GeoData)

	var buf bytes.Buffer
	_, err = out.WriteTo(&buf)
	require.NoError(t, err)
	reread, err := dxf.Read(&buf)
	require.NoError(t, err)

	// новый чертёж восстанавливает то же преобразование из записанной GEODATA
	again := &models.Drawing{ID: "d2", Private: true}
	p := geodesy.NewProjections()
	require.NoError(t, transform.Resolve(again, reread, p))
	assert.Equal(t, d.EPSG, again.EPSG)
	assert.InDelta(t, d.Rotation, again.Rotation, 1e-9)
	tr2, err := transform.Build(again, p)
	require.NoError(t, err)

	second, err := x.Extract(again, reread, tr2)
	require.NoError(t, err)

	require.Len(t, second.Layers, len(first.Layers))
	for _, l := range first.Layers {
		got := layerByName(second.Layers, l.Name)
		require.NotNil(t, got, l.Name)
		assert.Equal(t, l.Color, got.Color, l.Name)
		assert.Equal(t, l.Continuous, got.Continuous, l.Name)
		assert.True(t, l.Geometry.Equal(got.Geometry, 1e-6), "layer %s", l.Name)
	}

	require.Len(t, second.Blocks, 1)
	assert.True(t, first.Blocks[0].Geometry.Equal(second.Blocks[0].Geometry, 1e-6))

	require.Len(t, second.Insertions, 1)
	a, b := first.Insertions[0], second.Insertions[0]
	assert.InDelta(t, a.Point[0], b.Point[0], 1e-6)
	assert.InDelta(t, a.Point[1], b.Point[1], 1e-6)
	assert.Equal(t, a.Rotation, b.Rotation)
	assert.True(t, a.Geometry.Equal(b.Geometry, 1e-6))
}

func TestRegenerateTangentWritesNoGeoData(t *testing.T) {
	d := &models.Drawing{ID: "d", Anchor: &models.LonLat{Lon: 1, Lat: 1}}
	tr := build(t, d)

	layers := []*models.Layer{{ID: "l", Name: "x", Color: "bogus", Continuous: true,
		Geometry: geometry.Collection{tr.ToGeo(orb.Point{1, 2})}}}
	out, err := NewRegenerator(zerolog.Nop()).Regenerate(d, layers, []*models.Insertion{{ID: "i", LayerID: "l", BlockID: "nope"}}, tr)
	require.NoError(t, err)

	assert.Nil(t, out.GeoData)
	require.NotNil(t, out.Layer("0"))
	assert.Equal(t, 0xFFFFFF, out.Layer("x").RGB())
	require.Len(t, out.Entities, 1)
	pt := out.Entities[0].(*dxf.Point)
	assert.InDelta(t, 1, pt.At.X, 1e-6)
	assert.InDelta(t, 2, pt.At.Y, 1e-6)
}
