package dxf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	doc := &Document{}
	doc.AddLayer("0", 0xFFFFFF, "")
	doc.AddLayer("walls", 0x12AB34, "DASHED")

	blk := doc.AddBlock("chair", Vec{0.5, 0.5})
	blk.Add(NewPolyline("walls", []Vec{{0, 0}, {1, 0}, {1, 1}}, true))
	blk.Add(NewPoint("walls", Vec{0.5, 0.5}))

	doc.Add(
		NewPoint("walls", Vec{1.25, -3}),
		NewPolyline("walls", []Vec{{0, 0}, {10, 0.1}}, false),
		NewInsert("0", "chair", Vec{100, 200}, 45, 2, 2),
		&Hatch{base: base{Layer: "walls"}, Solid: true, Paths: [][]Vec{{{0, 0}, {3, 0}, {3, 3}}}},
		&Circle{base: base{Layer: "walls"}, Center: Vec{5, 5}, Radius: 2},
	)
	doc.GeoData = NewGeoData(Vec{0, 0}, Vec{291000.5, 4638000.25}, 30, 32633)

	var buf bytes.Buffer
	n, err := doc.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	got, err := Read(&buf)
	require.NoError(t, err)

	require.Len(t, got.Layers, 2)
	walls := got.Layer("walls")
	require.NotNil(t, walls)
	assert.Equal(t, 0x12AB34, walls.RGB())
	assert.Equal(t, "DASHED", walls.Linetype)

	b := got.Block("chair")
	require.NotNil(t, b)
	assert.Equal(t, Vec{0.5, 0.5}, b.Base)
	require.Len(t, b.Entities, 2)
	assert.True(t, b.Entities[0].(*Polyline).Closed)

	require.Len(t, got.Entities, 5)
	assert.Equal(t, Vec{1.25, -3}, got.Entities[0].(*Point).At)
	assert.Equal(t, []Vec{{0, 0}, {10, 0.1}}, got.Entities[1].(*Polyline).Vertices)
	ins := got.Entities[2].(*Insert)
	assert.Equal(t, "chair", ins.Block)
	assert.Equal(t, 45.0, ins.Rotation)
	assert.Equal(t, 2.0, ins.XScale)
	h := got.Entities[3].(*Hatch)
	assert.Equal(t, [][]Vec{{{0, 0}, {3, 0}, {3, 3}}}, h.Paths)
	assert.Equal(t, 2.0, got.Entities[4].(*Circle).Radius)

	require.NotNil(t, got.GeoData)
	assert.Equal(t, 32633, got.GeoData.EPSG)
	assert.Equal(t, Vec{291000.5, 4638000.25}, got.GeoData.Reference)
	assert.InDelta(t, 30, got.GeoData.Rotation(), 1e-9)
}

func TestWriteLongCRSDefinition(t *testing.T) {
	doc := &Document{GeoData: NewGeoData(Vec{}, Vec{}, 0, 25832)}
	assert.Greater(t, len(doc.GeoData.CRS), 255)

	var buf bytes.Buffer
	_, err := doc.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "\n303\n")

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, doc.GeoData.CRS, got.GeoData.CRS)
	assert.Equal(t, 25832, got.GeoData.EPSG)
}
