package repository

import (
	"context"
	"path/filepath"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geocad/internal/geocad/geometry"
	"geocad/internal/geocad/models"
)

func openSQLite(t *testing.T) Store {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "geocad.db"))
	require.NoError(t, err)
	repo := New(db)
	require.NoError(t, repo.Init(context.Background()))
	t.Cleanup(func() { repo.Close() })
	return repo
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"sqlite": openSQLite(t),
		"memory": NewMemory(),
	}
}

func seed(t *testing.T, s Store) (*models.Drawing, *models.Layer, *models.Layer, *models.Insertion) {
	t.Helper()
	ctx := context.Background()

	d := &models.Drawing{Title: "plan", Anchor: &models.LonLat{Lon: 12.5, Lat: 41.9}, EPSG: 32633, Stale: true}
	require.NoError(t, s.CreateDrawing(ctx, d))

	layer := &models.Layer{Name: "walls", Color: "#00FF00", Continuous: true,
		Geometry: geometry.Collection{orb.LineString{{12.5, 41.9}, {12.6, 41.9}}}}
	block := &models.Layer{Name: "walls", Color: "#FFFFFF", Continuous: true, IsBlock: true,
		Geometry: geometry.Collection{orb.Point{0, 0}}}
	ins := &models.Insertion{
		Placement: models.Placement{Point: orb.Point{12.55, 41.95}, Rotation: 45, XScale: 1, YScale: 2},
		Geometry:  geometry.Collection{orb.Point{12.55, 41.95}}}

	require.NoError(t, s.ReplaceContents(ctx, d.ID, []*models.Layer{layer, block}, nil))
	ins.BlockID, ins.LayerID, ins.DrawingID = block.ID, layer.ID, d.ID
	require.NoError(t, s.CreateInsertion(ctx, ins))
	return d, layer, block, ins
}

func TestDrawingCRUD(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			d := &models.Drawing{Title: "a", Intro: "b", DesignX: 3, Rotation: 12.5, Stale: true}
			require.NoError(t, s.CreateDrawing(ctx, d))
			require.NotEmpty(t, d.ID)
			assert.NotEmpty(t, d.CreatedAt)

			got, err := s.GetDrawing(ctx, d.ID)
			require.NoError(t, err)
			assert.Nil(t, got.Anchor)
			assert.Equal(t, "a", got.Title)
			assert.Equal(t, 12.5, got.Rotation)
			assert.True(t, got.Stale)

			got.Anchor = &models.LonLat{Lon: 1, Lat: 2}
			got.EPSG = 32631
			require.NoError(t, s.UpdateDrawing(ctx, got))
			require.NoError(t, s.SetStale(ctx, d.ID, false))

			again, err := s.GetDrawing(ctx, d.ID)
			require.NoError(t, err)
			require.NotNil(t, again.Anchor)
			assert.Equal(t, 2.0, again.Anchor.Lat)
			assert.Equal(t, 32631, again.EPSG)
			assert.False(t, again.Stale)

			_, err = s.GetDrawing(ctx, "missing")
			assert.ErrorIs(t, err, models.ErrNotFound)
			assert.ErrorIs(t, s.SetStale(ctx, "missing", true), models.ErrNotFound)
		})
	}
}

func TestListDrawingsPrivate(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.CreateDrawing(ctx, &models.Drawing{Title: "public"}))
			require.NoError(t, s.CreateDrawing(ctx, &models.Drawing{Title: "secret", Private: true}))

			public, err := s.ListDrawings(ctx, false)
			require.NoError(t, err)
			require.Len(t, public, 1)
			assert.Equal(t, "public", public[0].Title)

			all, err := s.ListDrawings(ctx, true)
			require.NoError(t, err)
			assert.Len(t, all, 2)
		})
	}
}

func TestLayersAndInsertions(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			d, layer, block, ins := seed(t, s)

			layers, err := s.ListLayers(ctx, d.ID)
			require.NoError(t, err)
			require.Len(t, layers, 2)
			assert.False(t, layers[0].IsBlock)
			assert.True(t, layers[1].IsBlock)
			assert.True(t, layer.Geometry.Equal(layers[0].Geometry, 0))

			got, err := s.GetInsertion(ctx, ins.ID)
			require.NoError(t, err)
			assert.Equal(t, orb.Point{12.55, 41.95}, got.Point)
			assert.Equal(t, 2.0, got.YScale)
			assert.Equal(t, d.ID, got.DrawingID)

			byBlock, err := s.ListInsertionsByBlock(ctx, block.ID)
			require.NoError(t, err)
			assert.Len(t, byBlock, 1)

			got.Rotation = 90
			got.Geometry = geometry.Collection{}
			require.NoError(t, s.UpdateInsertion(ctx, got))
			got, err = s.GetInsertion(ctx, ins.ID)
			require.NoError(t, err)
			assert.Equal(t, 90.0, got.Rotation)
			assert.True(t, got.Geometry.IsEmpty())
		})
	}
}

func TestDuplicateLayerName(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			d, layer, _, _ := seed(t, s)

			dup := &models.Layer{DrawingID: d.ID, Name: "walls", Color: "#FF0000"}
			assert.ErrorIs(t, s.CreateLayer(ctx, dup), models.ErrDuplicateLayerName)

			other := &models.Layer{DrawingID: d.ID, Name: "doors", Color: "#FF0000"}
			require.NoError(t, s.CreateLayer(ctx, other))
			other.Name = layer.Name
			assert.ErrorIs(t, s.UpdateLayer(ctx, other), models.ErrDuplicateLayerName)

			stored, err := s.GetLayer(ctx, other.ID)
			require.NoError(t, err)
			assert.Equal(t, "doors", stored.Name)
		})
	}
}

func TestCascadeDeletes(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			d, _, block, ins := seed(t, s)

			require.NoError(t, s.DeleteLayer(ctx, block.ID))
			_, err := s.GetInsertion(ctx, ins.ID)
			assert.ErrorIs(t, err, models.ErrNotFound)

			require.NoError(t, s.DeleteDrawing(ctx, d.ID))
			layers, err := s.ListLayers(ctx, d.ID)
			require.NoError(t, err)
			assert.Empty(t, layers)
			assert.ErrorIs(t, s.DeleteDrawing(ctx, d.ID), models.ErrNotFound)
		})
	}
}

func TestReplaceContents(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			d, _, _, ins := seed(t, s)

			fresh := &models.Layer{Name: "0", Color: "#FFFFFF", Continuous: true, Geometry: geometry.Collection{}}
			require.NoError(t, s.ReplaceContents(ctx, d.ID, []*models.Layer{fresh}, nil))

			layers, err := s.ListLayers(ctx, d.ID)
			require.NoError(t, err)
			require.Len(t, layers, 1)
			assert.Equal(t, "0", layers[0].Name)
			assert.Equal(t, d.ID, layers[0].DrawingID)

			_, err = s.GetInsertion(ctx, ins.ID)
			assert.ErrorIs(t, err, models.ErrNotFound)

			dup := []*models.Layer{{Name: "x"}, {Name: "x"}}
			assert.ErrorIs(t, s.ReplaceContents(ctx, d.ID, dup, nil), models.ErrDuplicateLayerName)
			layers, err = s.ListLayers(ctx, d.ID)
			require.NoError(t, err)
			assert.Len(t, layers, 1)
		})
	}
}
