package geometry

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
)

// ============================================================
// Geometry collection value
// ============================================================

const collectionType = "GeometryCollection"

// ErrUnsupportedGeometry возвращается для примитивов кроме Point,
// LineString и Polygon.
var ErrUnsupportedGeometry = errors.New("geometry: unsupported primitive")

// Collection - упорядоченный список примитивов Point, LineString и Polygon.
// Методы не меняют получателя.
type Collection orb.Collection

// Orb возвращает коллекцию как геометрию orb.
func (c Collection) Orb() orb.Collection {
	return orb.Collection(c)
}

func (c Collection) IsEmpty() bool {
	return len(c) == 0
}

// Append возвращает новую коллекцию с g в конце.
func (c Collection) Append(g ...orb.Geometry) Collection {
	out := make(Collection, 0, len(c)+len(g))
	out = append(out, c...)
	return append(out, g...)
}

// Merge возвращает примитивы c, за ними примитивы other.
func (c Collection) Merge(other Collection) Collection {
	return c.Append(other...)
}

// Map применяет proj к каждой вершине копии c.
func (c Collection) Map(proj orb.Projection) Collection {
	out := make(Collection, len(c))
	for i, g := range c {
		out[i] = project.Geometry(orb.Clone(g), proj)
	}
	return out
}

// Validate сообщает о первом примитиве, который не Point, LineString
// или Polygon.
func (c Collection) Validate() error {
	for i, g := range c {
		switch g.(type) {
		case orb.Point, orb.LineString, orb.Polygon:
		default:
			return fmt.Errorf("%w: %T at %d", ErrUnsupportedGeometry, g, i)
		}
	}
	return nil
}

// Equal сравнивает коллекции поэлементно, допуская расхождение каждой
// координаты не больше tol.
func (c Collection) Equal(other Collection, tol float64) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if !equalGeometry(c[i], other[i], tol) {
			return false
		}
	}
	return true
}

func equalGeometry(a, b orb.Geometry, tol float64) bool {
	switch a := a.(type) {
	case orb.Point:
		b, ok := b.(orb.Point)
		return ok && equalPoint(a, b, tol)
	case orb.LineString:
		b, ok := b.(orb.LineString)
		return ok && equalPoints(a, b, tol)
	case orb.Ring:
		b, ok := b.(orb.Ring)
		return ok && equalPoints(a, b, tol)
	case orb.Polygon:
		b, ok := b.(orb.Polygon)
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !equalPoints(a[i], b[i], tol) {
				return false
			}
		}
		return true
	}
	return orb.Equal(a, b)
}

func equalPoints(a, b []orb.Point, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !equalPoint(a[i], b[i], tol) {
			return false
		}
	}
	return true
}

func equalPoint(a, b orb.Point, tol float64) bool {
	return math.Abs(a[0]-b[0]) <= tol && math.Abs(a[1]-b[1]) <= tol
}

// ============================================================
// Wire format
// ============================================================

type wireCollection struct {
	Type       string              `json:"type"`
	Geometries []*geojson.Geometry `json:"geometries"`
}

// MarshalJSON всегда выдаёт GeometryCollection; пустая коллекция даёт
// пустой массив geometries.
func (c Collection) MarshalJSON() ([]byte, error) {
	w := wireCollection{Type: collectionType, Geometries: make([]*geojson.Geometry, 0, len(c))}
	for _, g := range c {
		w.Geometries = append(w.Geometries, geojson.NewGeometry(g))
	}
	return json.Marshal(w)
}

// UnmarshalJSON принимает GeometryCollection или одиночный примитив.
// Старые значения null и {} читаются как пустая коллекция.
func (c *Collection) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}")) {
		*c = Collection{}
		return nil
	}

	var head struct {
		Type       string            `json:"type"`
		Geometries []json.RawMessage `json:"geometries"`
	}
	if err := json.Unmarshal(trimmed, &head); err != nil {
		return fmt.Errorf("geometry: decode: %w", err)
	}
	if head.Type == "" {
		*c = Collection{}
		return nil
	}

	if head.Type != collectionType {
		g, err := geojson.UnmarshalGeometry(trimmed)
		if err != nil {
			return fmt.Errorf("geometry: decode %s: %w", head.Type, err)
		}
		*c = Collection{g.Geometry()}
		return c.Validate()
	}

	out := make(Collection, 0, len(head.Geometries))
	for _, raw := range head.Geometries {
		var inner Collection
		if err := inner.UnmarshalJSON(raw); err != nil {
			return err
		}
		// вложенные коллекции раскрываются
		out = append(out, inner...)
	}
	*c = out
	return nil
}

// Value хранит коллекцию её JSON-текстом.
func (c Collection) Value() (driver.Value, error) {
	b, err := c.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan читает коллекцию, сохранённую через Value.
func (c *Collection) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = Collection{}
		return nil
	case string:
		return c.UnmarshalJSON([]byte(v))
	case []byte:
		return c.UnmarshalJSON(v)
	}
	return fmt.Errorf("geometry: cannot scan %T", src)
}
