package models

import (
	"math"
	"strings"

	"github.com/paulmach/orb"

	"geocad/internal/geocad/geometry"
)

// ============================================================
// Drawing
// ============================================================

// DefaultLayer - зарезервированный слой, который есть у каждого чертежа.
const DefaultLayer = "0"

// DefaultLayerColor получают слои, созданные вручную.
const DefaultLayerColor = "#FF0000"

type LonLat struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

func (p LonLat) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

type Drawing struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Intro     string  `json:"intro"`
	Anchor    *LonLat `json:"anchor"`
	DesignX   float64 `json:"design_x"`
	DesignY   float64 `json:"design_y"`
	Rotation  float64 `json:"rotation"` // градусы против часовой от истинного севера
	EPSG      int     `json:"epsg"`     // 0, пока не определён
	Stale     bool    `json:"stale"`
	Private   bool    `json:"private"`
	FilePath  string  `json:"-"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// NeedsExtraction сообщает, делает ли правка от old к cur недействительными
// все извлечённые слои и вставки.
func NeedsExtraction(old, cur *Drawing) bool {
	if old == nil {
		return true
	}
	if old.FilePath != cur.FilePath {
		return true
	}
	if (old.Anchor == nil) != (cur.Anchor == nil) {
		return true
	}
	if old.Anchor != nil && *old.Anchor != *cur.Anchor {
		return true
	}
	return old.DesignX != cur.DesignX || old.DesignY != cur.DesignY || old.Rotation != cur.Rotation
}

// ============================================================
// Layer
// ============================================================

type Layer struct {
	ID         string              `json:"id"`
	DrawingID  string              `json:"drawing_id"`
	Name       string              `json:"name"`
	Color      string              `json:"color"`
	Continuous bool                `json:"linetype"`
	IsBlock    bool                `json:"is_block"`
	Geometry   geometry.Collection `json:"geometry"`
}

// IsDefault сообщает, является ли l зарезервированным слоем "0".
func (l *Layer) IsDefault() bool {
	return l.Name == DefaultLayer
}

// Blacklisted сообщает, что имя слоя или блока - служебный контейнер CAD,
// который никогда не извлекается.
func Blacklisted(name string) bool {
	switch strings.ToLower(name) {
	case "*model_space", "*paper_space", "*paper_space0", "defpoints":
		return true
	}
	return false
}

// ============================================================
// Insertion
// ============================================================

// Placement задаёт положение экземпляра блока. Rotation в градусах в
// локальной системе чертежа.
type Placement struct {
	Point    orb.Point `json:"point"`
	Rotation float64   `json:"rotation"`
	XScale   float64   `json:"x_scale"`
	YScale   float64   `json:"y_scale"`
}

// Normalized заменяет нулевые масштабы на 1 и приводит поворот к
// (-360, 360).
func (p Placement) Normalized() Placement {
	if p.XScale == 0 {
		p.XScale = 1
	}
	if p.YScale == 0 {
		p.YScale = 1
	}
	p.Rotation = math.Mod(p.Rotation, 360)
	return p
}

type Insertion struct {
	ID        string              `json:"id"`
	DrawingID string              `json:"drawing_id"`
	BlockID   string              `json:"block_id"`
	LayerID   string              `json:"layer_id"`
	Geometry  geometry.Collection `json:"geometry"`
	Placement
}
