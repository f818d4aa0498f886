package dxf

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ============================================================
// AutoCAD Color Index
// ============================================================

var aciStandard = [...]int{
	0x000000, // 0 ByBlock
	0xFF0000,
	0xFFFF00,
	0x00FF00,
	0x00FFFF,
	0x0000FF,
	0xFF00FF,
	0xFFFFFF,
	0x808080,
	0xC0C0C0,
}

var aciGrays = [...]int{0x333333, 0x505050, 0x696969, 0x828282, 0xBEBEBE, 0xFFFFFF}

// уровни яркости палитры 10..249, по группе из двух индексов
var aciLevels = [...]float64{1, 0.8, 0.6, 0.5, 0.3}

// ACIToRGB переводит индекс цвета в 0xRRGGBB. Отрицательный индекс
// (слой выключен) берётся по модулю, ByLayer (256) даёт белый.
func ACIToRGB(aci int) int {
	if aci < 0 {
		aci = -aci
	}
	switch {
	case aci < len(aciStandard):
		return aciStandard[aci]
	case aci >= 250 && aci <= 255:
		return aciGrays[aci-250]
	case aci > 255:
		return 0xFFFFFF
	}

	hue := float64((aci-10)/10) * 15
	step := (aci - 10) % 10
	value := aciLevels[step/2]
	sat := 1.0
	if step%2 == 1 {
		sat = 0.5
	}
	return hsvToRGB(hue, sat, value)
}

// RGBToACI возвращает индекс с ближайшим к rgb цветом палитры.
func RGBToACI(rgb int) int {
	best, bestDist := 7, math.MaxFloat64
	for aci := 1; aci <= 255; aci++ {
		c := ACIToRGB(aci)
		dr := float64((c>>16)&0xFF - (rgb>>16)&0xFF)
		dg := float64((c>>8)&0xFF - (rgb>>8)&0xFF)
		db := float64(c&0xFF - rgb&0xFF)
		if d := dr*dr + dg*dg + db*db; d < bestDist {
			best, bestDist = aci, d
			if d == 0 {
				break
			}
		}
	}
	return best
}

func hsvToRGB(h, s, v float64) int {
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}

	to := func(f float64) int { return int(math.Round((f + m) * 255)) }
	return to(r)<<16 | to(g)<<8 | to(b)
}

// FormatHex выводит 0xRRGGBB как "#RRGGBB".
func FormatHex(rgb int) string {
	return fmt.Sprintf("#%06X", rgb&0xFFFFFF)
}

// ParseHex принимает "#RRGGBB" или "RRGGBB".
func ParseHex(s string) (int, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return 0, fmt.Errorf("dxf: invalid color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("dxf: invalid color %q: %w", s, err)
	}
	return int(v), nil
}
