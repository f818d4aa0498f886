package geodesy

import (
	"math"

	"github.com/wroge/wgs84"
)

// ============================================================
// Transverse Mercator
// ============================================================

// kruger - поперечная проекция Меркатора по рядам Крюгера до n^4.
// Реализует wgs84.Projection, поэтому подставляется в реестр вместо
// встроенной: та теряет метры на обратном пересчёте.
type kruger struct {
	lonf, latf, scale, eastf, northf float64
}

type krugerSeries struct {
	kA, e2n            float64
	alpha, beta, delta [4]float64
}

func newKrugerSeries(s wgs84.Spheroid, scale float64) krugerSeries {
	f := 1 / s.Fi()
	n := f / (2 - f)
	n2, n3, n4 := n*n, n*n*n, n*n*n*n
	return krugerSeries{
		kA:  scale * s.A() / (1 + n) * (1 + n2/4 + n4/64),
		e2n: 2 * math.Sqrt(n) / (1 + n),
		alpha: [4]float64{
			n/2 - 2*n2/3 + 5*n3/16 + 41*n4/180,
			13*n2/48 - 3*n3/5 + 557*n4/1440,
			61*n3/240 - 103*n4/140,
			49561 * n4 / 161280,
		},
		beta: [4]float64{
			n/2 - 2*n2/3 + 37*n3/96 - n4/360,
			n2/48 + n3/15 - 437*n4/1440,
			17*n3/480 - 37*n4/840,
			4397 * n4 / 161280,
		},
		delta: [4]float64{
			2*n - 2*n2/3 - 2*n3 + 116*n4/45,
			7*n2/3 - 8*n3/5 - 227*n4/45,
			56*n3/15 - 136*n4/35,
			4279 * n4 / 630,
		},
	}
}

// grid возвращает координаты без ложных смещений, lon уже относительно
// осевого меридиана.
func (k krugerSeries) grid(lon, lat float64) (x, y float64) {
	phi := lat * math.Pi / 180
	lam := lon * math.Pi / 180
	sin := math.Sin(phi)
	t := math.Sinh(math.Atanh(sin) - k.e2n*math.Atanh(k.e2n*sin))
	xi := math.Atan2(t, math.Cos(lam))
	eta := math.Atanh(math.Sin(lam) / math.Sqrt(1+t*t))

	x, y = eta, xi
	for j, a := range k.alpha {
		m := float64(2 * (j + 1))
		x += a * math.Cos(m*xi) * math.Sinh(m*eta)
		y += a * math.Sin(m*xi) * math.Cosh(m*eta)
	}
	return k.kA * x, k.kA * y
}

func (p kruger) FromLonLat(lon, lat float64, s wgs84.Spheroid) (east, north float64) {
	k := newKrugerSeries(s, p.scale)
	x, y := k.grid(lon-p.lonf, lat)
	_, y0 := k.grid(0, p.latf)
	return p.eastf + x, p.northf + y - y0
}

func (p kruger) ToLonLat(east, north float64, s wgs84.Spheroid) (lon, lat float64) {
	k := newKrugerSeries(s, p.scale)
	_, y0 := k.grid(0, p.latf)
	xi := (north - p.northf + y0) / k.kA
	eta := (east - p.eastf) / k.kA

	xi1, eta1 := xi, eta
	for j, b := range k.beta {
		m := float64(2 * (j + 1))
		xi1 -= b * math.Sin(m*xi) * math.Cosh(m*eta)
		eta1 -= b * math.Cos(m*xi) * math.Sinh(m*eta)
	}
	chi := math.Asin(math.Sin(xi1) / math.Cosh(eta1))
	phi := chi
	for j, d := range k.delta {
		phi += d * math.Sin(float64(2*(j+1))*chi)
	}
	lam := math.Atan2(math.Sinh(eta1), math.Cos(xi1))
	return p.lonf + lam*180/math.Pi, phi * 180 / math.Pi
}
