package geodesy

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/wroge/wgs84"
)

// ============================================================
// Provider
// ============================================================

var (
	ErrUnsupportedCRS = errors.New("geodesy: unsupported reference system")
	ErrOutOfRange     = errors.New("geodesy: point outside UTM coverage")
)

const (
	EPSGWebMercator = 3857

	epsgWGS84North = 32600
	epsgWGS84South = 32700
)

// Provider переводит географические координаты (lon, lat в градусах) в
// проекцию с кодом EPSG и обратно.
type Provider interface {
	Forward(epsg int) (orb.Projection, error)
	Inverse(epsg int) (orb.Projection, error)
	// UTMZone возвращает EPSG зоны WGS84 UTM, в которую попадает p.
	UTMZone(p orb.Point) (int, error)
}

// Projections реализует Provider поверх реестра EPSG из wgs84.
// Поддерживаются только проекции в метрах. Коды поперечного Меркатора
// перерегистрированы на kruger.
type Projections struct {
	repo *wgs84.Repository
}

func NewProjections() *Projections {
	repo := wgs84.EPSG()
	for zone := 1; zone <= 60; zone++ {
		z := float64(zone)
		lon0 := z*6 - 183
		repo.Add(epsgWGS84North+zone, withKruger(wgs84.UTM(z, true), kruger{lon0, 0, 0.9996, 500000, 0}))
		repo.Add(epsgWGS84South+zone, withKruger(wgs84.UTM(z, false), kruger{lon0, 0, 0.9996, 500000, 10000000}))
		if zone >= 28 && zone <= 38 {
			repo.Add(25800+zone, withKruger(wgs84.ETRS89UTM(z), kruger{lon0, 0, 0.9996, 500000, 0}))
		}
	}
	for zone := 2; zone <= 5; zone++ {
		z := float64(zone)
		repo.Add(31464+zone, withKruger(wgs84.DHDN2001GK(z), kruger{z * 3, 0, 1, z*1000000 + 500000, 0}))
	}
	repo.Add(31257, withKruger(wgs84.MGIAustriaGKM28(), kruger{10.33333333333333, 0, 1, 150000, -5000000}))
	repo.Add(31258, withKruger(wgs84.MGIAustriaGKM31(), kruger{13.33333333333333, 0, 1, 450000, -5000000}))
	repo.Add(31259, withKruger(wgs84.MGIAustriaGKM34(), kruger{16.33333333333333, 0, 1, 750000, -5000000}))
	repo.Add(27700, withKruger(wgs84.OSGB36NationalGrid(), kruger{-2, 49, 0.9996012717, 400000, -100000}))

	// Gauss-Boaga (Monte Mario), итальянские чертежи приходят в этих зонах
	mm := monteMario()
	repo.Add(3003, wgs84.ProjectedReferenceSystem{Datum: mm, Projection: kruger{9, 0, 0.9996, 1500000, 0}})
	repo.Add(3004, wgs84.ProjectedReferenceSystem{Datum: mm, Projection: kruger{15, 0, 0.9996, 2520000, 0}})
	return &Projections{repo: repo}
}

// withKruger оставляет датум и область crs, меняя только проекцию.
func withKruger(crs wgs84.ProjectedReferenceSystem, p kruger) wgs84.ProjectedReferenceSystem {
	crs.Projection = p
	return crs
}

// monteMario: International 1924 и Helmert до WGS84 (EPSG:1660,
// повороты пересчитаны в position vector).
func monteMario() wgs84.Datum {
	d := wgs84.Helmert(6378388, 297, -104.1, -49.1, -9.9, -0.971, 2.917, -0.714, -11.68)
	d.Area = wgs84.AreaFunc(func(lon, lat float64) bool {
		return lon >= 5.93 && lon <= 18.99 && lat >= 36.53 && lat <= 47.1
	})
	return d
}

// Supports сообщает, можно ли проецировать в epsg.
func (p *Projections) Supports(epsg int) bool {
	_, err := p.lookup(epsg)
	return err == nil
}

func (p *Projections) Forward(epsg int) (orb.Projection, error) {
	crs, err := p.lookup(epsg)
	if err != nil {
		return nil, err
	}
	f := wgs84.LonLat().To(crs)
	return func(pt orb.Point) orb.Point {
		e, n, _ := f(pt[0], pt[1], 0)
		return orb.Point{e, n}
	}, nil
}

func (p *Projections) Inverse(epsg int) (orb.Projection, error) {
	crs, err := p.lookup(epsg)
	if err != nil {
		return nil, err
	}
	f := wgs84.LonLat().From(crs)
	return func(pt orb.Point) orb.Point {
		lon, lat, _ := f(pt[0], pt[1], 0)
		return orb.Point{lon, lat}
	}, nil
}

func (p *Projections) UTMZone(pt orb.Point) (int, error) {
	lon, lat := pt[0], pt[1]
	if lon < -180 || lon > 180 || lat < -80 || lat > 84 {
		return 0, fmt.Errorf("%w: (%g, %g)", ErrOutOfRange, lon, lat)
	}
	zone := zoneOf(lon, lat)
	if lat < 0 {
		return epsgWGS84South + zone, nil
	}
	return epsgWGS84North + zone, nil
}

func (p *Projections) lookup(epsg int) (wgs84.ProjectedReferenceSystem, error) {
	crs, ok := p.repo.Code(epsg).(wgs84.ProjectedReferenceSystem)
	if !ok {
		return wgs84.ProjectedReferenceSystem{}, fmt.Errorf("%w: EPSG:%d", ErrUnsupportedCRS, epsg)
	}
	return crs, nil
}

// zoneOf возвращает номер зоны UTM с учётом исключений для Норвегии и
// Шпицбергена.
func zoneOf(lon, lat float64) int {
	zone := int(math.Floor((lon+180)/6)) + 1
	switch {
	case lat >= 56 && lat < 64 && lon >= 3 && lon < 12:
		zone = 32
	case lat >= 72 && lat < 84 && lon >= 0 && lon < 9:
		zone = 31
	case lat >= 72 && lat < 84 && lon >= 9 && lon < 21:
		zone = 33
	case lat >= 72 && lat < 84 && lon >= 21 && lon < 33:
		zone = 35
	case lat >= 72 && lat < 84 && lon >= 33 && lon < 42:
		zone = 37
	}
	return min(max(zone, 1), 60)
}
