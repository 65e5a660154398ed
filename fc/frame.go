package fc

import (
	"math"

	geo "github.com/kellydunn/golang-geo"

	"github.com/gtu-nova/nova-letter/trajectory"
)

// Frame maps the local flight frame (x east, y north, z up, metres) onto
// geodetic coordinates around a home point.
type Frame struct {
	home *geo.Point
}

func NewFrame(lat, lon float64) Frame {
	return Frame{home: geo.NewPoint(lat, lon)}
}

func (f Frame) Home() (lat, lon float64) {
	return f.home.Lat(), f.home.Lng()
}

// ToGeo returns the latitude and longitude of the local point p.
func (f Frame) ToGeo(p trajectory.Waypoint) (lat, lon float64) {
	dist := math.Hypot(p.X, p.Y)
	if dist == 0 {
		return f.Home()
	}
	bearing := math.Atan2(p.X, p.Y) * 180 / math.Pi
	pt := f.home.PointAtDistanceAndBearing(dist/1000, bearing)
	return pt.Lat(), pt.Lng()
}

// FromGeo returns the local x, y of a geodetic position.
func (f Frame) FromGeo(lat, lon float64) (x, y float64) {
	pt := geo.NewPoint(lat, lon)
	dist := f.home.GreatCircleDistance(pt) * 1000
	if dist == 0 {
		return 0, 0
	}
	bearing := f.home.BearingTo(pt) * math.Pi / 180
	return dist * math.Sin(bearing), dist * math.Cos(bearing)
}

func toE7(deg float64) int32 {
	return int32(math.Round(deg * 1e7))
}

func fromE7(v int32) float64 {
	return float64(v) / 1e7
}
