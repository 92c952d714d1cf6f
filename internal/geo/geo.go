// Package geo provides the distance and coordinate helpers shared by the
// filter, proximity and map packages. All distances are statute miles.
package geo

import (
	"errors"
	"math"
)

// EarthRadiusMiles is the mean Earth radius in statute miles.
const EarthRadiusMiles = 3958.8

// ErrInvalidCoordinates is returned when a latitude/longitude pair is out of
// range or not a finite number.
var ErrInvalidCoordinates = errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")

// IsValidCoordinates reports whether lat and lon are finite and in range.
// Zero is a valid value for both.
func IsValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// NormalizeLongitude reduces lon modulo 360 into (-180, 180].
func NormalizeLongitude(lon float64) float64 {
	l := math.Mod(lon, 360)
	if l > 180 {
		l -= 360
	} else if l <= -180 {
		l += 360
	}
	return l
}

// Distance returns the Haversine great-circle distance between two points in
// statute miles. Both endpoints must pass IsValidCoordinates.
func Distance(lat1, lon1, lat2, lon2 float64) (float64, error) {
	if !IsValidCoordinates(lat1, lon1) || !IsValidCoordinates(lat2, lon2) {
		return 0, ErrInvalidCoordinates
	}

	if lat1 == lat2 && lon1 == lon2 {
		return 0, nil
	}

	rlat1 := lat1 * math.Pi / 180
	rlon1 := lon1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	rlon2 := lon2 * math.Pi / 180

	dlat := rlat2 - rlat1
	dlon := rlon2 - rlon1

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMiles * c, nil
}

// WithinRadius reports whether the point (plat, plon) lies within radiusMiles
// of the center (clat, clon).
func WithinRadius(clat, clon, plat, plon, radiusMiles float64) (bool, error) {
	d, err := Distance(clat, clon, plat, plon)
	if err != nil {
		return false, err
	}
	return d <= radiusMiles, nil
}
