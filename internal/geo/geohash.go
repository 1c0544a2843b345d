package geo

import "strings"

// DefaultPrecision is the geohash precision used when a location is written
// to logs or span attributes. Six characters is roughly a 1.2 km cell, coarse
// enough not to pinpoint the user.
const DefaultPrecision = 6

// base32 is the geohash base32 alphabet.
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// Encode encodes a coordinate into a geohash string of the given precision.
// A precision below 1 falls back to DefaultPrecision.
func Encode(c Coordinate, precision int) string {
	if precision < 1 {
		precision = DefaultPrecision
	}

	latRange := [2]float64{-90.0, 90.0}
	lngRange := [2]float64{-180.0, 180.0}

	var geohash strings.Builder
	geohash.Grow(precision)

	bits := 0
	var ch uint

	even := true
	for geohash.Len() < precision {
		if even {
			mid := (lngRange[0] + lngRange[1]) / 2
			if c.Longitude > mid {
				ch |= 1 << (4 - bits)
				lngRange[0] = mid
			} else {
				lngRange[1] = mid
			}
		} else {
			mid := (latRange[0] + latRange[1]) / 2
			if c.Latitude > mid {
				ch |= 1 << (4 - bits)
				latRange[0] = mid
			} else {
				latRange[1] = mid
			}
		}

		even = !even
		bits++

		if bits == 5 {
			geohash.WriteByte(base32[ch])
			bits = 0
			ch = 0
		}
	}

	return geohash.String()
}

// Coarse returns the DefaultPrecision geohash of c, or "none" when c is nil.
func Coarse(c *Coordinate) string {
	if c == nil {
		return "none"
	}
	return Encode(*c, DefaultPrecision)
}
