// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

// Package geo provides great-circle distance math shared by the groups
// service and the spatial store.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used for haversine distance.
const EarthRadiusMeters = 6371000.0

// metersPerDegreeLat is the approximate north-south span of one degree
// of latitude, used for converting meter buffers to degree bounding boxes.
const metersPerDegreeLat = 111320.0

// Haversine returns the great-circle distance in meters between two
// WGS84 coordinates.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// WithinRadius reports whether the two coordinates are at most
// radiusMeters apart. The boundary is inclusive.
func WithinRadius(lat1, lon1, lat2, lon2, radiusMeters float64) bool {
	return Haversine(lat1, lon1, lat2, lon2) <= radiusMeters
}

// BufferDegrees converts a meter buffer around a point into latitude and
// longitude deltas. The longitude delta widens toward the poles; at the
// poles cos(lat) approaches zero, so the delta is clamped to a full
// hemisphere.
func BufferDegrees(lat, meters float64) (dLat, dLon float64) {
	dLat = meters / metersPerDegreeLat

	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 1e-9 {
		return dLat, 180
	}
	dLon = meters / (metersPerDegreeLat * cosLat)
	return dLat, dLon
}
