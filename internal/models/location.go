package models

import "time"

// LocationSource records how a UserLocation was produced.
type LocationSource string

const (
	LocationGeolocation LocationSource = "geolocation"
	LocationPicked      LocationSource = "picked"
	LocationTest        LocationSource = "test"
)

// UserLocation is the canonical position. There is at most one at a time and
// it is replaced wholesale, never mutated.
type UserLocation struct {
	Latitude   float64        `json:"lat"`
	Longitude  float64        `json:"lon"`
	AcquiredAt time.Time      `json:"acquired_at"`
	Source     LocationSource `json:"source"`
}
