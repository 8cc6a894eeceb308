package domain

// Coordinate is a WGS84 point. Lat and Lng always travel together; an
// unknown location is represented by a nil *Coordinate, never by zeroes.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
