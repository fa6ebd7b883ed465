package domain

import "fmt"

// Location is a geographic point with its postal address.
type Location struct {
	Lat          float64
	Lng          float64
	Address      string
	City         string
	State        string
	ZipCode      string
	Instructions string
}

// Coordinates formats the location as "lat,lng".
func (l Location) Coordinates() string {
	return fmt.Sprintf("%f,%f", l.Lat, l.Lng)
}

// ValidCoordinates reports whether latitude and longitude are in range.
func (l Location) ValidCoordinates() bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}
