package finance

import "time"

// LoadDisplayLocation returns the named location, falling back to UTC if tzdata is missing.
func LoadDisplayLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
