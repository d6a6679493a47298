package service

import (
	"github.com/vbonduro/interop/internal/domain"
)

// locationTransition is the effect an update request has on a target's
// location.
type locationTransition int

const (
	locationUntouched locationTransition = iota
	locationClear
	locationUpdateInPlace
	locationCreate
)

func (t locationTransition) String() string {
	switch t {
	case locationClear:
		return "clear"
	case locationUpdateInPlace:
		return "update_in_place"
	case locationCreate:
		return "create"
	default:
		return "untouched"
	}
}

const (
	msgPartialClear = "Only none or both of latitude and longitude can be cleared."
	msgIncomplete   = "Either none or both of latitude and longitude required."
)

// planLocation decides how the latitude and longitude of an update request
// change existing. Clearing must name both coordinates. A target without a
// location needs both coordinates to gain one; a target with a location may
// have either coordinate replaced on its own.
func planLocation(lat, lon domain.Nullable[float64], existing *domain.Location) (locationTransition, error) {
	clearLat, clearLon := lat.Null(), lon.Null()
	switch {
	case clearLat != clearLon:
		return locationUntouched, domain.Invalid(domain.FieldLatitude, msgPartialClear)
	case clearLat:
		return locationClear, nil
	case !lat.Valid && !lon.Valid:
		return locationUntouched, nil
	case existing != nil:
		return locationUpdateInPlace, nil
	case lat.Valid && lon.Valid:
		return locationCreate, nil
	default:
		return locationUntouched, domain.Invalid(domain.FieldLatitude, msgIncomplete)
	}
}

// applyLocation mutates t according to a transition returned by planLocation.
func applyLocation(t *domain.Target, transition locationTransition, lat, lon domain.Nullable[float64]) {
	switch transition {
	case locationClear:
		t.Location = nil
	case locationCreate:
		t.Location = &domain.Location{Latitude: lat.Value, Longitude: lon.Value}
	case locationUpdateInPlace:
		loc := *t.Location
		if lat.Valid {
			loc.Latitude = lat.Value
		}
		if lon.Valid {
			loc.Longitude = lon.Value
		}
		t.Location = &loc
	}
}
