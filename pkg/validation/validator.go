package validation

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type coordinates struct {
	Latitude  float64 `validate:"latitude"`
	Longitude float64 `validate:"longitude"`
}

// ValidateCoordinates checks that a lat/lng pair is a real coordinate.
func ValidateCoordinates(latitude, longitude float64) error {
	if err := validate.Struct(coordinates{Latitude: latitude, Longitude: longitude}); err != nil {
		return fmt.Errorf("invalid coordinates (%f, %f)", latitude, longitude)
	}
	return nil
}

// ValidateStruct runs tag-based validation on any request struct.
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}
