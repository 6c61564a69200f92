package service

import (
	"github.com/noah-isme/meu-horario-api/internal/models"
	appErrors "github.com/noah-isme/meu-horario-api/pkg/errors"
)

// parseCoordinate normalises a request weekday and checks the grid bounds.
func parseCoordinate(weekday string, period int) (models.Coordinate, error) {
	day, err := models.ParseWeekday(weekday)
	if err != nil {
		return models.Coordinate{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid weekday")
	}
	coord := models.Coordinate{Weekday: day, Period: period}
	if !coord.Valid() {
		return models.Coordinate{}, appErrors.Clone(appErrors.ErrValidation, "period must be between 1 and 9")
	}
	return coord, nil
}
