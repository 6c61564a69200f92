package scheduler

import "github.com/noah-isme/meu-horario-api/internal/models"

// CoordinateSet is an unordered set of grid cells.
type CoordinateSet map[models.Coordinate]struct{}

func NewCoordinateSet(coords ...models.Coordinate) CoordinateSet {
	set := make(CoordinateSet, len(coords))
	for _, c := range coords {
		set[c] = struct{}{}
	}
	return set
}

func (s CoordinateSet) Add(c models.Coordinate) {
	s[c] = struct{}{}
}

func (s CoordinateSet) Remove(c models.Coordinate) {
	delete(s, c)
}

func (s CoordinateSet) Has(c models.Coordinate) bool {
	_, ok := s[c]
	return ok
}
