package tile

import (
	"errors"
	"fmt"
	"strings"
)

// Failure kinds reported by planning, slicing and joining.
var (
	ErrInvalidSpecification = errors.New("invalid specification")
	ErrInvalidTileCount     = errors.New("invalid tile count")
	ErrUngriddableCount     = errors.New("ungriddable count")
	ErrInvalidTemplate      = errors.New("invalid naming template")
	ErrNoTilesFound         = errors.New("no tiles found")
	ErrMissingTiles         = errors.New("missing tiles")
	ErrIncompatibleTiles    = errors.New("incompatible tiles")
	ErrDuplicateTiles       = errors.New("duplicate tiles")
	ErrTooManyTiles         = errors.New("too many tiles")
	ErrSourceUnreadable     = errors.New("source unreadable")
	ErrIO                   = errors.New("i/o failure")
)

// UngriddableCountError is returned when a tile count has no factor pair
// other than 1 x count.
type UngriddableCountError struct {
	Count int
}

func (e *UngriddableCountError) Error() string {
	return fmt.Sprintf("%s: cannot form a grid with %d tiles, choose a number with more factors", ErrUngriddableCount, e.Count)
}

// Is reports whether target is ErrUngriddableCount.
func (e *UngriddableCountError) Is(target error) bool {
	return target == ErrUngriddableCount
}

// MaxListedMissing caps the coordinates carried by a MissingTilesError.
const MaxListedMissing = 100

// MissingTilesError lists coordinates absent from a tile set in row-major
// order. Missing holds at most MaxListedMissing entries; Total counts all
// of them.
type MissingTilesError struct {
	Missing []Coordinate
	Total   int
}

func (e *MissingTilesError) Error() string {
	parts := make([]string, len(e.Missing))
	for i, c := range e.Missing {
		parts[i] = c.String()
	}
	msg := fmt.Sprintf("%s: %s", ErrMissingTiles, strings.Join(parts, ", "))
	if more := e.Total - len(e.Missing); more > 0 {
		msg += fmt.Sprintf(" and %d more", more)
	}
	return msg
}

// Is reports whether target is ErrMissingTiles.
func (e *MissingTilesError) Is(target error) bool {
	return target == ErrMissingTiles
}
