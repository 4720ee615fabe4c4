package queue

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a mark_* call would move an item along
// an edge the lifecycle does not allow. The record is left untouched.
var ErrInvalidTransition = errors.New("invalid status transition")

func invalidTransition(id string, from, to Status) error {
	return fmt.Errorf("%w: item %s cannot move from %s to %s", ErrInvalidTransition, id, from, to)
}
