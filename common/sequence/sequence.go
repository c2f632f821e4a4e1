// Package sequence computes the hole traversal order for a round.
//
// A round plays total holes starting at start, incrementing by one and
// wrapping past total back to 1 (shotgun starts). The order is a pure
// function of (start, total).
package sequence

import (
	"fmt"

	"github.com/fairwaylink/scorecard/common/models"
)

// Order returns the traversal order for a round: total unit numbers
// beginning at start, wrapping modulo total back to 1.
func Order(start, total int) ([]int, error) {
	if err := validate(start, total); err != nil {
		return nil, err
	}

	order := make([]int, total)
	for i := 0; i < total; i++ {
		order[i] = ((start - 1 + i) % total) + 1
	}
	return order, nil
}

// Contains reports whether unit is a legal member of the round's
// sequence. Every unit in [1, total] is; the start offset only changes
// ordering, not membership.
func Contains(start, total, unit int) (bool, error) {
	if err := validate(start, total); err != nil {
		return false, err
	}
	return unit >= 1 && unit <= total, nil
}

// PositionOf returns the zero-based index of unit within the traversal
// order, used for progress display.
func PositionOf(start, total, unit int) (int, error) {
	ok, err := Contains(start, total, unit)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: unit %d not in [1,%d]", models.ErrInvalidUnit, unit, total)
	}

	pos := unit - start
	if pos < 0 {
		pos += total
	}
	return pos, nil
}

func validate(start, total int) error {
	if total < 1 {
		return fmt.Errorf("%w: total %d must be >= 1", models.ErrInvalidConfiguration, total)
	}
	if start < 1 || start > total {
		return fmt.Errorf("%w: start %d not in [1,%d]", models.ErrInvalidConfiguration, start, total)
	}
	return nil
}
